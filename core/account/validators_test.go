package account

import (
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-playground/locales/en"

	"github.com/trezcool/darasa/core"
)

func newValidator(t *testing.T) *validator.Validate {
	t.Helper()
	lang := en.New()
	translator, found := ut.New(lang, lang).GetTranslator(lang.Locale())
	require.True(t, found)
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func firstTag(t *testing.T, err error) string {
	t.Helper()
	vErrs, ok := err.(validator.ValidationErrors)
	require.True(t, ok, "expected validator.ValidationErrors, got %T", err)
	require.NotEmpty(t, vErrs)
	return vErrs[0].Tag()
}

func TestValidatePassword(t *testing.T) {
	validate := newValidator(t)

	tests := []struct {
		name    string
		pwd     string
		wantTag string
	}{
		{"ok", "LeP@ssw0rd", ""},
		{"too short", "aB1$", pwdMinLenTag},
		{"whitespace", "aB1$ aB1$", pwdNoSpaceTag},
		{"all numeric", "123456789", pwdNotAllNumTag},
		{"no uppercase", "lep@ssw0rd", pwdComplexityTag},
		{"no special", "LePassw0rd", pwdComplexityTag},
		{"no digit", "LeP@ssword", pwdComplexityTag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ChangePassword{Password: tt.pwd, PasswordConfirm: tt.pwd}.Validate(validate)
			if tt.wantTag == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantTag, firstTag(t, err))
		})
	}

	t.Run("confirmation mismatch", func(t *testing.T) {
		err := ChangePassword{Password: "LeP@ssw0rd", PasswordConfirm: "N0tTheS@me"}.Validate(validate)
		assert.Equal(t, "eqfield", firstTag(t, err))
	})
}

func TestValidatePassword_attributeSimilarity(t *testing.T) {
	validate := newValidator(t)

	na := NewAccount{
		Name:            "Jane Doe",
		Email:           "jane.doe@test.local",
		PhoneNumber:     "+254711111111",
		CountryCode:     "KE",
		Password:        "Jane.doe@test.locaL1",
		PasswordConfirm: "Jane.doe@test.locaL1",
	}
	err := na.Validate(validate)
	assert.Equal(t, pwdAttrSimTag, firstTag(t, err))

	na.Password, na.PasswordConfirm = "t0tally-Unrel@ted", "t0tally-Unrel@ted"
	assert.NoError(t, na.Validate(validate))
}
