package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
)

var errAcctNotFoundInCtx = errors.New("account object not found in echo.Context")

type accountApi struct {
	svc        account.ServiceInterface
	uploader   core.Uploader
	conf       *core.Config
	validate   *validator.Validate
	translator ut.Translator
}

func registerAccountAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc account.ServiceInterface,
	uploader core.Uploader,
	conf *core.Config,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := accountApi{
		svc:        svc,
		uploader:   uploader,
		conf:       conf,
		validate:   validate,
		translator: translator,
	}

	ug := g.Group("/users")

	// un-authed endpoints
	// TODO: rate limit `/forgot-password` & `/reset-password`
	ug.POST("/login", api.login)
	ug.POST("/signup", api.signup(account.RoleUser))
	ug.POST("/signup/student", api.signup(account.RoleStudent))
	ug.POST("/signup/teacher", api.signup(account.RoleTeacher))
	ug.GET("/verify-otp", api.verifyOTP)
	ug.GET("/resend-otp", api.resendOTP)
	ug.GET("/forgot-password", api.forgotPassword)
	ug.PUT("/reset-password", api.resetPassword)

	// authed endpoints
	mg := ug.Group("/me", jwt, accountGuardMiddleware(api.svc))
	mg.GET("", api.retrieve)
	mg.POST("", api.update)
	mg.PUT("/password", api.changePassword)
	mg.DELETE("", api.destroy)
}

// Handlers

func (api *accountApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	acct, token, err := authenticate(ctx.Request().Context(), data.Identifier, data.Password, api.svc, api.conf)
	if err != nil {
		return err
	}

	msg := "login successful"
	if !acct.Verified {
		msg = "account not verified; a new verification code has been sent"
	}
	return respond(ctx, http.StatusOK, LoginResponse{Token: token, Account: acct}, msg)
}

// signup returns a registration handler with the role fixed by the route:
// the payload never chooses its own role.
func (api *accountApi) signup(role string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var data account.NewAccount
		if err := ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to NewAccount")
		}
		if err := data.Validate(api.validate); err != nil {
			return err
		}

		acct, err := api.svc.Register(ctx.Request().Context(), data, role)
		if err != nil {
			return errors.Wrap(err, "registering account")
		}

		if url, ok, err := api.uploadProfilePic(ctx, acct.ID); err != nil {
			return err
		} else if ok {
			if acct, err = api.svc.UpdateProfile(ctx.Request().Context(), acct.ID, account.UpdateAccount{ProfilePic: url}); err != nil {
				return errors.Wrap(err, "saving profile picture")
			}
		}

		return respond(ctx, http.StatusCreated, acct,
			"registration successful; a verification code has been sent to your email")
	}
}

func (api *accountApi) verifyOTP(ctx echo.Context) error {
	id := core.CleanString(ctx.QueryParam("account_id"))
	code := core.CleanString(ctx.QueryParam("otp"))
	if id == "" || code == "" {
		return core.NewValidationError(errors.New("account_id and otp are required"))
	}

	if err := api.svc.VerifyOTP(ctx.Request().Context(), id, code); err != nil {
		return errors.Wrap(err, "verifying code")
	}
	return respond(ctx, http.StatusOK, nil, "account verified")
}

func (api *accountApi) resendOTP(ctx echo.Context) error {
	identifier := core.CleanString(ctx.QueryParam("email"))
	if identifier == "" {
		return core.NewValidationError(errors.New("email is required"))
	}

	if _, err := api.svc.ResendOTP(ctx.Request().Context(), identifier); err != nil {
		return errors.Wrap(err, "resending verification code")
	}
	return respond(ctx, http.StatusOK, nil, "a new verification code has been sent")
}

func (api *accountApi) forgotPassword(ctx echo.Context) error {
	identifier := core.CleanString(ctx.QueryParam("email"))
	if identifier == "" {
		return core.NewValidationError(errors.New("email is required"))
	}

	if _, err := api.svc.RequestPasswordReset(ctx.Request().Context(), identifier); !(err == nil || errors.Cause(err) == account.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return respond(ctx, http.StatusOK, nil,
		"If the email address supplied is associated with an account on this system, "+
			"an email will arrive in your inbox shortly with a code to reset your password.")
}

func (api *accountApi) resetPassword(ctx echo.Context) error {
	var data account.ResetAccountPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetAccountPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return respond(ctx, http.StatusOK, nil, "password has been reset with the new password")
}

func (api *accountApi) retrieve(ctx echo.Context) error {
	acct, err := getContextAccount(ctx, api.svc)
	if err != nil {
		return errors.Wrap(errAcctNotFoundInCtx, "retrieving account from context")
	}
	return respond(ctx, http.StatusOK, acct, "")
}

func (api *accountApi) update(ctx echo.Context) error {
	acct, err := getContextAccount(ctx, api.svc)
	if err != nil {
		return errors.Wrap(errAcctNotFoundInCtx, "retrieving account from context")
	}

	var data account.UpdateAccount
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAccount")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if url, ok, err := api.uploadProfilePic(ctx, acct.ID); err != nil {
		return err
	} else if ok {
		data.ProfilePic = url
	}

	acct, err = api.svc.UpdateProfile(ctx.Request().Context(), acct.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating account")
	}
	ctx.Set(contextAccountKey, acct)
	return respond(ctx, http.StatusOK, acct, "profile updated")
}

func (api *accountApi) changePassword(ctx echo.Context) error {
	acct, err := getContextAccount(ctx, api.svc)
	if err != nil {
		return errors.Wrap(errAcctNotFoundInCtx, "retrieving account from context")
	}

	var data account.ChangePassword
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePassword")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if err = api.svc.ChangePassword(ctx.Request().Context(), acct.ID, data); err != nil {
		return errors.Wrap(err, "changing password")
	}
	return respond(ctx, http.StatusOK, nil, "password changed")
}

func (api *accountApi) destroy(ctx echo.Context) error {
	acct, err := getContextAccount(ctx, api.svc)
	if err != nil {
		return errors.Wrap(errAcctNotFoundInCtx, "retrieving account from context")
	}

	if err = api.svc.Delete(ctx.Request().Context(), acct.ID); err != nil {
		return errors.Wrap(err, "deleting account")
	}
	return respond(ctx, http.StatusOK, nil, "account deleted")
}

// uploadProfilePic pushes the optional "profile_pic" multipart file to
// object storage. Returns ok=false when the request carries no file.
func (api *accountApi) uploadProfilePic(ctx echo.Context, acctID string) (string, bool, error) {
	fh, err := ctx.FormFile("profile_pic")
	if err != nil { // no file
		return "", false, nil
	}
	if api.uploader == nil {
		return "", false, core.NewValidationError(errors.New("file uploads are not enabled"))
	}
	if fh.Size > maxProfilePicSize {
		return "", false, core.NewValidationError(nil, core.FieldError{
			Field: "profile_pic",
			Error: fmt.Sprintf("file exceeds the %dMB limit", maxProfilePicSize>>20),
		})
	}

	f, err := fh.Open()
	if err != nil {
		return "", false, errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = f.Close() }()

	url, err := api.uploader.Upload(ctx.Request().Context(), acctID+"_"+fh.Filename, f)
	if err != nil {
		return "", false, errors.Wrap(err, "uploading profile picture")
	}
	return url, true, nil
}

const maxProfilePicSize = 5 << 20 // 5MB

type (
	LoginRequest struct {
		Identifier string `json:"identifier" validate:"required"` // email or phone number
		Password   string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token   string          `json:"token"`
		Account account.Account `json:"account"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Identifier = core.CleanString(lr.Identifier, true /* lower */)
	return validate.Struct(lr)
}
