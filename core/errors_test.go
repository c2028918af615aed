package core

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError(errors.New("oops")).(*ValidationError)
	assert.Equal(t, "oops", err.Error())
	assert.Nil(t, err.FieldMap())

	err = NewValidationError(nil,
		FieldError{Field: "email", Error: "this field is required"},
		FieldError{Field: "name", Error: "this field is required"},
	).(*ValidationError)
	assert.Empty(t, err.Error())
	assert.Equal(t, map[string]string{
		"email": "this field is required",
		"name":  "this field is required",
	}, err.FieldMap())
}

func TestIsShutdown(t *testing.T) {
	err := NewShutdownError("going down")
	assert.True(t, IsShutdown(err))
	assert.True(t, IsShutdown(errors.Wrap(err, "handler")))
	assert.False(t, IsShutdown(errors.New("going down")))
}
