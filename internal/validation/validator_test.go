package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(&signup{Email: "a@example.com", Password: "longenough"}))

	err := Struct(&signup{Email: "nope", Password: "short"})
	var fields FieldErrors
	require.True(t, errors.As(err, &fields))
	assert.Equal(t, "Must be a valid email address.", fields["email"])
	assert.Equal(t, "Must be at least 8 characters.", fields["password"])

	err = Struct(&signup{})
	require.True(t, errors.As(err, &fields))
	assert.Equal(t, "This field is required.", fields["email"])
	assert.Equal(t, "This field is required.", fields["password"])
}

func TestGetReturnsSingleton(t *testing.T) {
	assert.Same(t, Get(), Get())
}
