package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func TestValidator_Struct(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Struct(loginPayload{Email: "a@example.com", Password: "123456"}))

	err := v.Struct(loginPayload{Email: "not-an-email", Password: "123"})
	require.Error(t, err)
	de := ToDomainError(err)
	assert.Equal(t, "VALIDATION_FAILED", de.Code)
	assert.Equal(t, "email must be a valid email address", de.Details["email"])
	assert.Equal(t, "password must be at least 6 characters long", de.Details["password"])

	de = ToDomainError(v.Struct(loginPayload{}))
	assert.Equal(t, "email is required", de.Details["email"])
}
