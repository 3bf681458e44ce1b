package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signUpForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=admin doctor patient"`
	Age      int    `json:"age" validate:"gte=0,lte=150"`
	Untagged string `validate:"max=3"`
	Ignored  string `json:"-"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name       string
		input      signUpForm
		wantFields map[string]string
	}{
		{
			name:  "valid",
			input: signUpForm{Email: "a@example.com", Password: "secret1", Role: "doctor", Age: 30},
		},
		{
			name:  "missing required",
			input: signUpForm{},
			wantFields: map[string]string{
				"email":    "email is required",
				"password": "password is required",
			},
		},
		{
			name:  "format and range",
			input: signUpForm{Email: "nope", Password: "123", Role: "nurse", Age: 151, Untagged: "abcd"},
			wantFields: map[string]string{
				"email":    "email must be a valid email",
				"password": "password must be at least 6",
				"role":     "role must be one of: admin doctor patient",
				"age":      "age must be less than or equal to 150",
				"Untagged": "Untagged must be at most 3",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Equal(t, "Validation failed", err.Error())
			assert.Equal(t, tt.wantFields, GetValidationFields(err))
		})
	}
}

func TestValidateVar(t *testing.T) {
	assert.NoError(t, ValidateVar("a@example.com", "required,email"))
	assert.Error(t, ValidateVar("not-an-email", "required,email"))
}

func TestGetValidationFields_PlainError(t *testing.T) {
	assert.False(t, IsValidationError(errors.New("plain")))
	assert.Nil(t, GetValidationFields(errors.New("plain")))
}
