package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "strong password accepted", password: "SecureP@ss123"},
		{name: "symbols accepted", password: "MyP@ssw0rd!"},
		{name: "multiple special characters accepted", password: "Secure#P@ssw0rd"},
		{name: "too short", password: "Pass@1", wantErr: true},
		{name: "too long", password: "Aa1@" + strings.Repeat("x", MaxPasswordLen), wantErr: true},
		{name: "missing uppercase", password: "securepass@123", wantErr: true},
		{name: "missing lowercase", password: "SECUREPASS@123", wantErr: true},
		{name: "missing digit", password: "SecurePass@xyz", wantErr: true},
		{name: "missing special character", password: "SecurePass123", wantErr: true},
		{name: "common password rejected", password: "password123", wantErr: true},
		{name: "common password rejected case-insensitively", password: "PASSWORD123", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			// The public message never names the failed requirement.
			assert.Equal(t, "invalid password", err.Error())

			var vErr *PasswordValidationError
			require.ErrorAs(t, err, &vErr)
			assert.NotEmpty(t, vErr.Errors)
		})
	}
}

func TestValidatePassword_CollectsAllProblems(t *testing.T) {
	err := ValidatePassword("abc")

	var vErr *PasswordValidationError
	require.ErrorAs(t, err, &vErr)
	// short + missing upper + missing digit + missing special
	assert.Len(t, vErr.Errors, 4)
}

func TestHashAndComparePassword(t *testing.T) {
	password := "SecureP@ss123"

	hash, err := HashPassword(password)
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, password, hash)

	assert.NoError(t, ComparePassword(hash, password))
	assert.Error(t, ComparePassword(hash, "WrongPassword123!"))
}

func TestHashPassword_EmptyRejected(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
}
