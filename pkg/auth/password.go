package auth

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 14
	MinPasswordLen = 8
	MaxPasswordLen = 128
)

// PasswordValidationError collects every failed requirement. The public
// message stays generic so responses never enumerate password rules.
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	return "invalid password"
}

// Frequently-breached passwords, matched case-insensitively.
var commonPasswords = map[string]bool{
	"password":     true,
	"password123":  true,
	"password123!": true,
	"passw0rd":     true,
	"12345678":     true,
	"123456":       true,
	"123123":       true,
	"qwerty":       true,
	"abc123":       true,
	"admin":        true,
	"letmein":      true,
	"welcome":      true,
	"monkey":       true,
	"dragon":       true,
	"master":       true,
	"shadow":       true,
	"sunshine":     true,
	"princess":     true,
	"starwars":     true,
	"football":     true,
	"trustno1":     true,
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidatePassword enforces length bounds, character-class coverage, and
// the common-password denylist.
func ValidatePassword(password string) error {
	var problems []string

	if len(password) < MinPasswordLen {
		problems = append(problems, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		problems = append(problems, fmt.Sprintf("must be at most %d characters", MaxPasswordLen))
	}

	classes := map[string]func(rune) bool{
		"uppercase letter":  unicode.IsUpper,
		"lowercase letter":  unicode.IsLower,
		"digit":             unicode.IsDigit,
		"special character": func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSymbol(r) },
	}
	for class, match := range classes {
		if !strings.ContainsFunc(password, match) {
			problems = append(problems, "must contain at least one "+class)
		}
	}

	if commonPasswords[strings.ToLower(password)] {
		problems = append(problems, "is too common, please choose a more unique password")
	}

	if len(problems) > 0 {
		return &PasswordValidationError{Errors: problems}
	}
	return nil
}
