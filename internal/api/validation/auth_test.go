package validation_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wanderher/wanderher/internal/api/validation"
)

func validSignupForm() validation.SignupForm {
	return validation.SignupForm{
		Email:    "ana@example.com",
		Password: "secret123",
		Username: "ana_travels",
	}
}

func TestSignupForm_Valid(t *testing.T) {
	t.Parallel()
	assert.Empty(t, validation.ValidateSignupForm(validSignupForm()))
}

func TestSignupForm_Email(t *testing.T) {
	t.Parallel()

	f := validSignupForm()
	f.Email = ""
	assertFieldError(t, validation.ValidateSignupForm(f), "email", "required")

	f.Email = "not-an-email"
	assertFieldError(t, validation.ValidateSignupForm(f), "email", "valid")

	f.Email = "Ana <ana@example.com>"
	assertFieldError(t, validation.ValidateSignupForm(f), "email", "valid")
}

func TestSignupForm_Password(t *testing.T) {
	t.Parallel()

	f := validSignupForm()
	f.Password = ""
	assertFieldError(t, validation.ValidateSignupForm(f), "password", "required")

	f.Password = "12345"
	assertFieldError(t, validation.ValidateSignupForm(f), "password", "at least 6")

	f.Password = "123456"
	assert.Empty(t, validation.ValidateSignupForm(f))
}

func TestSignupForm_Username(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
		valid bool
	}{
		{"lowercase", "ana", true},
		{"digits and underscore", "ana_2024", true},
		{"30 chars", strings.Repeat("a", 30), true},
		{"31 chars", strings.Repeat("a", 31), false},
		{"too short", "an", false},
		{"uppercase", "Ana", false},
		{"hyphen", "ana-lopez", false},
		{"space", "ana lopez", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := validSignupForm()
			f.Username = tt.value
			errs := validation.ValidateSignupForm(f)
			if tt.valid {
				assert.Empty(t, errs)
			} else {
				assertFieldError(t, errs, "username", "username")
			}
		})
	}
}

func TestLoginForm(t *testing.T) {
	t.Parallel()

	assert.Empty(t, validation.ValidateLoginForm(validation.LoginForm{Email: "a@b.c", Password: "x"}))

	errs := validation.ValidateLoginForm(validation.LoginForm{})
	assertFieldError(t, errs, "email", "required")
	assertFieldError(t, errs, "password", "required")
}
