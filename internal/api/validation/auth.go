package validation

import (
	"net/mail"
	"regexp"
	"strings"
)

var usernameRegex = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

// MinPasswordLength matches the identity backend's default policy.
const MinPasswordLength = 6

// SignupForm mirrors the signup form fields.
type SignupForm struct {
	Email    string
	Password string
	Username string
}

// LoginForm mirrors the login form fields.
type LoginForm struct {
	Email    string
	Password string
}

func validateEmail(email string) []FieldError {
	email = strings.TrimSpace(email)
	if email == "" {
		return []FieldError{{Field: "email", Message: "email is required"}}
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return []FieldError{{Field: "email", Message: "email must be a valid address"}}
	}
	return nil
}

func validateUsername(username string) []FieldError {
	if username == "" {
		return []FieldError{{Field: "username", Message: "username is required"}}
	}
	if !usernameRegex.MatchString(username) {
		return []FieldError{{Field: "username", Message: "username must be 3-30 lowercase letters, digits or underscores"}}
	}
	return nil
}

// ValidateSignupForm validates a signup submission.
func ValidateSignupForm(f SignupForm) []FieldError {
	var errs []FieldError
	errs = append(errs, validateEmail(f.Email)...)

	if f.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "password is required"})
	} else if len(f.Password) < MinPasswordLength {
		errs = append(errs, FieldError{Field: "password", Message: "password must be at least 6 characters"})
	}

	errs = append(errs, validateUsername(f.Username)...)
	return errs
}

// ValidateLoginForm only checks presence; the backend decides the rest.
func ValidateLoginForm(f LoginForm) []FieldError {
	var errs []FieldError
	if strings.TrimSpace(f.Email) == "" {
		errs = append(errs, FieldError{Field: "email", Message: "email is required"})
	}
	if f.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "password is required"})
	}
	return errs
}
