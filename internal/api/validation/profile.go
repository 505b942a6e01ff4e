package validation

import (
	"fmt"
	"unicode/utf8"

	"github.com/wanderher/wanderher/internal/profile"
)

const maxFullNameLength = 100

// ProfileForm mirrors the profile edit form. Nil fields are not submitted.
type ProfileForm struct {
	Username     *string
	FullName     *string
	Bio          *string
	PrivacyLevel *string
}

// ValidateProfileForm validates a partial profile update.
func ValidateProfileForm(f ProfileForm) []FieldError {
	var errs []FieldError

	if f.Username != nil {
		errs = append(errs, validateUsername(*f.Username)...)
	}
	if f.FullName != nil && utf8.RuneCountInString(*f.FullName) > maxFullNameLength {
		errs = append(errs, FieldError{Field: "fullName", Message: fmt.Sprintf("fullName must be at most %d characters", maxFullNameLength)})
	}
	if f.Bio != nil && utf8.RuneCountInString(*f.Bio) > profile.MaxBioLength {
		errs = append(errs, FieldError{Field: "bio", Message: fmt.Sprintf("bio must be at most %d characters", profile.MaxBioLength)})
	}
	if f.PrivacyLevel != nil && *f.PrivacyLevel != profile.PrivacyPublic && *f.PrivacyLevel != profile.PrivacyPrivate {
		errs = append(errs, FieldError{Field: "privacyLevel", Message: "privacyLevel must be public or private"})
	}

	return errs
}

// ToUpdate converts a validated form into a repository update.
func (f ProfileForm) ToUpdate() profile.Update {
	return profile.Update{
		Username:     f.Username,
		FullName:     f.FullName,
		Bio:          f.Bio,
		PrivacyLevel: f.PrivacyLevel,
	}
}
