package profile

import "time"

// Role values. Every self-service account starts as a talent.
const (
	RoleTalent = "talent"
)

// Privacy levels.
const (
	PrivacyPublic  = "public"
	PrivacyPrivate = "private"
)

// MaxBioLength is the maximum bio length in characters.
const MaxBioLength = 500

// Profile represents a row in the profiles table. ID equals the identity id.
type Profile struct {
	ID           string
	Username     string
	FullName     *string
	Bio          *string
	Role         string
	PrivacyLevel string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsPublic reports whether the profile may be shown to other visitors.
func (p *Profile) IsPublic() bool {
	return p.PrivacyLevel != PrivacyPrivate
}

// Update holds the fields of a partial profile update. Nil fields are left
// unchanged.
type Update struct {
	Username     *string
	FullName     *string
	Bio          *string
	PrivacyLevel *string
}

// IsEmpty reports whether the update changes nothing.
func (u Update) IsEmpty() bool {
	return u.Username == nil && u.FullName == nil && u.Bio == nil && u.PrivacyLevel == nil
}

// NewDefault builds the profile created for a fresh account.
func NewDefault(id, username string) *Profile {
	return &Profile{
		ID:           id,
		Username:     username,
		Role:         RoleTalent,
		PrivacyLevel: PrivacyPublic,
	}
}
