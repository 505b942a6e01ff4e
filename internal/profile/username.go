package profile

import (
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
)

const (
	// usernameSuffixRange bounds the random numeric suffix: [0, 10000).
	usernameSuffixRange = 10000
	// maxUsernameBase leaves room for a four digit suffix within the
	// 30 character username limit.
	maxUsernameBase = 26
	// minUsernameBase keeps even a one digit suffix at 3 characters.
	minUsernameBase = 2
	usernameFiller  = "user"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]`)

// IntN returns a non-negative pseudo-random number in [0, n).
type IntN func(n int) int

// GenerateUsername derives a candidate handle from an email address.
func GenerateUsername(email string) string {
	return UsernameFromEmail(email, rand.IntN)
}

// UsernameFromEmail is GenerateUsername with an explicit random source. The
// result is the lowercased local part stripped to [a-z0-9], cut to 26
// characters and prefixed with "user" when shorter than 2, followed by a
// number in [0, 10000). It always satisfies the 3-30 character username
// rule. It may collide with an existing username; callers rely on the
// store's uniqueness constraint.
func UsernameFromEmail(email string, intn IntN) string {
	local, _, _ := strings.Cut(email, "@")
	base := nonAlphanumeric.ReplaceAllString(strings.ToLower(local), "")
	if len(base) > maxUsernameBase {
		base = base[:maxUsernameBase]
	}
	if len(base) < minUsernameBase {
		base = usernameFiller + base
	}
	return base + strconv.Itoa(intn(usernameSuffixRange))
}
