// Package redirect decides whether user-supplied redirect targets stay on
// this site.
package redirect

import (
	"net/url"
	"strings"
)

// IsLocal reports whether target is a path on this site. Protocol-relative
// URLs, backslash tricks and control characters are rejected.
func IsLocal(target string) bool {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, `/\`) {
		return false
	}
	for _, r := range target {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	u, err := url.Parse(target)
	return err == nil && u.Scheme == "" && u.Host == ""
}

// LocalOr returns target when it is local and fallback otherwise.
func LocalOr(target, fallback string) string {
	if IsLocal(target) {
		return target
	}
	return fallback
}
