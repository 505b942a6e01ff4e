package middleware

import (
	"path"
	"strings"
)

// RouteClass groups paths by their session requirement.
type RouteClass int

const (
	// RouteOther is reachable by anyone.
	RouteOther RouteClass = iota
	// RouteProtected requires a signed-in user.
	RouteProtected
	// RouteAuthOnly is only for signed-out visitors.
	RouteAuthOnly
)

// ProtectedPrefixes are the sections that require a signed-in user.
var ProtectedPrefixes = []string{"/dashboard", "/profile", "/settings", "/submit", "/saved", "/app"}

// AuthOnlyPaths are the pages a signed-in user is sent away from.
var AuthOnlyPaths = []string{"/login", "/signup"}

var staticExtensions = map[string]bool{
	".svg": true, ".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".webp": true, ".ico": true, ".css": true, ".js": true, ".map": true,
	".woff": true, ".woff2": true, ".txt": true, ".xml": true,
}

func underPrefix(p, prefix string) bool {
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// ClassifyRoute returns the class of a request path.
func ClassifyRoute(p string) RouteClass {
	for _, prefix := range ProtectedPrefixes {
		if underPrefix(p, prefix) {
			return RouteProtected
		}
	}
	for _, ap := range AuthOnlyPaths {
		if underPrefix(p, ap) {
			return RouteAuthOnly
		}
	}
	return RouteOther
}

// IsStaticAsset reports whether p is a static file that never needs the
// session.
func IsStaticAsset(p string) bool {
	if strings.HasPrefix(p, "/static/") || p == "/favicon.ico" {
		return true
	}
	return staticExtensions[strings.ToLower(path.Ext(p))]
}
