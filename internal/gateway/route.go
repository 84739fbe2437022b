package gateway

import "strings"

const gatedPrefix = "/product/"
const apiPrefix = "/api"

// isGated reports whether path requires a valid signature: paths whose
// lowercased form starts with "/product/" are gated; everything else is
// admitted without checks.
func isGated(path string) bool {
	return strings.HasPrefix(strings.ToLower(path), gatedPrefix)
}

// routeClass labels a path for metrics/logging: "gated", "api", or "app".
func routeClass(path string) string {
	if isGated(path) {
		return "gated"
	}
	if strings.HasPrefix(strings.ToLower(path), apiPrefix) {
		return "api"
	}
	return "app"
}

// isAPIPath reports whether path should be forwarded to the API upstream
// rather than the app upstream.
func isAPIPath(path string) bool {
	return strings.HasPrefix(strings.ToLower(path), apiPrefix)
}
