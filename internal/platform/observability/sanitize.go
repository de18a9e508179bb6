package observability

import (
	"strings"
	"unicode"
)

const (
	routeLimit  = 180
	methodLimit = 10
	idLimit     = 64
)

// sanitizeString strips control characters and caps the length so attacker
// controlled values cannot inject structure into log output.
func sanitizeString(value string, limit int) string {
	if limit <= 0 {
		limit = 256
	}

	var b strings.Builder
	b.Grow(len(value))
	count := 0
	for _, r := range value {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		if count >= limit {
			break
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}

// SanitizeRoute cleans a chi route pattern before it lands in a log field.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, routeLimit)
}

// SanitizeMethod cleans an HTTP method name.
func SanitizeMethod(method string) string {
	return sanitizeString(method, methodLimit)
}

// SanitizeUserID truncates operator identifiers to keep log lines bounded.
func SanitizeUserID(uid string) string {
	if uid == "" {
		return ""
	}
	return sanitizeString(uid, idLimit)
}
