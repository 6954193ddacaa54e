package observability

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	routeLimit  = 180
	methodLimit = 10
	userIDLimit = 64
)

// clip drops control characters and keeps at most limit runes.
func clip(value string, limit int) string {
	value = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	return string([]rune(value)[:limit])
}

// SanitizeRoute bounds a chi route pattern for log fields. Empty becomes "/".
func SanitizeRoute(route string) string {
	if route = clip(route, routeLimit); route == "" {
		return "/"
	}
	return route
}

func SanitizeMethod(method string) string { return clip(method, methodLimit) }

func SanitizeUserID(uid string) string { return clip(uid, userIDLimit) }
