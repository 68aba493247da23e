package logger

import (
	"strings"
)

// sensitiveParams are query parameter names that must never reach logs.
var sensitiveParams = []string{
	"password",
	"token",
	"secret",
	"api_key",
	"apikey",
	"auth",
	"email",
}

// SanitizedEmail masks an email address for logging, keeping the first
// character of the local part and the TLD: "jane@example.com" becomes
// "j***@*******.com".
func SanitizedEmail(email string) string {
	local, domain, found := strings.Cut(email, "@")
	if !found || local == "" || domain == "" {
		return "[invalid-email]"
	}

	masked := local
	if len(local) > 1 {
		masked = local[:1] + strings.Repeat("*", len(local)-1)
	}

	labels := strings.Split(domain, ".")
	for i := 0; i < len(labels)-1; i++ {
		labels[i] = strings.Repeat("*", len(labels[i]))
	}

	return masked + "@" + strings.Join(labels, ".")
}

// SanitizeQueryString reports whether a raw query string mentions any
// sensitive parameter and should be redacted wholesale.
func SanitizeQueryString(rawQuery string) bool {
	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
