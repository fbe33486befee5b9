package survey

import (
	"regexp"
	"strings"
)

var reEmail = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail trims surrounding whitespace and lowercases the address.
// Respondents are compared by normalized address everywhere.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail is a loose local@domain.tld check.
func ValidEmail(email string) bool {
	return reEmail.MatchString(email)
}
