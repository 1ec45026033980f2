package service

import "regexp"

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

// ExtractEmail returns the first email-looking substring, or "".
func ExtractEmail(text string) string {
	return emailPattern.FindString(text)
}

// IsValidEmail reports whether the whole string looks like an address.
func IsValidEmail(email string) bool {
	return emailPattern.FindString(email) == email && email != ""
}
