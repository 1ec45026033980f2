package security

import "crypto/subtle"

// ValidAdminKey compares the presented admin key against the configured
// one in constant time. An empty configured key never matches.
func ValidAdminKey(configured, presented string) bool {
	if configured == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) == 1
}
