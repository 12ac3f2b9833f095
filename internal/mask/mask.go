// Package mask provides the one-way presentation helper for credential
// material. Internal identity always uses the full credential string; this
// package exists so every log site and API response has a single place to
// route through before a credential could leak.
package mask

import "strings"

const (
	keepPrefix = 7
	keepSuffix = 7
)

// Key returns a masked form of an API credential: the first and last 7
// characters, joined by a fixed run of bullets, with the middle collapsed.
// The bullet count is constant rather than proportional to the elided
// length, so the mask never leaks the credential's length. Short
// credentials (too short to mask meaningfully) are fully redacted.
func Key(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	if len(key) <= keepPrefix+keepSuffix {
		return strings.Repeat("•", len(key))
	}
	return key[:keepPrefix] + strings.Repeat("•", 6) + key[len(key)-keepSuffix:]
}
