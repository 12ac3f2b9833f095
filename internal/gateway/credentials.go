package gateway

import (
	"net/http"
	"strings"
)

// extractCredentials reads the caller-supplied credential pool from the
// request: Authorization: Bearer k1,k2,k3 is tried first, then
// x-goog-api-key; values are split on ",", trimmed, emptied entries
// dropped, and duplicates removed while preserving first occurrence.
func extractCredentials(r *http.Request) []string {
	raw := ""
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		raw = strings.TrimPrefix(auth, "Bearer ")
	}
	if raw == "" {
		raw = r.Header.Get("x-goog-api-key")
	}
	if raw == "" {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		k := strings.TrimSpace(part)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
