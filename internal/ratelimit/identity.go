package ratelimit

import (
	"net/http"
	"strings"
)

// UnknownCaller is the shared identity of callers without address headers.
const UnknownCaller = "unknown"

// CallerIdentity derives the bucket key of a request: the first entry of
// X-Forwarded-For, else X-Real-IP, else UnknownCaller. Values are trimmed and
// empty values are skipped.
func CallerIdentity(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	return UnknownCaller
}
