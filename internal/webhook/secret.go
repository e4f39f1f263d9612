package webhook

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
)

// SecretHeader is the dedicated header Smartlead can be configured to send.
const SecretHeader = "X-Webhook-Secret"

// tokenFromRequest extracts the caller-supplied secret, in precedence order:
// bearer authorization header, dedicated secret header, query parameter,
// then the payload's self-reported secret field as a last resort.
func tokenFromRequest(r *http.Request, payloadSecret string) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		if tok := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")); tok != "" {
			return tok
		}
	}
	if tok := r.Header.Get(SecretHeader); tok != "" {
		return tok
	}
	if tok := r.URL.Query().Get("secret"); tok != "" {
		return tok
	}
	return payloadSecret
}

// validSecret compares the provided token against the expected secret.
// Both sides are hashed to fixed length first, so the constant-time compare
// always scans the same number of bytes: neither a length mismatch nor the
// position of the first differing byte shows up in timing.
// No secret configured means validation is skipped entirely; that is an
// operator choice, not a fallback.
func validSecret(provided, expected string) bool {
	if expected == "" {
		return true
	}
	if provided == "" {
		return false
	}

	p := sha256.Sum256([]byte(provided))
	e := sha256.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(p[:], e[:]) == 1
}
