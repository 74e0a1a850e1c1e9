package core

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"benefitclaims/internal/types"
)

// APIKeyMiddleware guards the ops routes with the shared key from
// OPS_API_KEY, accepted as "Authorization: Bearer <key>" or "X-Api-Key".
// With no key configured (local runs) every request passes.
func (s *Server) APIKeyMiddleware(next http.Handler) http.Handler {
	expected := []byte(s.Config.OpsAPIKey.Unmask())

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(expected) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("X-Api-Key")
		if key == "" {
			key = extractBearerToken(r.Header.Get("Authorization"))
		}
		if key == "" {
			Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "API key is required", nil))
			return
		}
		if subtle.ConstantTimeCompare([]byte(key), expected) != 1 {
			s.Logger.Warn("ops request rejected: invalid API key",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			Error(w, r, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid API key", nil))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractBearerToken returns the token from a "Bearer <token>" header value,
// or "" when the scheme is missing.
func extractBearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
