package auth

import (
	"net/http"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// HeaderAgentKey carries the shared key the execution agent presents on
// every request.
const HeaderAgentKey = "X-Agent-Key"

// AgentKeyMiddleware authenticates the execution agent against the
// configured bcrypt hash. With no hash configured every request passes.
func AgentKeyMiddleware(keyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keyHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(HeaderAgentKey)
			if key == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)); err != nil {
				logger.WithField("remote", r.RemoteAddr).Warn("Agent key rejected")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
