package auth

import (
	"net/http"
	"strings"

	"eabridge/src/security"

	logger "github.com/sirupsen/logrus"
)

// OperatorVerifier validates control API bearer tokens.
type OperatorVerifier interface {
	VerifyOperator(token string) (*security.OperatorClaims, error)
}

// Middleware rejects requests without a valid "Authorization: Bearer" operator token.
func Middleware(verifier OperatorVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || strings.TrimSpace(token) == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := verifier.VerifyOperator(strings.TrimSpace(token))
			if err != nil {
				logger.WithFields(map[string]interface{}{
					"path":   r.URL.Path,
					"remote": r.RemoteAddr,
				}).WithError(err).Warn("Rejected control API token")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), claims)))
		})
	}
}
