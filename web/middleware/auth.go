package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// BearerToken rejects requests whose Authorization header does not carry
// apiKey. An empty apiKey disables the check.
func BearerToken(apiKey string, log *zap.Logger) func(http.Handler) http.Handler {
	if apiKey == "" {
		log.Info("api authentication disabled")
	} else {
		log.Info("api authentication enabled", zap.Int("key_length", len(apiKey)))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)

				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized(w, log, r, "missing authentication token")

				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || scheme != "Bearer" || token == "" {
				unauthorized(w, log, r, "invalid authentication token format")

				return
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				unauthorized(w, log, r, "invalid authentication token")

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, log *zap.Logger, r *http.Request, msg string) {
	log.Warn("unauthorized request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("reason", msg),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
