package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"swapcourses-backend/pkg/auth"
)

// Authenticate validates the bearer token and installs the user
// context. Requests without a valid token never reach the handlers.
func Authenticate(validator *auth.JWTValidator, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				respondUnauthorized(w, "missing authorization header")
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				respondUnauthorized(w, "authorization header must use the Bearer scheme")
				return
			}

			claims, err := validator.Validate(token)
			if err != nil {
				logger.Debug("token rejected", zap.Error(err))
				respondUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := auth.WithUser(r.Context(), auth.UserContext{
				UserID: claims.UserID,
				Email:  claims.Email,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthenticateFromGateway trusts the identity headers set by the API
// Gateway authorizer instead of re-validating the token. Lambda only.
func AuthenticateFromGateway() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get("X-User-Id")
			if userID == "" {
				respondUnauthorized(w, "missing gateway identity")
				return
			}
			ctx := auth.WithUser(r.Context(), auth.UserContext{
				UserID: userID,
				Email:  r.Header.Get("X-User-Email"),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   "UNAUTHORIZED",
		"message": message,
	})
}
