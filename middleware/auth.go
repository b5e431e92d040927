package middleware

import (
	"net/http"
	"strings"

	"github.com/dcode-github/property_marketplace/utils"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Auth verifies the bearer token and attaches the caller to the request
// context.
func Auth(tokens *utils.TokenIssuer, logger *zap.Logger) mux.MiddlewareFunc {
	logger = logger.Named("auth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenHeader := r.Header.Get("Authorization")
			if tokenHeader == "" {
				logger.Debug("missing authorization header", zap.String("method", r.Method), zap.String("uri", r.URL.Path))
				reject(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing Authorization header")
				return
			}

			tokenParts := strings.Split(tokenHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				logger.Debug("invalid authorization header", zap.String("method", r.Method), zap.String("uri", r.URL.Path))
				reject(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid Authorization header format")
				return
			}

			claims, err := tokens.ValidateJWT(tokenParts[1])
			if err != nil {
				logger.Info("rejected token", zap.Error(err))
				reject(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
				return
			}

			caller := claims.Caller()
			noteCaller(r.Context(), caller)
			ctx := utils.WithCaller(r.Context(), caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after Auth.
func RequireAdmin(logger *zap.Logger) mux.MiddlewareFunc {
	logger = logger.Named("auth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := utils.CallerFrom(r.Context())
			if !ok {
				reject(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}
			if !caller.IsAdmin() {
				logger.Info("admin route denied", zap.String("userId", caller.UserID), zap.String("uri", r.URL.Path))
				reject(w, http.StatusForbidden, "FORBIDDEN", "Admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
