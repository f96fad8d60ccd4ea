package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vibescan/api/pkg/apierror"
	"github.com/vibescan/api/pkg/logger"
)

// UserIDKey is the context key carrying the authenticated user id.
const UserIDKey = logger.ContextKeyUserID

// GetUserID extracts the authenticated user id from context.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// Auth validates bearer JWTs. Token issuance happens elsewhere; this
// service only verifies the signature and expiry and extracts the
// subject as the user id.
func Auth(jwtSecret string, log *logger.Logger) func(http.Handler) http.Handler {
	keyFunc := func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				apierror.Unauthorized("Missing bearer token").WriteJSONWithRequestID(w, GetRequestID(r.Context()))
				return
			}

			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, keyFunc,
				jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
			if err != nil || !token.Valid {
				log.WithContext(r.Context()).Debug("token validation failed", "error", err)
				apierror.Unauthorized("Invalid or expired token").WriteJSONWithRequestID(w, GetRequestID(r.Context()))
				return
			}

			if claims.Subject == "" {
				apierror.Unauthorized("Token has no subject").WriteJSONWithRequestID(w, GetRequestID(r.Context()))
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from the Authorization header, or
// from the token query parameter for websocket upgrades where headers
// are unavailable to browser clients.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if isWebsocketUpgrade(r) {
		return r.URL.Query().Get("token")
	}
	return ""
}
