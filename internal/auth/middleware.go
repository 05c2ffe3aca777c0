package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/sakif/piecemeal/internal/apperror"
)

// contextKey keeps the user id out of reach of other packages' context values.
type contextKey string

const userIDKey contextKey = "userID"

// CookieName is the cookie the session token travels in.
const CookieName = "token"

// noUserBody is the response envelope for error code 1. It is written here
// rather than through the handler package so the middleware has no upward
// dependency.
const noUserBody = `{"success":false,"error_code":1,"error_message":"no user logged in"}`

// RequireAuth rejects requests without a valid session with 401 and error
// code 1. Accepted requests carry the user id in their context.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(noUserBody))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// OptionalAuth resolves the session when there is one and lets anonymous
// requests through unchanged.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, err := extractUserID(r, tokens); err == nil {
				r = r.WithContext(WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUserID returns a context carrying userID. Tests use it to skip the
// token round trip.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns ("", false) for anonymous requests.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// CurrentUser is UserIDFromContext for callers that want an error.
func CurrentUser(ctx context.Context) (string, error) {
	id, ok := UserIDFromContext(ctx)
	if !ok {
		return "", apperror.NoCurrentUser()
	}
	return id, nil
}

// extractUserID prefers the cookie and falls back to a Bearer header.
func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return tokens.Validate(cookie.Value)
	}
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok && token != "" {
		return tokens.Validate(strings.TrimSpace(token))
	}
	return "", apperror.NoCurrentUser()
}
