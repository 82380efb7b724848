package auth

import (
	"context"
	"net/http"
)

// contextKey is an unexported type for context keys. Only this package can
// create a key of this type, so no other package can shadow or read the
// account ID slot by accident.
type contextKey string

const accountIDKey contextKey = "accountID"

// SessionCookie is the name of the HttpOnly cookie carrying the session JWT.
const SessionCookie = "token"

// RequireAuth enforces a valid session on protected routes. It reads the
// JWT from the session cookie, validates it, and stores the account ID in
// the request context; missing or invalid tokens get 401 and the chain stops.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID, err := extractAccountID(r, tokens)
			if err != nil {
				http.Error(w, `{"error":"unauthorized","message":"valid authentication required"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), accountIDKey, accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth extracts the session identity when a valid token is present
// but never blocks the request. Guest mode is a first-class state here — an
// anonymous account can still subscribe — so most routes use this.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if accountID, err := extractAccountID(r, tokens); err == nil && accountID != "" {
				ctx := context.WithValue(r.Context(), accountIDKey, accountID)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccountIDFromContext retrieves the session's account ID.
// Returns ("", false) when the request carries no valid session.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(accountIDKey).(string)
	return id, ok && id != ""
}

func extractAccountID(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		// http.ErrNoCookie — not an error, just an anonymous request
		return "", err
	}
	return tokens.Validate(cookie.Value)
}
