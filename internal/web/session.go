package web

import (
	"context"
	"net/http"
	"strings"
)

type sessionKey struct{}

// RequireAuth resolves the bearer token on the request to a user ID and
// stores it in the request context. Requests without a valid token stop here
// with 401.
func (h *Handlers) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := h.auth.Authenticate(bearerToken(r))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
	})
}

// UserID returns the authenticated user ID stored by RequireAuth.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, userID)
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
