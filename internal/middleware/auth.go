package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Subash-08/loke-store-sub001/internal/domain"
)

const (
	// UserIDContextKey is the context key for the authenticated user id
	UserIDContextKey contextKey = "user_id"
)

// TokenVerifier resolves a bearer token to a user id. Production wires a
// real identity provider; tests use a static map.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// TokenVerifierFunc adapts a function to the TokenVerifier interface.
type TokenVerifierFunc func(ctx context.Context, token string) (string, error)

func (f TokenVerifierFunc) Verify(ctx context.Context, token string) (string, error) {
	return f(ctx, token)
}

// StaticTokens is a fixed token-to-user mapping for development servers
// and tests.
func StaticTokens(tokens map[string]string) TokenVerifier {
	return TokenVerifierFunc(func(_ context.Context, token string) (string, error) {
		userID, ok := tokens[token]
		if !ok {
			return "", domain.ErrUnauthorized
		}
		return userID, nil
	})
}

// RequireUser authenticates the request via its Authorization header and
// stores the resolved user id in the context. Requests without a valid
// bearer token are rejected with 401.
func RequireUser(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				respondUnauthorized(w, r)
				return
			}

			userID, err := verifier.Verify(r.Context(), token)
			if err != nil || userID == "" {
				respondUnauthorized(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID retrieves the authenticated user id from the request context.
// Returns an empty string if the request is unauthenticated.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDContextKey).(string); ok {
		return id
	}
	return ""
}

// bearerToken extracts the token from an "Authorization: Bearer x" header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
