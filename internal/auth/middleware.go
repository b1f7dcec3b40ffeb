package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"gastos/internal/core"
)

type contextKey struct{}

// TokenVerifier resolves a bearer token to a user id. *Credentials implements it.
type TokenVerifier interface {
	VerifyToken(token string) (int64, error)
}

func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserID returns the authenticated caller stored by Middleware.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(contextKey{}).(int64)
	return id, ok
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("%w: missing authorization header", core.ErrUnauthorized)
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", fmt.Errorf("%w: malformed authorization header", core.ErrUnauthorized)
	}
	return token, nil
}

// Middleware rejects requests without a valid bearer token, calling onFail
// instead of next. The caller's id is available to next through UserID.
func Middleware(verifier TokenVerifier, onFail func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r)
			if err != nil {
				onFail(w, r, err)
				return
			}
			userID, err := verifier.VerifyToken(token)
			if err != nil {
				onFail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
