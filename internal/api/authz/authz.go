package authz

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

type AuthUser struct {
	ID             string
	Email          string
	EmailConfirmed bool
}

type userContextKey struct{}

func ContextWithUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext retrieves the AuthUser stored in ctx.
// It returns nil if ctx is nil, if no user is stored, or if the stored value
// has a different type.
func UserFromContext(ctx context.Context) *AuthUser {
	if ctx == nil {
		return nil
	}

	user, ok := ctx.Value(userContextKey{}).(*AuthUser)
	if !ok {
		return nil
	}

	return user
}

// RequireUser returns ErrUnauthenticated when no user is in ctx.
func RequireUser(ctx context.Context) (*AuthUser, error) {
	user := UserFromContext(ctx)
	if user == nil {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// CreatorID resolves the caller's creator identity. An authenticated session
// wins; otherwise the identity the browser persisted for anonymous creators
// is taken from the X-Creator-Id header or the creatorId query parameter.
// There is nothing to verify for the anonymous form, matching the original
// localStorage model.
func CreatorID(r *http.Request) string {
	if user := UserFromContext(r.Context()); user != nil {
		return user.ID
	}
	if id := strings.TrimSpace(r.Header.Get("X-Creator-Id")); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("creatorId"))
}

// CreatorNickname resolves the anonymous creator's nickname counterpart.
func CreatorNickname(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Creator-Nickname"))
}
