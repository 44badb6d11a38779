// internal/app/system/auth/context.go
package auth

import (
	"context"
	"net/http"

	"github.com/dalemusser/impacthub/internal/domain/models"
)

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the authenticated user & "found?" flag.
func CurrentUser(r *http.Request) (*models.User, bool) {
	return FromContext(r.Context())
}

// FromContext returns the user stored by the middleware.
func FromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(currentUserKey).(*models.User)
	return u, ok && u != nil
}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, currentUserKey, u)
}

// WithTestUser injects u into r's context, bypassing token checks.
// Only intended for tests.
func WithTestUser(r *http.Request, u *models.User) *http.Request {
	return r.WithContext(WithUser(r.Context(), u))
}
