// internal/app/system/auth/middleware.go
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/impacthub/internal/app/system/apperr"
	"github.com/dalemusser/impacthub/internal/app/system/respond"
	"github.com/dalemusser/impacthub/internal/app/system/timeouts"
	"github.com/dalemusser/impacthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// UserFetcher loads a live (non-deleted) user by id. It returns
// mongo.ErrNoDocuments when no such user exists.
type UserFetcher interface {
	GetActiveByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Middleware resolves bearer tokens to users.
type Middleware struct {
	tokens *Tokens
	users  UserFetcher
	log    *zap.Logger
}

// NewMiddleware creates the authentication gate.
func NewMiddleware(tokens *Tokens, users UserFetcher, log *zap.Logger) *Middleware {
	return &Middleware{tokens: tokens, users: users, log: log}
}

// Require rejects the request with 401 unless it carries a valid token for
// a live user, which is then attached to the request context.
func (m *Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := m.resolve(r)
		if err != nil {
			respond.Error(w, r, m.log, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// Optional attaches the user when a valid token is present and lets
// anonymous requests through. A present but invalid token is still a 401.
func (m *Middleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			next.ServeHTTP(w, r)
			return
		}
		m.Require(next).ServeHTTP(w, r)
	})
}

func (m *Middleware) resolve(r *http.Request) (*models.User, error) {
	raw, ok := bearer(r)
	if !ok {
		return nil, apperr.Unauthenticated("authorization header must be Bearer {token}")
	}

	claims, err := m.tokens.Parse(raw)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.Authentication, "invalid or expired token")
	}
	id, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return nil, apperr.Unauthenticated("invalid token subject")
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := m.users.GetActiveByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.Unauthenticated("user no longer exists")
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// RequireRole rejects with 403 unless the authenticated user's role is in
// allowed. It must run after Require; without a user it answers 401.
func RequireRole(log *zap.Logger, allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				respond.Error(w, r, log, apperr.Unauthenticated("authentication required"))
				return
			}
			if _, has := set[u.Role]; !has {
				respond.Error(w, r, log, apperr.Forbidden("you do not have permission to perform this action"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
