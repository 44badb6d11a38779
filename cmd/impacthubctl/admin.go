package main

import (
	"context"
	"errors"
	"fmt"

	userstore "github.com/dalemusser/impacthub/internal/app/store/users"
	"github.com/dalemusser/impacthub/internal/app/system/authutil"
	"github.com/dalemusser/impacthub/internal/app/system/inputval"
	"github.com/dalemusser/impacthub/internal/app/system/normalize"
	"github.com/dalemusser/impacthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
)

var errUsage = errors.New("usage")

type adminInput struct {
	Name     string
	Email    string
	Password string
}

func (in adminInput) validate() error {
	var v inputval.Errors
	v.Required("name", in.Name)
	v.Required("email", in.Email)
	v.Email("email", in.Email)
	if err := v.Err(); err != nil {
		return err
	}
	return authutil.ValidatePassword(in.Password)
}

// createAdmin inserts a verified ADMIN account.
func createAdmin(ctx context.Context, db *mongo.Database, in adminInput) (models.User, error) {
	hash, err := authutil.HashPassword(in.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := userstore.New(db).Create(ctx, models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Verified:     true,
	})
	if errors.Is(err, userstore.ErrDuplicateEmail) {
		return models.User{}, fmt.Errorf("a user with email %s already exists; use promote", normalize.Email(in.Email))
	}
	return u, err
}

// promoteAdmin makes an existing live user a verified ADMIN.
func promoteAdmin(ctx context.Context, db *mongo.Database, email string) (*models.User, error) {
	users := userstore.New(db)
	u, err := users.GetActiveByEmail(ctx, normalize.Email(email))
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("no active user with email %s", email)
	}
	if err != nil {
		return nil, err
	}
	role := models.RoleAdmin
	verified := true
	return users.UpdateByAdmin(ctx, u.ID, userstore.AdminUpdate{Role: &role, Verified: &verified})
}
