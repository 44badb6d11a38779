// internal/app/features/admin/service.go
package admin

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/impacthub/internal/app/policy/accesspolicy"
	"github.com/dalemusser/impacthub/internal/app/store/audit"
	userstore "github.com/dalemusser/impacthub/internal/app/store/users"
	"github.com/dalemusser/impacthub/internal/app/system/apperr"
	"github.com/dalemusser/impacthub/internal/app/system/authutil"
	"github.com/dalemusser/impacthub/internal/app/system/cascade"
	"github.com/dalemusser/impacthub/internal/app/system/inputval"
	"github.com/dalemusser/impacthub/internal/app/system/normalize"
	"github.com/dalemusser/impacthub/internal/app/system/paging"
	"github.com/dalemusser/impacthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Service implements admin user management and the audit trail.
type Service struct {
	users    *userstore.Store
	audit    *audit.Store
	cascades *cascade.Engine
	now      func() time.Time
}

func NewService(db *mongo.Database, cascades *cascade.Engine) *Service {
	return &Service{
		users:    userstore.New(db),
		audit:    audit.New(db),
		cascades: cascades,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var errNotFound = apperr.Missing("User not found")

func allowed(op accesspolicy.Operation, actor *models.User) error {
	if d := accesspolicy.Evaluate(op, actor); !d.Allowed {
		return d.Denied()
	}
	return nil
}

func (s *Service) target(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.User, error) {
	if err := allowed(accesspolicy.AdminUsers, actor); err != nil {
		return nil, err
	}
	u, err := s.users.GetActiveByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errNotFound
	}
	return u, err
}

// ListFilter narrows the user list.
type ListFilter struct {
	Search string
	Role   string
}

// ListUsers returns one page of live users, newest first.
func (s *Service) ListUsers(ctx context.Context, actor *models.User, f ListFilter, p paging.Params) (paging.Result[models.User], error) {
	if err := allowed(accesspolicy.AdminUsers, actor); err != nil {
		return paging.Result[models.User]{}, err
	}
	rows, total, err := s.users.List(ctx, userstore.ListFilter{
		Search: f.Search,
		Role:   normalize.Role(f.Role),
	}, p)
	if err != nil {
		return paging.Result[models.User]{}, err
	}
	return paging.NewResult(rows, p, total), nil
}

// Stats returns the user counters.
func (s *Service) Stats(ctx context.Context, actor *models.User) (userstore.Stats, error) {
	if err := allowed(accesspolicy.AdminUsers, actor); err != nil {
		return userstore.Stats{}, err
	}
	return s.users.Stats(ctx, s.now())
}

// GetUser returns a live user.
func (s *Service) GetUser(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.User, error) {
	return s.target(ctx, actor, id)
}

// Promote turns a USER into an unverified NGO_ADMIN.
func (s *Service) Promote(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.User, error) {
	u, err := s.target(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	switch u.Role {
	case models.RoleNGOAdmin:
		return nil, apperr.Conflicting("User is already an NGO Admin")
	case models.RoleAdmin:
		return nil, apperr.Conflicting("Cannot demote an Admin")
	}
	out, err := s.users.SetRole(ctx, id, models.RoleUser, models.RoleNGOAdmin, false)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Role changed or user deleted since the read.
		return nil, apperr.Conflicting("User can no longer be promoted")
	}
	return out, err
}

// VerifyNGOAdmin marks an NGO_ADMIN verified.
func (s *Service) VerifyNGOAdmin(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.User, error) {
	u, err := s.target(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if u.Role != models.RoleNGOAdmin {
		return nil, apperr.Invalid("User is not an NGO Admin")
	}
	out, err := s.users.SetVerified(ctx, id, models.RoleNGOAdmin, true)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errNotFound
	}
	return out, err
}

// UpdateInput is the body of PUT /api/admin/users/{id}. Email and password
// are not accepted here.
type UpdateInput struct {
	Name      *string  `json:"name"`
	Phone     *string  `json:"phone"`
	Bio       *string  `json:"bio"`
	Location  *string  `json:"location"`
	Interests []string `json:"interests"`
	Avatar    *string  `json:"avatar"`
	Role      *string  `json:"role"`
	Verified  *bool    `json:"verified"`
}

// fields lists the JSON names present in the input, for the audit trail.
func (in UpdateInput) fields() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(in.Name != nil, "name")
	add(in.Phone != nil, "phone")
	add(in.Bio != nil, "bio")
	add(in.Location != nil, "location")
	add(in.Interests != nil, "interests")
	add(in.Avatar != nil, "avatar")
	add(in.Role != nil, "role")
	add(in.Verified != nil, "verified")
	return out
}

// UpdateUser applies admin edits to a live user and reports which fields
// were supplied. The role of an ADMIN cannot be changed.
func (s *Service) UpdateUser(ctx context.Context, actor *models.User, id primitive.ObjectID, in UpdateInput) (*models.User, string, error) {
	u, err := s.target(ctx, actor, id)
	if err != nil {
		return nil, "", err
	}

	var v inputval.Errors
	if in.Name != nil {
		v.Required("name", *in.Name)
		v.MaxLen("name", *in.Name, 100)
	}
	if in.Bio != nil {
		v.MaxLen("bio", *in.Bio, 1000)
	}
	var role *string
	if in.Role != nil {
		r := normalize.Role(*in.Role)
		v.Add(!models.IsValidRole(r), "role must be USER, NGO_ADMIN or ADMIN")
		role = &r
	}
	if err := v.Err(); err != nil {
		return nil, "", err
	}
	if role != nil && u.Role == models.RoleAdmin && *role != models.RoleAdmin {
		return nil, "", apperr.Forbidden("Cannot change the role of an Admin")
	}

	out, err := s.users.UpdateByAdmin(ctx, id, userstore.AdminUpdate{
		ProfileUpdate: userstore.ProfileUpdate{
			Name:      in.Name,
			Phone:     in.Phone,
			Bio:       in.Bio,
			Location:  in.Location,
			Interests: in.Interests,
			Avatar:    in.Avatar,
		},
		Role:     role,
		Verified: in.Verified,
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, "", errNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return out, strings.Join(in.fields(), ","), nil
}

// DeleteUser soft-deletes a non-admin user with everything hanging off
// them, and returns the role the user had.
func (s *Service) DeleteUser(ctx context.Context, actor *models.User, id primitive.ObjectID) (string, error) {
	u, err := s.target(ctx, actor, id)
	if err != nil {
		return "", err
	}
	if u.Role == models.RoleAdmin {
		return "", apperr.Forbidden("Cannot delete admin users")
	}
	if err := s.cascades.DeleteUser(ctx, id, actor.ID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", errNotFound
		}
		return "", err
	}
	return u.Role, nil
}

// ResetPassword replaces a live user's credential.
func (s *Service) ResetPassword(ctx context.Context, actor *models.User, id primitive.ObjectID, password string) error {
	if err := allowed(accesspolicy.AdminUsers, actor); err != nil {
		return err
	}
	if err := authutil.ValidatePassword(password); err != nil {
		return apperr.Wrap(err, apperr.Validation, err.Error())
	}
	if _, err := s.users.GetActiveByID(ctx, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return errNotFound
		}
		return err
	}
	hash, err := authutil.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.users.SetPasswordHash(ctx, id, hash); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return errNotFound
		}
		return err
	}
	return nil
}

// AuditFilter narrows the audit trail. Dates are YYYY-MM-DD; the end date
// is inclusive.
type AuditFilter struct {
	Category  string
	EventType string
	User      string
	StartDate string
	EndDate   string
}

// Audit returns one page of audit events, newest first.
func (s *Service) Audit(ctx context.Context, actor *models.User, f AuditFilter, p paging.Params) (paging.Result[audit.Event], error) {
	var zero paging.Result[audit.Event]
	if err := allowed(accesspolicy.AdminAudit, actor); err != nil {
		return zero, err
	}

	qf := audit.QueryFilter{
		Category:  strings.ToLower(strings.TrimSpace(f.Category)),
		EventType: strings.ToLower(strings.TrimSpace(f.EventType)),
	}
	var v inputval.Errors
	if f.User != "" {
		oid, err := primitive.ObjectIDFromHex(f.User)
		v.Add(err != nil, "user must be a valid id")
		qf.UserID = &oid
	}
	if f.StartDate != "" {
		t, err := time.Parse("2006-01-02", f.StartDate)
		v.Add(err != nil, "start_date must be YYYY-MM-DD")
		qf.StartTime = &t
	}
	if f.EndDate != "" {
		t, err := time.Parse("2006-01-02", f.EndDate)
		v.Add(err != nil, "end_date must be YYYY-MM-DD")
		end := t.Add(24*time.Hour - time.Nanosecond)
		qf.EndTime = &end
	}
	if err := v.Err(); err != nil {
		return zero, err
	}

	rows, total, err := s.audit.Query(ctx, qf, p)
	if err != nil {
		return zero, err
	}
	return paging.NewResult(rows, p, total), nil
}
