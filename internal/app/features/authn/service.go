package authn

import (
	"context"
	"errors"
	"time"

	userstore "github.com/dalemusser/impacthub/internal/app/store/users"
	"github.com/dalemusser/impacthub/internal/app/system/apperr"
	"github.com/dalemusser/impacthub/internal/app/system/auth"
	"github.com/dalemusser/impacthub/internal/app/system/authutil"
	"github.com/dalemusser/impacthub/internal/app/system/inputval"
	"github.com/dalemusser/impacthub/internal/app/system/normalize"
	"github.com/dalemusser/impacthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrUnknownEmail and ErrWrongPassword are wrapped by the
	// authentication error Login returns; callers see one message.
	ErrUnknownEmail  = errors.New("unknown email")
	ErrWrongPassword = errors.New("wrong password")
)

const invalidCredentials = "invalid email or password"

// Service implements account self-service.
type Service struct {
	users  *userstore.Store
	tokens *auth.Tokens
	now    func() time.Time
}

func NewService(db *mongo.Database, tokens *auth.Tokens) *Service {
	return &Service{users: userstore.New(db), tokens: tokens, now: time.Now}
}

// Session is a signed token plus the profile it was issued for.
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// SignupInput is the body of POST /api/auth/signup.
type SignupInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func passwordError(err error) error {
	return apperr.Wrap(err, apperr.Validation, err.Error())
}

// Signup creates a USER account and signs it in.
func (s *Service) Signup(ctx context.Context, in SignupInput) (Session, error) {
	var v inputval.Errors
	v.Required("name", in.Name)
	v.MaxLen("name", in.Name, 100)
	v.Required("email", in.Email)
	v.Email("email", in.Email)
	if err := v.Err(); err != nil {
		return Session{}, err
	}
	if err := authutil.ValidatePassword(in.Password); err != nil {
		return Session{}, passwordError(err)
	}

	hash, err := authutil.HashPassword(in.Password)
	if err != nil {
		return Session{}, err
	}

	u, err := s.users.Create(ctx, models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         models.RoleUser,
	})
	if errors.Is(err, userstore.ErrDuplicateEmail) {
		return Session{}, apperr.Invalid("an account with this email already exists")
	}
	if err != nil {
		return Session{}, err
	}
	return s.session(&u)
}

// Login verifies credentials, records last_login, and issues a token.
// The returned user is set on wrong-password failures so callers can audit
// the attempt against the account.
func (s *Service) Login(ctx context.Context, email, password string) (Session, *models.User, error) {
	if normalize.Email(email) == "" || password == "" {
		return Session{}, nil, apperr.Invalid("email and password are required")
	}
	u, err := s.users.GetActiveByEmail(ctx, email)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Session{}, nil, apperr.Wrap(ErrUnknownEmail, apperr.Authentication, invalidCredentials)
	}
	if err != nil {
		return Session{}, nil, err
	}
	if !authutil.CheckPassword(password, u.PasswordHash) {
		return Session{}, u, apperr.Wrap(ErrWrongPassword, apperr.Authentication, invalidCredentials)
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		return Session{}, u, err
	}
	u.LastLogin = &now
	sess, err := s.session(u)
	return sess, u, err
}

func (s *Service) session(u *models.User) (Session, error) {
	tok, err := s.tokens.Issue(u)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: tok, User: u}, nil
}

// ProfileInput is the body of PUT /api/auth/profile. Only these fields can
// be changed; email, role and credential are ignored if sent.
type ProfileInput struct {
	Name      *string  `json:"name"`
	Phone     *string  `json:"phone"`
	Bio       *string  `json:"bio"`
	Location  *string  `json:"location"`
	Interests []string `json:"interests"`
	Avatar    *string  `json:"avatar"`
}

// UpdateProfile applies the actor's own profile changes.
func (s *Service) UpdateProfile(ctx context.Context, actor *models.User, in ProfileInput) (*models.User, error) {
	var v inputval.Errors
	if in.Name != nil {
		v.Required("name", *in.Name)
		v.MaxLen("name", *in.Name, 100)
	}
	if in.Bio != nil {
		v.MaxLen("bio", *in.Bio, 1000)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	return s.users.UpdateProfile(ctx, actor.ID, userstore.ProfileUpdate{
		Name:      in.Name,
		Phone:     in.Phone,
		Bio:       in.Bio,
		Location:  in.Location,
		Interests: in.Interests,
		Avatar:    in.Avatar,
	})
}

// ChangePassword replaces the actor's credential after checking the
// current one.
func (s *Service) ChangePassword(ctx context.Context, actor *models.User, current, next string) error {
	if !authutil.CheckPassword(current, actor.PasswordHash) {
		return apperr.Invalid("current password is incorrect")
	}
	if err := authutil.ValidatePassword(next); err != nil {
		return passwordError(err)
	}
	hash, err := authutil.HashPassword(next)
	if err != nil {
		return err
	}
	return s.users.SetPasswordHash(ctx, actor.ID, hash)
}

// Notifications returns the actor's notifications, newest first.
func (s *Service) Notifications(ctx context.Context, actor *models.User) ([]models.Notification, error) {
	u, err := s.users.GetActiveByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Notification, 0, len(u.Notifications))
	for i := len(u.Notifications) - 1; i >= 0; i-- {
		out = append(out, u.Notifications[i])
	}
	return out, nil
}

// MarkNotificationsRead marks all of the actor's notifications read.
func (s *Service) MarkNotificationsRead(ctx context.Context, actor *models.User) error {
	return s.users.MarkNotificationsRead(ctx, actor.ID)
}
