package testutil

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/impacthub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the plaintext credential of every fixture user.
const TestPassword = "volunteer-42"

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
// Repeated calls accumulate parameters on the same route context.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

var passwordHash string

func testPasswordHash(t *testing.T) string {
	if passwordHash == "" {
		h, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("failed to hash test password: %v", err)
		}
		passwordHash = string(h)
	}
	return passwordHash
}

// CreateUser inserts a live user with the given role. The password is
// TestPassword.
func (f *Fixtures) CreateUser(ctx context.Context, name, email, role string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:           primitive.NewObjectID(),
		Name:         name,
		NameCI:       text.Fold(name),
		Email:        strings.ToLower(email),
		PasswordHash: testPasswordHash(f.t),
		Role:         role,
		Level:        1,
		Badges:       []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateAdmin inserts an ADMIN user.
func (f *Fixtures) CreateAdmin(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, name, email, models.RoleAdmin)
}

// CreateNGOAdmin inserts a verified NGO_ADMIN user.
func (f *Fixtures) CreateNGOAdmin(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	u := f.CreateUser(ctx, name, email, models.RoleNGOAdmin)
	if _, err := f.db.Collection("users").UpdateByID(ctx, u.ID, bson.M{"$set": bson.M{"verified": true}}); err != nil {
		f.t.Fatalf("failed to verify test ngo admin: %v", err)
	}
	u.Verified = true
	return u
}

// CreateNGO inserts a PENDING NGO owned by createdBy.
func (f *Fixtures) CreateNGO(ctx context.Context, name, email, regNum string, createdBy primitive.ObjectID) models.NGO {
	f.t.Helper()

	now := time.Now().UTC()
	n := models.NGO{
		ID:                 primitive.NewObjectID(),
		Name:               name,
		NameCI:             text.Fold(name),
		Email:              strings.ToLower(email),
		RegistrationNumber: regNum,
		Location:           "Test City",
		FocusAreas:         []string{},
		VerificationStatus: models.NGOPending,
		CreatedBy:          createdBy,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if _, err := f.db.Collection("ngos").InsertOne(ctx, n); err != nil {
		f.t.Fatalf("failed to create test ngo: %v", err)
	}
	return n
}

// CreateEvent inserts a PUBLISHED event for ngo starting tomorrow. A
// capacity of 0 means unlimited.
func (f *Fixtures) CreateEvent(ctx context.Context, title string, ngo, createdBy primitive.ObjectID, capacity int) models.Event {
	f.t.Helper()

	now := time.Now().UTC()
	ev := models.Event{
		ID:        primitive.NewObjectID(),
		NGO:       ngo,
		CreatedBy: createdBy,
		Title:     title,
		TitleCI:   text.Fold(title),
		Category:  "Environment",
		Tags:      []string{},
		DateStart: now.Add(24 * time.Hour),
		Status:    models.EventPublished,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if capacity > 0 {
		ev.MaxCapacity = &capacity
	}
	if _, err := f.db.Collection("events").InsertOne(ctx, ev); err != nil {
		f.t.Fatalf("failed to create test event: %v", err)
	}
	return ev
}

// CreateParticipation inserts an active participation with the given
// status.
func (f *Fixtures) CreateParticipation(ctx context.Context, user, event primitive.ObjectID, status string) models.Participation {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Participation{
		ID:           primitive.NewObjectID(),
		User:         user,
		Event:        event,
		RegisteredAt: now,
		Status:       status,
		BadgesEarned: []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := f.db.Collection("participations").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test participation: %v", err)
	}
	return p
}

// CreateReport inserts an active verification report for ngo.
func (f *Fixtures) CreateReport(ctx context.Context, ngo, reviewer primitive.ObjectID, score int, status string) models.VerificationReport {
	f.t.Helper()

	now := time.Now().UTC()
	rep := models.VerificationReport{
		ID:               primitive.NewObjectID(),
		NGO:              ngo,
		CredibilityScore: score,
		RedFlags:         []models.RedFlag{},
		ReviewedBy:       reviewer,
		Status:           status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if _, err := f.db.Collection("verification_reports").InsertOne(ctx, rep); err != nil {
		f.t.Fatalf("failed to create test report: %v", err)
	}
	return rep
}
