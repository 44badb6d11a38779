package admin_test

import (
	"testing"

	"github.com/dalemusser/impacthub/internal/app/features/admin"
	eventstore "github.com/dalemusser/impacthub/internal/app/store/events"
	ngostore "github.com/dalemusser/impacthub/internal/app/store/ngos"
	participationstore "github.com/dalemusser/impacthub/internal/app/store/participations"
	userstore "github.com/dalemusser/impacthub/internal/app/store/users"
	"github.com/dalemusser/impacthub/internal/app/system/apperr"
	"github.com/dalemusser/impacthub/internal/app/system/authutil"
	"github.com/dalemusser/impacthub/internal/app/system/cascade"
	"github.com/dalemusser/impacthub/internal/app/system/paging"
	"github.com/dalemusser/impacthub/internal/app/system/txn"
	"github.com/dalemusser/impacthub/internal/domain/models"
	"github.com/dalemusser/impacthub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type world struct {
	svc   *admin.Service
	db    *mongo.Database
	fx    *testutil.Fixtures
	admin models.User
}

func setup(t *testing.T) world {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	testutil.EnsureSchema(t, db)

	runner := txn.New(db.Client(), zap.NewNop())
	fx := testutil.NewFixtures(t, db)
	return world{
		svc:   admin.NewService(db, cascade.New(db, runner, zap.NewNop())),
		db:    db,
		fx:    fx,
		admin: fx.CreateAdmin(ctx, "Ada", "ada@x.com"),
	}
}

func ptr[T any](v T) *T { return &v }

func TestPromote(t *testing.T) {
	w := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	vol := w.fx.CreateUser(ctx, "Vol", "vol@x.com", models.RoleUser)

	u, err := w.svc.Promote(ctx, &w.admin, vol.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleNGOAdmin, u.Role)
	assert.False(t, u.Verified)

	_, err = w.svc.Promote(ctx, &w.admin, vol.ID)
	assert.True(t, apperr.Is(err, apperr.Conflict), "already ngo admin: %v", err)

	_, err = w.svc.Promote(ctx, &w.admin, w.admin.ID)
	assert.True(t, apperr.Is(err, apperr.Conflict), "admin target: %v", err)

	_, err = w.svc.Promote(ctx, &w.admin, primitive.NewObjectID())
	assert.True(t, apperr.Is(err, apperr.NotFound), "unknown: %v", err)

	_, err = w.svc.Promote(ctx, &vol, vol.ID)
	assert.True(t, apperr.Is(err, apperr.Authorization), "non-admin actor: %v", err)
}

func TestVerifyNGOAdmin(t *testing.T) {
	w := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	vol := w.fx.CreateUser(ctx, "Vol", "vol@x.com", models.RoleUser)
	pending := w.fx.CreateUser(ctx, "Bea", "bea@x.com", models.RoleNGOAdmin)

	_, err := w.svc.VerifyNGOAdmin(ctx, &w.admin, vol.ID)
	assert.True(t, apperr.Is(err, apperr.Validation), "not ngo admin: %v", err)

	u, err := w.svc.VerifyNGOAdmin(ctx, &w.admin, pending.ID)
	require.NoError(t, err)
	assert.True(t, u.Verified)
}

func TestUpdateUser(t *testing.T) {
	w := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	vol := w.fx.CreateUser(ctx, "Vol", "vol@x.com", models.RoleUser)
	other := w.fx.CreateAdmin(ctx, "Root", "root@x.com")

	u, fields, err := w.svc.UpdateUser(ctx, &w.admin, vol.ID, admin.UpdateInput{
		Name: ptr("Valerie"), Role: ptr("ngo_admin"), Verified: ptr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "Valerie", u.Name)
	assert.Equal(t, models.RoleNGOAdmin, u.Role)
	assert.True(t, u.Verified)
	assert.Equal(t, "vol@x.com", u.Email)
	assert.Equal(t, "name,role,verified", fields)

	_, _, err = w.svc.UpdateUser(ctx, &w.admin, other.ID, admin.UpdateInput{Role: ptr(models.RoleUser)})
	assert.True(t, apperr.Is(err, apperr.Authorization), "admin role change: %v", err)

	u, _, err = w.svc.UpdateUser(ctx, &w.admin, other.ID, admin.UpdateInput{Bio: ptr("ops")})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)

	_, _, err = w.svc.UpdateUser(ctx, &w.admin, vol.ID, admin.UpdateInput{Role: ptr("OWNER")})
	assert.True(t, apperr.Is(err, apperr.Validation), "unknown role: %v", err)
}

func TestDeleteUser_Cascades(t *testing.T) {
	w := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := w.fx.CreateNGOAdmin(ctx, "Bea", "bea@x.com")
	ngo := w.fx.CreateNGO(ctx, "Helping Hands", "ngo@x.com", "REG-1", owner.ID)
	ev := w.fx.CreateEvent(ctx, "Cleanup", ngo.ID, owner.ID, 0)
	vol := w.fx.CreateUser(ctx, "Vol", "vol@x.com", models.RoleUser)
	p := w.fx.CreateParticipation(ctx, vol.ID, ev.ID, models.ParticipationRegistered)

	role, err := w.svc.DeleteUser(ctx, &w.admin, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleNGOAdmin, role)

	_, err = ngostore.New(w.db).GetActiveByID(ctx, ngo.ID)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
	_, err = eventstore.New(w.db).GetActiveByID(ctx, ev.ID)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
	_, err = participationstore.New(w.db).GetActiveByID(ctx, p.ID)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)

	_, err = w.svc.DeleteUser(ctx, &w.admin, owner.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound), "second delete: %v", err)

	_, err = w.svc.DeleteUser(ctx, &w.admin, w.admin.ID)
	assert.True(t, apperr.Is(err, apperr.Authorization), "admin target: %v", err)

	_, err = w.svc.GetUser(ctx, &w.admin, vol.ID)
	assert.NoError(t, err, "participants of deleted events stay")
}

func TestResetPassword(t *testing.T) {
	w := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	vol := w.fx.CreateUser(ctx, "Vol", "vol@x.com", models.RoleUser)

	err := w.svc.ResetPassword(ctx, &w.admin, vol.ID, "abc")
	assert.True(t, apperr.Is(err, apperr.Validation), "too short: %v", err)

	err = w.svc.ResetPassword(ctx, &w.admin, primitive.NewObjectID(), "brand-new-pass")
	assert.True(t, apperr.Is(err, apperr.NotFound), "unknown: %v", err)

	require.NoError(t, w.svc.ResetPassword(ctx, &w.admin, vol.ID, "brand-new-pass"))
	u, err := userstore.New(w.db).GetByID(ctx, vol.ID)
	require.NoError(t, err)
	assert.True(t, authutil.CheckPassword("brand-new-pass", u.PasswordHash))
	assert.False(t, authutil.CheckPassword(testutil.TestPassword, u.PasswordHash))
}

func TestListUsersAndStats(t *testing.T) {
	w := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	w.fx.CreateUser(ctx, "Alice", "alice@x.com", models.RoleUser)
	w.fx.CreateUser(ctx, "Bob", "bob@x.com", models.RoleUser)
	w.fx.CreateNGOAdmin(ctx, "Bea", "bea@x.com")
	w.fx.CreateUser(ctx, "Cy", "cy@x.com", models.RoleNGOAdmin)

	p := paging.Normalize(0, 0, paging.AdminDefaultLimit)
	assert.Equal(t, 50, p.Limit)

	all, err := w.svc.ListUsers(ctx, &w.admin, admin.ListFilter{}, p)
	require.NoError(t, err)
	assert.EqualValues(t, 5, all.Pagination.Total)

	ngoAdmins, err := w.svc.ListUsers(ctx, &w.admin, admin.ListFilter{Role: "ngo_admin"}, p)
	require.NoError(t, err)
	assert.EqualValues(t, 2, ngoAdmins.Pagination.Total)

	found, err := w.svc.ListUsers(ctx, &w.admin, admin.ListFilter{Search: "ALI"}, p)
	require.NoError(t, err)
	require.Len(t, found.Data, 1)
	assert.Equal(t, "Alice", found.Data[0].Name)

	st, err := w.svc.Stats(ctx, &w.admin)
	require.NoError(t, err)
	assert.EqualValues(t, 5, st.TotalUsers)
	assert.EqualValues(t, 2, st.NGOAdmins)
	assert.EqualValues(t, 1, st.VerifiedNGOAdmins)
	assert.EqualValues(t, 5, st.RecentUsers)
}
