package ngos_test

import (
	"testing"

	"github.com/dalemusser/impacthub/internal/app/features/ngos"
	"github.com/dalemusser/impacthub/internal/app/policy/accesspolicy"
	"github.com/dalemusser/impacthub/internal/app/system/apperr"
	"github.com/dalemusser/impacthub/internal/app/system/cascade"
	"github.com/dalemusser/impacthub/internal/app/system/paging"
	"github.com/dalemusser/impacthub/internal/app/system/txn"
	"github.com/dalemusser/impacthub/internal/domain/models"
	"github.com/dalemusser/impacthub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newService(t *testing.T) (*ngos.Service, *mongo.Database, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	testutil.EnsureSchema(t, db)

	engine := cascade.New(db, txn.New(db.Client(), zap.NewNop()), zap.NewNop())
	return ngos.NewService(db, engine), db, testutil.NewFixtures(t, db)
}

func ptr[T any](v T) *T { return &v }

func TestRegister(t *testing.T) {
	svc, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := fx.CreateNGOAdmin(ctx, "Bea", "bea@x.com")

	n, err := svc.Register(ctx, &owner, ngos.RegisterInput{
		Name:               "Helping Hands",
		Email:              "NGO@x.com",
		RegistrationNumber: "REG-1",
		FocusAreas:         []string{"Environment", "environment", " Youth "},
		Description:        "We **plant** trees.<script>alert(1)</script>",
	})
	require.NoError(t, err)
	assert.Equal(t, models.NGOPending, n.VerificationStatus)
	assert.Equal(t, owner.ID, n.CreatedBy)
	assert.Equal(t, "ngo@x.com", n.Email)
	assert.Equal(t, []string{"Environment", "Youth"}, n.FocusAreas)
	assert.Contains(t, n.DescriptionHTML, "<strong>plant</strong>")
	assert.NotContains(t, n.DescriptionHTML, "<script>")

	tests := []struct {
		name  string
		email string
		reg   string
	}{
		{"duplicate email", "ngo@x.com", "REG-2"},
		{"duplicate registration number", "other@x.com", "REG-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, &owner, ngos.RegisterInput{Name: "Copy", Email: tt.email, RegistrationNumber: tt.reg})
			if !apperr.Is(err, apperr.Validation) {
				t.Fatalf("Register = %v, want validation error", err)
			}
		})
	}

	_, err = svc.Register(ctx, &owner, ngos.RegisterInput{Name: "", Email: "bad", RegistrationNumber: ""})
	assert.True(t, apperr.Is(err, apperr.Validation))
}

func TestRegister_AfterDeleteReusesIdentity(t *testing.T) {
	svc, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := fx.CreateNGOAdmin(ctx, "Bea", "bea@x.com")

	n, err := svc.Register(ctx, &owner, ngos.RegisterInput{Name: "A", Email: "a@ngo.org", RegistrationNumber: "R-1"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, &owner, n.ID))

	_, err = svc.Register(ctx, &owner, ngos.RegisterInput{Name: "A again", Email: "a@ngo.org", RegistrationNumber: "R-1"})
	assert.NoError(t, err)
}

func TestRegister_ConfigurableRoles(t *testing.T) {
	svc, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	user := fx.CreateUser(ctx, "Vol", "vol@x.com", models.RoleUser)

	prev := accesspolicy.Roles(accesspolicy.NGORegister)
	accesspolicy.SetRoles(accesspolicy.NGORegister, []string{models.RoleNGOAdmin, models.RoleAdmin})
	t.Cleanup(func() { accesspolicy.SetRoles(accesspolicy.NGORegister, prev) })

	_, err := svc.Register(ctx, &user, ngos.RegisterInput{Name: "N", Email: "n@x.com", RegistrationNumber: "R"})
	assert.True(t, apperr.Is(err, apperr.Authorization), "got %v", err)
}

func TestUpdate(t *testing.T) {
	svc, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := fx.CreateNGOAdmin(ctx, "Bea", "bea@x.com")
	other := fx.CreateNGOAdmin(ctx, "Cy", "cy@x.com")
	admin := fx.CreateAdmin(ctx, "Ada", "ada@x.com")
	n := fx.CreateNGO(ctx, "Helping Hands", "ngo@x.com", "REG-1", owner.ID)
	fx.CreateNGO(ctx, "Other", "other@x.com", "REG-2", other.ID)

	got, err := svc.Update(ctx, &owner, n.ID, ngos.UpdateInput{
		Location:           ptr("Lagos"),
		Description:        ptr("# About"),
		VerificationStatus: ptr(models.NGOVerified),
	})
	require.NoError(t, err)
	assert.Equal(t, "Lagos", got.Location)
	assert.Equal(t, models.NGOPending, got.VerificationStatus, "owner cannot self-verify")
	assert.Contains(t, got.DescriptionHTML, "<h1")

	_, err = svc.Update(ctx, &other, n.ID, ngos.UpdateInput{Location: ptr("Abuja")})
	assert.True(t, apperr.Is(err, apperr.Authorization), "got %v", err)

	_, err = svc.Update(ctx, &owner, n.ID, ngos.UpdateInput{Email: ptr("other@x.com")})
	assert.True(t, apperr.Is(err, apperr.Validation), "got %v", err)

	got, err = svc.Update(ctx, &admin, n.ID, ngos.UpdateInput{VerificationStatus: ptr("verified")})
	require.NoError(t, err)
	assert.Equal(t, models.NGOVerified, got.VerificationStatus)
}

func TestDelete_Cascades(t *testing.T) {
	svc, db, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := fx.CreateNGOAdmin(ctx, "Bea", "bea@x.com")
	stranger := fx.CreateNGOAdmin(ctx, "Cy", "cy@x.com")
	n := fx.CreateNGO(ctx, "Helping Hands", "ngo@x.com", "REG-1", owner.ID)

	const events, perEvent = 3, 2
	for i := 0; i < events; i++ {
		ev := fx.CreateEvent(ctx, "Event", n.ID, owner.ID, 0)
		for j := 0; j < perEvent; j++ {
			u := fx.CreateUser(ctx, "Vol", volEmail(i, j), models.RoleUser)
			fx.CreateParticipation(ctx, u.ID, ev.ID, models.ParticipationRegistered)
		}
	}

	err := svc.Delete(ctx, &stranger, n.ID)
	require.True(t, apperr.Is(err, apperr.Authorization), "got %v", err)

	require.NoError(t, svc.Delete(ctx, &owner, n.ID))

	live := func(coll string) int64 {
		c, err := db.Collection(coll).CountDocuments(ctx, bson.M{"is_deleted": false})
		require.NoError(t, err)
		return c
	}
	assert.Zero(t, live("ngos"))
	assert.Zero(t, live("events"))
	assert.Zero(t, live("participations"))

	_, err = svc.Get(ctx, n.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))
	err = svc.Delete(ctx, &owner, n.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound), "got %v", err)
}

func volEmail(i, j int) string {
	return "vol" + string(rune('a'+i)) + string(rune('a'+j)) + "@x.com"
}

func TestVerify(t *testing.T) {
	svc, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := fx.CreateNGOAdmin(ctx, "Bea", "bea@x.com")
	admin := fx.CreateAdmin(ctx, "Ada", "ada@x.com")
	n := fx.CreateNGO(ctx, "Helping Hands", "ngo@x.com", "REG-1", owner.ID)

	_, err := svc.Verify(ctx, &owner, n.ID)
	assert.True(t, apperr.Is(err, apperr.Authorization))

	got, err := svc.Verify(ctx, &admin, n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NGOVerified, got.VerificationStatus)
}

func TestList(t *testing.T) {
	svc, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := fx.CreateNGOAdmin(ctx, "Bea", "bea@x.com")
	for i, name := range []string{"Green Earth", "Food Bank", "Green Streets"} {
		fx.CreateNGO(ctx, name, volEmail(i, 0), "REG-"+name, owner.ID)
	}

	res, err := svc.List(ctx, ngos.ListFilter{Search: "green"}, paging.Normalize(1, 1, paging.DefaultLimit))
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Pagination.Total)
	assert.Len(t, res.Data, 1)
	assert.Equal(t, 1, res.Pagination.Limit)

	res, err = svc.List(ctx, ngos.ListFilter{CreatedBy: owner.ID.Hex(), Status: "pending"}, paging.Normalize(0, 0, paging.DefaultLimit))
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Pagination.Total)

	_, err = svc.List(ctx, ngos.ListFilter{CreatedBy: "nope"}, paging.Normalize(1, 10, 10))
	assert.True(t, apperr.Is(err, apperr.Validation))
}
