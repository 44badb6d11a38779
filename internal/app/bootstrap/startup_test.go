package bootstrap

import (
	"testing"

	auditstore "github.com/dalemusser/impacthub/internal/app/store/audit"
	"github.com/dalemusser/impacthub/internal/app/system/auditlog"
	"github.com/dalemusser/impacthub/internal/domain/models"
	"github.com/dalemusser/impacthub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func TestEnsureAdmin_PromotesExisting(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	u := fx.CreateUser(ctx, "Root", "root@example.org", models.RoleUser)
	audit := auditlog.New(auditstore.New(db), testLogger(), auditlog.Config{Auth: auditlog.All, Admin: auditlog.All})

	require.NoError(t, ensureAdmin(ctx, db, audit, "root@example.org", testLogger()))

	var got models.User
	require.NoError(t, db.Collection("users").FindOne(ctx, bson.M{"_id": u.ID}).Decode(&got))
	assert.Equal(t, models.RoleAdmin, got.Role)
	assert.True(t, got.Verified)

	n, err := db.Collection("audit_events").CountDocuments(ctx, bson.M{"user_id": u.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestEnsureAdmin_AlreadyAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	u := fx.CreateAdmin(ctx, "Root", "root@example.org")
	audit := auditlog.New(auditstore.New(db), testLogger(), auditlog.Config{Auth: auditlog.All, Admin: auditlog.All})

	require.NoError(t, ensureAdmin(ctx, db, audit, "root@example.org", testLogger()))

	n, err := db.Collection("audit_events").CountDocuments(ctx, bson.M{"user_id": u.ID})
	require.NoError(t, err)
	assert.Zero(t, n, "no promotion means nothing to audit")
}

func TestEnsureAdmin_MissingOrBlank(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	require.NoError(t, ensureAdmin(ctx, db, nil, "", testLogger()))
	require.NoError(t, ensureAdmin(ctx, db, nil, "nobody@example.org", testLogger()))

	n, err := db.Collection("users").CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.Zero(t, n, "a missing account is never created")
}
