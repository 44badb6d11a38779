package cascade_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/impacthub/internal/app/system/cascade"
	"github.com/dalemusser/impacthub/internal/app/system/txn"
	"github.com/dalemusser/impacthub/internal/domain/models"
	"github.com/dalemusser/impacthub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func countLive(t *testing.T, db *mongo.Database, coll string, filter bson.M) int64 {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	filter["is_deleted"] = false
	n, err := db.Collection(coll).CountDocuments(ctx, filter)
	if err != nil {
		t.Fatalf("count %s: %v", coll, err)
	}
	return n
}

func newEngine(t *testing.T, db *mongo.Database) *cascade.Engine {
	t.Helper()
	return cascade.New(db, txn.New(testutil.SetupTestClient(t), zap.NewNop()), zap.NewNop())
}

func TestDeleteNGO_CascadesEventsAndParticipations(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	engine := newEngine(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fixtures.CreateUser(ctx, "Owner", "owner@example.org", models.RoleNGOAdmin)
	ngo := fixtures.CreateNGO(ctx, "Helping Hands", "hh@example.org", "HH-1", owner.ID)
	other := fixtures.CreateNGO(ctx, "Other", "o@example.org", "O-1", owner.ID)
	otherEvent := fixtures.CreateEvent(ctx, "Other Event", other.ID, owner.ID, 0)
	fixtures.CreateParticipation(ctx, primitive.NewObjectID(), otherEvent.ID, models.ParticipationRegistered)

	const k, m = 3, 4
	for i := 0; i < k; i++ {
		ev := fixtures.CreateEvent(ctx, "Event", ngo.ID, owner.ID, 0)
		for j := 0; j < m; j++ {
			fixtures.CreateParticipation(ctx, primitive.NewObjectID(), ev.ID, models.ParticipationRegistered)
		}
	}

	if err := engine.DeleteNGO(ctx, ngo.ID, owner.ID); err != nil {
		t.Fatalf("DeleteNGO failed: %v", err)
	}

	if n := countLive(t, db, "ngos", bson.M{"_id": ngo.ID}); n != 0 {
		t.Errorf("NGO still live")
	}
	if n := countLive(t, db, "events", bson.M{"ngo": ngo.ID}); n != 0 {
		t.Errorf("%d events still live", n)
	}
	if n := countLive(t, db, "participations", bson.M{}); n != 1 {
		t.Errorf("%d participations live, want only the other NGO's 1", n)
	}
	deleted, err := db.Collection("participations").CountDocuments(ctx, bson.M{"is_deleted": true})
	if err != nil {
		t.Fatalf("count deleted: %v", err)
	}
	if deleted != k*m {
		t.Errorf("%d participations deleted, want %d", deleted, k*m)
	}

	if err := engine.DeleteNGO(ctx, ngo.ID, owner.ID); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("second DeleteNGO = %v, want ErrNoDocuments", err)
	}
	if n, _ := db.Collection("cascade_journal").CountDocuments(ctx, bson.M{"state": models.CascadePending}); n != 0 {
		t.Errorf("%d journal entries left pending", n)
	}
}

func TestDeleteUser_NGOAdminCascade(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	engine := newEngine(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fixtures.CreateAdmin(ctx, "Admin", "admin@example.org")
	owner := fixtures.CreateUser(ctx, "Owner", "owner@example.org", models.RoleNGOAdmin)
	ngo := fixtures.CreateNGO(ctx, "Mine", "m@example.org", "M-1", owner.ID)
	ev := fixtures.CreateEvent(ctx, "Mine Event", ngo.ID, owner.ID, 0)
	fixtures.CreateParticipation(ctx, primitive.NewObjectID(), ev.ID, models.ParticipationRegistered)

	elsewhere := fixtures.CreateEvent(ctx, "Elsewhere", primitive.NewObjectID(), admin.ID, 0)
	fixtures.CreateParticipation(ctx, owner.ID, elsewhere.ID, models.ParticipationRegistered)

	if err := engine.DeleteUser(ctx, owner.ID, admin.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if n := countLive(t, db, "users", bson.M{"_id": owner.ID}); n != 0 {
		t.Error("user still live")
	}
	if n := countLive(t, db, "ngos", bson.M{}); n != 0 {
		t.Errorf("%d NGOs still live", n)
	}
	if n := countLive(t, db, "events", bson.M{"_id": ev.ID}); n != 0 {
		t.Error("owned event still live")
	}
	if n := countLive(t, db, "events", bson.M{"_id": elsewhere.ID}); n != 1 {
		t.Error("unrelated event was deleted")
	}
	if n := countLive(t, db, "participations", bson.M{}); n != 0 {
		t.Errorf("%d participations still live", n)
	}
}

func TestDeleteUser_VolunteerKeepsRegisteredNGO(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	engine := newEngine(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fixtures.CreateAdmin(ctx, "Admin", "admin@example.org")
	vol := fixtures.CreateUser(ctx, "Vol", "vol@example.org", models.RoleUser)
	ngo := fixtures.CreateNGO(ctx, "Registered By Vol", "r@example.org", "R-1", vol.ID)
	ev := fixtures.CreateEvent(ctx, "Run By Admin", ngo.ID, admin.ID, 0)
	fixtures.CreateParticipation(ctx, vol.ID, ev.ID, models.ParticipationRegistered)
	fixtures.CreateParticipation(ctx, primitive.NewObjectID(), ev.ID, models.ParticipationRegistered)

	if err := engine.DeleteUser(ctx, vol.ID, admin.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if n := countLive(t, db, "users", bson.M{"_id": vol.ID}); n != 0 {
		t.Error("user still live")
	}
	if n := countLive(t, db, "participations", bson.M{"user": vol.ID}); n != 0 {
		t.Errorf("%d of the user's participations still live", n)
	}
	if n := countLive(t, db, "ngos", bson.M{"_id": ngo.ID}); n != 1 {
		t.Error("NGO registered by a USER was deleted")
	}
	if n := countLive(t, db, "events", bson.M{"_id": ev.ID}); n != 1 {
		t.Error("event under that NGO was deleted")
	}
	if n := countLive(t, db, "participations", bson.M{"event": ev.ID}); n != 1 {
		t.Errorf("%d participations live at the event, want 1", n)
	}
}

func TestDeleteEvent_RolledBackAttemptIsAbandoned(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	runner := txn.New(testutil.SetupTestClient(t), zap.NewNop())
	engine := cascade.New(db, runner, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fixtures.CreateUser(ctx, "Owner", "owner@example.org", models.RoleNGOAdmin)
	ngo := fixtures.CreateNGO(ctx, "Helping Hands", "hh@example.org", "HH-1", owner.ID)
	ev := fixtures.CreateEvent(ctx, "Cleanup", ngo.ID, owner.ID, 0)
	fixtures.CreateParticipation(ctx, primitive.NewObjectID(), ev.ID, models.ParticipationRegistered)

	// Make the participation step fail after the event step has run.
	if err := db.RunCommand(ctx, bson.D{
		{Key: "collMod", Value: "participations"},
		{Key: "validator", Value: bson.M{"is_deleted": false}},
		{Key: "validationLevel", Value: "strict"},
		{Key: "validationAction", Value: "error"},
	}).Err(); err != nil {
		t.Fatalf("collMod: %v", err)
	}

	if err := engine.DeleteEvent(ctx, ev.ID, owner.ID); err == nil {
		t.Fatal("DeleteEvent succeeded, want the participation step to fail")
	}
	if !runner.Transactional() {
		t.Skip("deployment has no transactions; a failed attempt stays pending for Resume")
	}

	if n := countLive(t, db, "events", bson.M{"_id": ev.ID}); n != 1 {
		t.Fatal("event deleted although the transaction aborted")
	}
	var entry models.CascadeEntry
	if err := db.Collection("cascade_journal").FindOne(ctx, bson.M{"root_id": ev.ID}).Decode(&entry); err != nil {
		t.Fatalf("load journal entry: %v", err)
	}
	if entry.State != models.CascadeAbandoned {
		t.Errorf("journal state = %q, want %q", entry.State, models.CascadeAbandoned)
	}
	if entry.LastError == "" {
		t.Error("journal entry has no last_error")
	}

	done, err := engine.Resume(ctx, 0, 10)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if done != 0 {
		t.Errorf("Resume completed %d entries, want 0", done)
	}
	if n := countLive(t, db, "events", bson.M{"_id": ev.ID}); n != 1 {
		t.Error("Resume applied an abandoned cascade")
	}
}

func TestResume_RollsForwardPendingEntry(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	engine := newEngine(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := primitive.NewObjectID()
	ngo := fixtures.CreateNGO(ctx, "Half", "h@example.org", "H-1", owner)
	ev := fixtures.CreateEvent(ctx, "Half Event", ngo.ID, owner, 0)
	fixtures.CreateParticipation(ctx, primitive.NewObjectID(), ev.ID, models.ParticipationRegistered)

	// Simulate a crash after the root was deleted but before children.
	if _, err := db.Collection("ngos").UpdateByID(ctx, ngo.ID, bson.M{"$set": bson.M{"is_deleted": true}}); err != nil {
		t.Fatalf("delete root: %v", err)
	}
	past := time.Now().UTC().Add(-time.Hour)
	if _, err := db.Collection("cascade_journal").InsertOne(ctx, models.CascadeEntry{
		ID: primitive.NewObjectID(), Kind: models.CascadeNGO, RootID: ngo.ID,
		State: models.CascadePending, CreatedAt: past, UpdatedAt: past,
	}); err != nil {
		t.Fatalf("seed journal: %v", err)
	}

	done, err := engine.Resume(ctx, time.Minute, 10)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if done != 1 {
		t.Errorf("Resume completed %d entries, want 1", done)
	}
	if n := countLive(t, db, "events", bson.M{}); n != 0 {
		t.Errorf("%d events still live", n)
	}
	if n := countLive(t, db, "participations", bson.M{}); n != 0 {
		t.Errorf("%d participations still live", n)
	}
}
