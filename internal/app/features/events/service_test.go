package events_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/impacthub/internal/app/features/events"
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

type world struct {
	svc   *events.Service
	db    *mongo.Database
	fx    *testutil.Fixtures
	owner models.User
	ngo   models.NGO
}

// setup builds a Service. With transactional false the runner has no
// client and every write runs directly.
func setup(t *testing.T, transactional bool) world {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	testutil.EnsureSchema(t, db)

	var client *mongo.Client
	if transactional {
		client = db.Client()
	}
	runner := txn.New(client, zap.NewNop())
	svc := events.NewService(db, runner, cascade.New(db, runner, zap.NewNop()))

	fx := testutil.NewFixtures(t, db)
	owner := fx.CreateNGOAdmin(ctx, "Bea", "bea@x.com")
	ngo := fx.CreateNGO(ctx, "Helping Hands", "ngo@x.com", "REG-1", owner.ID)
	return world{svc: svc, db: db, fx: fx, owner: owner, ngo: ngo}
}

func ptr[T any](v T) *T { return &v }

func tomorrow() *time.Time { return ptr(time.Now().Add(24 * time.Hour)) }

func TestCreate(t *testing.T) {
	w := setup(t, true)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	v, err := w.svc.Create(ctx, &w.owner, events.CreateInput{
		NGO: w.ngo.ID.Hex(), Title: "Cleanup Day", DateStart: tomorrow(), MaxCapacity: ptr(1),
	})
	require.NoError(t, err)
	assert.Equal(t, models.EventDraft, v.Status)
	assert.Equal(t, "Helping Hands", v.NGOName)
	assert.Equal(t, "Bea", v.CreatorName)

	stranger := w.fx.CreateNGOAdmin(ctx, "Cy", "cy@x.com")
	unverified := w.fx.CreateUser(ctx, "Dee", "dee@x.com", models.RoleNGOAdmin)
	volunteer := w.fx.CreateUser(ctx, "Vol", "vol@x.com", models.RoleUser)
	admin := w.fx.CreateAdmin(ctx, "Ada", "ada@x.com")

	tests := []struct {
		name  string
		actor models.User
		in    events.CreateInput
		want  apperr.Code
	}{
		{"ngo admin of another ngo", stranger, events.CreateInput{NGO: w.ngo.ID.Hex(), Title: "X", DateStart: tomorrow()}, apperr.Authorization},
		{"unverified ngo admin", unverified, events.CreateInput{NGO: w.ngo.ID.Hex(), Title: "X", DateStart: tomorrow()}, apperr.Authorization},
		{"volunteer", volunteer, events.CreateInput{NGO: w.ngo.ID.Hex(), Title: "X", DateStart: tomorrow()}, apperr.Authorization},
		{"missing start", w.owner, events.CreateInput{NGO: w.ngo.ID.Hex(), Title: "X"}, apperr.Validation},
		{"end before start", w.owner, events.CreateInput{NGO: w.ngo.ID.Hex(), Title: "X", DateStart: tomorrow(), DateEnd: ptr(time.Now())}, apperr.Validation},
		{"admin with unknown ngo", admin, events.CreateInput{NGO: w.owner.ID.Hex(), Title: "X", DateStart: tomorrow()}, apperr.NotFound},
		{"ngo admin with unknown ngo", w.owner, events.CreateInput{NGO: w.owner.ID.Hex(), Title: "X", DateStart: tomorrow()}, apperr.Authorization},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.svc.Create(ctx, &tt.actor, tt.in)
			if !apperr.Is(err, tt.want) {
				t.Fatalf("Create = %v, want %s", err, tt.want)
			}
		})
	}

	_, err = w.svc.Create(ctx, &admin, events.CreateInput{NGO: w.ngo.ID.Hex(), Title: "By admin", DateStart: tomorrow()})
	assert.NoError(t, err)
}

func TestGet_UnknownCreator(t *testing.T) {
	w := setup(t, true)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ghost := w.fx.CreateUser(ctx, "Ghost", "ghost@x.com", models.RoleNGOAdmin)
	ev := w.fx.CreateEvent(ctx, "Orphan", w.ngo.ID, ghost.ID, 0)
	_, err := w.db.Collection("users").DeleteOne(ctx, bson.M{"_id": ghost.ID})
	require.NoError(t, err)

	v, err := w.svc.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "unknown creator", v.CreatorName)
	assert.Empty(t, v.CreatorEmail)
	assert.Equal(t, "Helping Hands", v.NGOName)
}

func TestUpdateDelete_AdminCreatedEventUnderOwnersNGO(t *testing.T) {
	w := setup(t, true)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	admin := w.fx.CreateAdmin(ctx, "Ada", "ada@x.com")
	ev := w.fx.CreateEvent(ctx, "Admin Drive", w.ngo.ID, admin.ID, 0)

	_, err := w.svc.Update(ctx, &w.owner, ev.ID, events.UpdateInput{Title: ptr("Hijacked")})
	assert.True(t, apperr.Is(err, apperr.Authorization), "update: %v", err)
	err = w.svc.Delete(ctx, &w.owner, ev.ID)
	assert.True(t, apperr.Is(err, apperr.Authorization), "delete: %v", err)

	v, err := w.svc.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Admin Drive", v.Title)

	v, err = w.svc.Update(ctx, &admin, ev.ID, events.UpdateInput{Title: ptr("Admin Drive II")})
	require.NoError(t, err)
	assert.Equal(t, "Admin Drive II", v.Title)
}

func TestUpdate_StatusForwardOnly(t *testing.T) {
	w := setup(t, true)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ev := w.fx.CreateEvent(ctx, "Cleanup", w.ngo.ID, w.owner.ID, 0)

	_, err := w.svc.Update(ctx, &w.owner, ev.ID, events.UpdateInput{Status: ptr("draft")})
	assert.True(t, apperr.Is(err, apperr.Conflict), "got %v", err)

	v, err := w.svc.Update(ctx, &w.owner, ev.ID, events.UpdateInput{Status: ptr(models.EventCompleted)})
	require.NoError(t, err)
	assert.Equal(t, models.EventCompleted, v.Status)

	_, err = w.svc.Update(ctx, &w.owner, ev.ID, events.UpdateInput{Status: ptr("ARCHIVED")})
	assert.True(t, apperr.Is(err, apperr.Validation), "got %v", err)
}

func TestUpdate_CapacityBelowRegistrations(t *testing.T) {
	w := setup(t, true)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ev := w.fx.CreateEvent(ctx, "Cleanup", w.ngo.ID, w.owner.ID, 5)
	for i := 0; i < 3; i++ {
		u := w.fx.CreateUser(ctx, "Vol", fmt.Sprintf("v%d@x.com", i), models.RoleUser)
		w.fx.CreateParticipation(ctx, u.ID, ev.ID, models.ParticipationRegistered)
	}

	_, err := w.svc.Update(ctx, &w.owner, ev.ID, events.UpdateInput{MaxCapacity: ptr(2)})
	assert.True(t, apperr.Is(err, apperr.Conflict), "got %v", err)

	v, err := w.svc.Update(ctx, &w.owner, ev.ID, events.UpdateInput{MaxCapacity: ptr(3)})
	require.NoError(t, err)
	require.NotNil(t, v.MaxCapacity)
	assert.Equal(t, 3, *v.MaxCapacity)

	other := w.fx.CreateNGOAdmin(ctx, "Cy", "cy@x.com")
	_, err = w.svc.Update(ctx, &other, ev.ID, events.UpdateInput{Title: ptr("Mine now")})
	assert.True(t, apperr.Is(err, apperr.Authorization), "got %v", err)
}

func TestRegister_Capacity(t *testing.T) {
	for _, transactional := range []bool{true, false} {
		t.Run(fmt.Sprintf("transactional=%v", transactional), func(t *testing.T) {
			w := setup(t, transactional)
			ctx, cancel := testutil.TestContext()
			defer cancel()

			const capacity = 2
			ev := w.fx.CreateEvent(ctx, "Cleanup", w.ngo.ID, w.owner.ID, capacity)
			for i := 0; i < capacity; i++ {
				u := w.fx.CreateUser(ctx, "Vol", fmt.Sprintf("v%d@x.com", i), models.RoleUser)
				p, err := w.svc.Register(ctx, &u, ev.ID)
				require.NoError(t, err)
				assert.Equal(t, models.ParticipationRegistered, p.Status)
			}

			late := w.fx.CreateUser(ctx, "Late", "late@x.com", models.RoleUser)
			_, err := w.svc.Register(ctx, &late, ev.ID)
			require.True(t, apperr.Is(err, apperr.Conflict), "got %v", err)
			assert.Contains(t, err.Error(), "full capacity")
		})
	}
}

func TestRegister_AttendedSeatIsReleased(t *testing.T) {
	w := setup(t, true)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ev := w.fx.CreateEvent(ctx, "Cleanup", w.ngo.ID, w.owner.ID, 1)
	first := w.fx.CreateUser(ctx, "First", "first@x.com", models.RoleUser)
	w.fx.CreateParticipation(ctx, first.ID, ev.ID, models.ParticipationAttended)

	next := w.fx.CreateUser(ctx, "Next", "next@x.com", models.RoleUser)
	p, err := w.svc.Register(ctx, &next, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ParticipationRegistered, p.Status)

	late := w.fx.CreateUser(ctx, "Late", "late@x.com", models.RoleUser)
	_, err = w.svc.Register(ctx, &late, ev.ID)
	assert.True(t, apperr.Is(err, apperr.Conflict), "got %v", err)
}

func TestRegister_ConcurrentNeverOvershoots(t *testing.T) {
	for _, transactional := range []bool{true, false} {
		t.Run(fmt.Sprintf("transactional=%v", transactional), func(t *testing.T) {
			w := setup(t, transactional)
			ctx, cancel := testutil.TestContext()
			defer cancel()

			const capacity, volunteers = 3, 12
			ev := w.fx.CreateEvent(ctx, "Cleanup", w.ngo.ID, w.owner.ID, capacity)
			users := make([]models.User, volunteers)
			for i := range users {
				users[i] = w.fx.CreateUser(ctx, "Vol", fmt.Sprintf("c%d@x.com", i), models.RoleUser)
			}

			var wg sync.WaitGroup
			var mu sync.Mutex
			ok := 0
			for i := range users {
				wg.Add(1)
				go func(u models.User) {
					defer wg.Done()
					if _, err := w.svc.Register(ctx, &u, ev.ID); err == nil {
						mu.Lock()
						ok++
						mu.Unlock()
					}
				}(users[i])
			}
			wg.Wait()

			live, err := w.db.Collection("participations").CountDocuments(ctx, bson.M{"event": ev.ID, "is_deleted": false})
			require.NoError(t, err)
			assert.LessOrEqual(t, live, int64(capacity))
			assert.EqualValues(t, ok, live)
		})
	}
}

func TestRegister_Rejections(t *testing.T) {
	w := setup(t, true)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	vol := w.fx.CreateUser(ctx, "Vol", "vol@x.com", models.RoleUser)

	open := w.fx.CreateEvent(ctx, "Open", w.ngo.ID, w.owner.ID, 0)
	_, err := w.svc.Register(ctx, &vol, open.ID)
	require.NoError(t, err)
	_, err = w.svc.Register(ctx, &vol, open.ID)
	assert.True(t, apperr.Is(err, apperr.Conflict), "duplicate: %v", err)

	draft := w.fx.CreateEvent(ctx, "Draft", w.ngo.ID, w.owner.ID, 0)
	_, err = w.db.Collection("events").UpdateByID(ctx, draft.ID, bson.M{"$set": bson.M{"status": models.EventDraft}})
	require.NoError(t, err)
	_, err = w.svc.Register(ctx, &vol, draft.ID)
	assert.True(t, apperr.Is(err, apperr.Conflict), "draft: %v", err)

	ended := w.fx.CreateEvent(ctx, "Ended", w.ngo.ID, w.owner.ID, 0)
	_, err = w.db.Collection("events").UpdateByID(ctx, ended.ID, bson.M{"$set": bson.M{"date_end": time.Now().Add(-time.Hour)}})
	require.NoError(t, err)
	_, err = w.svc.Register(ctx, &vol, ended.ID)
	assert.True(t, apperr.Is(err, apperr.Conflict), "ended: %v", err)

	_, err = w.svc.Register(ctx, &vol, w.ngo.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound), "missing: %v", err)

	_, err = w.svc.Register(ctx, &w.owner, open.ID)
	assert.True(t, apperr.Is(err, apperr.Authorization), "ngo admin: %v", err)
}

func TestUnregister(t *testing.T) {
	w := setup(t, true)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	vol := w.fx.CreateUser(ctx, "Vol", "vol@x.com", models.RoleUser)
	ev := w.fx.CreateEvent(ctx, "Cleanup", w.ngo.ID, w.owner.ID, 1)

	err := w.svc.Unregister(ctx, &vol, ev.ID)
	assert.True(t, apperr.Is(err, apperr.Validation), "got %v", err)

	_, err = w.svc.Register(ctx, &vol, ev.ID)
	require.NoError(t, err)
	require.NoError(t, w.svc.Unregister(ctx, &vol, ev.ID))

	// The freed seat and the (user, event) pair are both reusable.
	_, err = w.svc.Register(ctx, &vol, ev.ID)
	assert.NoError(t, err)
}

func TestDelete_CascadesAndNotFoundAfter(t *testing.T) {
	w := setup(t, true)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ev := w.fx.CreateEvent(ctx, "Cleanup", w.ngo.ID, w.owner.ID, 0)
	vol := w.fx.CreateUser(ctx, "Vol", "vol@x.com", models.RoleUser)
	w.fx.CreateParticipation(ctx, vol.ID, ev.ID, models.ParticipationRegistered)

	require.NoError(t, w.svc.Delete(ctx, &w.owner, ev.ID))
	n, err := w.db.Collection("participations").CountDocuments(ctx, bson.M{"event": ev.ID, "is_deleted": false})
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.True(t, apperr.Is(w.svc.Delete(ctx, &w.owner, ev.ID), apperr.NotFound))
	_, err = w.svc.Get(ctx, ev.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestListAndListMine(t *testing.T) {
	w := setup(t, true)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	other := w.fx.CreateNGOAdmin(ctx, "Cy", "cy@x.com")
	otherNGO := w.fx.CreateNGO(ctx, "Food Bank", "food@x.com", "REG-2", other.ID)

	a := w.fx.CreateEvent(ctx, "Beach Cleanup", w.ngo.ID, w.owner.ID, 0)
	w.fx.CreateEvent(ctx, "Tree Planting", w.ngo.ID, w.owner.ID, 0)
	w.fx.CreateEvent(ctx, "Soup Kitchen", otherNGO.ID, other.ID, 0)

	res, err := w.svc.List(ctx, events.ListFilter{Search: "clean"}, paging.Normalize(1, 10, paging.DefaultLimit))
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Pagination.Total)
	assert.Equal(t, "Beach Cleanup", res.Data[0].Title)

	res, err = w.svc.List(ctx, events.ListFilter{NGO: otherNGO.ID.Hex()}, paging.Normalize(1, 10, paging.DefaultLimit))
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Pagination.Total)

	vol := w.fx.CreateUser(ctx, "Vol", "vol@x.com", models.RoleUser)
	w.fx.CreateParticipation(ctx, vol.ID, a.ID, models.ParticipationRegistered)
	admin := w.fx.CreateAdmin(ctx, "Ada", "ada@x.com")

	mine, err := w.svc.ListMine(ctx, &vol)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].ID)

	mine, err = w.svc.ListMine(ctx, &w.owner)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	mine, err = w.svc.ListMine(ctx, &admin)
	require.NoError(t, err)
	assert.Len(t, mine, 3)

	fresh := w.fx.CreateUser(ctx, "New", "new@x.com", models.RoleUser)
	mine, err = w.svc.ListMine(ctx, &fresh)
	require.NoError(t, err)
	assert.Empty(t, mine)
}
