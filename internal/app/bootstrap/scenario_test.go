package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/impacthub/internal/domain/models"
	"github.com/dalemusser/impacthub/internal/testutil"
	"github.com/dalemusser/waffle/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type session struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// newTestApp runs EnsureSchema, Startup and BuildHandler against a fresh
// database, the same hook order the server uses.
func newTestApp(t *testing.T) (http.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	core := &config.CoreConfig{Env: "dev"}
	cfg := validAppConfig()
	cfg.CORSAllowedOrigins = []string{"*"}
	cfg.MetricsEnabled = true

	deps := DBDeps{MongoClient: db.Client(), MongoDatabase: db, svc: &services{}}
	require.NoError(t, EnsureSchema(ctx, core, cfg, deps, testLogger()))
	require.NoError(t, Startup(ctx, core, cfg, deps, testLogger()))
	t.Cleanup(func() {
		deps.svc.resume.Stop()
		deps.svc.limiter.Close()
	})

	h, err := BuildHandler(core, cfg, deps, testLogger())
	require.NoError(t, err)
	return h, testutil.NewFixtures(t, db)
}

func call(t *testing.T, h http.Handler, token, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.JSONRequest(t, method, target, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	rec := call(t, h, "", "POST", "/api/auth/login", map[string]string{"email": email, "password": testutil.TestPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var s session
	testutil.DecodeJSON(t, rec, &s)
	return s.Token
}

func TestScenario_VolunteerLifecycle(t *testing.T) {
	h, fx := newTestApp(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateNGOAdmin(ctx, "Bea", "b@x.com")
	fx.CreateAdmin(ctx, "Cal", "c@x.com")
	bToken := login(t, h, "b@x.com")
	cToken := login(t, h, "c@x.com")

	// Alice signs up.
	rec := call(t, h, "", "POST", "/api/auth/signup", map[string]string{"name": "Alice", "email": "a@x.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var alice session
	testutil.DecodeJSON(t, rec, &alice)
	assert.NotEmpty(t, alice.Token)
	assert.Equal(t, models.RoleUser, alice.User.Role)
	assert.False(t, alice.User.Verified)

	// Bea registers Helping Hands and Cal verifies it.
	rec = call(t, h, bToken, "POST", "/api/ngos", map[string]any{
		"name": "Helping Hands", "email": "ngo@x.com", "registration_number": "REG-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ngoBody struct {
		NGO models.NGO `json:"ngo"`
	}
	testutil.DecodeJSON(t, rec, &ngoBody)
	assert.Equal(t, models.NGOPending, ngoBody.NGO.VerificationStatus)

	rec = call(t, h, cToken, "PATCH", "/api/ngos/"+ngoBody.NGO.ID.Hex()+"/verify", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	testutil.DecodeJSON(t, rec, &ngoBody)
	assert.Equal(t, models.NGOVerified, ngoBody.NGO.VerificationStatus)

	// Bea creates Cleanup Day as a draft with room for one, then publishes it.
	rec = call(t, h, bToken, "POST", "/api/events", map[string]any{
		"ngo": ngoBody.NGO.ID.Hex(), "title": "Cleanup Day",
		"date_start": time.Now().Add(72 * time.Hour).UTC(), "max_capacity": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var evBody struct {
		Event models.Event `json:"event"`
	}
	testutil.DecodeJSON(t, rec, &evBody)
	assert.Equal(t, models.EventDraft, evBody.Event.Status)
	eventPath := "/api/events/" + evBody.Event.ID.Hex()

	rec = call(t, h, bToken, "PUT", eventPath, map[string]string{"status": "PUBLISHED"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Alice takes the only seat; Dan is turned away.
	rec = call(t, h, alice.Token, "POST", eventPath+"/register", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var partBody struct {
		Participation models.Participation `json:"participation"`
	}
	testutil.DecodeJSON(t, rec, &partBody)
	assert.Equal(t, models.ParticipationRegistered, partBody.Participation.Status)

	rec = call(t, h, "", "POST", "/api/auth/signup", map[string]string{"name": "Dan", "email": "d@x.com", "password": "secret2"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var dan session
	testutil.DecodeJSON(t, rec, &dan)

	rec = call(t, h, dan.Token, "POST", eventPath+"/register", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "full capacity")

	// Bea marks Alice attended and completes the event.
	partPath := "/api/participations/" + partBody.Participation.ID.Hex()
	rec = call(t, h, bToken, "PATCH", partPath+"/attendance", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	testutil.DecodeJSON(t, rec, &partBody)
	assert.Equal(t, models.ParticipationAttended, partBody.Participation.Status)

	rec = call(t, h, alice.Token, "GET", "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		User models.User `json:"user"`
	}
	testutil.DecodeJSON(t, rec, &me)
	assert.Equal(t, 10, me.User.Points)
	assert.Contains(t, me.User.Badges, models.BadgeVolunteerVeteran)

	rec = call(t, h, bToken, "PUT", eventPath, map[string]string{"status": "COMPLETED"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Alice leaves feedback; Dan has nothing to review.
	rec = call(t, h, alice.Token, "PATCH", partPath+"/feedback", map[string]any{"rating": 5, "feedback": "Great!"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	testutil.DecodeJSON(t, rec, &partBody)
	assert.Equal(t, "Great!", partBody.Participation.Feedback)

	rec = call(t, h, dan.Token, "PATCH", "/api/participations/"+ngoBody.NGO.ID.Hex()+"/feedback", map[string]any{"rating": 5, "feedback": "Great!"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", testutil.ErrorCode(t, rec))
}

func TestBuildHandler_Fallbacks(t *testing.T) {
	h, _ := newTestApp(t)

	rec := call(t, h, "", "GET", "/api/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", testutil.ErrorCode(t, rec))

	rec = call(t, h, "", "GET", "/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, h, "", "POST", "/api/impact/calculate", map[string]float64{"bags": 2, "trees": 1, "hours": 3})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(t, h, "", "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildHandler_RequiresStartup(t *testing.T) {
	_, err := BuildHandler(&config.CoreConfig{Env: "dev"}, validAppConfig(), DBDeps{}, testLogger())
	assert.Error(t, err)
}
