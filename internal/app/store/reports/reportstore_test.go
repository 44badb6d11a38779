package reportstore_test

import (
	"errors"
	"testing"
	"time"

	reportstore "github.com/dalemusser/impacthub/internal/app/store/reports"
	"github.com/dalemusser/impacthub/internal/app/system/paging"
	"github.com/dalemusser/impacthub/internal/domain/models"
	"github.com/dalemusser/impacthub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestStore_CreateOnePerNGO(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	testutil.EnsureSchema(t, db)
	store := reportstore.New(db)
	ngo := primitive.NewObjectID()

	rep, err := store.Create(ctx, models.VerificationReport{NGO: ngo, CredibilityScore: 40, ReviewedBy: primitive.NewObjectID()})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if rep.Status != models.ReportPending {
		t.Errorf("Status = %q, want PENDING", rep.Status)
	}

	if _, err := store.Create(ctx, models.VerificationReport{NGO: ngo}); !errors.Is(err, reportstore.ErrDuplicate) {
		t.Errorf("duplicate Create = %v, want ErrDuplicate", err)
	}

	exists, err := store.ExistsForNGO(ctx, ngo)
	if err != nil || !exists {
		t.Errorf("ExistsForNGO = %v, %v", exists, err)
	}
}

func TestStore_UpdateAndDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := reportstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	rep := fixtures.CreateReport(ctx, primitive.NewObjectID(), primitive.NewObjectID(), 50, models.ReportPending)

	score, status := 85, models.ReportDone
	got, err := store.Update(ctx, rep.ID, reportstore.Update{CredibilityScore: &score, Status: &status})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !got.QualifiesForAutoVerify() {
		t.Error("expected report to qualify for auto-verify")
	}

	got, err = store.MarkVerified(ctx, rep.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("MarkVerified failed: %v", err)
	}
	if got.VerifiedAt == nil {
		t.Error("expected VerifiedAt to be set")
	}

	rows, total, err := store.List(ctx, reportstore.ListFilter{Status: models.ReportDone}, paging.Params{Page: 1, Limit: 10})
	if err != nil || total != 1 || len(rows) != 1 {
		t.Fatalf("List = %d rows, total %d, err %v", len(rows), total, err)
	}

	if err := store.SoftDelete(ctx, rep.ID); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	if err := store.SoftDelete(ctx, rep.ID); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("second SoftDelete = %v, want ErrNoDocuments", err)
	}
}
