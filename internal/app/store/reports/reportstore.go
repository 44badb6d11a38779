package reportstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/impacthub/internal/app/system/paging"
	"github.com/dalemusser/impacthub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicate is returned when the NGO already has an active report.
var ErrDuplicate = errors.New("a verification report already exists for this NGO")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("verification_reports")}
}

func live(extra bson.M) bson.M {
	f := bson.M{"is_deleted": false}
	for k, v := range extra {
		f[k] = v
	}
	return f
}

// Create inserts a report. Status defaults to PENDING.
func (s *Store) Create(ctx context.Context, r models.VerificationReport) (models.VerificationReport, error) {
	r.ID = primitive.NewObjectID()
	if r.Status == "" {
		r.Status = models.ReportPending
	}
	if r.RedFlags == nil {
		r.RedFlags = []models.RedFlag{}
	}
	r.IsDeleted = false

	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, r); err != nil {
		if wafflemongo.IsDup(err) {
			return models.VerificationReport{}, ErrDuplicate
		}
		return models.VerificationReport{}, err
	}
	return r, nil
}

// GetActiveByID loads a live report.
func (s *Store) GetActiveByID(ctx context.Context, id primitive.ObjectID) (*models.VerificationReport, error) {
	var r models.VerificationReport
	if err := s.c.FindOne(ctx, live(bson.M{"_id": id})).Decode(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ExistsForNGO reports whether the NGO has an active report.
func (s *Store) ExistsForNGO(ctx context.Context, ngo primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, live(bson.M{"ngo": ngo}), options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListFilter narrows the report list.
type ListFilter struct {
	Status string
	NGO    *primitive.ObjectID
}

// List returns one page of live reports, newest first, and the total.
func (s *Store) List(ctx context.Context, f ListFilter, p paging.Params) ([]models.VerificationReport, int64, error) {
	filter := live(nil)
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.NGO != nil {
		filter["ngo"] = *f.NGO
	}

	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := p.Apply(options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}))
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var out []models.VerificationReport
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Update holds the mutable report fields. The NGO and reviewer are fixed
// at creation.
type Update struct {
	CredibilityScore *int
	RedFlags         []models.RedFlag
	Summary          *string
	ReviewComments   *string
	Status           *string
}

// Update applies upd to a live report and returns the new document.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, upd Update) (*models.VerificationReport, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.CredibilityScore != nil {
		set["credibility_score"] = *upd.CredibilityScore
	}
	if upd.RedFlags != nil {
		set["red_flags"] = upd.RedFlags
	}
	if upd.Summary != nil {
		set["summary"] = *upd.Summary
	}
	if upd.ReviewComments != nil {
		set["review_comments"] = *upd.ReviewComments
	}
	if upd.Status != nil {
		set["status"] = *upd.Status
	}
	return s.set(ctx, id, set)
}

// MarkVerified stamps verified_at on a live report.
func (s *Store) MarkVerified(ctx context.Context, id primitive.ObjectID, at time.Time) (*models.VerificationReport, error) {
	return s.set(ctx, id, bson.M{"verified_at": at, "updated_at": at})
}

func (s *Store) set(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.VerificationReport, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var r models.VerificationReport
	if err := s.c.FindOneAndUpdate(ctx, live(bson.M{"_id": id}), bson.M{"$set": set}, opts).Decode(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// SoftDelete marks a live report deleted.
func (s *Store) SoftDelete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx, live(bson.M{"_id": id}), bson.M{"$set": bson.M{
		"is_deleted": true,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
