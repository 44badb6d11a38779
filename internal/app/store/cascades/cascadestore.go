package cascadestore

import (
	"context"
	"time"

	"github.com/dalemusser/impacthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the cascade journal: one entry per cascading soft-delete, kept
// pending until every step has been applied.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("cascade_journal")}
}

// Begin records a pending cascade for root.
func (s *Store) Begin(ctx context.Context, kind string, root, actor primitive.ObjectID) (models.CascadeEntry, error) {
	now := time.Now().UTC()
	e := models.CascadeEntry{
		ID:        primitive.NewObjectID(),
		Kind:      kind,
		RootID:    root,
		ActorID:   actor,
		State:     models.CascadePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, e); err != nil {
		return models.CascadeEntry{}, err
	}
	return e, nil
}

// Done marks the entry complete.
func (s *Store) Done(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{
		"$set":   bson.M{"state": models.CascadeDone, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"last_error": ""},
	})
	return err
}

// Fail records an attempt that did not finish. The entry stays pending.
func (s *Store) Fail(ctx context.Context, id primitive.ObjectID, cause error) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"last_error": cause.Error(), "updated_at": time.Now().UTC()},
		"$inc": bson.M{"attempts": 1},
	})
	return err
}

// Abandon closes an entry whose attempt left no writes behind, so Resume
// never applies it.
func (s *Store) Abandon(ctx context.Context, id primitive.ObjectID, cause error) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"state": models.CascadeAbandoned, "last_error": cause.Error(), "updated_at": time.Now().UTC()},
		"$inc": bson.M{"attempts": 1},
	})
	return err
}

// Discard removes an entry whose root turned out not to exist.
func (s *Store) Discard(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// Stale returns pending entries not touched since before, oldest first.
func (s *Store) Stale(ctx context.Context, before time.Time, limit int64) ([]models.CascadeEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}}).SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{
		"state":      models.CascadePending,
		"updated_at": bson.M{"$lt": before},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.CascadeEntry
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get loads an entry by id.
func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (*models.CascadeEntry, error) {
	var e models.CascadeEntry
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		return nil, err
	}
	return &e, nil
}
