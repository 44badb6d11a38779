package participationstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/impacthub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicate is returned when the user already has an active
// participation for the event.
var ErrDuplicate = errors.New("already registered for this event")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("participations")}
}

func live(extra bson.M) bson.M {
	f := bson.M{"is_deleted": false}
	for k, v := range extra {
		f[k] = v
	}
	return f
}

// seatHolding matches participations that occupy a seat: live and still
// REGISTERED. Attended and cancelled rows no longer count against capacity.
func seatHolding(event primitive.ObjectID) bson.M {
	return live(bson.M{"event": event, "status": models.ParticipationRegistered})
}

// Create inserts a REGISTERED participation.
func (s *Store) Create(ctx context.Context, user, event primitive.ObjectID) (models.Participation, error) {
	now := time.Now().UTC()
	p := models.Participation{
		ID:           primitive.NewObjectID(),
		User:         user,
		Event:        event,
		RegisteredAt: now,
		Status:       models.ParticipationRegistered,
		BadgesEarned: []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Participation{}, ErrDuplicate
		}
		return models.Participation{}, err
	}
	return p, nil
}

// GetActiveByID loads a live participation.
func (s *Store) GetActiveByID(ctx context.Context, id primitive.ObjectID) (*models.Participation, error) {
	var p models.Participation
	if err := s.c.FindOne(ctx, live(bson.M{"_id": id})).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetActive loads the live participation of user for event.
func (s *Store) GetActive(ctx context.Context, user, event primitive.ObjectID) (*models.Participation, error) {
	var p models.Participation
	if err := s.c.FindOne(ctx, live(bson.M{"user": user, "event": event})).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CountActive counts participations holding a seat at event.
func (s *Store) CountActive(ctx context.Context, event primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, seatHolding(event))
}

func (s *Store) find(ctx context.Context, filter bson.M, sort bson.D) ([]models.Participation, error) {
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Participation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByUser returns the live participations of user, newest first.
func (s *Store) ListByUser(ctx context.Context, user primitive.ObjectID) ([]models.Participation, error) {
	return s.find(ctx, live(bson.M{"user": user}), bson.D{{Key: "registered_at", Value: -1}})
}

// ListByEvent returns the live participations of event in registration
// order.
func (s *Store) ListByEvent(ctx context.Context, event primitive.ObjectID) ([]models.Participation, error) {
	return s.find(ctx, live(bson.M{"event": event}), bson.D{{Key: "registered_at", Value: 1}, {Key: "_id", Value: 1}})
}

// EventIDsByUser returns the events user holds a live participation for.
func (s *Store) EventIDsByUser(ctx context.Context, user primitive.ObjectID) ([]primitive.ObjectID, error) {
	vals, err := s.c.Distinct(ctx, "event", live(bson.M{"user": user}))
	if err != nil {
		return nil, err
	}
	out := make([]primitive.ObjectID, 0, len(vals))
	for _, v := range vals {
		if oid, ok := v.(primitive.ObjectID); ok {
			out = append(out, oid)
		}
	}
	return out, nil
}

// MarkAttended moves a live participation to ATTENDED, adding points and
// badge. changed is false when it was already ATTENDED, in which case the
// stored document is returned untouched.
func (s *Store) MarkAttended(ctx context.Context, id primitive.ObjectID, points int, badge string) (p *models.Participation, changed bool, err error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var out models.Participation
	err = s.c.FindOneAndUpdate(ctx,
		live(bson.M{"_id": id, "status": bson.M{"$ne": models.ParticipationAttended}}),
		bson.M{
			"$set":      bson.M{"status": models.ParticipationAttended, "updated_at": time.Now().UTC()},
			"$inc":      bson.M{"points_earned": points},
			"$addToSet": bson.M{"badges_earned": badge},
		},
		opts,
	).Decode(&out)
	if err == nil {
		return &out, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, err
	}
	cur, err := s.GetActiveByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return cur, false, nil
}

// SetFeedback records feedback and rating on a live participation.
func (s *Store) SetFeedback(ctx context.Context, id primitive.ObjectID, feedback string, rating int) (*models.Participation, error) {
	return s.set(ctx, id, bson.M{"feedback": feedback, "rating": rating})
}

// IssueCertificate flags the certificate as issued.
func (s *Store) IssueCertificate(ctx context.Context, id primitive.ObjectID) (*models.Participation, error) {
	return s.set(ctx, id, bson.M{"certificate_issued": true})
}

func (s *Store) set(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Participation, error) {
	set["updated_at"] = time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p models.Participation
	if err := s.c.FindOneAndUpdate(ctx, live(bson.M{"_id": id}), bson.M{"$set": set}, opts).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SoftDelete marks a live participation deleted.
func (s *Store) SoftDelete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx, live(bson.M{"_id": id}), softDeleteSet())
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Remove hard-deletes a participation. Only used to roll back an insert
// that overshot capacity.
func (s *Store) Remove(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// SoftDeleteByEvents soft-deletes every live participation of the events.
func (s *Store) SoftDeleteByEvents(ctx context.Context, events []primitive.ObjectID) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}
	return s.softDeleteMany(ctx, live(bson.M{"event": bson.M{"$in": events}}))
}

// SoftDeleteByUser soft-deletes every live participation of user.
func (s *Store) SoftDeleteByUser(ctx context.Context, user primitive.ObjectID) (int64, error) {
	return s.softDeleteMany(ctx, live(bson.M{"user": user}))
}

func (s *Store) softDeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	res, err := s.c.UpdateMany(ctx, filter, softDeleteSet())
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func softDeleteSet() bson.M {
	return bson.M{"$set": bson.M{"is_deleted": true, "updated_at": time.Now().UTC()}}
}

// CountLive counts all live participations.
func (s *Store) CountLive(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, live(nil))
}
