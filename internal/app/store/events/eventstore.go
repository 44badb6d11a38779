package eventstore

import (
	"context"
	"time"

	"github.com/dalemusser/impacthub/internal/app/system/normalize"
	"github.com/dalemusser/impacthub/internal/app/system/paging"
	"github.com/dalemusser/impacthub/internal/app/system/search"
	"github.com/dalemusser/impacthub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("events")}
}

func live(extra bson.M) bson.M {
	f := bson.M{"is_deleted": false}
	for k, v := range extra {
		f[k] = v
	}
	return f
}

func softDeleteSet() bson.M {
	return bson.M{"$set": bson.M{"is_deleted": true, "updated_at": time.Now().UTC()}}
}

// Create inserts an event. Status defaults to DRAFT.
func (s *Store) Create(ctx context.Context, e models.Event) (models.Event, error) {
	e.ID = primitive.NewObjectID()
	e.Title = normalize.Name(e.Title)
	e.TitleCI = text.Fold(e.Title)
	e.Tags = normalize.Tags(e.Tags)
	if e.Status == "" {
		e.Status = models.EventDraft
	}
	e.IsDeleted = false

	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, e); err != nil {
		return models.Event{}, err
	}
	return e, nil
}

// GetActiveByID loads a live event.
func (s *Store) GetActiveByID(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	var e models.Event
	if err := s.c.FindOne(ctx, live(bson.M{"_id": id})).Decode(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListFilter narrows event lists. IDs, when non-nil, restricts the result
// to those events (an empty slice matches nothing).
type ListFilter struct {
	Search    string
	Status    string
	Category  string
	NGO       *primitive.ObjectID
	CreatedBy *primitive.ObjectID
	IDs       []primitive.ObjectID
}

func (f ListFilter) query() bson.M {
	filter := live(nil)
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.NGO != nil {
		filter["ngo"] = *f.NGO
	}
	if f.CreatedBy != nil {
		filter["created_by"] = *f.CreatedBy
	}
	if f.IDs != nil {
		filter["_id"] = bson.M{"$in": f.IDs}
	}
	if or := search.AnyField(f.Search, "title", "description", "tags", "location.city"); or != nil {
		filter["$or"] = or["$or"]
	}
	return filter
}

// List returns one page of live events by ascending start date, and the
// total.
func (s *Store) List(ctx context.Context, f ListFilter, p paging.Params) ([]models.Event, int64, error) {
	filter := f.query()
	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := p.Apply(options.Find().SetSort(bson.D{{Key: "date_start", Value: 1}, {Key: "_id", Value: 1}}))
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var out []models.Event
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListAll returns every live event matching f, by ascending start date.
func (s *Store) ListAll(ctx context.Context, f ListFilter) ([]models.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date_start", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, f.query(), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Event
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ByIDs returns events keyed by id, including soft-deleted ones.
func (s *Store) ByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Event, error) {
	out := make(map[primitive.ObjectID]models.Event, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var e models.Event
		if err := cur.Decode(&e); err != nil {
			return nil, err
		}
		out[e.ID] = e
	}
	return out, cur.Err()
}

// Update holds mutable event fields. Nil fields are left unchanged.
// ClearDateEnd and ClearCapacity unset the optional fields.
type Update struct {
	Title           *string
	Description     *string
	DescriptionHTML *string
	Category        *string
	Tags            []string
	DateStart       *time.Time
	DateEnd         *time.Time
	ClearDateEnd    bool
	IsOnline        *bool
	Location        *models.EventLocation
	Requirements    *string
	MaxCapacity     *int
	ClearCapacity   bool
	Status          *string
	CoverImage      *string
}

// Update applies upd to a live event and returns the new document.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, upd Update) (*models.Event, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	unset := bson.M{}
	if upd.Title != nil {
		title := normalize.Name(*upd.Title)
		set["title"] = title
		set["title_ci"] = text.Fold(title)
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.DescriptionHTML != nil {
		set["description_html"] = *upd.DescriptionHTML
	}
	if upd.Category != nil {
		set["category"] = *upd.Category
	}
	if upd.Tags != nil {
		set["tags"] = normalize.Tags(upd.Tags)
	}
	if upd.DateStart != nil {
		set["date_start"] = *upd.DateStart
	}
	if upd.DateEnd != nil {
		set["date_end"] = *upd.DateEnd
	} else if upd.ClearDateEnd {
		unset["date_end"] = ""
	}
	if upd.IsOnline != nil {
		set["is_online"] = *upd.IsOnline
	}
	if upd.Location != nil {
		set["location"] = *upd.Location
	}
	if upd.Requirements != nil {
		set["requirements"] = *upd.Requirements
	}
	if upd.MaxCapacity != nil {
		set["max_capacity"] = *upd.MaxCapacity
	} else if upd.ClearCapacity {
		unset["max_capacity"] = ""
	}
	if upd.Status != nil {
		set["status"] = *upd.Status
	}
	if upd.CoverImage != nil {
		set["cover_image"] = *upd.CoverImage
	}

	doc := bson.M{"$set": set}
	if len(unset) > 0 {
		doc["$unset"] = unset
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var e models.Event
	if err := s.c.FindOneAndUpdate(ctx, live(bson.M{"_id": id}), doc, opts).Decode(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Lock bumps the registration sequence of a live event. Two transactions
// that both Lock the same event write-conflict, so only one of them can
// commit a seat change based on what it counted. Returns
// mongo.ErrNoDocuments when the event is not live.
func (s *Store) Lock(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx, live(bson.M{"_id": id}), bson.M{"$inc": bson.M{"seat_seq": 1}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SoftDelete marks a live event deleted. Returns mongo.ErrNoDocuments when
// it is missing or already deleted.
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

// IDsByNGOs returns ids of events belonging to any of ngos, including
// soft-deleted events.
func (s *Store) IDsByNGOs(ctx context.Context, ngos []primitive.ObjectID) ([]primitive.ObjectID, error) {
	if len(ngos) == 0 {
		return nil, nil
	}
	vals, err := s.c.Distinct(ctx, "_id", bson.M{"ngo": bson.M{"$in": ngos}})
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

// SoftDeleteByNGOs soft-deletes every live event of the given NGOs.
func (s *Store) SoftDeleteByNGOs(ctx context.Context, ngos []primitive.ObjectID) (int64, error) {
	if len(ngos) == 0 {
		return 0, nil
	}
	res, err := s.c.UpdateMany(ctx, live(bson.M{"ngo": bson.M{"$in": ngos}}), softDeleteSet())
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Counts are the dashboard event counters.
type Counts struct {
	Total     int64
	Completed int64
}

// Count returns live event totals.
func (s *Store) Count(ctx context.Context) (Counts, error) {
	total, err := s.c.CountDocuments(ctx, live(nil))
	if err != nil {
		return Counts{}, err
	}
	done, err := s.c.CountDocuments(ctx, live(bson.M{"status": models.EventCompleted}))
	if err != nil {
		return Counts{}, err
	}
	return Counts{Total: total, Completed: done}, nil
}
