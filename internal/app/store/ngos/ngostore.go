package ngostore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/impacthub/internal/app/system/normalize"
	"github.com/dalemusser/impacthub/internal/app/system/paging"
	"github.com/dalemusser/impacthub/internal/app/system/search"
	"github.com/dalemusser/impacthub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrDuplicateEmail is returned when a live NGO already uses the email.
	ErrDuplicateEmail = errors.New("an NGO with this email already exists")
	// ErrDuplicateRegistration is returned when a live NGO already uses the
	// registration number.
	ErrDuplicateRegistration = errors.New("an NGO with this registration number already exists")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("ngos")}
}

func live(extra bson.M) bson.M {
	f := bson.M{"is_deleted": false}
	for k, v := range extra {
		f[k] = v
	}
	return f
}

// dupError maps a duplicate-key error to the field that collided.
func dupError(err error) error {
	if strings.Contains(err.Error(), "registration_number") || strings.Contains(err.Error(), "uniq_ngos_regnum_active") {
		return ErrDuplicateRegistration
	}
	return ErrDuplicateEmail
}

// Create inserts a PENDING NGO.
func (s *Store) Create(ctx context.Context, n models.NGO) (models.NGO, error) {
	n.ID = primitive.NewObjectID()
	n.Name = normalize.Name(n.Name)
	n.NameCI = text.Fold(n.Name)
	n.Email = normalize.Email(n.Email)
	n.RegistrationNumber = strings.TrimSpace(n.RegistrationNumber)
	n.FocusAreas = normalize.Tags(n.FocusAreas)
	if n.VerificationStatus == "" {
		n.VerificationStatus = models.NGOPending
	}
	n.IsDeleted = false

	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, n); err != nil {
		if wafflemongo.IsDup(err) {
			return models.NGO{}, dupError(err)
		}
		return models.NGO{}, err
	}
	return n, nil
}

// ExistsActive reports a live NGO with the email or registration number,
// returning the matching sentinel error. Used for a friendly pre-check; the
// unique indexes remain authoritative.
func (s *Store) ExistsActive(ctx context.Context, email, regNum string) error {
	var n models.NGO
	err := s.c.FindOne(ctx, live(bson.M{"$or": bson.A{
		bson.M{"email": normalize.Email(email)},
		bson.M{"registration_number": strings.TrimSpace(regNum)},
	}})).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	if err != nil {
		return err
	}
	if n.Email == normalize.Email(email) {
		return ErrDuplicateEmail
	}
	return ErrDuplicateRegistration
}

// GetActiveByID loads a live NGO.
func (s *Store) GetActiveByID(ctx context.Context, id primitive.ObjectID) (*models.NGO, error) {
	var n models.NGO
	if err := s.c.FindOne(ctx, live(bson.M{"_id": id})).Decode(&n); err != nil {
		return nil, err
	}
	return &n, nil
}

// NamesByID returns live NGO names keyed by id.
func (s *Store) NamesByID(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
	out := make(map[primitive.ObjectID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetProjection(bson.M{"name": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var n models.NGO
		if err := cur.Decode(&n); err != nil {
			return nil, err
		}
		out[n.ID] = n.Name
	}
	return out, cur.Err()
}

// ListFilter narrows the public NGO list.
type ListFilter struct {
	Search    string
	Status    string
	CreatedBy *primitive.ObjectID
}

// List returns one page of live NGOs, newest first, and the total.
func (s *Store) List(ctx context.Context, f ListFilter, p paging.Params) ([]models.NGO, int64, error) {
	filter := live(nil)
	if f.Status != "" {
		filter["verification_status"] = f.Status
	}
	if f.CreatedBy != nil {
		filter["created_by"] = *f.CreatedBy
	}
	if or := search.AnyField(f.Search, "name", "description", "focus_areas", "location"); or != nil {
		filter["$or"] = or["$or"]
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

	var out []models.NGO
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Update holds mutable NGO fields. Nil fields are left unchanged.
type Update struct {
	Name               *string
	Email              *string
	RegistrationNumber *string
	Address            *string
	Location           *string
	FocusAreas         []string
	Description        *string
	DescriptionHTML    *string
	SocialLinks        *models.SocialLinks
	VerificationStatus *string
}

// Update applies upd to a live NGO and returns the new document.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, upd Update) (*models.NGO, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Name != nil {
		name := normalize.Name(*upd.Name)
		set["name"] = name
		set["name_ci"] = text.Fold(name)
	}
	if upd.Email != nil {
		set["email"] = normalize.Email(*upd.Email)
	}
	if upd.RegistrationNumber != nil {
		set["registration_number"] = strings.TrimSpace(*upd.RegistrationNumber)
	}
	if upd.Address != nil {
		set["address"] = *upd.Address
	}
	if upd.Location != nil {
		set["location"] = *upd.Location
	}
	if upd.FocusAreas != nil {
		set["focus_areas"] = normalize.Tags(upd.FocusAreas)
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.DescriptionHTML != nil {
		set["description_html"] = *upd.DescriptionHTML
	}
	if upd.SocialLinks != nil {
		set["social_links"] = *upd.SocialLinks
	}
	if upd.VerificationStatus != nil {
		set["verification_status"] = *upd.VerificationStatus
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var n models.NGO
	err := s.c.FindOneAndUpdate(ctx, live(bson.M{"_id": id}), bson.M{"$set": set}, opts).Decode(&n)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return nil, dupError(err)
		}
		return nil, err
	}
	return &n, nil
}

// Verify marks a live NGO VERIFIED. A non-nil score also sets
// credibility_score.
func (s *Store) Verify(ctx context.Context, id primitive.ObjectID, score *int) (*models.NGO, error) {
	set := bson.M{"verification_status": models.NGOVerified, "updated_at": time.Now().UTC()}
	if score != nil {
		set["credibility_score"] = *score
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var n models.NGO
	if err := s.c.FindOneAndUpdate(ctx, live(bson.M{"_id": id}), bson.M{"$set": set}, opts).Decode(&n); err != nil {
		return nil, err
	}
	return &n, nil
}

// SoftDelete marks a live NGO deleted. Returns mongo.ErrNoDocuments when
// it is missing or already deleted.
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

// IDsByCreator returns ids of NGOs created by user. When includeDeleted is
// set, NGOs already soft-deleted are included so an interrupted cascade can
// finish their children.
func (s *Store) IDsByCreator(ctx context.Context, user primitive.ObjectID, includeDeleted bool) ([]primitive.ObjectID, error) {
	filter := bson.M{"created_by": user}
	if !includeDeleted {
		filter["is_deleted"] = false
	}
	return distinctIDs(ctx, s.c, filter)
}

// SoftDeleteByCreator soft-deletes every live NGO created by user.
func (s *Store) SoftDeleteByCreator(ctx context.Context, user primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx, live(bson.M{"created_by": user}), bson.M{"$set": bson.M{
		"is_deleted": true,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// IsCreator reports whether user created the NGO (live or not).
func (s *Store) IsCreator(ctx context.Context, id, user primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"_id": id, "created_by": user})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Counts are the dashboard NGO counters.
type Counts struct {
	Total    int64
	Verified int64
}

// Count returns live NGO totals.
func (s *Store) Count(ctx context.Context) (Counts, error) {
	total, err := s.c.CountDocuments(ctx, live(nil))
	if err != nil {
		return Counts{}, err
	}
	verified, err := s.c.CountDocuments(ctx, live(bson.M{"verification_status": models.NGOVerified}))
	if err != nil {
		return Counts{}, err
	}
	return Counts{Total: total, Verified: verified}, nil
}

func distinctIDs(ctx context.Context, c *mongo.Collection, filter bson.M) ([]primitive.ObjectID, error) {
	vals, err := c.Distinct(ctx, "_id", filter)
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
