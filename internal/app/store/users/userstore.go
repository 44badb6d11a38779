package userstore

import (
	"context"
	"errors"
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

// ErrDuplicateEmail is returned when a live user already has the email.
var ErrDuplicateEmail = errors.New("a user with this email already exists")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

func active(extra bson.M) bson.M {
	f := bson.M{"is_deleted": false}
	for k, v := range extra {
		f[k] = v
	}
	return f
}

// GetByID loads a user by ObjectID, including soft-deleted users.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetActiveByID loads a live user. Returns mongo.ErrNoDocuments if the user
// is missing or soft-deleted.
func (s *Store) GetActiveByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, active(bson.M{"_id": id})).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetActiveByEmail looks up a live user by case-insensitive email.
func (s *Store) GetActiveByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, active(bson.M{"email": normalize.Email(email)})).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// NamesByID returns name/email for the given ids, including soft-deleted
// users. Missing ids are absent from the map.
func (s *Store) NamesByID(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	out := make(map[primitive.ObjectID]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	opts := options.Find().SetProjection(bson.M{"name": 1, "email": 1, "points": 1, "badges": 1})
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, cur.Err()
}

// Create inserts a new user after normalizing fields.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.Name = normalize.Name(u.Name)
	u.NameCI = text.Fold(u.Name)
	u.Email = normalize.Email(u.Email)
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.Badges == nil {
		u.Badges = []string{}
	}
	u.Level = models.LevelFor(u.Points)
	u.IsDeleted = false

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// ProfileUpdate holds the self-service profile fields. Nil fields are left
// unchanged.
type ProfileUpdate struct {
	Name      *string
	Phone     *string
	Bio       *string
	Location  *string
	Interests []string
	Avatar    *string
}

func (p ProfileUpdate) set() bson.M {
	set := bson.M{}
	if p.Name != nil {
		name := normalize.Name(*p.Name)
		set["name"] = name
		set["name_ci"] = text.Fold(name)
	}
	if p.Phone != nil {
		set["phone"] = *p.Phone
	}
	if p.Bio != nil {
		set["bio"] = *p.Bio
	}
	if p.Location != nil {
		set["location"] = *p.Location
	}
	if p.Interests != nil {
		set["interests"] = normalize.Tags(p.Interests)
	}
	if p.Avatar != nil {
		set["avatar"] = *p.Avatar
	}
	return set
}

// AdminUpdate is what an admin may change on another user: profile fields,
// plus role and verified. Email and credential are never touched here.
type AdminUpdate struct {
	ProfileUpdate
	Role     *string
	Verified *bool
}

// UpdateProfile applies upd to a live user and returns the new document.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) (*models.User, error) {
	return s.update(ctx, active(bson.M{"_id": id}), upd.set())
}

// UpdateByAdmin applies upd to a live user and returns the new document.
func (s *Store) UpdateByAdmin(ctx context.Context, id primitive.ObjectID, upd AdminUpdate) (*models.User, error) {
	set := upd.ProfileUpdate.set()
	if upd.Role != nil {
		set["role"] = *upd.Role
	}
	if upd.Verified != nil {
		set["verified"] = *upd.Verified
	}
	return s.update(ctx, active(bson.M{"_id": id}), set)
}

// SetRole sets role and verified on a live user whose current role is
// fromRole. Returns mongo.ErrNoDocuments when nothing matched.
func (s *Store) SetRole(ctx context.Context, id primitive.ObjectID, fromRole, toRole string, verified bool) (*models.User, error) {
	return s.update(ctx, active(bson.M{"_id": id, "role": fromRole}), bson.M{"role": toRole, "verified": verified})
}

// SetVerified flips verified on a live user with the given role.
func (s *Store) SetVerified(ctx context.Context, id primitive.ObjectID, role string, verified bool) (*models.User, error) {
	return s.update(ctx, active(bson.M{"_id": id, "role": role}), bson.M{"verified": verified})
}

// SetPasswordHash replaces a live user's credential hash.
func (s *Store) SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	_, err := s.update(ctx, active(bson.M{"_id": id}), bson.M{"password_hash": hash})
	return err
}

// TouchLastLogin records a successful login.
func (s *Store) TouchLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{"last_login": at}})
	return err
}

func (s *Store) update(ctx context.Context, filter bson.M, set bson.M) (*models.User, error) {
	set["updated_at"] = time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	if err := s.c.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SoftDelete marks a live user deleted. Returns mongo.ErrNoDocuments when
// the user is missing or already deleted.
func (s *Store) SoftDelete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx, active(bson.M{"_id": id}), bson.M{"$set": bson.M{
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

// Award atomically adds points, recomputes level, adds badge if missing,
// and appends a notification. It runs as a single pipeline update, so
// concurrent awards never lose points.
func (s *Store) Award(ctx context.Context, id primitive.ObjectID, points int, badge, message string) error {
	now := time.Now().UTC()
	badges := bson.M{"$ifNull": bson.A{"$badges", bson.A{}}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"points": bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$points", 0}}, points}},
		}}},
		{{Key: "$set", Value: bson.M{
			// $divide yields a double; the users schema stores level as int.
			"level": bson.M{"$toInt": bson.M{"$add": bson.A{
				bson.M{"$floor": bson.M{"$divide": bson.A{"$points", models.PointsPerLevel}}},
				1,
			}}},
			"badges": bson.M{"$cond": bson.A{
				bson.M{"$in": bson.A{badge, badges}},
				badges,
				bson.M{"$concatArrays": bson.A{badges, bson.A{badge}}},
			}},
			"notifications": bson.M{"$concatArrays": bson.A{
				bson.M{"$ifNull": bson.A{"$notifications", bson.A{}}},
				bson.A{bson.M{"message": message, "read": false, "created_at": now}},
			}},
			"updated_at": now,
		}}},
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, pipeline)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// MarkNotificationsRead marks every notification of a user as read.
func (s *Store) MarkNotificationsRead(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, active(bson.M{"_id": id}), bson.M{
		"$set": bson.M{"notifications.$[].read": true, "updated_at": time.Now().UTC()},
	})
	return err
}

// ListFilter narrows the admin user list.
type ListFilter struct {
	Search string
	Role   string
}

// List returns one page of live users, newest first, and the total match
// count.
func (s *Store) List(ctx context.Context, f ListFilter, p paging.Params) ([]models.User, int64, error) {
	filter := active(nil)
	if f.Role != "" {
		filter["role"] = f.Role
	}
	if or := search.AnyField(f.Search, "name", "email"); or != nil {
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

	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Leaderboard returns the top live users by points.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]models.User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "points", Value: -1}, {Key: "created_at", Value: 1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"name": 1, "points": 1, "level": 1, "badges": 1, "avatar": 1})
	cur, err := s.c.Find(ctx, active(nil), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats are the admin usage counters.
type Stats struct {
	TotalUsers        int64 `json:"total_users"`
	ActiveUsers       int64 `json:"active_users"`
	NGOAdmins         int64 `json:"ngo_admins"`
	VerifiedNGOAdmins int64 `json:"verified_ngo_admins"`
	RecentUsers       int64 `json:"recent_users"`
}

// Stats counts live users: all, logged in within 30 days, NGO admins,
// verified NGO admins, and signed up within 7 days of now.
func (s *Store) Stats(ctx context.Context, now time.Time) (Stats, error) {
	var st Stats
	counts := []struct {
		dst    *int64
		filter bson.M
	}{
		{&st.TotalUsers, active(nil)},
		{&st.ActiveUsers, active(bson.M{"last_login": bson.M{"$gte": now.AddDate(0, 0, -30)}})},
		{&st.NGOAdmins, active(bson.M{"role": models.RoleNGOAdmin})},
		{&st.VerifiedNGOAdmins, active(bson.M{"role": models.RoleNGOAdmin, "verified": true})},
		{&st.RecentUsers, active(bson.M{"created_at": bson.M{"$gte": now.AddDate(0, 0, -7)}})},
	}
	for _, c := range counts {
		n, err := s.c.CountDocuments(ctx, c.filter)
		if err != nil {
			return Stats{}, err
		}
		*c.dst = n
	}
	return st, nil
}

// CountActive counts live users.
func (s *Store) CountActive(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, active(nil))
}
