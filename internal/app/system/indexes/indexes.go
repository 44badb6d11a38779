// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.

Uniqueness rules apply only to live records, so unique indexes carry a
partial filter on is_deleted=false. A soft-deleted NGO does not block a new
NGO from reusing its email, and a cancelled registration does not block
registering again.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	sets := []struct {
		name string
		fn   func(context.Context, *mongo.Database) error
	}{
		{"users", ensureUsers},
		{"ngos", ensureNGOs},
		{"events", ensureEvents},
		{"participations", ensureParticipations},
		{"verification_reports", ensureReports},
		{"cascade_journal", ensureCascadeJournal},
		{"audit_events", ensureAuditEvents},
	}
	for _, s := range sets {
		if err := s.fn(ctx, db); err != nil {
			problems = append(problems, s.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// activeOnly is the partial filter shared by every "unique among live
// records" index.
func activeOnly() bson.D {
	return bson.D{{Key: "is_deleted", Value: false}}
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name    string `bson:"name"`
	Key     bson.D `bson:"key"`
	Unique  *bool  `bson:"unique,omitempty"`
	Partial bson.D `bson:"partialFilterExpression,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	return (a != nil && *a) == (b != nil && *b)
}

func partialSig(v interface{}) string {
	d, ok := v.(bson.D)
	if !ok || len(d) == 0 {
		return ""
	}
	return keySig(d)
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	existing := map[string]existingIndex{} // key sig -> index
	cur, err := coll.Indexes().List(ctx)
	if err == nil {
		for cur.Next(ctx) {
			var idx existingIndex
			if err := cur.Decode(&idx); err != nil {
				zap.L().Warn("failed to decode existing index",
					zap.String("collection", coll.Name()),
					zap.Error(err))
				continue
			}
			existing[keySig(idx.Key)] = idx
		}
		cur.Close(ctx)
	}

	var errs []string
	for _, m := range models {
		var desiredName, desiredPartial string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			desiredUnique = m.Options.Unique
			desiredPartial = partialSig(m.Options.PartialFilterExpression)
		}
		desiredSig := keySig(m.Keys.(bson.D))
		start := time.Now()

		if ex, ok := existing[desiredSig]; ok {
			if ex.Name == desiredName &&
				sameBoolPtr(desiredUnique, ex.Unique) &&
				partialSig(ex.Partial) == desiredPartial {
				zap.L().Debug("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name))
				continue
			}
			// Name or options drifted: drop and recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), desiredName, err))
				continue
			}
			zap.L().Info("dropped drifted index",
				zap.String("collection", coll.Name()),
				zap.String("name", ex.Name))
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), desiredName))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
			}
			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("keys", desiredSig),
				zap.Error(err))
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", desiredUnique != nil && *desiredUnique),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("users"), []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(activeOnly()).
				SetName("uniq_users_email_active"),
		},
		// Admin user list: role filter, newest first.
		{
			Keys:    bson.D{{Key: "is_deleted", Value: 1}, {Key: "role", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_users_deleted_role_created"),
		},
		// Leaderboard.
		{
			Keys:    bson.D{{Key: "is_deleted", Value: 1}, {Key: "points", Value: -1}},
			Options: options.Index().SetName("idx_users_deleted_points"),
		},
	})
}

func ensureNGOs(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("ngos"), []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(activeOnly()).
				SetName("uniq_ngos_email_active"),
		},
		{
			Keys: bson.D{{Key: "registration_number", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(activeOnly()).
				SetName("uniq_ngos_regnum_active"),
		},
		{
			Keys:    bson.D{{Key: "created_by", Value: 1}, {Key: "is_deleted", Value: 1}},
			Options: options.Index().SetName("idx_ngos_createdby_deleted"),
		},
		{
			Keys:    bson.D{{Key: "is_deleted", Value: 1}, {Key: "verification_status", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_ngos_deleted_status_created"),
		},
	})
}

func ensureEvents(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("events"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "ngo", Value: 1}, {Key: "is_deleted", Value: 1}},
			Options: options.Index().SetName("idx_events_ngo_deleted"),
		},
		{
			Keys:    bson.D{{Key: "created_by", Value: 1}, {Key: "is_deleted", Value: 1}},
			Options: options.Index().SetName("idx_events_createdby_deleted"),
		},
		{
			Keys:    bson.D{{Key: "is_deleted", Value: 1}, {Key: "status", Value: 1}, {Key: "date_start", Value: 1}},
			Options: options.Index().SetName("idx_events_deleted_status_start"),
		},
	})
}

func ensureParticipations(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("participations"), []mongo.IndexModel{
		// At most one active registration per (user, event).
		{
			Keys: bson.D{{Key: "user", Value: 1}, {Key: "event", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(activeOnly()).
				SetName("uniq_participations_user_event_active"),
		},
		// Capacity counts and roster listing.
		{
			Keys:    bson.D{{Key: "event", Value: 1}, {Key: "is_deleted", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_participations_event_deleted_status"),
		},
	})
}

func ensureReports(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("verification_reports"), []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "ngo", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(activeOnly()).
				SetName("uniq_reports_ngo_active"),
		},
		{
			Keys:    bson.D{{Key: "is_deleted", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_reports_deleted_status_created"),
		},
	})
}

func ensureCascadeJournal(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("cascade_journal"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "state", Value: 1}, {Key: "updated_at", Value: 1}},
			Options: options.Index().SetName("idx_cascade_state_updated"),
		},
	})
}

func ensureAuditEvents(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("audit_events"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "event_type", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_category_type_timestamp"),
		},
	})
}
