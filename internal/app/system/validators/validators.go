// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/impacthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Collections lists every collection the service writes to. They are created
// up front because some MongoDB versions refuse to create a collection inside
// a multi-document transaction.
var Collections = []string{
	"users",
	"ngos",
	"events",
	"participations",
	"verification_reports",
	"cascade_journal",
	"audit_events",
}

// EnsureAll creates collections (if missing) and attaches JSON-Schema
// validators. Deployments without collMod support are logged and skipped.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	schemas := map[string]bson.M{
		"users":                usersSchema(),
		"ngos":                 ngosSchema(),
		"events":               eventsSchema(),
		"participations":       participationsSchema(),
		"verification_reports": reportsSchema(),
	}

	for _, coll := range Collections {
		if err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			continue
		}
		schema, ok := schemas[coll]
		if !ok {
			continue
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isUnsupported(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				continue
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// ensureCollection idempotently makes sure name exists.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) error {
	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err == nil && len(names) > 0 {
		return nil
	}
	if err := db.CreateCollection(ctx, name); err != nil {
		if isNamespaceExists(err) {
			return nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return nil
}

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	return db.RunCommand(ctx, cmd).Err()
}

func isNamespaceExists(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 48 {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

// isUnsupported matches "no such command" (59) and "not implemented" (115)
// as returned by DocumentDB-style deployments.
func isUnsupported(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || ce.Code == 115) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "no such command") ||
		strings.Contains(s, "not implemented") ||
		strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "email", "password_hash", "role", "points", "level", "is_deleted"},
			"properties": bson.M{
				"name":          nonBlank,
				"email":         nonBlank,
				"password_hash": nonBlank,
				"role":          bson.M{"enum": bson.A{models.RoleUser, models.RoleNGOAdmin, models.RoleAdmin}},
				"points":        bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
				"level":         bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 1},
				"is_deleted":    bson.M{"bsonType": "bool"},
			},
		},
	}
}

func ngosSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "email", "registration_number", "verification_status", "created_by", "is_deleted"},
			"properties": bson.M{
				"name":                nonBlank,
				"email":               nonBlank,
				"registration_number": nonBlank,
				"verification_status": bson.M{"enum": bson.A{models.NGOPending, models.NGOVerified}},
				"created_by":          bson.M{"bsonType": "objectId"},
				"is_deleted":          bson.M{"bsonType": "bool"},
			},
		},
	}
}

func eventsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"ngo", "created_by", "title", "date_start", "status", "is_deleted"},
			"properties": bson.M{
				"ngo":          bson.M{"bsonType": "objectId"},
				"created_by":   bson.M{"bsonType": "objectId"},
				"title":        nonBlank,
				"date_start":   bson.M{"bsonType": "date"},
				"status":       bson.M{"enum": bson.A{models.EventDraft, models.EventPublished, models.EventCompleted}},
				"max_capacity": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 1},
				"is_deleted":   bson.M{"bsonType": "bool"},
			},
		},
	}
}

func participationsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user", "event", "status", "is_deleted"},
			"properties": bson.M{
				"user":       bson.M{"bsonType": "objectId"},
				"event":      bson.M{"bsonType": "objectId"},
				"status":     bson.M{"enum": bson.A{models.ParticipationRegistered, models.ParticipationAttended, models.ParticipationCancelled}},
				"rating":     bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0, "maximum": 5},
				"is_deleted": bson.M{"bsonType": "bool"},
			},
		},
	}
}

func reportsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"ngo", "credibility_score", "reviewed_by", "status", "is_deleted"},
			"properties": bson.M{
				"ngo":               bson.M{"bsonType": "objectId"},
				"credibility_score": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0, "maximum": 100},
				"reviewed_by":       bson.M{"bsonType": "objectId"},
				"status":            bson.M{"enum": bson.A{models.ReportPending, models.ReportDone}},
				"is_deleted":        bson.M{"bsonType": "bool"},
			},
		},
	}
}
