// internal/app/policy/eventpolicy/eventpolicy.go
package eventpolicy

import (
	"context"

	"github.com/dalemusser/impacthub/internal/app/policy/accesspolicy"
	"github.com/dalemusser/impacthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// IsNGOCreator reports whether u created the NGO that owns ev,
// regardless of the NGO's deleted flag.
func IsNGOCreator(ctx context.Context, db *mongo.Database, ev *models.Event, u *models.User) (bool, error) {
	n, err := db.Collection("ngos").CountDocuments(ctx, bson.M{
		"_id":        ev.NGO,
		"created_by": u.ID,
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ngoCreatorOps are the operations the creator of the owning NGO may perform
// on events somebody else created. Editing and deleting stay with the
// event's own creator.
var ngoCreatorOps = map[accesspolicy.Operation]bool{
	accesspolicy.ParticipationManage: true,
}

// Can reports whether u may perform op on ev:
// - Admins always can
// - NGO admins can if they created the event
// - For participation management, NGO admins who created the owning NGO can too
// - Everyone else cannot
// Returns an error if the database check fails, allowing callers to distinguish
// between "not authorized" (false, nil) and "database error" (false, err).
func Can(ctx context.Context, db *mongo.Database, op accesspolicy.Operation, u *models.User, ev *models.Event) (bool, error) {
	d := accesspolicy.Evaluate(op, u)
	if !d.Allowed {
		return false, nil
	}
	if d.Scope == accesspolicy.All {
		return true, nil
	}
	if ev.CreatedBy == u.ID {
		return true, nil
	}
	if !ngoCreatorOps[op] {
		return false, nil
	}
	return IsNGOCreator(ctx, db, ev, u)
}

// CanManageEvent reports whether u may see the roster of ev and manage its
// participations.
func CanManageEvent(ctx context.Context, db *mongo.Database, u *models.User, ev *models.Event) (bool, error) {
	return Can(ctx, db, accesspolicy.ParticipationManage, u, ev)
}

// Require is Can as an error: nil when allowed, an Authorization error
// when not.
func Require(ctx context.Context, db *mongo.Database, op accesspolicy.Operation, u *models.User, ev *models.Event) error {
	ok, err := Can(ctx, db, op, u, ev)
	if err != nil {
		return err
	}
	if !ok {
		return accesspolicy.Evaluate(op, u).Denied()
	}
	return nil
}
