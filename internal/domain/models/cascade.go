// internal/domain/models/cascade.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Cascade root kinds.
const (
	CascadeNGO   = "ngo"
	CascadeEvent = "event"
	CascadeUser  = "user"
)

// Cascade journal states.
const (
	CascadePending = "pending"
	CascadeDone    = "done"
	// CascadeAbandoned marks an attempt whose transaction rolled back:
	// nothing was applied, so there is nothing for Resume to finish.
	CascadeAbandoned = "abandoned"
)

// CascadeEntry journals one cascading soft-delete so an interrupted cascade
// can be rolled forward.
type CascadeEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Kind      string             `bson:"kind"`
	RootID    primitive.ObjectID `bson:"root_id"`
	ActorID   primitive.ObjectID `bson:"actor_id,omitempty"`
	State     string             `bson:"state"`
	Attempts  int                `bson:"attempts"`
	LastError string             `bson:"last_error,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}
