// internal/domain/models/participation.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Participation statuses.
const (
	ParticipationRegistered = "REGISTERED"
	ParticipationAttended   = "ATTENDED"
	ParticipationCancelled  = "CANCELLED"
)

// AttendancePoints is credited to a participant when marked attended.
const AttendancePoints = 10

// Participation is a user's registration for one event. At most one active
// participation exists per (user, event).
type Participation struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User              primitive.ObjectID `bson:"user" json:"user"`
	Event             primitive.ObjectID `bson:"event" json:"event"`
	RegisteredAt      time.Time          `bson:"registered_at" json:"registered_at"`
	Status            string             `bson:"status" json:"status"`
	PointsEarned      int                `bson:"points_earned" json:"points_earned"`
	BadgesEarned      []string           `bson:"badges_earned" json:"badges_earned"`
	Feedback          string             `bson:"feedback,omitempty" json:"feedback,omitempty"`
	Rating            int                `bson:"rating,omitempty" json:"rating,omitempty"`
	CertificateIssued bool               `bson:"certificate_issued" json:"certificate_issued"`

	IsDeleted bool      `bson:"is_deleted" json:"-"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
