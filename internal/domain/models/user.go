// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles. Signup always yields RoleUser; the other two are granted by an admin.
const (
	RoleUser     = "USER"
	RoleNGOAdmin = "NGO_ADMIN"
	RoleAdmin    = "ADMIN"
)

// BadgeVolunteerVeteran is awarded when a participant is marked attended.
const BadgeVolunteerVeteran = "volunteer-veteran"

// PointsPerLevel is the number of points needed to advance one level.
const PointsPerLevel = 100

// IsValidRole reports whether role is one of the known roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleUser, RoleNGOAdmin, RoleAdmin:
		return true
	}
	return false
}

// LevelFor returns the level for a points total: floor(points/100)+1.
func LevelFor(points int) int {
	if points < 0 {
		points = 0
	}
	return points/PointsPerLevel + 1
}

// Notification is a short message pushed onto a user's notification list.
type Notification struct {
	Message   string    `bson:"message" json:"message"`
	Read      bool      `bson:"read" json:"read"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// User is a volunteer, an NGO admin, or a platform admin.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	NameCI       string             `bson:"name_ci" json:"-"` // lowercase, diacritics-stripped
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Role         string             `bson:"role" json:"role"`
	Verified     bool               `bson:"verified" json:"verified"`

	Points int      `bson:"points" json:"points"`
	Level  int      `bson:"level" json:"level"`
	Badges []string `bson:"badges" json:"badges"`

	Phone     string   `bson:"phone,omitempty" json:"phone,omitempty"`
	Bio       string   `bson:"bio,omitempty" json:"bio,omitempty"`
	Location  string   `bson:"location,omitempty" json:"location,omitempty"`
	Interests []string `bson:"interests,omitempty" json:"interests,omitempty"`
	Avatar    string   `bson:"avatar,omitempty" json:"avatar,omitempty"`

	Notifications []Notification `bson:"notifications,omitempty" json:"notifications,omitempty"`

	IsDeleted bool       `bson:"is_deleted" json:"-"`
	LastLogin *time.Time `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// IsAdmin reports whether u is a platform admin.
func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }
