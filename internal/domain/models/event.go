// internal/domain/models/event.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event statuses, in their only allowed order.
const (
	EventDraft     = "DRAFT"
	EventPublished = "PUBLISHED"
	EventCompleted = "COMPLETED"
)

// EventStatusRank orders event statuses so transitions can be checked as
// forward-only. Unknown statuses rank -1.
func EventStatusRank(status string) int {
	switch status {
	case EventDraft:
		return 0
	case EventPublished:
		return 1
	case EventCompleted:
		return 2
	}
	return -1
}

// EventLocation is where an in-person event takes place.
type EventLocation struct {
	Text    string   `bson:"text,omitempty" json:"text,omitempty"`
	City    string   `bson:"city,omitempty" json:"city,omitempty"`
	State   string   `bson:"state,omitempty" json:"state,omitempty"`
	Country string   `bson:"country,omitempty" json:"country,omitempty"`
	Lat     *float64 `bson:"lat,omitempty" json:"lat,omitempty"`
	Lng     *float64 `bson:"lng,omitempty" json:"lng,omitempty"`
}

// Event is a volunteering opportunity owned by an NGO.
type Event struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	NGO             primitive.ObjectID `bson:"ngo" json:"ngo"`
	CreatedBy       primitive.ObjectID `bson:"created_by" json:"created_by"`
	Title           string             `bson:"title" json:"title"`
	TitleCI         string             `bson:"title_ci" json:"-"`
	Description     string             `bson:"description,omitempty" json:"description,omitempty"`
	DescriptionHTML string             `bson:"description_html,omitempty" json:"description_html,omitempty"`
	Category        string             `bson:"category,omitempty" json:"category,omitempty"`
	Tags            []string           `bson:"tags" json:"tags"`
	DateStart       time.Time          `bson:"date_start" json:"date_start"`
	DateEnd         *time.Time         `bson:"date_end,omitempty" json:"date_end,omitempty"`
	IsOnline        bool               `bson:"is_online" json:"is_online"`
	Location        EventLocation      `bson:"location" json:"location"`
	Requirements    string             `bson:"requirements,omitempty" json:"requirements,omitempty"`
	MaxCapacity     *int               `bson:"max_capacity,omitempty" json:"max_capacity,omitempty"`
	Status          string             `bson:"status" json:"status"`
	CoverImage      string             `bson:"cover_image,omitempty" json:"cover_image,omitempty"`

	IsDeleted bool      `bson:"is_deleted" json:"-"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// HasEnded reports whether the event has an end date before now.
func (e *Event) HasEnded(now time.Time) bool {
	return e.DateEnd != nil && e.DateEnd.Before(now)
}
