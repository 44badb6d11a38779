// internal/domain/models/ngo.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NGO verification states. An NGO only ever moves PENDING -> VERIFIED.
const (
	NGOPending  = "PENDING"
	NGOVerified = "VERIFIED"
)

// SocialLinks holds an NGO's public profiles.
type SocialLinks struct {
	Website   string `bson:"website,omitempty" json:"website,omitempty"`
	Facebook  string `bson:"facebook,omitempty" json:"facebook,omitempty"`
	Twitter   string `bson:"twitter,omitempty" json:"twitter,omitempty"`
	Instagram string `bson:"instagram,omitempty" json:"instagram,omitempty"`
	LinkedIn  string `bson:"linkedin,omitempty" json:"linkedin,omitempty"`
}

// NGO is an organization profile. Email and RegistrationNumber are unique
// among non-deleted NGOs.
type NGO struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name               string             `bson:"name" json:"name"`
	NameCI             string             `bson:"name_ci" json:"-"`
	Email              string             `bson:"email" json:"email"`
	RegistrationNumber string             `bson:"registration_number" json:"registration_number"`
	Address            string             `bson:"address,omitempty" json:"address,omitempty"`
	Location           string             `bson:"location,omitempty" json:"location,omitempty"`
	FocusAreas         []string           `bson:"focus_areas" json:"focus_areas"`
	VerificationStatus string             `bson:"verification_status" json:"verification_status"`
	CredibilityScore   int                `bson:"credibility_score" json:"credibility_score"`
	Description        string             `bson:"description,omitempty" json:"description,omitempty"`
	DescriptionHTML    string             `bson:"description_html,omitempty" json:"description_html,omitempty"`
	SocialLinks        SocialLinks        `bson:"social_links" json:"social_links"`
	CreatedBy          primitive.ObjectID `bson:"created_by" json:"created_by"`

	IsDeleted bool      `bson:"is_deleted" json:"-"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
