// internal/domain/models/report.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Verification report statuses.
const (
	ReportPending = "PENDING"
	ReportDone    = "DONE"
)

// Red-flag severities.
const (
	SeverityLow    = "LOW"
	SeverityMedium = "MEDIUM"
	SeverityHigh   = "HIGH"
)

// AutoVerifyThreshold is the credibility score at or above which a DONE
// report verifies its NGO.
const AutoVerifyThreshold = 70

// RedFlag is a single concern raised in a verification report.
type RedFlag struct {
	Flag     string `bson:"flag" json:"flag"`
	Severity string `bson:"severity" json:"severity"`
}

// VerificationReport is an admin's assessment of one NGO. At most one active
// report exists per NGO.
type VerificationReport struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	NGO              primitive.ObjectID `bson:"ngo" json:"ngo"`
	CredibilityScore int                `bson:"credibility_score" json:"credibility_score"`
	RedFlags         []RedFlag          `bson:"red_flags" json:"red_flags"`
	Summary          string             `bson:"summary,omitempty" json:"summary,omitempty"`
	ReviewComments   string             `bson:"review_comments,omitempty" json:"review_comments,omitempty"`
	ReviewedBy       primitive.ObjectID `bson:"reviewed_by" json:"reviewed_by"`
	Status           string             `bson:"status" json:"status"`
	VerifiedAt       *time.Time         `bson:"verified_at,omitempty" json:"verified_at,omitempty"`

	IsDeleted bool      `bson:"is_deleted" json:"-"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// QualifiesForAutoVerify reports whether the report should verify its NGO.
func (r *VerificationReport) QualifiesForAutoVerify() bool {
	return r.Status == ReportDone && r.CredibilityScore >= AutoVerifyThreshold
}
