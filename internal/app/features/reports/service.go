// internal/app/features/reports/service.go
package reports

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/impacthub/internal/app/policy/accesspolicy"
	ngostore "github.com/dalemusser/impacthub/internal/app/store/ngos"
	reportstore "github.com/dalemusser/impacthub/internal/app/store/reports"
	"github.com/dalemusser/impacthub/internal/app/system/apperr"
	"github.com/dalemusser/impacthub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/impacthub/internal/app/system/inputval"
	"github.com/dalemusser/impacthub/internal/app/system/normalize"
	"github.com/dalemusser/impacthub/internal/app/system/paging"
	"github.com/dalemusser/impacthub/internal/app/system/txn"
	"github.com/dalemusser/impacthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Service manages NGO verification reports. Every operation is admin only.
type Service struct {
	reports *reportstore.Store
	ngos    *ngostore.Store
	runner  *txn.Runner
	now     func() time.Time
}

func NewService(db *mongo.Database, runner *txn.Runner) *Service {
	return &Service{
		reports: reportstore.New(db),
		ngos:    ngostore.New(db),
		runner:  runner,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

var (
	errNotFound    = apperr.Missing("Verification report not found")
	errNGONotFound = apperr.Missing("NGO not found")
	errDuplicate   = apperr.Conflicting("A verification report already exists for this NGO")
)

var validSeverities = map[string]bool{
	models.SeverityLow:    true,
	models.SeverityMedium: true,
	models.SeverityHigh:   true,
}

func allowed(actor *models.User) error {
	if d := accesspolicy.Evaluate(accesspolicy.AdminReports, actor); !d.Allowed {
		return d.Denied()
	}
	return nil
}

// cleanFlags returns the normalized red flags, recording problems on v.
func cleanFlags(v *inputval.Errors, flags []models.RedFlag) []models.RedFlag {
	out := make([]models.RedFlag, 0, len(flags))
	for _, f := range flags {
		f.Flag = htmlsanitize.PlainText(f.Flag)
		f.Severity = normalize.Status(f.Severity)
		if f.Severity == "" {
			f.Severity = models.SeverityLow
		}
		v.Add(f.Flag == "", "red flag text is required")
		v.Add(!validSeverities[f.Severity], "red flag severity must be LOW, MEDIUM or HIGH")
		out = append(out, f)
	}
	return out
}

func checkScore(v *inputval.Errors, score int) {
	v.Add(score < 0 || score > 100, "credibility_score must be between 0 and 100")
}

func checkStatus(v *inputval.Errors, status string) {
	v.Add(status != models.ReportPending && status != models.ReportDone, "status must be PENDING or DONE")
}

// CreateInput is the body of POST /api/verification-reports.
type CreateInput struct {
	NGO              string           `json:"ngo"`
	CredibilityScore *int             `json:"credibility_score"`
	RedFlags         []models.RedFlag `json:"red_flags"`
	Summary          string           `json:"summary"`
	ReviewComments   string           `json:"review_comments"`
	Status           string           `json:"status"`
}

// Create files the single active report for an NGO, reviewed by actor.
// A DONE report scoring at least the auto-verify threshold verifies the
// NGO in the same unit of work.
func (s *Service) Create(ctx context.Context, actor *models.User, in CreateInput) (*models.VerificationReport, error) {
	if err := allowed(actor); err != nil {
		return nil, err
	}

	status := normalize.Status(in.Status)
	if status == "" {
		status = models.ReportPending
	}
	var v inputval.Errors
	ngoID, err := primitive.ObjectIDFromHex(in.NGO)
	v.Add(err != nil, "ngo must be a valid id")
	v.Add(in.CredibilityScore == nil, "credibility_score is required")
	if in.CredibilityScore != nil {
		checkScore(&v, *in.CredibilityScore)
	}
	checkStatus(&v, status)
	flags := cleanFlags(&v, in.RedFlags)
	v.MaxLen("summary", in.Summary, 5000)
	v.MaxLen("review_comments", in.ReviewComments, 5000)
	if err := v.Err(); err != nil {
		return nil, err
	}

	if _, err := s.ngos.GetActiveByID(ctx, ngoID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errNGONotFound
		}
		return nil, err
	}
	exists, err := s.reports.ExistsForNGO(ctx, ngoID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errDuplicate
	}

	var out *models.VerificationReport
	err = s.runner.Run(ctx, func(ctx context.Context) error {
		rep, err := s.reports.Create(ctx, models.VerificationReport{
			NGO:              ngoID,
			CredibilityScore: *in.CredibilityScore,
			RedFlags:         flags,
			Summary:          htmlsanitize.PlainText(in.Summary),
			ReviewComments:   htmlsanitize.PlainText(in.ReviewComments),
			ReviewedBy:       actor.ID,
			Status:           status,
		})
		if err != nil {
			return err
		}
		out, err = s.autoVerify(ctx, &rep)
		return err
	})
	if errors.Is(err, reportstore.ErrDuplicate) {
		return nil, apperr.Wrap(err, apperr.Conflict, errDuplicate.Message)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// autoVerify verifies the report's NGO when the report qualifies, carrying
// the credibility score over, and stamps verified_at on the report.
func (s *Service) autoVerify(ctx context.Context, r *models.VerificationReport) (*models.VerificationReport, error) {
	if !r.QualifiesForAutoVerify() {
		return r, nil
	}
	score := r.CredibilityScore
	if _, err := s.ngos.Verify(ctx, r.NGO, &score); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errNGONotFound
		}
		return nil, err
	}
	return s.reports.MarkVerified(ctx, r.ID, s.now())
}

// ListFilter narrows the report list. Values come straight from the query
// string.
type ListFilter struct {
	Status string
	NGO    string
}

// List returns one page of live reports, newest first.
func (s *Service) List(ctx context.Context, actor *models.User, f ListFilter, p paging.Params) (paging.Result[models.VerificationReport], error) {
	var zero paging.Result[models.VerificationReport]
	if err := allowed(actor); err != nil {
		return zero, err
	}
	sf := reportstore.ListFilter{Status: normalize.Status(f.Status)}
	if f.NGO != "" {
		oid, err := primitive.ObjectIDFromHex(f.NGO)
		if err != nil {
			return zero, apperr.Invalid("invalid ngo")
		}
		sf.NGO = &oid
	}
	rows, total, err := s.reports.List(ctx, sf, p)
	if err != nil {
		return zero, err
	}
	return paging.NewResult(rows, p, total), nil
}

// Get returns a live report.
func (s *Service) Get(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.VerificationReport, error) {
	if err := allowed(actor); err != nil {
		return nil, err
	}
	r, err := s.reports.GetActiveByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errNotFound
	}
	return r, err
}

// UpdateInput is the body of PUT /api/verification-reports/{id}. The NGO
// and reviewer cannot be changed; omitted fields are left unchanged.
type UpdateInput struct {
	CredibilityScore *int             `json:"credibility_score"`
	RedFlags         []models.RedFlag `json:"red_flags"`
	Summary          *string          `json:"summary"`
	ReviewComments   *string          `json:"review_comments"`
	Status           *string          `json:"status"`
}

// Update edits a live report and re-evaluates auto-verification.
func (s *Service) Update(ctx context.Context, actor *models.User, id primitive.ObjectID, in UpdateInput) (*models.VerificationReport, error) {
	if err := allowed(actor); err != nil {
		return nil, err
	}

	upd := reportstore.Update{CredibilityScore: in.CredibilityScore}
	var v inputval.Errors
	if in.CredibilityScore != nil {
		checkScore(&v, *in.CredibilityScore)
	}
	if in.Status != nil {
		st := normalize.Status(*in.Status)
		checkStatus(&v, st)
		upd.Status = &st
	}
	if in.RedFlags != nil {
		upd.RedFlags = cleanFlags(&v, in.RedFlags)
	}
	if in.Summary != nil {
		v.MaxLen("summary", *in.Summary, 5000)
		sum := htmlsanitize.PlainText(*in.Summary)
		upd.Summary = &sum
	}
	if in.ReviewComments != nil {
		v.MaxLen("review_comments", *in.ReviewComments, 5000)
		rc := htmlsanitize.PlainText(*in.ReviewComments)
		upd.ReviewComments = &rc
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	cur, err := s.reports.GetActiveByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, err
	}
	// An edit that will auto-verify needs a live NGO before anything is written.
	next := *cur
	if upd.CredibilityScore != nil {
		next.CredibilityScore = *upd.CredibilityScore
	}
	if upd.Status != nil {
		next.Status = *upd.Status
	}
	if next.QualifiesForAutoVerify() {
		if _, err := s.ngos.GetActiveByID(ctx, cur.NGO); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, errNGONotFound
			}
			return nil, err
		}
	}

	var out *models.VerificationReport
	err = s.runner.Run(ctx, func(ctx context.Context) error {
		r, err := s.reports.Update(ctx, id, upd)
		if err != nil {
			return err
		}
		out, err = s.autoVerify(ctx, r)
		return err
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete soft-deletes a live report. The NGO keeps its verification
// status.
func (s *Service) Delete(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.VerificationReport, error) {
	if err := allowed(actor); err != nil {
		return nil, err
	}
	r, err := s.reports.GetActiveByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.reports.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errNotFound
		}
		return nil, err
	}
	return r, nil
}
