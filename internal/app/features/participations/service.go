// internal/app/features/participations/service.go
package participations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/impacthub/internal/app/policy/accesspolicy"
	"github.com/dalemusser/impacthub/internal/app/policy/eventpolicy"
	eventstore "github.com/dalemusser/impacthub/internal/app/store/events"
	participationstore "github.com/dalemusser/impacthub/internal/app/store/participations"
	userstore "github.com/dalemusser/impacthub/internal/app/store/users"
	"github.com/dalemusser/impacthub/internal/app/system/apperr"
	"github.com/dalemusser/impacthub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/impacthub/internal/app/system/inputval"
	"github.com/dalemusser/impacthub/internal/app/system/metrics"
	"github.com/dalemusser/impacthub/internal/app/system/txn"
	"github.com/dalemusser/impacthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Service implements attendance, feedback and certificates.
type Service struct {
	db     *mongo.Database
	parts  *participationstore.Store
	events *eventstore.Store
	users  *userstore.Store
	runner *txn.Runner
	log    *zap.Logger
}

func NewService(db *mongo.Database, runner *txn.Runner, logger *zap.Logger) *Service {
	return &Service{
		db:     db,
		parts:  participationstore.New(db),
		events: eventstore.New(db),
		users:  userstore.New(db),
		runner: runner,
		log:    logger,
	}
}

var (
	errNotFound      = apperr.Missing("Participation not found")
	errEventNotFound = apperr.Missing("Event not found")
)

func (s *Service) get(ctx context.Context, id primitive.ObjectID) (*models.Participation, error) {
	p, err := s.parts.GetActiveByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errNotFound
	}
	return p, err
}

func (s *Service) event(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	ev, err := s.events.GetActiveByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errEventNotFound
	}
	return ev, err
}

// managed loads a participation and its event and checks that actor may
// manage the event's roster.
func (s *Service) managed(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.Participation, *models.Event, error) {
	p, err := s.get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ev, err := s.event(ctx, p.Event)
	if err != nil {
		return nil, nil, err
	}
	if err := eventpolicy.Require(ctx, s.db, accesspolicy.ParticipationManage, actor, ev); err != nil {
		return nil, nil, err
	}
	return p, ev, nil
}

// EventSummary is the event projection on a participant's own list.
type EventSummary struct {
	ID        primitive.ObjectID `json:"id"`
	Title     string             `json:"title"`
	DateStart time.Time          `json:"date_start"`
	DateEnd   *time.Time         `json:"date_end,omitempty"`
	Status    string             `json:"status"`
}

// MineRow is one of the actor's participations with its event.
type MineRow struct {
	models.Participation
	EventInfo *EventSummary `json:"event_info"`
}

// ListMine returns the actor's live participations, newest first.
func (s *Service) ListMine(ctx context.Context, actor *models.User) ([]MineRow, error) {
	if d := accesspolicy.Evaluate(accesspolicy.ParticipationListMine, actor); !d.Allowed {
		return nil, d.Denied()
	}
	rows, err := s.parts.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, p := range rows {
		ids = append(ids, p.Event)
	}
	evs, err := s.events.ByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]MineRow, 0, len(rows))
	for _, p := range rows {
		row := MineRow{Participation: p}
		if ev, ok := evs[p.Event]; ok {
			row.EventInfo = &EventSummary{ID: ev.ID, Title: ev.Title, DateStart: ev.DateStart, DateEnd: ev.DateEnd, Status: ev.Status}
		}
		out = append(out, row)
	}
	return out, nil
}

// UserSummary is the participant projection on an event roster.
type UserSummary struct {
	ID     primitive.ObjectID `json:"id"`
	Name   string             `json:"name"`
	Email  string             `json:"email"`
	Points int                `json:"points"`
	Badges []string           `json:"badges"`
}

// RosterRow is one participation on an event roster.
type RosterRow struct {
	models.Participation
	UserInfo *UserSummary `json:"user_info"`
}

// ListByEvent returns the roster of an event the actor manages.
func (s *Service) ListByEvent(ctx context.Context, actor *models.User, eventID primitive.ObjectID) ([]RosterRow, error) {
	ev, err := s.event(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := eventpolicy.Require(ctx, s.db, accesspolicy.ParticipationManage, actor, ev); err != nil {
		return nil, err
	}

	rows, err := s.parts.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, p := range rows {
		ids = append(ids, p.User)
	}
	users, err := s.users.NamesByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]RosterRow, 0, len(rows))
	for _, p := range rows {
		row := RosterRow{Participation: p}
		if u, ok := users[p.User]; ok {
			badges := u.Badges
			if badges == nil {
				badges = []string{}
			}
			row.UserInfo = &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Points: u.Points, Badges: badges}
		}
		out = append(out, row)
	}
	return out, nil
}

// MarkAttended moves a participation to ATTENDED and credits the
// participant once. Marking an already attended participation returns it
// unchanged.
func (s *Service) MarkAttended(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.Participation, error) {
	p, ev, err := s.managed(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if p.Status == models.ParticipationCancelled {
		return nil, apperr.Conflicting("A cancelled participation cannot be marked attended")
	}

	var out *models.Participation
	var credited bool
	err = s.runner.Run(ctx, func(ctx context.Context) error {
		updated, changed, err := s.parts.MarkAttended(ctx, id, models.AttendancePoints, models.BadgeVolunteerVeteran)
		if err != nil {
			return err
		}
		out, credited = updated, changed
		if !changed {
			return nil
		}
		msg := fmt.Sprintf("You earned %d points for attending %q.", models.AttendancePoints, ev.Title)
		return s.users.Award(ctx, p.User, models.AttendancePoints, models.BadgeVolunteerVeteran, msg)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, err
	}
	if credited {
		metrics.Attendance.Inc()
		s.log.Info("attendance marked",
			zap.String("participation_id", id.Hex()),
			zap.String("user_id", p.User.Hex()),
			zap.String("event_id", ev.ID.Hex()))
	}
	return out, nil
}

// FeedbackInput is the body of POST /api/participations/{id}/feedback.
type FeedbackInput struct {
	Feedback string `json:"feedback"`
	Rating   int    `json:"rating"`
}

// SubmitFeedback records the participant's own feedback on a completed
// event they attended.
func (s *Service) SubmitFeedback(ctx context.Context, actor *models.User, id primitive.ObjectID, in FeedbackInput) (*models.Participation, error) {
	p, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	d := accesspolicy.Evaluate(accesspolicy.ParticipationFeedback, actor)
	if !d.Allowed {
		return nil, d.Denied()
	}
	if p.User != actor.ID {
		return nil, apperr.Forbidden("You can only leave feedback on your own participation")
	}

	var v inputval.Errors
	v.Add(in.Rating < 1 || in.Rating > 5, "rating must be between 1 and 5")
	v.MaxLen("feedback", in.Feedback, 2000)
	if err := v.Err(); err != nil {
		return nil, err
	}

	ev, err := s.event(ctx, p.Event)
	if err != nil {
		return nil, err
	}
	if ev.Status != models.EventCompleted {
		return nil, apperr.Conflicting("Feedback can only be submitted once the event is completed")
	}
	if p.Status != models.ParticipationAttended {
		return nil, apperr.Conflicting("Feedback can only be submitted for events you attended")
	}

	updated, err := s.parts.SetFeedback(ctx, id, htmlsanitize.PlainText(in.Feedback), in.Rating)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errNotFound
	}
	return updated, err
}

// IssueCertificate flags the certificate of an attended participation.
func (s *Service) IssueCertificate(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.Participation, error) {
	p, _, err := s.managed(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.ParticipationAttended {
		return nil, apperr.Conflicting("A certificate can only be issued after attendance is marked")
	}
	updated, err := s.parts.IssueCertificate(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errNotFound
	}
	return updated, err
}
