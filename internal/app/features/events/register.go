// internal/app/features/events/register.go
package events

import (
	"context"
	"errors"

	"github.com/dalemusser/impacthub/internal/app/policy/accesspolicy"
	participationstore "github.com/dalemusser/impacthub/internal/app/store/participations"
	"github.com/dalemusser/impacthub/internal/app/system/apperr"
	"github.com/dalemusser/impacthub/internal/app/system/metrics"
	"github.com/dalemusser/impacthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	errFull          = apperr.Conflicting("Event is at full capacity")
	errNotOpen       = apperr.Conflicting("Event is not open for registration")
	errEnded         = apperr.Conflicting("Event has already ended")
	errAlreadyJoined = apperr.Conflicting("You are already registered for this event")
)

// registrationOutcome is the metrics label for a Register result.
func registrationOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errFull):
		return "full"
	case errors.Is(err, errAlreadyJoined):
		return "duplicate"
	case apperr.Is(err, apperr.Conflict):
		return "closed"
	case apperr.Is(err, apperr.NotFound):
		return "not_found"
	case apperr.Is(err, apperr.Authorization):
		return "forbidden"
	}
	return "error"
}

// Register signs the actor up for a published, not yet ended event with a
// free seat.
func (s *Service) Register(ctx context.Context, actor *models.User, eventID primitive.ObjectID) (p models.Participation, err error) {
	defer func() {
		metrics.Registrations.WithLabelValues(registrationOutcome(err)).Inc()
	}()

	if d := accesspolicy.Evaluate(accesspolicy.EventRegister, actor); !d.Allowed {
		return models.Participation{}, d.Denied()
	}

	ev, err := s.get(ctx, eventID)
	if err != nil {
		return models.Participation{}, err
	}
	if ev.Status != models.EventPublished {
		return models.Participation{}, errNotOpen
	}
	if ev.HasEnded(s.now()) {
		return models.Participation{}, errEnded
	}

	err = s.runner.Run(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.claimSeat(ctx, actor.ID, ev)
		return err
	})
	switch {
	case errors.Is(err, participationstore.ErrDuplicate):
		return models.Participation{}, errAlreadyJoined
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.Participation{}, errNotFound
	case err != nil:
		return models.Participation{}, err
	}
	return p, nil
}

// claimSeat inserts the participation while respecting capacity. Inside a
// transaction the event lock serialises concurrent claims, so counting
// first is exact. Without one, the seats are recounted after the insert and
// the insert is undone when it overshot; concurrent claims can then both
// back out, but never both stay.
func (s *Service) claimSeat(ctx context.Context, user primitive.ObjectID, ev *models.Event) (models.Participation, error) {
	if ev.MaxCapacity == nil {
		return s.parts.Create(ctx, user, ev.ID)
	}
	capacity := int64(*ev.MaxCapacity)

	if err := s.events.Lock(ctx, ev.ID); err != nil {
		return models.Participation{}, err
	}
	taken, err := s.parts.CountActive(ctx, ev.ID)
	if err != nil {
		return models.Participation{}, err
	}
	if taken >= capacity {
		return models.Participation{}, errFull
	}

	p, err := s.parts.Create(ctx, user, ev.ID)
	if err != nil {
		return models.Participation{}, err
	}
	if mongo.SessionFromContext(ctx) != nil {
		return p, nil
	}

	taken, err = s.parts.CountActive(ctx, ev.ID)
	if err == nil && taken <= capacity {
		return p, nil
	}
	if rerr := s.parts.Remove(ctx, p.ID); rerr != nil {
		return models.Participation{}, errors.Join(err, rerr)
	}
	if err != nil {
		return models.Participation{}, err
	}
	return models.Participation{}, errFull
}

// Unregister soft-deletes the actor's own participation in an event.
func (s *Service) Unregister(ctx context.Context, actor *models.User, eventID primitive.ObjectID) error {
	if d := accesspolicy.Evaluate(accesspolicy.EventUnregister, actor); !d.Allowed {
		return d.Denied()
	}
	p, err := s.parts.GetActive(ctx, actor.ID, eventID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.Invalid("You are not registered for this event")
	}
	if err != nil {
		return err
	}
	if err := s.parts.SoftDelete(ctx, p.ID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.Invalid("You are not registered for this event")
		}
		return err
	}
	return nil
}
