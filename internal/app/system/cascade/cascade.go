// Package cascade applies soft-deletes that must reach dependent records:
// NGO -> events -> participations, event -> participations, and user ->
// own participations (plus created NGOs -> ... for an NGO_ADMIN).
//
// Each cascade is journaled before it starts and marked done when it
// finishes. Every step only flips is_deleted from false to true, so a
// journaled cascade interrupted part way can be re-applied by Resume.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"time"

	cascadestore "github.com/dalemusser/impacthub/internal/app/store/cascades"
	eventstore "github.com/dalemusser/impacthub/internal/app/store/events"
	ngostore "github.com/dalemusser/impacthub/internal/app/store/ngos"
	participationstore "github.com/dalemusser/impacthub/internal/app/store/participations"
	userstore "github.com/dalemusser/impacthub/internal/app/store/users"
	"github.com/dalemusser/impacthub/internal/app/system/metrics"
	"github.com/dalemusser/impacthub/internal/app/system/txn"
	"github.com/dalemusser/impacthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Engine runs journaled cascades.
type Engine struct {
	runner  *txn.Runner
	journal *cascadestore.Store
	users   *userstore.Store
	ngos    *ngostore.Store
	events  *eventstore.Store
	parts   *participationstore.Store
	log     *zap.Logger
}

// New builds an Engine over db. runner decides whether steps share a
// transaction.
func New(db *mongo.Database, runner *txn.Runner, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		runner:  runner,
		journal: cascadestore.New(db),
		users:   userstore.New(db),
		ngos:    ngostore.New(db),
		events:  eventstore.New(db),
		parts:   participationstore.New(db),
		log:     log,
	}
}

// DeleteNGO soft-deletes a live NGO with its events and their
// participations. Returns mongo.ErrNoDocuments when the NGO is not live.
func (e *Engine) DeleteNGO(ctx context.Context, id, actor primitive.ObjectID) error {
	return e.run(ctx, models.CascadeNGO, id, actor)
}

// DeleteEvent soft-deletes a live event and its participations.
func (e *Engine) DeleteEvent(ctx context.Context, id, actor primitive.ObjectID) error {
	return e.run(ctx, models.CascadeEvent, id, actor)
}

// DeleteUser soft-deletes a live user and the user's own participations.
// For an NGO_ADMIN the NGOs they created go too, with their events and
// participations.
func (e *Engine) DeleteUser(ctx context.Context, id, actor primitive.ObjectID) error {
	return e.run(ctx, models.CascadeUser, id, actor)
}

func (e *Engine) run(ctx context.Context, kind string, root, actor primitive.ObjectID) error {
	entry, err := e.journal.Begin(ctx, kind, root, actor)
	if err != nil {
		return fmt.Errorf("journal cascade: %w", err)
	}

	err = e.runner.Run(ctx, func(ctx context.Context) error {
		if err := e.deleteRoot(ctx, kind, root); err != nil {
			return err
		}
		return e.deleteChildren(ctx, kind, root)
	})

	switch {
	case err == nil:
		if derr := e.journal.Done(ctx, entry.ID); derr != nil {
			e.log.Warn("cascade applied but journal not closed", zap.String("entry_id", entry.ID.Hex()), zap.Error(derr))
		}
		metrics.Cascades.WithLabelValues(kind, "ok").Inc()
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		if derr := e.journal.Discard(ctx, entry.ID); derr != nil {
			e.log.Warn("failed to discard cascade entry", zap.String("entry_id", entry.ID.Hex()), zap.Error(derr))
		}
		metrics.Cascades.WithLabelValues(kind, "not_found").Inc()
		return err
	case e.runner.Transactional():
		// The transaction aborted, so no step was applied.
		if aerr := e.journal.Abandon(ctx, entry.ID, err); aerr != nil {
			e.log.Warn("failed to abandon cascade entry", zap.String("entry_id", entry.ID.Hex()), zap.Error(aerr))
		}
		metrics.Cascades.WithLabelValues(kind, "error").Inc()
		e.log.Error("cascade rolled back",
			zap.String("kind", kind), zap.String("root_id", root.Hex()), zap.Error(err))
		return err
	default:
		if ferr := e.journal.Fail(ctx, entry.ID, err); ferr != nil {
			e.log.Warn("failed to record cascade failure", zap.String("entry_id", entry.ID.Hex()), zap.Error(ferr))
		}
		metrics.Cascades.WithLabelValues(kind, "error").Inc()
		e.log.Error("cascade failed; left for resume",
			zap.String("kind", kind), zap.String("root_id", root.Hex()), zap.Error(err))
		return err
	}
}

func (e *Engine) deleteRoot(ctx context.Context, kind string, root primitive.ObjectID) error {
	switch kind {
	case models.CascadeNGO:
		return e.ngos.SoftDelete(ctx, root)
	case models.CascadeEvent:
		return e.events.SoftDelete(ctx, root)
	case models.CascadeUser:
		return e.users.SoftDelete(ctx, root)
	}
	return fmt.Errorf("unknown cascade kind %q", kind)
}

// deleteChildren applies every dependent step. It tolerates a root that is
// already deleted and children already deleted.
func (e *Engine) deleteChildren(ctx context.Context, kind string, root primitive.ObjectID) error {
	switch kind {
	case models.CascadeNGO:
		return e.deleteNGOChildren(ctx, []primitive.ObjectID{root})
	case models.CascadeEvent:
		_, err := e.parts.SoftDeleteByEvents(ctx, []primitive.ObjectID{root})
		return err
	case models.CascadeUser:
		ownsNGOs, err := e.isNGOAdmin(ctx, root)
		if err != nil {
			return err
		}
		if ownsNGOs {
			ngoIDs, err := e.ngos.IDsByCreator(ctx, root, true)
			if err != nil {
				return err
			}
			if _, err := e.ngos.SoftDeleteByCreator(ctx, root); err != nil {
				return err
			}
			if err := e.deleteNGOChildren(ctx, ngoIDs); err != nil {
				return err
			}
		}
		_, err = e.parts.SoftDeleteByUser(ctx, root)
		return err
	}
	return fmt.Errorf("unknown cascade kind %q", kind)
}

// isNGOAdmin reports whether the (possibly already deleted) user holds the
// NGO_ADMIN role. Only their NGOs go down with them; a USER who registered
// an NGO keeps it.
func (e *Engine) isNGOAdmin(ctx context.Context, id primitive.ObjectID) (bool, error) {
	u, err := e.users.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.Role == models.RoleNGOAdmin, nil
}

func (e *Engine) deleteNGOChildren(ctx context.Context, ngoIDs []primitive.ObjectID) error {
	if len(ngoIDs) == 0 {
		return nil
	}
	eventIDs, err := e.events.IDsByNGOs(ctx, ngoIDs)
	if err != nil {
		return err
	}
	if _, err := e.events.SoftDeleteByNGOs(ctx, ngoIDs); err != nil {
		return err
	}
	_, err = e.parts.SoftDeleteByEvents(ctx, eventIDs)
	return err
}

// Resume re-applies pending cascades last touched before now-grace. It
// returns how many entries were completed.
func (e *Engine) Resume(ctx context.Context, grace time.Duration, batch int64) (int, error) {
	stale, err := e.journal.Stale(ctx, time.Now().UTC().Add(-grace), batch)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, entry := range stale {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		err := e.runner.Run(ctx, func(ctx context.Context) error {
			if err := e.deleteRoot(ctx, entry.Kind, entry.RootID); err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
				return err
			}
			return e.deleteChildren(ctx, entry.Kind, entry.RootID)
		})
		if err != nil {
			_ = e.journal.Fail(ctx, entry.ID, err)
			e.log.Warn("cascade resume failed",
				zap.String("entry_id", entry.ID.Hex()), zap.String("kind", entry.Kind), zap.Error(err))
			continue
		}
		if err := e.journal.Done(ctx, entry.ID); err != nil {
			return done, err
		}
		metrics.Cascades.WithLabelValues(entry.Kind, "resumed").Inc()
		done++
	}
	return done, nil
}
