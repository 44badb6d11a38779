// internal/app/features/events/service.go
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/impacthub/internal/app/policy/accesspolicy"
	"github.com/dalemusser/impacthub/internal/app/policy/eventpolicy"
	eventstore "github.com/dalemusser/impacthub/internal/app/store/events"
	ngostore "github.com/dalemusser/impacthub/internal/app/store/ngos"
	participationstore "github.com/dalemusser/impacthub/internal/app/store/participations"
	userstore "github.com/dalemusser/impacthub/internal/app/store/users"
	"github.com/dalemusser/impacthub/internal/app/system/apperr"
	"github.com/dalemusser/impacthub/internal/app/system/cascade"
	"github.com/dalemusser/impacthub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/impacthub/internal/app/system/inputval"
	"github.com/dalemusser/impacthub/internal/app/system/normalize"
	"github.com/dalemusser/impacthub/internal/app/system/paging"
	"github.com/dalemusser/impacthub/internal/app/system/txn"
	"github.com/dalemusser/impacthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Service implements the event lifecycle and registration.
type Service struct {
	db       *mongo.Database
	events   *eventstore.Store
	ngos     *ngostore.Store
	users    *userstore.Store
	parts    *participationstore.Store
	runner   *txn.Runner
	cascades *cascade.Engine
	now      func() time.Time
}

func NewService(db *mongo.Database, runner *txn.Runner, cascades *cascade.Engine) *Service {
	return &Service{
		db:       db,
		events:   eventstore.New(db),
		ngos:     ngostore.New(db),
		users:    userstore.New(db),
		parts:    participationstore.New(db),
		runner:   runner,
		cascades: cascades,
		now:      time.Now,
	}
}

var errNotFound = apperr.Missing("Event not found")

func validStatus(st string) bool {
	return models.EventStatusRank(st) >= 0
}

// CreateInput is the body of POST /api/events.
type CreateInput struct {
	NGO          string               `json:"ngo"`
	Title        string               `json:"title"`
	Description  string               `json:"description"`
	Category     string               `json:"category"`
	Tags         []string             `json:"tags"`
	DateStart    *time.Time           `json:"date_start"`
	DateEnd      *time.Time           `json:"date_end"`
	IsOnline     bool                 `json:"is_online"`
	Location     models.EventLocation `json:"location"`
	Requirements string               `json:"requirements"`
	MaxCapacity  *int                 `json:"max_capacity"`
	Status       string               `json:"status"`
	CoverImage   string               `json:"cover_image"`
}

// Create adds an event under an NGO. An NGO admin may only use an active NGO
// they created.
func (s *Service) Create(ctx context.Context, actor *models.User, in CreateInput) (View, error) {
	d := accesspolicy.Evaluate(accesspolicy.EventCreate, actor)
	if !d.Allowed {
		return View{}, d.Denied()
	}

	var v inputval.Errors
	ngoID, idErr := primitive.ObjectIDFromHex(in.NGO)
	v.Add(idErr != nil, "ngo must be a valid id")
	v.Required("title", in.Title)
	v.MaxLen("title", in.Title, 200)
	v.Add(in.DateStart == nil, "date_start is required")
	v.Add(in.DateStart != nil && in.DateEnd != nil && in.DateEnd.Before(*in.DateStart), "date_end must not be before date_start")
	v.Add(in.MaxCapacity != nil && *in.MaxCapacity < 1, "max_capacity must be at least 1")
	status := normalize.Status(in.Status)
	if status == "" {
		status = models.EventDraft
	}
	v.Add(!validStatus(status), "status must be DRAFT, PUBLISHED or COMPLETED")
	if err := v.Err(); err != nil {
		return View{}, err
	}

	ngo, err := s.ngos.GetActiveByID(ctx, ngoID)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		if d.Scope != accesspolicy.All {
			return View{}, apperr.Forbidden("forbidden")
		}
		return View{}, apperr.Missing("NGO not found")
	case err != nil:
		return View{}, err
	}
	if d.Scope != accesspolicy.All && ngo.CreatedBy != actor.ID {
		return View{}, apperr.Forbidden("forbidden")
	}

	ev, err := s.events.Create(ctx, models.Event{
		NGO:             ngo.ID,
		CreatedBy:       actor.ID,
		Title:           htmlsanitize.PlainText(in.Title),
		Description:     in.Description,
		DescriptionHTML: htmlsanitize.RenderMarkdown(in.Description),
		Category:        htmlsanitize.PlainText(in.Category),
		Tags:            in.Tags,
		DateStart:       in.DateStart.UTC(),
		DateEnd:         utcPtr(in.DateEnd),
		IsOnline:        in.IsOnline,
		Location:        in.Location,
		Requirements:    htmlsanitize.PlainText(in.Requirements),
		MaxCapacity:     in.MaxCapacity,
		Status:          status,
		CoverImage:      in.CoverImage,
	})
	if err != nil {
		return View{}, err
	}
	return View{Event: ev, NGOName: ngo.Name, CreatorName: actor.Name, CreatorEmail: actor.Email}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// ListFilter narrows List. NGO is a hex id.
type ListFilter struct {
	Search   string
	Status   string
	Category string
	NGO      string
}

// List returns one page of live events ordered by start date.
func (s *Service) List(ctx context.Context, f ListFilter, p paging.Params) (paging.Result[View], error) {
	sf := eventstore.ListFilter{Search: f.Search, Status: normalize.Status(f.Status), Category: f.Category}
	if f.NGO != "" {
		oid, err := primitive.ObjectIDFromHex(f.NGO)
		if err != nil {
			return paging.Result[View]{}, apperr.Invalid("invalid ngo")
		}
		sf.NGO = &oid
	}
	rows, total, err := s.events.List(ctx, sf, p)
	if err != nil {
		return paging.Result[View]{}, err
	}
	views, err := s.project(ctx, rows)
	if err != nil {
		return paging.Result[View]{}, err
	}
	return paging.NewResult(views, p, total), nil
}

// Get returns one live event with its projections.
func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (View, error) {
	ev, err := s.get(ctx, id)
	if err != nil {
		return View{}, err
	}
	views, err := s.project(ctx, []models.Event{*ev})
	if err != nil {
		return View{}, err
	}
	return views[0], nil
}

func (s *Service) get(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	ev, err := s.events.GetActiveByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errNotFound
	}
	return ev, err
}

// UpdateInput is the body of PUT /api/events/{id}. Omitted fields are left
// unchanged; ClearDateEnd and ClearMaxCapacity remove the optional fields.
type UpdateInput struct {
	Title            *string               `json:"title"`
	Description      *string               `json:"description"`
	Category         *string               `json:"category"`
	Tags             []string              `json:"tags"`
	DateStart        *time.Time            `json:"date_start"`
	DateEnd          *time.Time            `json:"date_end"`
	ClearDateEnd     bool                  `json:"clear_date_end"`
	IsOnline         *bool                 `json:"is_online"`
	Location         *models.EventLocation `json:"location"`
	Requirements     *string               `json:"requirements"`
	MaxCapacity      *int                  `json:"max_capacity"`
	ClearMaxCapacity bool                  `json:"clear_max_capacity"`
	Status           *string               `json:"status"`
	CoverImage       *string               `json:"cover_image"`
}

// Update applies in to an event the actor manages. Status only moves
// forward, and capacity cannot drop below the seats already taken.
func (s *Service) Update(ctx context.Context, actor *models.User, id primitive.ObjectID, in UpdateInput) (View, error) {
	ev, err := s.get(ctx, id)
	if err != nil {
		return View{}, err
	}
	if err := eventpolicy.Require(ctx, s.db, accesspolicy.EventUpdate, actor, ev); err != nil {
		return View{}, err
	}

	var v inputval.Errors
	if in.Title != nil {
		v.Required("title", *in.Title)
		v.MaxLen("title", *in.Title, 200)
	}
	start := ev.DateStart
	if in.DateStart != nil {
		start = *in.DateStart
	}
	end := ev.DateEnd
	if in.DateEnd != nil {
		end = in.DateEnd
	} else if in.ClearDateEnd {
		end = nil
	}
	v.Add(end != nil && end.Before(start), "date_end must not be before date_start")
	v.Add(in.MaxCapacity != nil && *in.MaxCapacity < 1, "max_capacity must be at least 1")
	var status *string
	if in.Status != nil {
		st := normalize.Status(*in.Status)
		v.Add(!validStatus(st), "status must be DRAFT, PUBLISHED or COMPLETED")
		status = &st
	}
	if err := v.Err(); err != nil {
		return View{}, err
	}
	if status != nil && models.EventStatusRank(*status) < models.EventStatusRank(ev.Status) {
		return View{}, apperr.Conflicting(fmt.Sprintf("event status cannot move back from %s to %s", ev.Status, *status))
	}

	upd := eventstore.Update{
		Category:      in.Category,
		Tags:          in.Tags,
		DateStart:     utcPtr(in.DateStart),
		DateEnd:       utcPtr(in.DateEnd),
		ClearDateEnd:  in.ClearDateEnd,
		IsOnline:      in.IsOnline,
		Location:      in.Location,
		MaxCapacity:   in.MaxCapacity,
		ClearCapacity: in.ClearMaxCapacity,
		Status:        status,
		CoverImage:    in.CoverImage,
	}
	if in.Title != nil {
		title := htmlsanitize.PlainText(*in.Title)
		upd.Title = &title
	}
	if in.Requirements != nil {
		req := htmlsanitize.PlainText(*in.Requirements)
		upd.Requirements = &req
	}
	if in.Description != nil {
		html := htmlsanitize.RenderMarkdown(*in.Description)
		upd.Description = in.Description
		upd.DescriptionHTML = &html
	}

	var updated *models.Event
	err = s.runner.Run(ctx, func(ctx context.Context) error {
		if in.MaxCapacity != nil {
			if err := s.events.Lock(ctx, id); err != nil {
				return err
			}
			taken, err := s.parts.CountActive(ctx, id)
			if err != nil {
				return err
			}
			if taken > int64(*in.MaxCapacity) {
				return apperr.Conflicting(fmt.Sprintf("max_capacity cannot be lower than the %d current registrations", taken))
			}
		}
		var err error
		updated, err = s.events.Update(ctx, id, upd)
		return err
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return View{}, errNotFound
	}
	if err != nil {
		return View{}, err
	}
	views, err := s.project(ctx, []models.Event{*updated})
	if err != nil {
		return View{}, err
	}
	return views[0], nil
}

// Delete soft-deletes an event and its participations.
func (s *Service) Delete(ctx context.Context, actor *models.User, id primitive.ObjectID) error {
	ev, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := eventpolicy.Require(ctx, s.db, accesspolicy.EventDelete, actor, ev); err != nil {
		return err
	}
	if err := s.cascades.DeleteEvent(ctx, id, actor.ID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return errNotFound
		}
		return err
	}
	return nil
}

// ListMine returns the actor's events: those a volunteer is registered
// for, those an NGO admin created, or every event for an admin.
func (s *Service) ListMine(ctx context.Context, actor *models.User) ([]View, error) {
	d := accesspolicy.Evaluate(accesspolicy.EventListMine, actor)
	if !d.Allowed {
		return nil, d.Denied()
	}

	var f eventstore.ListFilter
	switch {
	case d.Scope == accesspolicy.All:
	case actor.Role == models.RoleUser:
		ids, err := s.parts.EventIDsByUser(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		f.IDs = ids
	default:
		f.CreatedBy = &actor.ID
	}

	rows, err := s.events.ListAll(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.project(ctx, rows)
}
