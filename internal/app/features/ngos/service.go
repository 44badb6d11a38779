// internal/app/features/ngos/service.go
package ngos

import (
	"context"
	"errors"

	"github.com/dalemusser/impacthub/internal/app/policy/accesspolicy"
	ngostore "github.com/dalemusser/impacthub/internal/app/store/ngos"
	"github.com/dalemusser/impacthub/internal/app/system/apperr"
	"github.com/dalemusser/impacthub/internal/app/system/cascade"
	"github.com/dalemusser/impacthub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/impacthub/internal/app/system/inputval"
	"github.com/dalemusser/impacthub/internal/app/system/normalize"
	"github.com/dalemusser/impacthub/internal/app/system/paging"
	"github.com/dalemusser/impacthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Service implements the NGO lifecycle.
type Service struct {
	ngos     *ngostore.Store
	cascades *cascade.Engine
}

func NewService(db *mongo.Database, cascades *cascade.Engine) *Service {
	return &Service{ngos: ngostore.New(db), cascades: cascades}
}

var errNotFound = apperr.Missing("NGO not found")

// RegisterInput is the body of POST /api/ngos.
type RegisterInput struct {
	Name               string             `json:"name"`
	Email              string             `json:"email"`
	RegistrationNumber string             `json:"registration_number"`
	Address            string             `json:"address"`
	Location           string             `json:"location"`
	FocusAreas         []string           `json:"focus_areas"`
	Description        string             `json:"description"`
	SocialLinks        models.SocialLinks `json:"social_links"`
}

// duplicateError turns a store uniqueness error into the caller-facing
// validation error.
func duplicateError(err error) error {
	switch {
	case errors.Is(err, ngostore.ErrDuplicateEmail), errors.Is(err, ngostore.ErrDuplicateRegistration):
		return apperr.Wrap(err, apperr.Validation, err.Error())
	}
	return err
}

// Register creates a PENDING NGO owned by actor.
func (s *Service) Register(ctx context.Context, actor *models.User, in RegisterInput) (models.NGO, error) {
	if err := accesspolicy.Require(accesspolicy.NGORegister, actor, actor.ID); err != nil {
		return models.NGO{}, err
	}

	var v inputval.Errors
	v.Required("name", in.Name)
	v.MaxLen("name", in.Name, 200)
	v.Required("email", in.Email)
	v.Email("email", in.Email)
	v.Required("registration_number", in.RegistrationNumber)
	v.MaxLen("registration_number", in.RegistrationNumber, 100)
	v.MaxLen("description", in.Description, 10000)
	if err := v.Err(); err != nil {
		return models.NGO{}, err
	}

	if err := s.ngos.ExistsActive(ctx, in.Email, in.RegistrationNumber); err != nil {
		return models.NGO{}, duplicateError(err)
	}

	n, err := s.ngos.Create(ctx, models.NGO{
		Name:               htmlsanitize.PlainText(in.Name),
		Email:              in.Email,
		RegistrationNumber: in.RegistrationNumber,
		Address:            htmlsanitize.PlainText(in.Address),
		Location:           htmlsanitize.PlainText(in.Location),
		FocusAreas:         in.FocusAreas,
		Description:        in.Description,
		DescriptionHTML:    htmlsanitize.RenderMarkdown(in.Description),
		SocialLinks:        in.SocialLinks,
		VerificationStatus: models.NGOPending,
		CreatedBy:          actor.ID,
	})
	if err != nil {
		return models.NGO{}, duplicateError(err)
	}
	return n, nil
}

// ListFilter narrows List.
type ListFilter struct {
	Search    string
	Status    string
	CreatedBy string
}

// List returns one page of live NGOs.
func (s *Service) List(ctx context.Context, f ListFilter, p paging.Params) (paging.Result[models.NGO], error) {
	sf := ngostore.ListFilter{Search: f.Search, Status: normalize.Status(f.Status)}
	if f.CreatedBy != "" {
		oid, err := primitive.ObjectIDFromHex(f.CreatedBy)
		if err != nil {
			return paging.Result[models.NGO]{}, apperr.Invalid("invalid created_by")
		}
		sf.CreatedBy = &oid
	}
	rows, total, err := s.ngos.List(ctx, sf, p)
	if err != nil {
		return paging.Result[models.NGO]{}, err
	}
	return paging.NewResult(rows, p, total), nil
}

// Get returns a live NGO.
func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (*models.NGO, error) {
	n, err := s.ngos.GetActiveByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errNotFound
	}
	return n, err
}

// UpdateInput is the body of PUT /api/ngos/{id}. Omitted fields are left
// unchanged.
type UpdateInput struct {
	Name               *string             `json:"name"`
	Email              *string             `json:"email"`
	RegistrationNumber *string             `json:"registration_number"`
	Address            *string             `json:"address"`
	Location           *string             `json:"location"`
	FocusAreas         []string            `json:"focus_areas"`
	Description        *string             `json:"description"`
	SocialLinks        *models.SocialLinks `json:"social_links"`
	VerificationStatus *string             `json:"verification_status"`
}

// Update applies in to an NGO the actor owns (or any NGO for an admin).
// verification_status is ignored unless the actor is an admin.
func (s *Service) Update(ctx context.Context, actor *models.User, id primitive.ObjectID, in UpdateInput) (*models.NGO, error) {
	n, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := accesspolicy.Require(accesspolicy.NGOUpdate, actor, n.CreatedBy); err != nil {
		return nil, err
	}

	var v inputval.Errors
	if in.Name != nil {
		v.Required("name", *in.Name)
		v.MaxLen("name", *in.Name, 200)
	}
	if in.Email != nil {
		v.Required("email", *in.Email)
		v.Email("email", *in.Email)
	}
	if in.RegistrationNumber != nil {
		v.Required("registration_number", *in.RegistrationNumber)
	}
	if !actor.IsAdmin() {
		in.VerificationStatus = nil
	}
	if in.VerificationStatus != nil {
		st := normalize.Status(*in.VerificationStatus)
		v.Add(st != models.NGOPending && st != models.NGOVerified, "verification_status must be PENDING or VERIFIED")
		in.VerificationStatus = &st
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	upd := ngostore.Update{
		Email:              in.Email,
		RegistrationNumber: in.RegistrationNumber,
		FocusAreas:         in.FocusAreas,
		SocialLinks:        in.SocialLinks,
		VerificationStatus: in.VerificationStatus,
	}
	if in.Name != nil {
		name := htmlsanitize.PlainText(*in.Name)
		upd.Name = &name
	}
	if in.Address != nil {
		addr := htmlsanitize.PlainText(*in.Address)
		upd.Address = &addr
	}
	if in.Location != nil {
		loc := htmlsanitize.PlainText(*in.Location)
		upd.Location = &loc
	}
	if in.Description != nil {
		html := htmlsanitize.RenderMarkdown(*in.Description)
		upd.Description = in.Description
		upd.DescriptionHTML = &html
	}

	updated, err := s.ngos.Update(ctx, id, upd)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, duplicateError(err)
	}
	return updated, nil
}

// Delete soft-deletes an NGO with its events and their participations.
func (s *Service) Delete(ctx context.Context, actor *models.User, id primitive.ObjectID) error {
	n, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := accesspolicy.Require(accesspolicy.NGODelete, actor, n.CreatedBy); err != nil {
		return err
	}
	if err := s.cascades.DeleteNGO(ctx, id, actor.ID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return errNotFound
		}
		return err
	}
	return nil
}

// Verify marks an NGO VERIFIED. Admin only.
func (s *Service) Verify(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.NGO, error) {
	if err := accesspolicy.Require(accesspolicy.NGOVerify, actor, primitive.NilObjectID); err != nil {
		return nil, err
	}
	n, err := s.ngos.Verify(ctx, id, nil)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errNotFound
	}
	return n, err
}
