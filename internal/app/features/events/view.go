// internal/app/features/events/view.go
package events

import (
	"context"

	"github.com/dalemusser/impacthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// unknownCreator is shown when an event's creator no longer resolves.
const unknownCreator = "unknown creator"

// View is an event with read-only projections of its NGO and creator.
type View struct {
	models.Event
	NGOName      string `json:"ngo_name"`
	CreatorName  string `json:"creator_name"`
	CreatorEmail string `json:"creator_email"`
}

// project resolves NGO and creator names for rows with one query each.
func (s *Service) project(ctx context.Context, rows []models.Event) ([]View, error) {
	ngoIDs := make([]primitive.ObjectID, 0, len(rows))
	userIDs := make([]primitive.ObjectID, 0, len(rows))
	for _, ev := range rows {
		ngoIDs = append(ngoIDs, ev.NGO)
		userIDs = append(userIDs, ev.CreatedBy)
	}

	ngoNames, err := s.ngos.NamesByID(ctx, ngoIDs)
	if err != nil {
		return nil, err
	}
	creators, err := s.users.NamesByID(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	out := make([]View, 0, len(rows))
	for _, ev := range rows {
		v := View{Event: ev, NGOName: ngoNames[ev.NGO]}
		if u, ok := creators[ev.CreatedBy]; ok {
			v.CreatorName, v.CreatorEmail = u.Name, u.Email
		} else {
			v.CreatorName = unknownCreator
		}
		out = append(out, v)
	}
	return out, nil
}
