// internal/app/features/dashboard/service.go
package dashboard

import (
	"context"

	eventstore "github.com/dalemusser/impacthub/internal/app/store/events"
	ngostore "github.com/dalemusser/impacthub/internal/app/store/ngos"
	participationstore "github.com/dalemusser/impacthub/internal/app/store/participations"
	userstore "github.com/dalemusser/impacthub/internal/app/store/users"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Leaderboard page sizes.
const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 50
)

// Service computes the public platform counters and leaderboard.
type Service struct {
	users  *userstore.Store
	ngos   *ngostore.Store
	events *eventstore.Store
	parts  *participationstore.Store
}

func NewService(db *mongo.Database) *Service {
	return &Service{
		users:  userstore.New(db),
		ngos:   ngostore.New(db),
		events: eventstore.New(db),
		parts:  participationstore.New(db),
	}
}

// Metrics counts live records across the platform.
type Metrics struct {
	Users           int64 `json:"users"`
	NGOs            int64 `json:"ngos"`
	VerifiedNGOs    int64 `json:"verified_ngos"`
	Events          int64 `json:"events"`
	CompletedEvents int64 `json:"completed_events"`
	Participations  int64 `json:"participations"`
}

func (s *Service) Metrics(ctx context.Context) (Metrics, error) {
	var m Metrics
	var err error
	if m.Users, err = s.users.CountActive(ctx); err != nil {
		return Metrics{}, err
	}
	nc, err := s.ngos.Count(ctx)
	if err != nil {
		return Metrics{}, err
	}
	m.NGOs, m.VerifiedNGOs = nc.Total, nc.Verified

	ec, err := s.events.Count(ctx)
	if err != nil {
		return Metrics{}, err
	}
	m.Events, m.CompletedEvents = ec.Total, ec.Completed

	if m.Participations, err = s.parts.CountLive(ctx); err != nil {
		return Metrics{}, err
	}
	return m, nil
}

// Leader is one leaderboard row.
type Leader struct {
	Rank   int                `json:"rank"`
	ID     primitive.ObjectID `json:"id"`
	Name   string             `json:"name"`
	Avatar string             `json:"avatar,omitempty"`
	Points int                `json:"points"`
	Level  int                `json:"level"`
	Badges []string           `json:"badges"`
}

// ClampLimit applies the leaderboard default and cap.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLeaderboardLimit
	case limit > MaxLeaderboardLimit:
		return MaxLeaderboardLimit
	}
	return limit
}

// Leaderboard returns the top live users by points. Ties keep the earlier
// signup ahead.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]Leader, error) {
	rows, err := s.users.Leaderboard(ctx, ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	out := make([]Leader, 0, len(rows))
	for i, u := range rows {
		badges := u.Badges
		if badges == nil {
			badges = []string{}
		}
		out = append(out, Leader{
			Rank:   i + 1,
			ID:     u.ID,
			Name:   u.Name,
			Avatar: u.Avatar,
			Points: u.Points,
			Level:  u.Level,
			Badges: badges,
		})
	}
	return out, nil
}
