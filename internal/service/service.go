// Package service composes the tracker client with the owner cache into the
// operations the CLI and TUI call.
package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"rallyterm/internal/ownercache"
	"rallyterm/internal/rally"
)

// Tracker is the slice of the tracker client the service consumes.
type Tracker interface {
	GetTicket(ctx context.Context, formattedID string) (*rally.Ticket, error)
	GetTickets(ctx context.Context, query rally.TicketQuery) ([]rally.Ticket, error)
	SearchTickets(ctx context.Context, term string, limit int) ([]rally.Ticket, error)
	GetIterations(ctx context.Context, window rally.Window, limit int) ([]rally.Iteration, error)
	GetReleases(ctx context.Context, window rally.Window, limit int) ([]rally.Release, error)
	GetUsers(ctx context.Context, iterationName string) (rally.OwnerSet, error)
	AddComment(ctx context.Context, formattedID, text string) (*rally.Discussion, error)
	GetDiscussions(ctx context.Context, formattedID string) ([]rally.Discussion, error)
}

// Service orchestrates tracker operations and opportunistic owner caching.
type Service struct {
	tracker Tracker
	owners  *ownercache.Cache
	log     *logrus.Entry
}

// New creates a service instance.
func New(tracker Tracker, owners *ownercache.Cache, logger *logrus.Entry) *Service {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{tracker: tracker, owners: owners, log: logger}
}

// GetTicket forwards to the tracker client. Absence comes back as (nil, nil).
func (s *Service) GetTicket(ctx context.Context, formattedID string) (*rally.Ticket, error) {
	return s.tracker.GetTicket(ctx, formattedID)
}

// GetTickets forwards to the tracker client.
func (s *Service) GetTickets(ctx context.Context, query rally.TicketQuery) ([]rally.Ticket, error) {
	return s.tracker.GetTickets(ctx, query)
}

// SearchTickets forwards to the tracker client.
func (s *Service) SearchTickets(ctx context.Context, term string, limit int) ([]rally.Ticket, error) {
	return s.tracker.SearchTickets(ctx, term, limit)
}

// GetIterations forwards to the tracker client.
func (s *Service) GetIterations(ctx context.Context, window rally.Window, limit int) ([]rally.Iteration, error) {
	return s.tracker.GetIterations(ctx, window, limit)
}

// GetReleases forwards to the tracker client.
func (s *Service) GetReleases(ctx context.Context, window rally.Window, limit int) ([]rally.Release, error) {
	return s.tracker.GetReleases(ctx, window, limit)
}

// AddComment forwards to the tracker client.
func (s *Service) AddComment(ctx context.Context, formattedID, text string) (*rally.Discussion, error) {
	return s.tracker.AddComment(ctx, formattedID, text)
}

// GetDiscussions forwards to the tracker client.
func (s *Service) GetDiscussions(ctx context.Context, formattedID string) ([]rally.Discussion, error) {
	return s.tracker.GetDiscussions(ctx, formattedID)
}

// GetUsers returns the owners active in an iteration, consulting the cache
// first. An empty iteration name means the current iteration. A successful
// tracker fetch replaces the cached scope; cache write failures are logged
// and do not fail the lookup.
func (s *Service) GetUsers(ctx context.Context, iterationName string) (rally.OwnerSet, error) {
	if iterationName == "" {
		iteration, err := s.currentIteration(ctx)
		if err != nil {
			return nil, err
		}
		iterationName = iteration.Name
	}

	if cached := s.owners.Get(iterationName); cached.Len() > 0 {
		s.log.WithField("iteration", iterationName).Debug("owner cache hit")
		return cached, nil
	}

	owners, err := s.tracker.GetUsers(ctx, iterationName)
	if err != nil {
		return nil, err
	}

	if owners.Len() > 0 {
		if err := s.owners.Set(iterationName, owners); err != nil {
			s.log.WithError(err).Warn("cannot persist owner cache")
		}
	}

	return owners, nil
}

// ClearUserCache drops one cached iteration scope, or everything when the
// scope is empty.
func (s *Service) ClearUserCache(scope string) error {
	if scope == "" {
		return s.owners.ClearAll()
	}
	return s.owners.Clear(scope)
}

// SprintSummary aggregates the tickets of one iteration.
type SprintSummary struct {
	Iteration      rally.Iteration
	Tickets        []rally.Ticket
	TotalPoints    float64
	AcceptedPoints float64
	PointsByState  map[string]float64
	PointsByOwner  map[string]float64
}

// GetSprintSummary builds the summary for the named iteration, defaulting to
// the current one.
func (s *Service) GetSprintSummary(ctx context.Context, iterationName string) (*SprintSummary, error) {
	var iteration rally.Iteration

	if iterationName == "" {
		current, err := s.currentIteration(ctx)
		if err != nil {
			return nil, err
		}
		iteration = *current
	} else {
		iterations, err := s.tracker.GetIterations(ctx, rally.WindowAll, 0)
		if err != nil {
			return nil, err
		}
		found := false
		for _, candidate := range iterations {
			if candidate.Name == iterationName {
				iteration = candidate
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("iteration %q not found", iterationName)
		}
	}

	tickets, err := s.tracker.GetTickets(ctx, rally.TicketQuery{Iteration: iteration.Name})
	if err != nil {
		return nil, err
	}

	summary := &SprintSummary{
		Iteration:     iteration,
		Tickets:       tickets,
		PointsByState: map[string]float64{},
		PointsByOwner: map[string]float64{},
	}

	for _, ticket := range tickets {
		summary.TotalPoints += ticket.Points
		summary.PointsByState[ticket.State] += ticket.Points
		if ticket.State == "Accepted" {
			summary.AcceptedPoints += ticket.Points
		}
		owner := ticket.Owner
		if owner == "" {
			owner = "(unowned)"
		}
		summary.PointsByOwner[owner] += ticket.Points
	}

	return summary, nil
}

func (s *Service) currentIteration(ctx context.Context) (*rally.Iteration, error) {
	iterations, err := s.tracker.GetIterations(ctx, rally.WindowCurrent, 1)
	if err != nil {
		return nil, err
	}
	if len(iterations) == 0 {
		return nil, fmt.Errorf("no current iteration")
	}
	return &iterations[0], nil
}
