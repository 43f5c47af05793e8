package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rallyterm/internal/ownercache"
	"rallyterm/internal/rally"
)

// fakeTracker implements Tracker with canned data and call counting.
type fakeTracker struct {
	tickets    []rally.Ticket
	iterations []rally.Iteration
	users      rally.OwnerSet

	getUsersCalls int
}

func (f *fakeTracker) GetTicket(ctx context.Context, formattedID string) (*rally.Ticket, error) {
	for _, ticket := range f.tickets {
		if ticket.FormattedID == formattedID {
			return &ticket, nil
		}
	}
	return nil, nil
}

func (f *fakeTracker) GetTickets(ctx context.Context, query rally.TicketQuery) ([]rally.Ticket, error) {
	var tickets []rally.Ticket
	for _, ticket := range f.tickets {
		if query.Iteration != "" && ticket.Iteration != query.Iteration {
			continue
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

func (f *fakeTracker) SearchTickets(ctx context.Context, term string, limit int) ([]rally.Ticket, error) {
	return f.tickets, nil
}

func (f *fakeTracker) GetIterations(ctx context.Context, window rally.Window, limit int) ([]rally.Iteration, error) {
	now := time.Now()
	var iterations []rally.Iteration
	for _, iteration := range f.iterations {
		if window == rally.WindowCurrent && !iteration.IsCurrent(now) {
			continue
		}
		iterations = append(iterations, iteration)
		if limit > 0 && len(iterations) == limit {
			break
		}
	}
	return iterations, nil
}

func (f *fakeTracker) GetReleases(ctx context.Context, window rally.Window, limit int) ([]rally.Release, error) {
	return nil, nil
}

func (f *fakeTracker) GetUsers(ctx context.Context, iterationName string) (rally.OwnerSet, error) {
	f.getUsersCalls++
	return f.users, nil
}

func (f *fakeTracker) AddComment(ctx context.Context, formattedID, text string) (*rally.Discussion, error) {
	return &rally.Discussion{Text: text}, nil
}

func (f *fakeTracker) GetDiscussions(ctx context.Context, formattedID string) ([]rally.Discussion, error) {
	return nil, nil
}

func currentIteration(name string) rally.Iteration {
	now := time.Now()
	return rally.Iteration{
		Name:      name,
		StartDate: now.AddDate(0, 0, -3),
		EndDate:   now.AddDate(0, 0, 4),
		State:     "Committed",
	}
}

func TestGetUsersPopulatesCache(t *testing.T) {
	tracker := &fakeTracker{
		users: rally.NewOwnerSet(
			rally.Owner{ObjectID: 1, DisplayName: "Alice"},
			rally.Owner{ObjectID: 2, DisplayName: "Bob"},
		),
	}
	cache := ownercache.New(t.TempDir(), nil)
	svc := New(tracker, cache, nil)

	owners, err := svc.GetUsers(context.Background(), "Sprint 12")
	require.NoError(t, err)
	require.Equal(t, 2, owners.Len())
	require.Equal(t, 1, tracker.getUsersCalls)

	// A second lookup is served from the cache.
	owners, err = svc.GetUsers(context.Background(), "Sprint 12")
	require.NoError(t, err)
	require.Equal(t, 2, owners.Len())
	require.Equal(t, 1, tracker.getUsersCalls)
}

func TestGetUsersDefaultsToCurrentIteration(t *testing.T) {
	tracker := &fakeTracker{
		iterations: []rally.Iteration{currentIteration("Sprint 12")},
		users:      rally.NewOwnerSet(rally.Owner{ObjectID: 1, DisplayName: "Alice"}),
	}
	cache := ownercache.New(t.TempDir(), nil)
	svc := New(tracker, cache, nil)

	owners, err := svc.GetUsers(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, 1, owners.Len())

	// The cache scope is the resolved iteration's name.
	require.True(t, cache.Get("Sprint 12").Has(1))
}

func TestGetUsersEmptyResultIsNotCached(t *testing.T) {
	tracker := &fakeTracker{users: rally.NewOwnerSet()}
	cache := ownercache.New(t.TempDir(), nil)
	svc := New(tracker, cache, nil)

	_, err := svc.GetUsers(context.Background(), "Sprint 12")
	require.NoError(t, err)

	_, err = svc.GetUsers(context.Background(), "Sprint 12")
	require.NoError(t, err)
	require.Equal(t, 2, tracker.getUsersCalls)
}

func TestClearUserCache(t *testing.T) {
	tracker := &fakeTracker{users: rally.NewOwnerSet(rally.Owner{ObjectID: 1, DisplayName: "Alice"})}
	cache := ownercache.New(t.TempDir(), nil)
	svc := New(tracker, cache, nil)

	_, err := svc.GetUsers(context.Background(), "Sprint 12")
	require.NoError(t, err)
	require.Equal(t, 1, cache.Get("Sprint 12").Len())

	require.NoError(t, svc.ClearUserCache("Sprint 12"))
	require.Equal(t, 0, cache.Get("Sprint 12").Len())
}

func TestGetSprintSummary(t *testing.T) {
	tracker := &fakeTracker{
		iterations: []rally.Iteration{currentIteration("Sprint 12")},
		tickets: []rally.Ticket{
			{FormattedID: "US1", Iteration: "Sprint 12", State: "Accepted", Owner: "Alice", Points: 3},
			{FormattedID: "US2", Iteration: "Sprint 12", State: "In-Progress", Owner: "Bob", Points: 5},
			{FormattedID: "US3", Iteration: "Sprint 12", State: "Accepted", Points: 2},
			{FormattedID: "US4", Iteration: "Sprint 13", State: "Defined", Owner: "Alice", Points: 8},
		},
	}
	svc := New(tracker, ownercache.New(t.TempDir(), nil), nil)

	summary, err := svc.GetSprintSummary(context.Background(), "")
	require.NoError(t, err)

	require.Equal(t, "Sprint 12", summary.Iteration.Name)
	require.Len(t, summary.Tickets, 3)
	require.Equal(t, 10.0, summary.TotalPoints)
	require.Equal(t, 5.0, summary.AcceptedPoints)
	require.Equal(t, 5.0, summary.PointsByState["Accepted"])
	require.Equal(t, 5.0, summary.PointsByState["In-Progress"])
	require.Equal(t, 3.0, summary.PointsByOwner["Alice"])
	require.Equal(t, 2.0, summary.PointsByOwner["(unowned)"])
}

func TestGetSprintSummaryNamedIterationNotFound(t *testing.T) {
	tracker := &fakeTracker{iterations: []rally.Iteration{currentIteration("Sprint 12")}}
	svc := New(tracker, ownercache.New(t.TempDir(), nil), nil)

	_, err := svc.GetSprintSummary(context.Background(), "Sprint 99")
	require.Error(t, err)
}

func TestGetSprintSummaryNoCurrentIteration(t *testing.T) {
	tracker := &fakeTracker{}
	svc := New(tracker, ownercache.New(t.TempDir(), nil), nil)

	_, err := svc.GetSprintSummary(context.Background(), "")
	require.Error(t, err)
}
