package rally

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"
)

// overfetchFactor compensates for client-side filtering: operations that
// filter after fetching request this many times the wanted count before
// truncating. A heuristic, not a guarantee; if fewer than 1/3 of the fetched
// records survive the filter, the result can under-fill the requested count.
const overfetchFactor = 3

// Client composes the query builder, the dispatcher and the result parser
// into the operations the CLI and TUI consume. It holds no mutable state
// beyond the dispatcher and can be shared between concurrent callers.
type Client struct {
	dispatcher *Dispatcher
	log        *logrus.Entry
}

// NewClient creates a tracker client on top of a dispatcher.
func NewClient(dispatcher *Dispatcher, logger *logrus.Entry) *Client {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{dispatcher: dispatcher, log: logger}
}

// Window selects a timeframe filter for iterations and releases.
type Window int

const (
	WindowAll Window = iota
	WindowCurrent
	WindowFuture
	WindowPast
)

// TicketQuery narrows down the tickets returned by GetTickets.
type TicketQuery struct {
	// Iteration filters by iteration name (server-side).
	Iteration string
	// Owner filters by owner name (server-side).
	Owner string
	// States filters by schedule state (client-side).
	States []string
	// Limit caps the number of returned tickets; zero means no cap.
	Limit int
}

// GetTicket fetches a single ticket by formatted ID. The match is exact:
// US123 never matches US1234 even when the tracker returns prefix matches.
// Absence is not an error; a missing ticket comes back as (nil, nil).
func (c *Client) GetTicket(ctx context.Context, formattedID string) (*Ticket, error) {
	entityType := EntityTypeFromFormattedID(formattedID)

	params := url.Values{}
	params.Set("query", Eq("FormattedID", formattedID))
	params.Set("fetch", FetchString(entityType))

	records, _, err := c.query(ctx, entityType.URLPath(), params)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch ticket %s: %w", formattedID, err)
	}

	for _, record := range records {
		ticket := ticketFromRecord(record, entityType)
		if strings.EqualFold(ticket.FormattedID, formattedID) {
			return &ticket, nil
		}
	}

	return nil, nil
}

// GetTickets fetches stories matching the query, most of the narrowing done
// server-side. State filtering happens client-side, so when both a state
// filter and a limit are present the call overfetches before truncating.
func (c *Client) GetTickets(ctx context.Context, query TicketQuery) ([]Ticket, error) {
	var conditions []string
	if query.Iteration != "" {
		conditions = append(conditions, Eq("Iteration.Name", query.Iteration))
	}
	if query.Owner != "" {
		conditions = append(conditions, Eq("Owner.Name", query.Owner))
	}

	params := url.Values{}
	if q := QueryString(conditions); q != "" {
		params.Set("query", q)
	}
	params.Set("fetch", FetchString(TypeStory))
	params.Set("order", "FormattedID")

	filtered := len(query.States) > 0
	setPageSize(params, query.Limit, filtered)

	records, _, err := c.query(ctx, TypeStory.URLPath(), params)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch tickets: %w", err)
	}

	wantedStates := sets.New[string](query.States...)

	var tickets []Ticket
	for _, record := range records {
		ticket := ticketFromRecord(record, TypeStory)
		if filtered && !wantedStates.Has(ticket.State) {
			continue
		}
		tickets = append(tickets, ticket)
		if query.Limit > 0 && len(tickets) == query.Limit {
			break
		}
	}

	return tickets, nil
}

// SearchTickets finds tickets whose name contains the term. The coarse match
// runs server-side; the case-insensitive match is enforced client-side after
// overfetching.
func (c *Client) SearchTickets(ctx context.Context, term string, limit int) ([]Ticket, error) {
	params := url.Values{}
	params.Set("query", Contains("Name", term))
	params.Set("fetch", FetchString(TypeStory))
	params.Set("order", "FormattedID")
	setPageSize(params, limit, true)

	records, _, err := c.query(ctx, TypeStory.URLPath(), params)
	if err != nil {
		return nil, fmt.Errorf("cannot search tickets: %w", err)
	}

	lowerTerm := strings.ToLower(term)

	var tickets []Ticket
	for _, record := range records {
		ticket := ticketFromRecord(record, TypeStory)
		if !strings.Contains(strings.ToLower(ticket.Name), lowerTerm) {
			continue
		}
		tickets = append(tickets, ticket)
		if limit > 0 && len(tickets) == limit {
			break
		}
	}

	return tickets, nil
}

// GetIterations fetches iterations, optionally narrowed to a time window.
// Window filtering happens client-side against the iteration dates, so
// windowed calls overfetch before truncating.
func (c *Client) GetIterations(ctx context.Context, window Window, limit int) ([]Iteration, error) {
	params := url.Values{}
	params.Set("fetch", FetchString(TypeIteration))
	params.Set("order", "StartDate desc")
	setPageSize(params, limit, window != WindowAll)

	records, _, err := c.query(ctx, TypeIteration.URLPath(), params)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch iterations: %w", err)
	}

	now := time.Now()

	var iterations []Iteration
	for _, record := range records {
		iteration := iterationFromRecord(record)
		if !inWindow(window, iteration.StartDate, iteration.EndDate, now) {
			continue
		}
		iterations = append(iterations, iteration)
		if limit > 0 && len(iterations) == limit {
			break
		}
	}

	return iterations, nil
}

// GetReleases fetches releases, optionally narrowed to a time window, with
// the same overfetch behavior as GetIterations.
func (c *Client) GetReleases(ctx context.Context, window Window, limit int) ([]Release, error) {
	params := url.Values{}
	params.Set("fetch", FetchString(TypeRelease))
	params.Set("order", "ReleaseStartDate desc")
	setPageSize(params, limit, window != WindowAll)

	records, _, err := c.query(ctx, TypeRelease.URLPath(), params)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch releases: %w", err)
	}

	now := time.Now()

	var releases []Release
	for _, record := range records {
		release := releaseFromRecord(record)
		if !inWindow(window, release.StartDate, release.EndDate, now) {
			continue
		}
		releases = append(releases, release)
		if limit > 0 && len(releases) == limit {
			break
		}
	}

	return releases, nil
}

// GetUsers collects the distinct owners of all tickets in an iteration,
// deduplicated by identity.
func (c *Client) GetUsers(ctx context.Context, iterationName string) (OwnerSet, error) {
	params := url.Values{}
	params.Set("query", Eq("Iteration.Name", iterationName))
	params.Set("fetch", FetchString(TypeStory, "Owner"))

	records, _, err := c.query(ctx, TypeStory.URLPath(), params)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch users for iteration %q: %w", iterationName, err)
	}

	owners := NewOwnerSet()
	for _, record := range records {
		if owner, ok := ownerFromRecord(record); ok {
			owners.Insert(owner)
		}
	}

	return owners, nil
}

// AddComment posts a comment on the ticket with the given formatted ID and
// returns the created discussion entry.
func (c *Client) AddComment(ctx context.Context, formattedID, text string) (*Discussion, error) {
	ticket, err := c.GetTicket(ctx, formattedID)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, &APIError{Message: fmt.Sprintf("ticket %s not found", formattedID)}
	}

	payload := map[string]any{
		"ConversationPost": map[string]any{
			"Artifact": fmt.Sprintf("/%s/%d", ticket.Type.URLPath(), ticket.ObjectID),
			"Text":     text,
		},
	}

	body, err := c.dispatcher.Post(ctx, TypeComment.URLPath()+"/create", payload)
	if err != nil {
		return nil, fmt.Errorf("cannot add comment to %s: %w", formattedID, err)
	}

	records, _, err := ParseResult(body)
	if err != nil {
		return nil, fmt.Errorf("cannot add comment to %s: %w", formattedID, err)
	}
	if len(records) == 0 {
		return nil, &APIError{Message: "comment creation returned no object"}
	}

	discussion := discussionFromRecord(records[0])
	return &discussion, nil
}

// GetDiscussions fetches the comments attached to a ticket, oldest first.
func (c *Client) GetDiscussions(ctx context.Context, formattedID string) ([]Discussion, error) {
	ticket, err := c.GetTicket(ctx, formattedID)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, nil
	}

	params := url.Values{}
	params.Set("query", Eq("Artifact.ObjectID", strconv.FormatInt(ticket.ObjectID, 10)))
	params.Set("fetch", FetchString(TypeComment))

	records, _, err := c.query(ctx, TypeComment.URLPath(), params)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch discussions for %s: %w", formattedID, err)
	}

	discussions := make([]Discussion, 0, len(records))
	for _, record := range records {
		discussions = append(discussions, discussionFromRecord(record))
	}
	SortDiscussions(discussions)

	return discussions, nil
}

func (c *Client) query(ctx context.Context, path string, params url.Values) ([]map[string]any, int, error) {
	body, err := c.dispatcher.Get(ctx, path, params)
	if err != nil {
		return nil, 0, err
	}
	return ParseResult(body)
}

// setPageSize asks the tracker for the wanted count, tripled when the caller
// filters client-side afterwards.
func setPageSize(params url.Values, limit int, filtered bool) {
	if limit <= 0 {
		return
	}
	if filtered {
		limit *= overfetchFactor
	}
	params.Set("pagesize", strconv.Itoa(limit))
}

func inWindow(window Window, start, end, now time.Time) bool {
	switch window {
	case WindowCurrent:
		return !now.Before(start) && !now.After(end)
	case WindowFuture:
		return now.Before(start)
	case WindowPast:
		return now.After(end)
	default:
		return true
	}
}
