package rally

import (
	"sort"
	"time"
)

// Ticket is a work item: a story, defect, task or test case. Values are
// immutable after construction.
type Ticket struct {
	FormattedID string
	ObjectID    int64
	Name        string
	Type        EntityType
	State       string
	Owner       string
	Points      float64
	Iteration   string
	ParentID    string
	Description string
	Notes       string
}

// Iteration is a sprint with a start/end window.
type Iteration struct {
	ObjectID  int64
	Name      string
	StartDate time.Time
	EndDate   time.Time
	State     string
}

// IsCurrent reports whether now falls inside the iteration window, inclusive
// on both ends.
func (i Iteration) IsCurrent(now time.Time) bool {
	return !now.Before(i.StartDate) && !now.After(i.EndDate)
}

// Release is a release window.
type Release struct {
	ObjectID  int64
	Name      string
	StartDate time.Time
	EndDate   time.Time
	State     string
}

// IsCurrent reports whether now falls inside the release window, inclusive
// on both ends.
func (r Release) IsCurrent(now time.Time) bool {
	return !now.Before(r.StartDate) && !now.After(r.EndDate)
}

// Owner is a user who can own tickets. Identity is the ObjectID alone: two
// owners with the same ObjectID are the same user even when the tracker
// reports different display names for them.
type Owner struct {
	ObjectID    int64
	DisplayName string
	UserName    string
}

// Discussion is a single comment attached to a ticket.
type Discussion struct {
	ObjectID   int64
	Text       string
	User       string
	CreatedAt  time.Time
	ArtifactID string
}

// SortDiscussions orders discussions by creation time for display.
func SortDiscussions(discussions []Discussion) {
	sort.Slice(discussions, func(i, j int) bool {
		return discussions[i].CreatedAt.Before(discussions[j].CreatedAt)
	})
}

// OwnerSet is a set of owners keyed by identity. Inserting two owners with
// the same ObjectID keeps one element regardless of the other fields.
type OwnerSet map[int64]Owner

// NewOwnerSet builds a set from the given owners, deduplicating by ObjectID.
func NewOwnerSet(owners ...Owner) OwnerSet {
	set := make(OwnerSet, len(owners))
	for _, owner := range owners {
		set.Insert(owner)
	}
	return set
}

// Insert adds an owner to the set, replacing any previous owner with the
// same ObjectID.
func (s OwnerSet) Insert(owner Owner) {
	s[owner.ObjectID] = owner
}

// Has reports whether an owner with the given ObjectID is in the set.
func (s OwnerSet) Has(objectID int64) bool {
	_, ok := s[objectID]
	return ok
}

// Len returns the number of distinct owners in the set.
func (s OwnerSet) Len() int {
	return len(s)
}

// Values returns the owners ordered by ObjectID.
func (s OwnerSet) Values() []Owner {
	owners := make([]Owner, 0, len(s))
	for _, owner := range s {
		owners = append(owners, owner)
	}
	sort.Slice(owners, func(i, j int) bool {
		return owners[i].ObjectID < owners[j].ObjectID
	})
	return owners
}
