package rally

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

// defaultFetchFields returns the fields requested by default for an entity
// type. Types the table does not know get the minimal ObjectID,Name pair.
func defaultFetchFields(t EntityType) []string {
	switch t {
	case TypeStory:
		return []string{"FormattedID", "Name", "ScheduleState", "Owner", "Description", "Notes", "Iteration", "PlanEstimate", "ObjectID", "PortfolioItem"}
	case TypeDefect:
		return []string{"FormattedID", "Name", "ScheduleState", "Owner", "Description", "Notes", "Iteration", "PlanEstimate", "ObjectID"}
	case TypeTask:
		return []string{"FormattedID", "Name", "State", "Owner", "Description", "Notes", "Iteration", "Estimate", "ObjectID", "WorkProduct"}
	case TypeTestCase:
		return []string{"FormattedID", "Name", "FlowState", "Owner", "Description", "Notes", "Iteration", "PlanEstimate", "ObjectID", "WorkProduct"}
	case TypeFeature:
		return []string{"FormattedID", "Name", "State", "Owner", "Description", "Notes", "PlanEstimate", "ObjectID"}
	case TypeIteration:
		return []string{"ObjectID", "Name", "StartDate", "EndDate", "State"}
	case TypeRelease:
		return []string{"ObjectID", "Name", "ReleaseStartDate", "ReleaseDate", "State"}
	case TypeUser:
		return []string{"ObjectID", "DisplayName", "UserName"}
	case TypeComment:
		return []string{"ObjectID", "Text", "User", "CreationDate", "Artifact"}
	default:
		return []string{"ObjectID", "Name"}
	}
}

// FetchString builds the comma-separated fetch field list for an entity type.
// Extra fields not already in the default list are appended in first-seen
// order; duplicates are dropped.
func FetchString(t EntityType, extra ...string) string {
	fields := append([]string{}, defaultFetchFields(t)...)
	seen := sets.New[string](fields...)

	for _, field := range extra {
		if seen.Has(field) {
			continue
		}
		seen.Insert(field)
		fields = append(fields, field)
	}

	return strings.Join(fields, ",")
}

// QueryString folds conditions into the tracker's nested boolean query
// dialect. The tracker rejects flat-ANDed compound queries, so N conditions
// become a left-associative nest: ((c1 AND c2) AND c3). An empty condition
// list yields an empty query and a single condition is passed through
// unchanged.
func QueryString(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}

	query := conditions[0]
	for _, condition := range conditions[1:] {
		query = fmt.Sprintf("(%s AND %s)", query, condition)
	}
	return query
}

// Eq builds a single parenthesized equality condition.
func Eq(field, value string) string {
	return fmt.Sprintf("(%s = %q)", field, value)
}

// Contains builds a single parenthesized substring condition.
func Contains(field, value string) string {
	return fmt.Sprintf("(%s contains %q)", field, value)
}
