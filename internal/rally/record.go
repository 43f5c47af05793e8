package rally

import (
	"strconv"
	"strings"
	"time"
)

// Raw records come out of the envelope as map[string]any with tracker field
// names. The helpers below do the direct field mapping onto value objects;
// missing or mistyped fields map to zero values.

func ticketFromRecord(record map[string]any, entityType EntityType) Ticket {
	state := recordString(record, "ScheduleState")
	if state == "" {
		state = recordString(record, "State")
	}
	if state == "" {
		state = recordString(record, "FlowState")
	}

	points := recordFloat(record, "PlanEstimate")
	if points == 0 {
		points = recordFloat(record, "Estimate")
	}

	parentID := refFormattedID(record, "PortfolioItem")
	if parentID == "" {
		parentID = refFormattedID(record, "WorkProduct")
	}

	return Ticket{
		FormattedID: recordString(record, "FormattedID"),
		ObjectID:    recordInt64(record, "ObjectID"),
		Name:        recordString(record, "Name"),
		Type:        entityType,
		State:       state,
		Owner:       refName(record, "Owner"),
		Points:      points,
		Iteration:   refName(record, "Iteration"),
		ParentID:    parentID,
		Description: recordString(record, "Description"),
		Notes:       recordString(record, "Notes"),
	}
}

func iterationFromRecord(record map[string]any) Iteration {
	return Iteration{
		ObjectID:  recordInt64(record, "ObjectID"),
		Name:      recordString(record, "Name"),
		StartDate: recordTime(record, "StartDate"),
		EndDate:   recordTime(record, "EndDate"),
		State:     recordString(record, "State"),
	}
}

func releaseFromRecord(record map[string]any) Release {
	return Release{
		ObjectID:  recordInt64(record, "ObjectID"),
		Name:      recordString(record, "Name"),
		StartDate: recordTime(record, "ReleaseStartDate"),
		EndDate:   recordTime(record, "ReleaseDate"),
		State:     recordString(record, "State"),
	}
}

func discussionFromRecord(record map[string]any) Discussion {
	return Discussion{
		ObjectID:   recordInt64(record, "ObjectID"),
		Text:       recordString(record, "Text"),
		User:       refName(record, "User"),
		CreatedAt:  recordTime(record, "CreationDate"),
		ArtifactID: refFormattedID(record, "Artifact"),
	}
}

// ownerFromRecord extracts the nested Owner object of a ticket record. The
// second return is false for unowned tickets.
func ownerFromRecord(record map[string]any) (Owner, bool) {
	nested, ok := record["Owner"].(map[string]any)
	if !ok {
		return Owner{}, false
	}

	objectID := recordInt64(nested, "ObjectID")
	if objectID == 0 {
		objectID = objectIDFromRef(recordString(nested, "_ref"))
	}
	if objectID == 0 {
		return Owner{}, false
	}

	return Owner{
		ObjectID:    objectID,
		DisplayName: recordString(nested, "_refObjectName"),
		UserName:    recordString(nested, "UserName"),
	}, true
}

// objectIDFromRef parses the numeric tail of an object reference URL such as
// ".../user/12345".
func objectIDFromRef(ref string) int64 {
	if ref == "" {
		return 0
	}
	tail := ref[strings.LastIndex(ref, "/")+1:]
	objectID, err := strconv.ParseInt(tail, 10, 64)
	if err != nil {
		return 0
	}
	return objectID
}

func recordString(record map[string]any, key string) string {
	value, _ := record[key].(string)
	return value
}

func recordFloat(record map[string]any, key string) float64 {
	value, _ := record[key].(float64)
	return value
}

func recordInt64(record map[string]any, key string) int64 {
	// encoding/json decodes all numbers in an untyped map as float64.
	value, _ := record[key].(float64)
	return int64(value)
}

func recordTime(record map[string]any, key string) time.Time {
	raw := recordString(record, key)
	if raw == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// refName returns the display name of a nested object reference.
func refName(record map[string]any, key string) string {
	nested, ok := record[key].(map[string]any)
	if !ok {
		return ""
	}
	return recordString(nested, "_refObjectName")
}

// refFormattedID returns the formatted ID of a nested object reference,
// falling back to its display name when the tracker omits the ID.
func refFormattedID(record map[string]any, key string) string {
	nested, ok := record[key].(map[string]any)
	if !ok {
		return ""
	}
	if formattedID := recordString(nested, "FormattedID"); formattedID != "" {
		return formattedID
	}
	return recordString(nested, "_refObjectName")
}
