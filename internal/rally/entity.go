package rally

import (
	"fmt"
	"strings"
	"unicode"
)

// EntityType identifies a kind of tracker object. It is a closed enumeration:
// every mapping over it (URL path, fetch fields, prefix) is total and falls
// back to a defined default for values it does not know.
type EntityType int

const (
	TypeStory EntityType = iota
	TypeDefect
	TypeTask
	TypeTestCase
	TypeFeature
	TypeIteration
	TypeRelease
	TypeUser
	TypeComment
	TypeAttachment
)

const (
	apiRoot    = "slm/webservice"
	apiVersion = "v2.0"
)

// String returns the display name of the entity type.
func (t EntityType) String() string {
	switch t {
	case TypeStory:
		return "Story"
	case TypeDefect:
		return "Defect"
	case TypeTask:
		return "Task"
	case TypeTestCase:
		return "TestCase"
	case TypeFeature:
		return "Feature"
	case TypeIteration:
		return "Iteration"
	case TypeRelease:
		return "Release"
	case TypeUser:
		return "User"
	case TypeComment:
		return "Comment"
	case TypeAttachment:
		return "Attachment"
	default:
		return fmt.Sprintf("EntityType(%d)", int(t))
	}
}

// URLPath returns the WSAPI endpoint path for the entity type. Types without
// a dedicated endpoint name fall back to their lower-cased display name.
func (t EntityType) URLPath() string {
	switch t {
	case TypeStory:
		return "hierarchicalrequirement"
	case TypeFeature:
		return "portfolioitem/feature"
	case TypeComment:
		return "conversationpost"
	default:
		return strings.ToLower(t.String())
	}
}

// formattedIDPrefixes maps the leading letters of a formatted ID to the
// entity type the tracker assigns that prefix to.
var formattedIDPrefixes = map[string]EntityType{
	"US": TypeStory,
	"DE": TypeDefect,
	"TA": TypeTask,
	"TC": TypeTestCase,
	"F":  TypeFeature,
}

// EntityTypeFromFormattedID determines the entity type from a formatted ID
// such as "US1234". The function is total: unrecognized or missing prefixes
// resolve to TypeStory, and the prefix is matched case-insensitively.
func EntityTypeFromFormattedID(formattedID string) EntityType {
	var prefix strings.Builder
	for _, r := range formattedID {
		if unicode.IsDigit(r) {
			break
		}
		prefix.WriteRune(r)
	}

	if t, ok := formattedIDPrefixes[strings.ToUpper(prefix.String())]; ok {
		return t
	}
	return TypeStory
}

// BaseURL builds the versioned API base URL for a server. A scheme prefix on
// the server name is stripped first, so the result is stable no matter how
// the server was configured.
func BaseURL(server string) string {
	server = strings.TrimPrefix(server, "http://")
	server = strings.TrimPrefix(server, "https://")
	server = strings.TrimSuffix(server, "/")
	return fmt.Sprintf("https://%s/%s/%s", server, apiRoot, apiVersion)
}
