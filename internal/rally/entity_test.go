package rally

import "testing"

func TestEntityTypeFromFormattedID(t *testing.T) {
	tests := []struct {
		name        string
		formattedID string
		expected    EntityType
	}{
		{name: "story", formattedID: "US1234", expected: TypeStory},
		{name: "defect", formattedID: "DE42", expected: TypeDefect},
		{name: "task", formattedID: "TA7", expected: TypeTask},
		{name: "test case", formattedID: "TC100", expected: TypeTestCase},
		{name: "feature", formattedID: "F12", expected: TypeFeature},
		{name: "lower case behaves like upper case", formattedID: "us1234", expected: TypeStory},
		{name: "mixed case defect", formattedID: "dE9", expected: TypeDefect},
		{name: "unrecognized prefix defaults to story", formattedID: "XX123", expected: TypeStory},
		{name: "digits only defaults to story", formattedID: "1234", expected: TypeStory},
		{name: "empty defaults to story", formattedID: "", expected: TypeStory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := EntityTypeFromFormattedID(tt.formattedID); result != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestURLPath(t *testing.T) {
	tests := []struct {
		entityType EntityType
		expected   string
	}{
		{TypeStory, "hierarchicalrequirement"},
		{TypeDefect, "defect"},
		{TypeTask, "task"},
		{TypeTestCase, "testcase"},
		{TypeFeature, "portfolioitem/feature"},
		{TypeIteration, "iteration"},
		{TypeRelease, "release"},
		{TypeUser, "user"},
		{TypeComment, "conversationpost"},
		{TypeAttachment, "attachment"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if result := tt.entityType.URLPath(); result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		server   string
		expected string
	}{
		{
			name:     "bare host",
			server:   "rally1.rallydev.com",
			expected: "https://rally1.rallydev.com/slm/webservice/v2.0",
		},
		{
			name:     "https prefix is stripped",
			server:   "https://rally1.rallydev.com",
			expected: "https://rally1.rallydev.com/slm/webservice/v2.0",
		},
		{
			name:     "http prefix is stripped",
			server:   "http://rally1.rallydev.com",
			expected: "https://rally1.rallydev.com/slm/webservice/v2.0",
		},
		{
			name:     "trailing slash is stripped",
			server:   "https://rally1.rallydev.com/",
			expected: "https://rally1.rallydev.com/slm/webservice/v2.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := BaseURL(tt.server); result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestBaseURLIdempotentUnderStripping(t *testing.T) {
	servers := []string{"rally1.rallydev.com", "http://rally1.rallydev.com", "https://rally1.rallydev.com"}

	expected := BaseURL(servers[0])
	for _, server := range servers {
		if result := BaseURL(server); result != expected {
			t.Errorf("BaseURL(%q) = %q, expected %q", server, result, expected)
		}
	}
}
