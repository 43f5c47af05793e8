package rally

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseResultQueryResult(t *testing.T) {
	body := []byte(`{"QueryResult": {"Errors": [], "Warnings": [], "TotalResultCount": 1, "Results": [{"Name": "X"}]}}`)

	records, total, err := ParseResult(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 {
		t.Errorf("expected total 1, got %d", total)
	}

	expected := []map[string]any{{"Name": "X"}}
	if diff := cmp.Diff(expected, records); diff != "" {
		t.Errorf("unexpected records (-want +got):\n%s", diff)
	}
}

func TestParseResultQueryResultErrors(t *testing.T) {
	body := []byte(`{"QueryResult": {"Errors": ["bad filter", "second problem"], "Warnings": ["deprecated field"], "TotalResultCount": 0, "Results": []}}`)

	_, _, err := ParseResult(body)
	if err == nil {
		t.Fatal("expected error but got none")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}

	if apiErr.Message != "bad filter" {
		t.Errorf("expected message %q, got %q", "bad filter", apiErr.Message)
	}
	if diff := cmp.Diff([]string{"bad filter", "second problem"}, apiErr.Errors); diff != "" {
		t.Errorf("unexpected errors list (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"deprecated field"}, apiErr.Warnings); diff != "" {
		t.Errorf("unexpected warnings list (-want +got):\n%s", diff)
	}
}

func TestParseResultOperationResult(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		expectedCount int
		expectedTotal int
	}{
		{
			name:          "operation result with object",
			body:          `{"OperationResult": {"Errors": [], "Warnings": [], "Object": {"Name": "X"}}}`,
			expectedCount: 1,
			expectedTotal: 1,
		},
		{
			name:          "operation result without object",
			body:          `{"OperationResult": {"Errors": [], "Warnings": []}}`,
			expectedCount: 0,
			expectedTotal: 0,
		},
		{
			name:          "create result with object",
			body:          `{"CreateResult": {"Errors": [], "Warnings": [], "Object": {"ObjectID": 7}}}`,
			expectedCount: 1,
			expectedTotal: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, total, err := ParseResult([]byte(tt.body))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(records) != tt.expectedCount {
				t.Errorf("expected %d records, got %d", tt.expectedCount, len(records))
			}
			if total != tt.expectedTotal {
				t.Errorf("expected total %d, got %d", tt.expectedTotal, total)
			}
		})
	}
}

func TestParseResultCreateResultErrors(t *testing.T) {
	body := []byte(`{"CreateResult": {"Errors": ["validation failed"], "Warnings": [], "Object": null}}`)

	_, _, err := ParseResult(body)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Message != "validation failed" {
		t.Errorf("expected message %q, got %q", "validation failed", apiErr.Message)
	}
}

func TestParseResultUnrecognizedEnvelope(t *testing.T) {
	// An unrecognized envelope is "no data", not an error.
	records, total, err := ParseResult([]byte(`{"SomethingElse": {"Value": 1}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 || total != 0 {
		t.Errorf("expected empty result, got %d records, total %d", len(records), total)
	}
}

func TestParseResultInvalidJSON(t *testing.T) {
	if _, _, err := ParseResult([]byte("not json at all")); err == nil {
		t.Error("expected error for invalid JSON but got none")
	}
}
