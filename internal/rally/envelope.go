package rally

import (
	"encoding/json"
	"fmt"
)

// resultBlock is the payload common to the three envelope shapes the tracker
// wraps responses in. Query responses carry Results and TotalResultCount;
// operation and create responses carry a single Object.
type resultBlock struct {
	Errors           []string         `json:"Errors"`
	Warnings         []string         `json:"Warnings"`
	TotalResultCount int              `json:"TotalResultCount"`
	Results          []map[string]any `json:"Results"`
	Object           map[string]any   `json:"Object"`
}

type envelope struct {
	QueryResult     *resultBlock `json:"QueryResult"`
	OperationResult *resultBlock `json:"OperationResult"`
	CreateResult    *resultBlock `json:"CreateResult"`
}

// ParseResult classifies a response body into raw records and a total count.
//
// The three envelope shapes are checked in order: QueryResult, then
// OperationResult, then CreateResult. A body that matches none of them is
// treated as "no data", not as an error. A non-empty server Errors list is
// never dropped: it always comes back as an *APIError carrying the original
// error and warning strings.
func ParseResult(body []byte) ([]map[string]any, int, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, 0, fmt.Errorf("cannot decode response envelope: %w", err)
	}

	if env.QueryResult != nil {
		block := env.QueryResult
		if err := blockError(block); err != nil {
			return nil, 0, err
		}
		return block.Results, block.TotalResultCount, nil
	}

	for _, block := range []*resultBlock{env.OperationResult, env.CreateResult} {
		if block == nil {
			continue
		}
		if err := blockError(block); err != nil {
			return nil, 0, err
		}
		if block.Object == nil {
			return nil, 0, nil
		}
		return []map[string]any{block.Object}, 1, nil
	}

	return nil, 0, nil
}

func blockError(block *resultBlock) error {
	if len(block.Errors) == 0 {
		return nil
	}
	return &APIError{
		Message:  block.Errors[0],
		Errors:   block.Errors,
		Warnings: block.Warnings,
	}
}
