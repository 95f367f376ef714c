package sanitize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// GeneratedQuery is one sanitized entry from a generation batch. QueryID is
// zero here; the orchestrator assigns sequential IDs after truncation and
// never trusts numbering from the model.
type GeneratedQuery struct {
	QueryID        int    `json:"query_id"`
	QueryText      string `json:"query_text"`
	QueryType      string `json:"query_type"`
	QueryCategory  string `json:"query_category"`
	QueryFormat    string `json:"query_format"`
	TargetAudience string `json:"target_audience"`
}

// QueryFromMap sanitizes a single generated-query object. It reports ok ==
// false only when query_text is missing or blank; every other field is
// defaulted rather than rejected.
func QueryFromMap(m map[string]any) (GeneratedQuery, bool) {
	text := strings.TrimSpace(asString(m["query_text"]))
	if text == "" {
		return GeneratedQuery{}, false
	}

	audience := strings.TrimSpace(asString(m["target_audience"]))
	if len(audience) > maxAudienceLen {
		audience = audience[:maxAudienceLen]
	}

	return GeneratedQuery{
		QueryText:      text,
		QueryType:      CoerceType(asString(m["query_type"])),
		QueryCategory:  CoerceCategory(asString(m["query_category"])),
		QueryFormat:    CoerceFormat(asString(m["query_format"])),
		TargetAudience: audience,
	}, true
}

// Queries coerces a raw generation response into a batch of sanitized
// records. Invalid items are dropped silently; the call fails only when the
// JSON is unparseable or zero items survive sanitization.
func Queries(raw string) ([]GeneratedQuery, error) {
	text := stripFences(raw)
	arr, err := extractBalanced(text, '[', ']')
	if err != nil {
		return nil, fmt.Errorf("invalid generation response: %w", err)
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(arr), &items); err != nil {
		return nil, fmt.Errorf("parsing generation JSON: %w", err)
	}

	queries := make([]GeneratedQuery, 0, len(items))
	for _, item := range items {
		var m map[string]any
		if err := json.Unmarshal(item, &m); err != nil {
			// Non-object entries are dropped, not fatal.
			continue
		}
		if q, ok := QueryFromMap(m); ok {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("invalid generation response: no usable queries in %d items", len(items))
	}
	return queries, nil
}
