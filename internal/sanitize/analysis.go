// Package sanitize coerces raw model output into the strict result shapes
// the rest of the system consumes. The upstream model is unreliable rather
// than malicious: it wraps JSON in fences, invents enum values, returns
// comma-separated strings where arrays were requested. Every coercion here
// defaults instead of rejecting, so callers always receive a fully
// populated record; the only hard failures are unparseable JSON and a
// generated batch with zero usable items.
package sanitize

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// NoBrandsSentinel fills brand mentions when the model identified none.
	NoBrandsSentinel = "No brands identified"
	// UnknownSource fills the source field when the model left it blank.
	UnknownSource = "Unknown"

	maxBrandMentions = 20
	maxSourceLen     = 500
	maxAudienceLen   = 200
)

// AnalysisResult is the strict output of a single query analysis. All four
// fields are always populated, even when synthesized from a fallback.
type AnalysisResult struct {
	BrandMentions []string `json:"brand_mentions"`
	Source        string   `json:"source"`
	QueryType     string   `json:"query_type"`
	QueryCategory string   `json:"query_category"`
}

// Analysis coerces a raw model response into an AnalysisResult. The input
// may be fenced, surrounded by prose, or structurally sloppy; the only
// fatal condition is JSON that cannot be parsed at all.
func Analysis(raw string) (AnalysisResult, error) {
	text := stripFences(raw)
	obj, err := extractBalanced(text, '{', '}')
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("invalid analysis response: %w", err)
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(obj), &m); err != nil {
		return AnalysisResult{}, fmt.Errorf("parsing analysis JSON: %w", err)
	}

	return AnalysisResult{
		BrandMentions: coerceBrandMentions(m["brand_mentions"]),
		Source:        coerceSource(m["source"]),
		QueryType:     CoerceType(asString(m["query_type"])),
		QueryCategory: CoerceCategory(asString(m["query_category"])),
	}, nil
}

// coerceBrandMentions accepts an array of strings or a comma-separated
// string, trims entries, drops empties, and caps the list at 20. An empty
// result becomes the single sentinel entry.
func coerceBrandMentions(v any) []string {
	var entries []string
	switch vv := v.(type) {
	case []any:
		for _, e := range vv {
			entries = append(entries, asString(e))
		}
	case string:
		entries = strings.Split(vv, ",")
	}

	mentions := make([]string, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		mentions = append(mentions, e)
		if len(mentions) == maxBrandMentions {
			break
		}
	}
	if len(mentions) == 0 {
		return []string{NoBrandsSentinel}
	}
	return mentions
}

func coerceSource(v any) string {
	s := strings.TrimSpace(asString(v))
	if s == "" {
		return UnknownSource
	}
	if len(s) > maxSourceLen {
		s = s[:maxSourceLen]
	}
	return s
}

// asString returns v if it is a string, "" for anything else. Numbers and
// booleans in string-typed fields are treated as absent rather than
// stringified, so they fall through to the field's default.
func asString(v any) string {
	s, _ := v.(string)
	return s
}
