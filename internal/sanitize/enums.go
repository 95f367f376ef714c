package sanitize

import "strings"

// QueryType values. The model is asked to pick one of these, but the
// sanitizer never trusts it to.
const (
	TypeEducational    = "Educational"
	TypeServiceAligned = "Service-Aligned"
)

// QueryFormat values.
const (
	FormatNaturalLanguage = "Natural-language questions"
	FormatKeywordPhrases  = "Keyword phrases"
)

// QueryTypes is the closed set of query types.
var QueryTypes = []string{TypeEducational, TypeServiceAligned}

// QueryCategories is the closed set of query categories. The first entry is
// the default when coercion fails entirely.
var QueryCategories = []string{
	"Industry monitoring",
	"Competitor tracking",
	"Brand perception",
	"Product comparison",
	"Buying guidance",
	"Troubleshooting",
	"How-to guidance",
	"Market trends",
	"Regulatory updates",
	"Local services",
}

// QueryFormats is the closed set of query formats.
var QueryFormats = []string{FormatNaturalLanguage, FormatKeywordPhrases}

// CoerceType maps an arbitrary string onto one of the two query types.
// Exact match wins; otherwise anything mentioning "service" or "aligned"
// is Service-Aligned, and everything else falls back to Educational.
func CoerceType(s string) string {
	s = strings.TrimSpace(s)
	for _, t := range QueryTypes {
		if s == t {
			return t
		}
	}
	lower := strings.ToLower(s)
	if strings.Contains(lower, "service") || strings.Contains(lower, "aligned") {
		return TypeServiceAligned
	}
	return TypeEducational
}

// CoerceCategory maps an arbitrary string onto one of the ten categories:
// exact match, then case-insensitive match, then bidirectional substring
// match, then the first category as the default.
func CoerceCategory(s string) string {
	s = strings.TrimSpace(s)
	for _, c := range QueryCategories {
		if s == c {
			return c
		}
	}
	lower := strings.ToLower(s)
	for _, c := range QueryCategories {
		if lower == strings.ToLower(c) {
			return c
		}
	}
	if lower != "" {
		for _, c := range QueryCategories {
			cl := strings.ToLower(c)
			if strings.Contains(cl, lower) || strings.Contains(lower, cl) {
				return c
			}
		}
	}
	return QueryCategories[0]
}

// CoerceFormat maps an arbitrary string onto one of the two query formats.
func CoerceFormat(s string) string {
	s = strings.TrimSpace(s)
	for _, f := range QueryFormats {
		if s == f {
			return f
		}
	}
	lower := strings.ToLower(s)
	for _, f := range QueryFormats {
		if lower == strings.ToLower(f) {
			return f
		}
	}
	if strings.Contains(lower, "keyword") {
		return FormatKeywordPhrases
	}
	return FormatNaturalLanguage
}
