// Package prompt builds the generateContent prompts for query generation
// and query analysis, and carries the fixed sampling configuration for each
// call type.
package prompt

import (
	"fmt"
	"strings"

	"queryscope/internal/gemini"
	"queryscope/internal/sanitize"
	"queryscope/internal/storage"
)

// Analysis runs cool for consistent classification; generation runs warmer
// so batches don't collapse into near-duplicates.
var (
	AnalysisSampling = gemini.GenerationConfig{
		Temperature:     0.3,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 1024,
	}
	GenerationSampling = gemini.GenerationConfig{
		Temperature:     0.7,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 8192,
	}
)

const analysisTemplate = `You are an AI search visibility analyst. A user asked an AI assistant the following query. Determine which brands an AI assistant would mention when answering, and the most likely source it would cite.

Your output must be ONLY a single valid JSON object with exactly these fields:
{"brand_mentions": ["..."], "source": "...", "query_type": "...", "query_category": "..."}

Rules:
- brand_mentions: brands or companies an AI answer would plausibly name, most prominent first. Empty array if none.
- source: the single most likely cited source (publication, site, or organization).
- query_type: one of %s.
- query_category: one of %s.`

// Analysis builds the prompt for analyzing one query in the project's
// context.
func Analysis(p storage.Project, queryText string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, analysisTemplate, quotedList(sanitize.QueryTypes), quotedList(sanitize.QueryCategories))
	sb.WriteString("\n\n")
	writeProjectContext(&sb, p)
	fmt.Fprintf(&sb, "\nQuery: %q\n", queryText)
	return sb.String()
}

const generationTemplate = `You are an AI search visibility analyst. Generate exactly %d distinct queries that real users might ask an AI assistant, relevant to the brand context below.

Your output must be ONLY a valid JSON array. Each element must have exactly these fields:
{"query_text": "...", "query_type": "...", "query_category": "...", "query_format": "...", "target_audience": "..."}

Rules:
- query_text: the query itself, phrased the way a real user would type it.
- query_type: one of %s.
- query_category: one of %s; spread queries across categories.
- query_format: one of %s.
- target_audience: a short description of who would ask this (max 200 characters).`

// Generation builds the prompt requesting exactly count queries.
func Generation(p storage.Project, count int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, generationTemplate, count,
		quotedList(sanitize.QueryTypes), quotedList(sanitize.QueryCategories), quotedList(sanitize.QueryFormats))
	sb.WriteString("\n\n")
	writeProjectContext(&sb, p)
	return sb.String()
}

// TopUp builds a supplementary generation prompt for count more queries,
// distinct from the ones already produced.
func TopUp(p storage.Project, count int, existing []string) string {
	var sb strings.Builder
	sb.WriteString(Generation(p, count))
	sb.WriteString("\nThe following queries already exist. Every new query must be distinct from all of them:\n")
	for _, q := range existing {
		fmt.Fprintf(&sb, "- %s\n", q)
	}
	return sb.String()
}

func writeProjectContext(sb *strings.Builder, p storage.Project) {
	sb.WriteString("[Brand Context]\n")
	fmt.Fprintf(sb, "Brand: %s\n", p.BrandName)
	if p.Domain != "" {
		fmt.Fprintf(sb, "Website: %s\n", p.Domain)
	}
	if p.Industry != "" {
		fmt.Fprintf(sb, "Industry: %s\n", p.Industry)
	}
	if p.Description != "" {
		fmt.Fprintf(sb, "Description: %s\n", p.Description)
	}
	if len(p.Competitors) > 0 {
		fmt.Fprintf(sb, "Competitors: %s\n", strings.Join(p.Competitors, ", "))
	}
}

func quotedList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, ", ")
}
