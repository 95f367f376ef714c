package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"queryscope/internal/prompt"
	"queryscope/internal/retry"
	"queryscope/internal/sanitize"
	"queryscope/internal/storage"
)

// AnalyzeResult summarizes an analysis run.
type AnalyzeResult struct {
	Analyzed int `json:"analyzed"`
	Errors   int `json:"errors"`
	Total    int `json:"total"`
}

// Analyze processes the project's queries in fixed-size groups with full
// intra-group concurrency; each call is individually admitted by the shared
// rate limiter. With explicit queryIDs only those queries are processed
// (already-complete ones are skipped); otherwise all pending and previously
// errored queries are. Failures are item-scoped: a query whose retries are
// exhausted is written back as error with a fully populated fallback
// result, never left in analyzing.
func (o *Orchestrator) Analyze(ctx context.Context, projectID string, queryIDs []string) (AnalyzeResult, error) {
	project, err := o.store.GetProject(projectID)
	if err != nil {
		return AnalyzeResult{}, fmt.Errorf("loading project %s: %w", projectID, err)
	}

	var items []storage.Query
	if len(queryIDs) > 0 {
		items, err = o.store.GetQueries(projectID, queryIDs)
	} else {
		items, err = o.store.ListQueriesByStatus(projectID, storage.QueryPending, storage.QueryError)
	}
	if err != nil {
		return AnalyzeResult{}, fmt.Errorf("listing queries: %w", err)
	}
	items = skipComplete(items)

	var analyzed, failed atomic.Int64
	for start := 0; start < len(items); start += o.batchSize {
		end := min(start+o.batchSize, len(items))
		group, gctx := errgroup.WithContext(ctx)
		for _, q := range items[start:end] {
			group.Go(func() error {
				return o.analyzeOne(gctx, project, q, &analyzed, &failed)
			})
		}
		if err := group.Wait(); err != nil {
			return AnalyzeResult{}, err
		}

		// Stay gentle on the upstream beyond what the limiter enforces.
		if end < len(items) {
			if err := o.pause(ctx, o.batchPause); err != nil {
				return AnalyzeResult{}, err
			}
		}
	}

	result := AnalyzeResult{
		Analyzed: int(analyzed.Load()),
		Errors:   int(failed.Load()),
		Total:    len(items),
	}

	if err := o.finishAnalysis(projectID); err != nil {
		return result, err
	}

	o.logger.Info("analysis run complete",
		"project_id", projectID, "analyzed", result.Analyzed, "errors", result.Errors, "total", result.Total)
	return result, nil
}

// analyzeOne locks the query, runs the throttled retry loop, and always
// moves the row to complete or error. Only storage failures propagate.
func (o *Orchestrator) analyzeOne(ctx context.Context, project storage.Project, q storage.Query, analyzed, failed *atomic.Int64) error {
	if err := o.store.MarkQueryAnalyzing(q.ID); err != nil {
		return fmt.Errorf("locking query %s: %w", q.ID, err)
	}

	p := prompt.Analysis(project, q.Text)
	result, err := retry.Do(ctx, o.invoker, o.retryCfg, "analyze_query", func(cctx context.Context) (sanitize.AnalysisResult, error) {
		raw, err := o.model.GenerateText(cctx, p, prompt.AnalysisSampling)
		if err != nil {
			return sanitize.AnalysisResult{}, err
		}
		return sanitize.Analysis(raw)
	})
	if err != nil {
		o.logger.Warn("query analysis exhausted retries, writing fallback",
			"query_id", q.ID, "error", err)
		if ferr := o.store.FailQuery(q.ID, fallbackResult(q), err.Error()); ferr != nil {
			return fmt.Errorf("writing fallback for query %s: %w", q.ID, ferr)
		}
		failed.Add(1)
		return nil
	}

	if err := o.store.CompleteQuery(q.ID, result); err != nil {
		return fmt.Errorf("completing query %s: %w", q.ID, err)
	}
	analyzed.Add(1)
	return nil
}

// fallbackResult synthesizes a fully populated result for a query that
// failed all retries. The query's own pre-existing type and category are
// the safest defaults; brand mentions and source get sentinels.
func fallbackResult(q storage.Query) sanitize.AnalysisResult {
	return sanitize.AnalysisResult{
		BrandMentions: []string{sanitize.NoBrandsSentinel},
		Source:        sanitize.UnknownSource,
		QueryType:     sanitize.CoerceType(q.Type),
		QueryCategory: sanitize.CoerceCategory(q.Category),
	}
}

// finishAnalysis refreshes the project counters and, once nothing is left
// pending or analyzing, marks the project analyzed.
func (o *Orchestrator) finishAnalysis(projectID string) error {
	counts, err := o.store.CountQueriesByStatus(projectID)
	if err != nil {
		return fmt.Errorf("counting queries: %w", err)
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	if err := o.store.UpdateProjectCounters(projectID, total, counts[storage.QueryComplete]); err != nil {
		return fmt.Errorf("updating counters: %w", err)
	}
	if counts[storage.QueryPending]+counts[storage.QueryAnalyzing] == 0 {
		if err := o.store.UpdateProjectStatus(projectID, storage.ProjectAnalyzed); err != nil {
			return fmt.Errorf("marking project analyzed: %w", err)
		}
	}
	return nil
}

func skipComplete(items []storage.Query) []storage.Query {
	out := items[:0]
	for _, q := range items {
		if q.Status != storage.QueryComplete {
			out = append(out, q)
		}
	}
	return out
}
