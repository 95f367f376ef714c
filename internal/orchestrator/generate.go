package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"queryscope/internal/prompt"
	"queryscope/internal/retry"
	"queryscope/internal/sanitize"
	"queryscope/internal/storage"
)

// GenerateResult summarizes a generation run.
type GenerateResult struct {
	Count      int   `json:"count"`
	DurationMs int64 `json:"duration_ms"`
}

// Generate produces a fresh batch of count queries for the project and
// persists it, replacing any previous batch. A failure of the initial
// generation call aborts the whole batch and leaves the project in
// generation_failed: a partial query set is not useful.
func (o *Orchestrator) Generate(ctx context.Context, projectID string, count int) (GenerateResult, error) {
	if count <= 0 {
		return GenerateResult{}, fmt.Errorf("validation: query count must be positive, got %d", count)
	}
	start := time.Now()

	project, err := o.store.GetProject(projectID)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("loading project %s: %w", projectID, err)
	}
	if err := o.store.UpdateProjectStatus(projectID, storage.ProjectGenerating); err != nil {
		return GenerateResult{}, fmt.Errorf("marking project generating: %w", err)
	}

	queries, err := o.generateBatch(ctx, project, count)
	if err != nil {
		if stErr := o.store.UpdateProjectStatus(projectID, storage.ProjectGenerationFailed); stErr != nil {
			o.logger.Error("failed to mark project generation_failed", "project_id", projectID, "error", stErr)
		}
		return GenerateResult{}, err
	}

	// The batch is truncated to the target and renumbered from 1; IDs from
	// the model are never trusted.
	if len(queries) > count {
		queries = queries[:count]
	}
	rows := make([]storage.Query, len(queries))
	for i, q := range queries {
		rows[i] = storage.Query{
			ID:             uuid.New().String(),
			ProjectID:      projectID,
			QueryID:        i + 1,
			Text:           q.QueryText,
			Type:           q.QueryType,
			Category:       q.QueryCategory,
			Format:         q.QueryFormat,
			TargetAudience: q.TargetAudience,
		}
	}

	if err := o.store.ReplaceQueries(projectID, rows); err != nil {
		return GenerateResult{}, fmt.Errorf("persisting batch: %w", err)
	}
	if err := o.store.UpdateProjectCounters(projectID, len(rows), 0); err != nil {
		return GenerateResult{}, fmt.Errorf("updating counters: %w", err)
	}
	if err := o.store.UpdateProjectStatus(projectID, storage.ProjectGenerated); err != nil {
		return GenerateResult{}, fmt.Errorf("marking project generated: %w", err)
	}

	result := GenerateResult{Count: len(rows), DurationMs: time.Since(start).Milliseconds()}
	o.logger.Info("generation complete",
		"project_id", projectID, "count", result.Count, "duration_ms", result.DurationMs)
	return result, nil
}

// generateBatch runs the initial generation call and up to maxTopUps
// supplementary calls while the batch is short of the target. The initial
// call failing is fatal; a failed top-up just stops the topping up.
func (o *Orchestrator) generateBatch(ctx context.Context, project storage.Project, count int) ([]sanitize.GeneratedQuery, error) {
	collected, err := o.invokeGeneration(ctx, prompt.Generation(project, count))
	if err != nil {
		return nil, fmt.Errorf("generating queries: %w", err)
	}

	for topUp := 0; len(collected) < count && topUp < maxTopUps; topUp++ {
		need := count - len(collected)
		existing := make([]string, len(collected))
		for i, q := range collected {
			existing[i] = q.QueryText
		}

		o.logger.Info("batch short of target, topping up",
			"have", len(collected), "target", count, "top_up", topUp+1)

		more, err := o.invokeGeneration(ctx, prompt.TopUp(project, need, existing))
		if err != nil {
			o.logger.Warn("top-up call failed, continuing with partial batch",
				"have", len(collected), "target", count, "error", err)
			break
		}
		collected = append(collected, more...)
	}
	return collected, nil
}

func (o *Orchestrator) invokeGeneration(ctx context.Context, p string) ([]sanitize.GeneratedQuery, error) {
	return retry.Do(ctx, o.invoker, o.retryCfg, "generate_queries", func(cctx context.Context) ([]sanitize.GeneratedQuery, error) {
		raw, err := o.model.GenerateText(cctx, p, prompt.GenerationSampling)
		if err != nil {
			return nil, err
		}
		return sanitize.Queries(raw)
	})
}
