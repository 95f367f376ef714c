// Package api exposes the generate/analyze operations over HTTP (chi) and
// as MCP tools. Transport is deliberately thin: all orchestration,
// throttling, and retry behavior lives below it.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"queryscope/internal/orchestrator"
	"queryscope/internal/ratelimit"
	"queryscope/internal/storage"
)

const maxBodySize = 1 << 20 // 1MB

// QueryOrchestrator abstracts the orchestrator for the transport layer.
type QueryOrchestrator interface {
	Generate(ctx context.Context, projectID string, count int) (orchestrator.GenerateResult, error)
	Analyze(ctx context.Context, projectID string, queryIDs []string) (orchestrator.AnalyzeResult, error)
}

// Deps holds the handler dependencies.
type Deps struct {
	Store   *storage.Store
	Orch    QueryOrchestrator
	Limiter *ratelimit.Limiter
	Token   string
}

// NewHandler builds the HTTP router. /health is unauthenticated; everything
// else requires the bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/projects", handleCreateProject(deps))
		r.Get("/projects/{id}", handleGetProject(deps))
		r.Get("/projects/{id}/status", handleProjectStatus(deps))
		r.Get("/projects/{id}/queries", handleListQueries(deps))
		r.Post("/projects/{id}/generate", handleGenerate(deps))
		r.Post("/projects/{id}/analyze", handleAnalyze(deps))
		r.Get("/ratelimit", handleRateLimit(deps))
	})

	return r
}

// CreateProjectRequest is the POST /projects body.
type CreateProjectRequest struct {
	Name        string   `json:"name"`
	BrandName   string   `json:"brand_name"`
	Domain      string   `json:"domain"`
	Industry    string   `json:"industry"`
	Description string   `json:"description"`
	Competitors []string `json:"competitors"`
}

func handleCreateProject(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateProjectRequest
		if err := decodeBody(w, r, &req); err != nil {
			return
		}
		if req.Name == "" || req.BrandName == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name and brand_name are required")
			return
		}

		p := storage.Project{
			ID:          uuid.New().String(),
			Name:        req.Name,
			BrandName:   req.BrandName,
			Domain:      req.Domain,
			Industry:    req.Industry,
			Description: req.Description,
			Competitors: req.Competitors,
			Status:      storage.ProjectCreated,
		}
		if err := deps.Store.CreateProject(p); err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "creating project: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, projectPayload(p))
	}
}

func handleGetProject(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadProject(w, deps, chi.URLParam(r, "id"))
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, projectPayload(p))
	}
}

func handleProjectStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadProject(w, deps, chi.URLParam(r, "id"))
		if !ok {
			return
		}
		counts, err := deps.Store.CountQueriesByStatus(p.ID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "counting queries: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":             p.ID,
			"status":         p.Status,
			"query_count":    p.QueryCount,
			"analyzed_count": p.AnalyzedCount,
			"queries":        counts,
		})
	}
}

func handleListQueries(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadProject(w, deps, chi.URLParam(r, "id"))
		if !ok {
			return
		}
		var statuses []string
		if st := r.URL.Query().Get("status"); st != "" {
			statuses = append(statuses, st)
		}
		queries, err := deps.Store.ListQueriesByStatus(p.ID, statuses...)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "listing queries: %v", err)
			return
		}
		payload := make([]map[string]any, len(queries))
		for i, q := range queries {
			payload[i] = queryPayload(q)
		}
		writeJSON(w, http.StatusOK, map[string]any{"queries": payload})
	}
}

// GenerateRequest is the POST /projects/{id}/generate body.
type GenerateRequest struct {
	Count int `json:"count"`
}

func handleGenerate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadProject(w, deps, chi.URLParam(r, "id"))
		if !ok {
			return
		}
		var req GenerateRequest
		if err := decodeBody(w, r, &req); err != nil {
			return
		}
		if req.Count <= 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "count must be positive")
			return
		}

		result, err := deps.Orch.Generate(r.Context(), p.ID, req.Count)
		if err != nil {
			httpError(w, http.StatusBadGateway, "generation_error", "generating queries: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// AnalyzeRequest is the POST /projects/{id}/analyze body. QueryIDs is
// optional; empty means every pending or errored query.
type AnalyzeRequest struct {
	QueryIDs []string `json:"query_ids"`
}

func handleAnalyze(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadProject(w, deps, chi.URLParam(r, "id"))
		if !ok {
			return
		}
		// The body is optional; no body means analyze everything eligible.
		var req AnalyzeRequest
		if err := decodeBodyOptional(w, r, &req); err != nil {
			return
		}

		result, err := deps.Orch.Analyze(r.Context(), p.ID, req.QueryIDs)
		if err != nil {
			httpError(w, http.StatusBadGateway, "analysis_error", "analyzing queries: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleRateLimit(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, deps.Limiter.Status())
	}
}

// --- helpers ---

func loadProject(w http.ResponseWriter, deps Deps, id string) (storage.Project, bool) {
	p, err := deps.Store.GetProject(id)
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found_error", "project %s not found", id)
		return storage.Project{}, false
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "internal_error", "loading project: %v", err)
		return storage.Project{}, false
	}
	return p, true
}

func projectPayload(p storage.Project) map[string]any {
	return map[string]any{
		"id":             p.ID,
		"name":           p.Name,
		"brand_name":     p.BrandName,
		"domain":         p.Domain,
		"industry":       p.Industry,
		"description":    p.Description,
		"competitors":    p.Competitors,
		"status":         p.Status,
		"query_count":    p.QueryCount,
		"analyzed_count": p.AnalyzedCount,
	}
}

func queryPayload(q storage.Query) map[string]any {
	return map[string]any{
		"id":              q.ID,
		"query_id":        q.QueryID,
		"text":            q.Text,
		"type":            q.Type,
		"category":        q.Category,
		"format":          q.Format,
		"target_audience": q.TargetAudience,
		"status":          q.Status,
		"brand_mentions":  q.BrandMentions,
		"source":          q.Source,
		"last_error":      q.LastError,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return err
	}
	return nil
}

func decodeBodyOptional(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, errType, format string, args ...any) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"type":    errType,
			"message": fmt.Sprintf(format, args...),
		},
	})
}
