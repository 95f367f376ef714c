package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Project statuses.
const (
	ProjectCreated          = "created"
	ProjectGenerating       = "generating"
	ProjectGenerationFailed = "generation_failed"
	ProjectGenerated        = "generated"
	ProjectAnalyzed         = "analyzed"
)

// Query statuses. A query is locked by moving it to analyzing and always
// leaves that state as complete or error before the orchestrator returns;
// recovering rows stuck in analyzing after a crash is a separate concern.
const (
	QueryPending   = "pending"
	QueryAnalyzing = "analyzing"
	QueryComplete  = "complete"
	QueryError     = "error"
)

// Project is the brand configuration queries are generated and analyzed for.
type Project struct {
	ID            string
	Name          string
	BrandName     string
	Domain        string
	Industry      string
	Description   string
	Competitors   []string
	Status        string
	QueryCount    int
	AnalyzedCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Query is a single generated query and, once analyzed, its result fields.
type Query struct {
	ID             string
	ProjectID      string
	QueryID        int // sequential within the project's batch, 1-based
	Text           string
	Type           string
	Category       string
	Format         string
	TargetAudience string
	Status         string
	BrandMentions  []string
	Source         string
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
