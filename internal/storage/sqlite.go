package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"queryscope/internal/sanitize"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for projects and queries.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "queryscope.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Single connection avoids "database is locked" under concurrent writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies embedded SQL migrations that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var applied int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&applied); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

// --- Projects ---

// CreateProject inserts a new project. Status defaults to created.
func (s *Store) CreateProject(p Project) error {
	now := time.Now().UTC().Format(time.RFC3339)
	status := p.Status
	if status == "" {
		status = ProjectCreated
	}
	competitors, err := json.Marshal(emptyIfNil(p.Competitors))
	if err != nil {
		return fmt.Errorf("marshaling competitors: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO projects (id, name, brand_name, domain, industry, description, competitors, status, query_count, analyzed_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)`,
		p.ID, p.Name, p.BrandName, p.Domain, p.Industry, p.Description, string(competitors), status, now, now,
	)
	return err
}

// GetProject returns the project with the given id.
func (s *Store) GetProject(id string) (Project, error) {
	var p Project
	var competitors, createdAt, updatedAt string
	err := s.db.QueryRow(`
		SELECT id, name, brand_name, domain, industry, description, competitors, status, query_count, analyzed_count, created_at, updated_at
		FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.BrandName, &p.Domain, &p.Industry, &p.Description,
		&competitors, &p.Status, &p.QueryCount, &p.AnalyzedCount, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Project{}, ErrNotFound
	}
	if err != nil {
		return Project{}, err
	}
	if err := json.Unmarshal([]byte(competitors), &p.Competitors); err != nil {
		return Project{}, fmt.Errorf("parsing competitors: %w", err)
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return Project{}, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Project{}, err
	}
	return p, nil
}

// UpdateProjectStatus sets a project's status.
func (s *Store) UpdateProjectStatus(id, status string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`UPDATE projects SET status = ?, updated_at = ? WHERE id = ?`, status, now, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateProjectCounters sets the generated/analyzed counters.
func (s *Store) UpdateProjectCounters(id string, queryCount, analyzedCount int) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`UPDATE projects SET query_count = ?, analyzed_count = ?, updated_at = ? WHERE id = ?`,
		queryCount, analyzedCount, now, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// --- Queries ---

// ReplaceQueries deletes a project's existing queries and bulk-inserts the
// new batch in a single transaction. Re-running generation always yields a
// fresh batch.
func (s *Store) ReplaceQueries(projectID string, qs []Query) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM queries WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("clearing previous batch: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	stmt, err := tx.Prepare(`
		INSERT INTO queries (id, project_id, query_id, text, type, category, format, target_audience, status, brand_mentions, source, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'pending', '[]', '', '', ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, q := range qs {
		if _, err := stmt.Exec(q.ID, projectID, q.QueryID, q.Text, q.Type, q.Category, q.Format, q.TargetAudience, now, now); err != nil {
			return fmt.Errorf("inserting query %d: %w", q.QueryID, err)
		}
	}
	return tx.Commit()
}

// ListQueriesByStatus returns a project's queries in the given statuses,
// ordered by query_id. Passing no statuses returns all queries.
func (s *Store) ListQueriesByStatus(projectID string, statuses ...string) ([]Query, error) {
	query := `
		SELECT id, project_id, query_id, text, type, category, format, target_audience, status, brand_mentions, source, last_error, created_at, updated_at
		FROM queries WHERE project_id = ?`
	args := []any{projectID}
	if len(statuses) > 0 {
		query += ` AND status IN (?` + strings.Repeat(",?", len(statuses)-1) + `)`
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	query += ` ORDER BY query_id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQueries(rows)
}

// GetQueries returns the queries with the given ids within a project.
// Unknown ids are skipped, not errors.
func (s *Store) GetQueries(projectID string, ids []string) ([]Query, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, project_id, query_id, text, type, category, format, target_audience, status, brand_mentions, source, last_error, created_at, updated_at
		FROM queries WHERE project_id = ? AND id IN (?` + strings.Repeat(",?", len(ids)-1) + `)
		ORDER BY query_id ASC`
	args := make([]any, 0, len(ids)+1)
	args = append(args, projectID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQueries(rows)
}

// MarkQueryAnalyzing locks a query for analysis.
func (s *Store) MarkQueryAnalyzing(id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`UPDATE queries SET status = ?, updated_at = ? WHERE id = ?`, QueryAnalyzing, now, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// CompleteQuery persists a validated analysis result and marks the query
// complete.
func (s *Store) CompleteQuery(id string, result sanitize.AnalysisResult) error {
	return s.finishQuery(id, QueryComplete, result, "")
}

// FailQuery persists a fallback-sanitized result and marks the query as
// error. The record stays fully populated so downstream consumers never see
// partial fields.
func (s *Store) FailQuery(id string, fallback sanitize.AnalysisResult, lastError string) error {
	if len(lastError) > 500 {
		lastError = lastError[:500]
	}
	return s.finishQuery(id, QueryError, fallback, lastError)
}

func (s *Store) finishQuery(id, status string, result sanitize.AnalysisResult, lastError string) error {
	mentions, err := json.Marshal(emptyIfNil(result.BrandMentions))
	if err != nil {
		return fmt.Errorf("marshaling brand mentions: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`
		UPDATE queries
		SET status = ?, brand_mentions = ?, source = ?, type = ?, category = ?, last_error = ?, updated_at = ?
		WHERE id = ?`,
		status, string(mentions), result.Source, result.QueryType, result.QueryCategory, lastError, now, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// CountQueriesByStatus returns per-status query counts for a project.
func (s *Store) CountQueriesByStatus(projectID string) (map[string]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM queries WHERE project_id = ? GROUP BY status`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// --- helpers ---

func scanQueries(rows *sql.Rows) ([]Query, error) {
	var results []Query
	for rows.Next() {
		var q Query
		var mentions, createdAt, updatedAt string
		if err := rows.Scan(&q.ID, &q.ProjectID, &q.QueryID, &q.Text, &q.Type, &q.Category, &q.Format,
			&q.TargetAudience, &q.Status, &mentions, &q.Source, &q.LastError, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(mentions), &q.BrandMentions); err != nil {
			return nil, fmt.Errorf("parsing brand mentions for query %s: %w", q.ID, err)
		}
		var err error
		if q.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if q.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		results = append(results, q)
	}
	return results, rows.Err()
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func emptyIfNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
