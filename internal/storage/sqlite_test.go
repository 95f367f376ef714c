package storage

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"

	"queryscope/internal/sanitize"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testProject(t *testing.T, s *Store) Project {
	t.Helper()
	p := Project{
		ID:          uuid.NewString(),
		Name:        "Acme Launch",
		BrandName:   "Acme",
		Domain:      "acme.com",
		Industry:    "developer tools",
		Description: "CI for robots",
		Competitors: []string{"Globex", "Initech"},
	}
	if err := s.CreateProject(p); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	return p
}

func testQueries(t *testing.T, s *Store, projectID string, n int) []Query {
	t.Helper()
	qs := make([]Query, n)
	for i := range qs {
		qs[i] = Query{
			ID:       uuid.NewString(),
			QueryID:  i + 1,
			Text:     fmt.Sprintf("query %d", i+1),
			Type:     sanitize.TypeEducational,
			Category: "Industry monitoring",
			Format:   sanitize.FormatNaturalLanguage,
		}
	}
	if err := s.ReplaceQueries(projectID, qs); err != nil {
		t.Fatalf("ReplaceQueries() error = %v", err)
	}
	return qs
}

func TestCreateAndGetProject(t *testing.T) {
	s := newTestStore(t)
	p := testProject(t, s)

	got, err := s.GetProject(p.ID)
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if got.Name != p.Name || got.BrandName != p.BrandName || got.Domain != p.Domain {
		t.Errorf("GetProject() = %+v", got)
	}
	if got.Status != ProjectCreated {
		t.Errorf("Status = %q, want %q", got.Status, ProjectCreated)
	}
	if !reflect.DeepEqual(got.Competitors, []string{"Globex", "Initech"}) {
		t.Errorf("Competitors = %v", got.Competitors)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestGetProject_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetProject("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProject() error = %v, want ErrNotFound", err)
	}
}

func TestCreateProject_NilCompetitors(t *testing.T) {
	s := newTestStore(t)
	p := Project{ID: uuid.NewString(), Name: "n", BrandName: "b"}
	if err := s.CreateProject(p); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	got, err := s.GetProject(p.ID)
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if got.Competitors == nil || len(got.Competitors) != 0 {
		t.Errorf("Competitors = %#v, want empty non-nil slice", got.Competitors)
	}
}

func TestUpdateProjectStatus(t *testing.T) {
	s := newTestStore(t)
	p := testProject(t, s)

	for _, status := range []string{ProjectGenerating, ProjectGenerated, ProjectAnalyzed} {
		if err := s.UpdateProjectStatus(p.ID, status); err != nil {
			t.Fatalf("UpdateProjectStatus(%q) error = %v", status, err)
		}
		got, err := s.GetProject(p.ID)
		if err != nil {
			t.Fatalf("GetProject() error = %v", err)
		}
		if got.Status != status {
			t.Errorf("Status = %q, want %q", got.Status, status)
		}
	}

	if err := s.UpdateProjectStatus("nope", ProjectGenerated); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateProjectStatus(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestUpdateProjectCounters(t *testing.T) {
	s := newTestStore(t)
	p := testProject(t, s)

	if err := s.UpdateProjectCounters(p.ID, 200, 37); err != nil {
		t.Fatalf("UpdateProjectCounters() error = %v", err)
	}
	got, _ := s.GetProject(p.ID)
	if got.QueryCount != 200 || got.AnalyzedCount != 37 {
		t.Errorf("counters = %d/%d, want 200/37", got.QueryCount, got.AnalyzedCount)
	}
}

func TestReplaceQueries_FreshBatch(t *testing.T) {
	s := newTestStore(t)
	p := testProject(t, s)

	testQueries(t, s, p.ID, 5)
	second := testQueries(t, s, p.ID, 3)

	got, err := s.ListQueriesByStatus(p.ID)
	if err != nil {
		t.Fatalf("ListQueriesByStatus() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3 (replace must drop the old batch)", len(got))
	}
	for i, q := range got {
		if q.ID != second[i].ID {
			t.Errorf("query %d: id = %s, want %s", i, q.ID, second[i].ID)
		}
		if q.Status != QueryPending {
			t.Errorf("query %d: status = %q, want pending", i, q.Status)
		}
		if q.QueryID != i+1 {
			t.Errorf("query %d: query_id = %d, want %d", i, q.QueryID, i+1)
		}
		if q.BrandMentions == nil {
			t.Errorf("query %d: BrandMentions is nil", i)
		}
	}
}

func TestListQueriesByStatus_Filter(t *testing.T) {
	s := newTestStore(t)
	p := testProject(t, s)
	qs := testQueries(t, s, p.ID, 4)

	if err := s.MarkQueryAnalyzing(qs[0].ID); err != nil {
		t.Fatalf("MarkQueryAnalyzing() error = %v", err)
	}
	if err := s.CompleteQuery(qs[0].ID, sanitize.AnalysisResult{
		BrandMentions: []string{"Acme"},
		Source:        "acme.com",
		QueryType:     sanitize.TypeEducational,
		QueryCategory: "Industry monitoring",
	}); err != nil {
		t.Fatalf("CompleteQuery() error = %v", err)
	}
	if err := s.FailQuery(qs[1].ID, sanitize.AnalysisResult{
		BrandMentions: []string{sanitize.NoBrandsSentinel},
		Source:        sanitize.UnknownSource,
		QueryType:     sanitize.TypeEducational,
		QueryCategory: "Industry monitoring",
	}, "analyze_query failed after 4 attempts"); err != nil {
		t.Fatalf("FailQuery() error = %v", err)
	}

	pending, err := s.ListQueriesByStatus(p.ID, QueryPending)
	if err != nil {
		t.Fatalf("ListQueriesByStatus(pending) error = %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("pending = %d, want 2", len(pending))
	}

	retryable, err := s.ListQueriesByStatus(p.ID, QueryPending, QueryError)
	if err != nil {
		t.Fatalf("ListQueriesByStatus(pending, error) error = %v", err)
	}
	if len(retryable) != 3 {
		t.Errorf("pending+error = %d, want 3", len(retryable))
	}

	counts, err := s.CountQueriesByStatus(p.ID)
	if err != nil {
		t.Fatalf("CountQueriesByStatus() error = %v", err)
	}
	want := map[string]int{QueryPending: 2, QueryComplete: 1, QueryError: 1}
	if !reflect.DeepEqual(counts, want) {
		t.Errorf("counts = %v, want %v", counts, want)
	}
}

func TestCompleteQuery_PersistsResult(t *testing.T) {
	s := newTestStore(t)
	p := testProject(t, s)
	qs := testQueries(t, s, p.ID, 1)

	result := sanitize.AnalysisResult{
		BrandMentions: []string{"Acme", "Globex"},
		Source:        "reddit.com",
		QueryType:     sanitize.TypeServiceAligned,
		QueryCategory: "Competitor tracking",
	}
	if err := s.CompleteQuery(qs[0].ID, result); err != nil {
		t.Fatalf("CompleteQuery() error = %v", err)
	}

	got, err := s.GetQueries(p.ID, []string{qs[0].ID})
	if err != nil {
		t.Fatalf("GetQueries() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	q := got[0]
	if q.Status != QueryComplete {
		t.Errorf("Status = %q, want complete", q.Status)
	}
	if !reflect.DeepEqual(q.BrandMentions, result.BrandMentions) {
		t.Errorf("BrandMentions = %v", q.BrandMentions)
	}
	if q.Source != "reddit.com" || q.Type != sanitize.TypeServiceAligned || q.Category != "Competitor tracking" {
		t.Errorf("result fields = %+v", q)
	}
	if q.LastError != "" {
		t.Errorf("LastError = %q, want empty", q.LastError)
	}
}

func TestFailQuery_TruncatesLastError(t *testing.T) {
	s := newTestStore(t)
	p := testProject(t, s)
	qs := testQueries(t, s, p.ID, 1)

	long := strings.Repeat("x", 900)
	fallback := sanitize.AnalysisResult{
		BrandMentions: []string{sanitize.NoBrandsSentinel},
		Source:        sanitize.UnknownSource,
		QueryType:     sanitize.TypeEducational,
		QueryCategory: "Industry monitoring",
	}
	if err := s.FailQuery(qs[0].ID, fallback, long); err != nil {
		t.Fatalf("FailQuery() error = %v", err)
	}

	got, _ := s.GetQueries(p.ID, []string{qs[0].ID})
	if len(got) != 1 {
		t.Fatal("query not found")
	}
	if len(got[0].LastError) != 500 {
		t.Errorf("len(LastError) = %d, want 500", len(got[0].LastError))
	}
	if got[0].Status != QueryError {
		t.Errorf("Status = %q, want error", got[0].Status)
	}
	if !reflect.DeepEqual(got[0].BrandMentions, []string{sanitize.NoBrandsSentinel}) {
		t.Errorf("BrandMentions = %v, want fallback sentinel", got[0].BrandMentions)
	}
}

func TestGetQueries_UnknownIDsSkipped(t *testing.T) {
	s := newTestStore(t)
	p := testProject(t, s)
	qs := testQueries(t, s, p.ID, 2)

	got, err := s.GetQueries(p.ID, []string{qs[1].ID, "missing-id"})
	if err != nil {
		t.Fatalf("GetQueries() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != qs[1].ID {
		t.Errorf("got %+v", got)
	}

	got, err = s.GetQueries(p.ID, nil)
	if err != nil {
		t.Fatalf("GetQueries(nil) error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("GetQueries(nil) = %d rows, want 0", len(got))
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}
}
