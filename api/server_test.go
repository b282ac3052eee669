package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/basin-data/erosion.report/internal/erosion"
	"github.com/basin-data/erosion.report/internal/store"
	"github.com/basin-data/erosion.report/internal/testutil"
)

func setupServer(t *testing.T) (*Server, *store.RunStore) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := store.NewDB(dbPath)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	migrationsDir := filepath.Join("..", "db", "migrations")
	if err := db.MigrateUp(migrationsDir); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return NewServer("127.0.0.1:0", db), store.NewRunStore(db)
}

func seedRun(t *testing.T, runs *store.RunStore) *store.Run {
	t.Helper()

	run := &store.Run{Label: "seed", StartYear: 2016, EndYear: 2018}
	if err := runs.InsertRun(run); err != nil {
		t.Fatalf("InsertRun: %v", err)
	}
	if err := runs.InsertYearStats(run.RunID, erosion.Stats{Year: 2016, Count: 4, Mean: 12}); err != nil {
		t.Fatalf("InsertYearStats: %v", err)
	}
	if err := runs.InsertSummaries(run.RunID, store.RunSummaries{
		Trend: &erosion.TrendSummary{FirstYear: 2016, LastYear: 2018, Slope: 2},
	}); err != nil {
		t.Fatalf("InsertSummaries: %v", err)
	}
	return run
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := setupServer(t)
	rec := doRequest(t, s, http.MethodGet, "/health")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
}

func TestListRuns(t *testing.T) {
	s, runs := setupServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/runs")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var empty []store.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &empty); err != nil {
		t.Fatalf("decode empty list: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty list, got %d runs", len(empty))
	}

	seedRun(t, runs)
	rec = doRequest(t, s, http.MethodGet, "/api/runs")
	var listed []store.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 || listed[0].Label != "seed" {
		t.Errorf("unexpected list: %+v", listed)
	}
}

func TestGetRunAndSubresources(t *testing.T) {
	s, runs := setupServer(t)
	run := seedRun(t, runs)

	rec := doRequest(t, s, http.MethodGet, "/api/runs/"+run.RunID)
	if rec.Code != http.StatusOK {
		t.Fatalf("get run status = %d, want 200", rec.Code)
	}
	var got store.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if got.RunID != run.RunID || got.StartYear != 2016 {
		t.Errorf("unexpected run: %+v", got)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/runs/"+run.RunID+"/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d, want 200", rec.Code)
	}
	var stats []store.YearStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if len(stats) != 1 || stats[0].Mean != 12 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/runs/"+run.RunID+"/summaries")
	if rec.Code != http.StatusOK {
		t.Fatalf("summaries status = %d, want 200", rec.Code)
	}
	var sum store.RunSummaries
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decode summaries: %v", err)
	}
	if sum.Trend == nil || sum.Trend.Slope != 2 {
		t.Errorf("unexpected summaries: %+v", sum)
	}
}

func TestGetRunNotFound(t *testing.T) {
	s, _ := setupServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/runs/nope")
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestDeleteRun(t *testing.T) {
	s, runs := setupServer(t)
	run := seedRun(t, runs)

	rec := doRequest(t, s, http.MethodDelete, "/api/runs/"+run.RunID)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", rec.Code)
	}
	rec = doRequest(t, s, http.MethodGet, "/api/runs/"+run.RunID)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := setupServer(t)
	rec := doRequest(t, s, http.MethodPost, "/api/runs")
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestUnknownSubresource(t *testing.T) {
	s, runs := setupServer(t)
	run := seedRun(t, runs)
	rec := doRequest(t, s, http.MethodGet, "/api/runs/"+run.RunID+"/bogus")
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}
