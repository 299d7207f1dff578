package storage

import (
	"path/filepath"
	"testing"
	"time"

	"listing_scrooper/models"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	store := newTestSQLite(t)

	started := time.Now().Add(-2 * time.Second)
	run := &models.ScrapeRun{
		SiteID:    "zillow",
		URL:       "https://www.zillow.com/homedetails/a/1_zpid/",
		StartedAt: started,
		Status:    models.RunStatusRunning,
	}
	id, err := store.CreateRun(run)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	run.ID = id

	if err := store.Log(&id, models.LogLevelInfo, "Scraping", "zillow"); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := store.Log(&id, models.LogLevelWarn, "direct: status 403", "zillow"); err != nil {
		t.Fatalf("log: %v", err)
	}

	finished := time.Now()
	run.FinishedAt = &finished
	run.Status = models.RunStatusCompleted
	run.Strategy = "relay:allorigins"
	run.Attempts = 2
	if err := store.UpdateRun(run); err != nil {
		t.Fatalf("update run: %v", err)
	}

	runs, err := store.RecentRuns(10)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.Status != models.RunStatusCompleted || got.Strategy != "relay:allorigins" || got.Attempts != 2 {
		t.Fatalf("unexpected run %+v", got)
	}
	if got.FinishedAt == nil {
		t.Fatalf("expected finished_at")
	}

	logs, err := store.RunLogs(id)
	if err != nil {
		t.Fatalf("run logs: %v", err)
	}
	if len(logs) != 2 || logs[1].Level != models.LogLevelWarn {
		t.Fatalf("unexpected logs %+v", logs)
	}

	last, err := store.LastSuccess(run.URL)
	if err != nil {
		t.Fatalf("last success: %v", err)
	}
	if last.IsZero() || last.Unix() != started.Unix() {
		t.Fatalf("expected last success %v, got %v", started, last)
	}
}

func TestSQLiteStore_LastSuccessNever(t *testing.T) {
	store := newTestSQLite(t)

	last, err := store.LastSuccess("https://www.zillow.com/homedetails/none/2_zpid/")
	if err != nil {
		t.Fatalf("last success: %v", err)
	}
	if !last.IsZero() {
		t.Fatalf("expected zero time, got %v", last)
	}
}

func TestSQLiteStore_SiteStats(t *testing.T) {
	store := newTestSQLite(t)

	if st, err := store.GetSiteStats("zillow"); err != nil || st != nil {
		t.Fatalf("expected no stats yet, got %+v, %v", st, err)
	}

	for i, status := range []models.RunStatus{models.RunStatusCompleted, models.RunStatusFailed, models.RunStatusCompleted, models.RunStatusCompleted} {
		started := time.Now().Add(time.Duration(i-10) * time.Minute)
		run := &models.ScrapeRun{SiteID: "zillow", URL: "https://www.zillow.com/x", StartedAt: started, Status: models.RunStatusRunning}
		id, err := store.CreateRun(run)
		if err != nil {
			t.Fatalf("create run: %v", err)
		}
		finished := started.Add(3 * time.Second)
		run.ID = id
		run.FinishedAt = &finished
		run.Status = status
		if err := store.UpdateRun(run); err != nil {
			t.Fatalf("update run: %v", err)
		}
	}

	if err := store.UpdateSiteStats("zillow"); err != nil {
		t.Fatalf("update stats: %v", err)
	}
	st, err := store.GetSiteStats("zillow")
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if st == nil {
		t.Fatalf("expected stats row")
	}
	if st.TotalRuns != 4 || st.SuccessRate != 0.75 || st.LastRunStatus != string(models.RunStatusCompleted) {
		t.Fatalf("unexpected stats %+v", st)
	}
	if st.LastRunAt == nil {
		t.Fatalf("expected last run time")
	}
}

func TestSQLiteStore_Commands(t *testing.T) {
	store := newTestSQLite(t)

	if _, err := store.EnqueueCommand(models.CmdScrapeWatch, nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	id, err := store.EnqueueCommand(models.CmdScrapeURL, &models.CommandParams{URL: "https://www.zillow.com/homedetails/a/1_zpid/"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	cmds, err := store.GetPendingCommands()
	if err != nil {
		t.Fatalf("pending commands: %v", err)
	}
	if len(cmds) != 2 || cmds[0].Command != models.CmdScrapeWatch || cmds[1].ID != id {
		t.Fatalf("unexpected commands %+v", cmds)
	}
	params, err := cmds[1].ParseParams()
	if err != nil || params.URL != "https://www.zillow.com/homedetails/a/1_zpid/" {
		t.Fatalf("unexpected params %+v, %v", params, err)
	}
	if p, err := cmds[0].ParseParams(); err != nil || p.URL != "" {
		t.Fatalf("expected empty params, got %+v, %v", p, err)
	}

	if err := store.MarkCommandProcessed(cmds[0].ID); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	cmds, err = store.GetPendingCommands()
	if err != nil {
		t.Fatalf("pending commands: %v", err)
	}
	if len(cmds) != 1 || cmds[0].ID != id {
		t.Fatalf("expected only the url command to remain, got %+v", cmds)
	}
}
