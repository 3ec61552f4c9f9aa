package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/serpscan/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) (*CrawlDB, func()) {
	t.Helper()

	tmpDir := t.TempDir()

	db, err := Open(tmpDir, DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	cleanup := func() {
		_ = db.Close()
	}

	return db, cleanup
}

// newTestKeyword returns a keyword with targets set.
func newTestKeyword(query string) *model.Keyword {
	kw := model.NewKeyword(query)
	kw.Category = "cafe"
	kw.TargetNames = []string{"Acme Coffee"}
	kw.TargetDomains = []string{"acme.com"}
	return kw
}

// intPtr returns a pointer to v.
func intPtr(v int) *int { return &v }

// boolPtr returns a pointer to v.
func boolPtr(v bool) *bool { return &v }

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		dbPath := filepath.Join(dbDir, DBFileName)
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != dbPath {
			t.Errorf("unexpected path %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{CreateIfNotExists: false})
		if !errors.Is(err, ErrDatabaseNotFound) {
			t.Errorf("expected ErrDatabaseNotFound, got %v", err)
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		_ = db.Close()

		db, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		_ = db.Close()
	})
}

// TestKeywords tests the keyword registry.
func TestKeywords(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	first := newTestKeyword("acme coffee")
	first.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := newTestKeyword("beans")
	second.TargetNames = nil
	second.Status = model.KeywordPaused
	second.CreatedAt = first.CreatedAt.Add(time.Hour)

	for _, kw := range []*model.Keyword{first, second} {
		if err := db.CreateKeyword(ctx, kw); err != nil {
			t.Fatalf("CreateKeyword(%q) error: %v", kw.Query, err)
		}
	}

	t.Run("get round-trips fields", func(t *testing.T) {
		got, err := db.GetKeyword(ctx, first.ID)
		if err != nil {
			t.Fatalf("GetKeyword error: %v", err)
		}
		if got.Query != "acme coffee" || got.Category != "cafe" || got.Status != model.KeywordActive {
			t.Errorf("unexpected keyword %+v", got)
		}
		if len(got.TargetNames) != 1 || got.TargetNames[0] != "Acme Coffee" {
			t.Errorf("unexpected names %v", got.TargetNames)
		}
		if len(got.TargetDomains) != 1 || got.TargetDomains[0] != "acme.com" {
			t.Errorf("unexpected domains %v", got.TargetDomains)
		}
		if !got.CreatedAt.Equal(first.CreatedAt) {
			t.Errorf("unexpected CreatedAt %v", got.CreatedAt)
		}
	})

	t.Run("nil names are stored as empty", func(t *testing.T) {
		got, err := db.GetKeyword(ctx, second.ID)
		if err != nil {
			t.Fatalf("GetKeyword error: %v", err)
		}
		if got.TargetNames == nil || len(got.TargetNames) != 0 {
			t.Errorf("expected empty names, got %v", got.TargetNames)
		}
	})

	t.Run("unknown keyword", func(t *testing.T) {
		if _, err := db.GetKeyword(ctx, uuid.New()); !errors.Is(err, ErrKeywordNotFound) {
			t.Errorf("expected ErrKeywordNotFound, got %v", err)
		}
	})

	t.Run("duplicate query", func(t *testing.T) {
		dup := newTestKeyword("acme coffee")
		if err := db.CreateKeyword(ctx, dup); !errors.Is(err, ErrDuplicateKeyword) {
			t.Errorf("expected ErrDuplicateKeyword, got %v", err)
		}
	})

	t.Run("invalid keyword", func(t *testing.T) {
		if err := db.CreateKeyword(ctx, model.NewKeyword("  ")); !errors.Is(err, model.ErrEmptyQuery) {
			t.Errorf("expected ErrEmptyQuery, got %v", err)
		}
	})

	t.Run("list and active list", func(t *testing.T) {
		all, err := db.ListKeywords(ctx)
		if err != nil {
			t.Fatalf("ListKeywords error: %v", err)
		}
		if len(all) != 2 || all[0].ID != first.ID || all[1].ID != second.ID {
			t.Errorf("unexpected keyword order %v", all)
		}

		active, err := db.ListActiveKeywords(ctx)
		if err != nil {
			t.Fatalf("ListActiveKeywords error: %v", err)
		}
		if len(active) != 1 || active[0].ID != first.ID {
			t.Errorf("unexpected active keywords %v", active)
		}
	})

	t.Run("set status", func(t *testing.T) {
		if err := db.SetKeywordStatus(ctx, second.ID, model.KeywordActive); err != nil {
			t.Fatalf("SetKeywordStatus error: %v", err)
		}
		got, err := db.GetKeyword(ctx, second.ID)
		if err != nil {
			t.Fatalf("GetKeyword error: %v", err)
		}
		if got.Status != model.KeywordActive {
			t.Errorf("status not updated: %s", got.Status)
		}

		if err := db.SetKeywordStatus(ctx, uuid.New(), model.KeywordPaused); !errors.Is(err, ErrKeywordNotFound) {
			t.Errorf("expected ErrKeywordNotFound, got %v", err)
		}
		if err := db.SetKeywordStatus(ctx, second.ID, "archived"); !errors.Is(err, model.ErrInvalidKeywordStatus) {
			t.Errorf("expected ErrInvalidKeywordStatus, got %v", err)
		}
	})
}

// TestKeywordUpdateAndDelete tests editing and removing keywords.
func TestKeywordUpdateAndDelete(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	kw := model.NewKeyword("acme coffee")
	kw.Status = model.KeywordPending
	other := newTestKeyword("acme beans")
	for _, k := range []*model.Keyword{kw, other} {
		if err := db.CreateKeyword(ctx, k); err != nil {
			t.Fatalf("CreateKeyword error: %v", err)
		}
	}

	t.Run("update targets", func(t *testing.T) {
		edited := *kw
		edited.Category = "cafe"
		edited.TargetNames = []string{"Acme Coffee"}
		edited.TargetDomains = []string{"acme.com", "acme.co.kr"}
		edited.Notes = "flagship"
		if err := db.UpdateKeyword(ctx, &edited); err != nil {
			t.Fatalf("UpdateKeyword error: %v", err)
		}

		got, err := db.GetKeyword(ctx, kw.ID)
		if err != nil {
			t.Fatalf("GetKeyword error: %v", err)
		}
		if got.Category != "cafe" || got.Notes != "flagship" || got.Status != model.KeywordPending {
			t.Errorf("unexpected keyword %+v", got)
		}
		if len(got.TargetNames) != 1 || len(got.TargetDomains) != 2 || got.TargetDomains[1] != "acme.co.kr" {
			t.Errorf("unexpected targets %v %v", got.TargetNames, got.TargetDomains)
		}
		if !got.CreatedAt.Equal(kw.CreatedAt) {
			t.Errorf("CreatedAt changed: %v", got.CreatedAt)
		}
	})

	t.Run("update errors", func(t *testing.T) {
		missing := newTestKeyword("acme tea")
		if err := db.UpdateKeyword(ctx, missing); !errors.Is(err, ErrKeywordNotFound) {
			t.Errorf("expected ErrKeywordNotFound, got %v", err)
		}

		clash := *kw
		clash.Query = "acme beans"
		if err := db.UpdateKeyword(ctx, &clash); !errors.Is(err, ErrDuplicateKeyword) {
			t.Errorf("expected ErrDuplicateKeyword, got %v", err)
		}

		blank := *kw
		blank.Query = " "
		if err := db.UpdateKeyword(ctx, &blank); !errors.Is(err, model.ErrEmptyQuery) {
			t.Errorf("expected ErrEmptyQuery, got %v", err)
		}
	})

	t.Run("delete removes runs", func(t *testing.T) {
		run := model.NewCrawlRun(other.ID, time.Now().UTC())
		if err := db.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun error: %v", err)
		}

		if err := db.DeleteKeyword(ctx, other.ID); err != nil {
			t.Fatalf("DeleteKeyword error: %v", err)
		}
		if _, err := db.GetKeyword(ctx, other.ID); !errors.Is(err, ErrKeywordNotFound) {
			t.Errorf("expected ErrKeywordNotFound, got %v", err)
		}
		if _, err := db.GetRun(ctx, run.ID); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected run to be deleted, got %v", err)
		}
		if err := db.DeleteKeyword(ctx, other.ID); !errors.Is(err, ErrKeywordNotFound) {
			t.Errorf("expected ErrKeywordNotFound on second delete, got %v", err)
		}
	})
}

// TestCrawlRuns tests run persistence and the lifecycle guard.
func TestCrawlRuns(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	kw := newTestKeyword("acme")
	if err := db.CreateKeyword(ctx, kw); err != nil {
		t.Fatalf("CreateKeyword error: %v", err)
	}

	started := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	run := model.NewCrawlRun(kw.ID, started)
	run.Query = kw.Query
	if err := db.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun error: %v", err)
	}

	entries := []model.ScoredEntry{
		{ResultEntry: model.ResultEntry{Page: 1, Rank: 1, Title: "Acme", DisplayURL: "acme.com", LandingURL: "https://acme.com/"},
			MatchResult: model.MatchResult{IsMatch: true, Reason: "matched name 'acme'"}},
		{ResultEntry: model.ResultEntry{Page: 1, Rank: 2, Title: "Other", DisplayURL: "other.example", LandingURL: "http://other.example/"}},
	}
	if err := db.AppendEntries(ctx, run.ID, entries); err != nil {
		t.Fatalf("AppendEntries error: %v", err)
	}

	notAfter := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	checks := []model.HTTPSCheck{
		{URL: "https://acme.com/", Protocol: "https", StatusCode: intPtr(200), SSLValid: boolPtr(true),
			CheckedAt: started.Add(time.Minute), TLSVersion: "TLS 1.3", CertIssuer: "Test CA", CertNotAfter: &notAfter},
		{URL: "http://acme.com/old", Protocol: "http", SSLValid: boolPtr(false), SSLError: model.NonHTTPSError,
			CheckedAt: started.Add(2 * time.Minute)},
	}
	if err := db.AppendChecks(ctx, run.ID, checks[:1]); err != nil {
		t.Fatalf("AppendChecks error: %v", err)
	}
	if err := db.AppendChecks(ctx, run.ID, checks[1:]); err != nil {
		t.Fatalf("AppendChecks error: %v", err)
	}

	issues := model.CollectHTTPSIssues(checks)
	if err := run.Succeed(model.FlagPurple, issues, started.Add(3*time.Minute)); err != nil {
		t.Fatalf("Succeed error: %v", err)
	}
	if err := db.MarkRunSuccess(ctx, run); err != nil {
		t.Fatalf("MarkRunSuccess error: %v", err)
	}

	t.Run("get returns entries and checks in order", func(t *testing.T) {
		got, err := db.GetRun(ctx, run.ID)
		if err != nil {
			t.Fatalf("GetRun error: %v", err)
		}
		if got.Status != model.RunSuccess || got.Flag != model.FlagPurple {
			t.Errorf("unexpected run %+v", got)
		}
		if got.CompletedAt == nil || !got.CompletedAt.Equal(started.Add(3*time.Minute)) {
			t.Errorf("unexpected CompletedAt %v", got.CompletedAt)
		}
		if got.HTTPSIssues["http://acme.com/old"] != model.NonHTTPSError || len(got.HTTPSIssues) != 1 {
			t.Errorf("unexpected issues %v", got.HTTPSIssues)
		}
		if len(got.Entries) != 2 || !got.Entries[0].IsMatch || got.Entries[1].IsMatch {
			t.Errorf("unexpected entries %+v", got.Entries)
		}
		if got.Entries[0].Reason != "matched name 'acme'" {
			t.Errorf("unexpected reason %q", got.Entries[0].Reason)
		}
		if len(got.Checks) != 2 {
			t.Fatalf("expected 2 checks, got %d", len(got.Checks))
		}
		first := got.Checks[0]
		if first.URL != "https://acme.com/" || !first.Valid() || *first.StatusCode != 200 {
			t.Errorf("unexpected first check %+v", first)
		}
		if first.CertNotAfter == nil || !first.CertNotAfter.Equal(notAfter) {
			t.Errorf("unexpected CertNotAfter %v", first.CertNotAfter)
		}
		second := got.Checks[1]
		if !second.Invalid() || second.StatusCode != nil || second.SSLError != model.NonHTTPSError {
			t.Errorf("unexpected second check %+v", second)
		}
	})

	t.Run("second finalization is rejected", func(t *testing.T) {
		clone := *run
		clone.Status = model.RunFailure
		clone.Notes = "late failure"
		if err := db.MarkRunFailure(ctx, &clone); !errors.Is(err, model.ErrRunFinalized) {
			t.Errorf("expected ErrRunFinalized, got %v", err)
		}
	})

	t.Run("finalizing an unknown run", func(t *testing.T) {
		ghost := model.NewCrawlRun(kw.ID, started)
		_ = ghost.Fail("boom", started)
		if err := db.MarkRunFailure(ctx, ghost); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("pending run cannot be marked", func(t *testing.T) {
		pending := model.NewCrawlRun(kw.ID, started)
		if err := db.MarkRunSuccess(ctx, pending); err == nil {
			t.Error("expected error for non-finalized run")
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		if _, err := db.GetRun(ctx, uuid.New()); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})
}

// TestRunHistory tests recent and latest successful run lookups.
func TestRunHistory(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	kw := newTestKeyword("history")
	if err := db.CreateKeyword(ctx, kw); err != nil {
		t.Fatalf("CreateKeyword error: %v", err)
	}

	if _, err := db.LatestSuccessfulRun(ctx, kw.ID); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound before any run, got %v", err)
	}

	base := time.Date(2026, 4, 1, 3, 0, 0, 0, time.UTC)
	outcomes := []model.RunStatus{model.RunSuccess, model.RunSuccess, model.RunFailure}
	ids := make([]uuid.UUID, 0, len(outcomes))
	for i, outcome := range outcomes {
		started := base.Add(time.Duration(i) * 24 * time.Hour)
		run := model.NewCrawlRun(kw.ID, started)
		if err := db.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun error: %v", err)
		}
		if outcome == model.RunSuccess {
			_ = run.Succeed(model.FlagGreen, nil, started.Add(time.Minute))
			if err := db.MarkRunSuccess(ctx, run); err != nil {
				t.Fatalf("MarkRunSuccess error: %v", err)
			}
		} else {
			_ = run.Fail("fetch failed", started.Add(time.Minute))
			if err := db.MarkRunFailure(ctx, run); err != nil {
				t.Fatalf("MarkRunFailure error: %v", err)
			}
		}
		ids = append(ids, run.ID)
	}

	recent, err := db.RecentRuns(ctx, kw.ID, 2)
	if err != nil {
		t.Fatalf("RecentRuns error: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != ids[2] || recent[1].ID != ids[1] {
		t.Errorf("unexpected recent runs order")
	}
	if recent[0].Status != model.RunFailure || recent[0].Notes != "fetch failed" {
		t.Errorf("unexpected failed run %+v", recent[0])
	}
	if recent[1].HTTPSIssues != nil {
		t.Errorf("expected nil issues for green run, got %v", recent[1].HTTPSIssues)
	}

	latest, err := db.LatestSuccessfulRun(ctx, kw.ID)
	if err != nil {
		t.Fatalf("LatestSuccessfulRun error: %v", err)
	}
	if latest.ID != ids[1] || latest.Flag != model.FlagGreen {
		t.Errorf("unexpected latest run %+v", latest)
	}
}

// TestParseTimestamp tests timestamp parsing with various formats.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantZero bool
	}{
		{name: "storage format", input: "2026-01-15T10:30:00.123456789Z", wantZero: false},
		{name: "SQLite default format", input: "2026-01-15 10:30:00", wantZero: false},
		{name: "RFC3339 with offset", input: "2026-01-15T10:30:00+09:00", wantZero: false},
		{name: "invalid format", input: "not a timestamp", wantZero: true},
		{name: "empty string", input: "", wantZero: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := parseTimestamp(tt.input); got.IsZero() != tt.wantZero {
				t.Errorf("parseTimestamp(%q) zero = %v, want %v", tt.input, got.IsZero(), tt.wantZero)
			}
		})
	}

	t.Run("storage format round-trips", func(t *testing.T) {
		t.Parallel()

		ts := time.Date(2026, 5, 6, 7, 8, 9, 1000, time.FixedZone("KST", 9*3600))
		if got := parseTimestamp(formatTime(ts)); !got.Equal(ts) {
			t.Errorf("round trip mismatch: %v != %v", got, ts)
		}
	})
}
