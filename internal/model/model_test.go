package model

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func scored(url string, match bool) ScoredEntry {
	return ScoredEntry{
		ResultEntry: ResultEntry{LandingURL: url},
		MatchResult: MatchResult{IsMatch: match},
	}
}

func validCheck(url string) HTTPSCheck {
	c := HTTPSCheck{URL: url, Protocol: "https"}
	c.MarkValid(200)
	return c
}

func invalidCheck(url, reason string) HTTPSCheck {
	c := HTTPSCheck{URL: url, Protocol: "https"}
	c.MarkInvalid(reason)
	return c
}

// TestDetermineFlag verifies the green/yellow/purple derivation rules.
func TestDetermineFlag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entries []ScoredEntry
		checks  []HTTPSCheck
		want    Flag
	}{
		{
			name:    "no entries is green",
			entries: nil,
			want:    FlagGreen,
		},
		{
			name:    "entries without match is green",
			entries: []ScoredEntry{scored("https://a.example", false)},
			want:    FlagGreen,
		},
		{
			name:    "no match ignores failing checks",
			entries: []ScoredEntry{scored("https://a.example", false)},
			checks:  []HTTPSCheck{invalidCheck("https://a.example", "boom")},
			want:    FlagGreen,
		},
		{
			name:    "match with all checks valid is yellow",
			entries: []ScoredEntry{scored("https://a.example", true)},
			checks:  []HTTPSCheck{validCheck("https://a.example")},
			want:    FlagYellow,
		},
		{
			name:    "match with one invalid check is purple",
			entries: []ScoredEntry{scored("https://a.example", true), scored("http://b.example", true)},
			checks:  []HTTPSCheck{validCheck("https://a.example"), invalidCheck("http://b.example", NonHTTPSError)},
			want:    FlagPurple,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := DetermineFlag(tt.entries, tt.checks); got != tt.want {
				t.Errorf("DetermineFlag() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestCollectHTTPSIssues verifies that only failing checks with an error are collected.
func TestCollectHTTPSIssues(t *testing.T) {
	t.Parallel()

	t.Run("returns nil when all checks pass", func(t *testing.T) {
		t.Parallel()
		issues := CollectHTTPSIssues([]HTTPSCheck{validCheck("https://a.example")})
		if issues != nil {
			t.Errorf("expected nil issues, got %v", issues)
		}
	})

	t.Run("skips invalid checks without error text", func(t *testing.T) {
		t.Parallel()
		issues := CollectHTTPSIssues([]HTTPSCheck{invalidCheck("https://a.example", "")})
		if issues != nil {
			t.Errorf("expected nil issues, got %v", issues)
		}
	})

	t.Run("maps failing URL to error", func(t *testing.T) {
		t.Parallel()
		issues := CollectHTTPSIssues([]HTTPSCheck{
			validCheck("https://a.example"),
			invalidCheck("http://b.example", NonHTTPSError),
		})
		if len(issues) != 1 {
			t.Fatalf("expected 1 issue, got %d", len(issues))
		}
		if issues["http://b.example"] != NonHTTPSError {
			t.Errorf("unexpected issue text %q", issues["http://b.example"])
		}
	})
}

// TestMatchedURLs verifies deduplication in first-seen order.
func TestMatchedURLs(t *testing.T) {
	t.Parallel()

	entries := []ScoredEntry{
		scored("https://b.example", true),
		scored("https://a.example", true),
		scored("https://c.example", false),
		scored("https://b.example", true),
	}

	got := MatchedURLs(entries)
	want := []string{"https://b.example", "https://a.example"}
	if len(got) != len(want) {
		t.Fatalf("expected %d URLs, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

// TestCrawlRunLifecycle verifies the single terminal transition.
func TestCrawlRunLifecycle(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)

	t.Run("new run is pending", func(t *testing.T) {
		t.Parallel()
		run := NewCrawlRun(uuid.New(), start)
		if run.Status != RunPending {
			t.Errorf("expected pending, got %q", run.Status)
		}
		if run.IsTerminal() {
			t.Error("pending run must not be terminal")
		}
		if run.CompletedAt != nil {
			t.Error("pending run must not have CompletedAt")
		}
	})

	t.Run("succeed sets flag and completion", func(t *testing.T) {
		t.Parallel()
		run := NewCrawlRun(uuid.New(), start)
		end := start.Add(5 * time.Second)
		if err := run.Succeed(FlagYellow, map[string]string{}, end); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if run.Status != RunSuccess || run.Flag != FlagYellow {
			t.Errorf("unexpected state %q/%q", run.Status, run.Flag)
		}
		if run.HTTPSIssues != nil {
			t.Error("empty issues must be stored as nil")
		}
		if run.Duration() != 5*time.Second {
			t.Errorf("unexpected duration %v", run.Duration())
		}
	})

	t.Run("second transition is rejected", func(t *testing.T) {
		t.Parallel()
		run := NewCrawlRun(uuid.New(), start)
		if err := run.Fail("fetch failed", start.Add(time.Second)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		completed := *run.CompletedAt

		err := run.Succeed(FlagGreen, nil, start.Add(time.Hour))
		if !errors.Is(err, ErrRunFinalized) {
			t.Errorf("expected ErrRunFinalized, got %v", err)
		}
		if !run.CompletedAt.Equal(completed) {
			t.Error("CompletedAt must not change after finalization")
		}
		if run.Status != RunFailure || run.Notes != "fetch failed" {
			t.Errorf("unexpected state %q/%q", run.Status, run.Notes)
		}
	})
}

// TestParseKeywordStatus tests status parsing.
func TestParseKeywordStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    KeywordStatus
		wantErr bool
	}{
		{"active", KeywordActive, false},
		{" Paused ", KeywordPaused, false},
		{"PENDING", KeywordPending, false},
		{"deleted", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseKeywordStatus(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidKeywordStatus) {
					t.Errorf("expected ErrInvalidKeywordStatus, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestKeywordValidate tests keyword validation.
func TestKeywordValidate(t *testing.T) {
	t.Parallel()

	t.Run("new keyword is valid and active", func(t *testing.T) {
		t.Parallel()
		kw := NewKeyword("  acme  ")
		if err := kw.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if kw.Query != "acme" {
			t.Errorf("expected trimmed query, got %q", kw.Query)
		}
		if !kw.IsActive() {
			t.Error("expected new keyword to be active")
		}
	})

	t.Run("empty query is rejected", func(t *testing.T) {
		t.Parallel()
		kw := NewKeyword("   ")
		if err := kw.Validate(); !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("expected ErrEmptyQuery, got %v", err)
		}
	})
}
