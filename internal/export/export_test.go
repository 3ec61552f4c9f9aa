package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/nao1215/serpscan/internal/database"
	"github.com/nao1215/serpscan/internal/model"
)

type fakeSource struct {
	keywords []*model.Keyword
	latest   map[uuid.UUID]*model.CrawlRun
	runErr   error
}

func (f fakeSource) ListKeywords(_ context.Context) ([]*model.Keyword, error) {
	return f.keywords, nil
}

func (f fakeSource) LatestSuccessfulRun(_ context.Context, id uuid.UUID) (*model.CrawlRun, error) {
	if f.runErr != nil {
		return nil, f.runErr
	}
	if run, ok := f.latest[id]; ok {
		return run, nil
	}
	return nil, database.ErrRunNotFound
}

func succeededRun(kw *model.Keyword, flag model.Flag, issues map[string]string) *model.CrawlRun {
	started := time.Date(2024, 1, 1, 11, 59, 0, 0, time.UTC)
	run := model.NewCrawlRun(kw.ID, started)
	_ = run.Succeed(flag, issues, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	return run
}

// TestHeaders tests the column order.
func TestHeaders(t *testing.T) {
	t.Parallel()

	want := []string{"keyword", "category", "status", "latest_flag", "latest_run_completed_at", "https_issues"}
	got := Headers()
	if len(got) != len(want) {
		t.Fatalf("expected %d headers, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("header %d = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestBuildRow tests row rendering.
func TestBuildRow(t *testing.T) {
	t.Parallel()

	t.Run("missing values are empty", func(t *testing.T) {
		t.Parallel()

		kw := model.NewKeyword("테스트")
		kw.Status = model.KeywordPending

		got := BuildRow(kw, nil)
		want := []string{"테스트", "", "pending", "", "", ""}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("column %d = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("run details", func(t *testing.T) {
		t.Parallel()

		kw := model.NewKeyword("sample")
		kw.Category = "커머스"
		run := succeededRun(kw, model.FlagPurple, map[string]string{
			"https://b.example/": "HTTP 404 Not Found",
			"http://가게.kr/?a=1&b=2": model.NonHTTPSError,
		})

		got := BuildRow(kw, run)
		if got[1] != "커머스" || got[2] != "active" || got[3] != "purple" {
			t.Errorf("unexpected row %q", got)
		}
		if got[4] != "2024-01-01T12:00:00Z" {
			t.Errorf("completed_at = %q", got[4])
		}
		want := `{"http://가게.kr/?a=1&b=2":"Non-HTTPS URL","https://b.example/":"HTTP 404 Not Found"}`
		if got[5] != want {
			t.Errorf("issues = %q, want %q", got[5], want)
		}
	})

	t.Run("completion time is written in UTC", func(t *testing.T) {
		t.Parallel()

		kw := model.NewKeyword("sample")
		run := succeededRun(kw, model.FlagGreen, nil)
		seoul := time.FixedZone("KST", 9*60*60)
		local := run.CompletedAt.In(seoul)
		run.CompletedAt = &local

		if got := BuildRow(kw, run)[4]; got != "2024-01-01T12:00:00Z" {
			t.Errorf("completed_at = %q, want UTC", got)
		}
	})

	t.Run("run without issues", func(t *testing.T) {
		t.Parallel()

		kw := model.NewKeyword("sample")
		got := BuildRow(kw, succeededRun(kw, model.FlagGreen, nil))
		if got[3] != "green" || got[5] != "" {
			t.Errorf("unexpected row %q", got)
		}
	})
}

// TestParseFormat tests format parsing.
func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatCSV},
		{in: "csv", want: FormatCSV},
		{in: " XLSX ", want: FormatXLSX},
		{in: "pdf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownFormat) {
					t.Errorf("expected ErrUnknownFormat, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
}

// TestRowsAndWriters tests loading rows from a store and writing both formats.
func TestRowsAndWriters(t *testing.T) {
	t.Parallel()

	tracked := model.NewKeyword("acme")
	fresh := model.NewKeyword("테스트")
	src := fakeSource{
		keywords: []*model.Keyword{tracked, fresh},
		latest:   map[uuid.UUID]*model.CrawlRun{tracked.ID: succeededRun(tracked, model.FlagYellow, nil)},
	}

	rows, err := Rows(context.Background(), src)
	if err != nil {
		t.Fatalf("Rows error: %v", err)
	}
	if len(rows) != 2 || rows[0][3] != "yellow" || rows[1][3] != "" {
		t.Fatalf("unexpected rows %q", rows)
	}

	t.Run("csv", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if err := Write(&buf, FormatCSV, rows); err != nil {
			t.Fatalf("Write error: %v", err)
		}

		records, err := csv.NewReader(&buf).ReadAll()
		if err != nil {
			t.Fatalf("csv read error: %v", err)
		}
		if len(records) != 3 || records[0][0] != "keyword" || records[2][0] != "테스트" {
			t.Errorf("unexpected records %q", records)
		}
	})

	t.Run("xlsx", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if err := Write(&buf, FormatXLSX, rows); err != nil {
			t.Fatalf("Write error: %v", err)
		}

		f, err := excelize.OpenReader(&buf)
		if err != nil {
			t.Fatalf("OpenReader error: %v", err)
		}
		defer func() { _ = f.Close() }()

		got, err := f.GetRows(SheetName)
		if err != nil {
			t.Fatalf("GetRows error: %v", err)
		}
		if len(got) != 3 || got[0][5] != "https_issues" || got[1][3] != "yellow" {
			t.Errorf("unexpected sheet rows %q", got)
		}
	})

	t.Run("store error", func(t *testing.T) {
		t.Parallel()

		failing := src
		failing.runErr = errors.New("db down")
		if _, err := Rows(context.Background(), failing); err == nil {
			t.Error("expected error")
		}
	})
}
