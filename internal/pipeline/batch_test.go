package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nao1215/serpscan/internal/model"
)

type fakeCrawler struct {
	calls  []string
	failOn map[string]bool
	onCall func()
}

func (f *fakeCrawler) Crawl(_ context.Context, kw *model.Keyword) (*model.CrawlRun, error) {
	f.calls = append(f.calls, kw.Query)
	if f.onCall != nil {
		f.onCall()
	}
	run := model.NewCrawlRun(kw.ID, time.Now())
	if f.failOn[kw.Query] {
		_ = run.Fail("fetch: boom", time.Now())
		return run, &RunError{Kind: KindFetch, Err: errors.New("boom")}
	}
	_ = run.Succeed(model.FlagGreen, nil, time.Now())
	return run, nil
}

type staticSource struct {
	keywords []*model.Keyword
	err      error
}

func (s staticSource) ListActiveKeywords(_ context.Context) ([]*model.Keyword, error) {
	return s.keywords, s.err
}

func keywords(queries ...string) []*model.Keyword {
	out := make([]*model.Keyword, 0, len(queries))
	for _, q := range queries {
		out = append(out, model.NewKeyword(q))
	}
	return out
}

// TestSweeperSweep tests sequential keyword sweeps.
func TestSweeperSweep(t *testing.T) {
	t.Parallel()

	t.Run("continues after a failed keyword", func(t *testing.T) {
		t.Parallel()

		c := &fakeCrawler{failOn: map[string]bool{"b": true}}
		var seen []string
		s := NewSweeper(c, staticSource{keywords: keywords("a", "b", "c")},
			WithSweepCallback(func(kw *model.Keyword, run *model.CrawlRun, err error) {
				seen = append(seen, kw.Query+":"+string(run.Status))
			}),
		)

		summary, err := s.Sweep(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if summary.Total != 3 || summary.Succeeded != 2 || summary.Failed != 1 {
			t.Errorf("unexpected summary %+v", summary)
		}
		if len(c.calls) != 3 || c.calls[2] != "c" {
			t.Errorf("expected all keywords in order, got %v", c.calls)
		}
		want := []string{"a:success", "b:failure", "c:success"}
		for i := range want {
			if seen[i] != want[i] {
				t.Errorf("callback %d = %q, want %q", i, seen[i], want[i])
			}
		}
	})

	t.Run("list error", func(t *testing.T) {
		t.Parallel()

		listErr := errors.New("db down")
		s := NewSweeper(&fakeCrawler{}, staticSource{err: listErr})

		if _, err := s.Sweep(context.Background()); !errors.Is(err, listErr) {
			t.Errorf("expected list error, got %v", err)
		}
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		c := &fakeCrawler{onCall: cancel}
		s := NewSweeper(c, staticSource{keywords: keywords("a", "b")})

		summary, err := s.Sweep(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if summary.Total != 1 || len(c.calls) != 1 {
			t.Errorf("expected one attempted keyword, got %+v", summary)
		}
	})

	t.Run("spaces keywords by delay", func(t *testing.T) {
		t.Parallel()

		var stamps []time.Time
		c := &fakeCrawler{onCall: func() { stamps = append(stamps, time.Now()) }}
		delay := 50 * time.Millisecond
		s := NewSweeper(c, staticSource{keywords: keywords("a", "b")}, WithKeywordDelay(delay))

		if _, err := s.Sweep(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gap := stamps[1].Sub(stamps[0]); gap < delay-10*time.Millisecond {
			t.Errorf("expected gap of at least %v, got %v", delay, gap)
		}
	})
}
