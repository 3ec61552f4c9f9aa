package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/serpscan/internal/pipeline"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
	ran   chan struct{}
}

func (c *countingSweeper) Sweep(_ context.Context) (pipeline.SweepSummary, error) {
	c.calls.Add(1)
	if c.ran != nil {
		select {
		case c.ran <- struct{}{}:
		default:
		}
	}
	return pipeline.SweepSummary{Total: 1, Succeeded: 1}, c.err
}

// immediate fires every timer at once.
func immediate(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

// never blocks every timer forever.
func never(time.Duration) <-chan time.Time {
	return nil
}

// TestParseTimeOfDay tests schedule time parsing.
func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in         string
		wantHour   int
		wantMinute int
		wantErr    bool
	}{
		{in: "03:00", wantHour: 3},
		{in: "3:05", wantHour: 3, wantMinute: 5},
		{in: " 23:59 ", wantHour: 23, wantMinute: 59},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "1200", wantErr: true},
		{in: "12:5", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			h, m, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTimeOfDay) {
					t.Errorf("expected ErrInvalidTimeOfDay, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if h != tt.wantHour || m != tt.wantMinute {
				t.Errorf("got %02d:%02d, want %02d:%02d", h, m, tt.wantHour, tt.wantMinute)
			}
		})
	}
}

// TestSchedulerNext tests next-run computation.
func TestSchedulerNext(t *testing.T) {
	t.Parallel()

	s, err := New(&countingSweeper{}, "03:00")
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	loc := time.FixedZone("KST", 9*60*60)
	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{
			name: "before today's slot",
			from: time.Date(2024, 5, 1, 1, 30, 0, 0, loc),
			want: time.Date(2024, 5, 1, 3, 0, 0, 0, loc),
		},
		{
			name: "exactly at the slot moves to tomorrow",
			from: time.Date(2024, 5, 1, 3, 0, 0, 0, loc),
			want: time.Date(2024, 5, 2, 3, 0, 0, 0, loc),
		},
		{
			name: "after today's slot",
			from: time.Date(2024, 12, 31, 18, 0, 0, 0, loc),
			want: time.Date(2025, 1, 1, 3, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := s.Next(tt.from); !got.Equal(tt.want) {
				t.Errorf("Next(%v) = %v, want %v", tt.from, got, tt.want)
			}
		})
	}
}

// TestSchedulerStartStop tests the explicit lifecycle.
func TestSchedulerStartStop(t *testing.T) {
	t.Parallel()

	t.Run("sweeps when the timer fires", func(t *testing.T) {
		t.Parallel()

		sw := &countingSweeper{ran: make(chan struct{}, 1)}
		s, err := New(sw, "03:00", WithAfter(immediate))
		if err != nil {
			t.Fatalf("New error: %v", err)
		}

		s.Start(context.Background())
		select {
		case <-sw.ran:
		case <-time.After(2 * time.Second):
			t.Fatal("sweep did not run")
		}
		s.Stop()

		if s.Running() {
			t.Error("expected scheduler to be stopped")
		}
	})

	t.Run("keeps going after a failed sweep", func(t *testing.T) {
		t.Parallel()

		sw := &countingSweeper{err: errors.New("db down"), ran: make(chan struct{})}
		s, _ := New(sw, "03:00", WithAfter(immediate))

		s.Start(context.Background())
		for range 2 {
			select {
			case <-sw.ran:
			case <-time.After(2 * time.Second):
				t.Fatal("sweep did not repeat")
			}
		}
		s.Stop()
	})

	t.Run("start and stop are idempotent", func(t *testing.T) {
		t.Parallel()

		s, _ := New(&countingSweeper{}, "03:00", WithAfter(never))

		s.Stop()
		s.Start(context.Background())
		s.Start(context.Background())
		if !s.Running() {
			t.Error("expected scheduler to be running")
		}
		s.Stop()
		s.Stop()
		if s.Running() {
			t.Error("expected scheduler to be stopped")
		}
	})

	t.Run("run returns when context ends", func(t *testing.T) {
		t.Parallel()

		sw := &countingSweeper{}
		s, _ := New(sw, "03:00", WithAfter(never))

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- s.Run(ctx) }()

		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return")
		}
		if sw.calls.Load() != 0 {
			t.Errorf("expected no sweeps, got %d", sw.calls.Load())
		}
	})

	t.Run("invalid schedule", func(t *testing.T) {
		t.Parallel()

		if _, err := New(&countingSweeper{}, "25:00"); !errors.Is(err, ErrInvalidTimeOfDay) {
			t.Errorf("expected ErrInvalidTimeOfDay, got %v", err)
		}
	})
}
