// Package scheduler triggers a sweep over all active keywords once a day.
//
// The Scheduler has explicit state: Start launches the background loop and
// Stop ends it and waits for a sweep in progress to notice cancellation.
// Both are idempotent. The sweep itself is injected, so the scheduler knows
// nothing about crawling.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/serpscan/internal/pipeline"
)

// ErrInvalidTimeOfDay is returned for a schedule time that is not "HH:MM".
var ErrInvalidTimeOfDay = errors.New("invalid time of day, want HH:MM")

// Sweeper runs one pass over the active keywords. *pipeline.Sweeper
// implements it.
type Sweeper interface {
	Sweep(ctx context.Context) (pipeline.SweepSummary, error)
}

// Scheduler runs the injected Sweeper daily at a fixed wall-clock time.
type Scheduler struct {
	sweeper Sweeper
	hour    int
	minute  int

	now    func() time.Time
	after  func(d time.Duration) <-chan time.Time
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source. The location of the returned times
// decides the time zone of the daily schedule.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithAfter replaces time.After, for tests that do not want to wait a day.
func WithAfter(after func(d time.Duration) <-chan time.Time) Option {
	return func(s *Scheduler) {
		s.after = after
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// New creates a Scheduler that sweeps daily at "HH:MM" local time.
func New(sweeper Sweeper, at string, opts ...Option) (*Scheduler, error) {
	hour, minute, err := ParseTimeOfDay(at)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		sweeper: sweeper,
		hour:    hour,
		minute:  minute,
		now:     time.Now,
		after:   time.After,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// ParseTimeOfDay parses a 24h "HH:MM" string.
func ParseTimeOfDay(at string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(at), ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, at)
	}

	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, at)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, at)
	}

	return hour, minute, nil
}

// Next returns the first scheduled time strictly after from, in from's location.
func (s *Scheduler) Next(from time.Time) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), s.hour, s.minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start launches the background loop. Calling Start on a running
// Scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)
}

// Stop ends the background loop and waits for it to exit.
// Calling Stop on a stopped Scheduler does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the background loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Run blocks running the schedule until ctx is done.
// It is the errgroup-friendly form of Start and Stop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start(ctx)
	<-ctx.Done()
	s.Stop()
	return nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.logger.Info("scheduler started", "at", fmt.Sprintf("%02d:%02d", s.hour, s.minute))

	for {
		now := s.now()
		next := s.Next(now)
		s.logger.Debug("next sweep scheduled", "at", next)

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-s.after(next.Sub(now)):
		}

		summary, err := s.sweeper.Sweep(ctx)
		if err != nil {
			s.logger.Error("scheduled sweep failed", "error", err)
			continue
		}
		s.logger.Info("scheduled sweep finished",
			"total", summary.Total,
			"succeeded", summary.Succeeded,
			"failed", summary.Failed,
		)
	}
}
