package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/serpscan/internal/crawler"
)

// ErrorKind classifies why a crawl run failed.
type ErrorKind string

const (
	// KindFetch means a SERP page could not be fetched.
	KindFetch ErrorKind = "fetch"

	// KindStorage means a store call failed.
	KindStorage ErrorKind = "storage"

	// KindCancelled means the caller's context ended before the run finished.
	KindCancelled ErrorKind = "cancelled"

	// KindInternal covers everything else.
	KindInternal ErrorKind = "internal"
)

// ErrNilKeyword is returned when Crawl is called without a keyword.
var ErrNilKeyword = errors.New("keyword is nil")

// RunError is the error returned by Runner.Crawl.
// Callers pick the HTTP status or exit code from Kind.
type RunError struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *RunError) Unwrap() error {
	return e.Err
}

// storageError wraps a store failure of the named operation.
func storageError(op string, err error) error {
	return &RunError{Kind: KindStorage, Err: fmt.Errorf("%s: %w", op, err)}
}

// classify converts any pipeline error into a *RunError.
// Cancellation of the caller's context wins over every other kind. A fetch
// that hit its own per-request timeout stays a fetch error.
func classify(ctx context.Context, err error) *RunError {
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		var runErr *RunError
		if errors.As(err, &runErr) {
			err = runErr.Err
		}
		return &RunError{Kind: KindCancelled, Err: err}
	}

	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr
	}

	var fetchErr *crawler.FetchError
	if errors.As(err, &fetchErr) {
		return &RunError{Kind: KindFetch, Err: err}
	}

	return &RunError{Kind: KindInternal, Err: err}
}

// KindOf returns the kind of err, or "" when err is not a *RunError.
func KindOf(err error) ErrorKind {
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr.Kind
	}
	return ""
}
