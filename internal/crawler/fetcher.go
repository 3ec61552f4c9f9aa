package crawler

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/crypto/sha3"
	"golang.org/x/net/html/charset"
)

// resultsPerPage is the provider's fixed page size used for offset math.
const resultsPerPage = 10

// defaultMaxBodySize is the body limit used when none is configured.
const defaultMaxBodySize = 5 * 1024 * 1024 // 5MB

// FetchError reports a failed SERP page request.
// Either StatusCode is set (non-2xx response) or Err is (transport failure).
type FetchError struct {
	// URL is the request URL.
	URL string

	// StatusCode is the unexpected HTTP status, zero for transport errors.
	StatusCode int

	// Err is the underlying transport error, nil for status errors.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// RawPage is one fetched SERP page before parsing.
type RawPage struct {
	// Number is the 1-based page index.
	Number int

	// URL is the request URL.
	URL string

	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Body is the response body decoded to UTF-8.
	Body []byte

	// Digest is the hex SHA3-256 of Body, used to name dumps and to spot
	// identical pages in logs.
	Digest string

	// Truncated reports that the body exceeded the size limit and was cut.
	Truncated bool

	// Elapsed is the request duration.
	Elapsed time.Duration
}

// Fetcher requests SERP pages from the search provider.
//
// Design decision: The Fetcher does not retry. A failed page fails the whole
// run, and whether to try again is decided by whoever triggered the run.
type Fetcher struct {
	// client is the HTTP client used for requests.
	client *http.Client

	// baseURL is the search endpoint.
	baseURL string

	// userAgent is the User-Agent header to use.
	userAgent string

	// timeout bounds each request.
	timeout time.Duration

	// maxBodySize limits the size of response bodies to read.
	maxBodySize int64
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithBaseURL sets the search endpoint.
func WithBaseURL(u string) FetcherOption {
	return func(f *Fetcher) {
		f.baseURL = u
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithFetchTimeout sets the per-request timeout.
func WithFetchTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithMaxBodySize sets the maximum response body size.
// Non-positive sizes keep the default.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// NewFetcher creates a Fetcher. A nil client means http.DefaultClient.
func NewFetcher(client *http.Client, opts ...FetcherOption) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &Fetcher{
		client:      client,
		baseURL:     "https://search.naver.com/search.naver",
		userAgent:   "Mozilla/5.0 (compatible; serpscan/1.0)",
		timeout:     10 * time.Second,
		maxBodySize: defaultMaxBodySize,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// PageOffset returns the 1-based result offset of a page.
// Page 1 starts at 1, page N at (N-1)*10 + 1.
func PageOffset(page int) int {
	if page <= 1 {
		return 1
	}
	return (page-1)*resultsPerPage + 1
}

// SearchURL builds the request URL for one page of a query.
func (f *Fetcher) SearchURL(query string, page int) string {
	params := url.Values{}
	params.Set("where", "web")
	params.Set("sm", "tab_pge")
	params.Set("query", query)
	params.Set("start", strconv.Itoa(PageOffset(page)))
	params.Set("page", strconv.Itoa(page))
	return f.baseURL + "?" + params.Encode()
}

// FetchPage requests one SERP page.
// Any failure is returned as a *FetchError.
func (f *Fetcher) FetchPage(ctx context.Context, query string, page int) (*RawPage, error) {
	pageURL := f.SearchURL(query, page)

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	// Read one byte past the limit to tell a truncated body from one that
	// fits exactly
	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: fmt.Errorf("read body: %w", err)}
	}
	truncated := int64(len(raw)) > f.maxBodySize
	if truncated {
		raw = raw[:f.maxBodySize]
	}

	body, err := decodeBody(raw, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: fmt.Errorf("decode body: %w", err)}
	}

	return &RawPage{
		Number:     page,
		URL:        pageURL,
		StatusCode: resp.StatusCode,
		Body:       body,
		Digest:     Digest(body),
		Truncated:  truncated,
		Elapsed:    time.Since(start),
	}, nil
}

// decodeBody converts raw to UTF-8 according to the declared or sniffed
// charset. An empty body decodes to an empty page.
func decodeBody(raw []byte, contentType string) ([]byte, error) {
	if len(raw) == 0 {
		return []byte{}, nil
	}
	reader, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []byte{}, nil
		}
		return nil, err
	}
	return io.ReadAll(reader)
}

// Digest returns the hex SHA3-256 of data.
func Digest(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
