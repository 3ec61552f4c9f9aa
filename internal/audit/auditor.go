// Package audit checks how matched landing pages are served.
//
// For every URL the Auditor records the scheme, whether an HTTPS request
// completed with a trusted certificate and a non-error status, and the
// negotiated TLS parameters. Failures never surface as Go errors: they are
// part of the audit result and end up in the run's HTTPS issues.
package audit

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/serpscan/internal/model"
)

const (
	// maxRedirects is the number of redirects followed before giving up.
	maxRedirects = 10

	// drainLimit bounds how much of a response body is read before closing.
	drainLimit = 64 * 1024
)

// errTooManyRedirects is returned by the redirect policy.
var errTooManyRedirects = errors.New("too many redirects")

// Auditor performs live HTTPS checks of landing URLs.
//
// Design decision: The Auditor copies the given http.Client and installs its
// own redirect policy on the copy. Callers can still supply a transport
// (tests pass the httptest TLS client), but the redirect cap and the
// timeout always apply.
type Auditor struct {
	// client performs the requests.
	client *http.Client

	// userAgent is the User-Agent header to use.
	userAgent string

	// timeout bounds one audit including redirects.
	timeout time.Duration

	// now returns the check timestamp.
	now func() time.Time

	// logger for structured logging.
	logger *slog.Logger
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithHTTPClient sets the HTTP client whose transport is used.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Auditor) {
		if client != nil {
			a.client = client
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(a *Auditor) {
		a.userAgent = ua
	}
}

// WithTimeout sets the per-audit timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Auditor) {
		a.timeout = d
	}
}

// WithClock sets the function used to timestamp checks.
func WithClock(now func() time.Time) Option {
	return func(a *Auditor) {
		a.now = now
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Auditor) {
		a.logger = logger
	}
}

// NewAuditor creates an Auditor with a 15 second timeout.
func NewAuditor(opts ...Option) *Auditor {
	a := &Auditor{
		client:    &http.Client{},
		userAgent: "Mozilla/5.0 (compatible; serpscan/1.0)",
		timeout:   15 * time.Second,
		now:       time.Now,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(a)
	}

	client := *a.client
	client.Timeout = a.timeout
	client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return errTooManyRedirects
		}
		return nil
	}
	a.client = &client

	return a
}

// Audit checks one landing URL.
//
// A URL whose scheme is not https is reported as invalid without any
// network access. Transport and certificate errors, as well as final
// statuses of 400 and above, produce an invalid check; the status code is
// recorded whenever a response arrived.
func (a *Auditor) Audit(ctx context.Context, rawURL string) model.HTTPSCheck {
	check := model.HTTPSCheck{
		URL:      rawURL,
		Protocol: Protocol(rawURL),
	}

	if check.Protocol != "https" {
		check.MarkInvalid(model.NonHTTPSError)
		check.CheckedAt = a.now()
		return check
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		check.MarkInvalid(err.Error())
		check.CheckedAt = a.now()
		return check
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Debug("https audit failed", "url", rawURL, "error", err)
		check.MarkInvalid(err.Error())
		check.CheckedAt = a.now()
		return check
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))

	if resp.TLS != nil {
		extractTLSInfo(&check, resp.TLS)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		check.MarkInvalid(fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
		check.SetStatusCode(resp.StatusCode)
	} else {
		check.MarkValid(resp.StatusCode)
	}

	check.CheckedAt = a.now()
	return check
}

// Protocol returns the lower-cased scheme of rawURL, or "http" when it has
// none or cannot be parsed.
func Protocol(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" {
		return "http"
	}
	return strings.ToLower(u.Scheme)
}

// extractTLSInfo records the negotiated version and leaf certificate details.
func extractTLSInfo(check *model.HTTPSCheck, state *tls.ConnectionState) {
	switch state.Version {
	case tls.VersionTLS10:
		check.TLSVersion = "TLS 1.0"
	case tls.VersionTLS11:
		check.TLSVersion = "TLS 1.1"
	case tls.VersionTLS12:
		check.TLSVersion = "TLS 1.2"
	case tls.VersionTLS13:
		check.TLSVersion = "TLS 1.3"
	default:
		check.TLSVersion = "Unknown"
	}

	if len(state.PeerCertificates) == 0 {
		return
	}
	cert := state.PeerCertificates[0]
	check.CertIssuer = cert.Issuer.CommonName
	if check.CertIssuer == "" {
		check.CertIssuer = cert.Issuer.String()
	}
	notAfter := cert.NotAfter.UTC()
	check.CertNotAfter = &notAfter
}
