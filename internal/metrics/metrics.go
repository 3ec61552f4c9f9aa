// Package metrics exposes crawl pipeline measurements to Prometheus.
//
// A Recorder owns the counters and the fetch histogram. All its methods are
// safe on a nil *Recorder, so components can take one unconditionally and
// the CLI simply passes nil when no metrics endpoint is served.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nao1215/serpscan/internal/model"
)

const namespace = "serpscan"

// Recorder records pipeline events.
type Recorder struct {
	runs   *prometheus.CounterVec
	checks *prometheus.CounterVec
	parsed *prometheus.CounterVec
	fetch  *prometheus.HistogramVec
}

// NewRecorder creates a Recorder and registers its collectors on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawl_runs_total",
			Help:      "Finalized crawl runs by status and flag.",
		}, []string{"status", "flag"}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "https_checks_total",
			Help:      "HTTPS audits of matched landing pages by verdict.",
		}, []string{"valid"}),
		parsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parsed_entries_total",
			Help:      "Result entries parsed from SERP pages by strategy.",
		}, []string{"strategy"}),
		fetch: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "SERP page request duration by outcome.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{r.runs, r.checks, r.parsed, r.fetch} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// ObserveFetch records one SERP page request.
func (r *Recorder) ObserveFetch(elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.fetch.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveParse records the entries one strategy produced for a page.
// Pages no strategy recognized are counted under "none".
func (r *Recorder) ObserveParse(strategy string, entries int) {
	if r == nil {
		return
	}
	if strategy == "" {
		strategy = "none"
	}
	r.parsed.WithLabelValues(strategy).Add(float64(entries))
}

// ObserveCheck records one HTTPS audit.
func (r *Recorder) ObserveCheck(check model.HTTPSCheck) {
	if r == nil {
		return
	}
	r.checks.WithLabelValues(strconv.FormatBool(check.Valid())).Inc()
}

// ObserveRun records a finalized run. Failed runs have an empty flag.
func (r *Recorder) ObserveRun(run *model.CrawlRun) {
	if r == nil || run == nil {
		return
	}
	r.runs.WithLabelValues(string(run.Status), string(run.Flag)).Inc()
}

// KeywordLister is the part of the keyword registry the collector reads.
type KeywordLister interface {
	ListKeywords(ctx context.Context) ([]*model.Keyword, error)
}

var keywordsDesc = prometheus.NewDesc(
	namespace+"_keywords",
	"Tracked keywords by status",
	[]string{"status"},
	nil,
)

// KeywordCollector is a custom Prometheus collector that reads keyword
// counts from the registry on each scrape.
type KeywordCollector struct {
	keywords KeywordLister
	timeout  time.Duration
}

// NewKeywordCollector creates a KeywordCollector.
func NewKeywordCollector(keywords KeywordLister) *KeywordCollector {
	return &KeywordCollector{keywords: keywords, timeout: 5 * time.Second}
}

// Describe sends the metric descriptor to the channel.
func (c *KeywordCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- keywordsDesc
}

// Collect queries the registry and emits one gauge per status.
func (c *KeywordCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	keywords, err := c.keywords.ListKeywords(ctx)
	if err != nil {
		slog.Error("failed to collect keyword metrics", "error", err)
		return
	}

	counts := map[model.KeywordStatus]int{
		model.KeywordActive:  0,
		model.KeywordPaused:  0,
		model.KeywordPending: 0,
	}
	for _, kw := range keywords {
		counts[kw.Status]++
	}
	for status, n := range counts {
		ch <- prometheus.MustNewConstMetric(keywordsDesc, prometheus.GaugeValue, float64(n), string(status))
	}
}

// Register creates a Recorder on reg and, when keywords is non-nil, adds a
// KeywordCollector. An already registered collector is an error.
func Register(reg prometheus.Registerer, keywords KeywordLister) (*Recorder, error) {
	r, err := NewRecorder(reg)
	if err != nil {
		return nil, err
	}
	if keywords != nil {
		if err := reg.Register(NewKeywordCollector(keywords)); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				return nil, errors.New("keyword collector already registered")
			}
			return nil, err
		}
	}
	return r, nil
}
