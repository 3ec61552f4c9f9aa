package crawler

import (
	"log/slog"

	"github.com/nao1215/serpscan/internal/model"
)

// Strategy extracts result entries from one SERP document.
//
// Parse returns ok=false when the document does not have the shape the
// strategy understands, so that the next strategy is tried. A strategy that
// recognizes the document returns ok=true even if it found zero entries.
// Entries are returned with Page set and dense ranks starting at 1.
type Strategy interface {
	// Name identifies the strategy in logs, metrics and SerpPage.Strategy.
	Name() string

	// Parse extracts entries from body for the given page number.
	Parse(body []byte, page int) (entries []model.ResultEntry, ok bool)
}

// Parser converts raw SERP bodies into SerpPages by trying a fixed,
// ordered list of strategies.
//
// Design decision: Provider markup changes without notice, so the parser
// never returns an error. A document that no strategy recognizes becomes a
// page with zero entries, and the caller decides whether that deserves a
// warning or a dump.
type Parser struct {
	// strategies are tried in order; the first one that recognizes the
	// document wins.
	strategies []Strategy

	// logger for structured logging.
	logger *slog.Logger
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithStrategies replaces the default strategy list.
func WithStrategies(strategies ...Strategy) ParserOption {
	return func(p *Parser) {
		p.strategies = strategies
	}
}

// WithParserLogger sets a custom logger.
func WithParserLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) {
		p.logger = logger
	}
}

// NewParser creates a Parser that tries the embedded payload first and the
// DOM selectors second.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		strategies: []Strategy{NewPayloadStrategy(), NewDOMStrategy()},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// ParsePage parses one page body.
func (p *Parser) ParsePage(body []byte, query string, page int) model.SerpPage {
	result := model.SerpPage{
		Query:      query,
		PageNumber: page,
		Entries:    make([]model.ResultEntry, 0),
	}

	for _, s := range p.strategies {
		entries, ok := s.Parse(body, page)
		if !ok {
			p.logger.Debug("strategy did not recognize page",
				"strategy", s.Name(),
				"page", page,
			)
			continue
		}
		result.Strategy = s.Name()
		result.Entries = append(result.Entries, entries...)
		break
	}

	return result
}

// StrategyNames returns the names of the configured strategies in order.
func (p *Parser) StrategyNames() []string {
	names := make([]string, len(p.strategies))
	for i, s := range p.strategies {
		names[i] = s.Name()
	}
	return names
}
