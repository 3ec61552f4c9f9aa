// Package match decides whether a search result belongs to a tracked
// business.
//
// A result matches by name when the keyword's query or one of its target
// names appears in the result title, ignoring case and whitespace. Failing
// that, it matches by domain when a target domain is a substring of the
// display or landing host. Names are checked first, so a result that
// matches both reports the name.
package match

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/serpscan/internal/model"
)

// Targets are the match candidates of one keyword.
type Targets struct {
	// Query is the search text; it is always the first name candidate.
	Query string

	// Names are additional business names.
	Names []string

	// Domains are host fragments such as "acme.com".
	Domains []string
}

// TargetsFor returns the match candidates of a keyword.
func TargetsFor(kw *model.Keyword) Targets {
	return Targets{
		Query:   kw.Query,
		Names:   kw.TargetNames,
		Domains: kw.TargetDomains,
	}
}

// Classifier scores result entries against keyword targets.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct{}

// NewClassifier creates a Classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify scores one entry.
func (c *Classifier) Classify(entry model.ResultEntry, t Targets) model.MatchResult {
	// A Caser is stateful, so each call gets its own.
	caser := cases.Lower(language.Und)

	title := c.normalize(caser, entry.Title)
	candidates := append([]string{t.Query}, t.Names...)
	for _, candidate := range candidates {
		norm := c.normalize(caser, candidate)
		if norm == "" {
			continue
		}
		if strings.Contains(title, norm) {
			return model.MatchResult{
				IsMatch: true,
				Reason:  fmt.Sprintf("matched name '%s'", candidate),
			}
		}
	}

	displayHost := host(entry.DisplayURL)
	landingHost := host(entry.LandingURL)
	for _, domain := range t.Domains {
		d := strings.ToLower(strings.TrimSpace(domain))
		if d == "" {
			continue
		}
		if strings.Contains(displayHost, d) || strings.Contains(landingHost, d) {
			return model.MatchResult{
				IsMatch: true,
				Reason:  fmt.Sprintf("matched domain '%s'", domain),
			}
		}
	}

	return model.MatchResult{}
}

// ClassifyAll scores every entry, keeping order.
func (c *Classifier) ClassifyAll(entries []model.ResultEntry, t Targets) []model.ScoredEntry {
	scored := make([]model.ScoredEntry, 0, len(entries))
	for _, e := range entries {
		scored = append(scored, model.ScoredEntry{
			ResultEntry: e,
			MatchResult: c.Classify(e, t),
		})
	}
	return scored
}

// normalize lower-cases s and removes all whitespace.
func (c *Classifier) normalize(caser cases.Caser, s string) string {
	return strings.Join(strings.Fields(caser.String(s)), "")
}

// host returns the lower-cased host of raw. Values without a scheme, such
// as a bare "acme.com" display URL, are read as http URLs. Breadcrumb-like
// display values such as "acme.com › blog" do not parse as URLs; for those
// the authority is the text before the first path, query, fragment or
// whitespace character.
func host(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return strings.ToLower(u.Host)
	}
	return strings.ToLower(rawAuthority(raw))
}

// rawAuthority returns the part of raw between the scheme separator and the
// first '/', '?', '#' or whitespace.
func rawAuthority(raw string) string {
	if _, rest, ok := strings.Cut(raw, "://"); ok {
		raw = rest
	}
	if i := strings.IndexFunc(raw, func(r rune) bool {
		return r == '/' || r == '?' || r == '#' || unicode.IsSpace(r)
	}); i >= 0 {
		raw = raw[:i]
	}
	return raw
}
