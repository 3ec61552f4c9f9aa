package crawler

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/serpscan/internal/model"
)

// Default selectors for the DOM strategy.
// Container patterns are ordered by priority and never merged: the first
// pattern that matches anything is the only one used.
var (
	defaultContainerSelectors = []string{
		"div.total_group > div.total_wrap",
		"div#main_pack div.total_wrap",
		"div#main_pack li.bx",
	}
	defaultTitleSelector   = "a.link_name, a.title, a.api_txt_lines.total_tit"
	defaultDisplaySelector = "a.link_url, span.sub_url, div.total_source a"
)

// DOMStrategy reads results from the rendered markup with CSS selectors.
// It is the fallback when no embedded payload is found.
type DOMStrategy struct {
	containerSelectors []string
	titleSelector      string
	displaySelector    string
}

// NewDOMStrategy creates a DOMStrategy with the default selectors.
func NewDOMStrategy() *DOMStrategy {
	return &DOMStrategy{
		containerSelectors: defaultContainerSelectors,
		titleSelector:      defaultTitleSelector,
		displaySelector:    defaultDisplaySelector,
	}
}

// Name returns the strategy name.
func (s *DOMStrategy) Name() string {
	return "dom"
}

// Parse implements Strategy.
// Any document that parses as HTML is recognized, so the DOM strategy
// always returns ok=true unless the body cannot be read at all.
func (s *DOMStrategy) Parse(body []byte, page int) ([]model.ResultEntry, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, false
	}

	entries := make([]model.ResultEntry, 0)

	containers := s.findContainers(doc)
	if containers == nil {
		return entries, true
	}

	seen := make(map[string]bool)
	containers.Each(func(_ int, container *goquery.Selection) {
		title := container.Find(s.titleSelector).First()
		if title.Length() == 0 {
			return
		}

		href := strings.TrimSpace(title.AttrOr("href", ""))
		if href == "" || seen[href] {
			return
		}
		seen[href] = true

		display := href
		if d := container.Find(s.displaySelector).First(); d.Length() > 0 {
			if text := selectionText(d); text != "" {
				display = text
			}
		}

		entries = append(entries, model.ResultEntry{
			Page:       page,
			Rank:       len(entries) + 1,
			Title:      selectionText(title),
			DisplayURL: display,
			LandingURL: href,
		})
	})

	return entries, true
}

// findContainers returns the matches of the first selector that matches anything.
func (s *DOMStrategy) findContainers(doc *goquery.Document) *goquery.Selection {
	for _, selector := range s.containerSelectors {
		if sel := doc.Find(selector); sel.Length() > 0 {
			return sel
		}
	}
	return nil
}

// selectionText returns the stripped text of the first node in sel.
func selectionText(sel *goquery.Selection) string {
	if len(sel.Nodes) == 0 {
		return ""
	}
	return nodeText(sel.Nodes[0])
}
