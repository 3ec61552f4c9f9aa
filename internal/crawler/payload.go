package crawler

import (
	"encoding/json"
	"strings"

	"github.com/nao1215/serpscan/internal/model"
)

const (
	// payloadAnchor marks the web results block in the embedded render data.
	payloadAnchor = `"data-slog-container":"web_lis"`

	// bootstrapMarker precedes the JSON object passed to the page bootstrap.
	bootstrapMarker = "entry.bootstrap"
)

// PayloadStrategy reads results from the JSON payload the provider embeds
// for its client-side renderer.
//
// Design decision: The payload mirrors an API response, so it changes far
// less often than the rendered markup. It is tried before the DOM strategy.
type PayloadStrategy struct{}

// NewPayloadStrategy creates a PayloadStrategy.
func NewPayloadStrategy() *PayloadStrategy {
	return &PayloadStrategy{}
}

// Name returns the strategy name.
func (s *PayloadStrategy) Name() string {
	return "payload"
}

// Parse implements Strategy.
func (s *PayloadStrategy) Parse(body []byte, page int) ([]model.ResultEntry, bool) {
	raw, ok := ExtractPayload(string(body))
	if !ok {
		return nil, false
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil || len(payload) == 0 {
		return nil, false
	}

	return walkPayload(payload, page), true
}

// ExtractPayload locates the bootstrap JSON object that carries the web
// results and returns it as a string.
//
// The object is the first '{' after the last bootstrap marker that precedes
// the web results anchor, up to its matching closing brace.
func ExtractPayload(doc string) (string, bool) {
	anchor := strings.Index(doc, payloadAnchor)
	if anchor == -1 {
		return "", false
	}

	marker := strings.LastIndex(doc[:anchor], bootstrapMarker)
	if marker == -1 {
		return "", false
	}

	rel := strings.IndexByte(doc[marker:], '{')
	if rel == -1 {
		return "", false
	}
	start := marker + rel

	end, ok := ConsumeBalancedJSON(doc, start)
	if !ok {
		return "", false
	}
	return doc[start:end], true
}

// ConsumeBalancedJSON scans from the '{' at start and returns the index just
// past its matching '}'.
//
// Double-quoted strings are skipped so braces inside string values do not
// change the depth, and a backslash inside a string skips the next byte.
// Nothing else about JSON is validated: single quotes and unicode escapes
// get no special treatment. The payload has a known shape, and
// json.Unmarshal rejects anything malformed afterwards.
func ConsumeBalancedJSON(s string, start int) (int, bool) {
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '"':
			i++
			for i < len(s) && s[i] != '"' {
				if s[i] == '\\' {
					i++
				}
				i++
			}
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// walkPayload collects entries from body.props.children[].props.children[].
// Nodes that are not objects or have no absolute http(s) href are skipped
// without consuming a rank.
func walkPayload(payload map[string]any, page int) []model.ResultEntry {
	entries := make([]model.ResultEntry, 0)

	body := asMap(payload["body"])
	groups := asSlice(asMap(body["props"])["children"])
	for _, group := range groups {
		items := asSlice(asMap(asMap(group)["props"])["children"])
		for _, item := range items {
			props := asMap(asMap(item)["props"])
			href, _ := props["href"].(string)
			if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
				continue
			}

			entries = append(entries, model.ResultEntry{
				Page:       page,
				Rank:       len(entries) + 1,
				Title:      payloadTitle(props["title"]),
				DisplayURL: payloadDisplayURL(props, href),
				LandingURL: href,
			})
		}
	}

	return entries
}

// payloadTitle returns the plain text of a title that is either a string or
// an object with a "text" field.
func payloadTitle(v any) string {
	var raw string
	switch t := v.(type) {
	case string:
		raw = t
	case map[string]any:
		raw, _ = t["text"].(string)
	}
	return StripMarkup(raw)
}

// payloadDisplayURL prefers the first non-empty profile sub text, then the
// profile href, then the result href.
func payloadDisplayURL(props map[string]any, href string) string {
	profile := asMap(props["profile"])
	for _, sub := range asSlice(profile["subTexts"]) {
		if text, _ := asMap(sub)["text"].(string); strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}
	if ph, _ := profile["href"].(string); ph != "" {
		return ph
	}
	return href
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}
