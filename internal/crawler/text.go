package crawler

import (
	"strings"

	"golang.org/x/net/html"
)

// StripMarkup converts an HTML fragment to plain text.
//
// Entities are unescaped first, so escaped markup such as "&lt;b&gt;" is
// treated as a tag. Each text run is trimmed, empty runs are dropped, and
// the remaining runs are joined with a single space.
func StripMarkup(fragment string) string {
	if fragment == "" {
		return ""
	}

	tokenizer := html.NewTokenizer(strings.NewReader(html.UnescapeString(fragment)))
	parts := make([]string, 0)
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.Join(parts, " ")
		case html.TextToken:
			if text := strings.TrimSpace(string(tokenizer.Text())); text != "" {
				parts = append(parts, text)
			}
		}
	}
}

// nodeText returns the text below n with every text node trimmed and the
// results concatenated without a separator.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(strings.TrimSpace(n.Data))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
