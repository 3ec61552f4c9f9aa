package model

// ResultEntry is one organic search result in normalized form.
// Entries are produced by the crawler's parse strategies and are not
// modified afterwards.
type ResultEntry struct {
	// Page is the 1-based SERP page the entry was found on.
	Page int `json:"page"`

	// Rank is the 1-based position across all pages of one run.
	// It is not reset at page boundaries.
	Rank int `json:"rank"`

	// Title is plain text with markup and entities removed.
	Title string `json:"title"`

	// DisplayURL is the URL as shown on the results page.
	// It may be a bare host ("acme.com") or a breadcrumb-like string.
	DisplayURL string `json:"display_url"`

	// LandingURL is the absolute URL the result links to.
	LandingURL string `json:"landing_url"`
}

// SerpPage holds the parsed entries of one results page.
type SerpPage struct {
	// Query is the search text the page was requested for.
	Query string `json:"query"`

	// PageNumber is the 1-based page index.
	PageNumber int `json:"page_number"`

	// Strategy names the parse strategy that produced the entries.
	// Empty when no strategy recognized the document.
	Strategy string `json:"strategy,omitempty"`

	// Entries are ordered by Rank.
	Entries []ResultEntry `json:"entries"`
}

// MatchResult is the classifier's verdict for one entry.
type MatchResult struct {
	// IsMatch reports whether the entry belongs to the tracked business.
	IsMatch bool `json:"is_match"`

	// Reason describes which target name or domain matched.
	// Set only when IsMatch is true.
	Reason string `json:"match_reason,omitempty"`
}

// ScoredEntry pairs a result with its classification.
type ScoredEntry struct {
	ResultEntry
	MatchResult
}

// MatchedURLs returns the landing URLs of matched entries with duplicates
// removed, keeping first-seen order.
func MatchedURLs(entries []ScoredEntry) []string {
	seen := make(map[string]bool)
	urls := make([]string, 0)
	for _, e := range entries {
		if !e.IsMatch || seen[e.LandingURL] {
			continue
		}
		seen[e.LandingURL] = true
		urls = append(urls, e.LandingURL)
	}
	return urls
}

// HasMatch reports whether at least one entry matched.
func HasMatch(entries []ScoredEntry) bool {
	for _, e := range entries {
		if e.IsMatch {
			return true
		}
	}
	return false
}
