// Package model defines the core data structures used throughout serpscan.
//
// This package contains the following main types:
//   - Keyword: A tracked search query with its target names and domains
//   - ResultEntry / SerpPage: Normalized search results parsed from one SERP page
//   - MatchResult / ScoredEntry: The classifier's verdict for one entry
//   - HTTPSCheck: The HTTPS/TLS audit of one matched landing URL
//   - CrawlRun: The aggregate of one keyword crawl, with its lifecycle and flag
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The crawler, classifier, auditor, pipeline, storage and report
// packages all exchange these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// the HTTP API.
package model
