// Package report renders crawl runs for the terminal and for files.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: Markdown with alerts and tables for sharing
//
// Every writer renders a single run (Write) and a run history (WriteHistory).
package report
