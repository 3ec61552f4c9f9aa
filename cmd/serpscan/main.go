// Package main provides the entry point for the serpscan CLI.
//
// serpscan crawls search engine result pages for tracked keywords, finds
// the results that belong to the tracked business and audits their
// landing pages for HTTPS problems.
//
// Usage:
//
//	serpscan keyword add "acme coffee" --domain acme.com
//	serpscan crawl "acme coffee"
//	serpscan serve
//
// See --help for all available options.
package main

// main is the entry point for serpscan.
func main() {
	Execute()
}
