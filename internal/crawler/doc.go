// Package crawler fetches search engine result pages and parses them into
// ranked result entries.
//
// # Architecture
//
// The package is built around three types:
//
//   - Fetcher: builds the search URL for one page and performs the request
//   - Parser: tries an ordered list of Strategy implementations on a body
//   - Spider: fetches every configured page, parses it, and rebases ranks
//     so that they are contiguous across pages
//
// # Strategies
//
// Result markup changes frequently, so parsing is split into interchangeable
// strategies. The payload strategy reads the JSON object the provider embeds
// for its client-side renderer. The DOM strategy falls back to CSS selectors
// over the rendered markup. The first strategy that recognizes a document
// wins, even when it finds zero entries.
//
// Design decision: The payload is located with a small brace scanner rather
// than a JavaScript parser. It only understands double-quoted strings and
// backslash escapes. That is sufficient for the payload the provider emits,
// and a failed scan simply falls through to the DOM strategy.
//
// # Usage
//
//	fetcher := crawler.NewFetcher(client, crawler.WithUserAgent(ua))
//	spider := crawler.NewSpider(fetcher, nil, crawler.WithPages(1, 2))
//	pages, err := spider.Crawl(ctx, "coffee beans")
//
// # Politeness
//
// Pages are fetched sequentially with a minimum interval between requests,
// and every request is bounded by a timeout. Nothing is retried.
package crawler
