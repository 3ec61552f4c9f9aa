// Package database persists the keyword registry and crawl run history.
//
// Two implementations share the Store interface:
//   - CrawlDB: SQLite via modernc.org/sqlite, a single file under the XDG
//     data directory. This is the default for the CLI.
//   - PgStore: PostgreSQL via pgx, with schema migrations embedded in the
//     migrations package and applied by golang-migrate. It is selected when
//     a database URL is configured.
//
// Design decision: We use SQLite (via modernc.org/sqlite) as the default
// because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for a daily sweep over a keyword list
//
// Both stores enforce the run lifecycle: a run is finalized by a
// conditional update on status = 'pending', so a second finalization is
// rejected with model.ErrRunFinalized.
package database
