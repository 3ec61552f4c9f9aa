package database

import "errors"

// Store lookup and update errors.
var (
	// ErrKeywordNotFound is returned when no keyword has the requested ID.
	ErrKeywordNotFound = errors.New("keyword not found")

	// ErrDuplicateKeyword is returned when a keyword with the same query exists.
	ErrDuplicateKeyword = errors.New("keyword already exists")

	// ErrRunNotFound is returned when no crawl run matches the lookup.
	ErrRunNotFound = errors.New("crawl run not found")

	// ErrDatabaseNotFound is returned by Open when the file is missing and
	// creation was not requested.
	ErrDatabaseNotFound = errors.New("database not found")
)
