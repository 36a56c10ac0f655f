package domain

import "errors"

// Sentinel errors forming the import error taxonomy. File-level errors
// (unsupported format, failed extraction) abort a file; everything else is
// isolated to a single transaction.
var (
	// ErrUnsupportedFormat means no parser recognized the file. Fatal to
	// the file: zero transactions are extracted.
	ErrUnsupportedFormat = errors.New("unsupported statement format")

	// ErrExtractionFailed means an opaque document (scan, PDF) could not be
	// converted to transactions. Fatal to the file.
	ErrExtractionFailed = errors.New("document extraction failed")

	// ErrUnbalancedEntry means a journal entry's debits and credits
	// disagree. The entry is never committed; this is the one error that
	// must never be silently swallowed.
	ErrUnbalancedEntry = errors.New("journal entry does not balance")

	// ErrMatchTimeout means an external classification call exceeded its
	// deadline. The transaction is deferred to review, not failed.
	ErrMatchTimeout = errors.New("matcher timed out")
)
