// Package parser defines the strategy interface all statement parsers
// implement and the result shape the rest of the pipeline consumes.
package parser

import (
	"context"
	"fmt"
	"io"

	"github.com/rumor-ml/commons.systems/bankimport/internal/domain"
)

// Parser is the strategy interface for all statement file formats.
type Parser interface {
	// Name returns the parser identifier (e.g. "mt940", "camt053", "csv").
	Name() string

	// CanParse checks if this parser can handle the file.
	// header holds the first bytes of the file (up to 512), already decoded
	// to UTF-8 by the format detector.
	CanParse(filename string, header []byte) bool

	// Parse extracts transactions from the decoded statement text.
	// Malformed lines or entries are skipped and reported as warnings;
	// Parse fails only when the file as a whole is unusable.
	Parse(ctx context.Context, r io.Reader, meta *Metadata) (*Result, error)
}

// Warning records a non-fatal problem with a single line or entry.
type Warning struct {
	Line   int // 1-based line or entry index within the file, 0 if unknown
	Reason string
}

func (w Warning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("line %d: %s", w.Line, w.Reason)
	}
	return w.Reason
}

// Result is the outcome of parsing one statement file.
// Parsing identical bytes yields an identical Result: same transaction
// order, same field values, same warnings.
type Result struct {
	Transactions []*domain.RawTransaction
	Skipped      int
	Warnings     []Warning
}

// Skip records a skipped line or entry with its reason.
func (r *Result) Skip(line int, reason string) {
	r.Skipped++
	r.Warnings = append(r.Warnings, Warning{Line: line, Reason: reason})
}
