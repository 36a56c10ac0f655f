// Package extract defines the collaborator interface for opaque statement
// documents (scans, PDFs). The extraction itself lives outside this module;
// the pipeline only depends on the contract: same transaction shape as the
// text parsers, or a failure.
package extract

import (
	"context"
	"fmt"

	"github.com/rumor-ml/commons.systems/bankimport/internal/domain"
	"github.com/rumor-ml/commons.systems/bankimport/internal/parser"
)

// DocumentExtractor converts opaque document bytes into raw transactions.
// Implementations wrap OCR or model-backed services. On unreadable input
// they must return an error wrapping domain.ErrExtractionFailed.
type DocumentExtractor interface {
	Extract(ctx context.Context, filename string, content []byte) (*parser.Result, error)
}

// Unavailable is the default extractor used when no document service is
// configured: every document fails with ErrExtractionFailed.
type Unavailable struct{}

// Extract always fails; opaque documents need a configured extractor.
func (Unavailable) Extract(_ context.Context, filename string, _ []byte) (*parser.Result, error) {
	return nil, fmt.Errorf("%s: no document extractor configured: %w", filename, domain.ErrExtractionFailed)
}
