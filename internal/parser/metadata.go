package parser

import (
	"fmt"
	"path/filepath"
	"time"
)

// Metadata carries context about the file being parsed: where it came from
// and which bank account the import targets.
//
// Create instances using NewMetadata. Filename and detection time are
// required; the bank account ID is resolved by the caller before parsing
// starts.
type Metadata struct {
	filename      string
	bankAccountID int64
	detectedAt    time.Time
}

// NewMetadata creates a validated Metadata instance.
func NewMetadata(filename string, bankAccountID int64, detectedAt time.Time) (*Metadata, error) {
	if filename == "" {
		return nil, fmt.Errorf("filename cannot be empty")
	}
	if bankAccountID <= 0 {
		return nil, fmt.Errorf("bank account ID must be positive, got %d", bankAccountID)
	}
	if detectedAt.IsZero() {
		return nil, fmt.Errorf("detected time cannot be zero")
	}
	return &Metadata{
		filename:      filename,
		bankAccountID: bankAccountID,
		detectedAt:    detectedAt,
	}, nil
}

// Filename returns the original file name (base name, no directory).
func (m *Metadata) Filename() string {
	return filepath.Base(m.filename)
}

// BankAccountID returns the target bank account.
func (m *Metadata) BankAccountID() int64 {
	return m.bankAccountID
}

// DetectedAt returns when the file entered the pipeline.
func (m *Metadata) DetectedAt() time.Time {
	return m.detectedAt
}
