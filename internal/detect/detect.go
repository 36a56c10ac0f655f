// Package detect picks a statement parser for a raw file by inspecting its
// name and a content sniff, falling back to Windows-1252 decoding when the
// bytes are not valid UTF-8 (statement exports are frequently non-UTF-8).
package detect

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/rumor-ml/commons.systems/bankimport/internal/domain"
	"github.com/rumor-ml/commons.systems/bankimport/internal/parser"
	"github.com/rumor-ml/commons.systems/bankimport/internal/parsers/camt"
	"github.com/rumor-ml/commons.systems/bankimport/internal/parsers/csvstmt"
	"github.com/rumor-ml/commons.systems/bankimport/internal/parsers/mt940"
	"github.com/rumor-ml/commons.systems/bankimport/internal/parsers/ofx"
)

// sniffLen is how many decoded bytes parsers get for format detection.
// Sufficient for magic markers and header rows in all supported formats.
const sniffLen = 512

// Detector holds the registered parsers in detection order: first match wins.
type Detector struct {
	parsers []parser.Parser
}

// New creates a detector with all built-in parsers. Order matters: XML
// detection runs before the tagged-line sniff, and CSV before OFX.
func New() *Detector {
	return &Detector{
		parsers: []parser.Parser{
			camt.NewParser(),
			mt940.NewParser(),
			csvstmt.NewParser(),
			ofx.NewParser(),
		},
	}
}

// Register adds a custom parser after the built-ins (for extensibility).
func (d *Detector) Register(p parser.Parser) {
	d.parsers = append(d.parsers, p)
}

// ListParsers returns the names of all registered parsers.
func (d *Detector) ListParsers() []string {
	names := make([]string, len(d.parsers))
	for i, p := range d.parsers {
		names[i] = p.Name()
	}
	return names
}

// Detect picks a parser for the file and returns the content decoded to
// UTF-8. Returns domain.ErrUnsupportedFormat when no parser recognizes the
// file.
func (d *Detector) Detect(filename string, content []byte) (parser.Parser, []byte, error) {
	decoded, err := DecodeText(content)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}

	header := decoded
	if len(header) > sniffLen {
		header = header[:sniffLen]
	}

	for _, p := range d.parsers {
		if p.CanParse(filename, header) {
			return p, decoded, nil
		}
	}

	return nil, nil, fmt.Errorf("%s: %w", filename, domain.ErrUnsupportedFormat)
}

// DecodeText returns content as UTF-8. Invalid UTF-8 input is re-decoded
// as Windows-1252, which covers the single-byte Western European encodings
// banks still export in.
func DecodeText(content []byte) ([]byte, error) {
	if utf8.Valid(content) {
		return content, nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(content)
	if err != nil {
		return nil, fmt.Errorf("windows-1252 fallback decode failed: %w", err)
	}
	return decoded, nil
}
