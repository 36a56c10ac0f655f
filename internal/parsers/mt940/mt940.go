// Package mt940 parses legacy SWIFT-style MT940 bank statements for bankimport
package mt940

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/bankimport/internal/domain"
	"github.com/rumor-ml/commons.systems/bankimport/internal/parser"
)

// Parser implements MT940 parsing with a stateless design.
// The struct has no fields because parsing requires no configuration state,
// making the parser safe for concurrent use without locking.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared MT940 parser instance.
// Safe for concurrent use due to stateless design.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "mt940"
}

// statementLinePattern matches a :61: statement line:
// value date YYMMDD, optional entry date MMDD, debit/credit mark
// (D, C, RD, RC), amount with comma decimal separator, then type code
// and reference.
var statementLinePattern = regexp.MustCompile(`^(\d{6})(\d{4})?(R?[CD])(\d+,\d{0,2})(N[A-Z]{3})?(.*)$`)

// tagPattern matches any MT940 tag line (:20:, :61:, :86:, ...).
var tagPattern = regexp.MustCompile(`^:(\d{2}[A-Z]?):`)

// CanParse checks if this parser can handle the file.
// MT940 exports carry .sta/.swi/.940/.mt940 extensions, or no recognizable
// extension at all, so detection leans on the tagged-line content: a line
// beginning with a two-character numeric tag such as :20: or :61:.
func (p *Parser) CanParse(filename string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".sta", ".swi", ".940", ".mt940":
		return true
	case ".xml", ".csv", ".ofx", ".qfx":
		return false
	}
	for _, line := range strings.Split(string(header), "\n") {
		if tagPattern.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}

// entry accumulates one :61: line plus its :86: detail lines before
// conversion to a RawTransaction.
type entry struct {
	line61   string
	lineNo   int
	detail   []string
	sequence int
}

// Parse extracts transactions from an MT940 statement.
// Each transaction is a :61: line followed by an optional :86: detail
// block; malformed groups are skipped and counted, never fatal to the file.
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) (*parser.Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	entries, err := p.collectEntries(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read MT940 content: %w", err)
	}

	result := &parser.Result{}
	for _, e := range entries {
		txn, err := p.parseEntry(e)
		if err != nil {
			result.Skip(e.lineNo, err.Error())
			continue
		}
		result.Transactions = append(result.Transactions, txn)
	}

	if len(result.Transactions) == 0 && result.Skipped == 0 {
		return nil, fmt.Errorf("no statement lines (:61:) found")
	}
	return result, nil
}

// collectEntries groups the tagged lines into per-transaction entries.
// Untagged lines following a :86: tag are continuation lines of the detail
// block. Header tags (:20:, :25:, :28C:, :60F:, :62F:, ...) are ignored.
func (p *Parser) collectEntries(r io.Reader) ([]*entry, error) {
	scanner := bufio.NewScanner(r)

	var entries []*entry
	var current *entry
	inDetail := false
	lineNo := 0
	seq := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, ":61:"):
			seq++
			current = &entry{line61: strings.TrimPrefix(line, ":61:"), lineNo: lineNo, sequence: seq}
			entries = append(entries, current)
			inDetail = false
		case strings.HasPrefix(line, ":86:"):
			if current != nil {
				current.detail = append(current.detail, strings.TrimPrefix(line, ":86:"))
				inDetail = true
			}
		case tagPattern.MatchString(line):
			// Any other tag ends the current detail block.
			inDetail = false
		default:
			if inDetail && current != nil {
				current.detail = append(current.detail, line)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// parseEntry converts one :61:/:86: group into a RawTransaction.
func (p *Parser) parseEntry(e *entry) (*domain.RawTransaction, error) {
	m := statementLinePattern.FindStringSubmatch(strings.TrimSpace(e.line61))
	if m == nil {
		return nil, fmt.Errorf("malformed :61: line %q", e.line61)
	}

	date, err := time.Parse("060102", m[1])
	if err != nil {
		return nil, fmt.Errorf("invalid value date %q: %w", m[1], err)
	}

	// Comma is the decimal separator and may trail with no fraction ("50,").
	amountStr := strings.TrimSuffix(strings.Replace(m[4], ",", ".", 1), ".")
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", m[4], err)
	}
	// D = money out, C = money in. RD/RC are reversals of the opposite sign.
	switch m[3] {
	case "D", "RC":
		amount = amount.Neg()
	case "C", "RD":
		// positive
	}

	sourceRef := strings.TrimSpace(m[6])
	if sourceRef == "" || strings.EqualFold(sourceRef, "NONREF") {
		// Statement lines without a bank reference still need a stable one
		// for fingerprinting; the sequence number within the file serves.
		sourceRef = fmt.Sprintf("seq-%d", e.sequence)
	}

	detail := strings.Join(e.detail, " ")
	name, iban, remittance := parseDetailFields(detail)
	if remittance == "" {
		remittance = strings.TrimSpace(detail)
	}

	return domain.NewRawTransaction(date, amount, remittance, name, iban, sourceRef)
}

// detailFieldPattern matches both label styles found in :86: blocks:
// slash-delimited (/NAME/Acme BV/) and colon-labelled (NAME: Acme BV).
var detailFieldPattern = regexp.MustCompile(`(?:/(NAME|IBAN|REMI)/|(?:^|\s)(NAME|IBAN|REMI):\s*)`)

// parseDetailFields extracts the NAME, IBAN, and REMI sub-fields from a
// :86: detail block. Text before the first label is ignored; each field
// runs until the next label or end of text.
func parseDetailFields(detail string) (name, iban, remi string) {
	locs := detailFieldPattern.FindAllStringSubmatchIndex(detail, -1)
	for i, loc := range locs {
		label := detail[loc[0]:loc[1]]
		label = strings.Trim(label, "/: \t")

		end := len(detail)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		value := strings.TrimSpace(strings.Trim(detail[loc[1]:end], "/"))

		switch label {
		case "NAME":
			name = value
		case "IBAN":
			iban = value
		case "REMI":
			remi = value
		}
	}
	return name, iban, remi
}
