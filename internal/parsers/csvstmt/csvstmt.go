// Package csvstmt provides delimited-text statement parsing for bankimport
package csvstmt

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/bankimport/internal/domain"
	"github.com/rumor-ml/commons.systems/bankimport/internal/parser"
)

// Parser implements header-driven CSV parsing with a stateless design.
// The struct has no fields because CSV parsing requires no configuration
// state; column positions are discovered per file from the header row.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared CSV parser instance.
// Safe for concurrent use due to stateless design.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "csv"
}

// columnAliases maps logical columns to the header names banks use for
// them. Matching is case-insensitive and order-independent.
var columnAliases = map[string][]string{
	"date":        {"date", "transaction date", "boekdatum", "datum"},
	"amount":      {"amount", "bedrag", "transaction amount"},
	"description": {"description", "omschrijving", "details", "memo"},
	"name":        {"name", "counterparty", "naam", "payee", "naam tegenpartij"},
	"account":     {"account", "iban", "counterparty account", "tegenrekening"},
}

// dateLayouts are tried in order for each row's date cell.
var dateLayouts = []string{"2006-01-02", "02-01-2006", "2006/01/02", "01/02/2006", "20060102"}

// CanParse checks if this parser can handle the file: a .csv extension and
// a header row naming at least the Date and Amount columns.
func (p *Parser) CanParse(filename string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".csv" {
		return false
	}

	r := csv.NewReader(strings.NewReader(string(header)))
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	record, err := r.Read()
	if err != nil {
		return false
	}

	cols := mapColumns(record)
	_, hasDate := cols["date"]
	_, hasAmount := cols["amount"]
	return hasDate && hasAmount
}

// Parse extracts transactions from a delimited statement. Rows with
// unparseable dates or amounts are skipped and counted, not fatal.
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) (*parser.Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	csvReader := csv.NewReader(r)
	csvReader.LazyQuotes = true
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV content: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("CSV file has no transaction rows")
	}

	cols := mapColumns(records[0])
	if _, ok := cols["date"]; !ok {
		return nil, fmt.Errorf("header row has no date column")
	}
	if _, ok := cols["amount"]; !ok {
		return nil, fmt.Errorf("header row has no amount column")
	}

	result := &parser.Result{}
	for i, record := range records[1:] {
		rowNo := i + 2 // 1-based, after the header

		// Skip blank rows silently.
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}

		txn, err := p.parseRow(record, cols, rowNo)
		if err != nil {
			result.Skip(rowNo, err.Error())
			continue
		}
		result.Transactions = append(result.Transactions, txn)
	}

	return result, nil
}

// mapColumns resolves logical column names to indexes from the header row.
func mapColumns(header []string) map[string]int {
	cols := make(map[string]int)
	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		for logical, aliases := range columnAliases {
			if _, taken := cols[logical]; taken {
				continue
			}
			for _, alias := range aliases {
				if name == alias {
					cols[logical] = i
					break
				}
			}
		}
	}
	return cols
}

// cell returns the trimmed value of a logical column, or "" if absent.
func cell(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// parseRow converts one CSV row into a RawTransaction.
func (p *Parser) parseRow(record []string, cols map[string]int, rowNo int) (*domain.RawTransaction, error) {
	dateStr := cell(record, cols, "date")
	date, err := parseDate(dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", dateStr, err)
	}

	amountStr := cell(record, cols, "amount")
	amount, err := parseAmount(amountStr)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amountStr, err)
	}

	// CSV exports carry no bank reference; fingerprinting falls back to the
	// normalized description, so the source reference stays empty.
	return domain.NewRawTransaction(
		date,
		amount,
		cell(record, cols, "description"),
		cell(record, cols, "name"),
		cell(record, cols, "account"),
		"",
	)
}

// parseDate tries each known layout in order.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("date cannot be empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}

// parseAmount handles both decimal-point and decimal-comma exports.
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount cannot be empty")
	}
	// "1.234,56" and "1234,56" use comma as decimal separator.
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	return decimal.NewFromString(s)
}
