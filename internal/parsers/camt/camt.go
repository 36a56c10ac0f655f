// Package camt parses ISO-20022 camt.053 XML bank statements for bankimport
package camt

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/bankimport/internal/domain"
	"github.com/rumor-ml/commons.systems/bankimport/internal/parser"
)

// Parser implements camt.053 parsing with a stateless design.
// Safe for concurrent use: all behavior is determined by the XML content.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared camt parser instance.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "camt053"
}

// CanParse checks if this parser can handle the file based on extension
// and header. Accepts any XML document whose root looks like an ISO-20022
// bank-to-customer statement.
func (p *Parser) CanParse(filename string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	headerStr := strings.TrimSpace(string(header))

	isXML := ext == ".xml" ||
		strings.HasPrefix(headerStr, "<?xml") ||
		strings.HasPrefix(headerStr, "<Document")
	if !isXML {
		return false
	}
	return strings.Contains(headerStr, "camt.053") ||
		strings.Contains(headerStr, "BkToCstmrStmt") ||
		ext == ".xml"
}

// document mirrors the subset of camt.053 the importer needs. Field names
// follow the ISO-20022 element names.
type document struct {
	XMLName    xml.Name `xml:"Document"`
	Statements []struct {
		Entries []camtEntry `xml:"Ntry"`
	} `xml:"BkToCstmrStmt>Stmt"`
}

type camtEntry struct {
	Amount struct {
		Value    string `xml:",chardata"`
		Currency string `xml:"Ccy,attr"`
	} `xml:"Amt"`
	CreditDebit string `xml:"CdtDbtInd"` // CRDT or DBIT
	BookingDate struct {
		Date     string `xml:"Dt"`
		DateTime string `xml:"DtTm"`
	} `xml:"BookgDt"`
	Reference string `xml:"NtryRef"`
	AcctSvcr  string `xml:"AcctSvcrRef"`
	Details   struct {
		Parties struct {
			Creditor struct {
				Name string `xml:"Nm"`
			} `xml:"Cdtr"`
			Debtor struct {
				Name string `xml:"Nm"`
			} `xml:"Dbtr"`
			CreditorAccount struct {
				IBAN string `xml:"Id>IBAN"`
			} `xml:"CdtrAcct"`
			DebtorAccount struct {
				IBAN string `xml:"Id>IBAN"`
			} `xml:"DbtrAcct"`
		} `xml:"TxDtls>RltdPties"`
		Remittance struct {
			Unstructured []string `xml:"Ustrd"`
		} `xml:"TxDtls>RmtInf"`
	} `xml:"NtryDtls"`
}

// Parse extracts transactions from a camt.053 statement. Entries missing a
// bookable amount or date are skipped and counted; the file succeeds if at
// least one entry parses.
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) (*parser.Result, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read camt content: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var doc document
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse camt.053 XML (%d bytes): %w", len(content), err)
	}

	result := &parser.Result{}
	entryNo := 0
	for _, stmt := range doc.Statements {
		for _, e := range stmt.Entries {
			entryNo++
			txn, err := p.parseEntry(&e)
			if err != nil {
				result.Skip(entryNo, err.Error())
				continue
			}
			result.Transactions = append(result.Transactions, txn)
		}
	}

	if entryNo == 0 {
		return nil, fmt.Errorf("no statement entries (Ntry) found")
	}
	if len(result.Transactions) == 0 {
		return nil, fmt.Errorf("all %d entries were unparseable", entryNo)
	}
	return result, nil
}

// parseEntry converts one Ntry node into a RawTransaction. The sign comes
// from CdtDbtInd; the counterparty comes from the debtor structure for
// credits (who paid us) and the creditor structure for debits (who we paid).
func (p *Parser) parseEntry(e *camtEntry) (*domain.RawTransaction, error) {
	amountStr := strings.TrimSpace(e.Amount.Value)
	if amountStr == "" {
		return nil, fmt.Errorf("entry has no bookable amount")
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amountStr, err)
	}

	switch strings.TrimSpace(e.CreditDebit) {
	case "CRDT":
		// money in, positive
	case "DBIT":
		amount = amount.Neg()
	default:
		return nil, fmt.Errorf("invalid credit/debit indicator %q", e.CreditDebit)
	}

	date, err := p.parseBookingDate(e)
	if err != nil {
		return nil, err
	}

	parties := e.Details.Parties
	var name, iban string
	if amount.Sign() > 0 {
		name = parties.Debtor.Name
		iban = parties.DebtorAccount.IBAN
	} else {
		name = parties.Creditor.Name
		iban = parties.CreditorAccount.IBAN
	}

	description := strings.TrimSpace(strings.Join(e.Details.Remittance.Unstructured, " "))

	sourceRef := strings.TrimSpace(e.Reference)
	if sourceRef == "" {
		sourceRef = strings.TrimSpace(e.AcctSvcr)
	}

	return domain.NewRawTransaction(date, amount, description, name, iban, sourceRef)
}

// parseBookingDate reads BookgDt, which carries either a plain date or a
// full timestamp.
func (p *Parser) parseBookingDate(e *camtEntry) (time.Time, error) {
	if d := strings.TrimSpace(e.BookingDate.Date); d != "" {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid booking date %q: %w", d, err)
		}
		return t, nil
	}
	if d := strings.TrimSpace(e.BookingDate.DateTime); d != "" {
		t, err := time.Parse(time.RFC3339, d)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid booking timestamp %q: %w", d, err)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("entry has no booking date")
}
