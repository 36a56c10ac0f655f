// Package ofx provides OFX/QFX statement parsing for bankimport
package ofx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/bankimport/internal/domain"
	"github.com/rumor-ml/commons.systems/bankimport/internal/parser"
)

// Parser implements OFX/QFX parsing with a stateless design.
// Safe for concurrent use: all behavior is determined by the OFX content.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared OFX parser instance.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "ofx"
}

// CanParse checks if this parser can handle the file based on extension and header
func (p *Parser) CanParse(filename string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".ofx" && ext != ".qfx" {
		return false
	}

	headerUpper := strings.ToUpper(string(header))

	// Look for OFX header markers (both v1 SGML and v2 XML formats)
	return strings.Contains(headerUpper, "OFXHEADER") ||
		strings.Contains(headerUpper, "<?OFX") ||
		strings.Contains(headerUpper, "<OFX>")
}

// Parse extracts transactions from an OFX/QFX file. Bank and credit card
// statements are supported; individual transactions missing an amount or
// date are skipped and counted.
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) (*parser.Result, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX content: %w", err)
	}

	// ofxgo.ParseResponse does not take a context, so cancellation is only
	// observed between reading and parsing.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	response, err := ofxgo.ParseResponse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file (%d bytes): %w", len(content), err)
	}

	tranList, err := transactionList(response)
	if err != nil {
		return nil, err
	}

	result := &parser.Result{}
	for i, txn := range tranList.Transactions {
		rawTxn, err := extractTransaction(txn)
		if err != nil {
			result.Skip(i+1, err.Error())
			continue
		}
		result.Transactions = append(result.Transactions, rawTxn)
	}

	if len(result.Transactions) == 0 && result.Skipped == 0 {
		return nil, fmt.Errorf("OFX statement contains no transactions")
	}
	return result, nil
}

// transactionList finds the statement's transaction list, preferring bank
// statements over credit card statements when both are present.
func transactionList(resp *ofxgo.Response) (*ofxgo.TransactionList, error) {
	if len(resp.Bank) > 0 {
		stmt, ok := resp.Bank[0].(*ofxgo.StatementResponse)
		if !ok {
			return nil, fmt.Errorf("unexpected bank statement type %T", resp.Bank[0])
		}
		if stmt.BankTranList == nil {
			return nil, fmt.Errorf("missing transaction list in bank statement")
		}
		return stmt.BankTranList, nil
	}

	if len(resp.CreditCard) > 0 {
		stmt, ok := resp.CreditCard[0].(*ofxgo.CCStatementResponse)
		if !ok {
			return nil, fmt.Errorf("unexpected credit card statement type %T", resp.CreditCard[0])
		}
		if stmt.BankTranList == nil {
			return nil, fmt.Errorf("missing transaction list in credit card statement")
		}
		return stmt.BankTranList, nil
	}

	return nil, fmt.Errorf("no supported statement type found in OFX file (bank: %d, creditcard: %d)",
		len(resp.Bank), len(resp.CreditCard))
}

// extractTransaction converts one OFX transaction into a RawTransaction.
func extractTransaction(txn ofxgo.Transaction) (*domain.RawTransaction, error) {
	id := txn.FiTID.String()
	if id == "" {
		return nil, fmt.Errorf("transaction missing required FITID field")
	}

	date := txn.DtPosted.Time
	if date.IsZero() {
		date = txn.DtUser.Time
	}
	if date.IsZero() {
		return nil, fmt.Errorf("transaction %s missing both posted date and user date", id)
	}

	// OFX amounts are exact rationals; round to minor units.
	amount := decimal.NewFromBigRat(&txn.TrnAmt.Rat, 2)

	description := strings.TrimSpace(txn.Memo.String())
	name := strings.TrimSpace(txn.Name.String())
	if description == "" {
		description = name
	}

	return domain.NewRawTransaction(date, amount, description, name, "", id)
}
