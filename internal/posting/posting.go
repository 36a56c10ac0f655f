// Package posting builds balanced double-entry journal entries from booking
// decisions. The debit=credit invariant is recomputed before anything is
// handed to the store; an unbalanced entry is never committed.
package posting

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/bankimport/internal/domain"
)

// Config names the fixed ledger accounts postings need.
type Config struct {
	// VATPayableAccountID receives the VAT portion of revenue postings.
	VATPayableAccountID int64
	// VATReceivableAccountID receives the VAT portion of expense postings.
	VATReceivableAccountID int64
}

// Engine constructs journal entries.
type Engine struct {
	cfg Config
}

// New creates a posting engine.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Build constructs the journal entry for an auto-book decision.
// bankLedgerAccountID is the ledger account representing the bank account
// the statement belongs to; settlementAccountID is the contact's
// intermediary account (0 when none is configured).
//
// Direct route: full amount against the candidate's resolved account.
// Relation route: the contact side is split into a net revenue/expense
// line and a VAT line when a VAT rate applies and the contact has a
// resolved ledger account; otherwise the full amount posts to the
// settlement account.
func (e *Engine) Build(bankLedgerAccountID int64, txn *domain.StoredBankTransaction, decision domain.BookingDecision, settlementAccountID int64) (*domain.JournalEntry, error) {
	if !decision.AutoBook() {
		return nil, fmt.Errorf("cannot build an entry for route %q", decision.Route)
	}
	cand := decision.Candidate
	if cand == nil {
		return nil, fmt.Errorf("auto-book decision without a candidate")
	}

	raw := &txn.Raw
	abs := raw.Amount().Abs()
	if abs.IsZero() {
		return nil, fmt.Errorf("transaction %s has zero amount", txn.ID)
	}

	entry := &domain.JournalEntry{
		ID:            uuid.NewString(),
		Date:          raw.Date(),
		Description:   description(raw),
		ContactID:     cand.ContactID,
		TransactionID: txn.ID,
	}

	// Money in debits the bank account; money out credits it.
	moneyIn := raw.IsCredit()
	entry.Lines = append(entry.Lines, line(bankLedgerAccountID, entry.Description, abs, moneyIn))

	switch decision.Route {
	case domain.RouteDirect:
		if cand.LedgerAccountID == 0 {
			return nil, fmt.Errorf("direct route without a resolved ledger account")
		}
		// One line, full amount: VAT on invoiced revenue was booked when
		// the invoice was raised, not when the bank settles it.
		entry.Lines = append(entry.Lines, line(cand.LedgerAccountID, entry.Description, abs, !moneyIn))

	case domain.RouteRelation:
		if cand.VATRate.Sign() > 0 && cand.LedgerAccountID != 0 {
			entry.Lines = append(entry.Lines, e.vatSplitLines(cand, abs, moneyIn, entry.Description)...)
		} else {
			if settlementAccountID == 0 {
				return nil, fmt.Errorf("relation route without a settlement account")
			}
			entry.Lines = append(entry.Lines, line(settlementAccountID, entry.Description, abs, !moneyIn))
		}
	}

	// Recompute the invariant rather than trusting construction.
	if !entry.Balanced() {
		return nil, fmt.Errorf("entry for transaction %s: debit %s != credit %s: %w",
			txn.ID, entry.TotalDebit().StringFixed(2), entry.TotalCredit().StringFixed(2),
			domain.ErrUnbalancedEntry)
	}
	return entry, nil
}

// vatSplitLines builds the side opposite the bank line, splitting the
// VAT-inclusive gross amount: net = gross / (1 + rate/100) rounded to the
// cent, VAT = gross - net, so the two always re-add exactly.
func (e *Engine) vatSplitLines(cand *domain.MatchCandidate, gross decimal.Decimal, bankIsDebit bool, desc string) []domain.JournalLine {
	divisor := decimal.NewFromInt(1).Add(cand.VATRate.Div(decimal.NewFromInt(100)))
	net := gross.DivRound(divisor, 2)
	vat := gross.Sub(net)

	vatAccount := e.cfg.VATReceivableAccountID
	if bankIsDebit {
		// Money in = revenue: VAT is owed to the tax office.
		vatAccount = e.cfg.VATPayableAccountID
	}

	return []domain.JournalLine{
		line(cand.LedgerAccountID, desc, net, !bankIsDebit),
		line(vatAccount, desc+" (VAT)", vat, !bankIsDebit),
	}
}

// line builds one journal line on the requested side.
func line(accountID int64, desc string, amount decimal.Decimal, debit bool) domain.JournalLine {
	l := domain.JournalLine{AccountID: accountID, Description: desc}
	if debit {
		l.Debit = amount
	} else {
		l.Credit = amount
	}
	return l
}

func description(raw *domain.RawTransaction) string {
	if raw.Description() != "" {
		return raw.Description()
	}
	return raw.Counterparty()
}
