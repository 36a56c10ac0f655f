// Package domain defines the canonical types shared by the import pipeline:
// raw statement transactions, stored bank transactions, match candidates,
// booking decisions, and journal entries.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies entries in the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

var validAccountTypes = map[AccountType]struct{}{
	AccountTypeAsset: {}, AccountTypeLiability: {}, AccountTypeEquity: {},
	AccountTypeRevenue: {}, AccountTypeExpense: {},
}

// ValidateAccountType checks if account type is valid.
func ValidateAccountType(t AccountType) bool {
	_, ok := validAccountTypes[t]
	return ok
}

// Account is an entry in the chart of accounts. Owned by the surrounding
// ledger module; the importer reads it and only ever proposes new entries.
type Account struct {
	ID       int64
	Code     string // numeric ledger code, e.g. "8000" for revenue
	Name     string
	Type     AccountType
	IsActive bool
}

// Contact is a counterparty known to the administration.
type Contact struct {
	ID                     int64
	CompanyName            string
	Email                  string
	DefaultLedgerAccountID int64 // 0 = none configured
	SettlementAccountID    int64 // 0 = no intermediary settlement account
	VATRate                decimal.Decimal
	LastBookedAt           time.Time // zero if never booked
}

// Invoice is an open (unpaid) sales or purchase invoice.
type Invoice struct {
	ID          int64
	ContactID   int64
	ContactName string
	Number      string
	Outstanding decimal.Decimal // signed like the bank transaction that settles it
	IssuedAt    time.Time
}

// RawTransaction is one statement line as produced by a parser.
// Immutable once created; amounts are signed (negative = money out).
type RawTransaction struct {
	date            time.Time
	amount          decimal.Decimal
	description     string
	counterparty    string
	counterpartyRef string // IBAN or other account reference
	sourceRef       string // bank-assigned reference for the statement line
}

// NewRawTransaction creates a validated raw transaction.
// The amount must carry at most two decimal places (currency minor units).
func NewRawTransaction(date time.Time, amount decimal.Decimal, description, counterparty, counterpartyRef, sourceRef string) (*RawTransaction, error) {
	if date.IsZero() {
		return nil, fmt.Errorf("transaction date cannot be zero")
	}
	if amount.Exponent() < -2 {
		return nil, fmt.Errorf("amount %s has more than 2 decimal places", amount)
	}
	if strings.TrimSpace(description) == "" && strings.TrimSpace(counterparty) == "" {
		return nil, fmt.Errorf("transaction needs a description or a counterparty")
	}
	return &RawTransaction{
		date:            date,
		amount:          amount,
		description:     strings.TrimSpace(description),
		counterparty:    strings.TrimSpace(counterparty),
		counterpartyRef: strings.TrimSpace(counterpartyRef),
		sourceRef:       strings.TrimSpace(sourceRef),
	}, nil
}

// Date returns the transaction date.
func (r *RawTransaction) Date() time.Time { return r.date }

// Amount returns the signed amount.
func (r *RawTransaction) Amount() decimal.Decimal { return r.amount }

// Description returns the free-text description.
func (r *RawTransaction) Description() string { return r.description }

// Counterparty returns the counterparty name, possibly empty.
func (r *RawTransaction) Counterparty() string { return r.counterparty }

// CounterpartyRef returns the counterparty account reference, possibly empty.
func (r *RawTransaction) CounterpartyRef() string { return r.counterpartyRef }

// SourceRef returns the bank-assigned statement line reference, possibly empty.
func (r *RawTransaction) SourceRef() string { return r.sourceRef }

// IsCredit reports whether money came in.
func (r *RawTransaction) IsCredit() bool { return r.amount.Sign() > 0 }

// TransactionStatus is the lifecycle state of a stored bank transaction.
type TransactionStatus string

const (
	StatusUnmatched TransactionStatus = "unmatched"
	StatusBooked    TransactionStatus = "booked"
)

// StoredBankTransaction is a persisted statement line. Status moves from
// unmatched to booked exactly once; reversal is out of scope here.
type StoredBankTransaction struct {
	ID            string
	BankAccountID int64
	Fingerprint   string
	Raw           RawTransaction
	Status        TransactionStatus
	ImportedAt    time.Time
}

// CandidateKind distinguishes a match against an existing contact from a
// proposal to create a new one.
type CandidateKind string

const (
	KindExistingContact CandidateKind = "existing-contact"
	KindNewContact      CandidateKind = "new-contact"
)

// AccountProposal describes a ledger account the matcher suggests creating.
type AccountProposal struct {
	Code string
	Name string
	Type AccountType
}

// MatchCandidate is the matcher's best suggestion for one transaction.
// Transient: acted upon by the decision engine, never persisted.
type MatchCandidate struct {
	Kind               CandidateKind
	ContactID          int64 // 0 for new-contact proposals
	ContactName        string
	InvoiceID          int64 // non-zero when an open invoice settles exactly
	LedgerAccountID    int64 // resolved account for existing contacts
	NewAccountProposal *AccountProposal
	VATRate            decimal.Decimal
	Confidence         int // 0–100
	Reason             string
}

// Validate checks the candidate's internal consistency.
func (c *MatchCandidate) Validate() error {
	if c.Confidence < 0 || c.Confidence > 100 {
		return fmt.Errorf("confidence must be in [0,100], got %d", c.Confidence)
	}
	switch c.Kind {
	case KindExistingContact:
		if c.ContactID == 0 {
			return fmt.Errorf("existing-contact candidate needs a contact ID")
		}
	case KindNewContact:
		if c.ContactID != 0 {
			return fmt.Errorf("new-contact candidate cannot reference contact %d", c.ContactID)
		}
	default:
		return fmt.Errorf("invalid candidate kind %q", c.Kind)
	}
	return nil
}

// BookingRoute selects how an auto-booked transaction is posted.
type BookingRoute string

const (
	// RouteDirect posts straight against a revenue/expense account.
	RouteDirect BookingRoute = "direct"
	// RouteRelation posts through the contact's settlement sub-ledger.
	RouteRelation BookingRoute = "relation"
	// RouteReview defers the transaction to a human.
	RouteReview BookingRoute = "review"
)

// BookingDecision is the decision engine's verdict for one transaction.
type BookingDecision struct {
	Route      BookingRoute
	Candidate  *MatchCandidate // nil when no candidate was produced
	Confidence int
}

// AutoBook reports whether the decision posts without human review.
func (d BookingDecision) AutoBook() bool {
	return d.Route == RouteDirect || d.Route == RouteRelation
}

// JournalLine is one side of a journal entry. Exactly one of Debit/Credit
// is non-zero.
type JournalLine struct {
	AccountID   int64
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// JournalEntry owns an ordered set of lines. Invariant: total debits equal
// total credits to the cent. Created atomically with all lines or not at all.
type JournalEntry struct {
	ID            string
	Date          time.Time
	Description   string
	ContactID     int64 // 0 for direct-route entries
	TransactionID string
	Lines         []JournalLine
}

// TotalDebit sums the debit side.
func (e *JournalEntry) TotalDebit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Debit)
	}
	return total
}

// TotalCredit sums the credit side.
func (e *JournalEntry) TotalCredit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Credit)
	}
	return total
}

// Balanced reports whether debits equal credits.
func (e *JournalEntry) Balanced() bool {
	return e.TotalDebit().Equal(e.TotalCredit())
}
