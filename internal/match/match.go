// Package match searches open invoices, known contacts, and keyword rules
// for a plausible counterpart to each bank transaction, scoring each
// candidate with a 0–100 confidence.
package match

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/bankimport/internal/domain"
	"github.com/rumor-ml/commons.systems/bankimport/internal/rules"
)

// Directory is the read access the matcher needs to the surrounding
// administration: contacts and their open invoices.
type Directory interface {
	Contacts(ctx context.Context) ([]domain.Contact, error)
	OpenInvoices(ctx context.Context) ([]domain.Invoice, error)
}

// Classifier is an optional external classification service consulted for
// first-time counterparties. Implementations may call out over the network;
// the matcher bounds each call with a deadline and degrades to the keyword
// rules when the call times out.
type Classifier interface {
	Classify(ctx context.Context, counterparty, description string, amount decimal.Decimal) (*rules.MatchResult, error)
}

// Confidence bands produced by the three match paths.
const (
	invoiceBaseConfidence = 95
	contactMinConfidence  = 60
	contactMaxConfidence  = 94
	proposalBase          = 35
	proposalCap           = 59
)

// Config tunes the matcher.
type Config struct {
	// StandardVATRate is the jurisdiction's default VAT percentage, used
	// when neither the contact nor a rule carries a rate.
	StandardVATRate decimal.Decimal
	// NewRevenueCode/NewExpenseCode are the proposed ledger codes for
	// first-time income and expense counterparties without a rule hit.
	NewRevenueCode string
	NewExpenseCode string
	// ClassifierTimeout bounds one external classification call.
	ClassifierTimeout time.Duration
}

// DefaultConfig returns matcher settings for the Dutch jurisdiction.
func DefaultConfig() Config {
	return Config{
		StandardVATRate:   decimal.NewFromInt(21),
		NewRevenueCode:    "8090",
		NewExpenseCode:    "4990",
		ClassifierTimeout: 5 * time.Second,
	}
}

// Matcher produces at most one MatchCandidate per transaction: the
// highest-scoring path reached, in order invoice > known contact > new
// contact proposal.
type Matcher struct {
	dir        Directory
	rules      *rules.Engine
	classifier Classifier // nil = no external service configured
	cfg        Config
}

// New creates a Matcher. engine may not be nil; classifier may be.
func New(dir Directory, engine *rules.Engine, classifier Classifier, cfg Config) *Matcher {
	return &Matcher{dir: dir, rules: engine, classifier: classifier, cfg: cfg}
}

// Match finds the best candidate for one transaction. A nil candidate with
// nil error means nothing plausible was found and the transaction goes to
// review without a suggestion. A domain.ErrMatchTimeout error means the
// external classifier timed out; the caller defers the transaction rather
// than retrying.
func (m *Matcher) Match(ctx context.Context, txn *domain.RawTransaction) (*domain.MatchCandidate, error) {
	contacts, err := m.dir.Contacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading contacts: %w", err)
	}

	// Path 1: an open invoice settling exactly.
	if cand, err := m.matchInvoice(ctx, txn, contacts); err != nil {
		return nil, err
	} else if cand != nil {
		return cand, nil
	}

	// Path 2: a known contact by name.
	if cand := m.matchContact(txn, contacts); cand != nil {
		return cand, nil
	}

	// Path 3: propose a new contact and account.
	return m.propose(ctx, txn)
}

// counterpartyText is what contact names are compared against: the name
// field when the parser extracted one, otherwise the free-text description.
func counterpartyText(txn *domain.RawTransaction) string {
	if txn.Counterparty() != "" {
		return txn.Counterparty()
	}
	return txn.Description()
}

// matchInvoice looks for an open invoice whose contact name appears in the
// counterparty text and whose outstanding amount equals the transaction
// amount to the cent.
func (m *Matcher) matchInvoice(ctx context.Context, txn *domain.RawTransaction, contacts []domain.Contact) (*domain.MatchCandidate, error) {
	invoices, err := m.dir.OpenInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading open invoices: %w", err)
	}

	text := Fold(counterpartyText(txn))
	for _, inv := range invoices {
		if !inv.Outstanding.Equal(txn.Amount()) {
			continue
		}
		name := Fold(inv.ContactName)
		if name == "" || !containsName(text, name) {
			continue
		}

		confidence := invoiceBaseConfidence
		// The invoice number in the remittance text settles any doubt.
		if inv.Number != "" && containsName(Fold(txn.Description()), Fold(inv.Number)) {
			confidence = 100
		}

		contact := findContact(contacts, inv.ContactID)
		cand := &domain.MatchCandidate{
			Kind:        domain.KindExistingContact,
			ContactID:   inv.ContactID,
			ContactName: inv.ContactName,
			InvoiceID:   inv.ID,
			VATRate:     m.vatRateFor(contact),
			Confidence:  confidence,
			Reason:      fmt.Sprintf("open invoice %s settles exactly", inv.Number),
		}
		if contact != nil {
			cand.LedgerAccountID = contact.DefaultLedgerAccountID
		}
		return cand, nil
	}
	return nil, nil
}

// matchContact fuzzy-matches the counterparty against known contacts.
// Confidence scales with name similarity and with how recently the contact
// was last booked, and stays within [60, 94].
func (m *Matcher) matchContact(txn *domain.RawTransaction, contacts []domain.Contact) *domain.MatchCandidate {
	text := counterpartyText(txn)

	var best *domain.Contact
	bestSim := 0.0
	for i := range contacts {
		sim := Similarity(contacts[i].CompanyName, text)
		if sim > bestSim {
			bestSim = sim
			best = &contacts[i]
		}
	}
	// Below half the tokens shared, the match is noise.
	if best == nil || bestSim < 0.5 {
		return nil
	}

	confidence := contactMinConfidence + int(math.Round(bestSim*30))
	confidence += recencyBonus(best.LastBookedAt)
	if confidence > contactMaxConfidence {
		confidence = contactMaxConfidence
	}
	// A contact without any usable ledger account cannot be auto-booked;
	// the candidate still surfaces as a review suggestion.
	if best.DefaultLedgerAccountID == 0 && best.SettlementAccountID == 0 {
		if confidence > proposalCap {
			confidence = proposalCap
		}
	}

	return &domain.MatchCandidate{
		Kind:            domain.KindExistingContact,
		ContactID:       best.ID,
		ContactName:     best.CompanyName,
		LedgerAccountID: best.DefaultLedgerAccountID,
		VATRate:         m.vatRateFor(best),
		Confidence:      confidence,
		Reason:          fmt.Sprintf("name similarity %.2f to known contact", bestSim),
	}
}

// propose builds a new-contact candidate for a first-time counterparty.
// The ledger account suggestion comes from the external classifier when one
// is configured, else from the keyword rules, else from the transaction
// direction. Classifier timeouts surface as domain.ErrMatchTimeout.
func (m *Matcher) propose(ctx context.Context, txn *domain.RawTransaction) (*domain.MatchCandidate, error) {
	name := CleanCounterpartyName(counterpartyText(txn))
	if name == "" {
		return nil, nil
	}

	hint, boost, external, err := m.accountHint(ctx, txn)
	if err != nil {
		return nil, err
	}

	// Keyword rules are internal configuration; only an external
	// classification signal may push a proposal past the cap.
	confidence := proposalBase + boost
	if !external && confidence > proposalCap {
		confidence = proposalCap
	}

	vat := m.cfg.StandardVATRate
	if hint.vatRate != nil {
		vat = *hint.vatRate
	}

	return &domain.MatchCandidate{
		Kind:        domain.KindNewContact,
		ContactName: name,
		NewAccountProposal: &domain.AccountProposal{
			Code: hint.code,
			Name: hint.name,
			Type: hint.accountType,
		},
		VATRate:    vat,
		Confidence: confidence,
		Reason:     hint.reason,
	}, nil
}

type hint struct {
	code        string
	name        string
	accountType domain.AccountType
	vatRate     *decimal.Decimal
	reason      string
}

// accountHint resolves the proposed ledger account for a new counterparty.
// The external return is true only for classifier-sourced hints.
func (m *Matcher) accountHint(ctx context.Context, txn *domain.RawTransaction) (hint, int, bool, error) {
	if m.classifier != nil {
		cctx, cancel := context.WithTimeout(ctx, m.cfg.ClassifierTimeout)
		defer cancel()
		res, err := m.classifier.Classify(cctx, txn.Counterparty(), txn.Description(), txn.Amount())
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return hint{}, 0, false, fmt.Errorf("classifying %q: %w", txn.Counterparty(), domain.ErrMatchTimeout)
		case err != nil:
			// A broken classifier must not fail the transaction; fall
			// through to the keyword rules.
		case res != nil:
			return hint{
				code:        res.AccountCode,
				name:        res.AccountName,
				accountType: res.AccountType,
				vatRate:     &res.VATRate,
				reason:      "external classification: " + res.RuleName,
			}, res.ConfidenceBoost, true, nil
		}
	}

	if res, ok := m.rules.Match(txn.Counterparty(), txn.Description()); ok {
		return hint{
			code:        res.AccountCode,
			name:        res.AccountName,
			accountType: res.AccountType,
			vatRate:     &res.VATRate,
			reason:      "keyword rule: " + res.RuleName,
		}, res.ConfidenceBoost, false, nil
	}

	if txn.IsCredit() {
		return hint{
			code:        m.cfg.NewRevenueCode,
			name:        "Other revenue",
			accountType: domain.AccountTypeRevenue,
			reason:      "first-time payer, generic revenue account",
		}, 0, false, nil
	}
	return hint{
		code:        m.cfg.NewExpenseCode,
		name:        "Other expenses",
		accountType: domain.AccountTypeExpense,
		reason:      "first-time vendor, generic expense account",
	}, 0, false, nil
}

// vatRateFor returns the contact's historical VAT rate when it carries
// one, else the standard rate.
func (m *Matcher) vatRateFor(c *domain.Contact) decimal.Decimal {
	if c != nil && c.VATRate.Sign() > 0 {
		return c.VATRate
	}
	return m.cfg.StandardVATRate
}

// recencyBonus rewards contacts booked recently: frequent vendors are more
// likely to be the right match.
func recencyBonus(lastBooked time.Time) int {
	if lastBooked.IsZero() {
		return 0
	}
	since := time.Since(lastBooked)
	switch {
	case since <= 90*24*time.Hour:
		return 4
	case since <= 365*24*time.Hour:
		return 2
	default:
		return 0
	}
}

func findContact(contacts []domain.Contact, id int64) *domain.Contact {
	for i := range contacts {
		if contacts[i].ID == id {
			return &contacts[i]
		}
	}
	return nil
}

// containsName reports whether folded needle occurs in folded haystack.
func containsName(haystack, needle string) bool {
	return needle != "" && strings.Contains(haystack, needle)
}
