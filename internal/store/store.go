// Package store persists bank transactions, the chart of accounts,
// contacts, open invoices, and journal entries in SQLite. Journal posting
// is atomic: the entry, its lines, and the source transaction's status
// change commit together or not at all.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/rumor-ml/commons.systems/bankimport/internal/domain"
)

const timeLayout = time.RFC3339

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	// Serialized writes; SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// HasFingerprint reports whether a statement line with this fingerprint was
// already imported for the bank account.
func (s *Store) HasFingerprint(ctx context.Context, bankAccountID int64, fingerprint string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM bank_transactions WHERE bank_account_id = ? AND fingerprint = ?`,
		bankAccountID, fingerprint).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("fingerprint query failed: %w", err)
	}
	return n > 0, nil
}

// InsertBankTransaction persists a freshly deduplicated statement line with
// status unmatched and returns the stored record.
func (s *Store) InsertBankTransaction(ctx context.Context, bankAccountID int64, fingerprint string, raw *domain.RawTransaction) (*domain.StoredBankTransaction, error) {
	stored := &domain.StoredBankTransaction{
		ID:            uuid.NewString(),
		BankAccountID: bankAccountID,
		Fingerprint:   fingerprint,
		Raw:           *raw,
		Status:        domain.StatusUnmatched,
		ImportedAt:    time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bank_transactions
		 (id, bank_account_id, fingerprint, date, amount, description, counterparty, counterparty_ref, source_ref, status, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, bankAccountID, fingerprint,
		raw.Date().Format("2006-01-02"), raw.Amount().String(),
		raw.Description(), raw.Counterparty(), raw.CounterpartyRef(), raw.SourceRef(),
		string(stored.Status), stored.ImportedAt.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to insert bank transaction: %w", err)
	}
	return stored, nil
}

// TransactionStatus returns the current status of a stored transaction.
func (s *Store) TransactionStatus(ctx context.Context, transactionID string) (domain.TransactionStatus, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM bank_transactions WHERE id = ?`, transactionID).Scan(&status)
	if err != nil {
		return "", fmt.Errorf("status query failed for %s: %w", transactionID, err)
	}
	return domain.TransactionStatus(status), nil
}

// Accounts returns the chart of accounts, active entries only.
func (s *Store) Accounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, name, type, is_active FROM accounts WHERE is_active = 1 ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("accounts query failed: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		var active int
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &active); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		a.IsActive = active != 0
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// AccountByID fetches one chart-of-accounts entry.
func (s *Store) AccountByID(ctx context.Context, id int64) (*domain.Account, error) {
	var a domain.Account
	var active int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, code, name, type, is_active FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.Code, &a.Name, &a.Type, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("account query failed: %w", err)
	}
	a.IsActive = active != 0
	return &a, nil
}

// CreateAccount adds a new chart-of-accounts entry (used when an accepted
// new-contact proposal carries a new ledger account).
func (s *Store) CreateAccount(ctx context.Context, code, name string, typ domain.AccountType) (int64, error) {
	if !domain.ValidateAccountType(typ) {
		return 0, fmt.Errorf("invalid account type %q", typ)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (code, name, type, is_active) VALUES (?, ?, ?, 1)`,
		code, name, string(typ))
	if err != nil {
		return 0, fmt.Errorf("failed to create account %s: %w", code, err)
	}
	return res.LastInsertId()
}

// Contacts returns all contacts.
func (s *Store) Contacts(ctx context.Context) ([]domain.Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_name, email, default_ledger_account_id, settlement_account_id, vat_rate, last_booked_at
		 FROM contacts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("contacts query failed: %w", err)
	}
	defer rows.Close()

	var contacts []domain.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*domain.Contact, error) {
	var c domain.Contact
	var vatRate, lastBooked string
	if err := row.Scan(&c.ID, &c.CompanyName, &c.Email, &c.DefaultLedgerAccountID, &c.SettlementAccountID, &vatRate, &lastBooked); err != nil {
		return nil, fmt.Errorf("failed to scan contact: %w", err)
	}
	rate, err := decimal.NewFromString(vatRate)
	if err != nil {
		return nil, fmt.Errorf("contact %d has invalid vat rate %q: %w", c.ID, vatRate, err)
	}
	c.VATRate = rate
	if lastBooked != "" {
		t, err := time.Parse(timeLayout, lastBooked)
		if err != nil {
			return nil, fmt.Errorf("contact %d has invalid last_booked_at %q: %w", c.ID, lastBooked, err)
		}
		c.LastBookedAt = t
	}
	return &c, nil
}

// ContactByID fetches one contact.
func (s *Store) ContactByID(ctx context.Context, id int64) (*domain.Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, company_name, email, default_ledger_account_id, settlement_account_id, vat_rate, last_booked_at
		 FROM contacts WHERE id = ?`, id)
	c, err := scanContact(row)
	if err != nil {
		return nil, fmt.Errorf("contact %d: %w", id, err)
	}
	return c, nil
}

// CreateContact adds a contact record and returns its ID.
func (s *Store) CreateContact(ctx context.Context, c *domain.Contact) (int64, error) {
	if c.CompanyName == "" {
		return 0, fmt.Errorf("contact company name cannot be empty")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (company_name, email, default_ledger_account_id, settlement_account_id, vat_rate, last_booked_at)
		 VALUES (?, ?, ?, ?, ?, '')`,
		c.CompanyName, c.Email, c.DefaultLedgerAccountID, c.SettlementAccountID, c.VATRate.String())
	if err != nil {
		return 0, fmt.Errorf("failed to create contact %s: %w", c.CompanyName, err)
	}
	return res.LastInsertId()
}

// OpenInvoices returns all unpaid invoices joined with their contact name.
func (s *Store) OpenInvoices(ctx context.Context) ([]domain.Invoice, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT i.id, i.contact_id, c.company_name, i.number, i.outstanding, i.issued_at
		 FROM invoices i JOIN contacts c ON c.id = i.contact_id
		 WHERE i.paid = 0 ORDER BY i.issued_at`)
	if err != nil {
		return nil, fmt.Errorf("open invoices query failed: %w", err)
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		var inv domain.Invoice
		var outstanding, issued string
		if err := rows.Scan(&inv.ID, &inv.ContactID, &inv.ContactName, &inv.Number, &outstanding, &issued); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		amount, err := decimal.NewFromString(outstanding)
		if err != nil {
			return nil, fmt.Errorf("invoice %d has invalid outstanding amount %q: %w", inv.ID, outstanding, err)
		}
		inv.Outstanding = amount
		t, err := time.Parse("2006-01-02", issued)
		if err != nil {
			return nil, fmt.Errorf("invoice %d has invalid issue date %q: %w", inv.ID, issued, err)
		}
		inv.IssuedAt = t
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// CreateInvoice adds an open invoice (test and bootstrap helper for the
// invoices collaborator).
func (s *Store) CreateInvoice(ctx context.Context, contactID int64, number string, outstanding decimal.Decimal, issuedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO invoices (contact_id, number, outstanding, issued_at, paid) VALUES (?, ?, ?, ?, 0)`,
		contactID, number, outstanding.String(), issuedAt.Format("2006-01-02"))
	if err != nil {
		return 0, fmt.Errorf("failed to create invoice %s: %w", number, err)
	}
	return res.LastInsertId()
}

// InvoicePaid reports whether an invoice has been settled.
func (s *Store) InvoicePaid(ctx context.Context, invoiceID int64) (bool, error) {
	var paid int
	err := s.db.QueryRowContext(ctx, `SELECT paid FROM invoices WHERE id = ?`, invoiceID).Scan(&paid)
	if err != nil {
		return false, fmt.Errorf("invoice %d query failed: %w", invoiceID, err)
	}
	return paid != 0, nil
}

// PostJournalEntry commits a balanced journal entry and marks the source
// bank transaction booked, atomically. If invoiceID is non-zero the invoice
// is marked paid in the same transaction. The balance invariant is checked
// before any write; an unbalanced entry is never partially committed.
func (s *Store) PostJournalEntry(ctx context.Context, entry *domain.JournalEntry, invoiceID int64) error {
	if !entry.Balanced() {
		return fmt.Errorf("entry %s: debit %s != credit %s: %w",
			entry.ID, entry.TotalDebit().StringFixed(2), entry.TotalCredit().StringFixed(2),
			domain.ErrUnbalancedEntry)
	}
	if len(entry.Lines) < 2 {
		return fmt.Errorf("entry %s must have at least two lines, got %d", entry.ID, len(entry.Lines))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin posting transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(timeLayout)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO journal_entries (id, date, description, contact_id, transaction_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Date.Format("2006-01-02"), entry.Description,
		entry.ContactID, entry.TransactionID, now); err != nil {
		return fmt.Errorf("failed to insert journal entry %s: %w", entry.ID, err)
	}

	for i, line := range entry.Lines {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO journal_lines (entry_id, line_no, account_id, description, debit, credit)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			entry.ID, i+1, line.AccountID, line.Description,
			line.Debit.String(), line.Credit.String()); err != nil {
			return fmt.Errorf("failed to insert line %d of entry %s: %w", i+1, entry.ID, err)
		}
	}

	// Booked exactly once: the guard on status catches concurrent postings
	// of the same transaction.
	res, err := tx.ExecContext(ctx,
		`UPDATE bank_transactions SET status = ? WHERE id = ? AND status = ?`,
		string(domain.StatusBooked), entry.TransactionID, string(domain.StatusUnmatched))
	if err != nil {
		return fmt.Errorf("failed to mark transaction %s booked: %w", entry.TransactionID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check booking update: %w", err)
	}
	if affected != 1 {
		return fmt.Errorf("transaction %s is not in unmatched state", entry.TransactionID)
	}

	if invoiceID != 0 {
		res, err := tx.ExecContext(ctx,
			`UPDATE invoices SET paid = 1 WHERE id = ? AND paid = 0`, invoiceID)
		if err != nil {
			return fmt.Errorf("failed to mark invoice %d paid: %w", invoiceID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check invoice update: %w", err)
		}
		if affected != 1 {
			return fmt.Errorf("invoice %d is not open", invoiceID)
		}
	}

	if entry.ContactID != 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE contacts SET last_booked_at = ? WHERE id = ?`, now, entry.ContactID); err != nil {
			return fmt.Errorf("failed to update contact %d booking time: %w", entry.ContactID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit entry %s: %w", entry.ID, err)
	}
	return nil
}

// JournalEntryCount returns the number of committed journal entries.
func (s *Store) JournalEntryCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM journal_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("journal entry count failed: %w", err)
	}
	return n, nil
}

// RunRecord summarizes one import run for auditing.
type RunRecord struct {
	ID             string
	Filename       string
	BankAccountID  int64
	StartedAt      time.Time
	FinishedAt     time.Time
	TotalProcessed int
	AutoBooked     int
	NeedsReview    int
	Duplicates     int
	Errors         int
}

// RecordRun persists an import run summary.
func (s *Store) RecordRun(ctx context.Context, r *RunRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_runs
		 (id, filename, bank_account_id, started_at, finished_at, total_processed, auto_booked, needs_review, duplicates, errors)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Filename, r.BankAccountID,
		r.StartedAt.UTC().Format(timeLayout), r.FinishedAt.UTC().Format(timeLayout),
		r.TotalProcessed, r.AutoBooked, r.NeedsReview, r.Duplicates, r.Errors)
	if err != nil {
		return fmt.Errorf("failed to record import run: %w", err)
	}
	return nil
}
