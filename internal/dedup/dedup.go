// Package dedup rejects statement lines already imported for a bank account
// via SHA256 fingerprinting against the transaction store.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rumor-ml/commons.systems/bankimport/internal/domain"
)

// Fingerprint creates a deterministic SHA256 hash identifying a statement
// line. Format: SHA256("{date}|{amount}|{party}|{ref}") where
//   - date is YYYY-MM-DD
//   - amount is formatted with 2 decimal places
//   - party is the counterparty account reference, or the normalized
//     counterparty name when no reference is present
//   - ref is the bank's source reference, or the normalized description
//     when the bank assigned none
//
// Normalization is lowercase, trimmed, and inner whitespace collapsed, so
// two lines differing only in whitespace or casing fingerprint identically.
func Fingerprint(txn *domain.RawTransaction) string {
	party := txn.CounterpartyRef()
	if party == "" {
		party = normalize(txn.Counterparty())
	}

	ref := txn.SourceRef()
	if ref == "" {
		ref = normalize(txn.Description())
	}

	input := fmt.Sprintf("%s|%s|%s|%s",
		txn.Date().Format("2006-01-02"),
		txn.Amount().StringFixed(2),
		party,
		ref,
	)

	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

// normalize lowercases, trims, and collapses runs of whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Store is the subset of the transaction store deduplication needs.
type Store interface {
	// HasFingerprint reports whether the fingerprint already exists for
	// the bank account.
	HasFingerprint(ctx context.Context, bankAccountID int64, fingerprint string) (bool, error)
}

// Deduplicator checks raw transactions against previously imported ones.
type Deduplicator struct {
	store Store
}

// New creates a Deduplicator backed by the given store.
func New(store Store) *Deduplicator {
	return &Deduplicator{store: store}
}

// Check computes the transaction's fingerprint and reports whether it is a
// duplicate for the bank account. Duplicates are an expected outcome, not
// an error; the error return covers store failures only.
func (d *Deduplicator) Check(ctx context.Context, bankAccountID int64, txn *domain.RawTransaction) (fingerprint string, duplicate bool, err error) {
	fingerprint = Fingerprint(txn)
	duplicate, err = d.store.HasFingerprint(ctx, bankAccountID, fingerprint)
	if err != nil {
		return "", false, fmt.Errorf("fingerprint lookup failed: %w", err)
	}
	return fingerprint, duplicate, nil
}
