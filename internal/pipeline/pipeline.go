// Package pipeline orchestrates a statement import: detect the format,
// parse, deduplicate, match, decide, and post, then aggregate the report.
// Transactions within one file are processed concurrently by a bounded
// worker pool; dedup lookups and postings against the same bank account or
// contact are serialized with per-key locks.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/rumor-ml/commons.systems/bankimport/internal/decide"
	"github.com/rumor-ml/commons.systems/bankimport/internal/dedup"
	"github.com/rumor-ml/commons.systems/bankimport/internal/detect"
	"github.com/rumor-ml/commons.systems/bankimport/internal/domain"
	"github.com/rumor-ml/commons.systems/bankimport/internal/extract"
	"github.com/rumor-ml/commons.systems/bankimport/internal/match"
	"github.com/rumor-ml/commons.systems/bankimport/internal/parser"
	"github.com/rumor-ml/commons.systems/bankimport/internal/posting"
	"github.com/rumor-ml/commons.systems/bankimport/internal/report"
	"github.com/rumor-ml/commons.systems/bankimport/internal/store"
)

// errInvoiceSettled reports that a matched invoice was paid by another
// transaction between matching and posting. The loser of that race defers
// to review instead of failing.
var errInvoiceSettled = errors.New("invoice settled by a concurrent booking")

// documentExtensions route to the opaque-document extractor instead of the
// text format detector.
var documentExtensions = map[string]struct{}{
	".pdf": {}, ".png": {}, ".jpg": {}, ".jpeg": {}, ".tiff": {},
}

// Config tunes an Importer.
type Config struct {
	// Workers bounds concurrent transaction processing within one file.
	Workers int
	// DryRun computes outcomes without persisting transactions or
	// journal entries.
	DryRun bool
	// Verbose logs per-transaction progress to stderr.
	Verbose bool
	// BankLedgerAccountID is the ledger account representing the bank
	// account on the balance sheet. Required unless DryRun is set.
	BankLedgerAccountID int64
}

// Importer runs statement imports against one store.
type Importer struct {
	store     *store.Store
	detector  *detect.Detector
	extractor extract.DocumentExtractor
	matcher   *match.Matcher
	dedup     *dedup.Deduplicator
	poster    *posting.Engine
	cfg       Config
	locks     *keyedMutex
}

// New creates an Importer. extractor may be nil; opaque documents then
// fail with ErrExtractionFailed.
func New(st *store.Store, detector *detect.Detector, extractor extract.DocumentExtractor, matcher *match.Matcher, poster *posting.Engine, cfg Config) *Importer {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if extractor == nil {
		extractor = extract.Unavailable{}
	}
	return &Importer{
		store:     st,
		detector:  detector,
		extractor: extractor,
		matcher:   matcher,
		dedup:     dedup.New(st),
		poster:    poster,
		cfg:       cfg,
		locks:     newKeyedMutex(),
	}
}

// ImportStatement runs the full pipeline for one file against one bank
// account and returns the analysis report. File-level failures (unsupported
// format, failed extraction, unusable file) return a report with zero
// successes and the error listed; per-transaction failures never abort the
// batch. Cancelling ctx stops processing further transactions and leaves
// already-committed entries intact.
func (imp *Importer) ImportStatement(ctx context.Context, filename string, content []byte, bankAccountID int64) (*report.Report, error) {
	started := time.Now()

	meta, err := parser.NewMetadata(filename, bankAccountID, started)
	if err != nil {
		return report.FileFailure(filename, err), err
	}

	result, err := imp.parse(ctx, filename, content, meta)
	if err != nil {
		return report.FileFailure(filename, err), err
	}

	agg := report.NewAggregator(filename)
	agg.AddSkipped(result.Skipped)
	for _, w := range result.Warnings {
		log.Printf("WARN: %s: %s", filename, w)
	}

	imp.processAll(ctx, bankAccountID, result.Transactions, agg)

	rep := agg.Build()
	if !imp.cfg.DryRun {
		run := &store.RunRecord{
			Filename:       filename,
			BankAccountID:  bankAccountID,
			StartedAt:      started,
			FinishedAt:     time.Now(),
			TotalProcessed: rep.TotalProcessed,
			AutoBooked:     rep.AutoBooked,
			NeedsReview:    rep.NeedsReview,
			Duplicates:     rep.Duplicates,
			Errors:         rep.Errors,
		}
		if err := imp.store.RecordRun(ctx, run); err != nil {
			log.Printf("WARN: failed to record import run for %s: %v", filename, err)
		}
	}
	return rep, nil
}

// parse picks the parser (or document extractor) and runs it.
func (imp *Importer) parse(ctx context.Context, filename string, content []byte, meta *parser.Metadata) (*parser.Result, error) {
	if isDocument(filename) {
		return imp.extractor.Extract(ctx, filename, content)
	}

	p, decoded, err := imp.detector.Detect(filename, content)
	if err != nil {
		return nil, err
	}
	if imp.cfg.Verbose {
		log.Printf("detected format %s for %s", p.Name(), filename)
	}

	res, err := p.Parse(ctx, bytes.NewReader(decoded), meta)
	if err != nil {
		return nil, fmt.Errorf("%s parser: %w", p.Name(), err)
	}
	return res, nil
}

func isDocument(filename string) bool {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return false
	}
	_, ok := documentExtensions[strings.ToLower(filename[idx:])]
	return ok
}

// processAll fans transactions out to the worker pool. Report details
// follow completion order; the counts are order-independent.
func (imp *Importer) processAll(ctx context.Context, bankAccountID int64, txns []*domain.RawTransaction, agg *report.Aggregator) {
	jobs := make(chan *domain.RawTransaction)
	var wg sync.WaitGroup

	for i := 0; i < imp.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for txn := range jobs {
				imp.processOne(ctx, bankAccountID, txn, agg)
			}
		}()
	}

feed:
	for _, txn := range txns {
		select {
		case <-ctx.Done():
			// Stop feeding; in-flight transactions finish and their
			// committed entries stay committed.
			break feed
		case jobs <- txn:
		}
	}
	close(jobs)
	wg.Wait()
}

// processOne runs dedup → match → decide → post for a single transaction.
// Panics and errors are confined to this transaction: one bad record must
// not abort the batch.
func (imp *Importer) processOne(ctx context.Context, bankAccountID int64, txn *domain.RawTransaction, agg *report.Aggregator) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: panic processing transaction %q: %v", txn.Description(), r)
			agg.Record(report.Detail{
				Description: txn.Description(),
				Amount:      txn.Amount().StringFixed(2),
				Outcome:     report.OutcomeError,
				Err:         fmt.Sprintf("panic: %v", r),
			})
		}
	}()

	detail := report.Detail{
		Description: txn.Description(),
		Amount:      txn.Amount().StringFixed(2),
	}

	stored, duplicate, err := imp.storeNew(ctx, bankAccountID, txn)
	if err != nil {
		detail.Outcome = report.OutcomeError
		detail.Err = err.Error()
		agg.Record(detail)
		return
	}
	if duplicate {
		detail.Outcome = report.OutcomeDuplicate
		agg.Record(detail)
		return
	}
	if stored != nil {
		detail.TransactionID = stored.ID
	}

	// Matching may call out to a remote classifier; it runs outside the
	// account lock so a slow call does not serialize the whole batch.
	cand, err := imp.matcher.Match(ctx, txn)
	if err != nil {
		if errors.Is(err, domain.ErrMatchTimeout) {
			// Deferred, not failed: the transaction stays unmatched for
			// human review instead of being retried indefinitely.
			detail.Outcome = report.OutcomeNeedsReview
			agg.Record(detail)
			return
		}
		detail.Outcome = report.OutcomeError
		detail.Err = err.Error()
		agg.Record(detail)
		return
	}

	decision, settlementID, err := imp.decideFor(ctx, cand)
	if err != nil {
		detail.Outcome = report.OutcomeError
		detail.Err = err.Error()
		agg.Record(detail)
		return
	}
	detail.Candidate = cand
	detail.Confidence = decision.Confidence

	if !decision.AutoBook() {
		detail.Outcome = report.OutcomeNeedsReview
		agg.Record(detail)
		return
	}

	if imp.cfg.DryRun {
		detail.Outcome = outcomeFor(decision.Route)
		agg.Record(detail)
		return
	}

	if err := imp.post(ctx, bankAccountID, stored, decision, settlementID); err != nil {
		if errors.Is(err, errInvoiceSettled) {
			// Another worker settled the invoice first; this transaction
			// keeps its suggestion and goes to a human.
			detail.Outcome = report.OutcomeNeedsReview
			agg.Record(detail)
			return
		}
		if errors.Is(err, domain.ErrUnbalancedEntry) {
			// The one failure that must never pass silently.
			log.Printf("ERROR: unbalanced entry for transaction %s: %v", stored.ID, err)
		}
		detail.Outcome = report.OutcomeError
		detail.Err = err.Error()
		agg.Record(detail)
		return
	}

	detail.Outcome = outcomeFor(decision.Route)
	agg.Record(detail)
}

// storeNew serializes the fingerprint check and insert per bank account so
// two workers cannot both insert the same statement line.
func (imp *Importer) storeNew(ctx context.Context, bankAccountID int64, txn *domain.RawTransaction) (*domain.StoredBankTransaction, bool, error) {
	unlock := imp.locks.Lock(fmt.Sprintf("account:%d", bankAccountID))
	defer unlock()

	fingerprint, duplicate, err := imp.dedup.Check(ctx, bankAccountID, txn)
	if err != nil {
		return nil, false, err
	}
	if duplicate {
		return nil, true, nil
	}
	if imp.cfg.DryRun {
		return nil, false, nil
	}

	stored, err := imp.store.InsertBankTransaction(ctx, bankAccountID, fingerprint, txn)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

// decideFor applies the booking policy, resolving the candidate contact's
// settlement account first.
func (imp *Importer) decideFor(ctx context.Context, cand *domain.MatchCandidate) (domain.BookingDecision, int64, error) {
	var settlementID int64
	if cand != nil && cand.Kind == domain.KindExistingContact && cand.ContactID != 0 {
		contact, err := imp.store.ContactByID(ctx, cand.ContactID)
		if err != nil {
			return domain.BookingDecision{}, 0, fmt.Errorf("resolving contact %d: %w", cand.ContactID, err)
		}
		settlementID = contact.SettlementAccountID
	}
	return decide.Decide(cand, settlementID != 0), settlementID, nil
}

// post builds and commits the journal entry, serialized per bank account
// and per contact to avoid double-spending an invoice balance.
func (imp *Importer) post(ctx context.Context, bankAccountID int64, stored *domain.StoredBankTransaction, decision domain.BookingDecision, settlementID int64) error {
	unlockAccount := imp.locks.Lock(fmt.Sprintf("account:%d", bankAccountID))
	defer unlockAccount()
	if decision.Candidate.ContactID != 0 {
		unlockContact := imp.locks.Lock(fmt.Sprintf("contact:%d", decision.Candidate.ContactID))
		defer unlockContact()
	}

	// Matching ran outside the lock and may have seen the invoice as still
	// open; recheck now that the contact is held.
	if invoiceID := decision.Candidate.InvoiceID; invoiceID != 0 {
		paid, err := imp.store.InvoicePaid(ctx, invoiceID)
		if err != nil {
			return fmt.Errorf("rechecking invoice %d: %w", invoiceID, err)
		}
		if paid {
			return fmt.Errorf("invoice %d: %w", invoiceID, errInvoiceSettled)
		}
	}

	entry, err := imp.poster.Build(imp.cfg.BankLedgerAccountID, stored, decision, settlementID)
	if err != nil {
		return err
	}
	return imp.store.PostJournalEntry(ctx, entry, decision.Candidate.InvoiceID)
}

func outcomeFor(route domain.BookingRoute) report.Outcome {
	if route == domain.RouteRelation {
		return report.OutcomeAutoBookedRelation
	}
	return report.OutcomeAutoBookedDirect
}
