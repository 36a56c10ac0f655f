// Package report accumulates per-transaction outcomes into the import
// analysis report returned to the caller.
package report

import (
	"fmt"
	"sync"

	"github.com/rumor-ml/commons.systems/bankimport/internal/domain"
)

// Outcome classifies what happened to one transaction.
type Outcome string

const (
	OutcomeAutoBookedDirect   Outcome = "auto-booked-direct"
	OutcomeAutoBookedRelation Outcome = "auto-booked-relation"
	OutcomeNeedsReview        Outcome = "needs-review"
	OutcomeDuplicate          Outcome = "duplicate"
	OutcomeError              Outcome = "error"
)

// Detail is one transaction's result, kept for UI rendering. A deferred
// transaction carries its best-effort candidate so a human can accept,
// edit, or reject the suggestion.
type Detail struct {
	TransactionID string
	Description   string
	Amount        string
	Outcome       Outcome
	Confidence    int
	Candidate     *domain.MatchCandidate
	Err           string
}

// HistogramBucket is one fixed confidence band.
type HistogramBucket struct {
	Label   string
	Low     int
	High    int
	Count   int
	Percent float64
}

// Report is the aggregate outcome of one import run. Built once per run,
// read-only afterward.
type Report struct {
	Filename           string
	TotalProcessed     int
	AutoBooked         int
	AutoBookedDirect   int
	AutoBookedRelation int
	NeedsReview        int
	Duplicates         int
	Skipped            int
	Errors             int
	FileError          string
	Details            []Detail
	Histogram          []HistogramBucket
}

// Aggregator collects outcomes as the pipeline processes transactions.
// Safe for concurrent use by the worker pool.
type Aggregator struct {
	mu       sync.Mutex
	filename string
	skipped  int
	details  []Detail
}

// NewAggregator creates an aggregator for one file.
func NewAggregator(filename string) *Aggregator {
	return &Aggregator{filename: filename}
}

// AddSkipped records parser-level skips (malformed lines).
func (a *Aggregator) AddSkipped(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.skipped += n
}

// Record adds one transaction outcome.
func (a *Aggregator) Record(d Detail) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.details = append(a.details, d)
}

// histogram bands are fixed: [90-100], [80-89], [60-79], [0-59].
var bands = []struct {
	label     string
	low, high int
}{
	{"90-100", 90, 100},
	{"80-89", 80, 89},
	{"60-79", 60, 79},
	{"0-59", 0, 59},
}

// Build produces the final report. Duplicates count as processed but are
// reported separately from errors; they are an expected outcome.
func (a *Aggregator) Build() *Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	r := &Report{
		Filename: a.filename,
		Skipped:  a.skipped,
		Details:  append([]Detail(nil), a.details...),
	}

	// Duplicates count as processed: a re-imported file reports
	// duplicates == totalProcessed, not an empty run.
	for _, d := range a.details {
		switch d.Outcome {
		case OutcomeDuplicate:
			r.Duplicates++
		case OutcomeAutoBookedDirect:
			r.AutoBooked++
			r.AutoBookedDirect++
		case OutcomeAutoBookedRelation:
			r.AutoBooked++
			r.AutoBookedRelation++
		case OutcomeNeedsReview:
			r.NeedsReview++
		case OutcomeError:
			r.Errors++
		}
		r.TotalProcessed++
	}

	r.Histogram = make([]HistogramBucket, len(bands))
	for i, b := range bands {
		r.Histogram[i] = HistogramBucket{Label: b.label, Low: b.low, High: b.high}
	}
	for _, d := range a.details {
		if d.Outcome == OutcomeDuplicate {
			continue
		}
		for i := range r.Histogram {
			if d.Confidence >= r.Histogram[i].Low && d.Confidence <= r.Histogram[i].High {
				r.Histogram[i].Count++
				break
			}
		}
	}
	if r.TotalProcessed > 0 {
		for i := range r.Histogram {
			r.Histogram[i].Percent = float64(r.Histogram[i].Count) / float64(r.TotalProcessed) * 100
		}
	}

	return r
}

// FileFailure builds the report for a file-level fatal error: zero
// successes, the error listed.
func FileFailure(filename string, err error) *Report {
	return &Report{
		Filename:  filename,
		FileError: err.Error(),
	}
}

// Summary renders a one-line overview.
func (r *Report) Summary() string {
	if r.FileError != "" {
		return fmt.Sprintf("%s: failed: %s", r.Filename, r.FileError)
	}
	return fmt.Sprintf("%s: %d processed, %d auto-booked (%d direct, %d relation), %d need review, %d duplicates, %d errors",
		r.Filename, r.TotalProcessed, r.AutoBooked, r.AutoBookedDirect, r.AutoBookedRelation,
		r.NeedsReview, r.Duplicates, r.Errors)
}
