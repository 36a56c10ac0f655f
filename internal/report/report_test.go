package report

import (
	"strings"
	"sync"
	"testing"
)

func TestBuild_Counts(t *testing.T) {
	agg := NewAggregator("statement.sta")
	agg.AddSkipped(2)
	agg.Record(Detail{Outcome: OutcomeAutoBookedDirect, Confidence: 95})
	agg.Record(Detail{Outcome: OutcomeAutoBookedRelation, Confidence: 75})
	agg.Record(Detail{Outcome: OutcomeNeedsReview, Confidence: 42})
	agg.Record(Detail{Outcome: OutcomeDuplicate})
	agg.Record(Detail{Outcome: OutcomeError, Err: "boom"})

	rep := agg.Build()

	if rep.Filename != "statement.sta" {
		t.Errorf("Filename = %q; want statement.sta", rep.Filename)
	}
	if rep.TotalProcessed != 5 {
		t.Errorf("TotalProcessed = %d; want 5", rep.TotalProcessed)
	}
	if rep.AutoBooked != 2 {
		t.Errorf("AutoBooked = %d; want 2", rep.AutoBooked)
	}
	if rep.AutoBookedDirect != 1 || rep.AutoBookedRelation != 1 {
		t.Errorf("direct/relation = %d/%d; want 1/1", rep.AutoBookedDirect, rep.AutoBookedRelation)
	}
	if rep.NeedsReview != 1 {
		t.Errorf("NeedsReview = %d; want 1", rep.NeedsReview)
	}
	if rep.Duplicates != 1 {
		t.Errorf("Duplicates = %d; want 1", rep.Duplicates)
	}
	if rep.Errors != 1 {
		t.Errorf("Errors = %d; want 1", rep.Errors)
	}
	if rep.Skipped != 2 {
		t.Errorf("Skipped = %d; want 2", rep.Skipped)
	}
	if len(rep.Details) != 5 {
		t.Errorf("Details = %d; want 5", len(rep.Details))
	}
}

func TestBuild_ReimportIsAllDuplicates(t *testing.T) {
	agg := NewAggregator("again.sta")
	for i := 0; i < 4; i++ {
		agg.Record(Detail{Outcome: OutcomeDuplicate})
	}

	rep := agg.Build()
	// A re-imported file reports every line processed and duplicated, with
	// nothing booked.
	if rep.TotalProcessed != 4 || rep.Duplicates != 4 {
		t.Errorf("processed/duplicates = %d/%d; want 4/4", rep.TotalProcessed, rep.Duplicates)
	}
	if rep.AutoBooked != 0 || rep.NeedsReview != 0 || rep.Errors != 0 {
		t.Errorf("booked/review/errors = %d/%d/%d; want all zero",
			rep.AutoBooked, rep.NeedsReview, rep.Errors)
	}
}

func TestBuild_Histogram(t *testing.T) {
	agg := NewAggregator("x")
	agg.Record(Detail{Outcome: OutcomeAutoBookedDirect, Confidence: 100})
	agg.Record(Detail{Outcome: OutcomeAutoBookedDirect, Confidence: 90})
	agg.Record(Detail{Outcome: OutcomeNeedsReview, Confidence: 89})
	agg.Record(Detail{Outcome: OutcomeAutoBookedRelation, Confidence: 80})
	agg.Record(Detail{Outcome: OutcomeAutoBookedRelation, Confidence: 60})
	agg.Record(Detail{Outcome: OutcomeNeedsReview, Confidence: 42})
	agg.Record(Detail{Outcome: OutcomeNeedsReview, Confidence: 0})
	// Duplicates carry no confidence and stay out of the distribution.
	agg.Record(Detail{Outcome: OutcomeDuplicate})

	rep := agg.Build()
	if len(rep.Histogram) != 4 {
		t.Fatalf("got %d buckets; want 4", len(rep.Histogram))
	}

	wantCounts := map[string]int{
		"90-100": 2,
		"80-89":  2,
		"60-79":  1,
		"0-59":   2,
	}
	total := 0
	for _, b := range rep.Histogram {
		if b.Count != wantCounts[b.Label] {
			t.Errorf("bucket %s count = %d; want %d", b.Label, b.Count, wantCounts[b.Label])
		}
		total += b.Count
	}
	if total != 7 {
		t.Errorf("histogram total = %d; want 7 (duplicates excluded)", total)
	}

	// Percentages are relative to everything processed.
	for _, b := range rep.Histogram {
		wantPct := float64(b.Count) / 8 * 100
		if diff := b.Percent - wantPct; diff > 0.01 || diff < -0.01 {
			t.Errorf("bucket %s percent = %.2f; want %.2f", b.Label, b.Percent, wantPct)
		}
	}
}

func TestBuild_EmptyRun(t *testing.T) {
	rep := NewAggregator("empty.csv").Build()
	if rep.TotalProcessed != 0 {
		t.Errorf("TotalProcessed = %d; want 0", rep.TotalProcessed)
	}
	for _, b := range rep.Histogram {
		if b.Percent != 0 {
			t.Errorf("bucket %s percent = %.2f; want 0 for an empty run", b.Label, b.Percent)
		}
	}
}

func TestAggregator_ConcurrentRecord(t *testing.T) {
	agg := NewAggregator("concurrent")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			agg.Record(Detail{Outcome: OutcomeAutoBookedDirect, Confidence: 95})
		}()
	}
	wg.Wait()

	rep := agg.Build()
	if rep.TotalProcessed != 50 {
		t.Errorf("TotalProcessed = %d; want 50", rep.TotalProcessed)
	}
}

func TestFileFailure(t *testing.T) {
	rep := FileFailure("bad.bin", errUnsupported{})
	if rep.FileError == "" {
		t.Error("expected FileError to be set")
	}
	if rep.TotalProcessed != 0 {
		t.Errorf("TotalProcessed = %d; want 0", rep.TotalProcessed)
	}
	if !strings.Contains(rep.Summary(), "failed") {
		t.Errorf("Summary() = %q; want failure wording", rep.Summary())
	}
}

type errUnsupported struct{}

func (errUnsupported) Error() string { return "unsupported format" }

func TestSummary(t *testing.T) {
	agg := NewAggregator("statement.sta")
	agg.Record(Detail{Outcome: OutcomeAutoBookedDirect, Confidence: 95})
	agg.Record(Detail{Outcome: OutcomeNeedsReview, Confidence: 40})

	s := agg.Build().Summary()
	for _, want := range []string{"statement.sta", "2 processed", "1 auto-booked", "1 need review"} {
		if !strings.Contains(s, want) {
			t.Errorf("Summary() = %q; want it to contain %q", s, want)
		}
	}
}
