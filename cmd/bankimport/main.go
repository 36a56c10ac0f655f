package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rumor-ml/commons.systems/bankimport/internal/detect"
	"github.com/rumor-ml/commons.systems/bankimport/internal/match"
	"github.com/rumor-ml/commons.systems/bankimport/internal/output"
	"github.com/rumor-ml/commons.systems/bankimport/internal/pipeline"
	"github.com/rumor-ml/commons.systems/bankimport/internal/posting"
	"github.com/rumor-ml/commons.systems/bankimport/internal/report"
	"github.com/rumor-ml/commons.systems/bankimport/internal/rules"
	"github.com/rumor-ml/commons.systems/bankimport/internal/store"
	"github.com/rumor-ml/commons.systems/bankimport/internal/ui"
)

const (
	version = "0.1.0"
)

var (
	// Global flags
	versionFlag = flag.Bool("version", false, "Show version")

	// Core CLI flags
	inputFile = flag.String("file", "", "Statement file to import (required)")
	accountID = flag.Int64("account", 0, "Bank account ID the statement belongs to (required)")
	dbPath    = flag.String("db", "bankimport.db", "SQLite database path")
	jsonOut   = flag.String("output", "", "Write the analysis report as JSON to this file")
	dryRun    = flag.Bool("dry-run", false, "Analyze without storing transactions or postings")
	verbose   = flag.Bool("verbose", false, "Show detailed processing logs")
	workers   = flag.Int("workers", 4, "Concurrent transaction workers")

	// Booking configuration
	rulesFile     = flag.String("rules", "", "Keyword rules file (default: embedded rules)")
	bankLedgerID  = flag.Int64("bank-ledger", 0, "Ledger account ID for the bank account (required unless -dry-run)")
	vatPayableID  = flag.Int64("vat-payable", 0, "Ledger account ID for VAT payable")
	vatReceivable = flag.Int64("vat-receivable", 0, "Ledger account ID for VAT receivable")
)

func main() {
	// Custom usage message
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `bankimport - Bank statement importer and reconciler

Usage:
  bankimport [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  # Import a statement against bank account 1
  bankimport -file statement.sta -account 1 -bank-ledger 12

  # Analyze without booking anything
  bankimport -file camt053.xml -account 1 -dry-run

  # Custom keyword rules, verbose output
  bankimport -file export.csv -account 2 -bank-ledger 12 -rules rules.yaml -verbose

`)
	}

	flag.Parse()

	// Handle version flag
	if *versionFlag {
		fmt.Printf("bankimport version %s\n", version)
		os.Exit(0)
	}

	// Validate required flags
	if *inputFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -file flag is required\n\n")
		flag.Usage()
		os.Exit(1)
	}
	if *accountID == 0 {
		fmt.Fprintf(os.Stderr, "Error: -account flag is required\n\n")
		flag.Usage()
		os.Exit(1)
	}
	if *bankLedgerID == 0 && !*dryRun {
		fmt.Fprintf(os.Stderr, "Error: -bank-ledger flag is required unless -dry-run is set\n\n")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !*verbose {
		ui.Header("Importing Bank Statement")
		ui.Step(1, 3, "Opening administration")
	} else {
		fmt.Fprintf(os.Stderr, "Opening database: %s\n", *dbPath)
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", *dbPath, err)
	}
	defer st.Close()

	var engine *rules.Engine
	if *rulesFile != "" {
		engine, err = rules.LoadFromFile(*rulesFile)
		if err != nil {
			return fmt.Errorf("failed to load rules file: %w", err)
		}
		if *verbose {
			fmt.Fprintf(os.Stderr, "Loaded %d custom rules from %s\n", len(engine.Rules()), *rulesFile)
		}
	} else {
		engine, err = rules.LoadEmbedded()
		if err != nil {
			return fmt.Errorf("failed to load embedded rules: %w", err)
		}
		if *verbose {
			fmt.Fprintf(os.Stderr, "Loaded %d embedded rules\n", len(engine.Rules()))
		}
	}

	detector := detect.New()
	if *verbose {
		fmt.Fprintf(os.Stderr, "Registered parsers: %v\n", detector.ListParsers())
	}

	matcher := match.New(st, engine, nil, match.DefaultConfig())
	poster := posting.New(posting.Config{
		VATPayableAccountID:    *vatPayableID,
		VATReceivableAccountID: *vatReceivable,
	})

	importer := pipeline.New(st, detector, nil, matcher, poster, pipeline.Config{
		Workers:             *workers,
		DryRun:              *dryRun,
		Verbose:             *verbose,
		BankLedgerAccountID: *bankLedgerID,
	})

	content, err := os.ReadFile(*inputFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", *inputFile, err)
	}

	if !*verbose {
		ui.Step(2, 3, fmt.Sprintf("Processing %s", filepath.Base(*inputFile)))
	}

	rep, err := importer.ImportStatement(ctx, *inputFile, content, *accountID)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	if !*verbose {
		ui.Step(3, 3, "Rendering report")
	}
	render(rep)

	if *jsonOut != "" {
		if err := output.WriteReportToFile(rep, *jsonOut); err != nil {
			return err
		}
		if *verbose {
			fmt.Fprintf(os.Stderr, "Wrote JSON report to %s\n", *jsonOut)
		}
	}
	return nil
}

// render prints the import analysis report to stdout.
func render(rep *report.Report) {
	ui.Success(rep.Summary())

	if len(rep.Histogram) > 0 && rep.TotalProcessed > 0 {
		fmt.Println("\nConfidence distribution:")
		for _, b := range rep.Histogram {
			fmt.Printf("  %7s  %4d  (%.1f%%)\n", b.Label, b.Count, b.Percent)
		}
	}

	var reviews, failures []report.Detail
	for _, d := range rep.Details {
		switch d.Outcome {
		case report.OutcomeNeedsReview:
			reviews = append(reviews, d)
		case report.OutcomeError:
			failures = append(failures, d)
		}
	}

	if len(reviews) > 0 {
		fmt.Printf("\n%s\n", ui.YellowText(fmt.Sprintf("%d transactions need review:", len(reviews))))
		for _, d := range reviews {
			suggestion := "no suggestion"
			if d.Candidate != nil {
				suggestion = fmt.Sprintf("%s (confidence %d)", d.Candidate.Reason, d.Confidence)
			}
			fmt.Printf("  %s  %s  %s\n", d.Amount, d.Description, suggestion)
		}
	}

	for _, d := range failures {
		ui.Error(fmt.Sprintf("%s  %s: %s", d.Amount, d.Description, d.Err))
	}
}
