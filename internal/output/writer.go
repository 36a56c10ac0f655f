// Package output serializes import analysis reports to JSON for
// downstream tooling and audit trails.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rumor-ml/commons.systems/bankimport/internal/report"
)

// WriteReport serializes a report to JSON with 2-space indentation.
func WriteReport(rep *report.Report, w io.Writer) error {
	if rep == nil {
		return fmt.Errorf("report cannot be nil")
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(rep); err != nil {
		return fmt.Errorf("failed to encode report as JSON: %w", err)
	}

	return nil
}

// WriteReportToFile writes a report to the given path, or to stdout when
// the path is empty.
func WriteReportToFile(rep *report.Report, filePath string) (err error) {
	if rep == nil {
		return fmt.Errorf("report cannot be nil")
	}

	if filePath == "" {
		return WriteReport(rep, os.Stdout)
	}

	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", filePath, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output file %s: %w", filePath, closeErr)
		}
	}()

	if err = WriteReport(rep, f); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", filePath, err)
	}

	return nil
}

// LoadReport reads a previously written report, e.g. to compare runs.
func LoadReport(filePath string) (*report.Report, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	f, err := os.Open(filePath)
	if err != nil {
		// Return unwrapped error so caller can check os.IsNotExist
		// to distinguish "file not found" from other loading errors
		return nil, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close %s: %v\n", filePath, closeErr)
		}
	}()

	var rep report.Report
	decoder := json.NewDecoder(f)
	if err := decoder.Decode(&rep); err != nil {
		return nil, fmt.Errorf("failed to decode report JSON: %w", err)
	}

	return &rep, nil
}
