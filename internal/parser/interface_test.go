package parser

import (
	"strings"
	"testing"
	"time"
)

func TestNewMetadata(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name          string
		filename      string
		bankAccountID int64
		detectedAt    time.Time
		wantErr       bool
	}{
		{"valid", "statement.sta", 1, now, false},
		{"empty filename", "", 1, now, true},
		{"zero account", "statement.sta", 0, now, true},
		{"negative account", "statement.sta", -3, now, true},
		{"zero time", "statement.sta", 1, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMetadata(tt.filename, tt.bankAccountID, tt.detectedAt)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewMetadata() error = %v; wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if m.BankAccountID() != tt.bankAccountID {
				t.Errorf("BankAccountID() = %d; want %d", m.BankAccountID(), tt.bankAccountID)
			}
		})
	}
}

func TestMetadata_FilenameStripsDirectory(t *testing.T) {
	m, err := NewMetadata("/home/user/statements/export.csv", 1, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Filename() != "export.csv" {
		t.Errorf("Filename() = %q; want %q", m.Filename(), "export.csv")
	}
}

func TestResult_Skip(t *testing.T) {
	var r Result
	r.Skip(3, "malformed amount")
	r.Skip(0, "truncated entry")

	if r.Skipped != 2 {
		t.Errorf("Skipped = %d; want 2", r.Skipped)
	}
	if len(r.Warnings) != 2 {
		t.Fatalf("Warnings length = %d; want 2", len(r.Warnings))
	}
	if got := r.Warnings[0].String(); !strings.Contains(got, "line 3") {
		t.Errorf("Warning.String() = %q; want line number included", got)
	}
	if got := r.Warnings[1].String(); strings.Contains(got, "line") {
		t.Errorf("Warning.String() = %q; want no line prefix for unknown line", got)
	}
}
