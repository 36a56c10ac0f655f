package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
)

// capture redirects the color output to a buffer, with colors disabled so
// assertions see the bare text. Step's message half goes to stdout and is
// not captured; its prefix is.
func capture(t *testing.T, fn func()) string {
	t.Helper()
	prevOut, prevNoColor := color.Output, color.NoColor
	var buf bytes.Buffer
	color.Output = &buf
	color.NoColor = true
	defer func() {
		color.Output = prevOut
		color.NoColor = prevNoColor
	}()
	fn()
	return buf.String()
}

func TestCenter(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  string
	}{
		{"Importing Bank Statement", 60, strings.Repeat(" ", 18) + "Importing Bank Statement"},
		{"ok", 6, "  ok"},
		{"odd", 6, " odd"},
		{"exactly six", 11, "exactly six"},
		{"wider than the banner", 10, "wider than the banner"},
	}
	for _, tt := range tests {
		if got := center(tt.text, tt.width); got != tt.want {
			t.Errorf("center(%q, %d) = %q; want %q", tt.text, tt.width, got, tt.want)
		}
	}
}

func TestHeader(t *testing.T) {
	out := capture(t, func() { Header("Importing Bank Statement") })

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("Header printed %d lines; want 3", len(lines))
	}
	banner := strings.Repeat("=", 60)
	if lines[0] != banner || lines[2] != banner {
		t.Errorf("banner lines = %q / %q; want 60 equals signs", lines[0], lines[2])
	}
	if strings.TrimSpace(lines[1]) != "Importing Bank Statement" {
		t.Errorf("title line = %q; want the centered title", lines[1])
	}
}

func TestStepPrefix(t *testing.T) {
	out := capture(t, func() { Step(2, 3, "Processing statement.csv") })
	if out != "[2/3] " {
		t.Errorf("step prefix = %q; want %q", out, "[2/3] ")
	}
}

func TestOutcomeMarkers(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string)
		want string
	}{
		{"Success", Success, "✓ 2 processed, 1 auto-booked\n"},
		{"Warning", Warning, "! 2 processed, 1 auto-booked\n"},
		{"Error", Error, "✗ 2 processed, 1 auto-booked\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := capture(t, func() { tt.fn("2 processed, 1 auto-booked") })
			if out != tt.want {
				t.Errorf("output = %q; want %q", out, tt.want)
			}
		})
	}
}

func TestInfo(t *testing.T) {
	out := capture(t, func() { Info("3 transactions need review") })
	if out != "3 transactions need review\n" {
		t.Errorf("output = %q; want the bare message", out)
	}
}

func TestTextHelpersKeepContent(t *testing.T) {
	// With colors off the helpers must return the text untouched; with
	// colors on they only wrap it.
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	if got := BlueText("statement.csv"); got != "statement.csv" {
		t.Errorf("BlueText = %q; want unmodified text", got)
	}
	if got := YellowText("3 transactions need review:"); got != "3 transactions need review:" {
		t.Errorf("YellowText = %q; want unmodified text", got)
	}
}
