// Package ui provides colored terminal output helpers for the CLI.
package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

const headerWidth = 60

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	stepColor    = color.New(color.FgBlue, color.Bold)
	successColor = color.New(color.FgGreen)
	infoColor    = color.New(color.FgWhite)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	blue         = color.New(color.FgBlue).SprintFunc()
	yellow       = color.New(color.FgYellow).SprintFunc()
)

// center left-pads text to sit in the middle of width columns.
func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	pad := (width - len(text)) / 2
	return strings.Repeat(" ", pad) + text
}

// Header prints a banner with the given title.
func Header(title string) {
	line := strings.Repeat("=", headerWidth)
	headerColor.Println(line)
	headerColor.Println(center(title, headerWidth))
	headerColor.Println(line)
}

// Step prints a numbered progress step, e.g. "[2/5] parsing".
func Step(current, total int, msg string) {
	stepColor.Printf("[%d/%d] ", current, total)
	fmt.Println(msg)
}

// Success prints a green checkmarked message.
func Success(msg string) {
	successColor.Printf("✓ %s\n", msg)
}

// Info prints a neutral message.
func Info(msg string) {
	infoColor.Println(msg)
}

// Warning prints a yellow warning message.
func Warning(msg string) {
	warnColor.Printf("! %s\n", msg)
}

// Error prints a red error message.
func Error(msg string) {
	errorColor.Printf("✗ %s\n", msg)
}

// BlueText returns the text wrapped in blue color codes.
func BlueText(text string) string {
	return blue(text)
}

// YellowText returns the text wrapped in yellow color codes.
func YellowText(text string) string {
	return yellow(text)
}
