// Package ui holds the ANSI styling used by the CLI.
package ui

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
)

// ANSI color and style constants for CLI output
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorDim   = "\033[2m"

	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorWhite  = "\033[97m"
	ColorRed    = "\033[31m"
)

// Enabled turns styling on or off; it defaults to whether stdout is a terminal
// and NO_COLOR is unset.
var Enabled = isatty.IsTerminal(os.Stdout.Fd()) && os.Getenv("NO_COLOR") == ""

func style(codes, s string) string {
	if !Enabled {
		return s
	}
	return codes + s + ColorReset
}

func Bold(s string) string    { return style(ColorBold, s) }
func Dim(s string) string     { return style(ColorDim, s) }
func Success(s string) string { return style(ColorGreen, s) }
func Warn(s string) string    { return style(ColorYellow, s) }
func Error(s string) string   { return style(ColorRed, s) }
func Command(s string) string { return style(ColorCyan, s) }

// Heading is a command title in help output
func Heading(s string) string { return style(ColorBold+ColorCyan, s) }

// Section is a block title such as "Usage" or "Flags"
func Section(s string) string { return style(ColorBold+ColorWhite, s) }

// Price formats an amount in dollars
func Price(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
