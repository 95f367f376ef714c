package main

import (
	"fmt"
	"os"
)

// All human-facing feedback goes to stderr so stdout stays clean for anything
// a caller wants to pipe.
const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

func paint(code, s string) string {
	if noColor {
		return s
	}
	return code + s + ansiReset
}

func feedback(code, mark, format string, args ...any) {
	fmt.Fprintln(os.Stderr, paint(code, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { feedback(ansiGreen, "✓", format, args...) }
func printError(format string, args ...any)   { feedback(ansiRed, "✗", format, args...) }
func printWarning(format string, args ...any) { feedback(ansiYellow, "⚠", format, args...) }

// printStep announces a long-running phase; generation and analysis runs can
// sit for minutes behind the rate limiter.
func printStep(format string, args ...any) { feedback(ansiCyan, "→", format, args...) }

// printStatus renders one label/value line of the status report.
func printStatus(label, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", paint(ansiBold, label+":"), fmt.Sprintf(format, args...))
}
