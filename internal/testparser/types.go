// Package testparser extracts test-case counts from the output of test
// runners, so a unit that wraps a whole test file can report how many cases
// it ran.
package testparser

import "github.com/jj-shen99/testbench/internal/model"

// Parser recognises one test runner's output format.
type Parser interface {
	// Name returns the parser name used in workflow files.
	Name() string
	// Parse extracts case counts from output. ok is false when output
	// contains nothing the parser recognises.
	Parse(output string) (counts model.CaseCounts, ok bool)
}

// maxReasonLen keeps failure reasons to one terminal line.
const maxReasonLen = 80

func truncate(s string) string {
	if len(s) > maxReasonLen {
		return s[:maxReasonLen-3] + "..."
	}
	return s
}
