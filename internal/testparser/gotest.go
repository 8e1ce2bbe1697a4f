package testparser

import (
	"regexp"
	"strings"

	"github.com/jj-shen99/testbench/internal/model"
)

var (
	goPassRegex = regexp.MustCompile(`(?m)^\s*---\s+PASS:\s+`)
	goFailRegex = regexp.MustCompile(`(?m)^\s*---\s+FAIL:\s+(\S+)`)
	goSkipRegex = regexp.MustCompile(`(?m)^\s*---\s+SKIP:\s+`)
	goErrorLine = regexp.MustCompile(`^\s+\S+\.go:\d+: (.*)$`)
)

// GoParser parses verbose `go test -v` output.
type GoParser struct{}

// Name returns the parser name.
func (p *GoParser) Name() string {
	return "go"
}

// Parse counts the result lines of each test and subtest:
//
//	--- PASS: TestFoo (0.00s)
//	--- FAIL: TestBar (0.01s)
//	--- SKIP: TestBaz (0.00s)
func (p *GoParser) Parse(output string) (model.CaseCounts, bool) {
	var counts model.CaseCounts
	counts.Passed = len(goPassRegex.FindAllString(output, -1))
	counts.Skipped = len(goSkipRegex.FindAllString(output, -1))

	lines := strings.Split(output, "\n")
	for _, m := range goFailRegex.FindAllStringSubmatch(output, -1) {
		counts.Failed++
		counts.Failures = append(counts.Failures, model.CaseFailure{
			Name:   m[1],
			Reason: goFailureReason(lines, m[1]),
		})
	}
	return counts, counts.Total() > 0
}

// goFailureReason returns the first file:line message logged by the test
// before its FAIL line.
func goFailureReason(lines []string, name string) string {
	failLine := -1
	for i, line := range lines {
		if m := goFailRegex.FindStringSubmatch(line); m != nil && m[1] == name {
			failLine = i
			break
		}
	}

	reason := ""
	for i := failLine - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "=== RUN") || strings.HasPrefix(line, "--- ") {
			break
		}
		if m := goErrorLine.FindStringSubmatch(lines[i]); m != nil {
			reason = m[1]
		}
	}
	return truncate(reason)
}
