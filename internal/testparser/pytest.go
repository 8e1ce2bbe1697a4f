package testparser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jj-shen99/testbench/internal/model"
)

var (
	pytestPassedRegex  = regexp.MustCompile(`(\d+) passed`)
	pytestFailedRegex  = regexp.MustCompile(`(\d+) failed`)
	pytestSkippedRegex = regexp.MustCompile(`(\d+) skipped`)
	pytestFailureRegex = regexp.MustCompile(`(?m)^FAILED (\S+)(?: - (.*))?$`)
)

// PytestParser parses Python pytest output.
type PytestParser struct{}

// Name returns the parser name.
func (p *PytestParser) Name() string {
	return "pytest"
}

// Parse reads the final summary line and the short test summary:
//
//	FAILED tests/test_api.py::test_create - AssertionError: 404 != 201
//	======= 45 passed, 2 failed, 3 skipped in 0.12s =======
func (p *PytestParser) Parse(output string) (model.CaseCounts, bool) {
	summary := lastSummaryLine(output)
	if summary == "" {
		return model.CaseCounts{}, false
	}

	var counts model.CaseCounts
	counts.Passed = firstInt(pytestPassedRegex, summary)
	counts.Failed = firstInt(pytestFailedRegex, summary)
	counts.Skipped = firstInt(pytestSkippedRegex, summary)

	for _, m := range pytestFailureRegex.FindAllStringSubmatch(output, -1) {
		counts.Failures = append(counts.Failures, model.CaseFailure{
			Name:   m[1],
			Reason: truncate(strings.TrimSpace(m[2])),
		})
	}
	return counts, true
}

// lastSummaryLine returns the last "=== ... in Ns ===" line.
func lastSummaryLine(output string) string {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "=") && strings.Contains(line, " in ") &&
			(strings.Contains(line, "passed") || strings.Contains(line, "failed") || strings.Contains(line, "skipped")) {
			return line
		}
	}
	return ""
}

func firstInt(re *regexp.Regexp, s string) int {
	if m := re.FindStringSubmatch(s); len(m) >= 2 {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}
