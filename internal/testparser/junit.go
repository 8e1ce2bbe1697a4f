package testparser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jj-shen99/testbench/internal/model"
)

var (
	junitResultRegex  = regexp.MustCompile(`Tests run: (\d+), Failures: (\d+), Errors: (\d+), Skipped: (\d+)`)
	junitFailureRegex = regexp.MustCompile(`(?m)^\[ERROR\][ \t]+(\S+?)(?:\(\S*\))?(?::\d+)?[ \t]+(.*)$`)
)

// JUnitParser parses Maven Surefire and Gradle JUnit console summaries.
type JUnitParser struct{}

// Name returns the parser name.
func (p *JUnitParser) Name() string {
	return "junit"
}

// Parse reads the last "Tests run" line, which Surefire prints as the
// overall total after the per-class lines:
//
//	[ERROR]   AccountTest.withdraw:42 expected:<50> but was:<100>
//	Tests run: 12, Failures: 1, Errors: 1, Skipped: 2
//
// Errors count as failed cases.
func (p *JUnitParser) Parse(output string) (model.CaseCounts, bool) {
	matches := junitResultRegex.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return model.CaseCounts{}, false
	}
	m := matches[len(matches)-1]
	run, _ := strconv.Atoi(m[1])
	failures, _ := strconv.Atoi(m[2])
	errs, _ := strconv.Atoi(m[3])
	skipped, _ := strconv.Atoi(m[4])

	counts := model.CaseCounts{
		Failed:  failures + errs,
		Skipped: skipped,
	}
	counts.Passed = max(0, run-counts.Failed-counts.Skipped)

	for _, f := range junitFailureRegex.FindAllStringSubmatch(output, -1) {
		name := f[1]
		if !strings.Contains(name, ".") || strings.HasPrefix(name, "Tests") {
			continue
		}
		counts.Failures = append(counts.Failures, model.CaseFailure{
			Name:   name,
			Reason: truncate(strings.TrimSpace(f[2])),
		})
	}
	return counts, true
}
