package testparser

import (
	"regexp"
	"strconv"

	"github.com/jj-shen99/testbench/internal/model"
)

var (
	cargoResultRegex  = regexp.MustCompile(`test result: \w+\.\s*(\d+) passed;\s*(\d+) failed;\s*(\d+) ignored`)
	cargoFailureRegex = regexp.MustCompile(`(?m)^test (\S+) \.\.\. FAILED$`)
)

// CargoParser parses Rust `cargo test` output.
type CargoParser struct{}

// Name returns the parser name.
func (p *CargoParser) Name() string {
	return "cargo"
}

// Parse sums every summary line, one per test binary:
//
//	test result: FAILED. 45 passed; 2 failed; 3 ignored; 0 measured; 0 filtered out
func (p *CargoParser) Parse(output string) (model.CaseCounts, bool) {
	matches := cargoResultRegex.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return model.CaseCounts{}, false
	}

	var counts model.CaseCounts
	for _, m := range matches {
		passed, _ := strconv.Atoi(m[1])
		failed, _ := strconv.Atoi(m[2])
		ignored, _ := strconv.Atoi(m[3])
		counts.Passed += passed
		counts.Failed += failed
		counts.Skipped += ignored
	}
	for _, m := range cargoFailureRegex.FindAllStringSubmatch(output, -1) {
		counts.Failures = append(counts.Failures, model.CaseFailure{Name: m[1]})
	}
	return counts, true
}
