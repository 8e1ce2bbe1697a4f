// Package report writes run results as JSON files and Markdown reports.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jj-shen99/testbench/internal/aggregate"
	"github.com/jj-shen99/testbench/internal/model"
)

const timestampLayout = "20060102_150405"

// TestResults is the JSON document written after a test run.
type TestResults struct {
	Summary    model.RunSummary                  `json:"summary"`
	Categories map[string]model.CategoryAnalysis `json:"categories"`
	Outcomes   map[string][]model.TestOutcome    `json:"outcomes"`
}

// PerfResults is the JSON document written after a load, stress or
// endurance run.
type PerfResults struct {
	RunID     string              `json:"run_id"`
	Type      string              `json:"type"`
	StartedAt time.Time           `json:"started_at"`
	Points    []model.StressPoint `json:"points"`
}

// FileName returns "<prefix>_<timestamp><ext>" for t.
func FileName(prefix string, t time.Time, ext string) string {
	return fmt.Sprintf("%s_%s%s", prefix, t.Format(timestampLayout), ext)
}

// WriteJSON writes v as indented JSON to path, creating parent directories.
func WriteJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteMarkdown renders the test execution report: a summary, one section
// per category in name order, and the non-passing tests of each category.
func WriteMarkdown(w io.Writer, results TestResults, generated time.Time) error {
	title := cases.Title(language.English)
	failed := aggregate.FailedOutcomes(results.Outcomes)

	var b strings.Builder
	b.WriteString("# Test Execution Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", generated.Format("2006-01-02 15:04:05"))

	s := results.Summary
	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Total Tests: %d\n", s.Total)
	fmt.Fprintf(&b, "- Passed: %d\n", s.Passed)
	fmt.Fprintf(&b, "- Failed: %d\n", s.Failed)
	fmt.Fprintf(&b, "- Errors: %d\n", s.Errors)
	fmt.Fprintf(&b, "- Timeouts: %d\n\n", s.Timeouts)

	names := make([]string, 0, len(results.Categories))
	for name := range results.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		a := results.Categories[name]
		fmt.Fprintf(&b, "## %s Tests\n", title.String(name))
		fmt.Fprintf(&b, "- Total: %d\n", a.Total)
		fmt.Fprintf(&b, "- Passed: %d\n", a.Passed)
		fmt.Fprintf(&b, "- Failed: %d\n", a.Failed)
		fmt.Fprintf(&b, "- Errors: %d\n", a.Errors)
		fmt.Fprintf(&b, "- Timeouts: %d\n", a.Timeouts)
		fmt.Fprintf(&b, "- Duration: %.2fs\n\n", a.DurationSeconds)

		b.WriteString("### Failed Tests\n")
		for _, o := range failed[name] {
			fmt.Fprintf(&b, "#### %s\n", filepath.Base(o.UnitRef))
			fmt.Fprintf(&b, "- Status: %s\n", o.Status)
			fmt.Fprintf(&b, "- Duration: %.2fs\n", o.DurationSeconds)
			if c := o.Cases; c != nil {
				fmt.Fprintf(&b, "- Cases: %d passed, %d failed, %d skipped\n", c.Passed, c.Failed, c.Skipped)
				for _, f := range c.Failures {
					if f.Reason != "" {
						fmt.Fprintf(&b, "  - `%s`: %s\n", f.Name, f.Reason)
					} else {
						fmt.Fprintf(&b, "  - `%s`\n", f.Name)
					}
				}
			}
			if o.Stderr != "" {
				b.WriteString("```\n")
				b.WriteString(strings.TrimRight(o.Stderr, "\n"))
				b.WriteString("\n```\n")
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteMarkdownFile writes the Markdown report to path.
func WriteMarkdownFile(path string, results TestResults, generated time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteMarkdown(f, results, generated); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
