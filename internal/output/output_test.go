package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jj-shen99/testbench/internal/model"
)

// newTestWriter creates a Writer with captured output for testing.
func newTestWriter() (*Writer, *bytes.Buffer, *bytes.Buffer) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	return NewWithWriters(stdout, stderr, false), stdout, stderr
}

func TestNew(t *testing.T) {
	w := New()
	if w == nil {
		t.Fatal("New() returned nil")
	}
	if w.out == nil || w.err == nil {
		t.Error("writers not set")
	}
}

func TestWriter_Info_Quiet(t *testing.T) {
	w, stdout, _ := newTestWriter()

	w.Info("shown %d", 1)
	w.SetQuiet(true)
	w.Info("hidden")

	if got := stdout.String(); got != "shown 1\n" {
		t.Errorf("Info() output = %q", got)
	}
}

func TestWriter_Warning(t *testing.T) {
	w, stdout, stderr := newTestWriter()

	w.Warning("unknown field %q", "extra")

	if stdout.Len() != 0 {
		t.Errorf("Warning() wrote to stdout: %q", stdout.String())
	}
	if got := stderr.String(); got != "warning: unknown field \"extra\"\n" {
		t.Errorf("Warning() = %q", got)
	}
}

func TestWriter_ErrorPrefix(t *testing.T) {
	w, _, stderr := newTestWriter()

	w.ErrorPrefix("category %q is not configured", "smoke")

	if got := stderr.String(); got != "testbench: category \"smoke\" is not configured\n" {
		t.Errorf("ErrorPrefix() = %q", got)
	}
}

func TestWriter_Color(t *testing.T) {
	var stdout bytes.Buffer
	w := NewWithWriters(&stdout, &bytes.Buffer{}, true)

	w.FinalSuccess("done")

	if !strings.Contains(stdout.String(), green+"done"+reset) {
		t.Errorf("FinalSuccess() = %q, want colored", stdout.String())
	}
}

func TestWriter_CategoryStart(t *testing.T) {
	tests := []struct {
		cfg  model.CategoryConfig
		want string
	}{
		{model.CategoryConfig{Parallel: true, MaxWorkers: 4}, "─── [unit] 12 units (parallel, 4 workers) ───"},
		{model.CategoryConfig{Parallel: false, MaxWorkers: 4}, "─── [unit] 12 units (sequential) ───"},
	}
	for _, tt := range tests {
		w, stdout, _ := newTestWriter()
		w.CategoryStart("unit", 12, tt.cfg)
		if !strings.Contains(stdout.String(), tt.want) {
			t.Errorf("CategoryStart() = %q, want %q", stdout.String(), tt.want)
		}
	}
}

func TestWriter_Outcome(t *testing.T) {
	w, stdout, _ := newTestWriter()

	w.Outcome(model.TestOutcome{UnitRef: "tests/test_unit_a.py", Status: model.StatusPass, DurationSeconds: 0.25})
	w.Outcome(model.TestOutcome{UnitRef: "tests/test_unit_b.py", Status: model.StatusTimeout, DurationSeconds: 5})
	w.Outcome(model.TestOutcome{
		UnitRef: "tests/test_unit_c.py", Status: model.StatusFail, DurationSeconds: 1,
		Cases: &model.CaseCounts{Passed: 3, Failed: 1, Skipped: 1},
	})

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines: %q", len(lines), stdout.String())
	}
	if !strings.Contains(lines[0], "+ pass") || !strings.Contains(lines[0], "test_unit_a.py 0.25s") {
		t.Errorf("pass line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "! timeout") || !strings.Contains(lines[1], "test_unit_b.py 5.00s") {
		t.Errorf("timeout line = %q", lines[1])
	}
	if !strings.Contains(lines[2], "test_unit_c.py 1.00s (3/5 cases)") {
		t.Errorf("cases line = %q", lines[2])
	}
}

func TestWriter_Outcome_QuietHidesPasses(t *testing.T) {
	w, stdout, _ := newTestWriter()
	w.SetQuiet(true)

	w.Outcome(model.TestOutcome{UnitRef: "a", Status: model.StatusPass})
	w.Outcome(model.TestOutcome{UnitRef: "b", Status: model.StatusFail})

	out := stdout.String()
	if strings.Contains(out, " a ") || !strings.Contains(out, "x fail") {
		t.Errorf("quiet Outcome() = %q", out)
	}
}

func TestWriter_RunSummary(t *testing.T) {
	w, stdout, _ := newTestWriter()

	w.RunSummary(
		model.RunSummary{Total: 3, Passed: 2, Failed: 1},
		[]model.CategoryAnalysis{{Category: "unit", Total: 3, Passed: 2, Failed: 1, DurationSeconds: 1.5}},
	)

	out := stdout.String()
	for _, want := range []string{
		"=== Summary ===",
		"CATEGORY  TOTAL  PASSED",
		"unit      3      2       1",
		"1.50s",
		"3 tests: 2 passed, 1 failed, 0 errors, 0 timeouts",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("RunSummary() missing %q in:\n%s", want, out)
		}
	}
}

func TestWriter_LoadPoints(t *testing.T) {
	w, stdout, _ := newTestWriter()

	w.LoadPoints([]model.StressPoint{
		{NumUsers: 100, Analysis: model.LoadAnalysis{TotalRequests: 300, SuccessRatePercent: 100, AvgResponseTime: 0.3}},
		{NumUsers: 200, Interval: 2, Analysis: model.LoadAnalysis{TotalRequests: 300, SuccessRatePercent: 90.5, ErrorCount: 29}, Degraded: true},
	})

	out := stdout.String()
	if !strings.Contains(out, "USERS") || !strings.Contains(out, "0.300") {
		t.Errorf("LoadPoints() = %q", out)
	}
	if !strings.Contains(out, "90.5%") || !strings.Contains(out, "DEGRADED") {
		t.Errorf("degraded row missing in:\n%s", out)
	}
}

func TestWriter_Table(t *testing.T) {
	w, stdout, _ := newTestWriter()

	w.Table([]string{"A", "LONG"}, [][]string{{"xyz", "1"}})

	want := "A    LONG\n---  ----\nxyz  1\n"
	if got := stdout.String(); got != want {
		t.Errorf("Table() = %q, want %q", got, want)
	}
}
