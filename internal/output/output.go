// Package output provides formatted terminal output for the testbench CLI.
package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jj-shen99/testbench/internal/model"
)

// Writer handles CLI output formatting.
type Writer struct {
	out   io.Writer
	err   io.Writer
	color bool
	quiet bool
}

// New creates a new Writer with default settings.
func New() *Writer {
	return &Writer{
		out:   os.Stdout,
		err:   os.Stderr,
		color: isTerminal(),
	}
}

// NewWithWriters creates a Writer with custom io.Writers (for testing).
func NewWithWriters(out, err io.Writer, color bool) *Writer {
	return &Writer{
		out:   out,
		err:   err,
		color: color,
	}
}

// SetQuiet enables or disables quiet mode.
func (w *Writer) SetQuiet(quiet bool) {
	w.quiet = quiet
}

// SetColor enables or disables ANSI colors.
func (w *Writer) SetColor(color bool) {
	w.color = color
}

// Out returns the stdout writer.
func (w *Writer) Out() io.Writer {
	return w.out
}

// Print writes to stdout.
func (w *Writer) Print(format string, args ...interface{}) {
	fmt.Fprintf(w.out, format, args...)
}

// Println writes a line to stdout.
func (w *Writer) Println(format string, args ...interface{}) {
	fmt.Fprintf(w.out, format+"\n", args...)
}

// Errorln writes a line to stderr.
func (w *Writer) Errorln(format string, args ...interface{}) {
	fmt.Fprintf(w.err, format+"\n", args...)
}

// Info prints an info message (skipped in quiet mode).
func (w *Writer) Info(format string, args ...interface{}) {
	if w.quiet {
		return
	}
	w.Println(format, args...)
}

// Warning prints a warning message to stderr.
func (w *Writer) Warning(format string, args ...interface{}) {
	if w.color {
		w.Errorln(yellow+"warning:"+reset+" "+format, args...)
	} else {
		w.Errorln("warning: "+format, args...)
	}
}

// ErrorPrefix prints an error message with the testbench prefix to stderr.
func (w *Writer) ErrorPrefix(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if w.color {
		w.Errorln("%stestbench:%s %s", red, reset, msg)
	} else {
		w.Errorln("testbench: %s", msg)
	}
}

// Section prints a section header.
func (w *Writer) Section(title string) {
	if w.quiet {
		return
	}
	w.Println("")
	w.Println("%s", w.paint(bold, "=== "+title+" ==="))
}

// CategoryStart announces a category before its units run.
func (w *Writer) CategoryStart(name string, units int, cfg model.CategoryConfig) {
	if w.quiet {
		return
	}
	mode := "sequential"
	if cfg.Parallel {
		mode = fmt.Sprintf("parallel, %d workers", cfg.MaxWorkers)
	}
	w.Println("")
	w.Println("%s", w.paint(bold+cyan, fmt.Sprintf("─── [%s] %d units (%s) ───", name, units, mode)))
}

// Outcome prints one unit result line. Passing units are skipped in quiet mode.
func (w *Writer) Outcome(o model.TestOutcome) {
	if w.quiet && o.Status == model.StatusPass {
		return
	}
	mark, color := "x", red
	switch o.Status {
	case model.StatusPass:
		mark, color = "+", green
	case model.StatusTimeout:
		mark, color = "!", yellow
	}
	detail := seconds(o.DurationSeconds)
	if c := o.Cases; c != nil {
		detail += fmt.Sprintf(" (%d/%d cases)", c.Passed, c.Total())
	}
	if w.color {
		w.Println("  %s%s %-8s%s %s %s", color, mark, o.Status, reset, filepath.Base(o.UnitRef), w.paint(dim, detail))
	} else {
		w.Println("  %s %-8s %s %s", mark, o.Status, filepath.Base(o.UnitRef), detail)
	}
}

// RunSummary prints the per-category table and the run totals.
func (w *Writer) RunSummary(summary model.RunSummary, analyses []model.CategoryAnalysis) {
	w.Println("")
	w.Println("%s", w.paint(bold+cyan, "=== Summary ==="))
	w.Println("")

	rows := make([][]string, 0, len(analyses))
	for _, a := range analyses {
		rows = append(rows, []string{
			a.Category, strconv.Itoa(a.Total), strconv.Itoa(a.Passed), strconv.Itoa(a.Failed),
			strconv.Itoa(a.Errors), strconv.Itoa(a.Timeouts), seconds(a.DurationSeconds),
		})
	}
	w.Table([]string{"CATEGORY", "TOTAL", "PASSED", "FAILED", "ERRORS", "TIMEOUTS", "DURATION"}, rows)

	w.Println("")
	msg := fmt.Sprintf("%d tests: %d passed, %d failed, %d errors, %d timeouts",
		summary.Total, summary.Passed, summary.Failed, summary.Errors, summary.Timeouts)
	if summary.AllPassed() {
		w.Println("%s", w.paint(green, msg))
	} else {
		w.Println("%s", w.paint(red, msg))
	}
}

// LoadPoints prints the points of a load, stress or endurance run.
func (w *Writer) LoadPoints(points []model.StressPoint) {
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		a := p.Analysis
		state := "ok"
		if p.Degraded {
			state = "DEGRADED"
		}
		interval := "-"
		if p.Interval > 0 {
			interval = strconv.Itoa(p.Interval)
		}
		rows = append(rows, []string{
			strconv.Itoa(p.NumUsers), interval, strconv.Itoa(a.TotalRequests),
			fmt.Sprintf("%.1f%%", a.SuccessRatePercent),
			fmt.Sprintf("%.3f", a.AvgResponseTime), fmt.Sprintf("%.3f", a.P95ResponseTime),
			fmt.Sprintf("%.3f", a.MaxResponseTime), strconv.Itoa(a.ErrorCount), state,
		})
	}
	w.Table([]string{"USERS", "INTERVAL", "REQUESTS", "SUCCESS", "AVG(s)", "P95(s)", "MAX(s)", "ERRORS", "STATE"}, rows)
}

// Table prints a simple table.
func (w *Writer) Table(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	line := func(cells []string) string {
		parts := make([]string, 0, len(widths))
		for i, cell := range cells {
			if i < len(widths) {
				parts = append(parts, fmt.Sprintf("%-*s", widths[i], cell))
			}
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	w.Println("%s", line(headers))
	seps := make([]string, len(widths))
	for i, width := range widths {
		seps[i] = strings.Repeat("-", width)
	}
	w.Println("%s", line(seps))
	for _, row := range rows {
		w.Println("%s", line(row))
	}
}

// FinalSuccess prints a final success message.
func (w *Writer) FinalSuccess(format string, args ...interface{}) {
	w.Println("")
	w.Println("%s", w.paint(green, fmt.Sprintf(format, args...)))
}

// FinalFailure prints a final failure message.
func (w *Writer) FinalFailure(format string, args ...interface{}) {
	w.Println("")
	w.Println("%s", w.paint(red, fmt.Sprintf(format, args...)))
}

// Hint prints a hint message for the user.
func (w *Writer) Hint(format string, args ...interface{}) {
	w.Println("%s", w.paint(dim, fmt.Sprintf(format, args...)))
}

func (w *Writer) paint(code, s string) string {
	if !w.color {
		return s
	}
	return code + s + reset
}

func seconds(s float64) string {
	return fmt.Sprintf("%.2fs", s)
}

// isTerminal returns true if stdout is a terminal.
func isTerminal() bool {
	if fi, _ := os.Stdout.Stat(); fi != nil {
		return (fi.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

// ANSI color codes.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)
