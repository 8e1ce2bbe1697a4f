package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	tberrors "github.com/jj-shen99/testbench/internal/errors"
	"github.com/jj-shen99/testbench/internal/metrics"
	"github.com/jj-shen99/testbench/internal/model"
	"github.com/jj-shen99/testbench/internal/store"
)

// dateLayout names the per-day results directory.
const dateLayout = "2006_01_02"

// noArgs rejects positional arguments with a configuration error.
func noArgs(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		return tberrors.Configf("unexpected arguments: %v", args)
	}
	return nil
}

// resultsPath returns <dir>/<date>/<sub>/<name>.
func resultsPath(dir string, t time.Time, sub, name string) string {
	return filepath.Join(dir, t.Format(dateLayout), sub, name)
}

// collector returns the metrics collector for this invocation and a flush
// function that writes it to --metrics-file.
func (a *app) collector() (metrics.Collector, func() error) {
	path := a.v.GetString("metrics-file")
	if path == "" {
		return metrics.Noop{}, func() error { return nil }
	}
	p := metrics.NewPrometheus()
	return p, func() error {
		if err := p.WriteTextfile(path); err != nil {
			return tberrors.WrapKind(tberrors.KindEnvironment, err, "write metrics")
		}
		a.out.Info("Metrics: %s", path)
		return nil
	}
}

// openStore opens the --history-db database. It returns nil when no
// database is configured.
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	path := a.v.GetString("history-db")
	if path == "" {
		return nil, nil
	}
	st, err := store.Open(ctx, path)
	if err != nil {
		return nil, tberrors.WrapKind(tberrors.KindEnvironment, err, "open history database")
	}
	return st, nil
}

// printJSON writes v as indented JSON on stdout.
func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out.Out())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// progress counts finished units on stderr. A nil *progress is disabled.
type progress struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func (a *app) newProgress(desc string) *progress {
	if a.v.GetBool("no-progress") || a.v.GetBool("quiet") || a.v.GetBool("json") {
		return nil
	}
	return &progress{
		bar: progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(a.errOut),
			progressbar.OptionSetDescription(desc),
			progressbar.OptionShowCount(),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionClearOnFinish(),
		),
	}
}

func (p *progress) observe(category string, o model.TestOutcome) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bar.Describe(fmt.Sprintf("[%s] %s %s", category, o.Status, filepath.Base(o.UnitRef)))
	_ = p.bar.Add(1)
}

func (p *progress) finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.Finish()
}
