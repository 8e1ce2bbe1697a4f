package workflow

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"

	tberrors "github.com/jj-shen99/testbench/internal/errors"
	"github.com/jj-shen99/testbench/internal/model"
	"github.com/jj-shen99/testbench/internal/testing/mocks"
	"github.com/jj-shen99/testbench/internal/unit"
)

type failingResolver struct{}

func (failingResolver) Resolve(string) ([]unit.Unit, error) {
	return nil, errors.New("tests directory: no such file or directory")
}

func newOrchestrator(t *testing.T, opts Options) *Orchestrator {
	t.Helper()
	o, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

func delayedUnits(category string, n int, delay time.Duration, tr *mocks.Tracker) []unit.Unit {
	units := make([]unit.Unit, n)
	for i := range units {
		units[i] = mocks.NewUnit(category, fmt.Sprintf("%s_%02d", category, i)).
			WithDelay(delay).
			WithTracker(tr)
	}
	return units
}

func TestRun_ParallelIsBoundedAndOrdered(t *testing.T) {
	t.Parallel()
	tr := &mocks.Tracker{}
	units := delayedUnits("unit", 10, 30*time.Millisecond, tr)

	o := newOrchestrator(t, Options{
		Categories: map[string]model.CategoryConfig{
			"unit": {Parallel: true, MaxWorkers: 3, Timeout: 5 * time.Second},
		},
		Resolver: unit.StaticResolver{"unit": units},
	})

	results, err := o.Run(context.Background(), "unit")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := tr.MaxInFlight(); got > 3 {
		t.Errorf("MaxInFlight() = %d, want <= 3", got)
	}
	if got := tr.MaxInFlight(); got < 2 {
		t.Errorf("MaxInFlight() = %d, want parallel execution", got)
	}

	outcomes := results["unit"]
	if len(outcomes) != len(units) {
		t.Fatalf("got %d outcomes, want %d", len(outcomes), len(units))
	}
	for i, out := range outcomes {
		if out.UnitRef != units[i].Ref() {
			t.Errorf("outcomes[%d].UnitRef = %q, want %q (submission order)", i, out.UnitRef, units[i].Ref())
		}
		if out.Status != model.StatusPass {
			t.Errorf("outcomes[%d].Status = %q", i, out.Status)
		}
	}
}

func TestRun_SequentialRunsOneAtATime(t *testing.T) {
	t.Parallel()
	tr := &mocks.Tracker{}
	units := delayedUnits("integration", 4, 10*time.Millisecond, tr)

	o := newOrchestrator(t, Options{
		Categories: map[string]model.CategoryConfig{
			"integration": {Parallel: false, MaxWorkers: 4, Timeout: time.Second},
		},
		Resolver: unit.StaticResolver{"integration": units},
	})

	if _, err := o.Run(context.Background(), "integration"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if tr.MaxInFlight() != 1 {
		t.Errorf("MaxInFlight() = %d, want 1", tr.MaxInFlight())
	}
	order := tr.Order()
	for i, u := range units {
		if order[i] != u.Ref() {
			t.Errorf("order[%d] = %q, want %q", i, order[i], u.Ref())
		}
	}
}

func TestRun_FailuresDoNotAbort(t *testing.T) {
	t.Parallel()
	units := []unit.Unit{
		mocks.NewUnit("unit", "pass"),
		mocks.NewUnit("unit", "fail").Failing("assert"),
		mocks.NewUnit("unit", "error").WithError(errors.New("exec format error")),
		mocks.NewUnit("unit", "timeout").WithDelay(5 * time.Second),
		mocks.NewUnit("unit", "after"),
	}
	o := newOrchestrator(t, Options{
		Categories: map[string]model.CategoryConfig{
			"unit":  {Parallel: true, MaxWorkers: 2, Timeout: 50 * time.Millisecond},
			"other": {MaxWorkers: 1, Timeout: time.Second},
		},
		Resolver: unit.StaticResolver{
			"unit":  units,
			"other": {mocks.NewUnit("other", "x")},
		},
	})

	results, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []model.Status{model.StatusPass, model.StatusFail, model.StatusError, model.StatusTimeout, model.StatusPass}
	got := results["unit"]
	if len(got) != len(want) {
		t.Fatalf("got %d outcomes, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Status != want[i] {
			t.Errorf("outcomes[%d].Status = %q, want %q", i, got[i].Status, want[i])
		}
	}
	if len(results["other"]) != 1 {
		t.Errorf("other category outcomes = %v, want 1", results["other"])
	}
}

func TestRun_UnknownCategory(t *testing.T) {
	t.Parallel()
	o := newOrchestrator(t, Options{
		Categories: map[string]model.CategoryConfig{"unit": {MaxWorkers: 1, Timeout: time.Second}},
		Resolver:   unit.StaticResolver{},
	})

	_, err := o.Run(context.Background(), "unit", "smoke")
	if !tberrors.IsConfig(err) {
		t.Fatalf("Run() error = %v, want config error", err)
	}
	if !strings.Contains(err.Error(), "smoke") {
		t.Errorf("error %q does not name the category", err)
	}
}

func TestRun_AllCategoriesWhenNoneGiven(t *testing.T) {
	t.Parallel()
	tr := &mocks.Tracker{}
	o := newOrchestrator(t, Options{
		Categories: map[string]model.CategoryConfig{
			"performance": {MaxWorkers: 1, Timeout: time.Second},
			"integration": {MaxWorkers: 1, Timeout: time.Second},
			"unit":        {MaxWorkers: 1, Timeout: time.Second},
		},
		Resolver: unit.StaticResolver{
			"performance": {mocks.NewUnit("performance", "p").WithTracker(tr)},
			"integration": {mocks.NewUnit("integration", "i").WithTracker(tr)},
			"unit":        {mocks.NewUnit("unit", "u").WithTracker(tr)},
		},
	})

	results, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 3 {
		t.Errorf("got %d categories, want 3", len(results))
	}
	if got := strings.Join(tr.Order(), ","); got != "i,p,u" {
		t.Errorf("category order = %s, want sorted i,p,u", got)
	}
}

func TestRun_DependencyOrder(t *testing.T) {
	t.Parallel()
	tr := &mocks.Tracker{}
	o := newOrchestrator(t, Options{
		Categories: map[string]model.CategoryConfig{
			"unit":        {MaxWorkers: 1, Timeout: time.Second, DependsOn: []string{"smoke"}},
			"integration": {MaxWorkers: 1, Timeout: time.Second, DependsOn: []string{"unit"}},
			"smoke":       {MaxWorkers: 1, Timeout: time.Second},
		},
		Resolver: unit.StaticResolver{
			"unit":        {mocks.NewUnit("unit", "u").WithTracker(tr)},
			"integration": {mocks.NewUnit("integration", "i").WithTracker(tr)},
			"smoke":       {mocks.NewUnit("smoke", "s").WithTracker(tr)},
		},
	})

	if got := strings.Join(o.Categories(), ","); got != "smoke,unit,integration" {
		t.Errorf("Categories() = %s", got)
	}

	// An explicit selection keeps run order and does not pull in dependencies.
	results, err := o.Run(context.Background(), "integration", "unit")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d categories, want 2", len(results))
	}
	if got := strings.Join(tr.Order(), ","); got != "u,i" {
		t.Errorf("category order = %s, want u,i", got)
	}
}

func TestNew_DependencyCycle(t *testing.T) {
	t.Parallel()
	_, err := New(Options{
		Categories: map[string]model.CategoryConfig{
			"unit":        {MaxWorkers: 1, Timeout: time.Second, DependsOn: []string{"integration"}},
			"integration": {MaxWorkers: 1, Timeout: time.Second, DependsOn: []string{"unit"}},
		},
		Resolver: unit.StaticResolver{},
	})
	if !tberrors.IsConfig(err) {
		t.Fatalf("New() error = %v, want config error", err)
	}
	if !strings.Contains(err.Error(), "dependency cycle") {
		t.Errorf("error %q does not describe the cycle", err)
	}
}

func TestRun_EmptyCategory(t *testing.T) {
	t.Parallel()
	o := newOrchestrator(t, Options{
		Categories: map[string]model.CategoryConfig{"unit": {Parallel: true, MaxWorkers: 2, Timeout: time.Second}},
		Resolver:   unit.StaticResolver{},
	})

	results, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out, ok := results["unit"]; !ok || len(out) != 0 {
		t.Errorf("results[unit] = %v, %v; want empty slice", out, ok)
	}
}

func TestRun_ResolverError(t *testing.T) {
	t.Parallel()
	o := newOrchestrator(t, Options{
		Categories: map[string]model.CategoryConfig{"unit": {MaxWorkers: 1, Timeout: time.Second}},
		Resolver:   failingResolver{},
	})

	_, err := o.Run(context.Background())
	if !tberrors.Is(err, tberrors.KindEnvironment) {
		t.Errorf("Run() error = %v, want environment error", err)
	}
	if tberrors.GetExitCode(err) != tberrors.ExitEnvironmentError {
		t.Errorf("exit code = %d, want %d", tberrors.GetExitCode(err), tberrors.ExitEnvironmentError)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := newOrchestrator(t, Options{
		Categories: map[string]model.CategoryConfig{"unit": {MaxWorkers: 1, Timeout: time.Second}},
		Resolver:   unit.StaticResolver{"unit": {mocks.NewUnit("unit", "a")}},
	})

	_, err := o.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRun_OnOutcome(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	seen := map[string]int{}

	o := newOrchestrator(t, Options{
		Categories: map[string]model.CategoryConfig{"unit": {Parallel: true, MaxWorkers: 4, Timeout: time.Second}},
		Resolver:   unit.StaticResolver{"unit": delayedUnits("unit", 8, time.Millisecond, nil)},
		OnOutcome: func(category string, _ model.TestOutcome) {
			mu.Lock()
			seen[category]++
			mu.Unlock()
		},
	})

	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if seen["unit"] != 8 {
		t.Errorf("OnOutcome called %d times, want 8", seen["unit"])
	}
}

func TestNew_InvalidCategory(t *testing.T) {
	t.Parallel()
	tests := map[string]model.CategoryConfig{
		"zero workers": {MaxWorkers: 0, Timeout: time.Second},
		"zero timeout": {MaxWorkers: 1},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := New(Options{
				Categories: map[string]model.CategoryConfig{"unit": cfg},
				Resolver:   unit.StaticResolver{},
			})
			if !tberrors.IsConfig(err) {
				t.Errorf("New() error = %v, want config error", err)
			}
		})
	}
}

func TestNew_UnknownStep(t *testing.T) {
	t.Parallel()
	_, err := New(Options{
		Resolver: unit.StaticResolver{},
		Setup:    []string{"clean_workspace", "init_database"},
	})
	if !tberrors.IsConfig(err) {
		t.Fatalf("New() error = %v, want config error", err)
	}
	if !strings.Contains(err.Error(), "init_database") {
		t.Errorf("error %q does not name the step", err)
	}
}

func TestSetup_StopsAtFirstFailure(t *testing.T) {
	t.Parallel()
	var calls []string
	reg := NewStepRegistry()
	reg.Register("a", func(context.Context, StepEnv) error { calls = append(calls, "a"); return nil })
	reg.Register("b", func(context.Context, StepEnv) error { calls = append(calls, "b"); return errors.New("db down") })
	reg.Register("c", func(context.Context, StepEnv) error { calls = append(calls, "c"); return nil })

	o := newOrchestrator(t, Options{Resolver: unit.StaticResolver{}, Steps: reg, Setup: []string{"a", "b", "c"}})

	err := o.Setup(context.Background())
	if !tberrors.Is(err, tberrors.KindEnvironment) {
		t.Errorf("Setup() error = %v, want environment error", err)
	}
	if got := strings.Join(calls, ","); got != "a,b" {
		t.Errorf("calls = %s, want a,b", got)
	}
}

func TestTeardown_RunsAllSteps(t *testing.T) {
	t.Parallel()
	var calls []string
	reg := NewStepRegistry()
	reg.Register("a", func(context.Context, StepEnv) error { calls = append(calls, "a"); return errors.New("a failed") })
	reg.Register("b", func(context.Context, StepEnv) error { calls = append(calls, "b"); return nil })
	reg.Register("c", func(context.Context, StepEnv) error { calls = append(calls, "c"); return errors.New("c failed") })

	o := newOrchestrator(t, Options{Resolver: unit.StaticResolver{}, Steps: reg, Teardown: []string{"a", "b", "c"}})

	err := o.Teardown(context.Background())
	if got := strings.Join(calls, ","); got != "a,b,c" {
		t.Errorf("calls = %s, want a,b,c", got)
	}
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		t.Fatalf("Teardown() error = %T, want *multierror.Error", err)
	}
	if len(merr.Errors) != 2 {
		t.Errorf("got %d errors, want 2", len(merr.Errors))
	}
}

func TestTeardown_NoErrors(t *testing.T) {
	t.Parallel()
	o := newOrchestrator(t, Options{Resolver: unit.StaticResolver{}, Teardown: []string{"cleanup_data", "reset_state"}})
	if err := o.Teardown(context.Background()); err != nil {
		t.Errorf("Teardown() error = %v", err)
	}
}

func TestBuiltinSteps(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	data := filepath.Join(root, "data")
	state := filepath.Join(root, "state")
	for _, dir := range []string{data, state, filepath.Join(root, "results", "unit")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}
	stale := filepath.Join(root, "results", "unit", "stale.json")
	if err := os.WriteFile(stale, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(state, "lock"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	o := newOrchestrator(t, Options{
		Categories: map[string]model.CategoryConfig{
			"unit":        {MaxWorkers: 1, Timeout: time.Second},
			"integration": {MaxWorkers: 1, Timeout: time.Second},
		},
		Resolver: unit.StaticResolver{},
		Setup:    []string{"clean_workspace"},
		Teardown: []string{"cleanup_data", "reset_state"},
		StepEnv:  StepEnv{ResultsDir: filepath.Join(root, "results"), DataDir: data, StateDir: state},
	})

	if err := o.Setup(context.Background()); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale result still present: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "results", "integration")); err != nil {
		t.Errorf("integration results dir not created: %v", err)
	}

	if err := o.Teardown(context.Background()); err != nil {
		t.Fatalf("Teardown() error = %v", err)
	}
	if _, err := os.Stat(data); !os.IsNotExist(err) {
		t.Errorf("data dir still present: %v", err)
	}
	entries, err := os.ReadDir(state)
	if err != nil || len(entries) != 0 {
		t.Errorf("state dir = %v, %v; want empty", entries, err)
	}
}

func TestBuiltinSteps_DataAndArchive(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	results := filepath.Join(root, "results")
	state := filepath.Join(root, "state")
	data := filepath.Join(root, "data")
	archives := filepath.Join(root, "archives")

	if err := os.MkdirAll(filepath.Join(results, "unit"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(results, "unit", "result.json"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	gen := filepath.Join(root, "gen.sh")
	if err := os.WriteFile(gen, []byte("echo id,value > \"$TESTBENCH_DATA_DIR/seed.csv\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	o := newOrchestrator(t, Options{
		Categories: map[string]model.CategoryConfig{"unit": {MaxWorkers: 1, Timeout: time.Second}},
		Resolver:   unit.StaticResolver{},
		Setup:      []string{"init_database", "load_test_data"},
		Teardown:   []string{"archive_results"},
		StepEnv: StepEnv{
			ResultsDir:  results,
			StateDir:    state,
			DataDir:     data,
			DataCommand: []string{"sh", gen},
			ArchiveDir:  archives,
		},
	})

	if err := o.Setup(context.Background()); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if info, err := os.Stat(state); err != nil || !info.IsDir() {
		t.Errorf("state dir not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(data, "seed.csv")); err != nil {
		t.Errorf("data command did not write seed.csv: %v", err)
	}

	if err := o.Teardown(context.Background()); err != nil {
		t.Fatalf("Teardown() error = %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(archives, "results_*.tar.gz"))
	if len(matches) != 1 {
		t.Fatalf("archives = %v, want one", matches)
	}
	names := tarEntries(t, matches[0])
	if !strings.Contains(strings.Join(names, ","), "unit/result.json") {
		t.Errorf("archive entries = %v, want unit/result.json", names)
	}
}

func TestBuiltinSteps_DataCommandFails(t *testing.T) {
	t.Parallel()
	o := newOrchestrator(t, Options{
		Categories: map[string]model.CategoryConfig{"unit": {MaxWorkers: 1, Timeout: time.Second}},
		Resolver:   unit.StaticResolver{},
		Setup:      []string{"load_test_data"},
		StepEnv:    StepEnv{DataCommand: []string{"sh", "-c", "echo generator broke >&2; exit 3"}},
	})

	err := o.Setup(context.Background())
	if !tberrors.Is(err, tberrors.KindEnvironment) {
		t.Fatalf("Setup() error = %v, want environment error", err)
	}
	if !strings.Contains(err.Error(), "generator broke") {
		t.Errorf("error %q does not carry the command's stderr", err)
	}
}

func tarEntries(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	tr := tar.NewReader(gz)
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, hdr.Name)
	}
	return names
}

func TestStepRegistry_Names(t *testing.T) {
	t.Parallel()
	got := strings.Join(BuiltinSteps().Names(), ",")
	if got != "archive_results,clean_workspace,cleanup_data,init_database,load_test_data,reset_state" {
		t.Errorf("Names() = %s", got)
	}
}
