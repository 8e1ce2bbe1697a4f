package cli

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jj-shen99/testbench/internal/config"
	tberrors "github.com/jj-shen99/testbench/internal/errors"
	"github.com/jj-shen99/testbench/internal/loadtest"
	"github.com/jj-shen99/testbench/internal/metrics"
	"github.com/jj-shen99/testbench/internal/model"
	"github.com/jj-shen99/testbench/internal/monitor"
	"github.com/jj-shen99/testbench/internal/report"
	"github.com/jj-shen99/testbench/internal/stats"
	"github.com/jj-shen99/testbench/internal/store"
)

// Performance test types.
const (
	perfLoad      = "load"
	perfStress    = "stress"
	perfEndurance = "endurance"
)

// sampleInterval is the host sampling period when --monitor is set.
const sampleInterval = time.Second

func (a *app) perfCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "perf",
		Short: "Run a load, stress or endurance test against the simulated scenario",
		Example: `  testbench perf --type load --users 100 --duration 60
  testbench perf --type stress --start-users 100 --max-users 1000 --step 100
  testbench perf --type endurance --users 50 --duration 3600 --interval 300`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runPerf(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.String("type", perfLoad, "test type: load, stress or endurance")
	f.Int("users", 100, "concurrent users (load and endurance; first stress step)")
	f.Float64("duration", 60, "test duration in seconds (load and endurance)")
	f.Int("start-users", 0, "first stress step (overrides load.stress.start_users)")
	f.Int("max-users", 0, "last stress step (overrides load.stress.max_users)")
	f.Int("step", 0, "users added per stress step (overrides load.stress.step)")
	f.Float64("window", 0, "seconds per stress step (overrides load.stress.window)")
	f.Float64("interval", 0, "seconds per endurance window (overrides load.endurance.interval)")
	f.Float64("submit-interval", 0, "seconds between session submissions (overrides load.submit_interval)")
	f.Float64("max-avg-response", 0, "degradation threshold for average response seconds")
	f.Float64("min-success-rate", 0, "degradation threshold for success percentage")
	f.Int64("seed", 0, "random seed for simulated latencies (0 uses the clock)")
	f.Bool("monitor", false, "sample host CPU and memory during load windows")
	f.String("results-dir", "", "directory for results (overrides execution.results_dir)")
	f.Bool("json", false, "print the results document as JSON")
	f.String("history-db", "", "record the run in this SQLite database")
	f.String("metrics-file", "", "write Prometheus metrics to this text file")
	return cmd
}

// perfPlan is the resolved set of parameters for one perf invocation.
type perfPlan struct {
	kind           string
	users          int
	duration       time.Duration
	stress         config.StressConfig
	interval       time.Duration
	submitInterval time.Duration
	degraded       loadtest.DegradationPredicate
}

func (a *app) planPerf(cfg *config.Config) (perfPlan, error) {
	lc := cfg.Load
	p := perfPlan{
		kind:           a.v.GetString("type"),
		users:          a.v.GetInt("users"),
		duration:       secondsDuration(a.v.GetFloat64("duration")),
		stress:         *lc.Stress,
		interval:       secondsDuration(a.floatOr("interval", lc.Endurance.Interval)),
		submitInterval: secondsDuration(a.floatOr("submit-interval", lc.SubmitInterval)),
		degraded: loadtest.ThresholdPredicate(
			a.floatOr("max-avg-response", lc.MaxAvgResponse),
			a.floatOr("min-success-rate", lc.MinSuccessRate),
		),
	}

	switch p.kind {
	case perfLoad:
	case perfStress:
		// --users starts the ramp unless --start-users is given.
		p.stress.StartUsers = a.intOr("start-users", a.intOr("users", p.stress.StartUsers))
		p.stress.MaxUsers = a.intOr("max-users", p.stress.MaxUsers)
		p.stress.Step = a.intOr("step", p.stress.Step)
		p.stress.Window = a.floatOr("window", p.stress.Window)
	case perfEndurance:
		p.users = a.intOr("users", lc.Endurance.Users)
		p.duration = secondsDuration(a.floatOr("duration", lc.Endurance.Duration))
	default:
		return p, tberrors.Configf("unknown perf type %q (want load, stress or endurance)", p.kind)
	}
	return p, nil
}

func (a *app) runPerf(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if dir := a.v.GetString("results-dir"); dir != "" {
		cfg.Execution.ResultsDir = dir
	}
	plan, err := a.planPerf(cfg)
	if err != nil {
		return err
	}

	collector, flushMetrics := a.collector()
	engineOpts := []loadtest.EngineOption{
		loadtest.WithSubmitInterval(plan.submitInterval),
		loadtest.WithLogger(a.log),
		loadtest.WithMetrics(collector),
	}
	if a.v.GetBool("monitor") {
		engineOpts = append(engineOpts, loadtest.WithSampler(monitor.NewHostSampler(), sampleInterval))
	}
	engine := loadtest.NewEngine(engineOpts...)

	seed := a.v.GetInt64("seed")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	scenario := loadtest.SimulatedScenario(rand.New(rand.NewSource(seed)))

	a.out.Info("Running %s test...", plan.kind)
	startedAt := time.Now()
	points, runErr := a.executePlan(ctx, engine, scenario, plan, collector)
	if tberrors.IsConfig(runErr) {
		return runErr
	}
	finishedAt := time.Now()

	results := report.PerfResults{
		RunID:     uuid.NewString(),
		Type:      plan.kind,
		StartedAt: startedAt,
		Points:    points,
	}
	if a.v.GetBool("json") {
		if err := a.printJSON(results); err != nil {
			return err
		}
	} else {
		a.printPerfResults(results)
	}

	persistCtx := context.WithoutCancel(ctx)
	path := resultsPath(cfg.Execution.ResultsDir, startedAt, "performance", report.FileName("perf_results", startedAt, ".json"))
	if err := report.WriteJSON(path, results); err != nil {
		return tberrors.WrapKind(tberrors.KindEnvironment, err, "write results")
	}
	a.out.Info("Results: %s", path)

	if err := a.recordLoadRun(persistCtx, store.LoadRun{
		ID:         results.RunID,
		Kind:       plan.kind,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Points:     points,
	}); err != nil {
		return err
	}
	if err := flushMetrics(); err != nil {
		return err
	}
	return runErr
}

func (a *app) executePlan(ctx context.Context, engine *loadtest.Engine, scenario loadtest.Scenario, plan perfPlan, collector metrics.Collector) ([]model.StressPoint, error) {
	switch plan.kind {
	case perfStress:
		return loadtest.RunStress(ctx, engine, loadtest.StressOptions{
			StartUsers: plan.stress.StartUsers,
			MaxUsers:   plan.stress.MaxUsers,
			Step:       plan.stress.Step,
			Window:     secondsDuration(plan.stress.Window),
			Scenario:   scenario,
			Degraded:   plan.degraded,
			Logger:     a.log,
			Metrics:    collector,
		})
	case perfEndurance:
		return loadtest.RunEndurance(ctx, engine, loadtest.EnduranceOptions{
			Users:    plan.users,
			Total:    plan.duration,
			Interval: plan.interval,
			Scenario: scenario,
			Degraded: plan.degraded,
			Logger:   a.log,
			Metrics:  collector,
		})
	}

	result, err := engine.Run(ctx, plan.users, plan.duration, scenario)
	if tberrors.IsConfig(err) {
		return nil, err
	}
	analysis := stats.Analyze(result)
	collector.WindowFinished(plan.users, analysis)
	if len(result.Resources) > 0 {
		cpuPct, memPct := monitor.Peak(result.Resources)
		a.out.Info("Peak CPU %.1f%%, memory %.1f%% over %d samples", cpuPct, memPct, len(result.Resources))
	}
	point := model.StressPoint{NumUsers: plan.users, Analysis: analysis, Degraded: plan.degraded(analysis)}
	return []model.StressPoint{point}, err
}

func (a *app) printPerfResults(results report.PerfResults) {
	a.out.Section(cases.Title(language.English).String(results.Type) + " Test")
	a.out.LoadPoints(results.Points)
	for _, p := range results.Points {
		if p.Degraded {
			a.out.FinalFailure("Performance degradation detected at %d users", p.NumUsers)
			return
		}
	}
	a.out.FinalSuccess("No performance degradation detected")
}

func (a *app) recordLoadRun(ctx context.Context, run store.LoadRun) error {
	st, err := a.openStore(ctx)
	if err != nil || st == nil {
		return err
	}
	defer st.Close()

	if _, err := st.SaveLoadRun(ctx, run); err != nil {
		return tberrors.WrapKind(tberrors.KindEnvironment, err, "record run")
	}
	return nil
}

// intOr returns the flag or environment value of key when it was set
// explicitly, and def otherwise.
func (a *app) intOr(key string, def int) int {
	if a.v.IsSet(key) {
		return a.v.GetInt(key)
	}
	return def
}

func (a *app) floatOr(key string, def float64) float64 {
	if a.v.IsSet(key) {
		return a.v.GetFloat64(key)
	}
	return def
}

func secondsDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
