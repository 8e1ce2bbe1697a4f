package cli

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jj-shen99/testbench/internal/aggregate"
	"github.com/jj-shen99/testbench/internal/config"
	tberrors "github.com/jj-shen99/testbench/internal/errors"
	"github.com/jj-shen99/testbench/internal/executor"
	"github.com/jj-shen99/testbench/internal/model"
	"github.com/jj-shen99/testbench/internal/report"
	"github.com/jj-shen99/testbench/internal/unit"
	"github.com/jj-shen99/testbench/internal/workflow"
)

func (a *app) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [category...]",
		Short: "Run test categories (every configured category by default)",
		Example: `  testbench run
  testbench run unit integration --results-dir out
  testbench run --json --history-db testbench.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTests(cmd.Context(), args)
		},
	}

	f := cmd.Flags()
	f.String("results-dir", "", "directory for results and reports (overrides execution.results_dir)")
	f.String("tests-dir", "", "directory searched for test files (overrides execution.tests_dir)")
	f.Bool("json", false, "print the results document as JSON")
	f.Bool("report", true, "write a Markdown report next to the JSON results")
	f.String("history-db", "", "record the run in this SQLite database")
	f.String("metrics-file", "", "write Prometheus metrics to this text file")
	f.Bool("no-progress", false, "disable the progress indicator")
	return cmd
}

func (a *app) runTests(ctx context.Context, categories []string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if dir := a.v.GetString("results-dir"); dir != "" {
		cfg.Execution.ResultsDir = dir
	}
	if dir := a.v.GetString("tests-dir"); dir != "" {
		cfg.Execution.TestsDir = dir
	}

	for _, name := range categories {
		if _, ok := cfg.Categories[name]; !ok {
			return tberrors.UnknownCategory(name)
		}
	}
	selected := categories
	if len(selected) == 0 {
		selected = cfg.CategoryNames()
	}

	collector, flushMetrics := a.collector()
	bar := a.newProgress("running tests")
	policies := cfg.CategoryPolicies()

	resolver := unit.NewFileResolver(cfg.Execution.TestsDir, cfg.Execution.WorkDir, cfg.FilePolicies()).
		WithEnv(cfg.Execution.Env)

	orch, err := workflow.New(workflow.Options{
		Categories: policies,
		Resolver:   resolver,
		Executor:   executor.New(executor.WithLogger(a.log), executor.WithMetrics(collector)),
		Steps:      workflow.BuiltinSteps(),
		Setup:      cfg.Environment.Setup,
		Teardown:   cfg.Environment.Teardown,
		StepEnv:    stepEnv(cfg, selected),
		Logger:     a.log,
		OnOutcome:  bar.observe,
	})
	if err != nil {
		return err
	}

	// Teardown and persistence still run after an interrupt.
	persistCtx := context.WithoutCancel(ctx)

	startedAt := time.Now()
	if err := orch.Setup(ctx); err != nil {
		bar.finish()
		if tdErr := orch.Teardown(persistCtx); tdErr != nil {
			a.log.Error().Err(tdErr).Msg("teardown failed")
		}
		return err
	}
	outcomes, runErr := orch.Run(ctx, selected...)
	bar.finish()

	if err := orch.Teardown(persistCtx); err != nil {
		a.log.Error().Err(err).Msg("teardown failed")
		if runErr == nil {
			runErr = tberrors.WrapKind(tberrors.KindEnvironment, err, "teardown")
		}
	}

	summary, analyses, err := aggregate.Aggregate(outcomes)
	if err != nil {
		return err
	}
	summary.RunID = uuid.NewString()
	summary.StartedAt = startedAt
	summary.FinishedAt = time.Now()

	results := report.TestResults{Summary: summary, Categories: analyses, Outcomes: outcomes}
	if a.v.GetBool("json") {
		if err := a.printJSON(results); err != nil {
			return err
		}
	} else {
		a.printTestResults(orch.Categories(), policies, results)
	}

	if err := a.writeTestArtifacts(cfg.Execution.ResultsDir, results); err != nil {
		return err
	}
	if err := a.recordTestRun(persistCtx, summary, analyses); err != nil {
		return err
	}
	if err := flushMetrics(); err != nil {
		return err
	}
	return runErr
}

func stepEnv(cfg *config.Config, categories []string) workflow.StepEnv {
	return workflow.StepEnv{
		ResultsDir:  cfg.Execution.ResultsDir,
		DataDir:     cfg.Execution.DataDir,
		StateDir:    cfg.Execution.StateDir,
		WorkDir:     cfg.Execution.WorkDir,
		DataCommand: cfg.Environment.DataCommand,
		ArchiveDir:  cfg.Environment.ArchiveDir,
		Categories:  categories,
	}
}

func (a *app) printTestResults(order []string, policies map[string]model.CategoryConfig, results report.TestResults) {
	analyses := make([]model.CategoryAnalysis, 0, len(results.Categories))
	for _, name := range order {
		outs, ok := results.Outcomes[name]
		if !ok {
			continue
		}
		a.out.CategoryStart(name, len(outs), policies[name])
		for _, o := range outs {
			a.out.Outcome(o)
		}
	}
	for _, an := range results.Categories {
		analyses = append(analyses, an)
	}
	sort.Slice(analyses, func(i, j int) bool { return analyses[i].Category < analyses[j].Category })

	a.out.RunSummary(results.Summary, analyses)
	if results.Summary.AllPassed() {
		a.out.FinalSuccess("All tests passed")
	} else {
		a.out.FinalFailure("%d of %d tests did not pass", results.Summary.Total-results.Summary.Passed, results.Summary.Total)
	}
}

func (a *app) writeTestArtifacts(dir string, results report.TestResults) error {
	started := results.Summary.StartedAt
	jsonPath := resultsPath(dir, started, "", report.FileName("test_results", started, ".json"))
	if err := report.WriteJSON(jsonPath, results); err != nil {
		return tberrors.WrapKind(tberrors.KindEnvironment, err, "write results")
	}
	a.out.Info("Results: %s", jsonPath)

	if !a.v.GetBool("report") {
		return nil
	}
	mdPath := resultsPath(dir, started, "", report.FileName("test_report", started, ".md"))
	if err := report.WriteMarkdownFile(mdPath, results, results.Summary.FinishedAt); err != nil {
		return tberrors.WrapKind(tberrors.KindEnvironment, err, "write report")
	}
	a.out.Info("Report: %s", mdPath)
	return nil
}

func (a *app) recordTestRun(ctx context.Context, summary model.RunSummary, analyses map[string]model.CategoryAnalysis) error {
	st, err := a.openStore(ctx)
	if err != nil || st == nil {
		return err
	}
	defer st.Close()

	id, err := st.SaveTestRun(ctx, summary, analyses)
	if err != nil {
		return tberrors.WrapKind(tberrors.KindEnvironment, err, "record run")
	}
	a.log.Info().Str("run_id", id).Msg("run recorded")
	return nil
}
