// Package workflow schedules the test units of each configured category
// through the executor, sequentially or on a bounded worker pool, and manages
// the environment setup and teardown steps around a run.
package workflow

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	tberrors "github.com/jj-shen99/testbench/internal/errors"
	"github.com/jj-shen99/testbench/internal/executor"
	"github.com/jj-shen99/testbench/internal/model"
	"github.com/jj-shen99/testbench/internal/topsort"
	"github.com/jj-shen99/testbench/internal/unit"
)

// Options configures an Orchestrator.
type Options struct {
	Categories map[string]model.CategoryConfig
	Resolver   unit.Resolver
	Executor   *executor.Executor // Defaults to executor.New()

	Steps    *StepRegistry // Defaults to BuiltinSteps()
	Setup    []string      // Step names run by Setup, in order
	Teardown []string      // Step names run by Teardown, in order
	StepEnv  StepEnv

	Logger zerolog.Logger

	// OnOutcome is called once per finished unit. It may be called from
	// multiple goroutines when a category runs in parallel.
	OnOutcome func(category string, outcome model.TestOutcome)
}

// Orchestrator runs categories of test units.
type Orchestrator struct {
	categories map[string]model.CategoryConfig
	order      []string
	resolver   unit.Resolver
	exec       *executor.Executor
	setup      []namedStep
	teardown   []namedStep
	stepEnv    StepEnv
	log        zerolog.Logger
	onOutcome  func(string, model.TestOutcome)
}

type namedStep struct {
	name string
	fn   Step
}

// New validates opts and creates an Orchestrator. Invalid category policies
// and unknown step names are configuration errors.
func New(opts Options) (*Orchestrator, error) {
	if opts.Resolver == nil {
		return nil, tberrors.Config("workflow: resolver is required")
	}
	categories := make(map[string]model.CategoryConfig, len(opts.Categories))
	deps := make(topsort.Graph, len(opts.Categories))
	for name, cfg := range opts.Categories {
		cfg.Name = name
		categories[name] = cfg
		deps[name] = cfg.DependsOn
		if cfg.MaxWorkers <= 0 {
			return nil, &tberrors.Error{Kind: tberrors.KindConfig, Category: name, Message: "max_workers must be positive"}
		}
		if cfg.Timeout <= 0 {
			return nil, &tberrors.Error{Kind: tberrors.KindConfig, Category: name, Message: "timeout must be positive"}
		}
	}
	order, err := topsort.Sort(deps)
	if err != nil {
		return nil, tberrors.WrapKind(tberrors.KindConfig, err, "order categories")
	}

	steps := opts.Steps
	if steps == nil {
		steps = BuiltinSteps()
	}
	setup, err := lookupSteps(steps, "setup", opts.Setup)
	if err != nil {
		return nil, err
	}
	teardown, err := lookupSteps(steps, "teardown", opts.Teardown)
	if err != nil {
		return nil, err
	}

	exec := opts.Executor
	if exec == nil {
		exec = executor.New()
	}

	env := opts.StepEnv
	if env.Categories == nil {
		env.Categories = order
	}
	env.Log = opts.Logger

	return &Orchestrator{
		categories: categories,
		order:      order,
		resolver:   opts.Resolver,
		exec:       exec,
		setup:      setup,
		teardown:   teardown,
		stepEnv:    env,
		log:        opts.Logger,
		onOutcome:  opts.OnOutcome,
	}, nil
}

func lookupSteps(r *StepRegistry, phase string, names []string) ([]namedStep, error) {
	out := make([]namedStep, 0, len(names))
	for _, name := range names {
		fn, ok := r.Lookup(name)
		if !ok {
			return nil, tberrors.Configf("environment.%s: unknown step %q (available: %v)", phase, name, r.Names())
		}
		out = append(out, namedStep{name: name, fn: fn})
	}
	return out, nil
}

// Categories returns the configured category names in run order: every
// category after the categories it depends on, otherwise by name.
func (o *Orchestrator) Categories() []string {
	return append([]string(nil), o.order...)
}

// Setup runs the setup steps in order and stops at the first failure.
func (o *Orchestrator) Setup(ctx context.Context) error {
	for _, s := range o.setup {
		o.log.Info().Str("step", s.name).Msg("running setup step")
		if err := s.fn(ctx, o.stepEnv); err != nil {
			o.log.Error().Err(err).Str("step", s.name).Msg("setup step failed")
			return tberrors.WrapKind(tberrors.KindEnvironment, err, "setup step "+s.name)
		}
	}
	return nil
}

// Teardown runs every teardown step, even after failures, and returns the
// combined errors.
func (o *Orchestrator) Teardown(ctx context.Context) error {
	var result *multierror.Error
	for _, s := range o.teardown {
		o.log.Info().Str("step", s.name).Msg("running teardown step")
		if err := s.fn(ctx, o.stepEnv); err != nil {
			o.log.Error().Err(err).Str("step", s.name).Msg("teardown step failed")
			result = multierror.Append(result, tberrors.WrapKind(tberrors.KindEnvironment, err, "teardown step "+s.name))
		}
	}
	return result.ErrorOrNil()
}

// Run executes the named categories, or every configured category when none
// are given, one after another in run order. Dependencies are not added to
// an explicit selection. Unit failures are recorded as outcomes; only
// unknown categories, resolver failures and context cancellation return an
// error. Outcomes of categories completed before an error are still returned.
func (o *Orchestrator) Run(ctx context.Context, categories ...string) (map[string][]model.TestOutcome, error) {
	for _, name := range categories {
		if _, ok := o.categories[name]; !ok {
			return nil, tberrors.UnknownCategory(name)
		}
	}
	if len(categories) == 0 {
		categories = o.Categories()
	} else {
		categories = topsort.Filter(o.order, categories)
	}

	results := make(map[string][]model.TestOutcome, len(categories))
	for _, name := range categories {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		cfg := o.categories[name]
		units, err := o.resolver.Resolve(name)
		if err != nil {
			return results, &tberrors.Error{
				Kind:     tberrors.KindEnvironment,
				Category: name,
				Message:  "resolve units",
				Cause:    err,
			}
		}

		logger := o.log.With().Str("category", name).Logger()
		logger.Info().
			Int("units", len(units)).
			Bool("parallel", cfg.Parallel).
			Int("max_workers", cfg.MaxWorkers).
			Dur("timeout", cfg.Timeout).
			Msg("running category")

		start := time.Now()
		var outcomes []model.TestOutcome
		if cfg.Parallel {
			outcomes, err = o.runParallel(ctx, cfg, units)
		} else {
			outcomes, err = o.runSequential(ctx, cfg, units)
		}
		results[name] = outcomes
		if err != nil {
			return results, err
		}

		logger.Info().
			Int("outcomes", len(outcomes)).
			Dur("elapsed", time.Since(start)).
			Msg("category finished")
	}
	return results, nil
}

// runSequential executes units one at a time in submission order.
func (o *Orchestrator) runSequential(ctx context.Context, cfg model.CategoryConfig, units []unit.Unit) ([]model.TestOutcome, error) {
	outcomes := make([]model.TestOutcome, 0, len(units))
	for _, u := range units {
		// Early exit if context is canceled before starting the next unit
		if ctx.Err() != nil {
			return outcomes, ctx.Err()
		}
		out := o.exec.Execute(ctx, u, cfg.Timeout)
		o.notify(cfg.Name, out)
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

// runParallel executes units on a pool of cfg.MaxWorkers goroutines.
// Submission blocks while the pool is full. Each unit writes only its own
// slot, so the returned slice is in submission order.
func (o *Orchestrator) runParallel(ctx context.Context, cfg model.CategoryConfig, units []unit.Unit) ([]model.TestOutcome, error) {
	slots := make([]model.TestOutcome, len(units))
	done := make([]bool, len(units))

	var g errgroup.Group
	g.SetLimit(cfg.MaxWorkers)

	submitted := 0
	for i, u := range units {
		if ctx.Err() != nil {
			break
		}
		i, u := i, u
		g.Go(func() error {
			out := o.exec.Execute(ctx, u, cfg.Timeout)
			o.notify(cfg.Name, out)
			slots[i] = out
			done[i] = true
			return nil
		})
		submitted++
	}
	_ = g.Wait()

	outcomes := make([]model.TestOutcome, 0, submitted)
	for i := 0; i < submitted; i++ {
		if done[i] {
			outcomes = append(outcomes, slots[i])
		}
	}
	if submitted < len(units) {
		return outcomes, ctx.Err()
	}
	return outcomes, nil
}

func (o *Orchestrator) notify(category string, out model.TestOutcome) {
	if o.onOutcome != nil {
		o.onOutcome(category, out)
	}
}
