package config

import "runtime"

// Default configuration values.
const (
	DefaultTestsDir       = "tests"
	DefaultResultsDir     = "results"
	DefaultTimeout        = 300.0
	DefaultSubmitInterval = 0.1
	DefaultMaxAvgResponse = 1.0
	DefaultMinSuccessRate = 95.0

	DefaultStressStartUsers = 100
	DefaultStressMaxUsers   = 1000
	DefaultStressStep       = 100
	DefaultStressWindow     = 30.0

	DefaultEnduranceUsers    = 100
	DefaultEnduranceDuration = 3600.0
	DefaultEnduranceInterval = 300.0
)

// DefaultMaxWorkers returns the worker count used when execution.max_workers
// is unset. Always at least 1.
func DefaultMaxWorkers() int {
	return max(1, runtime.NumCPU())
}

// Default returns the configuration used when no file is given: unit tests
// in parallel, integration and performance tests sequentially.
func Default() *Config {
	cfg := &Config{
		Categories: map[string]*CategoryConfig{
			"unit":        {Parallel: true, Timeout: 300},
			"integration": {Parallel: false, Timeout: 600},
			"performance": {Parallel: false, Timeout: 1800},
		},
		Environment: &EnvironmentConfig{
			Setup:    []string{"clean_workspace"},
			Teardown: []string{"cleanup_data", "reset_state"},
		},
	}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills in default values for unset configuration fields.
func applyDefaults(cfg *Config) {
	applyExecutionDefaults(cfg)
	applyCategoryDefaults(cfg)
	applyLoadDefaults(cfg)
	if cfg.Environment == nil {
		cfg.Environment = &EnvironmentConfig{}
	}
}

func applyExecutionDefaults(cfg *Config) {
	if cfg.Execution == nil {
		cfg.Execution = &ExecutionConfig{}
	}
	e := cfg.Execution
	if e.MaxWorkers == 0 {
		e.MaxWorkers = DefaultMaxWorkers()
	}
	if e.TestsDir == "" {
		e.TestsDir = DefaultTestsDir
	}
	if e.ResultsDir == "" {
		e.ResultsDir = DefaultResultsDir
	}
}

func applyCategoryDefaults(cfg *Config) {
	for name, cat := range cfg.Categories {
		if cat == nil {
			cat = &CategoryConfig{}
			cfg.Categories[name] = cat
		}
		if cat.MaxWorkers == 0 {
			cat.MaxWorkers = cfg.Execution.MaxWorkers
		}
		if cat.Timeout == 0 {
			cat.Timeout = DefaultTimeout
		}
	}
}

func applyLoadDefaults(cfg *Config) {
	if cfg.Load == nil {
		cfg.Load = &LoadConfig{}
	}
	l := cfg.Load
	if l.SubmitInterval == 0 {
		l.SubmitInterval = DefaultSubmitInterval
	}
	if l.MaxAvgResponse == 0 {
		l.MaxAvgResponse = DefaultMaxAvgResponse
	}
	if l.MinSuccessRate == 0 {
		l.MinSuccessRate = DefaultMinSuccessRate
	}

	if l.Stress == nil {
		l.Stress = &StressConfig{}
	}
	if l.Stress.StartUsers == 0 {
		l.Stress.StartUsers = DefaultStressStartUsers
	}
	if l.Stress.MaxUsers == 0 {
		l.Stress.MaxUsers = max(DefaultStressMaxUsers, l.Stress.StartUsers)
	}
	if l.Stress.Step == 0 {
		l.Stress.Step = DefaultStressStep
	}
	if l.Stress.Window == 0 {
		l.Stress.Window = DefaultStressWindow
	}

	if l.Endurance == nil {
		l.Endurance = &EnduranceConfig{}
	}
	if l.Endurance.Users == 0 {
		l.Endurance.Users = DefaultEnduranceUsers
	}
	if l.Endurance.Duration == 0 {
		l.Endurance.Duration = DefaultEnduranceDuration
	}
	if l.Endurance.Interval == 0 {
		l.Endurance.Interval = DefaultEnduranceInterval
	}
}
