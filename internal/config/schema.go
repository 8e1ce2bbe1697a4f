// Package config provides loading and validation of the YAML workflow
// configuration.
package config

// Config represents the complete workflow configuration.
type Config struct {
	Categories  map[string]*CategoryConfig `yaml:"categories"`
	Execution   *ExecutionConfig           `yaml:"execution,omitempty"`
	Environment *EnvironmentConfig         `yaml:"environment,omitempty"`
	Load        *LoadConfig                `yaml:"load,omitempty"`
}

// CategoryConfig is the execution policy of one test category.
type CategoryConfig struct {
	Parallel   bool     `yaml:"parallel"`
	MaxWorkers int      `yaml:"max_workers,omitempty"` // Falls back to execution.max_workers
	Timeout    float64  `yaml:"timeout"`               // Seconds
	Pattern    string   `yaml:"pattern,omitempty"`     // Defaults to "*<name>*"
	Command    []string `yaml:"command,omitempty"`     // Interpreter prefix
	Parser     string   `yaml:"parser,omitempty"`      // Output parser for case counts
	DependsOn  []string `yaml:"depends_on,omitempty"`  // Categories that run first
}

// ExecutionConfig contains settings shared by all categories.
type ExecutionConfig struct {
	MaxWorkers int               `yaml:"max_workers,omitempty"`
	TestsDir   string            `yaml:"tests_dir,omitempty"`
	ResultsDir string            `yaml:"results_dir,omitempty"`
	WorkDir    string            `yaml:"work_dir,omitempty"`
	DataDir    string            `yaml:"data_dir,omitempty"`
	StateDir   string            `yaml:"state_dir,omitempty"`
	Env        map[string]string `yaml:"env,omitempty"`
}

// EnvironmentConfig lists the setup and teardown steps around a run.
type EnvironmentConfig struct {
	Setup       []string `yaml:"setup,omitempty"`
	Teardown    []string `yaml:"teardown,omitempty"`
	DataCommand []string `yaml:"data_command,omitempty"` // Run by load_test_data
	ArchiveDir  string   `yaml:"archive_dir,omitempty"`  // Written by archive_results
}

// LoadConfig configures load, stress and endurance runs.
type LoadConfig struct {
	SubmitInterval float64          `yaml:"submit_interval,omitempty"`  // Seconds
	MaxAvgResponse float64          `yaml:"max_avg_response,omitempty"` // Seconds
	MinSuccessRate float64          `yaml:"min_success_rate,omitempty"` // Percent
	Stress         *StressConfig    `yaml:"stress,omitempty"`
	Endurance      *EnduranceConfig `yaml:"endurance,omitempty"`
}

// StressConfig configures the stepped user counts of a stress run.
type StressConfig struct {
	StartUsers int     `yaml:"start_users,omitempty"`
	MaxUsers   int     `yaml:"max_users,omitempty"`
	Step       int     `yaml:"step,omitempty"`
	Window     float64 `yaml:"window,omitempty"` // Seconds per step
}

// EnduranceConfig configures a sustained-load run.
type EnduranceConfig struct {
	Users    int     `yaml:"users,omitempty"`
	Duration float64 `yaml:"duration,omitempty"` // Total seconds
	Interval float64 `yaml:"interval,omitempty"` // Seconds per window
}
