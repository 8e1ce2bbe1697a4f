// Package testbench provides public constants for tools that drive the
// testbench CLI.
package testbench

// Exit codes returned by the testbench CLI.
const (
	// ExitSuccess indicates the command completed. Failed, errored or timed
	// out tests are reported in the results and still exit with success.
	ExitSuccess = 0

	// ExitFailure indicates the engine itself failed to run.
	ExitFailure = 1

	// ExitConfigError indicates an invalid workflow file, flag or unknown
	// category.
	ExitConfigError = 2

	// ExitEnvError indicates an environment failure such as a missing tests
	// directory or an unwritable results directory.
	ExitEnvError = 3
)
