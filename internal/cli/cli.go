// Package cli implements the testbench command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jj-shen99/testbench/internal/config"
	tberrors "github.com/jj-shen99/testbench/internal/errors"
	"github.com/jj-shen99/testbench/internal/logging"
	"github.com/jj-shen99/testbench/internal/output"
)

// Version is set at build time.
var Version = "dev"

// DefaultConfigFile is loaded from the working directory when --config is
// not given.
const DefaultConfigFile = "testbench.yaml"

// envPrefix prefixes environment variables that override flag defaults,
// e.g. TESTBENCH_RESULTS_DIR for --results-dir.
const envPrefix = "TESTBENCH"

// app carries the state shared by all commands of one invocation.
type app struct {
	out    *output.Writer
	errOut io.Writer
	v      *viper.Viper
	log    zerolog.Logger
}

// Run executes the CLI with the given arguments and returns an exit code.
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, args, output.New(), os.Stderr)
}

func run(ctx context.Context, args []string, out *output.Writer, errOut io.Writer) int {
	a := newApp(out, errOut)
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(out.Out())
	root.SetErr(errOut)

	if err := root.ExecuteContext(ctx); err != nil {
		out.ErrorPrefix("%v", err)
		return tberrors.GetExitCode(err)
	}
	return tberrors.ExitSuccess
}

func newApp(out *output.Writer, errOut io.Writer) *app {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return &app{
		out:    out,
		errOut: errOut,
		v:      v,
		log:    logging.Nop(),
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "testbench",
		Short:         "Run categorized test suites and load, stress and endurance tests",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Flags())
		},
	}

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "workflow file (default ./"+DefaultConfigFile+" if present)")
	pf.String("log-level", "warn", "log level: debug, info, warn, error")
	pf.Bool("log-json", false, "write logs as JSON")
	pf.BoolP("quiet", "q", false, "only print failures and summaries")
	pf.Bool("no-color", false, "disable colored output")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return tberrors.WrapKind(tberrors.KindConfig, err, "invalid flags")
	})

	root.AddCommand(
		a.runCmd(),
		a.perfCmd(),
		a.validateCmd(),
		a.historyCmd(),
		a.versionCmd(),
	)
	return root
}

// init binds the executing command's flags to viper and configures output
// and logging.
func (a *app) init(flags *pflag.FlagSet) error {
	if err := a.v.BindPFlags(flags); err != nil {
		return tberrors.WrapKind(tberrors.KindConfig, err, "bind flags")
	}
	// JSON documents own stdout.
	a.out.SetQuiet(a.v.GetBool("quiet") || a.v.GetBool("json"))
	if a.v.GetBool("no-color") {
		a.out.SetColor(false)
	}
	a.log = logging.New(logging.Options{
		Level:   a.v.GetString("log-level"),
		JSON:    a.v.GetBool("log-json"),
		NoColor: a.v.GetBool("no-color"),
		Out:     a.errOut,
	})
	return nil
}

// loadConfig loads the workflow file named by --config, the default file in
// the working directory, or the built-in defaults, in that order.
func (a *app) loadConfig() (*config.Config, error) {
	path := a.v.GetString("config")
	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path == "" {
		a.log.Debug().Msg("no workflow file, using defaults")
		return config.Default(), nil
	}

	cfg, warnings, err := config.LoadAndValidate(path)
	for _, w := range warnings {
		a.out.Warning("%s: %s", path, w)
	}
	if err != nil {
		return nil, err
	}
	a.log.Debug().Str("path", path).Int("categories", len(cfg.Categories)).Msg("loaded workflow")
	return cfg, nil
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the testbench version",
		Args:  noArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "testbench %s\n", Version)
		},
	}
}
