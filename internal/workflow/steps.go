package workflow

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jj-shen99/testbench/internal/unit"
)

// StepEnv is the context handed to environment steps.
type StepEnv struct {
	ResultsDir string   // Per-run results directory
	DataDir    string   // Scratch data produced by tests; optional
	StateDir   string   // Persistent state reset between runs; optional
	Categories []string // Configured category names
	Log        zerolog.Logger

	WorkDir     string   // Working directory of DataCommand
	DataCommand []string // Test data generator run by load_test_data; optional
	ArchiveDir  string   // Destination of archive_results; defaults to the results parent
}

// Step is one named environment setup or teardown action.
type Step func(ctx context.Context, env StepEnv) error

// StepRegistry maps step names from the configuration to implementations.
type StepRegistry struct {
	steps map[string]Step
}

// NewStepRegistry creates an empty registry.
func NewStepRegistry() *StepRegistry {
	return &StepRegistry{steps: make(map[string]Step)}
}

// BuiltinSteps returns a registry holding the setup steps clean_workspace,
// init_database and load_test_data and the teardown steps cleanup_data,
// reset_state and archive_results.
func BuiltinSteps() *StepRegistry {
	r := NewStepRegistry()
	r.Register("clean_workspace", cleanWorkspace)
	r.Register("init_database", initDatabase)
	r.Register("load_test_data", loadTestData)
	r.Register("cleanup_data", cleanupData)
	r.Register("reset_state", resetState)
	r.Register("archive_results", archiveResults)
	return r
}

// Register adds or replaces a step.
func (r *StepRegistry) Register(name string, step Step) {
	r.steps[name] = step
}

// Lookup returns the step registered under name.
func (r *StepRegistry) Lookup(name string) (Step, bool) {
	s, ok := r.steps[name]
	return s, ok
}

// Names returns the registered step names in sorted order.
func (r *StepRegistry) Names() []string {
	names := make([]string, 0, len(r.steps))
	for name := range r.steps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// cleanWorkspace creates one empty results subdirectory per category.
func cleanWorkspace(ctx context.Context, env StepEnv) error {
	if env.ResultsDir == "" {
		return fmt.Errorf("results directory is not set")
	}
	for _, cat := range env.Categories {
		if err := ctx.Err(); err != nil {
			return err
		}
		dir := filepath.Join(env.ResultsDir, cat)
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("clean %s: %w", dir, err)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	env.Log.Info().Str("dir", env.ResultsDir).Msg("workspace cleaned")
	return nil
}

func cleanupData(_ context.Context, env StepEnv) error {
	if env.DataDir == "" {
		env.Log.Debug().Msg("no data directory configured, nothing to clean")
		return nil
	}
	if err := os.RemoveAll(env.DataDir); err != nil {
		return fmt.Errorf("remove %s: %w", env.DataDir, err)
	}
	env.Log.Info().Str("dir", env.DataDir).Msg("test data removed")
	return nil
}

func resetState(_ context.Context, env StepEnv) error {
	if env.StateDir == "" {
		env.Log.Debug().Msg("no state directory configured, nothing to reset")
		return nil
	}
	if err := os.RemoveAll(env.StateDir); err != nil {
		return fmt.Errorf("remove %s: %w", env.StateDir, err)
	}
	if err := os.MkdirAll(env.StateDir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", env.StateDir, err)
	}
	env.Log.Info().Str("dir", env.StateDir).Msg("state reset")
	return nil
}

// initDatabase prepares the state directory that test databases live in.
func initDatabase(_ context.Context, env StepEnv) error {
	if env.StateDir == "" {
		env.Log.Debug().Msg("no state directory configured, nothing to initialize")
		return nil
	}
	if err := os.MkdirAll(env.StateDir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", env.StateDir, err)
	}
	env.Log.Info().Str("dir", env.StateDir).Msg("database directory ready")
	return nil
}

// loadTestData runs the configured data generator with TESTBENCH_DATA_DIR
// pointing at the data directory.
func loadTestData(ctx context.Context, env StepEnv) error {
	if len(env.DataCommand) == 0 {
		env.Log.Debug().Msg("no data command configured, nothing to load")
		return nil
	}
	if env.DataDir != "" {
		if err := os.MkdirAll(env.DataDir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", env.DataDir, err)
		}
	}

	argv := env.DataCommand
	cmd := unit.NewCommand("environment", argv[len(argv)-1], argv[:len(argv)-1], env.WorkDir).
		WithEnv(map[string]string{"TESTBENCH_DATA_DIR": env.DataDir})
	res, err := cmd.Run(ctx)
	if err != nil {
		return fmt.Errorf("run data command: %w", err)
	}
	if !res.Passed {
		return fmt.Errorf("data command %q failed: %s", strings.Join(argv, " "), strings.TrimSpace(res.Stderr))
	}
	env.Log.Info().Strs("command", argv).Msg("test data loaded")
	return nil
}

// archiveResults writes the results directory to
// <archive dir>/<results base>_<timestamp>.tar.gz.
func archiveResults(ctx context.Context, env StepEnv) error {
	if env.ResultsDir == "" {
		return fmt.Errorf("results directory is not set")
	}
	if _, err := os.Stat(env.ResultsDir); os.IsNotExist(err) {
		env.Log.Debug().Str("dir", env.ResultsDir).Msg("no results to archive")
		return nil
	}

	dest := env.ArchiveDir
	if dest == "" {
		dest = filepath.Dir(filepath.Clean(env.ResultsDir))
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	name := fmt.Sprintf("%s_%s.tar.gz", filepath.Base(filepath.Clean(env.ResultsDir)), time.Now().Format("20060102_150405"))
	path := filepath.Join(dest, name)

	if err := writeTarGz(ctx, path, env.ResultsDir); err != nil {
		os.Remove(path)
		return fmt.Errorf("archive %s: %w", env.ResultsDir, err)
	}
	env.Log.Info().Str("archive", path).Msg("results archived")
	return nil
}

func writeTarGz(ctx context.Context, path, root string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	err = filepath.WalkDir(root, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == path {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		src, err := os.Open(p)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(tw, src)
		return err
	})
	if err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return f.Close()
}
