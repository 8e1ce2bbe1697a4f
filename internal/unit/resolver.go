package unit

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/jj-shen99/testbench/internal/testparser"
)

// Resolver returns the units belonging to a category, in submission order.
type Resolver interface {
	Resolve(category string) ([]Unit, error)
}

// FilePolicy describes how test files of one category are discovered and run.
type FilePolicy struct {
	Pattern string            // Glob matched against file base names
	Command []string          // Interpreter prefix; empty runs the file directly
	Parser  testparser.Parser // Optional; extracts case counts from output
}

// DefaultPattern returns the discovery glob used when a category does not
// configure one: any file whose name contains the category name.
func DefaultPattern(category string) string {
	return "*" + category + "*"
}

// FileResolver discovers test files below a directory.
type FileResolver struct {
	dir      string
	workDir  string
	policies map[string]FilePolicy
	env      map[string]string
}

// NewFileResolver creates a resolver rooted at dir. Units execute with
// workDir as their working directory.
func NewFileResolver(dir, workDir string, policies map[string]FilePolicy) *FileResolver {
	return &FileResolver{
		dir:      dir,
		workDir:  workDir,
		policies: policies,
	}
}

// WithEnv sets environment variables passed to every resolved unit.
func (r *FileResolver) WithEnv(env map[string]string) *FileResolver {
	r.env = env
	return r
}

// Resolve walks the tests directory and returns one Command unit per
// matching regular file, sorted by path for deterministic submission order.
func (r *FileResolver) Resolve(category string) ([]Unit, error) {
	policy := r.policies[category]
	pattern := policy.Pattern
	if pattern == "" {
		pattern = DefaultPattern(category)
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("category %q: invalid pattern %q: %w", category, pattern, err)
	}

	if _, err := os.Stat(r.dir); err != nil {
		return nil, fmt.Errorf("tests directory: %w", err)
	}

	var paths []string
	err := filepath.WalkDir(r.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		// Pattern was validated above, so Match cannot fail here.
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover %q tests: %w", category, err)
	}

	sort.Strings(paths)

	units := make([]Unit, 0, len(paths))
	for _, p := range paths {
		units = append(units, NewCommand(category, p, policy.Command, r.workDir).
			WithEnv(r.env).
			WithParser(policy.Parser))
	}
	return units, nil
}

// StaticResolver serves units from an in-memory map. Categories absent from
// the map resolve to no units.
type StaticResolver map[string][]Unit

// Resolve returns a copy of the units registered for category.
func (s StaticResolver) Resolve(category string) ([]Unit, error) {
	units := s[category]
	out := make([]Unit, len(units))
	copy(out, units)
	return out, nil
}
