package unit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jj-shen99/testbench/internal/testparser"
)

// waitDelay bounds how long Run waits for output pipes after the process is
// killed on cancellation.
const waitDelay = 2 * time.Second

// Command runs an external executable as a test unit. The exit code decides
// pass (0) or fail (non-zero).
type Command struct {
	category string
	path     string   // Test file or executable
	prefix   []string // Interpreter prefix (e.g., ["python3"])
	dir      string   // Working directory
	env      []string // Extra KEY=VALUE pairs
	parser   testparser.Parser
}

// NewCommand creates a command unit for path. When prefix is non-empty the
// unit runs `prefix... path`, otherwise path itself is executed.
func NewCommand(category, path string, prefix []string, dir string) *Command {
	return &Command{
		category: category,
		path:     path,
		prefix:   append([]string(nil), prefix...),
		dir:      dir,
	}
}

// WithEnv adds environment variables to the unit's process.
func (c *Command) WithEnv(env map[string]string) *Command {
	for k, v := range env {
		c.env = append(c.env, k+"="+v)
	}
	return c
}

// WithParser sets the parser applied to the unit's output. A nil parser
// leaves Result.Cases unset.
func (c *Command) WithParser(p testparser.Parser) *Command {
	c.parser = p
	return c
}

func (c *Command) Ref() string      { return c.path }
func (c *Command) Category() string { return c.category }

// Args returns the full argv the unit executes.
func (c *Command) Args() []string {
	args := make([]string, 0, len(c.prefix)+1)
	args = append(args, c.prefix...)
	return append(args, c.path)
}

// Run starts the process and waits for it. A missing executable or any other
// start failure is returned as an error; a non-zero exit is a failed Result.
func (c *Command) Run(ctx context.Context) (Result, error) {
	argv := c.Args()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = c.dir
	cmd.Env = append(os.Environ(), c.env...)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start %s: %w", strings.Join(argv, " "), err)
	}

	err := cmd.Wait()
	res := Result{
		Passed: err == nil,
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if c.parser != nil {
		if counts, ok := c.parser.Parse(res.Stdout + "\n" + res.Stderr); ok {
			res.Cases = &counts
		}
	}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return res, nil
	}
	return res, fmt.Errorf("wait %s: %w", strings.Join(argv, " "), err)
}
