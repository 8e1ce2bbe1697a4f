package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jj-shen99/testbench/internal/unit"
	"github.com/jj-shen99/testbench/internal/workflow"
)

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the workflow file and list its categories",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.validate()
		},
	}
}

func (a *app) validate() error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	// Constructing an orchestrator resolves every environment step name.
	orch, err := workflow.New(workflow.Options{
		Categories: cfg.CategoryPolicies(),
		Resolver:   unit.StaticResolver{},
		Steps:      workflow.BuiltinSteps(),
		Setup:      cfg.Environment.Setup,
		Teardown:   cfg.Environment.Teardown,
	})
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(cfg.Categories))
	for _, name := range orch.Categories() {
		cat := cfg.Categories[name]
		mode := "sequential"
		if cat.Parallel {
			mode = "parallel"
		}
		pattern := cat.Pattern
		if pattern == "" {
			pattern = unit.DefaultPattern(name)
		}
		rows = append(rows, []string{
			name, mode, strconv.Itoa(cat.MaxWorkers), fmt.Sprintf("%gs", cat.Timeout),
			pattern, strings.Join(cat.Command, " "), strings.Join(cat.DependsOn, ","),
		})
	}
	a.out.Table([]string{"CATEGORY", "MODE", "WORKERS", "TIMEOUT", "PATTERN", "COMMAND", "DEPENDS"}, rows)
	a.out.FinalSuccess("Workflow is valid (%d categories)", len(cfg.Categories))
	return nil
}
