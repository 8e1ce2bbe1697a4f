package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	tberrors "github.com/jj-shen99/testbench/internal/errors"
	"github.com/jj-shen99/testbench/internal/store"
)

func (a *app) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, or the details of one run",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.history(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.String("history-db", "", "SQLite database written by run and perf")
	f.Int("limit", 20, "number of runs to list (0 lists all)")
	f.String("run", "", "show the category results and load points of this run")
	f.Bool("json", false, "print as JSON")
	return cmd
}

func (a *app) history(ctx context.Context) error {
	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if st == nil {
		return tberrors.Config("--history-db is required")
	}
	defer st.Close()

	if id := a.v.GetString("run"); id != "" {
		return a.showRun(ctx, st, id)
	}

	runs, err := st.ListRuns(ctx, a.v.GetInt("limit"))
	if err != nil {
		return tberrors.WrapKind(tberrors.KindEnvironment, err, "list runs")
	}
	if a.v.GetBool("json") {
		return a.printJSON(runs)
	}
	if len(runs) == 0 {
		a.out.Info("No runs recorded")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID, r.Kind, r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			strconv.Itoa(r.Total), strconv.Itoa(r.Passed), strconv.Itoa(r.Failed),
			strconv.Itoa(r.Errors), strconv.Itoa(r.Timeouts), fmt.Sprintf("%.2fs", r.DurationSeconds),
		})
	}
	a.out.Table([]string{"ID", "KIND", "STARTED", "TOTAL", "PASSED", "FAILED", "ERRORS", "TIMEOUTS", "DURATION"}, rows)
	return nil
}

func (a *app) showRun(ctx context.Context, st *store.Store, id string) error {
	cats, err := st.CategoryResults(ctx, id)
	if err != nil {
		return tberrors.WrapKind(tberrors.KindEnvironment, err, "read run")
	}
	points, err := st.LoadPoints(ctx, id)
	if err != nil {
		return tberrors.WrapKind(tberrors.KindEnvironment, err, "read run")
	}
	if len(cats) == 0 && len(points) == 0 {
		return tberrors.NotFound("run", id)
	}

	if a.v.GetBool("json") {
		return a.printJSON(map[string]interface{}{
			"run_id":     id,
			"categories": cats,
			"points":     points,
		})
	}

	if len(cats) > 0 {
		rows := make([][]string, 0, len(cats))
		for _, c := range cats {
			rows = append(rows, []string{
				c.Category, strconv.Itoa(c.Total), strconv.Itoa(c.Passed), strconv.Itoa(c.Failed),
				strconv.Itoa(c.Errors), strconv.Itoa(c.Timeouts), fmt.Sprintf("%.2fs", c.DurationSeconds),
			})
		}
		a.out.Table([]string{"CATEGORY", "TOTAL", "PASSED", "FAILED", "ERRORS", "TIMEOUTS", "DURATION"}, rows)
	}
	if len(points) > 0 {
		a.out.LoadPoints(points)
	}
	return nil
}
