package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/questhold/questhold/internal/jobs"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect scheduled jobs",
	}
	jobsCmd.AddCommand(newJobsHistoryCommand(ctx))
	return jobsCmd
}

func newJobsHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs of the library scan job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(app *App) error {
				runs, err := app.Jobs.History(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No job runs recorded")
					return nil
				}

				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, historyRow(run))
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Job", "Started", "Duration", "Status", "Message"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	return cmd
}

func historyRow(run *jobs.JobRunResult) []string {
	return []string{
		run.JobName,
		run.StartedAt.Local().Format(time.DateTime),
		run.Duration().Round(time.Millisecond).String(),
		string(run.Status),
		run.Message,
	}
}
