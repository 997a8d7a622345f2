package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewRunsCmd создаёт группу команд для просмотра итогов на сервере.
func NewRunsCmd(backendFn func() (Backend, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect finished runs (requires --api-url)",
	}

	cmd.AddCommand(
		newRunsListCmd(backendFn, outputFn),
		newRunsShowCmd(backendFn, outputFn),
	)

	return cmd
}

func newRunsListCmd(backendFn func() (Backend, error), outputFn func() *Output) *cobra.Command {
	var opts ListRunsOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := backendFn()
			if err != nil {
				return err
			}
			out := outputFn()

			runs, err := backend.ListRuns(cmd.Context(), opts)
			if err != nil {
				return err
			}

			headers := []string{"REQUEST_ID", "STRATEGY", "STATUS", "OK", "FAILED", "SKIPPED", "FINISHED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{
					r.RequestID,
					r.Strategy,
					r.Status,
					strconv.Itoa(r.SuccessCount),
					strconv.Itoa(r.FailureCount),
					strconv.Itoa(r.SkippedCount),
					r.FinishedAt.Format(time.RFC3339),
				}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (COMPLETED, PARTIALLY_COMPLETED, ABORTED)")
	cmd.Flags().StringVar(&opts.Strategy, "strategy", "", "Filter by strategy")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newRunsShowCmd(backendFn func() (Backend, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show REQUEST_ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := backendFn()
			if err != nil {
				return err
			}

			run, err := backend.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			printRun(outputFn(), run)
			return nil
		},
	}
}
