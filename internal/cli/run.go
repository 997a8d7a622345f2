package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/pipeline"
)

// RunNotCompletedError — run завершился со статусом, отличным от COMPLETED.
// main превращает её в ненулевой код выхода.
type RunNotCompletedError struct {
	Status string
}

// Error реализует интерфейс error.
func (e *RunNotCompletedError) Error() string {
	return "run finished with status " + e.Status
}

// requestFlags — флаги, описывающие run request.
type requestFlags struct {
	id             string
	tasks          []string
	description    string
	maxConcurrency int
	sequential     bool
	noFallback     bool
	fail           []string
	shared         []string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.id, "id", "", "Request ID (generated if empty)")
	cmd.Flags().StringSliceVar(&f.tasks, "tasks", nil, "Tasks to run (comma-separated, repeatable)")
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "Free-text description used by admission control")
	cmd.Flags().IntVar(&f.maxConcurrency, "max-concurrency", 0, "Concurrent task limit (0 = server default)")
	cmd.Flags().BoolVar(&f.sequential, "sequential", false, "Disallow the concurrent strategy")
	cmd.Flags().BoolVar(&f.noFallback, "no-fallback", false, "Do not retry sequentially on scheduler fault")
	cmd.Flags().StringSliceVar(&f.fail, "fail", nil, "Builtin tasks that must fail (demo)")
	cmd.Flags().StringSliceVar(&f.shared, "shared", nil, "Shared context values as KEY=VALUE (repeatable)")
}

// request строит RunRequest. Позиционные аргументы добавляются к --tasks.
func (f *requestFlags) request(args []string) (*domain.RunRequest, error) {
	tasks := append(append([]string{}, f.tasks...), args...)
	if len(tasks) == 0 {
		return nil, fmt.Errorf("no tasks given: use --tasks or positional arguments")
	}

	req := domain.NewRunRequest(f.description, tasks...)
	if f.id != "" {
		id, err := uuid.Parse(f.id)
		if err != nil {
			return nil, fmt.Errorf("invalid --id: %w", err)
		}
		req.ID = id
	}

	req.Options.MaxConcurrency = f.maxConcurrency
	req.Options.AllowParallel = !f.sequential
	req.Options.AllowFallback = !f.noFallback

	if len(f.shared) > 0 || len(f.fail) > 0 {
		req.Shared = make(map[string]any)
	}
	for _, kv := range f.shared {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid shared format %q, expected KEY=VALUE", kv)
		}
		req.Shared[parts[0]] = parts[1]
	}
	if len(f.fail) > 0 {
		req.Shared[pipeline.SharedFail] = f.fail
	}

	return req, nil
}

// NewRunCmd создаёт команду run.
func NewRunCmd(backendFn func() (Backend, error), outputFn func() *Output) *cobra.Command {
	var flags requestFlags
	var async bool

	cmd := &cobra.Command{
		Use:   "run [TASK...]",
		Short: "Run tasks and their dependencies",
		Example: `  conductor run --tasks validator -d "refactor the parser"
  conductor run reporter --fail implementer --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(args)
			if err != nil {
				return err
			}

			backend, err := backendFn()
			if err != nil {
				return err
			}
			out := outputFn()

			run, err := backend.Run(cmd.Context(), req, async)
			if err != nil {
				return err
			}

			if async {
				out.Success(fmt.Sprintf("Run queued: %s", run.RequestID))
				out.Print([]string{"REQUEST_ID", "STATUS"}, [][]string{{run.RequestID, run.Status}}, run)
				return nil
			}

			printRun(out, run)
			if run.Failed() {
				return &RunNotCompletedError{Status: run.Status}
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&async, "async", false, "Only enqueue the request (requires --api-url and a broker)")

	return cmd
}

// NewPlanCmd создаёт команду plan.
func NewPlanCmd(backendFn func() (Backend, error), outputFn func() *Output) *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:   "plan [TASK...]",
		Short: "Show the resolved execution order and strategy without running",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(args)
			if err != nil {
				return err
			}

			backend, err := backendFn()
			if err != nil {
				return err
			}
			out := outputFn()

			plan, err := backend.Plan(cmd.Context(), req)
			if err != nil {
				return err
			}

			headers := []string{"#", "TASK", "PRIORITY", "CRITICAL", "DEPENDS_ON"}
			rows := make([][]string, len(plan.Tasks))
			for i, t := range plan.Tasks {
				rows[i] = []string{
					strconv.Itoa(i + 1),
					t.Name,
					strconv.Itoa(t.Priority),
					strconv.FormatBool(t.Critical),
					strings.Join(t.Dependencies, ","),
				}
			}

			out.Print(headers, rows, plan)
			out.Line("\nstrategy: %s (score %.1f: %s)", plan.Decision.Strategy, plan.Decision.Score, plan.Decision.Reason)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

// printRun выводит итог run: таблицу записей и сводку.
func printRun(out *Output, run *RunView) {
	headers := []string{"TASK", "STATUS", "CRITICAL", "ATTEMPTS", "DURATION", "DETAIL"}
	rows := make([][]string, len(run.Records))
	for i, r := range run.Records {
		detail := r.Error
		if r.SkipReason != "" {
			detail = r.SkipReason
		}
		rows[i] = []string{
			r.Task,
			r.Status,
			strconv.FormatBool(r.Critical),
			strconv.Itoa(r.Attempts),
			r.HandlerDuration.Round(time.Millisecond).String(),
			detail,
		}
	}

	out.Print(headers, rows, run)

	out.Line("\nrun %s: %s via %s (score %.1f) in %s",
		run.RequestID, run.Status, run.Strategy, run.Score, run.Duration().Round(time.Millisecond))
	out.Line("succeeded %d, failed %d, skipped %d", run.SuccessCount, run.FailureCount, run.SkippedCount)
	if run.Fault != "" {
		out.Line("fault: %s", run.Fault)
	}
	for _, rec := range run.Recommendations {
		out.Line("- %s", rec)
	}
}
