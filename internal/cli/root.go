package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conductor/internal/telemetry"
)

// NewRootCmd собирает дерево команд conductor.
//
// Без --api-url команды выполняются в процессе над встроенным
// пайплайном (и манифестом, если задан --manifest).
func NewRootCmd(version string) *cobra.Command {
	var (
		apiURL     string
		jsonOutput bool
		verbose    bool
		local      LocalConfig
	)

	rootCmd := &cobra.Command{
		Use:           "conductor",
		Short:         "Conductor — task orchestration with dependency resolution",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&apiURL, "api-url", os.Getenv("CONDUCTOR_API_URL"), "API server URL (empty: run in-process)")
	pf.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Log orchestration events to stderr")
	pf.StringVar(&local.Manifest, "manifest", "", "YAML manifest with additional tasks (in-process only)")
	pf.StringVar(&local.Weights, "weights", "", "Admission weights file, .yaml or .hcl (in-process only)")
	pf.Float64Var(&local.Threshold, "threshold", 0, "Admission threshold override (in-process only)")
	pf.IntVar(&local.MaxWorkers, "max-workers", 0, "Worker pool bound (in-process only)")
	pf.DurationVar(&local.Latency, "latency", 0, "Simulated latency of builtin tasks (in-process only)")

	outputFn := func() *Output {
		return NewOutputTo(jsonOutput, rootCmd.OutOrStdout(), rootCmd.ErrOrStderr())
	}
	backendFn := func() (Backend, error) {
		if apiURL != "" {
			return NewClient(apiURL), nil
		}
		cfg := local
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		if verbose {
			cfg.Logger = telemetry.NewLogger(rootCmd.ErrOrStderr(), slog.LevelDebug, "text")
		}
		return NewLocal(cfg)
	}

	rootCmd.AddCommand(
		NewRunCmd(backendFn, outputFn),
		NewPlanCmd(backendFn, outputFn),
		NewTasksCmd(backendFn, outputFn),
		NewRunsCmd(backendFn, outputFn),
	)

	return rootCmd
}
