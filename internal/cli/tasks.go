package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewTasksCmd создаёт команду tasks — список зарегистрированных задач.
func NewTasksCmd(backendFn func() (Backend, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List registered tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := backendFn()
			if err != nil {
				return err
			}
			out := outputFn()

			tasks, err := backend.Tasks(cmd.Context())
			if err != nil {
				return err
			}

			headers := []string{"NAME", "PRIORITY", "CRITICAL", "ATTEMPTS", "DEPENDS_ON", "DESCRIPTION"}
			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = []string{
					t.Name,
					strconv.Itoa(t.Priority),
					strconv.FormatBool(t.Critical),
					strconv.Itoa(t.MaxAttempts),
					strings.Join(t.Dependencies, ","),
					t.Description,
				}
			}

			out.Print(headers, rows, tasks)
			return nil
		},
	}
}
