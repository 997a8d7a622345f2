package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shaiso/Conductor/internal/api"
	"github.com/shaiso/Conductor/internal/orchestrator"
	"github.com/shaiso/Conductor/internal/pipeline"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd("test")
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRun_Local(t *testing.T) {
	stdout, _, err := execute(t, "run", "--tasks", "validator", "-d", "add login form")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, want := range []string{"analyzer", "planner", "implementer", "validator", "COMPLETED via SEQUENTIAL"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q:\n%s", want, stdout)
		}
	}
}

func TestRun_LocalJSON(t *testing.T) {
	stdout, _, err := execute(t, "run", "reporter", "--json", "--fail", "validator")
	var notCompleted *RunNotCompletedError
	if !errors.As(err, &notCompleted) || notCompleted.Status != "PARTIALLY_COMPLETED" {
		t.Fatalf("expected PARTIALLY_COMPLETED error, got %v", err)
	}

	var run RunView
	if err := json.Unmarshal([]byte(stdout), &run); err != nil {
		t.Fatalf("decode: %v\n%s", err, stdout)
	}
	if run.FailureCount != 1 || run.SuccessCount != 4 {
		t.Errorf("counts = %d ok / %d failed", run.SuccessCount, run.FailureCount)
	}
	for _, rec := range run.Records {
		if rec.Task == pipeline.TaskValidator && !strings.Contains(rec.Error, "simulated failure") {
			t.Errorf("validator error = %q", rec.Error)
		}
	}
}

func TestRun_Concurrent(t *testing.T) {
	stdout, _, err := execute(t, "run", "reporter", "--json", "--threshold", "1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var run RunView
	if err := json.Unmarshal([]byte(stdout), &run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if run.Strategy != "CONCURRENT" {
		t.Errorf("Strategy = %s, want CONCURRENT", run.Strategy)
	}

	stdout, _, err = execute(t, "run", "reporter", "--json", "--threshold", "1", "--sequential")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := json.Unmarshal([]byte(stdout), &run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if run.Strategy != "SEQUENTIAL" {
		t.Errorf("--sequential must force SEQUENTIAL, got %s", run.Strategy)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no tasks", []string{"run"}, "no tasks given"},
		{"unknown task", []string{"run", "deployer"}, "not registered"},
		{"bad id", []string{"run", "analyzer", "--id", "x"}, "invalid --id"},
		{"bad shared", []string{"run", "analyzer", "--shared", "novalue"}, "KEY=VALUE"},
		{"async local", []string{"run", "analyzer", "--async"}, "--api-url"},
		{"runs local", []string{"runs", "list"}, "--api-url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestPlan_Local(t *testing.T) {
	stdout, _, err := execute(t, "plan", "--tasks", "validator,reporter", "--json")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	var plan orchestrator.Plan
	if err := json.Unmarshal([]byte(stdout), &plan); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(plan.Tasks) != 5 || plan.Tasks[0].Name != pipeline.TaskAnalyzer {
		t.Errorf("unexpected plan: %+v", plan.Tasks)
	}

	stdout, _, err = execute(t, "plan", "implementer")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !strings.Contains(stdout, "strategy: SEQUENTIAL") {
		t.Errorf("table output must show strategy:\n%s", stdout)
	}
}

func TestTasks_Local(t *testing.T) {
	stdout, _, err := execute(t, "tasks")
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 7 { // заголовок, разделитель, 5 задач
		t.Errorf("expected 7 lines, got %d:\n%s", len(lines), stdout)
	}
	if !strings.HasPrefix(lines[0], "NAME") {
		t.Errorf("unexpected header %q", lines[0])
	}
}

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()

	reg, err := pipeline.NewRegistry(pipeline.Options{}, "")
	if err != nil {
		t.Fatal(err)
	}
	history := orchestrator.NewHistory(10)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch, err := orchestrator.New(orchestrator.Config{
		Registry: reg,
		Sinks:    []orchestrator.Sink{history},
		Logger:   logger,
	})
	if err != nil {
		t.Fatal(err)
	}

	mux := http.NewServeMux()
	api.NewHandler(api.Config{
		Runner:  orch,
		Catalog: reg,
		History: history,
		Logger:  logger,
	}).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemote(t *testing.T) {
	srv := newAPIServer(t)

	stdout, _, err := execute(t, "--api-url", srv.URL, "run", "validator", "--json", "--fail", "planner")
	var notCompleted *RunNotCompletedError
	if !errors.As(err, &notCompleted) || notCompleted.Status != "ABORTED" {
		t.Fatalf("expected ABORTED, got %v", err)
	}
	var run RunView
	if err := json.Unmarshal([]byte(stdout), &run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(run.Records) != 4 || run.Records[1].Error == "" {
		t.Errorf("records must carry errors: %+v", run.Records)
	}

	stdout, _, err = execute(t, "--api-url", srv.URL, "runs", "show", run.RequestID)
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	if !strings.Contains(stdout, "ABORTED") {
		t.Errorf("show output:\n%s", stdout)
	}

	stdout, _, err = execute(t, "--api-url", srv.URL, "runs", "list", "--json")
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	var runs []RunView
	if err := json.Unmarshal([]byte(stdout), &runs); err != nil || len(runs) != 1 {
		t.Errorf("runs list = %v, %v", runs, err)
	}

	stdout, _, err = execute(t, "--api-url", srv.URL, "tasks", "--json")
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	var tasks []TaskView
	if err := json.Unmarshal([]byte(stdout), &tasks); err != nil || len(tasks) != 5 {
		t.Errorf("tasks = %v, %v", tasks, err)
	}
}

func TestRemote_APIError(t *testing.T) {
	srv := newAPIServer(t)

	_, _, err := execute(t, "--api-url", srv.URL, "run", "deployer")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity || apiErr.Code != "INVALID_REQUEST" {
		t.Errorf("unexpected error %+v", apiErr)
	}

	_, _, err = execute(t, "--api-url", srv.URL, "runs", "show", "not-a-uuid")
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
