package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/engine"
	"github.com/shaiso/Conductor/internal/registry"
)

var errBoom = errors.New("boom")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{Logger: quietLogger()}
}

// succeed возвращает handler, отдающий outputs {"task": name}.
func succeed(name string) domain.Handler {
	return func(ctx context.Context, in *domain.HandlerInput) (domain.Outputs, error) {
		return domain.Outputs{"task": name}, nil
	}
}

func fail(ctx context.Context, in *domain.HandlerInput) (domain.Outputs, error) {
	return nil, errBoom
}

// sum складывает поле "n" всех зависимостей и добавляет own.
func sum(own int) domain.Handler {
	return func(ctx context.Context, in *domain.HandlerInput) (domain.Outputs, error) {
		total := own
		for _, out := range in.Deps {
			total += out["n"].(int)
		}
		return domain.Outputs{"n": total}, nil
	}
}

// resolve регистрирует задачи и разрешает names.
func resolve(t *testing.T, decls []domain.TaskDecl, names ...string) []*domain.TaskDecl {
	t.Helper()

	reg := registry.New()
	if err := reg.RegisterBatch(decls...); err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(names) == 0 {
		names = reg.Names()
	}

	order, err := engine.Resolve(reg, names)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return order
}

func request(opts domain.RunOptions) *domain.RunRequest {
	req := domain.NewRunRequest("test run")
	req.Options = opts
	return req
}

func statusOf(t *testing.T, result *domain.RunResult, task string) domain.TaskStatus {
	t.Helper()
	rec, ok := result.Record(task)
	if !ok {
		t.Fatalf("no record for %s", task)
	}
	return rec.Status
}

func expectStatus(t *testing.T, result *domain.RunResult, want map[string]domain.TaskStatus) {
	t.Helper()
	for task, status := range want {
		if got := statusOf(t, result, task); got != status {
			t.Errorf("task %s: expected %s, got %s", task, status, got)
		}
	}
}

// completedOutputs возвращает outputs завершённых задач.
func completedOutputs(result *domain.RunResult) map[string]string {
	out := make(map[string]string)
	for _, rec := range result.Records {
		if rec.Status == domain.TaskStatusCompleted {
			out[rec.Task] = fmt.Sprint(rec.Outputs)
		}
	}
	return out
}

// pipelineDecls — analyzer → planner → implementer(critical, fails) → validator.
func pipelineDecls() []domain.TaskDecl {
	return []domain.TaskDecl{
		{Name: "analyzer", Priority: 100, Critical: true, Handler: succeed("analyzer")},
		{Name: "planner", Priority: 90, Dependencies: []string{"analyzer"}, Handler: succeed("planner")},
		{Name: "implementer", Priority: 80, Critical: true, Dependencies: []string{"planner"}, Handler: fail},
		{Name: "validator", Priority: 70, Dependencies: []string{"implementer"}, Handler: succeed("validator")},
	}
}
