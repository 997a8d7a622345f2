package cli

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shaiso/Conductor/internal/admission"
	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/orchestrator"
	"github.com/shaiso/Conductor/internal/pipeline"
	"github.com/shaiso/Conductor/internal/registry"
)

// ErrRemoteOnly — команда доступна только с --api-url.
var ErrRemoteOnly = errors.New("this command requires --api-url")

// Backend выполняет команды CLI: в процессе (Local) или через API (Client).
type Backend interface {
	Run(ctx context.Context, req *domain.RunRequest, async bool) (*RunView, error)
	Plan(ctx context.Context, req *domain.RunRequest) (*orchestrator.Plan, error)
	Tasks(ctx context.Context) ([]TaskView, error)
	GetRun(ctx context.Context, id string) (*RunView, error)
	ListRuns(ctx context.Context, opts ListRunsOpts) ([]RunView, error)
}

// RunView — итог run в том виде, в каком его отдаёт API.
type RunView struct {
	RequestID       string       `json:"request_id"`
	Strategy        string       `json:"strategy"`
	Status          string       `json:"status"`
	Score           float64      `json:"score"`
	SuccessCount    int          `json:"success_count"`
	FailureCount    int          `json:"failure_count"`
	SkippedCount    int          `json:"skipped_count"`
	Recommendations []string     `json:"recommendations,omitempty"`
	Fault           string       `json:"fault,omitempty"`
	Records         []RecordView `json:"records,omitempty"`
	StartedAt       time.Time    `json:"started_at"`
	FinishedAt      time.Time    `json:"finished_at"`
}

// Duration возвращает продолжительность run.
func (r *RunView) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failed — run завершился не полностью.
func (r *RunView) Failed() bool {
	return r.Status != string(domain.RunStatusCompleted)
}

// RecordView — запись выполнения задачи.
type RecordView struct {
	Task            string         `json:"task"`
	Status          string         `json:"status"`
	Critical        bool           `json:"critical"`
	Attempts        int            `json:"attempts,omitempty"`
	HandlerDuration time.Duration  `json:"handler_duration"`
	Error           string         `json:"error,omitempty"`
	SkipReason      string         `json:"skip_reason,omitempty"`
	Outputs         map[string]any `json:"outputs,omitempty"`
}

// TaskView — объявление задачи.
type TaskView struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	Priority     int      `json:"priority"`
	Critical     bool     `json:"critical"`
	MaxAttempts  int      `json:"max_attempts"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	Status   string
	Strategy string
	Limit    int
}

// runView конвертирует domain.RunResult в RunView.
func runView(r *domain.RunResult) *RunView {
	records := make([]RecordView, len(r.Records))
	for i := range r.Records {
		rec := &r.Records[i]
		records[i] = RecordView{
			Task:            rec.Task,
			Status:          string(rec.Status),
			Critical:        rec.Critical,
			Attempts:        rec.Attempts,
			HandlerDuration: rec.HandlerDuration,
			Error:           rec.ErrorMessage(),
			SkipReason:      rec.SkipReason,
			Outputs:         rec.Outputs,
		}
	}
	return &RunView{
		RequestID:       r.RequestID.String(),
		Strategy:        string(r.Strategy),
		Status:          string(r.Status),
		Score:           r.Score,
		SuccessCount:    r.SuccessCount,
		FailureCount:    r.FailureCount,
		SkippedCount:    r.SkippedCount,
		Recommendations: r.Recommendations,
		Fault:           r.FaultMessage(),
		Records:         records,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
	}
}

// LocalConfig — конфигурация Local.
type LocalConfig struct {
	// Manifest — путь к YAML-манифесту дополнительных задач.
	Manifest string

	// Weights — путь к весам admission control (.yaml или .hcl).
	Weights string

	// Threshold > 0 переопределяет порог admission control.
	Threshold float64

	MaxWorkers int

	// Latency — имитация длительности задач встроенного пайплайна.
	Latency time.Duration

	Logger *slog.Logger
}

// Local выполняет запросы в процессе.
type Local struct {
	reg  *registry.Registry
	orch *orchestrator.Orchestrator
}

// NewLocal собирает реестр и оркестратор.
func NewLocal(cfg LocalConfig) (*Local, error) {
	reg, err := pipeline.NewRegistry(pipeline.Options{Latency: cfg.Latency}, cfg.Manifest)
	if err != nil {
		return nil, err
	}

	policy, err := admission.LoadPolicy(cfg.Weights, cfg.Threshold)
	if err != nil {
		return nil, err
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Registry:   reg,
		Policy:     policy,
		MaxWorkers: cfg.MaxWorkers,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Local{reg: reg, orch: orch}, nil
}

// Run выполняет запрос. Локально async не поддерживается.
func (l *Local) Run(ctx context.Context, req *domain.RunRequest, async bool) (*RunView, error) {
	if async {
		return nil, ErrRemoteOnly
	}
	result, err := l.orch.Run(ctx, req)
	if result == nil {
		return nil, err
	}
	// Сбой планировщика без fallback: итог ABORTED показывается как есть
	return runView(result), nil
}

// Plan разрешает запрос без выполнения.
func (l *Local) Plan(_ context.Context, req *domain.RunRequest) (*orchestrator.Plan, error) {
	return l.orch.Plan(req)
}

// Tasks возвращает задачи реестра.
func (l *Local) Tasks(context.Context) ([]TaskView, error) {
	decls := l.reg.ListAll()
	tasks := make([]TaskView, len(decls))
	for i, d := range decls {
		tasks[i] = TaskView{
			Name:         d.Name,
			Description:  d.Description,
			Dependencies: d.Dependencies,
			Priority:     d.Priority,
			Critical:     d.Critical,
			MaxAttempts:  d.Retry.Attempts(),
		}
	}
	return tasks, nil
}

// GetRun недоступен локально: история живёт на сервере.
func (l *Local) GetRun(context.Context, string) (*RunView, error) {
	return nil, ErrRemoteOnly
}

// ListRuns недоступен локально.
func (l *Local) ListRuns(context.Context, ListRunsOpts) ([]RunView, error) {
	return nil, ErrRemoteOnly
}
