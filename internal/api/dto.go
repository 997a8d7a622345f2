package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conductor/internal/domain"
)

// Run DTOs

// CreateRunRequest — запрос на выполнение задач.
type CreateRunRequest struct {
	ID          *uuid.UUID     `json:"id,omitempty"`
	Description string         `json:"description"`
	Tasks       []string       `json:"tasks"`
	Shared      map[string]any `json:"shared,omitempty"`
	Options     *RunOptionsDTO `json:"options,omitempty"`
}

// RunOptionsDTO — параметры выполнения; отсутствующие поля берутся
// из domain.DefaultRunOptions.
type RunOptionsDTO struct {
	MaxConcurrency *int  `json:"max_concurrency,omitempty"`
	AllowParallel  *bool `json:"allow_parallel,omitempty"`
	AllowFallback  *bool `json:"allow_fallback,omitempty"`
}

// ToDomain конвертирует CreateRunRequest в domain.RunRequest.
func (r CreateRunRequest) ToDomain() *domain.RunRequest {
	req := domain.NewRunRequest(r.Description, r.Tasks...)
	if r.ID != nil {
		req.ID = *r.ID
	}
	req.Shared = r.Shared

	if o := r.Options; o != nil {
		if o.MaxConcurrency != nil {
			req.Options.MaxConcurrency = *o.MaxConcurrency
		}
		if o.AllowParallel != nil {
			req.Options.AllowParallel = *o.AllowParallel
		}
		if o.AllowFallback != nil {
			req.Options.AllowFallback = *o.AllowFallback
		}
	}
	return req
}

// AcceptedResponse — ответ на асинхронный запуск.
type AcceptedResponse struct {
	RequestID uuid.UUID `json:"request_id"`
	Status    string    `json:"status"`
}

// RunSummaryResponse — итог run без записей выполнения (для списков).
type RunSummaryResponse struct {
	RequestID    uuid.UUID        `json:"request_id"`
	Strategy     domain.Strategy  `json:"strategy"`
	Status       domain.RunStatus `json:"status"`
	Score        float64          `json:"score"`
	SuccessCount int              `json:"success_count"`
	FailureCount int              `json:"failure_count"`
	SkippedCount int              `json:"skipped_count"`
	Fault        string           `json:"fault,omitempty"`
	DurationMs   int64            `json:"duration_ms"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
}

// SummaryFromDomain конвертирует domain.RunResult в RunSummaryResponse.
func SummaryFromDomain(r *domain.RunResult) RunSummaryResponse {
	return RunSummaryResponse{
		RequestID:    r.RequestID,
		Strategy:     r.Strategy,
		Status:       r.Status,
		Score:        r.Score,
		SuccessCount: r.SuccessCount,
		FailureCount: r.FailureCount,
		SkippedCount: r.SkippedCount,
		Fault:        r.FaultMessage(),
		DurationMs:   r.Duration().Milliseconds(),
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
	}
}

// Task DTOs

// TaskResponse — объявление задачи из реестра.
type TaskResponse struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	Priority     int      `json:"priority"`
	Critical     bool     `json:"critical"`
	MaxAttempts  int      `json:"max_attempts"`
}

// TaskFromDomain конвертирует domain.TaskDecl в TaskResponse.
func TaskFromDomain(d *domain.TaskDecl) TaskResponse {
	return TaskResponse{
		Name:         d.Name,
		Description:  d.Description,
		Dependencies: d.Dependencies,
		Priority:     d.Priority,
		Critical:     d.Critical,
		MaxAttempts:  d.Retry.Attempts(),
	}
}
