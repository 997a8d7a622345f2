package mq

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conductor/internal/domain"
)

// RunRequestedPayload — payload сообщения run.requested.
type RunRequestedPayload struct {
	RequestID   uuid.UUID         `json:"request_id"`
	Description string            `json:"description"`
	Tasks       []string          `json:"tasks"`
	Shared      map[string]any    `json:"shared,omitempty"`
	Options     domain.RunOptions `json:"options"`
}

// NewRunRequestedPayload строит payload из запроса.
func NewRunRequestedPayload(req *domain.RunRequest) RunRequestedPayload {
	return RunRequestedPayload{
		RequestID:   req.ID,
		Description: req.Description,
		Tasks:       req.Tasks,
		Shared:      req.Shared,
		Options:     req.Options,
	}
}

// Request восстанавливает RunRequest. Пустой RequestID заменяется новым.
func (p RunRequestedPayload) Request() *domain.RunRequest {
	id := p.RequestID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &domain.RunRequest{
		ID:          id,
		Description: p.Description,
		Tasks:       p.Tasks,
		Shared:      p.Shared,
		Options:     p.Options,
	}
}

// RecordSummary — краткая запись задачи в run.completed.
type RecordSummary struct {
	Task       string            `json:"task"`
	Status     domain.TaskStatus `json:"status"`
	Error      string            `json:"error,omitempty"`
	SkipReason string            `json:"skip_reason,omitempty"`
	Attempts   int               `json:"attempts,omitempty"`
	DurationMs int64             `json:"duration_ms"`
}

// RunCompletedPayload — payload сообщения run.completed.
type RunCompletedPayload struct {
	RequestID       uuid.UUID        `json:"request_id"`
	Strategy        domain.Strategy  `json:"strategy"`
	Status          domain.RunStatus `json:"status"`
	SuccessCount    int              `json:"success_count"`
	FailureCount    int              `json:"failure_count"`
	SkippedCount    int              `json:"skipped_count"`
	Recommendations []string         `json:"recommendations,omitempty"`
	Fault           string           `json:"fault,omitempty"`
	DurationMs      int64            `json:"duration_ms"`
	FinishedAt      time.Time        `json:"finished_at"`
	Records         []RecordSummary  `json:"records"`
}

// NewRunCompletedPayload строит payload из результата.
// Outputs задач не публикуются.
func NewRunCompletedPayload(result *domain.RunResult) RunCompletedPayload {
	records := make([]RecordSummary, len(result.Records))
	for i := range result.Records {
		rec := &result.Records[i]
		records[i] = RecordSummary{
			Task:       rec.Task,
			Status:     rec.Status,
			Error:      rec.ErrorMessage(),
			SkipReason: rec.SkipReason,
			Attempts:   rec.Attempts,
			DurationMs: rec.HandlerDuration.Milliseconds(),
		}
	}

	return RunCompletedPayload{
		RequestID:       result.RequestID,
		Strategy:        result.Strategy,
		Status:          result.Status,
		SuccessCount:    result.SuccessCount,
		FailureCount:    result.FailureCount,
		SkippedCount:    result.SkippedCount,
		Recommendations: result.Recommendations,
		Fault:           result.FaultMessage(),
		DurationMs:      result.Duration().Milliseconds(),
		FinishedAt:      result.FinishedAt,
		Records:         records,
	}
}
