package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RunRequest — запрос на выполнение набора задач.
//
// RunRequest создаётся когда:
// - Пользователь запускает задачи через CLI или API
// - Сообщение приходит из очереди runs.requested
// - Scheduler срабатывает по расписанию
type RunRequest struct {
	// ID — уникальный идентификатор запроса.
	ID uuid.UUID `json:"id"`

	// Description — свободное описание запроса.
	// Используется admission control для оценки сложности.
	Description string `json:"description"`

	// Tasks — запрошенные задачи (порядок важен для tie-break).
	Tasks []string `json:"tasks"`

	// Shared — общий контекст, доступный всем handler'ам (только чтение).
	Shared map[string]any `json:"shared,omitempty"`

	// Options — параметры выполнения.
	Options RunOptions `json:"options"`
}

// RunOptions — параметры выполнения run.
type RunOptions struct {
	// MaxConcurrency — лимит одновременно выполняемых задач.
	// 0 — значение по умолчанию оркестратора.
	MaxConcurrency int `json:"max_concurrency,omitempty"`

	// AllowParallel — разрешить конкурентную стратегию.
	AllowParallel bool `json:"allow_parallel"`

	// AllowFallback — при сбое конкурентного планировщика повторить последовательно.
	AllowFallback bool `json:"allow_fallback"`
}

// DefaultRunOptions возвращает параметры по умолчанию.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		AllowParallel: true,
		AllowFallback: true,
	}
}

// NewRunRequest создаёт запрос с новым ID и параметрами по умолчанию.
func NewRunRequest(description string, tasks ...string) *RunRequest {
	return &RunRequest{
		ID:          uuid.New(),
		Description: description,
		Tasks:       tasks,
		Options:     DefaultRunOptions(),
	}
}

// RunResult — итог выполнения одного run request.
type RunResult struct {
	// RequestID — ID исходного запроса.
	RequestID uuid.UUID `json:"request_id"`

	// Strategy — фактически использованная стратегия.
	Strategy Strategy `json:"strategy"`

	// Score — оценка сложности, посчитанная admission control.
	Score float64 `json:"score"`

	// Records — записи выполнения в разрешённом порядке.
	Records []ExecutionRecord `json:"records"`

	SuccessCount int `json:"success_count"`
	FailureCount int `json:"failure_count"`
	SkippedCount int `json:"skipped_count"`

	// Status — итоговый статус run.
	Status RunStatus `json:"status"`

	// Recommendations — выведенные рекомендации.
	Recommendations []string `json:"recommendations,omitempty"`

	// Fault — сбой планировщика (для fallback или аварийного run).
	Fault error `json:"-"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration возвращает продолжительность run.
func (r *RunResult) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Record возвращает запись задачи по имени.
func (r *RunResult) Record(task string) (*ExecutionRecord, bool) {
	for i := range r.Records {
		if r.Records[i].Task == task {
			return &r.Records[i], true
		}
	}
	return nil, false
}

// FaultMessage возвращает текст сбоя планировщика или пустую строку.
func (r *RunResult) FaultMessage() string {
	if r.Fault == nil {
		return ""
	}
	return r.Fault.Error()
}

// Total возвращает количество задач в run.
func (r *RunResult) Total() int {
	return len(r.Records)
}

// MarshalJSON сериализует результат; Fault превращается в строку.
func (r RunResult) MarshalJSON() ([]byte, error) {
	type plain RunResult
	return json.Marshal(struct {
		plain
		Fault string `json:"fault,omitempty"`
	}{
		plain: plain(r),
		Fault: r.FaultMessage(),
	})
}
