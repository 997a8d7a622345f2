package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ExecutionRecord — состояние одной задачи в рамках одного run.
//
// Создаётся в статусе PENDING для каждой задачи разрешённого порядка.
// Переходы проверяются TaskStatus.CanTransition: запись не может
// вернуться назад или перескочить RUNNING.
type ExecutionRecord struct {
	// Task — имя задачи.
	Task string `json:"task"`

	// Status — текущий статус.
	Status TaskStatus `json:"status"`

	// Critical — копия TaskDecl.Critical (нужна агрегатору).
	Critical bool `json:"critical"`

	// StartedAt — время перехода в RUNNING.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// EndedAt — время перехода в финальный статус.
	EndedAt *time.Time `json:"ended_at,omitempty"`

	// Outputs — результаты; заполнены только для COMPLETED.
	Outputs Outputs `json:"outputs,omitempty"`

	// Error — ошибка; заполнена только для FAILED.
	Error error `json:"-"`

	// SkipReason — почему задача пропущена.
	SkipReason string `json:"skip_reason,omitempty"`

	// Attempts — сколько раз вызывался handler.
	Attempts int `json:"attempts,omitempty"`

	// HandlerDuration — суммарное время работы handler'а.
	HandlerDuration time.Duration `json:"handler_duration"`
}

// NewExecutionRecord создаёт запись в статусе PENDING.
func NewExecutionRecord(decl *TaskDecl) *ExecutionRecord {
	return &ExecutionRecord{
		Task:     decl.Name,
		Status:   TaskStatusPending,
		Critical: decl.Critical,
	}
}

// transition меняет статус, если переход допустим.
func (r *ExecutionRecord) transition(next TaskStatus) error {
	if !r.Status.CanTransition(next) {
		return &TransitionError{Task: r.Task, From: r.Status, To: next}
	}
	r.Status = next
	return nil
}

// MarkRunning переводит запись в RUNNING.
func (r *ExecutionRecord) MarkRunning(at time.Time) error {
	if err := r.transition(TaskStatusRunning); err != nil {
		return err
	}
	r.StartedAt = &at
	return nil
}

// MarkCompleted переводит запись в COMPLETED с outputs.
func (r *ExecutionRecord) MarkCompleted(at time.Time, outputs Outputs, took time.Duration) error {
	if err := r.transition(TaskStatusCompleted); err != nil {
		return err
	}
	if outputs == nil {
		outputs = Outputs{}
	}
	r.EndedAt = &at
	r.Outputs = outputs
	r.HandlerDuration = took
	return nil
}

// MarkFailed переводит запись в FAILED с ошибкой.
func (r *ExecutionRecord) MarkFailed(at time.Time, err error, took time.Duration) error {
	if terr := r.transition(TaskStatusFailed); terr != nil {
		return terr
	}
	r.EndedAt = &at
	r.Error = err
	r.HandlerDuration = took
	return nil
}

// MarkSkipped переводит запись в SKIPPED.
func (r *ExecutionRecord) MarkSkipped(at time.Time, reason string) error {
	if err := r.transition(TaskStatusSkipped); err != nil {
		return err
	}
	r.EndedAt = &at
	r.SkipReason = reason
	return nil
}

// ErrorMessage возвращает текст ошибки или пустую строку.
func (r *ExecutionRecord) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Error()
}

// Clone возвращает копию записи (outputs копируются поверхностно).
func (r *ExecutionRecord) Clone() ExecutionRecord {
	c := *r
	if r.Outputs != nil {
		c.Outputs = make(Outputs, len(r.Outputs))
		for k, v := range r.Outputs {
			c.Outputs[k] = v
		}
	}
	return c
}

// MarshalJSON сериализует запись; Error превращается в строку.
func (r ExecutionRecord) MarshalJSON() ([]byte, error) {
	type plain ExecutionRecord
	return json.Marshal(struct {
		plain
		Error string `json:"error,omitempty"`
	}{
		plain: plain(r),
		Error: r.ErrorMessage(),
	})
}

// TransitionError — недопустимый переход статуса записи.
type TransitionError struct {
	Task string
	From TaskStatus
	To   TaskStatus
}

// Error реализует интерфейс error.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("task %s: illegal transition %s -> %s", e.Task, e.From, e.To)
}
