package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outputs — результаты выполнения задачи.
// Передаются зависимым задачам через HandlerInput.Deps.
type Outputs = map[string]any

// Handler — функция, выполняющая работу задачи.
//
// Handler не должен разделять изменяемое состояние с другими задачами:
// всё, что нужно от других задач, приходит через in.Deps.
// ctx несёт сигнал отмены; проверять его — ответственность handler'а.
type Handler func(ctx context.Context, in *HandlerInput) (Outputs, error)

// HandlerInput — входные данные для вызова handler'а.
type HandlerInput struct {
	// Task — имя выполняемой задачи.
	Task string

	// RequestID — ID run request, в рамках которого вызван handler.
	RequestID uuid.UUID

	// Description — свободное описание запроса.
	Description string

	// Shared — общий контекст запроса. Только для чтения.
	Shared map[string]any

	// Deps — outputs завершённых зависимостей (taskName → outputs).
	// Зависимость, упавшая как опциональная, в map отсутствует.
	Deps map[string]Outputs

	// Attempt — номер попытки (начиная с 1).
	Attempt int
}

// TaskDecl — объявление задачи в реестре.
//
// Объявление регистрируется один раз и после этого не меняется.
type TaskDecl struct {
	// Name — уникальное имя задачи.
	Name string `json:"name"`

	// Description — человекочитаемое описание.
	Description string `json:"description,omitempty"`

	// Dependencies — имена задач, которые должны завершиться раньше.
	Dependencies []string `json:"dependencies,omitempty"`

	// Priority — приоритет; среди готовых задач выше — раньше.
	Priority int `json:"priority"`

	// Critical — падение задачи прерывает run.
	Critical bool `json:"critical"`

	// Retry — политика повторных попыток (nil — одна попытка).
	Retry *RetryPolicy `json:"retry,omitempty"`

	// Handler — функция выполнения.
	Handler Handler `json:"-"`
}

// DependsOn проверяет, объявлена ли name среди прямых зависимостей.
func (d *TaskDecl) DependsOn(name string) bool {
	for _, dep := range d.Dependencies {
		if dep == name {
			return true
		}
	}
	return false
}

// RetryPolicy — политика повторных попыток.
type RetryPolicy struct {
	// MaxAttempts — максимальное количество попыток (включая первую).
	MaxAttempts int `json:"max_attempts,omitempty"`

	// Backoff — стратегия задержки: "fixed", "exponential".
	Backoff string `json:"backoff,omitempty"`

	// InitialDelay — начальная задержка.
	InitialDelay time.Duration `json:"initial_delay,omitempty"`

	// MaxDelay — максимальная задержка.
	MaxDelay time.Duration `json:"max_delay,omitempty"`
}

// Attempts возвращает максимальное число попыток (минимум 1).
func (p *RetryPolicy) Attempts() int {
	if p == nil || p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Delay вычисляет задержку перед попыткой attempt+1.
//
//	exponential: initialDelay * 2^(attempt-1), не больше maxDelay
//	fixed (и всё остальное): initialDelay
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	if p == nil {
		return 0
	}

	initial := p.InitialDelay
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}

	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	delay := initial
	if p.Backoff == "exponential" {
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxDelay {
				break
			}
		}
	}

	return min(delay, maxDelay)
}

// ExecutionError — ошибка выполнения handler'а задачи.
type ExecutionError struct {
	Task    string // имя задачи
	Attempt int    // номер последней попытки
	Err     error  // ошибка handler'а
}

// Error реализует интерфейс error.
func (e *ExecutionError) Error() string {
	if e.Attempt > 1 {
		return fmt.Sprintf("task %s failed after %d attempts: %v", e.Task, e.Attempt, e.Err)
	}
	return fmt.Sprintf("task %s failed: %v", e.Task, e.Err)
}

// Unwrap возвращает ошибку handler'а.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}
