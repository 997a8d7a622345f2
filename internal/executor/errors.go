package executor

import (
	"errors"
	"fmt"
)

// Ошибки исполнителей.
var (
	// ErrOrchestrationFault — нарушен инвариант планировщика
	// (не ошибка handler'а).
	ErrOrchestrationFault = errors.New("orchestration fault")

	// ErrHandlerPanic — handler задачи запаниковал.
	ErrHandlerPanic = errors.New("handler panicked")
)

// OrchestrationFault — сбой в учёте состояния планировщика.
type OrchestrationFault struct {
	Op   string // этап: "complete", "dispatch", "schedule"
	Task string // задача, на которой обнаружен сбой (может быть пустой)
	Err  error
}

// Error реализует интерфейс error.
func (e *OrchestrationFault) Error() string {
	if e.Task != "" {
		return fmt.Sprintf("orchestration fault: %s %s: %v", e.Op, e.Task, e.Err)
	}
	return fmt.Sprintf("orchestration fault: %s: %v", e.Op, e.Err)
}

// Unwrap возвращает исходную ошибку.
func (e *OrchestrationFault) Unwrap() error {
	return e.Err
}

// Is позволяет сравнивать с ErrOrchestrationFault через errors.Is.
func (e *OrchestrationFault) Is(target error) bool {
	return target == ErrOrchestrationFault
}

// PanicError — паника внутри handler'а, перехваченная воркером.
type PanicError struct {
	Task  string
	Value any
}

// Error реализует интерфейс error.
func (e *PanicError) Error() string {
	return fmt.Sprintf("task %s: %v: %v", e.Task, ErrHandlerPanic, e.Value)
}

// Unwrap возвращает ErrHandlerPanic.
func (e *PanicError) Unwrap() error {
	return ErrHandlerPanic
}
