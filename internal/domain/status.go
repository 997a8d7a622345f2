package domain

// TaskStatus — статус выполнения задачи в рамках одного run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED
//	(или)   → SKIPPED (задача так и не запускалась)
type TaskStatus string

const (
	// TaskStatusPending — задача ожидает своей очереди.
	TaskStatusPending TaskStatus = "PENDING"

	// TaskStatusRunning — handler задачи выполняется.
	TaskStatusRunning TaskStatus = "RUNNING"

	// TaskStatusCompleted — handler успешно вернул outputs.
	TaskStatusCompleted TaskStatus = "COMPLETED"

	// TaskStatusFailed — handler завершился ошибкой (после всех попыток).
	TaskStatusFailed TaskStatus = "FAILED"

	// TaskStatusSkipped — задача не запускалась (упал критичный предок, отмена).
	TaskStatusSkipped TaskStatus = "SKIPPED"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// CanTransition проверяет, допустим ли переход из s в next.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return next == TaskStatusRunning || next == TaskStatusSkipped
	case TaskStatusRunning:
		return next == TaskStatusCompleted || next == TaskStatusFailed
	default:
		return false
	}
}

// Strategy — стратегия выполнения run.
type Strategy string

const (
	// StrategySequential — задачи выполняются строго по очереди.
	StrategySequential Strategy = "SEQUENTIAL"

	// StrategyConcurrent — задачи выполняются пулом воркеров.
	StrategyConcurrent Strategy = "CONCURRENT"

	// StrategyConcurrentFallback — конкурентный планировщик упал,
	// run повторён последовательно.
	StrategyConcurrentFallback Strategy = "CONCURRENT_FALLBACK_TO_SEQUENTIAL"
)

// RunStatus — итоговый статус run.
//
//	COMPLETED           — ни одна задача не упала и не пропущена
//	PARTIALLY_COMPLETED — упали только опциональные задачи
//	ABORTED             — упала критичная задача (или run прерван)
type RunStatus string

const (
	RunStatusCompleted          RunStatus = "COMPLETED"
	RunStatusPartiallyCompleted RunStatus = "PARTIALLY_COMPLETED"
	RunStatusAborted            RunStatus = "ABORTED"
)

// ParseStrategy парсит строку в Strategy.
// Неизвестные значения возвращают пустую стратегию и false.
func ParseStrategy(s string) (Strategy, bool) {
	switch Strategy(s) {
	case StrategySequential, StrategyConcurrent, StrategyConcurrentFallback:
		return Strategy(s), true
	default:
		return "", false
	}
}
