package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/telemetry"
)

// DefaultMaxWorkers — размер пула по умолчанию и верхняя граница
// maxConcurrency, если Config.MaxWorkers не задан.
const DefaultMaxWorkers = 10

// Config — конфигурация исполнителей.
type Config struct {
	// MaxWorkers — верхняя граница пула воркеров (default: 10).
	MaxWorkers int

	// Metrics — метрики (опционально).
	Metrics *telemetry.Metrics

	// Logger
	Logger *slog.Logger
}

// Sequential — последовательный исполнитель.
//
// Задачи выполняются строго в разрешённом порядке, не больше одной
// RUNNING одновременно. Падение критичной задачи пропускает всю
// оставшуюся часть порядка; падение опциональной — нет.
type Sequential struct {
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewSequential создаёт последовательный исполнитель.
func NewSequential(cfg Config) *Sequential {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sequential{logger: logger, metrics: cfg.Metrics}
}

// Run выполняет order и возвращает результат со стратегией SEQUENTIAL.
//
// Ошибки handler'ов попадают в записи; Run не возвращает ошибок.
// Если ctx отменён, ещё не начатые задачи пропускаются (SkipCancelled).
func (s *Sequential) Run(ctx context.Context, req *domain.RunRequest, order []*domain.TaskDecl) *domain.RunResult {
	run := newRunState(req, order)
	logger := telemetry.WithStrategy(telemetry.WithRequestID(s.logger, req.ID.String()), string(domain.StrategySequential))

	logger.Debug("sequential run started", "tasks", len(order))

	abort := ""
	for i, decl := range order {
		rec := run.records[i]

		reason := abort
		if reason == "" {
			reason = run.skipReason(ctx, decl)
		}
		if reason == SkipCancelled {
			abort = SkipCancelled
		}
		if reason != "" {
			if err := rec.MarkSkipped(time.Now(), reason); err != nil {
				logger.Error("unexpected record transition", "task", decl.Name, "error", err)
			}
			logger.Info("task skipped", "task", decl.Name, "reason", reason)
			continue
		}

		if err := rec.MarkRunning(time.Now()); err != nil {
			logger.Error("unexpected record transition", "task", decl.Name, "error", err)
			continue
		}

		out := invoke(ctx, decl, run.input(decl), logger, s.metrics)
		if err := finish(rec, out, time.Now()); err != nil {
			logger.Error("unexpected record transition", "task", decl.Name, "error", err)
			continue
		}

		if out.err != nil {
			logger.Warn("task failed",
				"task", decl.Name,
				"critical", decl.Critical,
				"attempts", out.attempts,
				"error", out.err,
			)
			if decl.Critical {
				abort = fmt.Sprintf("critical task %s failed", decl.Name)
			}
			continue
		}

		logger.Info("task completed", "task", decl.Name, "duration", out.took, "attempts", out.attempts)
	}

	return run.result(domain.StrategySequential, nil)
}
