package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/engine"
	"github.com/shaiso/Conductor/internal/telemetry"
)

// Ошибки планировщика (оборачиваются в OrchestrationFault).
var (
	errUnknownCompletion = errors.New("completion for a task that is not running")
	errNoProgress        = errors.New("no task is running and none can be dispatched")
)

// Concurrent — конкурентный исполнитель.
//
// Один цикл планировщика владеет всеми записями и слотами пула.
// Готовая задача (все зависимости в финальном статусе) переходит в
// RUNNING только когда есть свободный слот, иначе остаётся PENDING до
// следующего события завершения. Воркеры (errgroup) сообщают о
// завершении по буферизованному каналу.
type Concurrent struct {
	maxWorkers int
	logger     *slog.Logger
	metrics    *telemetry.Metrics
	fallback   *Sequential

	// inject вызывается перед применением каждого события завершения.
	// Ошибка (или паника) становится сбоем планировщика. Только для тестов.
	inject func(task string) error
}

// NewConcurrent создаёт конкурентный исполнитель.
func NewConcurrent(cfg Config) *Concurrent {
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Concurrent{
		maxWorkers: maxWorkers,
		logger:     logger,
		metrics:    cfg.Metrics,
		fallback:   NewSequential(Config{Logger: logger, Metrics: cfg.Metrics}),
	}
}

// MaxWorkers возвращает верхнюю границу пула.
func (c *Concurrent) MaxWorkers() int {
	return c.maxWorkers
}

// Limit приводит запрошенный maxConcurrency к диапазону [1, MaxWorkers].
// 0 и отрицательные значения означают MaxWorkers.
func (c *Concurrent) Limit(requested int) int {
	if requested <= 0 || requested > c.maxWorkers {
		return c.maxWorkers
	}
	return requested
}

// Run выполняет order пулом воркеров.
//
// При сбое планировщика:
//   - AllowFallback — run повторяется последовательно, стратегия
//     CONCURRENT_FALLBACK_TO_SEQUENTIAL, сбой в RunResult.Fault, ошибка nil
//   - иначе — результат ABORTED с Fault и сама ошибка сбоя
func (c *Concurrent) Run(ctx context.Context, req *domain.RunRequest, order []*domain.TaskDecl) (*domain.RunResult, error) {
	logger := telemetry.WithRequestID(c.logger, req.ID.String())

	result, fault := c.schedule(ctx, req, order, c.Limit(req.Options.MaxConcurrency), logger)
	if fault == nil {
		return result, nil
	}

	logger.Error("concurrent scheduler failed", "error", fault)

	if !req.Options.AllowFallback {
		return result, fault
	}

	c.metrics.Fallback()
	logger.Warn("falling back to sequential execution", "tasks", len(order))

	fallback := c.fallback.Run(ctx, req, order)
	fallback.Strategy = domain.StrategyConcurrentFallback
	fallback.Fault = fault
	fallback.StartedAt = result.StartedAt
	return fallback, nil
}

// completion — событие завершения задачи от воркера.
type completion struct {
	task    string
	outcome outcome
	endedAt time.Time
}

// scheduler — состояние одного конкурентного run.
type scheduler struct {
	run     *runState
	dag     *engine.DAG
	group   *errgroup.Group
	limit   int
	events  chan completion
	done    map[string]bool
	running map[string]bool

	inject  func(task string) error
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// schedule выполняет один проход планировщика.
func (c *Concurrent) schedule(ctx context.Context, req *domain.RunRequest, order []*domain.TaskDecl, limit int, logger *slog.Logger) (*domain.RunResult, error) {
	logger = telemetry.WithStrategy(logger, string(domain.StrategyConcurrent))

	s := &scheduler{
		run:     newRunState(req, order),
		dag:     engine.BuildDAG(order),
		group:   new(errgroup.Group),
		limit:   limit,
		events:  make(chan completion, len(order)),
		done:    make(map[string]bool, len(order)),
		running: make(map[string]bool),
		inject:  c.inject,
		logger:  logger,
		metrics: c.metrics,
	}

	logger.Debug("concurrent run started", "tasks", len(order), "max_concurrency", limit)

	fault := s.loop(ctx)

	// Уже запущенные handler'ы всегда доходят до конца
	_ = s.group.Wait()

	if fault != nil {
		s.abandon(fault)
	}
	return s.run.result(domain.StrategyConcurrent, fault), fault
}

// loop — цикл планировщика: запустить готовое, дождаться события.
func (s *scheduler) loop(ctx context.Context) (fault error) {
	defer func() {
		if r := recover(); r != nil {
			fault = &OrchestrationFault{Op: "schedule", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	for {
		if err := s.dispatchReady(ctx); err != nil {
			return err
		}

		if s.dag.IsComplete(s.done) {
			return nil
		}
		if len(s.running) == 0 {
			return &OrchestrationFault{Op: "schedule", Err: errNoProgress}
		}

		ev := <-s.events
		if err := s.complete(ev, true); err != nil {
			return err
		}
	}
}

// dispatchReady решает судьбу готовых задач: пропуск или запуск.
// Пропуск не занимает слот и может сделать готовыми новые задачи,
// поэтому проход повторяется, пока что-то меняется. Задачи без
// свободного слота остаются PENDING.
func (s *scheduler) dispatchReady(ctx context.Context) error {
	for {
		progressed := false

		for _, node := range s.dag.GetReadyNodes(s.done, s.running) {
			decl := node.Decl
			rec := s.run.byName[decl.Name]

			if reason := s.run.skipReason(ctx, decl); reason != "" {
				if err := rec.MarkSkipped(time.Now(), reason); err != nil {
					return &OrchestrationFault{Op: "dispatch", Task: decl.Name, Err: err}
				}
				s.done[decl.Name] = true
				s.logger.Info("task skipped", "task", decl.Name, "reason", reason)
				progressed = true
				continue
			}

			if len(s.running) >= s.limit {
				continue
			}

			if err := rec.MarkRunning(time.Now()); err != nil {
				return &OrchestrationFault{Op: "dispatch", Task: decl.Name, Err: err}
			}
			s.running[decl.Name] = true
			s.dispatch(ctx, decl)
			progressed = true
		}

		if !progressed {
			return nil
		}
	}
}

// dispatch запускает handler; слот уже занят в s.running.
func (s *scheduler) dispatch(ctx context.Context, decl *domain.TaskDecl) {
	in := s.run.input(decl)
	logger := s.logger

	s.logger.Debug("task dispatched", "task", decl.Name, "running", len(s.running))

	s.group.Go(func() error {
		out := invoke(ctx, decl, in, logger, s.metrics)
		s.events <- completion{task: decl.Name, outcome: out, endedAt: time.Now()}
		return nil
	})
}

// complete применяет событие завершения к записи.
func (s *scheduler) complete(ev completion, hooked bool) error {
	if hooked && s.inject != nil {
		if err := s.inject(ev.task); err != nil {
			return &OrchestrationFault{Op: "complete", Task: ev.task, Err: err}
		}
	}

	rec, ok := s.run.byName[ev.task]
	if !ok || !s.running[ev.task] {
		return &OrchestrationFault{Op: "complete", Task: ev.task, Err: errUnknownCompletion}
	}

	delete(s.running, ev.task)
	if err := finish(rec, ev.outcome, ev.endedAt); err != nil {
		return &OrchestrationFault{Op: "complete", Task: ev.task, Err: err}
	}
	s.done[ev.task] = true

	if ev.outcome.err != nil {
		s.logger.Warn("task failed",
			"task", ev.task,
			"critical", rec.Critical,
			"attempts", ev.outcome.attempts,
			"error", ev.outcome.err,
		)
	} else {
		s.logger.Info("task completed", "task", ev.task, "duration", ev.outcome.took, "attempts", ev.outcome.attempts)
	}
	return nil
}

// abandon доводит записи до финальных статусов после сбоя.
//
// События, пришедшие после сбоя, применяются; оставшиеся RUNNING
// записи помечаются FAILED с ошибкой сбоя, PENDING — SKIPPED.
func (s *scheduler) abandon(fault error) {
	for drained := false; !drained; {
		select {
		case ev := <-s.events:
			_ = s.complete(ev, false)
		default:
			drained = true
		}
	}

	now := time.Now()
	for _, rec := range s.run.records {
		switch rec.Status {
		case domain.TaskStatusPending:
			_ = rec.MarkSkipped(now, SkipFault)
		case domain.TaskStatusRunning:
			_ = rec.MarkFailed(now, fault, 0)
		}
	}
}
