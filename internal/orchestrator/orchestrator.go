package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Conductor/internal/admission"
	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/engine"
	"github.com/shaiso/Conductor/internal/executor"
	"github.com/shaiso/Conductor/internal/mq"
	"github.com/shaiso/Conductor/internal/telemetry"
)

// defaultPrefetch — сколько запросов из очереди выполняется одновременно.
const defaultPrefetch = 4

// Orchestrator выполняет run request'ы.
//
// Не хранит состояния между run'ами, кроме множества активных
// запросов (защита от повторной доставки одного и того же ID).
type Orchestrator struct {
	catalog    engine.Catalog
	policy     admission.Policy
	sequential *executor.Sequential
	concurrent *executor.Concurrent
	sinks      Sinks

	// MQ (опционально)
	conn     *mq.Connection
	consumer *mq.Consumer
	prefetch int

	// Active runs — запросы в процессе выполнения
	activeRuns map[uuid.UUID]struct{}
	mu         sync.RWMutex

	metrics *telemetry.Metrics
	logger  *slog.Logger

	// Lifecycle
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Registry — каталог задач (обязательно).
	Registry engine.Catalog

	// Policy — admission control (default: admission.NewPolicy(DefaultWeights())).
	Policy admission.Policy

	// MaxWorkers — верхняя граница пула воркеров (default: 10).
	MaxWorkers int

	// Sinks — получатели итогов run.
	Sinks []Sink

	// Conn — соединение с RabbitMQ для Start (опционально).
	Conn *mq.Connection

	// Prefetch — параллельно обрабатываемые сообщения runs.requested (default: 4).
	Prefetch int

	// Metrics (опционально)
	Metrics *telemetry.Metrics

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Registry == nil {
		return nil, ErrNoRegistry
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	policy := cfg.Policy
	if policy == nil {
		policy = admission.NewPolicy(admission.DefaultWeights())
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	execCfg := executor.Config{
		MaxWorkers: cfg.MaxWorkers,
		Metrics:    cfg.Metrics,
		Logger:     logger,
	}

	return &Orchestrator{
		catalog:    cfg.Registry,
		policy:     policy,
		sequential: executor.NewSequential(execCfg),
		concurrent: executor.NewConcurrent(execCfg),
		sinks:      Sinks(cfg.Sinks),
		conn:       cfg.Conn,
		prefetch:   prefetch,
		activeRuns: make(map[uuid.UUID]struct{}),
		metrics:    cfg.Metrics,
		logger:     logger,
	}, nil
}

// Plan — разрешённый порядок и решение admission control без выполнения.
type Plan struct {
	RequestID uuid.UUID          `json:"request_id"`
	Tasks     []PlannedTask      `json:"tasks"`
	Decision  admission.Decision `json:"decision"`
}

// PlannedTask — задача в плане.
type PlannedTask struct {
	Name         string   `json:"name"`
	Priority     int      `json:"priority"`
	Critical     bool     `json:"critical"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// Plan разрешает запрос и выбирает стратегию, ничего не выполняя.
func (o *Orchestrator) Plan(req *domain.RunRequest) (*Plan, error) {
	order, err := o.resolve(req)
	if err != nil {
		return nil, err
	}

	tasks := make([]PlannedTask, len(order))
	for i, decl := range order {
		tasks[i] = PlannedTask{
			Name:         decl.Name,
			Priority:     decl.Priority,
			Critical:     decl.Critical,
			Dependencies: decl.Dependencies,
		}
	}

	return &Plan{
		RequestID: req.ID,
		Tasks:     tasks,
		Decision:  o.policy.Decide(req, order),
	}, nil
}

// Run выполняет запрос.
//
// Возвращает ошибку построения (неизвестная задача, цикл, пустой
// запрос) до запуска задач. При сбое планировщика без fallback
// возвращает ABORTED результат вместе с *executor.OrchestrationFault.
func (o *Orchestrator) Run(ctx context.Context, req *domain.RunRequest) (*domain.RunResult, error) {
	order, err := o.resolve(req)
	if err != nil {
		return nil, err
	}

	if err := o.addActiveRun(req.ID); err != nil {
		return nil, err
	}
	defer o.removeActiveRun(req.ID)

	logger := telemetry.WithRequestID(o.logger, req.ID.String())

	decision := o.policy.Decide(req, order)
	logger.Info("run admitted",
		"strategy", decision.Strategy,
		"score", decision.Score,
		"reason", decision.Reason,
		"tasks", engine.Names(order),
	)

	var (
		result *domain.RunResult
		runErr error
	)
	switch decision.Strategy {
	case domain.StrategyConcurrent, domain.StrategyConcurrentFallback:
		result, runErr = o.concurrent.Run(ctx, req, order)
	default:
		result = o.sequential.Run(ctx, req, order)
	}
	result.Score = decision.Score

	o.observe(result)

	// Итог доставляется даже если вызывающий уже отменил ctx
	if err := o.sinks.Record(context.WithoutCancel(ctx), result); err != nil {
		logger.Warn("failed to record run result", "error", err)
	}

	logger.Info("run finished",
		"strategy", result.Strategy,
		"status", result.Status,
		"success", result.SuccessCount,
		"failed", result.FailureCount,
		"skipped", result.SkippedCount,
		"duration", result.Duration(),
	)

	return result, runErr
}

// resolve проверяет запрос и строит порядок выполнения.
func (o *Orchestrator) resolve(req *domain.RunRequest) ([]*domain.TaskDecl, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	if len(req.Tasks) == 0 {
		return nil, ErrEmptyRequest
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	return engine.Resolve(o.catalog, req.Tasks)
}

// observe записывает метрики итогов.
func (o *Orchestrator) observe(result *domain.RunResult) {
	for i := range result.Records {
		o.metrics.TaskResult(string(result.Records[i].Status))
	}
	o.metrics.RunFinished(string(result.Strategy), string(result.Status))
}

// IsOrchestrationFault проверяет, вызвана ли ошибка Run сбоем планировщика
// (а не ошибкой построения запроса).
func IsOrchestrationFault(err error) bool {
	return errors.Is(err, executor.ErrOrchestrationFault)
}

// MaxWorkers возвращает верхнюю границу пула воркеров.
func (o *Orchestrator) MaxWorkers() int {
	return o.concurrent.MaxWorkers()
}

// Start подписывается на очередь runs.requested.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.conn == nil {
		return ErrNoConnection
	}

	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel

	o.consumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueRunsRequested),
		Handler:  o.handleRunRequested,
		Prefetch: o.prefetch,
	})

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Error("run consumer error", "error", err)
		}
	}()

	o.logger.Info("orchestrator started", "queue", mq.QueueRunsRequested, "prefetch", o.prefetch)
	return nil
}

// Stop останавливает потребление и ждёт завершения горутин.
func (o *Orchestrator) Stop() {
	o.logger.Info("stopping orchestrator...")

	if o.cancelFunc != nil {
		o.cancelFunc()
	}
	if o.consumer != nil {
		o.consumer.Stop()
	}

	o.wg.Wait()

	o.logger.Info("orchestrator stopped", "active_runs", o.ActiveRunsCount())
}

// addActiveRun добавляет запрос в активные.
func (o *Orchestrator) addActiveRun(id uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.activeRuns[id]; exists {
		return ErrRunAlreadyActive
	}
	o.activeRuns[id] = struct{}{}
	return nil
}

// removeActiveRun удаляет запрос из активных.
func (o *Orchestrator) removeActiveRun(id uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.activeRuns, id)
}

// IsRunActive проверяет, выполняется ли запрос.
func (o *Orchestrator) IsRunActive(id uuid.UUID) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, exists := o.activeRuns[id]
	return exists
}

// ActiveRunsCount возвращает количество выполняющихся запросов.
func (o *Orchestrator) ActiveRunsCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.activeRuns)
}
