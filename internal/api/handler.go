package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/orchestrator"
	"github.com/shaiso/Conductor/internal/repo"
)

// Runner выполняет и планирует запросы (*orchestrator.Orchestrator).
type Runner interface {
	Run(ctx context.Context, req *domain.RunRequest) (*domain.RunResult, error)
	Plan(req *domain.RunRequest) (*orchestrator.Plan, error)
}

// Catalog перечисляет зарегистрированные задачи (*registry.Registry).
type Catalog interface {
	ListAll() []*domain.TaskDecl
}

// RunStore — долговременное хранилище итогов (*repo.RunRepo).
type RunStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RunResult, error)
	ListRecent(ctx context.Context, filter repo.RunFilter) ([]domain.RunResult, error)
}

// Enqueuer ставит запрос в очередь runs.requested (*mq.Publisher).
type Enqueuer interface {
	PublishRunRequested(ctx context.Context, req *domain.RunRequest) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	runner   Runner
	catalog  Catalog
	history  *orchestrator.History
	runStore RunStore
	enqueuer Enqueuer
	logger   *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Runner  Runner
	Catalog Catalog

	// History — недавние итоги в памяти.
	History *orchestrator.History

	// RunStore (опционально) — используется, когда итога нет в History.
	RunStore RunStore

	// Enqueuer (опционально) — включает асинхронный запуск (?async=true).
	Enqueuer Enqueuer

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		runner:   cfg.Runner,
		catalog:  cfg.Catalog,
		history:  cfg.History,
		runStore: cfg.RunStore,
		enqueuer: cfg.Enqueuer,
		logger:   logger,
	}
}
