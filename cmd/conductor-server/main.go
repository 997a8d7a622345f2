// Conductor Server — выполняет run request'ы.
//
// Server:
//   - Принимает запросы через HTTP API (/api/v1/runs)
//   - Слушает очередь runs.requested (если задан RABBITMQ_URL)
//   - Публикует итоги в runs.completed и сохраняет их в PostgreSQL (DB_URL)
//   - Запускает задачи по расписанию (RUN_SCHEDULE)
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Conductor/internal/admission"
	"github.com/shaiso/Conductor/internal/api"
	"github.com/shaiso/Conductor/internal/config"
	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/mq"
	"github.com/shaiso/Conductor/internal/orchestrator"
	"github.com/shaiso/Conductor/internal/pipeline"
	"github.com/shaiso/Conductor/internal/repo"
	"github.com/shaiso/Conductor/internal/scheduler"
	"github.com/shaiso/Conductor/internal/telemetry"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting conductor-server")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		logger.Error("conductor-server failed", "error", err)
		cancel()
		os.Exit(1)
	}
	logger.Info("conductor-server stopped")
}

// run собирает сервер и блокируется до отмены ctx.
// Ошибка старта возвращается после того, как отработали defer'ы
// уже открытых ресурсов (пул БД, соединение с брокером, leader lock).
func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Свой registry на каждый run: /metrics отдаёт только его
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(promReg)

	// Реестр задач: встроенный пайплайн + манифест
	reg, err := pipeline.NewRegistry(pipeline.Options{Latency: cfg.PipelineLatency}, cfg.PipelineManifest)
	if err != nil {
		return fmt.Errorf("build task registry: %w", err)
	}
	logger.Info("task registry ready", "tasks", reg.Names())

	policy, err := admission.LoadPolicy(cfg.AdmissionWeights, cfg.AdmissionThreshold)
	if err != nil {
		return fmt.Errorf("load admission weights: %w", err)
	}

	history := orchestrator.NewHistory(cfg.HistorySize)
	sinks := []orchestrator.Sink{history}

	// PostgreSQL (опционально)
	var (
		runRepo      *repo.RunRepo
		scheduleRepo *repo.ScheduleRepo
	)
	if cfg.DatabaseURL != "" {
		pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()

		if err := repo.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		logger.Info("database connected")

		runRepo = repo.NewRunRepo(pool)
		scheduleRepo = repo.NewScheduleRepo(pool)
		sinks = append(sinks, runRepo)
		defer scheduleRepo.Release(context.Background())
	}

	// RabbitMQ (опционально)
	var (
		mqConn    *mq.Connection
		publisher *mq.Publisher
	)
	if cfg.RabbitMQURL != "" {
		mqConn, err = mq.Dial(ctx, cfg.RabbitMQURL, logger)
		if err != nil {
			return fmt.Errorf("connect to rabbitmq: %w", err)
		}
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			return fmt.Errorf("setup topology: %w", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
		sinks = append(sinks, publisher)
	}

	// Создаём orchestrator
	orch, err := orchestrator.New(orchestrator.Config{
		Registry:   reg,
		Policy:     policy,
		MaxWorkers: cfg.MaxWorkers,
		Sinks:      sinks,
		Conn:       mqConn,
		Metrics:    metrics,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}

	if mqConn != nil {
		if err := orch.Start(ctx); err != nil {
			return fmt.Errorf("start orchestrator: %w", err)
		}
		defer orch.Stop()
	}

	// Scheduler (опционально)
	if cfg.Schedule != "" {
		sched, err := newScheduler(cfg, orch, publisher, scheduleRepo, logger)
		if err != nil {
			return fmt.Errorf("create scheduler: %w", err)
		}
		go func() {
			if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("scheduler stopped", "error", err)
			}
		}()
	}

	// HTTP: API + /healthz + /metrics
	handler := api.NewHandler(api.Config{
		Runner:   orch,
		Catalog:  reg,
		History:  history,
		RunStore: runStore(runRepo),
		Enqueuer: enqueuer(publisher),
		Logger:   logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if mqConn != nil && !mqConn.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, "rabbitmq disconnected")
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s, active runs %d", time.Since(startTime).Round(time.Second), orch.ActiveRunsCount())
	})
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: mux,
	}

	// Запускаем сервер в горутине
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// newScheduler создаёт планировщик из RUN_SCHEDULE.
//
// С брокером запросы публикуются в runs.requested и выполняются тем
// экземпляром, который их получит; без брокера выполняются локально.
func newScheduler(
	cfg config.Config,
	orch *orchestrator.Orchestrator,
	publisher *mq.Publisher,
	scheduleRepo *repo.ScheduleRepo,
	logger *slog.Logger,
) (*scheduler.Scheduler, error) {
	sched := &domain.Schedule{
		Name:        "default",
		CronExpr:    cfg.Schedule,
		Timezone:    cfg.ScheduleTimezone,
		Description: cfg.ScheduleDescription,
		Tasks:       cfg.ScheduleTasks,
		Options:     domain.DefaultRunOptions(),
	}

	var submit scheduler.SubmitFunc
	if publisher != nil {
		submit = publisher.PublishRunRequested
	} else {
		submit = func(ctx context.Context, req *domain.RunRequest) error {
			// Проверяем запрос синхронно, выполняем в фоне
			if _, err := orch.Plan(req); err != nil {
				return err
			}
			go func() {
				if _, err := orch.Run(context.WithoutCancel(ctx), req); err != nil {
					logger.Error("scheduled run failed", "request_id", req.ID, "error", err)
				}
			}()
			return nil
		}
	}

	schedCfg := scheduler.Config{
		Schedules: []*domain.Schedule{sched},
		Submitter: submit,
		Logger:    logger,
	}
	if scheduleRepo != nil {
		schedCfg.Store = scheduleRepo
		schedCfg.Leader = scheduleRepo
	}
	return scheduler.New(schedCfg)
}

// runStore возвращает nil-интерфейс, если БД не настроена.
func runStore(r *repo.RunRepo) api.RunStore {
	if r == nil {
		return nil
	}
	return r
}

// enqueuer возвращает nil-интерфейс, если брокер не настроен.
func enqueuer(p *mq.Publisher) api.Enqueuer {
	if p == nil {
		return nil
	}
	return p
}
