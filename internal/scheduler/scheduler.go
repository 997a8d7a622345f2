package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conductor/internal/domain"
)

// requestNamespace — пространство имён для ID запросов расписаний.
var requestNamespace = uuid.MustParse("6f1c2b8e-4d0a-5e7b-9c3f-2a1d8e4b7c60")

// Submitter принимает созданный расписанием запрос:
// локальный оркестратор или публикация в runs.requested.
type Submitter interface {
	Submit(ctx context.Context, req *domain.RunRequest) error
}

// SubmitFunc — адаптер функции к Submitter.
type SubmitFunc func(ctx context.Context, req *domain.RunRequest) error

// Submit вызывает f.
func (f SubmitFunc) Submit(ctx context.Context, req *domain.RunRequest) error {
	return f(ctx, req)
}

// Store хранит состояние расписаний между перезапусками (repo.ScheduleRepo).
type Store interface {
	// Load заполняет NextDueAt/LastRunAt; ошибка — состояние отсутствует.
	Load(ctx context.Context, sched *domain.Schedule) error
	Save(ctx context.Context, sched *domain.Schedule) error
}

// Leader решает, должен ли этот экземпляр срабатывать
// (pg_try_advisory_lock в repo.ScheduleRepo).
type Leader interface {
	TryLead(ctx context.Context) (bool, error)
}

// Scheduler отправляет запросы по расписаниям.
type Scheduler struct {
	schedules []*domain.Schedule
	submitter Submitter
	store     Store
	leader    Leader
	tick      time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules []*domain.Schedule
	Submitter Submitter

	// Store (опционально) — без него после перезапуска отсчёт начинается заново.
	Store Store

	// Leader (опционально) — без него срабатывает каждый экземпляр.
	Leader Leader

	// TickInterval — период проверки (default: 1s).
	TickInterval time.Duration

	Logger *slog.Logger
}

// New создаёт Scheduler и проверяет расписания.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Submitter == nil {
		return nil, errors.New("scheduler: submitter is required")
	}
	for _, sched := range cfg.Schedules {
		if err := Validate(sched); err != nil {
			return nil, fmt.Errorf("scheduler: %w", err)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = time.Second
	}

	return &Scheduler{
		schedules: cfg.Schedules,
		submitter: cfg.Submitter,
		store:     cfg.Store,
		leader:    cfg.Leader,
		tick:      tick,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Init вычисляет первое время срабатывания.
// Сохранённое в Store состояние имеет приоритет: пропущенный за время
// простоя запуск выполнится на первом тике.
func (s *Scheduler) Init(ctx context.Context) error {
	now := s.now()
	for _, sched := range s.schedules {
		if s.store != nil {
			if err := s.store.Load(ctx, sched); err == nil && sched.NextDueAt != nil {
				s.logger.Info("schedule state restored", "schedule", sched.Name, "next_due_at", sched.NextDueAt)
				continue
			}
		}

		next, err := CalculateNextDue(sched, now)
		if err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		sched.NextDueAt = &next
		s.logger.Info("schedule registered", "schedule", sched.Name, "next_due_at", next)
	}
	return nil
}

// Run выполняет Init и тикает до отмены ctx.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Init(ctx); err != nil {
		return err
	}

	tk := time.NewTicker(s.tick)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tk.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Error("scheduler tick failed", "error", err)
			}
		}
	}
}

// Tick отправляет запросы всех наступивших расписаний.
// Ошибка одного расписания не блокирует остальные.
func (s *Scheduler) Tick(ctx context.Context) error {
	if s.leader != nil {
		lead, err := s.leader.TryLead(ctx)
		if err != nil {
			return fmt.Errorf("leader election: %w", err)
		}
		if !lead {
			return nil
		}
	}

	now := s.now()
	var fired int
	for _, sched := range s.schedules {
		if !sched.IsDue(now) {
			continue
		}
		if err := s.fire(ctx, sched, now); err != nil {
			s.logger.Error("failed to process schedule", "schedule", sched.Name, "error", err)
			continue
		}
		fired++
	}

	if fired > 0 {
		s.logger.Debug("scheduler tick completed", "fired", fired)
	}
	return nil
}

// fire отправляет запрос расписания и сдвигает NextDueAt.
func (s *Scheduler) fire(ctx context.Context, sched *domain.Schedule, now time.Time) error {
	req := sched.NewRequest()
	req.ID = RequestID(sched)

	if err := s.submitter.Submit(ctx, req); err != nil {
		return fmt.Errorf("submit request: %w", err)
	}

	next, err := CalculateNextDue(sched, now)
	if err != nil {
		return err
	}
	sched.RecordRun(req.ID, next)

	s.logger.Info("scheduled run submitted",
		"schedule", sched.Name,
		"request_id", req.ID,
		"next_due_at", next,
	)

	if s.store != nil {
		if err := s.store.Save(ctx, sched); err != nil {
			s.logger.Warn("failed to save schedule state", "schedule", sched.Name, "error", err)
		}
	}
	return nil
}

// RequestID — детерминированный ID запроса для срабатывания расписания.
//
// Один и тот же due-момент даёт один и тот же ID, поэтому повторная
// отправка (несколько экземпляров, повтор после сбоя) отсекается
// оркестратором как ErrRunAlreadyActive и перезаписывает ту же строку в БД.
func RequestID(sched *domain.Schedule) uuid.UUID {
	var due int64
	if sched.NextDueAt != nil {
		due = sched.NextDueAt.Unix()
	}
	return uuid.NewSHA1(requestNamespace, []byte(sched.Name+"_"+strconv.FormatInt(due, 10)))
}
