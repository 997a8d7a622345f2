package repo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Conductor/internal/domain"
)

// ScheduleRepo хранит состояние расписаний между перезапусками:
// время следующего и последнего срабатывания.
//
// ScheduleRepo также выбирает лидера среди нескольких экземпляров
// через pg_try_advisory_lock (TryLead).
type ScheduleRepo struct {
	pool *pgxpool.Pool

	mu   sync.Mutex
	lock *pgxpool.Conn // соединение, держащее advisory lock
}

// schedulerLockKey — ключ advisory lock планировщика.
const schedulerLockKey int64 = 0x436f6e64756374

// NewScheduleRepo создаёт новый ScheduleRepo.
func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

// Save сохраняет состояние расписания по имени.
func (r *ScheduleRepo) Save(ctx context.Context, s *domain.Schedule) error {
	query := `
		INSERT INTO schedules (name, cron_expr, interval_sec, timezone, next_due_at,
		                       last_run_at, last_request_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (name) DO UPDATE
		SET cron_expr = EXCLUDED.cron_expr, interval_sec = EXCLUDED.interval_sec,
		    timezone = EXCLUDED.timezone, next_due_at = EXCLUDED.next_due_at,
		    last_run_at = EXCLUDED.last_run_at, last_request_id = EXCLUDED.last_request_id,
		    updated_at = NOW()
	`
	_, err := r.pool.Exec(ctx, query,
		s.Name,
		nullString(s.CronExpr),
		nullInt(s.IntervalSec),
		s.Timezone,
		s.NextDueAt,
		s.LastRunAt,
		s.LastRequestID,
	)
	if err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	return nil
}

// Load заполняет NextDueAt, LastRunAt и LastRequestID сохранённым
// состоянием. Возвращает ErrNotFound, если расписание ещё не сохранялось.
func (r *ScheduleRepo) Load(ctx context.Context, s *domain.Schedule) error {
	query := `
		SELECT next_due_at, last_run_at, last_request_id
		FROM schedules
		WHERE name = $1
	`
	err := r.pool.QueryRow(ctx, query, s.Name).Scan(&s.NextDueAt, &s.LastRunAt, &s.LastRequestID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load schedule: %w", err)
	}
	return nil
}

// nullInt возвращает nil для нулевого int.
func nullInt(i int) *int {
	if i == 0 {
		return nil
	}
	return &i
}

// TryLead пытается стать лидером планировщика.
//
// Advisory lock привязан к сессии, поэтому берётся на отдельном
// соединении, которое удерживается до Release. Повторный вызов у
// лидера проверяет, что соединение живо.
func (r *ScheduleRepo) TryLead(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lock != nil {
		if err := r.lock.Ping(ctx); err == nil {
			return true, nil
		}
		// Соединение потеряно: вместе с ним потерян и lock
		r.lock.Release()
		r.lock = nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", schedulerLockKey).Scan(&ok); err != nil {
		conn.Release()
		return false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return false, nil
	}

	r.lock = conn
	return true, nil
}

// Release снимает advisory lock, если он был взят.
func (r *ScheduleRepo) Release(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lock == nil {
		return
	}
	_, _ = r.lock.Exec(ctx, "SELECT pg_advisory_unlock($1)", schedulerLockKey)
	r.lock.Release()
	r.lock = nil
}
