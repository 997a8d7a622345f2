package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Conductor/internal/domain"
)

// RunRepo — хранилище итогов run.
//
// Реализует orchestrator.Sink: Record сохраняет итог и записи
// выполнения одной транзакцией.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Record сохраняет итог run. Повторная запись того же запроса
// заменяет предыдущую.
func (r *RunRepo) Record(ctx context.Context, result *domain.RunResult) error {
	if result == nil || result.RequestID == uuid.Nil {
		return ErrInvalidResult
	}

	recommendations, err := json.Marshal(result.Recommendations)
	if err != nil {
		return fmt.Errorf("marshal recommendations: %w", err)
	}

	records := make([]recordRow, len(result.Records))
	for i := range result.Records {
		row, err := newRecordRow(i, &result.Records[i])
		if err != nil {
			return err
		}
		records[i] = row
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO run_results (request_id, strategy, status, score, success_count,
		                         failure_count, skipped_count, recommendations, fault,
		                         started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (request_id) DO UPDATE
		SET strategy = EXCLUDED.strategy, status = EXCLUDED.status, score = EXCLUDED.score,
		    success_count = EXCLUDED.success_count, failure_count = EXCLUDED.failure_count,
		    skipped_count = EXCLUDED.skipped_count, recommendations = EXCLUDED.recommendations,
		    fault = EXCLUDED.fault, started_at = EXCLUDED.started_at, finished_at = EXCLUDED.finished_at
	`
	_, err = tx.Exec(ctx, query,
		result.RequestID,
		result.Strategy,
		result.Status,
		result.Score,
		result.SuccessCount,
		result.FailureCount,
		result.SkippedCount,
		recommendations,
		nullString(result.FaultMessage()),
		result.StartedAt,
		result.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert run result: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM execution_records WHERE request_id = $1`, result.RequestID); err != nil {
		return fmt.Errorf("delete execution records: %w", err)
	}

	batch := &pgx.Batch{}
	for _, row := range records {
		batch.Queue(`
			INSERT INTO execution_records (request_id, position, task, status, critical,
			                               started_at, ended_at, outputs, error, skip_reason,
			                               attempts, handler_duration_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`,
			result.RequestID,
			row.Position,
			row.Task,
			row.Status,
			row.Critical,
			row.StartedAt,
			row.EndedAt,
			row.Outputs,
			row.Error,
			row.SkipReason,
			row.Attempts,
			row.DurationMs,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert execution records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetByID возвращает итог run вместе с записями выполнения.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.RunResult, error) {
	query := `
		SELECT request_id, strategy, status, score, success_count, failure_count,
		       skipped_count, recommendations, fault, started_at, finished_at
		FROM run_results
		WHERE request_id = $1
	`
	result, err := r.scanResult(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT position, task, status, critical, started_at, ended_at, outputs,
		       error, skip_reason, attempts, handler_duration_ms
		FROM execution_records
		WHERE request_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list execution records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row recordRow
		err := rows.Scan(
			&row.Position,
			&row.Task,
			&row.Status,
			&row.Critical,
			&row.StartedAt,
			&row.EndedAt,
			&row.Outputs,
			&row.Error,
			&row.SkipReason,
			&row.Attempts,
			&row.DurationMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan execution record: %w", err)
		}
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		result.Records = append(result.Records, rec)
	}
	return result, rows.Err()
}

// RunFilter — параметры выборки итогов.
type RunFilter struct {
	Status   domain.RunStatus
	Strategy domain.Strategy
	Limit    int
}

// ListRecent возвращает последние итоги без записей выполнения.
func (r *RunRepo) ListRecent(ctx context.Context, filter RunFilter) ([]domain.RunResult, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT request_id, strategy, status, score, success_count, failure_count,
		       skipped_count, recommendations, fault, started_at, finished_at
		FROM run_results
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::text IS NULL OR strategy = $2)
		ORDER BY finished_at DESC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(string(filter.Status)),
		nullString(string(filter.Strategy)),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list run results: %w", err)
	}
	defer rows.Close()

	var results []domain.RunResult
	for rows.Next() {
		result, err := r.scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, rows.Err()
}

// scanResult сканирует строку run_results.
// pgx.Rows удовлетворяет pgx.Row, поэтому подходит и для выборок.
func (r *RunRepo) scanResult(row pgx.Row) (*domain.RunResult, error) {
	var result domain.RunResult
	var recommendations []byte
	var fault *string

	err := row.Scan(
		&result.RequestID,
		&result.Strategy,
		&result.Status,
		&result.Score,
		&result.SuccessCount,
		&result.FailureCount,
		&result.SkippedCount,
		&recommendations,
		&fault,
		&result.StartedAt,
		&result.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run result: %w", err)
	}

	if recommendations != nil {
		if err := json.Unmarshal(recommendations, &result.Recommendations); err != nil {
			return nil, fmt.Errorf("unmarshal recommendations: %w", err)
		}
	}
	result.Fault = errorFrom(fault)

	return &result, nil
}

// recordRow — строка execution_records.
type recordRow struct {
	Position   int
	Task       string
	Status     domain.TaskStatus
	Critical   bool
	StartedAt  *time.Time
	EndedAt    *time.Time
	Outputs    []byte
	Error      *string
	SkipReason *string
	Attempts   int
	DurationMs int64
}

// newRecordRow готовит запись выполнения к вставке.
func newRecordRow(position int, rec *domain.ExecutionRecord) (recordRow, error) {
	row := recordRow{
		Position:   position,
		Task:       rec.Task,
		Status:     rec.Status,
		Critical:   rec.Critical,
		StartedAt:  rec.StartedAt,
		EndedAt:    rec.EndedAt,
		Error:      nullString(rec.ErrorMessage()),
		SkipReason: nullString(rec.SkipReason),
		Attempts:   rec.Attempts,
		DurationMs: rec.HandlerDuration.Milliseconds(),
	}

	if rec.Outputs != nil {
		outputs, err := json.Marshal(rec.Outputs)
		if err != nil {
			return recordRow{}, fmt.Errorf("marshal outputs of %s: %w", rec.Task, err)
		}
		row.Outputs = outputs
	}
	return row, nil
}

// record восстанавливает запись выполнения.
func (row recordRow) record() (domain.ExecutionRecord, error) {
	rec := domain.ExecutionRecord{
		Task:            row.Task,
		Status:          row.Status,
		Critical:        row.Critical,
		StartedAt:       row.StartedAt,
		EndedAt:         row.EndedAt,
		Error:           errorFrom(row.Error),
		Attempts:        row.Attempts,
		HandlerDuration: time.Duration(row.DurationMs) * time.Millisecond,
	}
	if row.SkipReason != nil {
		rec.SkipReason = *row.SkipReason
	}
	if row.Outputs != nil {
		if err := json.Unmarshal(row.Outputs, &rec.Outputs); err != nil {
			return domain.ExecutionRecord{}, fmt.Errorf("unmarshal outputs of %s: %w", row.Task, err)
		}
	}
	return rec, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
