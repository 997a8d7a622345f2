package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule — расписание автоматической отправки run request.
//
// Schedule срабатывает:
// - По cron-выражению: "0 9 * * *" (каждый день в 9:00)
// - По интервалу: каждые N секунд
//
// При срабатывании создаётся новый RunRequest из шаблона (Description, Tasks, Options).
type Schedule struct {
	// Name — имя расписания (для логов).
	Name string `json:"name"`

	// CronExpr — cron-выражение "минуты часы дни месяцы дни_недели".
	// Если задан CronExpr, IntervalSec игнорируется.
	CronExpr string `json:"cron_expr,omitempty"`

	// IntervalSec — интервал в секундах между запусками.
	IntervalSec int `json:"interval_sec,omitempty"`

	// Timezone — часовой пояс для cron. По умолчанию: "UTC".
	Timezone string `json:"timezone,omitempty"`

	// Description, Tasks, Options — шаблон создаваемого запроса.
	Description string     `json:"description"`
	Tasks       []string   `json:"tasks"`
	Options     RunOptions `json:"options"`

	// NextDueAt — время следующего срабатывания.
	NextDueAt *time.Time `json:"next_due_at,omitempty"`

	// LastRunAt — время последнего срабатывания.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	// LastRequestID — ID последнего созданного запроса.
	LastRequestID *uuid.UUID `json:"last_request_id,omitempty"`
}

// IsCron возвращает true, если расписание использует cron-выражение.
func (s *Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// IsInterval возвращает true, если расписание использует интервал.
func (s *Schedule) IsInterval() bool {
	return s.CronExpr == "" && s.IntervalSec > 0
}

// IsDue проверяет, пора ли срабатывать.
func (s *Schedule) IsDue(now time.Time) bool {
	if s.NextDueAt == nil {
		return false
	}
	return !now.Before(*s.NextDueAt)
}

// NewRequest создаёт RunRequest из шаблона расписания.
func (s *Schedule) NewRequest() *RunRequest {
	tasks := make([]string, len(s.Tasks))
	copy(tasks, s.Tasks)
	return &RunRequest{
		ID:          uuid.New(),
		Description: s.Description,
		Tasks:       tasks,
		Shared:      map[string]any{"schedule": s.Name},
		Options:     s.Options,
	}
}

// RecordRun записывает информацию о срабатывании.
func (s *Schedule) RecordRun(requestID uuid.UUID, nextDue time.Time) {
	now := time.Now()
	s.LastRunAt = &now
	s.LastRequestID = &requestID
	s.NextDueAt = &nextDue
}
