package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Conductor/internal/aggregator"
	"github.com/shaiso/Conductor/internal/domain"
)

// Причины пропуска задач.
const (
	// SkipCancelled — контекст отменён до запуска задачи.
	SkipCancelled = "cancelled"

	// SkipFault — run прерван сбоем планировщика.
	SkipFault = "orchestration fault"
)

// runState — записи одного run. Принадлежит одной горутине.
type runState struct {
	req       *domain.RunRequest
	records   []*domain.ExecutionRecord
	byName    map[string]*domain.ExecutionRecord
	startedAt time.Time
}

// newRunState создаёт записи PENDING для каждой задачи порядка.
func newRunState(req *domain.RunRequest, order []*domain.TaskDecl) *runState {
	s := &runState{
		req:       req,
		records:   make([]*domain.ExecutionRecord, len(order)),
		byName:    make(map[string]*domain.ExecutionRecord, len(order)),
		startedAt: time.Now(),
	}
	for i, decl := range order {
		rec := domain.NewExecutionRecord(decl)
		s.records[i] = rec
		s.byName[decl.Name] = rec
	}
	return s
}

// input собирает вход handler'а: outputs завершённых зависимостей.
// Зависимость, упавшая как опциональная, в Deps не попадает.
func (s *runState) input(decl *domain.TaskDecl) domain.HandlerInput {
	deps := make(map[string]domain.Outputs, len(decl.Dependencies))
	for _, name := range decl.Dependencies {
		if rec, ok := s.byName[name]; ok && rec.Status == domain.TaskStatusCompleted {
			deps[name] = rec.Outputs
		}
	}

	return domain.HandlerInput{
		Task:        decl.Name,
		RequestID:   s.req.ID,
		Description: s.req.Description,
		Shared:      s.req.Shared,
		Deps:        deps,
	}
}

// skipReason возвращает причину пропуска задачи или пустую строку.
//
// Задача пропускается, если отменён ctx, если пропущена любая
// зависимость или если упала критичная зависимость. Упавшая
// опциональная зависимость запуску не мешает: задача выполняется,
// а зависимость просто отсутствует в Deps (см. input).
func (s *runState) skipReason(ctx context.Context, decl *domain.TaskDecl) string {
	if ctx.Err() != nil {
		return SkipCancelled
	}
	for _, name := range decl.Dependencies {
		rec, ok := s.byName[name]
		if !ok {
			continue
		}
		switch {
		case rec.Status == domain.TaskStatusSkipped:
			return fmt.Sprintf("dependency %s was skipped", name)
		case rec.Status == domain.TaskStatusFailed && rec.Critical:
			return fmt.Sprintf("critical dependency %s failed", name)
		}
	}
	return ""
}

// finish переводит RUNNING запись в COMPLETED или FAILED.
func finish(rec *domain.ExecutionRecord, out outcome, at time.Time) error {
	rec.Attempts = out.attempts
	if out.err != nil {
		return rec.MarkFailed(at, out.err, out.took)
	}
	return rec.MarkCompleted(at, out.outputs, out.took)
}

// result собирает RunResult и заполняет итог агрегатором.
func (s *runState) result(strategy domain.Strategy, fault error) *domain.RunResult {
	records := make([]domain.ExecutionRecord, len(s.records))
	for i, rec := range s.records {
		records[i] = rec.Clone()
	}

	result := &domain.RunResult{
		RequestID:  s.req.ID,
		Strategy:   strategy,
		Records:    records,
		Fault:      fault,
		StartedAt:  s.startedAt,
		FinishedAt: time.Now(),
	}
	aggregator.Apply(result)
	return result
}
