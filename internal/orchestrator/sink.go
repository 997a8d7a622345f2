package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Conductor/internal/domain"
)

// Sink получает итог каждого run.
//
// Реализации: History, repo.RunRepo, mq.Publisher.
// Ошибка sink'а логируется и не влияет на результат run.
type Sink interface {
	Record(ctx context.Context, result *domain.RunResult) error
}

// SinkFunc — адаптер функции к Sink.
type SinkFunc func(ctx context.Context, result *domain.RunResult) error

// Record вызывает f.
func (f SinkFunc) Record(ctx context.Context, result *domain.RunResult) error {
	return f(ctx, result)
}

// Sinks — рассылка итога нескольким sink'ам.
type Sinks []Sink

// Record передаёт итог всем sink'ам; ошибки объединяются.
func (s Sinks) Record(ctx context.Context, result *domain.RunResult) error {
	var errs []error
	for _, sink := range s {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DefaultHistorySize — размер History по умолчанию.
const DefaultHistorySize = 100

// History хранит последние N итогов в памяти.
type History struct {
	mu    sync.RWMutex
	size  int
	items []*domain.RunResult
	byID  map[uuid.UUID]*domain.RunResult
}

// NewHistory создаёт History на size записей (default: 100).
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{
		size:  size,
		items: make([]*domain.RunResult, 0, size),
		byID:  make(map[uuid.UUID]*domain.RunResult, size),
	}
}

// Record реализует Sink. Старейший итог вытесняется.
func (h *History) Record(_ context.Context, result *domain.RunResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, exists := h.byID[result.RequestID]; exists {
		for i, item := range h.items {
			if item == old {
				h.items = append(h.items[:i], h.items[i+1:]...)
				break
			}
		}
	}

	if len(h.items) == h.size {
		evicted := h.items[0]
		h.items = h.items[1:]
		delete(h.byID, evicted.RequestID)
	}

	h.items = append(h.items, result)
	h.byID[result.RequestID] = result
	return nil
}

// Get возвращает итог по ID запроса.
func (h *History) Get(id uuid.UUID) (*domain.RunResult, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	result, ok := h.byID[id]
	return result, ok
}

// List возвращает до limit последних итогов, новые первыми.
// limit <= 0 — все.
func (h *History) List(limit int) []*domain.RunResult {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := len(h.items)
	if limit > 0 && limit < n {
		n = limit
	}

	results := make([]*domain.RunResult, 0, n)
	for i := len(h.items) - 1; i >= 0 && len(results) < n; i-- {
		results = append(results, h.items[i])
	}
	return results
}

// Len возвращает количество хранимых итогов.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}
