package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/registry"
	"github.com/shaiso/Conductor/internal/steps"
)

// Имена задач встроенного пайплайна.
const (
	TaskAnalyzer    = "analyzer"
	TaskPlanner     = "planner"
	TaskImplementer = "implementer"
	TaskValidator   = "validator"
	TaskReporter    = "reporter"
)

// SharedFail — ключ Shared со списком задач, которые должны упасть.
// Используется для демонстрации поведения при сбоях:
//
//	conductor run --fail implementer
const SharedFail = "fail"

// Options — параметры встроенного пайплайна.
type Options struct {
	// Latency — имитация длительности работы каждой задачи.
	Latency time.Duration
}

// Builtin возвращает объявления встроенного пайплайна.
func Builtin(opts Options) []domain.TaskDecl {
	return []domain.TaskDecl{
		{
			Name:        TaskAnalyzer,
			Description: "Extract keywords and size of the request",
			Priority:    100,
			Critical:    true,
			Handler:     simulated(opts, analyze),
		},
		{
			Name:         TaskPlanner,
			Description:  "Turn the analysis into an ordered plan",
			Dependencies: []string{TaskAnalyzer},
			Priority:     90,
			Critical:     true,
			Handler:      simulated(opts, plan),
		},
		{
			Name:         TaskImplementer,
			Description:  "Apply the planned changes",
			Dependencies: []string{TaskPlanner},
			Priority:     80,
			Critical:     true,
			Retry: &domain.RetryPolicy{
				MaxAttempts:  2,
				Backoff:      "fixed",
				InitialDelay: 50 * time.Millisecond,
			},
			Handler: simulated(opts, implement),
		},
		{
			Name:         TaskValidator,
			Description:  "Check the applied changes",
			Dependencies: []string{TaskImplementer},
			Priority:     70,
			Handler:      simulated(opts, validate),
		},
		{
			Name:         TaskReporter,
			Description:  "Collect outputs of the pipeline",
			Dependencies: []string{TaskValidator},
			Priority:     10,
			Handler:      simulated(opts, steps.Handler(steps.NewMergeStep(), nil, 0)),
		},
	}
}

// RegisterBuiltin регистрирует встроенный пайплайн в реестре.
func RegisterBuiltin(reg *registry.Registry, opts Options) error {
	return reg.RegisterBatch(Builtin(opts)...)
}

// simulated добавляет к handler'у имитацию задержки и сбоя по SharedFail.
func simulated(opts Options, h domain.Handler) domain.Handler {
	return func(ctx context.Context, in *domain.HandlerInput) (domain.Outputs, error) {
		if opts.Latency > 0 {
			timer := time.NewTimer(opts.Latency)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
		if shouldFail(in) {
			return nil, fmt.Errorf("simulated failure of %s", in.Task)
		}
		return h(ctx, in)
	}
}

// shouldFail проверяет, указана ли задача в Shared["fail"].
func shouldFail(in *domain.HandlerInput) bool {
	switch list := in.Shared[SharedFail].(type) {
	case []string:
		for _, name := range list {
			if name == in.Task {
				return true
			}
		}
	case []any:
		for _, name := range list {
			if name == in.Task {
				return true
			}
		}
	case string:
		for _, name := range strings.Split(list, ",") {
			if strings.TrimSpace(name) == in.Task {
				return true
			}
		}
	}
	return false
}

// analyze — слова и ключевые слова описания.
func analyze(_ context.Context, in *domain.HandlerInput) (domain.Outputs, error) {
	words := strings.Fields(strings.ToLower(in.Description))

	seen := make(map[string]bool)
	keywords := make([]string, 0)
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) < 5 || seen[w] {
			continue
		}
		seen[w] = true
		keywords = append(keywords, w)
	}

	return domain.Outputs{
		"words":    len(words),
		"keywords": keywords,
		"summary":  fmt.Sprintf("%d words, %d keywords", len(words), len(keywords)),
	}, nil
}

// plan — по шагу на ключевое слово.
func plan(_ context.Context, in *domain.HandlerInput) (domain.Outputs, error) {
	keywords, _ := in.Deps[TaskAnalyzer]["keywords"].([]string)

	items := make([]string, 0, len(keywords)+1)
	for _, kw := range keywords {
		items = append(items, "address "+kw)
	}
	if len(items) == 0 {
		items = append(items, "review request")
	}

	return domain.Outputs{"plan": items, "steps": len(items)}, nil
}

// implement — применяет шаги плана.
func implement(ctx context.Context, in *domain.HandlerInput) (domain.Outputs, error) {
	items, _ := in.Deps[TaskPlanner]["plan"].([]string)

	changes := make([]string, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		changes = append(changes, "done: "+item)
	}

	return domain.Outputs{"changes": changes, "applied": len(changes)}, nil
}

// validate — проверяет, что все шаги применены.
func validate(_ context.Context, in *domain.HandlerInput) (domain.Outputs, error) {
	applied, _ := in.Deps[TaskImplementer]["applied"].(int)
	if applied == 0 {
		return nil, fmt.Errorf("no changes applied")
	}
	return domain.Outputs{"checked": applied, "passed": true}, nil
}
