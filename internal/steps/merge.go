package steps

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

const (
	// StepTypeMerge — тип шага сведения outputs зависимостей.
	StepTypeMerge = "merge"

	// StepTypeFail — тип шага, который всегда падает.
	StepTypeFail = "fail"

	configMessage = "message"
	configFrom    = "from"
)

// MergeStep собирает outputs завершённых зависимостей в один результат.
//
//	{"from": ["analyzer", "planner"]}   // пусто — все зависимости
//
// Outputs:
//
//	{"tasks": ["analyzer", "planner"], "outputs": {"analyzer": {...}, ...}}
//
// Упавшие опциональные зависимости в "tasks" не попадают.
type MergeStep struct{}

// NewMergeStep создаёт новый MergeStep.
func NewMergeStep() *MergeStep {
	return &MergeStep{}
}

// Type возвращает тип шага.
func (s *MergeStep) Type() string {
	return StepTypeMerge
}

// Execute сводит outputs.
func (s *MergeStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := cancelled(ctx); err != nil {
		return nil, err
	}

	deps := req.TemplateContext.Deps
	from := GetConfigStrings(req.Config, configFrom)
	if len(from) == 0 {
		for name := range deps {
			from = append(from, name)
		}
		sort.Strings(from)
	}

	tasks := make([]string, 0, len(from))
	merged := make(map[string]any, len(from))
	for _, name := range from {
		outputs, ok := deps[name]
		if !ok {
			continue
		}
		tasks = append(tasks, name)
		merged[name] = outputs
	}

	return NewResponse(map[string]any{
		"tasks":   tasks,
		"outputs": merged,
	}), nil
}

// FailStep всегда возвращает ошибку. Используется для проверки
// поведения пайплайна при падении задач.
//
//	{"message": "lint failed"}
type FailStep struct{}

// NewFailStep создаёт новый FailStep.
func NewFailStep() *FailStep {
	return &FailStep{}
}

// Type возвращает тип шага.
func (s *FailStep) Type() string {
	return StepTypeFail
}

// Execute возвращает ошибку из конфига.
func (s *FailStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := cancelled(ctx); err != nil {
		return nil, err
	}

	message := GetConfigString(req.Config, configMessage)
	if message == "" {
		message = fmt.Sprintf("task %s failed", req.Task)
	}
	return nil, errors.New(message)
}
