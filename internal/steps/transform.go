package steps

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shaiso/Conductor/internal/engine"
)

const (
	// StepTypeTransform — тип шага трансформации.
	StepTypeTransform = "transform"

	configMappings = "mappings"
)

// TransformStep — шаг трансформации outputs зависимостей.
//
// Каждый mapping — шаблон; результат пробуется как JSON.
//
//	{
//	    "mappings": {
//	        "files": "{{ len .Deps.planner.files }}",
//	        "title": "{{ upper .Description }}",
//	        "plan":  "{{ json .Deps.planner }}"
//	    }
//	}
type TransformStep struct{}

// NewTransformStep создаёт новый TransformStep.
func NewTransformStep() *TransformStep {
	return &TransformStep{}
}

// Type возвращает тип шага.
func (s *TransformStep) Type() string {
	return StepTypeTransform
}

// RawConfig — mappings рендерятся самим шагом.
func (s *TransformStep) RawConfig() bool {
	return true
}

// Execute выполняет трансформацию.
func (s *TransformStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := cancelled(ctx); err != nil {
		return nil, err
	}

	mappings := GetConfigMapString(req.Config, configMappings)
	outputs := make(map[string]any, len(mappings))
	for key, tmpl := range mappings {
		rendered, err := engine.Render(tmpl, req.TemplateContext)
		if err != nil {
			return nil, fmt.Errorf("transform %s: %w", key, err)
		}
		outputs[key] = parseValue(rendered)
	}

	return NewResponse(outputs), nil
}

// parseValue пытается распарсить строку как JSON.
// Если не получается — возвращает строку как есть.
func parseValue(value string) any {
	var parsed any
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		return value
	}

	// Целые числа без дробной части — int64
	if f, ok := parsed.(float64); ok && f == float64(int64(f)) {
		return int64(f)
	}
	return parsed
}
