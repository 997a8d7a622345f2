package steps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/engine"
)

// Ошибки шагов.
var (
	// ErrStepNotFound — тип шага не найден в реестре.
	ErrStepNotFound = errors.New("step type not found")

	// ErrInvalidConfig — невалидная конфигурация шага.
	ErrInvalidConfig = errors.New("invalid step config")

	// ErrStepCancelled — выполнение шага отменено.
	ErrStepCancelled = errors.New("step execution cancelled")
)

// Step — переиспользуемая реализация handler'а, настраиваемая конфигом.
//
// Каждый тип шага (delay, http, transform, merge, fail) реализует этот
// интерфейс. Handler превращает Step + конфиг в domain.Handler.
type Step interface {
	// Type возвращает тип шага.
	Type() string

	// Execute выполняет шаг и возвращает результат.
	// Шаг должен проверять ctx.Done().
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// rawConfig — шаг, который сам рендерит шаблоны своего конфига.
type rawConfig interface {
	RawConfig() bool
}

// Request — входные данные для выполнения шага.
type Request struct {
	// Task — имя задачи, выполняющей шаг.
	Task string

	// Config — конфигурация шага (уже отрендеренная через engine.RenderValue).
	Config map[string]any

	// TemplateContext — контекст с outputs зависимостей.
	TemplateContext *engine.Context

	// Timeout — таймаут выполнения шага (0 — без таймаута).
	Timeout time.Duration
}

// Response — результат выполнения шага.
type Response struct {
	// Outputs — выходные данные шага.
	// Доступны зависимым задачам через {{ .Deps.task.field }}
	Outputs domain.Outputs
}

// NewRequest создаёт новый Request.
func NewRequest(task string, config map[string]any, tmplCtx *engine.Context, timeout time.Duration) *Request {
	if config == nil {
		config = make(map[string]any)
	}
	if tmplCtx == nil {
		tmplCtx = engine.NewContext(nil)
	}
	return &Request{
		Task:            task,
		Config:          config,
		TemplateContext: tmplCtx,
		Timeout:         timeout,
	}
}

// NewResponse создаёт новый Response с outputs.
func NewResponse(outputs domain.Outputs) *Response {
	if outputs == nil {
		outputs = make(domain.Outputs)
	}
	return &Response{Outputs: outputs}
}

// Handler превращает шаг с конфигом в domain.Handler.
//
// При каждом вызове конфиг рендерится против входа handler'а
// ({{ .Deps.analyzer.summary }}, {{ .Shared.env }}), затем вызывается
// step.Execute. timeout > 0 ограничивает одну попытку.
func Handler(step Step, config map[string]any, timeout time.Duration) domain.Handler {
	return func(ctx context.Context, in *domain.HandlerInput) (domain.Outputs, error) {
		tmplCtx := engine.NewContext(in)

		cfg := config
		if raw, ok := step.(rawConfig); !ok || !raw.RawConfig() {
			rendered, err := engine.RenderValue(config, tmplCtx)
			if err != nil {
				return nil, fmt.Errorf("%s: render config: %w", step.Type(), err)
			}
			cfg, _ = rendered.(map[string]any)
		}

		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		resp, err := step.Execute(ctx, NewRequest(in.Task, cfg, tmplCtx, timeout))
		if err != nil {
			return nil, err
		}
		return resp.Outputs, nil
	}
}

// cancelled проверяет ctx перед началом работы.
func cancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
	default:
		return nil
	}
}

// GetConfigString извлекает строковое значение из конфига.
func GetConfigString(config map[string]any, key string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetConfigInt извлекает числовое значение из конфига.
func GetConfigInt(config map[string]any, key string) int {
	if v, ok := config[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return 0
}

// GetConfigBool извлекает булево значение из конфига.
func GetConfigBool(config map[string]any, key string, defaultVal bool) bool {
	if v, ok := config[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// GetConfigStrings извлекает список строк из конфига.
func GetConfigStrings(config map[string]any, key string) []string {
	switch list := config[key].(type) {
	case []string:
		return list
	case []any:
		result := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}

// GetConfigMapString извлекает map[string]string из конфига.
func GetConfigMapString(config map[string]any, key string) map[string]string {
	if v, ok := config[key]; ok {
		switch m := v.(type) {
		case map[string]string:
			return m
		case map[string]any:
			result := make(map[string]string)
			for k, val := range m {
				if s, ok := val.(string); ok {
					result[k] = s
				}
			}
			return result
		}
	}
	return nil
}

// GetConfigMap извлекает вложенный объект из конфигурации.
func GetConfigMap(config map[string]any, key string) map[string]any {
	if m, ok := config[key].(map[string]any); ok {
		return m
	}
	return nil
}
