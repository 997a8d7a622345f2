package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/shaiso/Conductor/internal/domain"
)

// Context — данные, доступные в шаблонах конфигурации handler'ов.
//
//	{{ .Task }}, {{ .RequestID }}, {{ .Description }}
//	{{ .Shared.key }}
//	{{ .Deps.analyzer.summary }}
//	{{ env "API_TOKEN" }}
type Context struct {
	Task        string                    `json:"task"`
	RequestID   string                    `json:"request_id"`
	Description string                    `json:"description"`
	Shared      map[string]any            `json:"shared"`
	Deps        map[string]domain.Outputs `json:"deps"`
}

// NewContext строит контекст шаблона из входа handler'а.
func NewContext(in *domain.HandlerInput) *Context {
	ctx := &Context{
		Shared: make(map[string]any),
		Deps:   make(map[string]domain.Outputs),
	}
	if in == nil {
		return ctx
	}

	ctx.Task = in.Task
	ctx.RequestID = in.RequestID.String()
	ctx.Description = in.Description
	if in.Shared != nil {
		ctx.Shared = in.Shared
	}
	if in.Deps != nil {
		ctx.Deps = in.Deps
	}
	return ctx
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// json — сериализует значение в JSON строку
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return string(b)
	},

	// default — значение по умолчанию для пустого аргумента
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	"env":      os.Getenv,
	"join":     func(sep string, items []string) string { return strings.Join(items, sep) },
	"contains": strings.Contains,
	"lower":    strings.ToLower,
	"upper":    strings.ToUpper,
	"trim":     strings.TrimSpace,
}

// Render рендерит строковый шаблон с контекстом.
// Строка без "{{" возвращается как есть.
func Render(tmpl string, ctx *Context) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}

// RenderValue рендерит произвольное значение.
// Рекурсивно обрабатывает map и slice; прочие типы возвращаются как есть.
func RenderValue(value any, ctx *Context) (any, error) {
	switch v := value.(type) {
	case string:
		return Render(v, ctx)

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			rendered, err := RenderValue(val, ctx)
			if err != nil {
				return nil, err
			}
			result[key] = rendered
		}
		return result, nil

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			rendered, err := RenderValue(val, ctx)
			if err != nil {
				return nil, err
			}
			result[i] = rendered
		}
		return result, nil

	case map[string]string:
		result := make(map[string]string, len(v))
		for key, val := range v {
			rendered, err := Render(val, ctx)
			if err != nil {
				return nil, err
			}
			result[key] = rendered
		}
		return result, nil

	default:
		return value, nil
	}
}
