package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/registry"
	"github.com/shaiso/Conductor/internal/steps"
)

// ErrInvalidManifest — манифест пайплайна некорректен.
var ErrInvalidManifest = errors.New("invalid pipeline manifest")

// Manifest — декларативное описание набора задач.
//
//	name: release
//	tasks:
//	  - name: build
//	    type: http
//	    priority: 50
//	    critical: true
//	    timeout: 30s
//	    retry: {max_attempts: 3, backoff: exponential, initial_delay: 200ms}
//	    config:
//	      method: POST
//	      url: "{{ .Shared.ci_url }}/builds"
//	  - name: notify
//	    type: merge
//	    depends_on: [build]
type Manifest struct {
	Name  string         `yaml:"name"`
	Tasks []ManifestTask `yaml:"tasks"`
}

// ManifestTask — задача манифеста.
type ManifestTask struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Type        string         `yaml:"type"`
	DependsOn   []string       `yaml:"depends_on"`
	Priority    int            `yaml:"priority"`
	Critical    bool           `yaml:"critical"`
	Timeout     string         `yaml:"timeout"`
	Retry       *ManifestRetry `yaml:"retry"`
	Config      map[string]any `yaml:"config"`
}

// ManifestRetry — политика повторов в манифесте.
type ManifestRetry struct {
	MaxAttempts  int    `yaml:"max_attempts"`
	Backoff      string `yaml:"backoff"`
	InitialDelay string `yaml:"initial_delay"`
	MaxDelay     string `yaml:"max_delay"`
}

// ParseManifest декодирует манифест из YAML (или JSON).
func ParseManifest(data []byte) (*Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: payload is empty", ErrInvalidManifest)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidManifest, err)
	}
	if len(m.Tasks) == 0 {
		return nil, fmt.Errorf("%w: no tasks", ErrInvalidManifest)
	}
	return &m, nil
}

// LoadManifest читает манифест из файла.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read %s: %w", path, err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %s: %w", path, err)
	}
	return m, nil
}

// Decls строит объявления задач; handler'ы берутся из stepReg по type.
func (m *Manifest) Decls(stepReg *steps.Registry) ([]domain.TaskDecl, error) {
	decls := make([]domain.TaskDecl, 0, len(m.Tasks))
	for i := range m.Tasks {
		decl, err := m.Tasks[i].decl(stepReg)
		if err != nil {
			return nil, err
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

// Register регистрирует задачи манифеста одной группой.
func (m *Manifest) Register(reg *registry.Registry, stepReg *steps.Registry) error {
	decls, err := m.Decls(stepReg)
	if err != nil {
		return err
	}
	return reg.RegisterBatch(decls...)
}

// decl превращает задачу манифеста в TaskDecl.
func (t *ManifestTask) decl(stepReg *steps.Registry) (domain.TaskDecl, error) {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return domain.TaskDecl{}, fmt.Errorf("%w: task without name", ErrInvalidManifest)
	}
	if t.Type == "" {
		return domain.TaskDecl{}, fmt.Errorf("%w: task %s: type is required", ErrInvalidManifest, name)
	}

	timeout, err := parseDuration(name, "timeout", t.Timeout)
	if err != nil {
		return domain.TaskDecl{}, err
	}

	handler, err := stepReg.Handler(t.Type, t.Config, timeout)
	if err != nil {
		return domain.TaskDecl{}, fmt.Errorf("task %s: %w", name, err)
	}

	retry, err := t.retryPolicy(name)
	if err != nil {
		return domain.TaskDecl{}, err
	}

	return domain.TaskDecl{
		Name:         name,
		Description:  t.Description,
		Dependencies: t.DependsOn,
		Priority:     t.Priority,
		Critical:     t.Critical,
		Retry:        retry,
		Handler:      handler,
	}, nil
}

// retryPolicy строит RetryPolicy (nil — без повторов).
func (t *ManifestTask) retryPolicy(name string) (*domain.RetryPolicy, error) {
	if t.Retry == nil {
		return nil, nil
	}

	switch t.Retry.Backoff {
	case "", "fixed", "exponential":
	default:
		return nil, fmt.Errorf("%w: task %s: unknown backoff %q", ErrInvalidManifest, name, t.Retry.Backoff)
	}

	initial, err := parseDuration(name, "retry.initial_delay", t.Retry.InitialDelay)
	if err != nil {
		return nil, err
	}
	maxDelay, err := parseDuration(name, "retry.max_delay", t.Retry.MaxDelay)
	if err != nil {
		return nil, err
	}

	return &domain.RetryPolicy{
		MaxAttempts:  t.Retry.MaxAttempts,
		Backoff:      t.Retry.Backoff,
		InitialDelay: initial,
		MaxDelay:     maxDelay,
	}, nil
}

// parseDuration разбирает необязательную длительность.
func parseDuration(task, field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: task %s: bad %s %q", ErrInvalidManifest, task, field, raw)
	}
	return d, nil
}
