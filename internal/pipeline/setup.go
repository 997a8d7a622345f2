package pipeline

import (
	"fmt"

	"github.com/shaiso/Conductor/internal/registry"
	"github.com/shaiso/Conductor/internal/steps"
)

// NewRegistry создаёт реестр со встроенным пайплайном и, если задан
// manifestPath, задачами манифеста.
func NewRegistry(opts Options, manifestPath string) (*registry.Registry, error) {
	reg := registry.New()
	if err := RegisterBuiltin(reg, opts); err != nil {
		return nil, fmt.Errorf("register builtin pipeline: %w", err)
	}

	if manifestPath == "" {
		return reg, nil
	}

	m, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	if err := m.Register(reg, steps.DefaultRegistry()); err != nil {
		return nil, fmt.Errorf("register manifest %s: %w", manifestPath, err)
	}
	return reg, nil
}
