package registry

import (
	"strings"
	"sync"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/engine"
)

// Registry — реестр объявлений задач.
//
// Хранит объявления в порядке регистрации и проверяет существование
// зависимостей. Ничего не выполняет. Потокобезопасен; после
// инициализации используется только на чтение.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*domain.TaskDecl
	order []string
}

// New создаёт пустой реестр.
func New() *Registry {
	return &Registry{
		tasks: make(map[string]*domain.TaskDecl),
	}
}

// Register регистрирует задачу.
//
// Все зависимости должны быть зарегистрированы раньше (без forward references).
// Возвращает DuplicateTaskError, UnknownDependencyError или InvalidTaskError.
func (r *Registry) Register(decl domain.TaskDecl) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := validateDecl(&decl); err != nil {
		return err
	}
	if _, exists := r.tasks[decl.Name]; exists {
		return &DuplicateTaskError{Name: decl.Name}
	}
	for _, dep := range decl.Dependencies {
		if _, exists := r.tasks[dep]; !exists {
			return &UnknownDependencyError{Task: decl.Name, Dependency: dep}
		}
	}

	r.add(decl)
	return nil
}

// RegisterBatch регистрирует группу задач атомарно.
//
// Внутри группы зависимости могут ссылаться друг на друга в любом порядке.
// Группа проверяется на циклы: при ошибке ничего не регистрируется,
// а цикл возвращается как *engine.CyclicDependencyError.
func (r *Registry) RegisterBatch(decls ...domain.TaskDecl) error {
	if len(decls) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	batch := make(map[string]*domain.TaskDecl, len(decls))
	names := make([]string, 0, len(decls))
	for i := range decls {
		decl := &decls[i]
		if err := validateDecl(decl); err != nil {
			return err
		}
		if _, exists := r.tasks[decl.Name]; exists {
			return &DuplicateTaskError{Name: decl.Name}
		}
		if _, exists := batch[decl.Name]; exists {
			return &DuplicateTaskError{Name: decl.Name}
		}
		batch[decl.Name] = decl
		names = append(names, decl.Name)
	}

	for _, decl := range batch {
		for _, dep := range decl.Dependencies {
			_, inBatch := batch[dep]
			_, registered := r.tasks[dep]
			if !inBatch && !registered {
				return &UnknownDependencyError{Task: decl.Name, Dependency: dep}
			}
		}
	}

	// Проверяем циклы на объединении реестра и группы
	lookup := engine.CatalogFunc(func(name string) (*domain.TaskDecl, error) {
		if decl, ok := batch[name]; ok {
			return decl, nil
		}
		if decl, ok := r.tasks[name]; ok {
			return decl, nil
		}
		return nil, &UnknownTaskError{Name: name}
	})
	if _, err := engine.Resolve(lookup, names); err != nil {
		return err
	}

	// Регистрируем в порядке группы
	for _, name := range names {
		r.add(*batch[name])
	}
	return nil
}

// Get возвращает объявление задачи или UnknownTaskError.
func (r *Registry) Get(name string) (*domain.TaskDecl, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	decl, exists := r.tasks[name]
	if !exists {
		return nil, &UnknownTaskError{Name: name}
	}
	return decl, nil
}

// Has проверяет, зарегистрирована ли задача.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.tasks[name]
	return exists
}

// ListAll возвращает объявления в порядке регистрации.
func (r *Registry) ListAll() []*domain.TaskDecl {
	r.mu.RLock()
	defer r.mu.RUnlock()

	decls := make([]*domain.TaskDecl, 0, len(r.order))
	for _, name := range r.order {
		decls = append(decls, r.tasks[name])
	}
	return decls
}

// Names возвращает имена задач в порядке регистрации.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len возвращает количество зарегистрированных задач.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// add сохраняет копию объявления. Вызывается под mu.
func (r *Registry) add(decl domain.TaskDecl) {
	deps := make([]string, len(decl.Dependencies))
	copy(deps, decl.Dependencies)
	decl.Dependencies = deps

	if decl.Retry != nil {
		retry := *decl.Retry
		decl.Retry = &retry
	}

	r.tasks[decl.Name] = &decl
	r.order = append(r.order, decl.Name)
}

// validateDecl проверяет обязательные поля объявления.
func validateDecl(decl *domain.TaskDecl) error {
	if strings.TrimSpace(decl.Name) == "" {
		return &InvalidTaskError{Message: "task has empty name"}
	}
	if decl.Handler == nil {
		return &InvalidTaskError{Name: decl.Name, Message: "task has no handler"}
	}

	seen := make(map[string]bool, len(decl.Dependencies))
	for _, dep := range decl.Dependencies {
		if dep == decl.Name {
			return &InvalidTaskError{Name: decl.Name, Message: "task depends on itself"}
		}
		if seen[dep] {
			return &InvalidTaskError{Name: decl.Name, Message: "duplicate dependency " + dep}
		}
		seen[dep] = true
	}
	return nil
}
