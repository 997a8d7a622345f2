package engine

import (
	"sort"

	"github.com/shaiso/Conductor/internal/domain"
)

// Catalog — источник объявлений задач для резолвера.
//
// registry.Registry реализует Catalog.
type Catalog interface {
	Get(name string) (*domain.TaskDecl, error)
}

// CatalogFunc — адаптер функции к Catalog.
type CatalogFunc func(name string) (*domain.TaskDecl, error)

// Get вызывает f(name).
func (f CatalogFunc) Get(name string) (*domain.TaskDecl, error) {
	return f(name)
}

// visitState — состояние узла при обходе в глубину.
type visitState int

const (
	unvisited visitState = iota
	visiting
	visited
)

// Resolve строит порядок выполнения для запрошенных задач.
//
// Порядок содержит запрошенные задачи и все их транзитивные зависимости,
// каждую ровно один раз; любая зависимость стоит раньше зависимой задачи.
//
// Обход в глубину с post-order: запрошенные имена (и зависимости каждой
// задачи) обходятся по убыванию приоритета, при равенстве — в исходном
// порядке. Функция чистая и детерминированная.
//
// Ошибки: ErrEmptyRequest, ошибка catalog.Get для неизвестной задачи,
// *CyclicDependencyError.
func Resolve(catalog Catalog, names []string) ([]*domain.TaskDecl, error) {
	if len(names) == 0 {
		return nil, ErrEmptyRequest
	}

	r := &resolver{
		catalog: catalog,
		decls:   make(map[string]*domain.TaskDecl),
		state:   make(map[string]visitState),
	}

	roots, err := r.lookupAll(names)
	if err != nil {
		return nil, err
	}

	for _, decl := range byPriority(roots) {
		if err := r.visit(decl); err != nil {
			return nil, err
		}
	}

	return r.order, nil
}

// Names возвращает имена задач порядка.
func Names(order []*domain.TaskDecl) []string {
	names := make([]string, len(order))
	for i, decl := range order {
		names[i] = decl.Name
	}
	return names
}

// resolver — состояние одного вызова Resolve.
type resolver struct {
	catalog Catalog
	decls   map[string]*domain.TaskDecl
	state   map[string]visitState

	// path — текущий путь обхода (для восстановления цикла).
	path []string

	order []*domain.TaskDecl
}

// lookup возвращает объявление задачи, кэшируя ответы каталога.
func (r *resolver) lookup(name string) (*domain.TaskDecl, error) {
	if decl, ok := r.decls[name]; ok {
		return decl, nil
	}
	decl, err := r.catalog.Get(name)
	if err != nil {
		return nil, err
	}
	r.decls[name] = decl
	return decl, nil
}

// lookupAll возвращает объявления для списка имён, повторы отбрасываются.
func (r *resolver) lookupAll(names []string) ([]*domain.TaskDecl, error) {
	seen := make(map[string]bool, len(names))
	decls := make([]*domain.TaskDecl, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		decl, err := r.lookup(name)
		if err != nil {
			return nil, err
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

// visit обходит задачу и её зависимости, добавляя их в порядок.
func (r *resolver) visit(decl *domain.TaskDecl) error {
	switch r.state[decl.Name] {
	case visited:
		return nil
	case visiting:
		return r.cycleFrom(decl.Name)
	}

	r.state[decl.Name] = visiting
	r.path = append(r.path, decl.Name)

	deps, err := r.lookupAll(decl.Dependencies)
	if err != nil {
		return err
	}
	for _, dep := range byPriority(deps) {
		if err := r.visit(dep); err != nil {
			return err
		}
	}

	r.path = r.path[:len(r.path)-1]
	r.state[decl.Name] = visited
	r.order = append(r.order, decl)
	return nil
}

// cycleFrom собирает цикл из текущего пути, начиная с name.
func (r *resolver) cycleFrom(name string) error {
	start := 0
	for i, n := range r.path {
		if n == name {
			start = i
			break
		}
	}

	cycle := make([]string, 0, len(r.path)-start+1)
	cycle = append(cycle, r.path[start:]...)
	cycle = append(cycle, name)
	return &CyclicDependencyError{Cycle: cycle}
}

// byPriority возвращает копию списка, стабильно отсортированную
// по убыванию приоритета.
func byPriority(decls []*domain.TaskDecl) []*domain.TaskDecl {
	sorted := make([]*domain.TaskDecl, len(decls))
	copy(sorted, decls)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return sorted
}
