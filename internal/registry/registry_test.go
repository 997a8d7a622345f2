package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/engine"
)

func noop(ctx context.Context, in *domain.HandlerInput) (domain.Outputs, error) {
	return domain.Outputs{}, nil
}

func decl(name string, deps ...string) domain.TaskDecl {
	return domain.TaskDecl{Name: name, Dependencies: deps, Handler: noop}
}

func TestRegister(t *testing.T) {
	r := New()

	if err := r.Register(decl("analyzer")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register(decl("planner", "analyzer")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.Len() != 2 {
		t.Errorf("expected 2 tasks, got %d", r.Len())
	}
	if !r.Has("planner") {
		t.Error("planner should be registered")
	}

	got, err := r.Get("planner")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.DependsOn("analyzer") {
		t.Error("planner should depend on analyzer")
	}
}

func TestRegister_Duplicate(t *testing.T) {
	r := New()
	_ = r.Register(decl("a"))

	err := r.Register(decl("a"))
	if !errors.Is(err, ErrDuplicateTask) {
		t.Fatalf("expected ErrDuplicateTask, got %v", err)
	}

	var dupErr *DuplicateTaskError
	if !errors.As(err, &dupErr) || dupErr.Name != "a" {
		t.Errorf("expected DuplicateTaskError for a, got %v", err)
	}
}

func TestRegister_UnknownDependency(t *testing.T) {
	r := New()

	err := r.Register(decl("planner", "analyzer"))
	if !errors.Is(err, ErrUnknownDependency) {
		t.Fatalf("expected ErrUnknownDependency, got %v", err)
	}

	var depErr *UnknownDependencyError
	if !errors.As(err, &depErr) {
		t.Fatalf("expected *UnknownDependencyError, got %T", err)
	}
	if depErr.Task != "planner" || depErr.Dependency != "analyzer" {
		t.Errorf("unexpected error fields: %+v", depErr)
	}
	if r.Len() != 0 {
		t.Error("failed registration must not add the task")
	}
}

func TestRegister_Invalid(t *testing.T) {
	tests := []struct {
		name string
		decl domain.TaskDecl
	}{
		{"empty name", domain.TaskDecl{Handler: noop}},
		{"nil handler", domain.TaskDecl{Name: "x"}},
		{"self dependency", decl("x", "x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Register(tt.decl)
			if !errors.Is(err, ErrInvalidTask) {
				t.Errorf("expected ErrInvalidTask, got %v", err)
			}
		})
	}
}

func TestRegister_DuplicateDependency(t *testing.T) {
	r := New()
	_ = r.Register(decl("a"))

	err := r.Register(decl("b", "a", "a"))
	if !errors.Is(err, ErrInvalidTask) {
		t.Errorf("expected ErrInvalidTask, got %v", err)
	}
}

func TestRegister_CopiesDeclaration(t *testing.T) {
	r := New()
	_ = r.Register(decl("a"))

	deps := []string{"a"}
	d := domain.TaskDecl{Name: "b", Dependencies: deps, Handler: noop}
	_ = r.Register(d)

	deps[0] = "mutated"

	got, _ := r.Get("b")
	if got.Dependencies[0] != "a" {
		t.Errorf("registry must keep its own copy, got %v", got.Dependencies)
	}
}

func TestGet_Unknown(t *testing.T) {
	_, err := New().Get("ghost")
	if !errors.Is(err, ErrUnknownTask) {
		t.Errorf("expected ErrUnknownTask, got %v", err)
	}
}

func TestListAll_InsertionOrder(t *testing.T) {
	r := New()
	for _, name := range []string{"c", "a", "b"} {
		if err := r.Register(decl(name)); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	all := r.ListAll()
	want := []string{"c", "a", "b"}
	for i, d := range all {
		if d.Name != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], d.Name)
		}
	}

	names := r.Names()
	names[0] = "mutated"
	if r.Names()[0] != "c" {
		t.Error("Names must return a copy")
	}
}

func TestRegisterBatch_ForwardReferences(t *testing.T) {
	r := New()

	err := r.RegisterBatch(
		decl("implementer", "planner"),
		decl("planner", "analyzer"),
		decl("analyzer"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	names := r.Names()
	if len(names) != 3 || names[0] != "implementer" {
		t.Errorf("batch should be registered in given order, got %v", names)
	}
}

func TestRegisterBatch_Cycle(t *testing.T) {
	r := New()

	err := r.RegisterBatch(decl("A", "B"), decl("B", "A"))
	if !errors.Is(err, engine.ErrCyclicDependency) {
		t.Fatalf("expected ErrCyclicDependency, got %v", err)
	}

	var cycleErr *engine.CyclicDependencyError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *engine.CyclicDependencyError, got %T", err)
	}
	if len(cycleErr.Members()) != 2 {
		t.Errorf("expected 2 cycle members, got %v", cycleErr.Cycle)
	}

	if r.Len() != 0 {
		t.Errorf("failed batch must not register anything, got %v", r.Names())
	}
}

func TestRegisterBatch_UnknownDependency(t *testing.T) {
	r := New()
	_ = r.Register(decl("base"))

	err := r.RegisterBatch(decl("x", "base"), decl("y", "nowhere"))
	if !errors.Is(err, ErrUnknownDependency) {
		t.Fatalf("expected ErrUnknownDependency, got %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("failed batch must not register anything, got %v", r.Names())
	}
}

func TestRegisterBatch_Duplicate(t *testing.T) {
	r := New()

	err := r.RegisterBatch(decl("x"), decl("x"))
	if !errors.Is(err, ErrDuplicateTask) {
		t.Errorf("expected ErrDuplicateTask, got %v", err)
	}
}

func TestRegistry_ImplementsCatalog(t *testing.T) {
	r := New()
	_ = r.RegisterBatch(decl("a"), decl("b", "a"))

	var catalog engine.Catalog = r
	order, err := engine.Resolve(catalog, []string{"b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0].Name != "a" {
		t.Errorf("unexpected order %v", engine.Names(order))
	}
}
