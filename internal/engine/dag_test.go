package engine

import (
	"testing"

	"github.com/shaiso/Conductor/internal/domain"
)

func mustResolve(t *testing.T, catalog Catalog, names ...string) []*domain.TaskDecl {
	t.Helper()
	order, err := Resolve(catalog, names)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return order
}

func nodeIDs(nodes []*Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}

func TestBuildDAG_Diamond(t *testing.T) {
	// A → B → D
	// A → C → D
	catalog := catalogOf(
		task("A", 0),
		task("B", 0, "A"),
		task("C", 0, "A"),
		task("D", 0, "B", "C"),
	)
	dag := BuildDAG(mustResolve(t, catalog, "D"))

	if dag.Size() != 4 {
		t.Errorf("expected 4 nodes, got %d", dag.Size())
	}

	roots := dag.RootNodes()
	if len(roots) != 1 || roots[0].ID != "A" {
		t.Errorf("expected single root A, got %v", nodeIDs(roots))
	}

	nodeD := dag.GetNode("D")
	if len(nodeD.DependsOn) != 2 {
		t.Errorf("node D should have 2 dependencies, got %d", len(nodeD.DependsOn))
	}

	nodeA := dag.GetNode("A")
	if len(nodeA.Dependents) != 2 {
		t.Errorf("node A should have 2 dependents, got %d", len(nodeA.Dependents))
	}

	for i, node := range dag.Order {
		if node.Index != i {
			t.Errorf("node %s: expected index %d, got %d", node.ID, i, node.Index)
		}
	}
}

func TestDAG_Descendants(t *testing.T) {
	catalog := catalogOf(
		task("A", 0),
		task("B", 0, "A"),
		task("C", 0, "B"),
		task("X", 0),
		task("Y", 0, "X", "C"),
	)
	dag := BuildDAG(mustResolve(t, catalog, "Y"))

	desc := nodeIDs(dag.Descendants("B"))
	if len(desc) != 2 || desc[0] != "C" || desc[1] != "Y" {
		t.Errorf("expected [C Y], got %v", desc)
	}

	if got := dag.Descendants("Y"); len(got) != 0 {
		t.Errorf("leaf should have no descendants, got %v", nodeIDs(got))
	}
	if got := dag.Descendants("missing"); got != nil {
		t.Errorf("unknown node should return nil, got %v", nodeIDs(got))
	}
}

func TestDAG_GetReadyNodes(t *testing.T) {
	catalog := catalogOf(
		task("A", 0),
		task("B", 0, "A"),
		task("C", 0, "A"),
		task("D", 0, "B", "C"),
	)
	dag := BuildDAG(mustResolve(t, catalog, "D"))

	ready := dag.GetReadyNodes(map[string]bool{}, map[string]bool{})
	if len(ready) != 1 || ready[0].ID != "A" {
		t.Fatalf("expected [A] ready, got %v", nodeIDs(ready))
	}

	done := map[string]bool{"A": true}
	ready = dag.GetReadyNodes(done, map[string]bool{"B": true})
	if len(ready) != 1 || ready[0].ID != "C" {
		t.Errorf("expected [C] ready, got %v", nodeIDs(ready))
	}

	done["B"] = true
	done["C"] = true
	ready = dag.GetReadyNodes(done, nil)
	if len(ready) != 1 || ready[0].ID != "D" {
		t.Errorf("expected [D] ready, got %v", nodeIDs(ready))
	}

	if dag.IsComplete(done) {
		t.Error("DAG should not be complete before D")
	}
	done["D"] = true
	if !dag.IsComplete(done) {
		t.Error("DAG should be complete")
	}
}
