package engine

import "github.com/shaiso/Conductor/internal/domain"

// Node — узел в DAG задач.
type Node struct {
	// Decl — объявление задачи.
	Decl *domain.TaskDecl

	// ID — имя задачи.
	ID string

	// Index — позиция в разрешённом порядке.
	Index int

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла
	// (в разрешённом порядке).
	Dependents []*Node
}

// DAG — граф зависимостей поверх разрешённого порядка.
//
// Используется конкурентным планировщиком: по нему находятся
// зависимые задачи при завершении предка.
type DAG struct {
	// Nodes — все узлы графа (имя → Node).
	Nodes map[string]*Node

	// Order — узлы в разрешённом порядке.
	Order []*Node
}

// BuildDAG строит DAG из результата Resolve.
//
// Зависимости, которых нет в order, игнорируются: Resolve
// всегда возвращает замкнутый порядок.
func BuildDAG(order []*domain.TaskDecl) *DAG {
	dag := &DAG{
		Nodes: make(map[string]*Node, len(order)),
		Order: make([]*Node, 0, len(order)),
	}

	for i, decl := range order {
		node := &Node{Decl: decl, ID: decl.Name, Index: i}
		dag.Nodes[decl.Name] = node
		dag.Order = append(dag.Order, node)
	}

	// order топологический, поэтому Dependents заполняются
	// в разрешённом порядке
	for _, node := range dag.Order {
		for _, depID := range node.Decl.Dependencies {
			dep, exists := dag.Nodes[depID]
			if !exists {
				continue
			}
			node.DependsOn = append(node.DependsOn, dep)
			dep.Dependents = append(dep.Dependents, node)
		}
	}

	return dag
}

// GetNode возвращает узел по имени.
func (d *DAG) GetNode(id string) *Node {
	return d.Nodes[id]
}

// Size возвращает количество узлов.
func (d *DAG) Size() int {
	return len(d.Nodes)
}

// RootNodes возвращает узлы без зависимостей в разрешённом порядке.
func (d *DAG) RootNodes() []*Node {
	roots := make([]*Node, 0)
	for _, node := range d.Order {
		if len(node.DependsOn) == 0 {
			roots = append(roots, node)
		}
	}
	return roots
}

// Descendants возвращает всех транзитивных потомков узла
// в разрешённом порядке.
func (d *DAG) Descendants(id string) []*Node {
	start, exists := d.Nodes[id]
	if !exists {
		return nil
	}

	marked := make(map[string]bool)
	stack := []*Node{start}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, dep := range node.Dependents {
			if !marked[dep.ID] {
				marked[dep.ID] = true
				stack = append(stack, dep)
			}
		}
	}

	result := make([]*Node, 0, len(marked))
	for _, node := range d.Order {
		if marked[node.ID] {
			result = append(result, node)
		}
	}
	return result
}

// GetReadyNodes возвращает узлы, готовые к решению планировщика.
//
// Узел готов, если он ещё не в done и не в running, а все его
// зависимости уже в done. Результат — в разрешённом порядке.
func (d *DAG) GetReadyNodes(done, running map[string]bool) []*Node {
	ready := make([]*Node, 0)
	for _, node := range d.Order {
		if done[node.ID] || running[node.ID] {
			continue
		}

		allDepsDone := true
		for _, dep := range node.DependsOn {
			if !done[dep.ID] {
				allDepsDone = false
				break
			}
		}
		if allDepsDone {
			ready = append(ready, node)
		}
	}
	return ready
}

// IsComplete проверяет, все ли узлы в done.
func (d *DAG) IsComplete(done map[string]bool) bool {
	for _, node := range d.Order {
		if !done[node.ID] {
			return false
		}
	}
	return true
}
