package render

import (
	"errors"
	"fmt"
	"slices"
)

// DiffResult says what a module must do to move from one id set to another.
// ToCreate and ToUpdate follow the new order, ToDestroy the old order.
type DiffResult struct {
	ToCreate  []string
	ToUpdate  []string
	ToDestroy []string
}

// Diff compares the ids a module rendered last time with the ids it must
// render now. Duplicate ids in newIDs are handled once.
func Diff(oldIDs, newIDs []string) DiffResult {
	old := make(map[string]bool, len(oldIDs))
	for _, id := range oldIDs {
		old[id] = true
	}
	seen := make(map[string]bool, len(newIDs))

	var res DiffResult
	for _, id := range newIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if old[id] {
			res.ToUpdate = append(res.ToUpdate, id)
		} else {
			res.ToCreate = append(res.ToCreate, id)
		}
	}
	for _, id := range oldIDs {
		if !seen[id] {
			res.ToDestroy = append(res.ToDestroy, id)
		}
	}
	return res
}

// Hooks are a module's per-id reconciliation callbacks. Update must leave
// the node untouched when it returns an error.
type Hooks struct {
	Create  func(id string) (*Node, error)
	Update  func(id string, n *Node) error
	Destroy func(id string, n *Node)
}

// NodeMap is a module's ledger of the nodes it owns, keyed by element or
// edge id.
type NodeMap struct {
	nodes map[string]*Node
	order []string
}

func NewNodeMap() *NodeMap {
	return &NodeMap{nodes: make(map[string]*Node)}
}

func (m *NodeMap) Get(id string) (*Node, bool) {
	n, ok := m.nodes[id]
	return n, ok
}

func (m *NodeMap) Len() int {
	return len(m.nodes)
}

// Keys returns the ids in the order they were last reconciled.
func (m *NodeMap) Keys() []string {
	return slices.Clone(m.order)
}

// Reconcile brings the map in line with ids. Destroys run first, then
// updates and creates in ids order. A failing or panicking hook affects only
// its own id: a failed create leaves no entry, a failed update keeps the
// existing node. The errors are returned joined.
func (m *NodeMap) Reconcile(ids []string, h Hooks) (DiffResult, error) {
	diff := Diff(m.order, ids)
	var errs []error

	for _, id := range diff.ToDestroy {
		n := m.nodes[id]
		delete(m.nodes, id)
		if h.Destroy != nil {
			if err := guard(id, func() error { h.Destroy(id, n); return nil }); err != nil {
				errs = append(errs, err)
			}
		}
		if n != nil {
			n.Destroy()
		}
	}

	order := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		if n, ok := m.nodes[id]; ok {
			if err := guard(id, func() error { return h.Update(id, n) }); err != nil {
				errs = append(errs, err)
			}
			order = append(order, id)
			continue
		}
		var created *Node
		err := guard(id, func() error {
			n, err := h.Create(id)
			created = n
			return err
		})
		if err != nil {
			errs = append(errs, err)
			if created != nil {
				created.Destroy()
			}
			continue
		}
		if created == nil {
			continue
		}
		m.nodes[id] = created
		order = append(order, id)
	}
	m.order = order
	return diff, errors.Join(errs...)
}

// Clear destroys every node and empties the map.
func (m *NodeMap) Clear(destroy func(id string, n *Node)) {
	for _, id := range m.order {
		n := m.nodes[id]
		if destroy != nil {
			_ = guard(id, func() error { destroy(id, n); return nil })
		}
		if n != nil {
			n.Destroy()
		}
	}
	clear(m.nodes)
	m.order = nil
}

func guard(id string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", id, r)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	return nil
}
