// Package store is an in-memory canvas state store. Every mutation builds a
// new immutable snapshot and notifies subscribers with it.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geometry"
	"github.com/inamate/canvas/internal/routing"
	"github.com/inamate/canvas/internal/typeid"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidSize    = errors.New("width and height must be positive")
	ErrSelfConnection = errors.New("edge cannot connect an element to itself")
	ErrNoDraft        = errors.New("no edge draft in progress")
	ErrDuplicateID    = errors.New("duplicate id")
	ErrInvalidGrid    = fmt.Errorf("table rows and cols must be between 1 and %d", MaxTableSide)
)

// MaxTableSide caps table rows and cols so one table stays cheap to draw on
// every sync.
const MaxTableSide = 200

// Listener receives each committed snapshot.
type Listener func(snap *document.Snapshot)

type subscription struct {
	id int
	fn Listener
}

// Memory holds the authoritative canvas state.
type Memory struct {
	mu          sync.Mutex
	snap        *document.Snapshot
	router      *routing.Router
	log         *slog.Logger
	subs        []subscription
	nextSub     int
	defaultMode document.RoutingMode
}

type Option func(*Memory)

// WithRouter sets the router used to recompute edge geometry.
func WithRouter(r *routing.Router) Option {
	return func(m *Memory) { m.router = r }
}

// WithLogger sets the store's logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Memory) { m.log = log }
}

// WithDefaultMode sets the routing mode of edges committed from a draft.
func WithDefaultMode(mode document.RoutingMode) Option {
	return func(m *Memory) { m.defaultMode = mode }
}

// NewMemory creates an empty store.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		snap:        document.EmptySnapshot(),
		defaultMode: document.RoutingOrthogonal,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.router == nil {
		m.router = routing.NewRouter(routing.DefaultOptions(), m.log)
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	return m
}

// Snapshot returns the current snapshot. Callers must not modify it.
func (m *Memory) Snapshot() *document.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Subscribe registers fn for every future commit and returns a function
// that removes it.
func (m *Memory) Subscribe(fn func(*document.Snapshot)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSub++
	id := m.nextSub
	m.subs = append(m.subs, subscription{id: id, fn: fn})
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.subs = slices.DeleteFunc(m.subs, func(s subscription) bool { return s.id == id })
	}
}

// mutate runs fn against a copy of the current snapshot. If fn reports a
// change the copy is committed, even when fn also returns an error, so that
// rejected operations can still reset transient state such as the draft.
func (m *Memory) mutate(fn func(next *document.Snapshot) (bool, error)) error {
	m.mu.Lock()
	next := cloneSnapshot(m.snap)
	changed, err := fn(next)
	if !changed {
		m.mu.Unlock()
		return err
	}
	next.Version = m.snap.Version + 1
	m.snap = next
	subs := slices.Clone(m.subs)
	m.mu.Unlock()

	for _, s := range subs {
		s.fn(next)
	}
	return err
}

func cloneSnapshot(s *document.Snapshot) *document.Snapshot {
	next := &document.Snapshot{
		Version:  s.Version,
		Elements: make(map[string]document.Element, len(s.Elements)),
		Order:    slices.Clone(s.Order),
		Selected: make(map[string]bool, len(s.Selected)),
		Viewport: s.Viewport,
		Edges:    make(map[string]document.Edge, len(s.Edges)),
		EdgeIDs:  slices.Clone(s.EdgeIDs),
		Draft:    s.Draft,
	}
	for k, v := range s.Elements {
		next.Elements[k] = v
	}
	for k, v := range s.Selected {
		next.Selected[k] = v
	}
	for k, v := range s.Edges {
		next.Edges[k] = v
	}
	return next
}

func validateElement(el document.Element) error {
	b := el.Header()
	if !(b.Width > 0) || !(b.Height > 0) {
		return fmt.Errorf("element %s (%gx%g): %w", b.ID, b.Width, b.Height, ErrInvalidSize)
	}
	if t, ok := el.(document.Table); ok {
		if t.Rows < 1 || t.Cols < 1 || t.Rows > MaxTableSide || t.Cols > MaxTableSide {
			return fmt.Errorf("table %s (%dx%d): %w", b.ID, t.Rows, t.Cols, ErrInvalidGrid)
		}
	}
	return nil
}

// AddElement inserts el on top of the z-order. An empty id is replaced with
// a generated one; the final id is returned.
func (m *Memory) AddElement(el document.Element) (string, error) {
	b := el.Header()
	if b.ID == "" {
		b.ID = typeid.NewElementID()
		el = document.WithBase(el, b)
	}
	if err := validateElement(el); err != nil {
		return "", err
	}
	el = document.Clone(el)

	err := m.mutate(func(s *document.Snapshot) (bool, error) {
		if _, exists := s.Elements[b.ID]; exists {
			return false, fmt.Errorf("element %s: %w", b.ID, ErrDuplicateID)
		}
		s.Elements[b.ID] = el
		s.Order = append(s.Order, b.ID)
		return true, nil
	})
	if err != nil {
		return "", err
	}
	return b.ID, nil
}

// UpdateElement applies patch to one element and reroutes attached edges
// when its geometry changed.
func (m *Memory) UpdateElement(id string, patch document.Patch) error {
	return m.mutate(func(s *document.Snapshot) (bool, error) {
		el, ok := s.Elements[id]
		if !ok {
			return false, fmt.Errorf("element %s: %w", id, ErrNotFound)
		}
		if patch.IsEmpty() {
			return false, nil
		}
		next := patch.Apply(el)
		if err := validateElement(next); err != nil {
			return false, err
		}
		s.Elements[id] = next
		if patch.MovesGeometry() {
			m.rerouteAttached(s, id)
		}
		return true, nil
	})
}

// MoveElements translates several elements in one commit.
func (m *Memory) MoveElements(ids []string, dx, dy float64) error {
	if dx == 0 && dy == 0 {
		return nil
	}
	return m.mutate(func(s *document.Snapshot) (bool, error) {
		var moved []string
		for _, id := range ids {
			el, ok := s.Elements[id]
			if !ok {
				continue
			}
			b := el.Header()
			b.X += dx
			b.Y += dy
			s.Elements[id] = document.WithBase(el, b)
			moved = append(moved, id)
		}
		if len(moved) == 0 {
			return false, fmt.Errorf("move %v: %w", ids, ErrNotFound)
		}
		m.rerouteAttached(s, moved...)
		return true, nil
	})
}

// rerouteAttached recomputes every edge touching one of ids.
func (m *Memory) rerouteAttached(s *document.Snapshot, ids ...string) {
	for _, edgeID := range s.EdgeIDs {
		edge := s.Edges[edgeID]
		touched := false
		for _, id := range ids {
			if edge.Touches(id) {
				touched = true
				break
			}
		}
		if !touched {
			continue
		}
		m.reroute(s, edge)
	}
}

func (m *Memory) reroute(s *document.Snapshot, edge document.Edge) {
	updated, err := m.router.UpdateEdgeGeometry(edge, s.Elements[edge.Source.ElementID], s.Elements[edge.Target.ElementID])
	if err != nil {
		m.log.Error("reroute edge", "edge", edge.ID, "error", err)
		return
	}
	s.Edges[edge.ID] = updated
}

// DeleteElement removes an element, its selection and every attached edge.
func (m *Memory) DeleteElement(id string) error {
	return m.mutate(func(s *document.Snapshot) (bool, error) {
		if _, ok := s.Elements[id]; !ok {
			return false, fmt.Errorf("element %s: %w", id, ErrNotFound)
		}
		delete(s.Elements, id)
		delete(s.Selected, id)
		s.Order = slices.DeleteFunc(s.Order, func(v string) bool { return v == id })

		s.EdgeIDs = slices.DeleteFunc(s.EdgeIDs, func(edgeID string) bool {
			if s.Edges[edgeID].Touches(id) {
				delete(s.Edges, edgeID)
				return true
			}
			return false
		})
		if s.Draft != nil && s.Draft.From.ElementID == id {
			s.Draft = nil
		}
		return true, nil
	})
}

// SelectElement selects id. With multi the element's selection is toggled
// and the rest is kept; otherwise the selection is replaced. An empty id
// without multi clears the selection.
func (m *Memory) SelectElement(id string, multi bool) error {
	return m.mutate(func(s *document.Snapshot) (bool, error) {
		if id == "" {
			if multi || len(s.Selected) == 0 {
				return false, nil
			}
			s.Selected = map[string]bool{}
			return true, nil
		}
		if _, ok := s.Elements[id]; !ok {
			return false, fmt.Errorf("element %s: %w", id, ErrNotFound)
		}
		if multi {
			if s.Selected[id] {
				delete(s.Selected, id)
			} else {
				s.Selected[id] = true
			}
			return true, nil
		}
		if len(s.Selected) == 1 && s.Selected[id] {
			return false, nil
		}
		s.Selected = map[string]bool{id: true}
		return true, nil
	})
}

// ClearSelection deselects everything.
func (m *Memory) ClearSelection() {
	_ = m.SelectElement("", false)
}

// SetViewport replaces the viewport. Non-positive scales are rejected.
func (m *Memory) SetViewport(v document.Viewport) error {
	if !(v.Scale > 0) {
		return fmt.Errorf("viewport scale %g: %w", v.Scale, ErrInvalidSize)
	}
	return m.mutate(func(s *document.Snapshot) (bool, error) {
		if s.Viewport == v {
			return false, nil
		}
		s.Viewport = v
		return true, nil
	})
}

// StartEdgeDraft begins dragging a connector out of from.
func (m *Memory) StartEdgeDraft(from document.Endpoint, pointer geometry.Point) error {
	return m.mutate(func(s *document.Snapshot) (bool, error) {
		if _, ok := s.Elements[from.ElementID]; !ok {
			return false, fmt.Errorf("draft source %s: %w", from.ElementID, ErrNotFound)
		}
		s.Draft = &document.Draft{From: from, Pointer: pointer}
		return true, nil
	})
}

// UpdateEdgeDraftPointer moves the loose end of the draft.
func (m *Memory) UpdateEdgeDraftPointer(p geometry.Point) error {
	return m.mutate(func(s *document.Snapshot) (bool, error) {
		if s.Draft == nil {
			return false, ErrNoDraft
		}
		if s.Draft.Pointer == p {
			return false, nil
		}
		d := *s.Draft
		d.Pointer = p
		s.Draft = &d
		return true, nil
	})
}

// UpdateEdgeDraftSnap sets or clears (nil) the port the draft would attach
// to if released now.
func (m *Memory) UpdateEdgeDraftSnap(target *document.Endpoint) error {
	return m.mutate(func(s *document.Snapshot) (bool, error) {
		if s.Draft == nil {
			return false, ErrNoDraft
		}
		if sameEndpoint(s.Draft.SnapTarget, target) {
			return false, nil
		}
		d := *s.Draft
		if target != nil {
			t := *target
			d.SnapTarget = &t
		} else {
			d.SnapTarget = nil
		}
		s.Draft = &d
		return true, nil
	})
}

func sameEndpoint(a, b *document.Endpoint) bool {
	switch {
	case a == nil || b == nil:
		return a == b
	case a.ElementID != b.ElementID || a.Port != b.Port:
		return false
	case a.Custom == nil || b.Custom == nil:
		return a.Custom == b.Custom
	default:
		return *a.Custom == *b.Custom
	}
}

// CommitEdgeDraftTo turns the draft into an edge ending at target. The
// draft is cleared whether or not the edge is accepted.
func (m *Memory) CommitEdgeDraftTo(target document.Endpoint) (string, error) {
	var id string
	err := m.mutate(func(s *document.Snapshot) (bool, error) {
		if s.Draft == nil {
			return false, ErrNoDraft
		}
		from := s.Draft.From
		s.Draft = nil

		edge := document.Edge{
			ID:     typeid.NewEdgeID(),
			Source: from,
			Target: target,
			Mode:   m.defaultMode,
			Style:  document.EdgeStyle{Stroke: "#333333", StrokeWidth: 2, Arrowhead: true},
		}
		if err := m.insertEdge(s, edge); err != nil {
			return true, err
		}
		id = edge.ID
		return true, nil
	})
	return id, err
}

// CancelEdgeDraft discards the draft, if any.
func (m *Memory) CancelEdgeDraft() {
	_ = m.mutate(func(s *document.Snapshot) (bool, error) {
		if s.Draft == nil {
			return false, nil
		}
		s.Draft = nil
		return true, nil
	})
}

// AddEdge inserts a fully specified edge. Points are always recomputed.
func (m *Memory) AddEdge(edge document.Edge) (string, error) {
	if edge.ID == "" {
		edge.ID = typeid.NewEdgeID()
	}
	err := m.mutate(func(s *document.Snapshot) (bool, error) {
		if err := m.insertEdge(s, edge); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return "", err
	}
	return edge.ID, nil
}

func (m *Memory) insertEdge(s *document.Snapshot, edge document.Edge) error {
	if edge.Source.ElementID == edge.Target.ElementID {
		return fmt.Errorf("edge %s on %s: %w", edge.ID, edge.Source.ElementID, ErrSelfConnection)
	}
	if _, exists := s.Edges[edge.ID]; exists {
		return fmt.Errorf("edge %s: %w", edge.ID, ErrDuplicateID)
	}
	src, ok := s.Elements[edge.Source.ElementID]
	if !ok {
		return fmt.Errorf("edge source %s: %w", edge.Source.ElementID, ErrNotFound)
	}
	dst, ok := s.Elements[edge.Target.ElementID]
	if !ok {
		return fmt.Errorf("edge target %s: %w", edge.Target.ElementID, ErrNotFound)
	}
	routed, err := m.router.UpdateEdgeGeometry(edge, src, dst)
	if err != nil {
		return err
	}
	s.Edges[edge.ID] = routed
	s.EdgeIDs = append(s.EdgeIDs, edge.ID)
	return nil
}

// UpdateEdge changes an edge's mode, style or label.
func (m *Memory) UpdateEdge(id string, patch document.EdgePatch) error {
	return m.mutate(func(s *document.Snapshot) (bool, error) {
		edge, ok := s.Edges[id]
		if !ok {
			return false, fmt.Errorf("edge %s: %w", id, ErrNotFound)
		}
		if patch.Style != nil {
			edge.Style = *patch.Style
		}
		if patch.Label != nil {
			edge.Label = *patch.Label
		}
		rerouted := patch.Mode != nil && *patch.Mode != edge.Mode
		if patch.Mode != nil {
			edge.Mode = *patch.Mode
		}
		s.Edges[id] = edge
		if rerouted {
			m.reroute(s, edge)
		}
		return true, nil
	})
}

// DeleteEdge removes an edge.
func (m *Memory) DeleteEdge(id string) error {
	return m.mutate(func(s *document.Snapshot) (bool, error) {
		if _, ok := s.Edges[id]; !ok {
			return false, fmt.Errorf("edge %s: %w", id, ErrNotFound)
		}
		delete(s.Edges, id)
		s.EdgeIDs = slices.DeleteFunc(s.EdgeIDs, func(v string) bool { return v == id })
		return true, nil
	})
}

// Load replaces the whole state with board. Invalid elements and edges are
// skipped and reported together; everything valid is kept.
func (m *Memory) Load(board *document.Board) error {
	var errs []error
	next := document.EmptySnapshot()
	if board.Viewport.Scale > 0 {
		next.Viewport = board.Viewport
	}

	for _, node := range board.Elements {
		el, err := node.Decode()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		b := el.Header()
		if b.ID == "" {
			b.ID = typeid.NewElementID()
			el = document.WithBase(el, b)
		}
		if err := validateElement(el); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, exists := next.Elements[b.ID]; exists {
			errs = append(errs, fmt.Errorf("element %s: %w", b.ID, ErrDuplicateID))
			continue
		}
		next.Elements[b.ID] = el
		next.Order = append(next.Order, b.ID)
	}
	for _, edge := range board.Edges {
		if edge.ID == "" {
			edge.ID = typeid.NewEdgeID()
		}
		if err := m.insertEdge(next, edge); err != nil {
			errs = append(errs, err)
		}
	}

	m.mu.Lock()
	next.Version = m.snap.Version + 1
	m.snap = next
	subs := slices.Clone(m.subs)
	m.mu.Unlock()

	for _, s := range subs {
		s.fn(next)
	}
	return errors.Join(errs...)
}

// Board serializes the current state.
func (m *Memory) Board() (*document.Board, error) {
	return document.BoardFromSnapshot(m.Snapshot())
}
