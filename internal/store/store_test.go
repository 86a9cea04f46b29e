package store

import (
	"errors"
	"testing"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geometry"
)

func rect(id string, x, y, w, h float64) document.Shape {
	return document.Shape{
		Base:  document.Base{ID: id, X: x, Y: y, Width: w, Height: h},
		Shape: document.ShapeRect,
	}
}

func newTestStore(t *testing.T, els ...document.Element) *Memory {
	t.Helper()
	m := NewMemory()
	for _, el := range els {
		if _, err := m.AddElement(el); err != nil {
			t.Fatalf("AddElement(%s): %v", el.Header().ID, err)
		}
	}
	return m
}

func TestAddElement_RejectsInvalidSize(t *testing.T) {
	m := NewMemory()
	tests := []struct {
		name string
		el   document.Element
	}{
		{"zero width", rect("a", 0, 0, 0, 10)},
		{"negative height", rect("b", 0, 0, 10, -1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.AddElement(tt.el)
			if !errors.Is(err, ErrInvalidSize) {
				t.Errorf("expected ErrInvalidSize, got %v", err)
			}
		})
	}
	if len(m.Snapshot().Elements) != 0 {
		t.Error("rejected elements must not be stored")
	}
}

func TestAddElement_AssignsIDAndRejectsDuplicates(t *testing.T) {
	m := NewMemory()
	id, err := m.AddElement(rect("", 0, 0, 10, 10))
	if err != nil {
		t.Fatalf("AddElement: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated id")
	}
	if _, err := m.AddElement(rect(id, 0, 0, 10, 10)); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
}

func TestSnapshotsAreImmutable(t *testing.T) {
	m := newTestStore(t, rect("a", 0, 0, 10, 10))
	before := m.Snapshot()
	if err := m.UpdateElement("a", document.Move(50, 50)); err != nil {
		t.Fatalf("UpdateElement: %v", err)
	}
	after := m.Snapshot()
	if before == after {
		t.Fatal("expected a new snapshot per mutation")
	}
	if before.Elements["a"].Header().X != 0 {
		t.Error("old snapshot was modified")
	}
	if after.Version != before.Version+1 {
		t.Errorf("expected version %d, got %d", before.Version+1, after.Version)
	}
}

func TestCommitEdgeDraftTo_SelfConnectionRejected(t *testing.T) {
	m := newTestStore(t, rect("a", 0, 0, 100, 50))
	from := document.Endpoint{ElementID: "a", Port: document.PortE}
	if err := m.StartEdgeDraft(from, geometry.Point{X: 100, Y: 25}); err != nil {
		t.Fatalf("StartEdgeDraft: %v", err)
	}

	var notified *document.Snapshot
	unsub := m.Subscribe(func(s *document.Snapshot) { notified = s })
	defer unsub()

	_, err := m.CommitEdgeDraftTo(document.Endpoint{ElementID: "a", Port: document.PortW})
	if !errors.Is(err, ErrSelfConnection) {
		t.Fatalf("expected ErrSelfConnection, got %v", err)
	}
	snap := m.Snapshot()
	if len(snap.Edges) != 0 {
		t.Errorf("self-connection must not be stored, got %d edges", len(snap.Edges))
	}
	if snap.Draft != nil {
		t.Error("draft should be cleared after a rejected commit")
	}
	if notified == nil || notified.Draft != nil {
		t.Error("subscribers should see the cleared draft")
	}
}

func TestCommitEdgeDraftTo_CreatesRoutedEdge(t *testing.T) {
	m := newTestStore(t, rect("a", 0, 0, 100, 50), rect("b", 300, 0, 100, 50))
	if err := m.StartEdgeDraft(document.Endpoint{ElementID: "a", Port: document.PortE}, geometry.Point{}); err != nil {
		t.Fatalf("StartEdgeDraft: %v", err)
	}
	id, err := m.CommitEdgeDraftTo(document.Endpoint{ElementID: "b", Port: document.PortW})
	if err != nil {
		t.Fatalf("CommitEdgeDraftTo: %v", err)
	}
	snap := m.Snapshot()
	edge, ok := snap.Edges[id]
	if !ok {
		t.Fatal("expected committed edge")
	}
	if snap.Draft != nil {
		t.Error("draft should be cleared")
	}
	if len(edge.Points) < 4 || edge.Points[0] != 100 || edge.Points[1] != 25 {
		t.Errorf("expected edge to start at (100,25), got %v", edge.Points)
	}
	if edge.Bounds != geometry.BoundingBox(edge.Points) {
		t.Errorf("bounds %+v do not match points", edge.Bounds)
	}
}

func TestDraftOperationsWithoutDraft(t *testing.T) {
	m := NewMemory()
	if err := m.UpdateEdgeDraftPointer(geometry.Point{X: 1}); !errors.Is(err, ErrNoDraft) {
		t.Errorf("UpdateEdgeDraftPointer: expected ErrNoDraft, got %v", err)
	}
	if err := m.UpdateEdgeDraftSnap(nil); !errors.Is(err, ErrNoDraft) {
		t.Errorf("UpdateEdgeDraftSnap: expected ErrNoDraft, got %v", err)
	}
	if _, err := m.CommitEdgeDraftTo(document.Endpoint{ElementID: "x"}); !errors.Is(err, ErrNoDraft) {
		t.Errorf("CommitEdgeDraftTo: expected ErrNoDraft, got %v", err)
	}
}

func TestUpdateElement_ReroutesAttachedEdges(t *testing.T) {
	m := newTestStore(t, rect("a", 0, 0, 100, 50), rect("b", 300, 0, 100, 50), rect("c", 0, 300, 50, 50))
	ab, err := m.AddEdge(document.Edge{
		Source: document.Endpoint{ElementID: "a", Port: document.PortE},
		Target: document.Endpoint{ElementID: "b", Port: document.PortW},
		Mode:   document.RoutingStraight,
	})
	if err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	ac, err := m.AddEdge(document.Edge{
		Source: document.Endpoint{ElementID: "a", Port: document.PortS},
		Target: document.Endpoint{ElementID: "c", Port: document.PortN},
		Mode:   document.RoutingStraight,
	})
	if err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	untouched := m.Snapshot().Edges[ac]

	if err := m.UpdateElement("b", document.Move(300, 200)); err != nil {
		t.Fatalf("UpdateElement: %v", err)
	}
	snap := m.Snapshot()
	got := snap.Edges[ab].Points
	want := []float64{100, 25, 300, 225}
	if len(got) != 4 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] || got[3] != want[3] {
		t.Errorf("expected rerouted %v, got %v", want, got)
	}
	if snap.Edges[ab].Bounds != (geometry.Rect{X: 100, Y: 25, Width: 200, Height: 200}) {
		t.Errorf("unexpected bounds %+v", snap.Edges[ab].Bounds)
	}
	if snap.Edges[ac].Points[3] != untouched.Points[3] {
		t.Error("edge not attached to b should be unchanged")
	}
}

func TestUpdateElement_RejectsNonPositiveResize(t *testing.T) {
	m := newTestStore(t, rect("a", 0, 0, 10, 10))
	if err := m.UpdateElement("a", document.Resize(0, 5)); !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("expected ErrInvalidSize, got %v", err)
	}
	if m.Snapshot().Elements["a"].Header().Width != 10 {
		t.Error("rejected resize must not be applied")
	}
}

func TestDeleteElement_RemovesAttachedEdgesAndSelection(t *testing.T) {
	m := newTestStore(t, rect("a", 0, 0, 10, 10), rect("b", 50, 0, 10, 10))
	if _, err := m.AddEdge(document.Edge{
		Source: document.Endpoint{ElementID: "a", Port: document.PortE},
		Target: document.Endpoint{ElementID: "b", Port: document.PortW},
	}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if err := m.SelectElement("a", false); err != nil {
		t.Fatalf("SelectElement: %v", err)
	}
	if err := m.DeleteElement("a"); err != nil {
		t.Fatalf("DeleteElement: %v", err)
	}
	snap := m.Snapshot()
	if len(snap.Edges) != 0 || len(snap.EdgeIDs) != 0 {
		t.Errorf("attached edges should be deleted, got %v", snap.EdgeIDs)
	}
	if snap.Selected["a"] {
		t.Error("deleted element should be deselected")
	}
	if len(snap.Order) != 1 || snap.Order[0] != "b" {
		t.Errorf("unexpected order %v", snap.Order)
	}
}

func TestSelectElement(t *testing.T) {
	m := newTestStore(t, rect("a", 0, 0, 10, 10), rect("b", 20, 0, 10, 10))

	steps := []struct {
		id    string
		multi bool
		want  []string
	}{
		{"a", false, []string{"a"}},
		{"b", true, []string{"a", "b"}},
		{"a", true, []string{"b"}},
		{"a", false, []string{"a"}},
		{"", false, nil},
	}
	for i, step := range steps {
		if err := m.SelectElement(step.id, step.multi); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		got := m.Snapshot().SelectedIDs()
		if len(got) != len(step.want) {
			t.Fatalf("step %d: expected %v, got %v", i, step.want, got)
		}
		for j := range got {
			if got[j] != step.want[j] {
				t.Errorf("step %d: expected %v, got %v", i, step.want, got)
			}
		}
	}
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	m := NewMemory()
	calls := 0
	unsub := m.Subscribe(func(*document.Snapshot) { calls++ })
	if _, err := m.AddElement(rect("a", 0, 0, 1, 1)); err != nil {
		t.Fatal(err)
	}
	unsub()
	if _, err := m.AddElement(rect("b", 0, 0, 1, 1)); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected 1 notification, got %d", calls)
	}
}

func TestLoad_SampleBoardRoutesEdges(t *testing.T) {
	m := NewMemory()
	if err := m.Load(document.NewSampleBoard()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	snap := m.Snapshot()
	if len(snap.Elements) != 5 || len(snap.Edges) != 3 {
		t.Fatalf("expected 5 elements and 3 edges, got %d and %d", len(snap.Elements), len(snap.Edges))
	}
	for _, e := range snap.EdgeList() {
		if len(e.Points) < 4 {
			t.Errorf("edge %s was not routed: %v", e.ID, e.Points)
		}
	}

	board, err := m.Board()
	if err != nil {
		t.Fatalf("Board: %v", err)
	}
	if len(board.Elements) != 5 || len(board.Edges) != 3 {
		t.Errorf("round trip lost data: %d elements, %d edges", len(board.Elements), len(board.Edges))
	}
}

func TestLoad_SkipsInvalidEntries(t *testing.T) {
	good, _ := document.Encode(rect("a", 0, 0, 10, 10))
	bad, _ := document.Encode(rect("b", 0, 0, 0, 10))
	board := &document.Board{
		Elements: []document.ElementNode{good, bad},
		Edges: []document.Edge{
			{ID: "self", Source: document.Endpoint{ElementID: "a"}, Target: document.Endpoint{ElementID: "a"}},
		},
	}
	err := NewMemory().Load(board)
	if !errors.Is(err, ErrInvalidSize) || !errors.Is(err, ErrSelfConnection) {
		t.Errorf("expected joined size and self-connection errors, got %v", err)
	}
}

func TestAddElement_TableGridBounds(t *testing.T) {
	table := func(id string, rows, cols int) document.Table {
		return document.Table{Base: document.Base{ID: id, Width: 300, Height: 200}, Rows: rows, Cols: cols}
	}
	tests := []struct {
		name    string
		el      document.Table
		wantErr error
	}{
		{"largest allowed", table("a", MaxTableSide, MaxTableSide), nil},
		{"too many rows", table("b", MaxTableSide+1, 2), ErrInvalidGrid},
		{"huge grid", table("c", 20000, 20000), ErrInvalidGrid},
		{"no cols", table("d", 3, 0), ErrInvalidGrid},
	}
	m := NewMemory()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.AddElement(tt.el)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			_, stored := m.Snapshot().Element(tt.el.ID)
			if stored != (tt.wantErr == nil) {
				t.Errorf("stored = %v, want %v", stored, tt.wantErr == nil)
			}
		})
	}

	huge, err := document.Encode(table("e", 5000, 5000))
	if err != nil {
		t.Fatal(err)
	}
	loaded := NewMemory()
	if err := loaded.Load(&document.Board{Elements: []document.ElementNode{huge}}); !errors.Is(err, ErrInvalidGrid) {
		t.Errorf("expected load to reject the grid, got %v", err)
	}
	if len(loaded.Snapshot().Elements) != 0 {
		t.Error("oversized table must not be loaded")
	}
}

func TestUpdateEdge_ModeChangeReroutes(t *testing.T) {
	m := newTestStore(t, rect("a", 0, 0, 100, 50), rect("b", 300, 200, 100, 50))
	id, err := m.AddEdge(document.Edge{
		Source: document.Endpoint{ElementID: "a", Port: document.PortE},
		Target: document.Endpoint{ElementID: "b", Port: document.PortW},
		Mode:   document.RoutingStraight,
	})
	if err != nil {
		t.Fatal(err)
	}
	mode := document.RoutingCurved
	if err := m.UpdateEdge(id, document.EdgePatch{Mode: &mode}); err != nil {
		t.Fatalf("UpdateEdge: %v", err)
	}
	edge := m.Snapshot().Edges[id]
	if edge.Mode != document.RoutingCurved || len(edge.Points) != 6 {
		t.Errorf("expected curved route with 3 points, got %s %v", edge.Mode, edge.Points)
	}
}
