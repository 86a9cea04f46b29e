package modules

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geometry"
	"github.com/inamate/canvas/internal/render"
	"github.com/inamate/canvas/internal/routing"
	"github.com/inamate/canvas/internal/store"
)

type harness struct {
	store  *store.Memory
	stage  *render.Stage
	frames *render.FrameQueue
	core   *render.Core
	logs   *bytes.Buffer
}

// newHarness mounts a stage and runs mods against a fresh store.
func newHarness(t *testing.T, mods ...render.Module) *harness {
	t.Helper()
	h := &harness{logs: &bytes.Buffer{}, frames: &render.FrameQueue{}}
	log := slog.New(slog.NewTextHandler(h.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	router := routing.NewRouter(routing.DefaultOptions(), log)

	h.store = store.NewMemory(store.WithRouter(router), store.WithLogger(log))
	h.stage = render.NewStage(render.NewRecordingPainter())
	h.stage.Mount()
	h.core = render.NewCore(log)
	for _, m := range mods {
		h.core.Register(m)
	}
	env := &render.Env{
		Store:     h.store,
		Target:    h.stage,
		Batcher:   render.NewBatcher(h.stage, h.frames, log),
		Viewport:  render.NewViewport(render.DefaultViewportConfig(), h.frames),
		Scheduler: h.frames,
		Router:    router,
		Log:       log,
	}
	if err := h.core.Init(context.Background(), env); err != nil {
		t.Fatalf("init: %v", err)
	}
	h.store.Subscribe(h.core.Sync)
	t.Cleanup(h.core.Destroy)
	return h
}

func (h *harness) add(t *testing.T, el document.Element) {
	t.Helper()
	if _, err := h.store.AddElement(el); err != nil {
		t.Fatal(err)
	}
}

func rect(id string, x, y float64) document.Shape {
	return document.Shape{
		Base:  document.Base{ID: id, X: x, Y: y, Width: 100, Height: 50},
		Shape: document.ShapeRect,
	}
}

func TestShapes_UnknownTypeIsIsolated(t *testing.T) {
	shapes := NewShapes()
	h := newHarness(t, shapes)

	h.add(t, rect("a", 0, 0))
	bad := rect("bad", 200, 0)
	bad.Shape = "hexagon"
	h.add(t, bad)
	h.add(t, rect("c", 400, 0))

	if _, ok := shapes.Nodes().Get("bad"); ok {
		t.Error("unknown shape should not get a node")
	}
	for _, id := range []string{"a", "c"} {
		if _, ok := shapes.Nodes().Get(id); !ok {
			t.Errorf("%s should render despite the bad sibling", id)
		}
	}
	if !strings.Contains(h.logs.String(), "hexagon") {
		t.Errorf("failure should be logged, got %q", h.logs.String())
	}
}

func TestElementSync_CoverageAndRemoval(t *testing.T) {
	shapes := NewShapes()
	h := newHarness(t, shapes)
	h.add(t, rect("a", 0, 0))
	h.add(t, rect("b", 200, 0))

	n, _ := shapes.Nodes().Get("a")
	if err := h.store.UpdateElement("a", document.Move(10, 10)); err != nil {
		t.Fatal(err)
	}
	if again, _ := shapes.Nodes().Get("a"); again != n {
		t.Error("updating an element should reuse its node")
	}
	if !n.Bounds.Contains(15, 15) || n.Bounds.Contains(5, 5) {
		t.Errorf("bounds not moved: %+v", n.Bounds)
	}

	if err := h.store.DeleteElement("b"); err != nil {
		t.Fatal(err)
	}
	if shapes.Nodes().Len() != 1 || h.stage.Layer(render.LayerMain).Len() != 1 {
		t.Errorf("deleted element left nodes behind: ledger=%d layer=%d",
			shapes.Nodes().Len(), h.stage.Layer(render.LayerMain).Len())
	}
}

func TestTable_Grid(t *testing.T) {
	table := NewTable()
	h := newHarness(t, table)
	h.add(t, document.Table{
		Base:  document.Base{ID: "t", Width: 200, Height: 90},
		Rows:  3,
		Cols:  2,
		Cells: [][]string{{"a", "b"}, {"c"}},
	})
	h.add(t, document.Table{Base: document.Base{ID: "empty", Width: 10, Height: 10}})

	n, ok := table.Nodes().Get("t")
	if !ok {
		t.Fatal("table not rendered")
	}
	var rules, cells int
	for _, c := range n.Children {
		switch c.Kind {
		case render.NodePolyline:
			rules++
		case render.NodeText:
			cells++
		}
	}
	if rules != 3 || cells != 3 {
		t.Errorf("expected 3 rules and 3 cells, got %d and %d", rules, cells)
	}
	if _, ok := table.Nodes().Get("empty"); ok {
		t.Error("a 0x0 table should fail to render")
	}
}

func TestImage_PlaceholderAndAsset(t *testing.T) {
	img := NewImage()
	h := newHarness(t, img)
	h.add(t, document.Image{Base: document.Base{ID: "p", Width: 40, Height: 40}})
	h.add(t, document.Image{
		Base:          document.Base{ID: "i", Width: 100, Height: 50},
		AssetID:       "asset_1",
		NaturalWidth:  200,
		NaturalHeight: 100,
	})

	p, _ := img.Nodes().Get("p")
	if len(p.Children) != 2 {
		t.Errorf("expected placeholder body and cross, got %d children", len(p.Children))
	}
	i, _ := img.Nodes().Get("i")
	child := i.Children[0]
	if child.AssetID != "asset_1" || child.Transform != geometry.Scale(0.5, 0.5) {
		t.Errorf("unexpected image node %+v", child)
	}
}

func TestConnectors_ArrowAndLabel(t *testing.T) {
	conn := NewConnectors()
	h := newHarness(t, conn)
	h.add(t, rect("a", 0, 0))
	h.add(t, rect("b", 300, 0))
	id, err := h.store.AddEdge(document.Edge{
		Source: document.Endpoint{ElementID: "a", Port: document.PortE},
		Target: document.Endpoint{ElementID: "b", Port: document.PortW},
		Mode:   document.RoutingStraight,
		Style:  document.EdgeStyle{Arrowhead: true},
		Label:  "next",
	})
	if err != nil {
		t.Fatal(err)
	}

	n, ok := conn.Nodes().Get(id)
	if !ok {
		t.Fatal("edge not rendered")
	}
	if !n.Listening || n.ElementID != "" {
		t.Error("edges are hit targets but not elements")
	}
	if len(n.Children) != 2 || n.Child(id+":label").Text != "next" {
		t.Errorf("expected arrow and label children, got %d", len(n.Children))
	}

	if err := h.store.DeleteElement("b"); err != nil {
		t.Fatal(err)
	}
	if conn.Nodes().Len() != 0 {
		t.Error("edge node should go with its target")
	}
}

func TestSelection_HandlesFollowSelection(t *testing.T) {
	sel := NewSelection()
	h := newHarness(t, NewShapes(), sel)
	h.add(t, rect("a", 0, 0))
	if err := h.store.SelectElement("a", false); err != nil {
		t.Fatal(err)
	}

	n, ok := sel.Nodes().Get("a")
	if !ok {
		t.Fatal("selected element has no overlay")
	}
	if len(n.Children) != 1+len(document.CompassPorts) {
		t.Errorf("expected box and %d handles, got %d", len(document.CompassPorts), len(n.Children))
	}
	ep, ok := sel.PortHandleAt(geometry.Point{X: 101, Y: 24})
	if !ok || ep.ElementID != "a" || ep.Port != document.PortE {
		t.Errorf("expected a east handle, got %+v %v", ep, ok)
	}
	if _, ok := sel.PortHandleAt(geometry.Point{X: 50, Y: 25}); ok {
		t.Error("element centre is not a handle")
	}

	h.store.ClearSelection()
	if sel.Nodes().Len() != 0 || h.stage.Layer(render.LayerOverlay).Len() != 0 {
		t.Error("clearing the selection should remove the overlay")
	}
}

func TestText_DoubleClickEditAndCancel(t *testing.T) {
	text := NewText()
	h := newHarness(t, text)
	h.add(t, document.Text{
		Base:     document.Base{ID: "t", Width: 200, Height: 40},
		Text:     "hello",
		FontSize: 16,
	})

	if !h.core.DispatchEvent(render.Event{Type: render.EventDoubleClick, Screen: geometry.Point{X: 10, Y: 10}}) {
		t.Fatal("double click on text should start editing")
	}
	if err := text.UpdateEdit("hello world"); err != nil {
		t.Fatal(err)
	}
	n, _ := text.Nodes().Get("t")
	if got := n.Child("t:label").Text; got != "hello world" {
		t.Errorf("label should show the edit, got %q", got)
	}

	h.core.DispatchEvent(render.Event{Type: render.EventKeyDown, Key: "Escape"})
	if _, _, ok := text.Editing(); ok {
		t.Error("escape should end the edit")
	}
	if got := n.Child("t:label").Text; got != "hello" {
		t.Errorf("cancel should restore the stored text, got %q", got)
	}
	el, _ := h.store.Snapshot().Element("t")
	if s, _ := document.TextOf(el); s != "hello" {
		t.Errorf("cancelled edit leaked into the store: %q", s)
	}
}

func TestText_CommitWritesStore(t *testing.T) {
	text := NewText()
	h := newHarness(t, text)
	h.add(t, document.Text{Base: document.Base{ID: "t", Width: 200, Height: 40}, Text: "a"})

	if err := text.BeginEdit("t"); err != nil {
		t.Fatal(err)
	}
	if err := text.UpdateEdit("b"); err != nil {
		t.Fatal(err)
	}
	h.core.DispatchEvent(render.Event{Type: render.EventKeyDown, Key: "Enter"})

	el, _ := h.store.Snapshot().Element("t")
	if s, _ := document.TextOf(el); s != "b" {
		t.Errorf("expected committed text b, got %q", s)
	}
	if err := text.UpdateEdit("c"); err != ErrNoEdit {
		t.Errorf("expected ErrNoEdit after commit, got %v", err)
	}
}

func TestText_NotEditable(t *testing.T) {
	text := NewText()
	h := newHarness(t, NewImage(), text)
	h.add(t, document.Image{Base: document.Base{ID: "i", Width: 10, Height: 10}})

	if err := text.BeginEdit("i"); err == nil {
		t.Error("images have no text")
	}
	if err := text.BeginEdit("missing"); err == nil {
		t.Error("missing element should not be editable")
	}
}

func TestText_CircularGrowsOncePerPass(t *testing.T) {
	text := NewText()
	h := newHarness(t, text)
	h.add(t, document.Text{
		Base:     document.Base{ID: "c", X: 100, Y: 100, Width: 20, Height: 20},
		Text:     "growing text",
		FontSize: 16,
		Circular: true,
	})

	el, _ := h.store.Snapshot().Element("c")
	grown := el.(document.Text)
	if grown.Width <= 20 || grown.Width != grown.Height {
		t.Fatalf("expected a larger circle, got %vx%v", grown.Width, grown.Height)
	}
	if c := grown.Center(); !geometry.ApproxEqual(c, geometry.Point{X: 110, Y: 110}, 1e-9) {
		t.Errorf("centre moved to %v", c)
	}
	if d := text.FitDiameter(grown); d > grown.Width+growEpsilon {
		t.Errorf("still does not fit: %v > %v", d, grown.Width)
	}

	version := h.store.Snapshot().Version
	h.core.Sync(h.store.Snapshot())
	if h.store.Snapshot().Version != version {
		t.Error("a fitted circle must not be written back again")
	}
}

func TestGridLines(t *testing.T) {
	tests := []struct {
		name  string
		r     geometry.Rect
		scale float64
		want  int
	}{
		{"base spacing", geometry.Rect{Width: 100, Height: 100}, 1, 12},
		{"zoomed out widens", geometry.Rect{Width: 1000, Height: 1000}, 0.1, 22},
		{"empty", geometry.Rect{}, 1, 0},
		{"bad scale", geometry.Rect{Width: 10, Height: 10}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GridLines(tt.r, tt.scale)
			if len(got) != tt.want {
				t.Errorf("expected %d lines, got %d", tt.want, len(got))
			}
			for _, n := range got {
				if n.StrokeWidth != 1/tt.scale {
					t.Fatalf("line width should stay one screen pixel, got %v", n.StrokeWidth)
				}
			}
		})
	}
}

func TestGridLines_Capped(t *testing.T) {
	if n := len(GridLines(geometry.Rect{Width: 1e6, Height: 1e6}, 1)); n > gridMaxLines {
		t.Errorf("expected at most %d lines, got %d", gridMaxLines, n)
	}
}

func TestViewport_AppliesSnapshotFirst(t *testing.T) {
	grid := NewGrid()
	h := newHarness(t, NewViewport(), grid)
	if err := h.store.SetViewport(document.Viewport{X: 50, Y: 0, Scale: 2, Width: 400, Height: 200}); err != nil {
		t.Fatal(err)
	}

	m := h.stage.Layer(render.LayerMain).Transform()
	if m[0] != 2 || m[4] != 50 {
		t.Errorf("main layer transform not applied: %v", m)
	}
	if !h.stage.Layer(render.LayerOverlay).Transform().IsIdentity() {
		t.Error("overlay must stay in screen space")
	}
	want := geometry.Rect{X: -25, Y: 0, Width: 200, Height: 100}
	if grid.last != want {
		t.Errorf("grid should see the new viewport in the same pass: got %+v", grid.last)
	}
}

func TestViewportInput_ResizeIsDebounced(t *testing.T) {
	h := newHarness(t, NewViewport(), NewViewportInput())
	h.core.DispatchEvent(render.Event{Type: render.EventResize, Width: 800, Height: 600})
	h.core.DispatchEvent(render.Event{Type: render.EventResize, Width: 1024, Height: 768})
	if v := h.store.Snapshot().Viewport; v.Width != 0 {
		t.Fatalf("resize applied before the frame: %+v", v)
	}
	h.frames.Flush()
	if v := h.store.Snapshot().Viewport; v.Width != 1024 || v.Height != 768 {
		t.Errorf("expected the last size, got %+v", v)
	}
}

func TestViewportInput_LeavesKeysAlone(t *testing.T) {
	h := newHarness(t, NewViewport(), NewViewportInput())
	for _, typ := range []render.EventType{render.EventKeyDown, render.EventKeyUp} {
		if h.core.DispatchEvent(render.Event{Type: typ, Key: " "}) {
			t.Errorf("%s space should not be claimed by viewport input", typ)
		}
	}
}

func TestMoveTool_ShiftTogglesAndDeleteRemoves(t *testing.T) {
	h := newHarness(t, NewShapes(), NewMoveTool())
	h.add(t, rect("a", 0, 0))
	h.add(t, rect("b", 200, 0))

	press := func(x float64, shift bool) {
		h.core.DispatchEvent(render.Event{Type: render.EventPointerDown, Screen: geometry.Point{X: x, Y: 10}, Shift: shift})
		h.core.DispatchEvent(render.Event{Type: render.EventPointerUp, Screen: geometry.Point{X: x, Y: 10}})
	}
	press(10, false)
	press(210, true)
	if got := h.store.Snapshot().SelectedIDs(); len(got) != 2 {
		t.Fatalf("expected both selected, got %v", got)
	}
	press(210, true)
	if got := h.store.Snapshot().SelectedIDs(); len(got) != 1 || got[0] != "a" {
		t.Fatalf("shift click should toggle b off, got %v", got)
	}

	h.core.DispatchEvent(render.Event{Type: render.EventKeyDown, Key: "Delete"})
	if _, ok := h.store.Snapshot().Element("a"); ok {
		t.Error("delete should remove the selection")
	}

	press(500, false)
	if len(h.store.Snapshot().Selected) != 0 {
		t.Error("clicking empty canvas should clear the selection")
	}
}

func TestDraft_PreviewFollowsPointer(t *testing.T) {
	sel := NewSelection()
	draft := NewDraft(sel)
	h := newHarness(t, NewShapes(), sel, draft)
	h.add(t, rect("a", 0, 0))
	h.add(t, rect("b", 300, 200))

	if err := h.store.StartEdgeDraft(document.Endpoint{ElementID: "a", Port: document.PortE}, geometry.Point{X: 150, Y: 25}); err != nil {
		t.Fatal(err)
	}
	p := draft.Preview()
	if p == nil {
		t.Fatal("no preview node")
	}
	if p.Points[0] != 100 || p.Points[1] != 25 {
		t.Errorf("preview should start at the source port, got %v", p.Points)
	}

	target := document.Endpoint{ElementID: "b", Port: document.PortN}
	if err := h.store.UpdateEdgeDraftSnap(&target); err != nil {
		t.Fatal(err)
	}
	pts := p.Points
	if pts[len(pts)-2] != 350 || pts[len(pts)-1] != 200 {
		t.Errorf("preview should end at the snap port, got %v", pts)
	}
	if h.stage.Layer(render.LayerOverlay).Len() != 1 {
		t.Error("expected a snap indicator")
	}

	draft.Cancel()
	if draft.Preview() != nil || h.stage.Layer(render.LayerPreview).Len() != 0 || h.stage.Layer(render.LayerOverlay).Len() != 0 {
		t.Error("cancel must remove preview and indicator nodes")
	}
}
