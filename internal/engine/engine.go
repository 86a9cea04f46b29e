// Package engine wires the store, renderer core and modules into one canvas
// instance for hosts (wasm, server rooms, MCP).
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geometry"
	"github.com/inamate/canvas/internal/modules"
	"github.com/inamate/canvas/internal/render"
	"github.com/inamate/canvas/internal/routing"
	"github.com/inamate/canvas/internal/store"
)

type Options struct {
	Viewport render.ViewportConfig
	Routing  routing.Options
	Painter  render.Painter // defaults to a RecordingPainter
	Metrics  geometry.FontMetrics
	Log      *slog.Logger
}

// Engine owns one canvas: its state store and the renderer that observes
// it. It is not safe for concurrent use.
type Engine struct {
	log      *slog.Logger
	store    *store.Memory
	stage    *render.Stage
	painter  render.Painter
	core     *render.Core
	batcher  *render.Batcher
	viewport *render.Viewport
	frames   *render.FrameQueue
	router   *routing.Router

	text      *modules.Text
	selection *modules.Selection
	draft     *modules.Draft

	unsubscribe func()
}

// New creates an engine with an empty board and the default module set.
func New(ctx context.Context, opts Options) (*Engine, error) {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	painter := opts.Painter
	if painter == nil {
		painter = render.NewRecordingPainter()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = geometry.DefaultApproxMetrics
	}

	e := &Engine{
		log:     log,
		painter: painter,
		frames:  &render.FrameQueue{},
		router:  routing.NewRouter(opts.Routing, log),
	}
	e.store = store.NewMemory(store.WithRouter(e.router), store.WithLogger(log))
	e.stage = render.NewStage(painter)
	e.stage.Mount()
	e.batcher = render.NewBatcher(e.stage, e.frames, log)
	e.viewport = render.NewViewport(opts.Viewport, e.frames)
	e.core = render.NewCore(log)

	e.text = modules.NewText()
	e.selection = modules.NewSelection()
	e.draft = modules.NewDraft(e.selection)
	for _, m := range []render.Module{
		modules.NewViewport(),
		modules.NewGrid(),
		modules.NewShapes(),
		e.text,
		modules.NewSticky(),
		modules.NewTable(),
		modules.NewImage(),
		modules.NewConnectors(),
		e.selection,
		e.draft,
		modules.NewMoveTool(),
		modules.NewViewportInput(),
	} {
		e.core.Register(m)
	}

	env := &render.Env{
		Store:     e.store,
		Target:    e.stage,
		Batcher:   e.batcher,
		Viewport:  e.viewport,
		Scheduler: e.frames,
		Router:    e.router,
		Metrics:   metrics,
		Log:       log,
	}
	if err := e.core.Init(ctx, env); err != nil {
		return nil, fmt.Errorf("init renderer: %w", err)
	}
	e.unsubscribe = e.store.Subscribe(e.core.Sync)
	e.core.Sync(e.store.Snapshot())
	return e, nil
}

// --- Commands ---

// LoadBoard replaces the board. Invalid entries are skipped and reported.
func (e *Engine) LoadBoard(board *document.Board) error {
	return e.store.Load(board)
}

// LoadJSON parses and loads board JSON.
func (e *Engine) LoadJSON(data []byte) error {
	board, err := document.ParseBoard(data)
	if err != nil {
		return err
	}
	return e.LoadBoard(board)
}

// LoadSample loads the built-in sample board.
func (e *Engine) LoadSample() error {
	return e.LoadBoard(document.NewSampleBoard())
}

// Sync re-runs reconciliation against the current snapshot.
func (e *Engine) Sync() {
	e.core.Sync(e.store.Snapshot())
}

// DispatchEvent routes a raw input event through the modules.
func (e *Engine) DispatchEvent(evt render.Event) bool {
	return e.core.DispatchEvent(evt)
}

// Frame runs one animation frame: deferred resizes, text growth checks and
// batched layer draws. It returns the number of callbacks run.
func (e *Engine) Frame() int {
	return e.frames.Flush()
}

// ZoomAt zooms around a screen point and stores the new viewport.
func (e *Engine) ZoomAt(anchor geometry.Point, scale float64) error {
	e.viewport.ZoomAt(anchor, scale)
	return e.store.SetViewport(e.viewport.State())
}

// CancelDraft drops an in-progress connector, e.g. on tool switch.
func (e *Engine) CancelDraft() {
	e.draft.Cancel()
}

// Close tears the renderer down.
func (e *Engine) Close() {
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
	e.core.Destroy()
}

// --- Queries ---

func (e *Engine) Store() *store.Memory {
	return e.store
}

func (e *Engine) Snapshot() *document.Snapshot {
	return e.store.Snapshot()
}

func (e *Engine) Stage() *render.Stage {
	return e.stage
}

func (e *Engine) Viewport() *render.Viewport {
	return e.viewport
}

func (e *Engine) Router() *routing.Router {
	return e.router
}

func (e *Engine) Core() *render.Core {
	return e.core
}

func (e *Engine) Text() *modules.Text {
	return e.text
}

func (e *Engine) Draft() *modules.Draft {
	return e.draft
}

func (e *Engine) Painter() render.Painter {
	return e.painter
}

// DrawCommands compiles one layer as it currently stands.
func (e *Engine) DrawCommands(layer render.LayerName) []render.DrawCommand {
	return render.Compile(e.stage.Layer(layer))
}

// DrawCommandsJSON is DrawCommands serialized for the JS painter.
func (e *Engine) DrawCommandsJSON(layer render.LayerName) string {
	out, err := render.DrawCommandsToJSON(e.DrawCommands(layer))
	if err != nil {
		e.log.Error("encode draw commands", "layer", layer, "error", err)
	}
	return out
}

// HitTest returns the id of the topmost element under a screen point.
func (e *Engine) HitTest(screen geometry.Point) string {
	if hit := e.stage.Layer(render.LayerMain).HitTest(screen); hit != nil {
		return hit.ElementID
	}
	return ""
}

// BoardJSON serializes the current board.
func (e *Engine) BoardJSON() ([]byte, error) {
	board, err := e.store.Board()
	if err != nil {
		return nil, err
	}
	return json.Marshal(board)
}
