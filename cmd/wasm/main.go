//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"syscall/js"

	"github.com/inamate/canvas/internal/engine"
	"github.com/inamate/canvas/internal/geometry"
	"github.com/inamate/canvas/internal/render"
)

var eng *engine.Engine

// jsPainter hands each painted layer to window.canvasPaint(layer, json).
type jsPainter struct{}

func (jsPainter) Paint(layer render.LayerName, cmds []render.DrawCommand) error {
	fn := js.Global().Get("canvasPaint")
	if fn.Type() != js.TypeFunction {
		return nil
	}
	data, err := render.DrawCommandsToJSON(cmds)
	if err != nil {
		return err
	}
	fn.Invoke(string(layer), data)
	return nil
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn})))

	var err error
	eng, err = engine.New(context.Background(), engine.Options{Painter: jsPainter{}})
	if err != nil {
		slog.Error("start engine", "error", err)
		return
	}

	// Create the engine API object
	canvasEngine := js.Global().Get("Object").New()

	// --- Commands (frontend → engine) ---
	canvasEngine.Set("loadBoard", js.FuncOf(loadBoard))
	canvasEngine.Set("loadSample", js.FuncOf(loadSample))
	canvasEngine.Set("sync", js.FuncOf(syncNow))
	canvasEngine.Set("dispatchEvent", js.FuncOf(dispatchEvent))
	canvasEngine.Set("frame", js.FuncOf(frame))
	canvasEngine.Set("zoomAt", js.FuncOf(zoomAt))
	canvasEngine.Set("cancelDraft", js.FuncOf(cancelDraft))
	canvasEngine.Set("beginEdit", js.FuncOf(beginEdit))
	canvasEngine.Set("updateEdit", js.FuncOf(updateEdit))
	canvasEngine.Set("commitEdit", js.FuncOf(commitEdit))
	canvasEngine.Set("cancelEdit", js.FuncOf(cancelEdit))

	// --- Queries (frontend ← engine) ---
	canvasEngine.Set("drawCommands", js.FuncOf(drawCommands))
	canvasEngine.Set("hitTest", js.FuncOf(hitTest))
	canvasEngine.Set("screenToWorld", js.FuncOf(screenToWorld))
	canvasEngine.Set("worldToScreen", js.FuncOf(worldToScreen))
	canvasEngine.Set("getBoard", js.FuncOf(getBoard))

	// Register on global scope
	js.Global().Set("canvasEngine", canvasEngine)

	// Signal that WASM is ready
	js.Global().Set("canvasWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func ok() any {
	return js.ValueOf(map[string]any{"ok": true})
}

func fail(err error) any {
	return js.ValueOf(map[string]any{"error": err.Error()})
}

func point(args []js.Value) (geometry.Point, bool) {
	if len(args) < 2 {
		return geometry.Point{}, false
	}
	return geometry.Point{X: args[0].Float(), Y: args[1].Float()}, true
}

func pointValue(p geometry.Point) any {
	return js.ValueOf(map[string]any{"x": p.X, "y": p.Y})
}

// --- Command Handlers ---

func loadBoard(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf(map[string]any{"error": "missing board JSON"})
	}
	if err := eng.LoadJSON([]byte(args[0].String())); err != nil {
		return fail(err)
	}
	return ok()
}

func loadSample(this js.Value, args []js.Value) any {
	if err := eng.LoadSample(); err != nil {
		return fail(err)
	}
	return ok()
}

func syncNow(this js.Value, args []js.Value) any {
	eng.Sync()
	return nil
}

// dispatchEvent takes one event as JSON and reports whether it was handled.
func dispatchEvent(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf(false)
	}
	var evt render.Event
	if err := json.Unmarshal([]byte(args[0].String()), &evt); err != nil {
		return js.ValueOf(false)
	}
	return js.ValueOf(eng.DispatchEvent(evt))
}

// frame flushes scheduled redraws; call from requestAnimationFrame.
func frame(this js.Value, args []js.Value) any {
	return js.ValueOf(eng.Frame())
}

func zoomAt(this js.Value, args []js.Value) any {
	p, okArgs := point(args)
	if !okArgs || len(args) < 3 {
		return nil
	}
	if err := eng.ZoomAt(p, args[2].Float()); err != nil {
		return fail(err)
	}
	return ok()
}

func cancelDraft(this js.Value, args []js.Value) any {
	eng.CancelDraft()
	return nil
}

func beginEdit(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return nil
	}
	if err := eng.Text().BeginEdit(args[0].String()); err != nil {
		return fail(err)
	}
	return ok()
}

func updateEdit(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return nil
	}
	if err := eng.Text().UpdateEdit(args[0].String()); err != nil {
		return fail(err)
	}
	return ok()
}

func commitEdit(this js.Value, args []js.Value) any {
	if err := eng.Text().CommitEdit(); err != nil {
		return fail(err)
	}
	return ok()
}

func cancelEdit(this js.Value, args []js.Value) any {
	eng.Text().CancelEdit()
	return nil
}

// --- Query Handlers ---

func drawCommands(this js.Value, args []js.Value) any {
	layer := render.LayerMain
	if len(args) > 0 && args[0].Type() == js.TypeString {
		layer = render.LayerName(args[0].String())
	}
	return js.ValueOf(eng.DrawCommandsJSON(layer))
}

func hitTest(this js.Value, args []js.Value) any {
	p, okArgs := point(args)
	if !okArgs {
		return js.ValueOf("")
	}
	return js.ValueOf(eng.HitTest(p))
}

func screenToWorld(this js.Value, args []js.Value) any {
	p, okArgs := point(args)
	if !okArgs {
		return nil
	}
	return pointValue(eng.Viewport().ScreenToWorld(p))
}

func worldToScreen(this js.Value, args []js.Value) any {
	p, okArgs := point(args)
	if !okArgs {
		return nil
	}
	return pointValue(eng.Viewport().WorldToScreen(p))
}

func getBoard(this js.Value, args []js.Value) any {
	data, err := eng.BoardJSON()
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(string(data))
}
