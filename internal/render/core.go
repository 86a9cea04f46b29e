package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geometry"
	"github.com/inamate/canvas/internal/routing"
)

// StoreAdapter is the part of the canvas store the renderer uses: a
// read-only snapshot plus named mutations.
type StoreAdapter interface {
	Snapshot() *document.Snapshot
	Subscribe(fn func(*document.Snapshot)) func()

	AddElement(el document.Element) (string, error)
	UpdateElement(id string, patch document.Patch) error
	MoveElements(ids []string, dx, dy float64) error
	DeleteElement(id string) error
	SelectElement(id string, multi bool) error
	SetViewport(v document.Viewport) error

	StartEdgeDraft(from document.Endpoint, pointer geometry.Point) error
	UpdateEdgeDraftPointer(p geometry.Point) error
	UpdateEdgeDraftSnap(target *document.Endpoint) error
	CommitEdgeDraftTo(target document.Endpoint) (string, error)
	CancelEdgeDraft()
}

// Env is what modules receive at init.
type Env struct {
	Store     StoreAdapter
	Target    RenderTarget
	Batcher   *Batcher
	Viewport  *Viewport
	Scheduler FrameScheduler
	Router    *routing.Router
	Metrics   geometry.FontMetrics
	Log       *slog.Logger
}

// Module reconciles one slice of the snapshot into the render tree.
type Module interface {
	Name() string
	Init(ctx context.Context, env *Env) error
	Sync(snap *document.Snapshot) error
	Destroy()
}

// EventHandler is implemented by modules that take raw input. Returning
// true claims the event and stops dispatch.
type EventHandler interface {
	OnEvent(evt Event, snap *document.Snapshot) bool
}

// Core drives registered modules in registration order.
type Core struct {
	env     *Env
	log     *slog.Logger
	modules []Module
	failed  map[string]error // modules whose Init failed

	last    *document.Snapshot
	syncing bool
	queued  *document.Snapshot
	passes  int
}

func NewCore(log *slog.Logger) *Core {
	if log == nil {
		log = slog.Default()
	}
	return &Core{log: log, failed: make(map[string]error)}
}

// Register appends m. Order matters: later modules see the nodes earlier
// modules created for the same snapshot.
func (c *Core) Register(m Module) {
	c.modules = append(c.modules, m)
}

// Modules returns the registered modules in order.
func (c *Core) Modules() []Module {
	return append([]Module(nil), c.modules...)
}

// Init initialises every module in order. A module that fails to init is
// logged and skipped by later syncs and events; the others still run.
func (c *Core) Init(ctx context.Context, env *Env) error {
	if env.Log == nil {
		env.Log = c.log
	}
	c.env = env
	var errs []error
	for _, m := range c.modules {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.safe(m.Name(), "init", func() error { return m.Init(ctx, env) })
		if err != nil {
			c.failed[m.Name()] = err
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sync reconciles every module against snap. A module's error or panic is
// logged and does not stop the others. A snapshot that arrives while a pass
// is running is applied right after it; only the newest one is kept.
func (c *Core) Sync(snap *document.Snapshot) {
	if snap == nil {
		return
	}
	if c.syncing {
		c.queued = snap
		return
	}
	c.syncing = true
	defer func() { c.syncing = false }()

	for snap != nil {
		c.last = snap
		c.passes++
		for _, m := range c.modules {
			if _, skip := c.failed[m.Name()]; skip {
				continue
			}
			_ = c.safe(m.Name(), "sync", func() error { return m.Sync(snap) })
		}
		snap, c.queued = c.queued, nil
	}
}

// Passes returns how many sync passes have run.
func (c *Core) Passes() int {
	return c.passes
}

// Snapshot returns the last snapshot synced.
func (c *Core) Snapshot() *document.Snapshot {
	return c.last
}

// DispatchEvent offers evt to event-handling modules in registration order,
// then to the stage's listeners. It reports whether anything handled it.
func (c *Core) DispatchEvent(evt Event) bool {
	if c.env != nil && c.env.Viewport != nil {
		evt.World = c.env.Viewport.ScreenToWorld(evt.Screen)
	}
	snap := c.last
	if snap == nil {
		snap = document.EmptySnapshot()
	}
	for _, m := range c.modules {
		h, ok := m.(EventHandler)
		if !ok {
			continue
		}
		if _, skip := c.failed[m.Name()]; skip {
			continue
		}
		handled := false
		_ = c.safe(m.Name(), "event", func() error {
			handled = h.OnEvent(evt, snap)
			return nil
		})
		if handled {
			return true
		}
	}
	if c.env != nil && c.env.Target != nil {
		return c.env.Target.Stage().Emit(evt)
	}
	return false
}

// Destroy tears every module down and clears the registry.
func (c *Core) Destroy() {
	for _, m := range c.modules {
		_ = c.safe(m.Name(), "destroy", func() error { m.Destroy(); return nil })
	}
	c.modules = nil
	clear(c.failed)
	c.last, c.queued = nil, nil
}

func (c *Core) safe(name, phase string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s %s: panic: %v", name, phase, r)
		}
		if err != nil {
			c.log.Error("module failed", "module", name, "phase", phase, "error", err)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("%s %s: %w", name, phase, err)
	}
	return nil
}
