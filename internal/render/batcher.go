package render

import (
	"fmt"
	"log/slog"
	"slices"
)

// FrameScheduler runs callbacks at the next frame boundary.
type FrameScheduler interface {
	RequestFrame(fn func())
}

// FrameQueue is a FrameScheduler driven by its owner: the wasm host flushes
// it from requestAnimationFrame, the server from its room ticker, tests by
// hand.
type FrameQueue struct {
	pending []func()
}

func (q *FrameQueue) RequestFrame(fn func()) {
	q.pending = append(q.pending, fn)
}

// Pending returns the number of queued callbacks.
func (q *FrameQueue) Pending() int {
	return len(q.pending)
}

// Flush runs the callbacks queued so far. Callbacks requested while flushing
// wait for the next Flush. It returns the number of callbacks run.
func (q *FrameQueue) Flush() int {
	run := q.pending
	q.pending = nil
	for _, fn := range run {
		fn()
	}
	return len(run)
}

// Batcher coalesces draw requests into one paint per dirty layer per frame.
type Batcher struct {
	stage     *Stage
	scheduler FrameScheduler
	log       *slog.Logger
	dirty     map[LayerName]bool
	scheduled bool
}

func NewBatcher(stage *Stage, scheduler FrameScheduler, log *slog.Logger) *Batcher {
	if log == nil {
		log = slog.Default()
	}
	return &Batcher{
		stage:     stage,
		scheduler: scheduler,
		log:       log,
		dirty:     make(map[LayerName]bool),
	}
}

// ScheduleDraw marks a layer dirty and requests a frame if none is pending.
func (b *Batcher) ScheduleDraw(name LayerName) {
	b.dirty[name] = true
	if b.scheduled {
		return
	}
	b.scheduled = true
	b.scheduler.RequestFrame(b.flush)
}

// IsDirty reports whether a layer is waiting for the next frame.
func (b *Batcher) IsDirty(name LayerName) bool {
	return b.dirty[name]
}

// ForceDraw paints a layer now and clears its dirty bit.
func (b *Batcher) ForceDraw(name LayerName) error {
	delete(b.dirty, name)
	return b.drawLayer(name)
}

// ForceDrawAll paints every layer now, back to front.
func (b *Batcher) ForceDrawAll() error {
	clear(b.dirty)
	var first error
	for _, name := range LayerOrder {
		if err := b.drawLayer(name); err != nil {
			b.log.Error("layer draw failed", "layer", name, "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (b *Batcher) flush() {
	b.scheduled = false
	if !b.stage.Mounted() {
		return
	}
	var names []LayerName
	for _, name := range LayerOrder {
		if b.dirty[name] {
			names = append(names, name)
		}
	}
	for name := range b.dirty {
		if !slices.Contains(names, name) {
			b.log.Warn("draw scheduled for unknown layer", "layer", name)
		}
	}
	clear(b.dirty)

	for _, name := range names {
		if err := b.drawLayer(name); err != nil {
			b.log.Error("layer draw failed", "layer", name, "error", err)
		}
	}
}

func (b *Batcher) drawLayer(name LayerName) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("draw %s: panic: %v", name, r)
		}
	}()
	return b.stage.Draw(name)
}
