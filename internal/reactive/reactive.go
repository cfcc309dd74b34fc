// Package reactive provides the batching and reaction primitives a form tree
// is built on: an explicit Batch handle for atomic units of change, and
// standing reactions that observe committed state.
package reactive

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	batchid "github.com/hanpama/formstate/internal/batchid"
	eventbus "github.com/hanpama/formstate/internal/eventbus"
	events "github.com/hanpama/formstate/internal/events"
)

// Observer batches writes and runs reactions once the outermost batch
// commits. An Observer is not safe for concurrent use; a form and all of its
// writers share one logical thread.
type Observer struct {
	opt Options

	active    *Batch
	nextBatch uint64

	reactions []*reaction
	flushing  bool
	dirty     bool
}

// Batch is the explicit handle of one atomic unit of change. Every state
// write receives the open batch and records itself with Touch.
type Batch struct {
	ctx    context.Context
	id     uint64
	writes int
}

type reaction struct {
	check    func(ctx context.Context)
	disposed bool
}

// New creates an Observer.
func New(opts ...Option) *Observer {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.MaxRounds <= 0 {
		o.MaxRounds = defaultMaxRounds
	}
	return &Observer{opt: *o}
}

// Context returns the batch context. It carries the batch id.
func (b *Batch) Context() context.Context { return b.ctx }

func (b *Batch) ID() uint64 { return b.id }

// Touch records one write in the batch. A batch without writes commits
// silently and does not wake reactions.
func (b *Batch) Touch() { b.writes++ }

func (b *Batch) Writes() int { return b.writes }

// RunAtomically executes fn inside a batch. See Atomically.
func (o *Observer) RunAtomically(ctx context.Context, fn func(b *Batch) error) error {
	_, err := Atomically(ctx, o, func(b *Batch) (struct{}, error) {
		return struct{}{}, fn(b)
	})
	return err
}

// Atomically executes fn inside a batch and returns its result. When a batch
// is already open fn joins it and nothing is committed on return; otherwise a
// new batch is opened, and after fn returns the batch commits and pending
// reactions run. The commit happens whether or not fn returned an error.
func Atomically[T any](ctx context.Context, o *Observer, fn func(b *Batch) (T, error)) (T, error) {
	if o.active != nil {
		return fn(o.active)
	}
	o.nextBatch++
	b := &Batch{id: o.nextBatch}
	b.ctx = batchid.NewContext(ctx, b.id)

	o.active = b
	res, err := func() (T, error) {
		defer func() { o.active = nil }()
		return fn(b)
	}()
	o.commit(b)
	return res, err
}

// InBatch reports whether a batch is currently open.
func (o *Observer) InBatch() bool { return o.active != nil }

// Current returns the open batch, or nil.
func (o *Observer) Current() *Batch { return o.active }

func (o *Observer) commit(b *Batch) {
	if b.writes == 0 {
		return
	}
	eventbus.Publish(b.ctx, events.BatchCommitted{ID: b.id, Writes: b.writes})
	o.settle(b.ctx)
}

// settle re-checks every reaction until a pass completes without new writes.
// Batches committed by reactions during the pass only mark the observer dirty.
func (o *Observer) settle(ctx context.Context) {
	if o.flushing {
		o.dirty = true
		return
	}
	o.flushing = true
	defer func() { o.flushing = false }()

	rounds, exhausted := 0, false
	for {
		o.dirty = false
		rounds++
		for _, r := range slices.Clone(o.reactions) {
			if !r.disposed {
				r.check(ctx)
			}
		}
		if !o.dirty {
			break
		}
		if rounds >= o.opt.MaxRounds {
			exhausted = true
			o.opt.Logger.WarnContext(ctx, "reactions did not settle",
				slog.Int("rounds", rounds))
			break
		}
	}
	eventbus.Publish(ctx, events.ReactionsSettled{Rounds: rounds, Exhausted: exhausted})
}

// Reactions returns the number of installed reactions.
func (o *Observer) Reactions() int { return len(o.reactions) }

// ReactToChange installs a standing reaction. selector is evaluated once now
// and again after every committed batch; whenever its result differs from the
// previous one, callback receives the new and old values together with the
// committed batch's context. The returned dispose func removes the reaction;
// calling it more than once has no further effect.
func ReactToChange[T comparable](o *Observer, selector func() T, callback func(ctx context.Context, newValue, oldValue T)) (dispose func()) {
	last := selector()
	r := &reaction{}
	r.check = func(ctx context.Context) {
		v := selector()
		if v == last {
			return
		}
		old := last
		last = v
		callback(ctx, v, old)
	}
	o.reactions = append(o.reactions, r)

	var once sync.Once
	return func() {
		once.Do(func() {
			r.disposed = true
			if i := slices.Index(o.reactions, r); i >= 0 {
				o.reactions = slices.Delete(o.reactions, i, i+1)
			}
		})
	}
}
