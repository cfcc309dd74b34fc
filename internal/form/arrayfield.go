package form

import (
	"context"
	"log/slog"
	"slices"
	"time"

	address "github.com/hanpama/formstate/internal/address"
	eventbus "github.com/hanpama/formstate/internal/eventbus"
	events "github.com/hanpama/formstate/internal/events"
	reactive "github.com/hanpama/formstate/internal/reactive"
)

// ArrayField is a field whose value is a sequence of rows. Each row owns the
// nodes addressed under its index, and every mutator keeps that state aligned
// with the items it describes.
//
// All mutators run as one batch: the row state is re-addressed, the value is
// replaced, and the input sink is called before any reaction observes the
// change. Mutators whose precondition does not hold return (nil, nil) and do
// nothing.
type ArrayField struct {
	tree *Tree
	node *Node
	sink InputSink
}

// NewArrayField binds an array field to addr and installs its auto-cleanup
// reaction. The reaction is released when the field's node is destroyed.
func (t *Tree) NewArrayField(addr address.Address, opts ...FieldOption) (*ArrayField, error) {
	fo := fieldOptions{sink: nopSink{}}
	for _, f := range opts {
		f(&fo)
	}
	if fo.sink == nil {
		fo.sink = nopSink{}
	}
	n := t.Resolve(addr)
	if n.array != nil {
		return nil, ErrFieldExists
	}
	f := &ArrayField{tree: t, node: n, sink: fo.sink}
	n.array = f
	n.OnDestroy(reactive.ReactToChange(t.obs, f.Len, f.autoCleanup))
	return f, nil
}

// autoCleanup discards rows left behind when the value shrinks without going
// through a mutator, e.g. after SetValue.
func (f *ArrayField) autoCleanup(ctx context.Context, newLen, oldLen int) {
	from := -1
	if oldLen > 0 && newLen == 0 {
		from = 0
	} else if newLen < oldLen {
		from = newLen
	}
	if from < 0 {
		return
	}
	_ = f.tree.RunAtomically(ctx, func(b *reactive.Batch) error {
		Cleanup(b, f, from)
		return nil
	})
}

func (f *ArrayField) Address() address.Address { return f.node.addr }

func (f *ArrayField) Node() *Node { return f.node }

func (f *ArrayField) Value() ArrayValue { return ArrayValueOf(f.node.value) }

// Len returns the number of items; an Empty value has none.
func (f *ArrayField) Len() int {
	if seq, ok := f.Value().(Sequence); ok {
		return len(seq)
	}
	return 0
}

// Items returns a copy of the items.
func (f *ArrayField) Items() []any {
	if seq, ok := f.Value().(Sequence); ok {
		return []any(seq.Clone())
	}
	return nil
}

// Row returns the nodes of row i: the row node itself, if resolved, then its
// descendants.
func (f *ArrayField) Row(i int) []*Node {
	if i < 0 {
		return nil
	}
	return f.tree.subtree(f.node.addr.Append(i))
}

// RowStates returns the state of row i keyed by address relative to the row.
// The row node itself has the empty key.
func (f *ArrayField) RowStates(i int) map[string]State {
	if i < 0 {
		return map[string]State{}
	}
	row := f.node.addr.Append(i)
	return statesUnder(f.tree.subtree(row), row)
}

// Partition returns the state of every row keyed by address relative to the
// array, e.g. "1.name".
func (f *ArrayField) Partition() map[string]State {
	return statesUnder(f.tree.Descendants(f.node.addr), f.node.addr)
}

func statesUnder(nodes []*Node, prefix address.Address) map[string]State {
	out := make(map[string]State, len(nodes))
	for _, n := range nodes {
		out[address.Address(n.addr[len(prefix):]).String()] = n.State()
	}
	return out
}

// SetValue replaces the whole value without a structural delta. Rows beyond
// the new length are discarded by the auto-cleanup reaction after commit.
func (f *ArrayField) SetValue(ctx context.Context, v any) {
	_ = f.tree.RunAtomically(ctx, func(b *reactive.Batch) error {
		f.node.SetValue(b, v)
		return nil
	})
}

// Destroy removes the field and all rows from the tree.
func (f *ArrayField) Destroy(ctx context.Context) {
	_ = f.tree.RunAtomically(ctx, func(b *reactive.Batch) error {
		f.tree.RemoveSubtree(b, f.node.addr)
		return nil
	})
}

// Push appends items. Existing rows keep their indices.
func (f *ArrayField) Push(ctx context.Context, items ...any) (any, error) {
	return f.mutate(ctx, "push", func(b *reactive.Batch, seq Sequence) {
		f.store(b, append(seq.Clone(), items...))
	})
}

// Pop removes the last item.
func (f *ArrayField) Pop(ctx context.Context) (any, error) {
	switch v := f.Value().(type) {
	case Empty:
		return nil, nil
	case Sequence:
		if len(v) == 0 {
			return nil, nil
		}
	}
	return f.mutate(ctx, "pop", func(b *reactive.Batch, seq Sequence) {
		last := len(seq) - 1
		Splice(b, f, SpliceDelta{Start: last, DeleteCount: 1})
		f.store(b, seq.Clone()[:last])
	})
}

// Insert puts items before index. index is clamped to [0, Len()].
func (f *ArrayField) Insert(ctx context.Context, index int, items ...any) (any, error) {
	return f.mutate(ctx, "insert", func(b *reactive.Batch, seq Sequence) {
		index = min(max(index, 0), len(seq))
		Splice(b, f, SpliceDelta{Start: index, InsertCount: len(items)})
		f.store(b, slices.Insert(seq.Clone(), index, items...))
	})
}

// Remove deletes the item at index.
func (f *ArrayField) Remove(ctx context.Context, index int) (any, error) {
	switch v := f.Value().(type) {
	case Empty:
		return nil, nil
	case Sequence:
		if index < 0 || index >= len(v) {
			return nil, nil
		}
	}
	return f.mutate(ctx, "remove", func(b *reactive.Batch, seq Sequence) {
		Splice(b, f, SpliceDelta{Start: index, DeleteCount: 1})
		f.store(b, slices.Delete(seq.Clone(), index, index+1))
	})
}

// Shift removes the first item, re-addressing rows the same way Remove(0)
// does.
func (f *ArrayField) Shift(ctx context.Context) (any, error) {
	switch v := f.Value().(type) {
	case Empty:
		return nil, nil
	case Sequence:
		if len(v) == 0 {
			return nil, nil
		}
	}
	return f.mutate(ctx, "shift", func(b *reactive.Batch, seq Sequence) {
		Splice(b, f, SpliceDelta{Start: 0, DeleteCount: 1})
		f.store(b, slices.Delete(seq.Clone(), 0, 1))
	})
}

// Unshift puts items at the front.
func (f *ArrayField) Unshift(ctx context.Context, items ...any) (any, error) {
	return f.mutate(ctx, "unshift", func(b *reactive.Batch, seq Sequence) {
		Splice(b, f, SpliceDelta{Start: 0, InsertCount: len(items)})
		f.store(b, slices.Insert(seq.Clone(), 0, items...))
	})
}

// Move takes the item at from out and reinserts it at to, then exchanges the
// row state of from and to. Rows in between keep their state.
func (f *ArrayField) Move(ctx context.Context, from, to int) (any, error) {
	if from == to {
		return nil, nil
	}
	switch v := f.Value().(type) {
	case Empty:
		return nil, nil
	case Sequence:
		if from < 0 || from >= len(v) || to < 0 || to >= len(v) {
			return nil, nil
		}
	}
	return f.mutate(ctx, "move", func(b *reactive.Batch, seq Sequence) {
		item := seq[from]
		next := slices.Delete(seq.Clone(), from, from+1)
		f.store(b, slices.Insert(next, to, item))
		Exchange(b, f, ExchangeDelta{From: from, To: to})
	})
}

// MoveUp moves the item at index one place towards the front, wrapping to
// the end from index 0.
func (f *ArrayField) MoveUp(ctx context.Context, index int) (any, error) {
	switch v := f.Value().(type) {
	case Empty:
		return nil, nil
	case Sequence:
		to := index - 1
		if to < 0 {
			to = len(v) - 1
		}
		return f.Move(ctx, index, to)
	}
	return nil, nil
}

// MoveDown moves the item at index one place towards the end, wrapping to
// the front from the last index.
func (f *ArrayField) MoveDown(ctx context.Context, index int) (any, error) {
	switch v := f.Value().(type) {
	case Empty:
		return nil, nil
	case Sequence:
		to := index + 1
		if to >= len(v) {
			to = 0
		}
		return f.Move(ctx, index, to)
	}
	return nil, nil
}

// mutate runs fn in one batch with the current items (an Empty value reads as
// no items) and then propagates the stored value to the sink.
func (f *ArrayField) mutate(ctx context.Context, op string, fn func(b *reactive.Batch, seq Sequence)) (any, error) {
	if f.node.detached {
		return nil, nil
	}
	start := time.Now()
	return reactive.Atomically(ctx, f.tree.obs, func(b *reactive.Batch) (any, error) {
		addr := f.node.addr.String()
		eventbus.Publish(b.Context(), events.MutationStart{Address: addr, Op: op})

		var seq Sequence
		switch v := f.Value().(type) {
		case Sequence:
			seq = v
		case Empty:
			seq = Sequence{}
		}
		fn(b, seq)

		value, _ := f.Value().(Sequence)
		res, err := f.sink.OnInput(withField(b.Context(), f), value.Clone())

		f.tree.logger.DebugContext(b.Context(), "array mutation",
			slog.String("address", addr),
			slog.String("op", op),
			slog.Int("length", len(value)))
		eventbus.Publish(b.Context(), events.MutationFinish{
			Address:  addr,
			Op:       op,
			Length:   len(value),
			Err:      err,
			Duration: time.Since(start),
		})
		return res, err
	})
}

func (f *ArrayField) store(b *reactive.Batch, seq Sequence) {
	if seq == nil {
		seq = Sequence{}
	}
	f.node.value = seq
	f.node.flags.Modified = true
	b.Touch()
}
