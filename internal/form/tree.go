package form

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	address "github.com/hanpama/formstate/internal/address"
	eventbus "github.com/hanpama/formstate/internal/eventbus"
	events "github.com/hanpama/formstate/internal/events"
	reactive "github.com/hanpama/formstate/internal/reactive"
)

// Tree owns every field node of a form, keyed by address.
type Tree struct {
	obs    *reactive.Observer
	logger *slog.Logger
	nodes  map[string]*Node
}

// New creates an empty Tree.
func New(opts ...Option) *Tree {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Observer == nil {
		o.Observer = reactive.New(reactive.WithLogger(o.Logger))
	}
	return &Tree{obs: o.Observer, logger: o.Logger, nodes: make(map[string]*Node)}
}

func (t *Tree) Observer() *reactive.Observer { return t.obs }

// RunAtomically runs fn in a batch of the tree's observer.
func (t *Tree) RunAtomically(ctx context.Context, fn func(b *reactive.Batch) error) error {
	return t.obs.RunAtomically(ctx, fn)
}

func (t *Tree) Len() int { return len(t.nodes) }

// Resolve returns the node at addr, creating it on first reference. It panics
// on segments address.New rejects.
func (t *Tree) Resolve(addr address.Address) *Node {
	addr = address.New(addr...)
	key := addr.String()
	if n, ok := t.nodes[key]; ok {
		return n
	}
	n := &Node{tree: t, addr: addr}
	t.nodes[key] = n
	eventbus.Publish(t.eventContext(), events.FieldCreated{Address: key})
	return n
}

// Lookup returns the node at addr without creating it. Segments are
// normalized as by address.New.
func (t *Tree) Lookup(addr address.Address) (*Node, bool) {
	n, ok := t.nodes[address.New(addr...).String()]
	return n, ok
}

// Nodes returns all nodes in address order.
func (t *Tree) Nodes() []*Node {
	return sortNodes(slices.Collect(maps.Values(t.nodes)))
}

// Descendants returns the nodes strictly below prefix in address order.
func (t *Tree) Descendants(prefix address.Address) []*Node {
	var out []*Node
	for _, n := range t.nodes {
		if n.addr.IsDescendantOf(prefix) {
			out = append(out, n)
		}
	}
	return sortNodes(out)
}

// subtree returns the node at prefix, if any, followed by its descendants.
func (t *Tree) subtree(prefix address.Address) []*Node {
	var out []*Node
	for _, n := range t.nodes {
		if n.addr.HasPrefix(prefix) {
			out = append(out, n)
		}
	}
	return sortNodes(out)
}

// IndexGroups lists, in ascending order, the distinct indices under arr that
// have at least one node.
func (t *Tree) IndexGroups(arr address.Address) []int {
	seen := make(map[int]struct{})
	for _, n := range t.nodes {
		if idx, ok := n.addr.IndexUnder(arr); ok {
			seen[idx] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// RemoveSubtree destroys the node at prefix and all of its descendants,
// deepest first. It returns the number of nodes destroyed.
func (t *Tree) RemoveSubtree(b *reactive.Batch, prefix address.Address) int {
	doomed := t.subtree(prefix)
	if len(doomed) == 0 {
		return 0
	}
	for _, n := range doomed {
		delete(t.nodes, n.addr.String())
	}
	for i := len(doomed) - 1; i >= 0; i-- {
		n := doomed[i]
		n.destroy()
		eventbus.Publish(b.Context(), events.FieldDestroyed{Address: n.addr.String()})
	}
	b.Touch()
	return len(doomed)
}

// MoveSubtree re-addresses every node under from to the same relative
// position under to. Nodes are never renamed in place: a new node takes over
// the state and the old one is detached. Occupied destinations are destroyed
// first. It returns the number of nodes moved.
func (t *Tree) MoveSubtree(b *reactive.Batch, from, to address.Address) int {
	if from.Equal(to) {
		return 0
	}
	moving := t.subtree(from)
	if len(moving) == 0 {
		return 0
	}
	for _, n := range moving {
		delete(t.nodes, n.addr.String())
	}
	if clobbered := t.RemoveSubtree(b, to); clobbered > 0 {
		t.logger.WarnContext(b.Context(), "subtree move overwrote existing nodes",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
			slog.Int("destroyed", clobbered))
	}
	t.reinsert(moving, from, to)
	b.Touch()
	return len(moving)
}

// SwapSubtrees exchanges the nodes under a with the nodes under c. It returns
// the number of nodes moved.
func (t *Tree) SwapSubtrees(b *reactive.Batch, a, c address.Address) int {
	if a.Equal(c) {
		return 0
	}
	left, right := t.subtree(a), t.subtree(c)
	if len(left)+len(right) == 0 {
		return 0
	}
	for _, n := range left {
		delete(t.nodes, n.addr.String())
	}
	for _, n := range right {
		delete(t.nodes, n.addr.String())
	}
	t.reinsert(left, a, c)
	t.reinsert(right, c, a)
	b.Touch()
	return len(left) + len(right)
}

func (t *Tree) reinsert(nodes []*Node, from, to address.Address) {
	for _, n := range nodes {
		m := &Node{tree: t, addr: n.addr.Rebase(from, to)}
		n.moveTo(m)
		t.nodes[m.addr.String()] = m
	}
}

func (t *Tree) eventContext() context.Context {
	if b := t.obs.Current(); b != nil {
		return b.Context()
	}
	return context.Background()
}

func sortNodes(ns []*Node) []*Node {
	slices.SortFunc(ns, func(a, b *Node) int { return address.Compare(a.addr, b.addr) })
	return ns
}
