package form

import (
	"slices"

	address "github.com/hanpama/formstate/internal/address"
	reactive "github.com/hanpama/formstate/internal/reactive"
)

// Display controls how a field is presented.
type Display int

const (
	DisplayVisible Display = iota
	DisplayHidden
	DisplayNone
)

func (d Display) String() string {
	switch d {
	case DisplayVisible:
		return "visible"
	case DisplayHidden:
		return "hidden"
	case DisplayNone:
		return "none"
	default:
		return "unknown"
	}
}

// Validation holds the feedback attached to a field.
type Validation struct {
	Errors    []string
	Warnings  []string
	Successes []string
}

func (v Validation) clone() Validation {
	return Validation{
		Errors:    slices.Clone(v.Errors),
		Warnings:  slices.Clone(v.Warnings),
		Successes: slices.Clone(v.Successes),
	}
}

// Valid reports whether there are no errors.
func (v Validation) Valid() bool { return len(v.Errors) == 0 }

// Flags holds interaction and display state.
type Flags struct {
	Touched  bool
	Visited  bool
	Modified bool
	Display  Display
}

// State is a copy of everything a node carries.
type State struct {
	Value      any
	Validation Validation
	Flags      Flags
}

// Node is the state held at one address of a Tree. Nodes are owned by their
// tree; a node that was re-addressed or removed is detached and ignores
// further writes.
type Node struct {
	tree *Tree
	addr address.Address

	value      any
	validation Validation
	flags      Flags

	disposers []func()
	array     *ArrayField

	detached bool
}

func (n *Node) Address() address.Address { return n.addr }

func (n *Node) Value() any { return n.value }

func (n *Node) Validation() Validation { return n.validation.clone() }

func (n *Node) Flags() Flags { return n.flags }

func (n *Node) State() State {
	return State{Value: n.value, Validation: n.validation.clone(), Flags: n.flags}
}

// Attached reports whether the node still belongs to its tree.
func (n *Node) Attached() bool { return !n.detached }

// ArrayField returns the array field owning this node, if any.
func (n *Node) ArrayField() (*ArrayField, bool) { return n.array, n.array != nil }

func (n *Node) SetValue(b *reactive.Batch, v any) {
	if n.detached {
		return
	}
	n.value = v
	b.Touch()
}

func (n *Node) SetErrors(b *reactive.Batch, msgs ...string) {
	if n.detached {
		return
	}
	n.validation.Errors = slices.Clone(msgs)
	b.Touch()
}

func (n *Node) SetWarnings(b *reactive.Batch, msgs ...string) {
	if n.detached {
		return
	}
	n.validation.Warnings = slices.Clone(msgs)
	b.Touch()
}

func (n *Node) SetSuccesses(b *reactive.Batch, msgs ...string) {
	if n.detached {
		return
	}
	n.validation.Successes = slices.Clone(msgs)
	b.Touch()
}

func (n *Node) SetFlags(b *reactive.Batch, f Flags) {
	if n.detached {
		return
	}
	n.flags = f
	b.Touch()
}

// SetState replaces value, validation and flags at once.
func (n *Node) SetState(b *reactive.Batch, s State) {
	if n.detached {
		return
	}
	n.value = s.Value
	n.validation = s.Validation.clone()
	n.flags = s.Flags
	b.Touch()
}

// OnDestroy registers fn to run once when the node is removed from the tree.
// Disposers follow the node's state when it is re-addressed.
func (n *Node) OnDestroy(fn func()) {
	if n.detached {
		fn()
		return
	}
	n.disposers = append(n.disposers, fn)
}

// moveTo hands all state of n to m and detaches n without running disposers.
func (n *Node) moveTo(m *Node) {
	m.value = n.value
	m.validation = n.validation
	m.flags = n.flags
	m.disposers = n.disposers
	m.array = n.array
	if m.array != nil {
		m.array.node = m
	}
	*n = Node{tree: n.tree, addr: n.addr, detached: true}
}

// destroy detaches n and runs its disposers in reverse registration order.
func (n *Node) destroy() {
	if n.detached {
		return
	}
	ds := n.disposers
	*n = Node{tree: n.tree, addr: n.addr, detached: true}
	for i := len(ds) - 1; i >= 0; i-- {
		ds[i]()
	}
}
