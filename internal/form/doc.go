// Package form implements a reactive form-state tree and keeps the per-row
// state of array fields aligned with the items they describe.
//
// # Tree and nodes
//
// A Tree owns every Node, keyed by address. A node carries a value,
// validation feedback (errors, warnings, successes), interaction flags
// (touched, visited, modified) and a display mode, plus disposers that run
// once when the node is destroyed. Nodes are created on first reference by
// Resolve and destroyed by RemoveSubtree. Addresses are never rewritten in
// place: MoveSubtree and SwapSubtrees create nodes at the new addresses and
// hand them the old nodes' state, detaching the old nodes.
//
// # Array fields
//
// An ArrayField owns the node at its address. Its value is an ArrayValue,
// either Empty or a Sequence. Every node whose address continues with an int
// segment after the array's address belongs to the row with that index. The
// invariant kept by this package is that no row state exists at an index at
// or beyond the length of the value once a batch has committed.
//
// # Synchronizer
//
// Three operations rewrite row state for a structural change:
//
//   - Splice(start, delete, insert): rows before start stay, rows in
//     [start, start+delete) are destroyed, later rows shift by
//     insert-delete. Shifting walks upward-moving rows from the highest index
//     and downward-moving rows from the lowest, so no row overwrites another
//     that has not moved yet. Rows in [start, start+insert) start empty.
//   - Exchange(from, to): the two rows trade their complete state.
//   - Cleanup(from): rows at from and above are destroyed. Repeating it is a
//     no-op.
//
// # Mutators
//
// Push, Pop, Insert, Remove, Shift, Unshift, Move, MoveUp and MoveDown each
// run in a single reactive batch: the synchronizer runs against the
// pre-mutation layout, the new value is stored, and the InputSink receives the
// final value. Its result and error are returned to the caller. Move stores
// the reordered value first and then exchanges the state of the two rows.
//
// # Auto-cleanup
//
// Each ArrayField installs a reaction on its length. After a batch commits,
// a length that dropped to zero cleans up from index 0 and a shorter length
// cleans up from the new length. This covers values replaced through
// SetValue or Node.SetValue, which carry no structural delta.
package form
