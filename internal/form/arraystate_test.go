package form

import (
	"context"
	"fmt"
	"testing"

	eventbus "github.com/hanpama/formstate/internal/eventbus"
	events "github.com/hanpama/formstate/internal/events"
	reactive "github.com/hanpama/formstate/internal/reactive"
	"github.com/stretchr/testify/require"
)

func TestSplice_ReaddressesEveryLayout(t *testing.T) {
	for n := 0; n <= 5; n++ {
		for start := 0; start <= n; start++ {
			for del := 0; start+del <= n; del++ {
				for ins := 0; ins <= 3; ins++ {
					name := fmt.Sprintf("n=%d/start=%d/del=%d/ins=%d", n, start, del, ins)
					t.Run(name, func(t *testing.T) {
						tree, f, _ := newTestArray(t, []any(seq(n))...)
						names := tags(n)
						seedRows(t, tree, f, names...)

						err := tree.RunAtomically(context.Background(), func(b *reactive.Batch) error {
							Splice(b, f, SpliceDelta{Start: start, DeleteCount: del, InsertCount: ins})
							return nil
						})
						require.NoError(t, err)

						want := map[int]string{}
						for p := 0; p < n; p++ {
							switch {
							case p < start:
								want[p] = names[p]
							case p >= start+del:
								want[p+ins-del] = names[p]
							}
						}
						if diff := diffPartition(partitionOf(want), f.Partition()); diff != "" {
							t.Fatalf("partition mismatch (-want +got):\n%s", diff)
						}
						for i := start; i < start+ins; i++ {
							require.Empty(t, f.Row(i), "inserted row %d must start fresh", i)
						}
					})
				}
			}
		}
	}
}

func TestSplice_DeletedStateIsUnreachable(t *testing.T) {
	tree, f, _ := newTestArray(t, "a", "b", "c", "d")
	seedRows(t, tree, f, "a", "b", "c", "d")
	doomed := f.Row(1)

	_ = tree.RunAtomically(context.Background(), func(b *reactive.Batch) error {
		Splice(b, f, SpliceDelta{Start: 1, DeleteCount: 2})
		return nil
	})

	for _, n := range doomed {
		require.False(t, n.Attached(), "node %s still attached", n.Address())
		_, ok := tree.Lookup(n.Address())
		if n.Address().String() == "items.1" || n.Address().String() == "items.1.name" {
			// index 1 now holds the row that was at 3
			require.True(t, ok)
			got, _ := tree.Lookup(n.Address())
			require.NotSame(t, n, got)
		}
	}
	want := partitionOf(map[int]string{0: "a", 1: "d"})
	if diff := diffPartition(want, f.Partition()); diff != "" {
		t.Fatalf("partition mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 5, tree.Len()) // array node + 2 rows of 2 nodes
}

func TestSplice_RelocatedNodesKeepDisposers(t *testing.T) {
	tree, f, _ := newTestArray(t, "a", "b")
	seedRows(t, tree, f, "a", "b")
	released := 0
	row1, _ := tree.Lookup(f.Address().Append(1, "name"))
	row1.OnDestroy(func() { released++ })

	_ = tree.RunAtomically(context.Background(), func(b *reactive.Batch) error {
		Splice(b, f, SpliceDelta{Start: 0, InsertCount: 2})
		return nil
	})
	require.Zero(t, released, "moving a row must not run its disposers")

	_ = tree.RunAtomically(context.Background(), func(b *reactive.Batch) error {
		Cleanup(b, f, 0)
		return nil
	})
	require.Equal(t, 1, released)
}

func TestExchange_IsInvolution(t *testing.T) {
	const n = 4
	for a := 0; a < n; a++ {
		for c := 0; c < n; c++ {
			if a == c {
				continue
			}
			t.Run(fmt.Sprintf("%d<->%d", a, c), func(t *testing.T) {
				tree, f, _ := newTestArray(t, []any(seq(n))...)
				seedRows(t, tree, f, tags(n)...)
				before := f.Partition()

				swap := func() {
					_ = tree.RunAtomically(context.Background(), func(b *reactive.Batch) error {
						Exchange(b, f, ExchangeDelta{From: a, To: c})
						return nil
					})
				}
				swap()
				want := map[int]string{}
				for i, tag := range tags(n) {
					want[i] = tag
				}
				want[a], want[c] = want[c], want[a]
				if diff := diffPartition(partitionOf(want), f.Partition()); diff != "" {
					t.Fatalf("after one exchange (-want +got):\n%s", diff)
				}

				swap()
				if diff := diffPartition(before, f.Partition()); diff != "" {
					t.Fatalf("after two exchanges (-want +got):\n%s", diff)
				}
			})
		}
	}
}

func TestExchange_WithEmptyRow(t *testing.T) {
	tree, f, _ := newTestArray(t, "a", "b", "c")
	seedRows(t, tree, f, "a")

	_ = tree.RunAtomically(context.Background(), func(b *reactive.Batch) error {
		Exchange(b, f, ExchangeDelta{From: 0, To: 2})
		return nil
	})
	if diff := diffPartition(partitionOf(map[int]string{2: "a"}), f.Partition()); diff != "" {
		t.Fatalf("partition mismatch (-want +got):\n%s", diff)
	}
}

func TestCleanup_Idempotent(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })
	var cleaned []events.ArrayCleaned
	eventbus.Subscribe(func(_ context.Context, e events.ArrayCleaned) { cleaned = append(cleaned, e) })

	tree, f, _ := newTestArray(t, "a", "b", "c")
	seedRows(t, tree, f, "a", "b", "c")

	run := func(from int) {
		_ = tree.RunAtomically(context.Background(), func(b *reactive.Batch) error {
			Cleanup(b, f, from)
			return nil
		})
	}
	run(1)
	once := f.Partition()
	run(1)
	run(2)
	run(10)

	if diff := diffPartition(partitionOf(map[int]string{0: "a"}), once); diff != "" {
		t.Fatalf("partition mismatch (-want +got):\n%s", diff)
	}
	if diff := diffPartition(once, f.Partition()); diff != "" {
		t.Fatalf("repeated cleanup changed state (-want +got):\n%s", diff)
	}
	require.Equal(t, []events.ArrayCleaned{{Address: "items", From: 1, Destroyed: 4}}, cleaned)
}

func TestSynchronizer_PublishesDeltas(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })
	var spliced []events.ArraySpliced
	var exchanged []events.ArrayExchanged
	eventbus.Subscribe(func(_ context.Context, e events.ArraySpliced) { spliced = append(spliced, e) })
	eventbus.Subscribe(func(_ context.Context, e events.ArrayExchanged) { exchanged = append(exchanged, e) })

	tree, f, _ := newTestArray(t, "a", "b", "c")
	seedRows(t, tree, f, "a", "b", "c")
	_ = tree.RunAtomically(context.Background(), func(b *reactive.Batch) error {
		Splice(b, f, SpliceDelta{Start: 1, DeleteCount: 1, InsertCount: 2})
		Exchange(b, f, ExchangeDelta{From: 0, To: 3})
		Exchange(b, f, ExchangeDelta{From: 1, To: 1})
		return nil
	})

	require.Equal(t, []events.ArraySpliced{{
		Address: "items", Start: 1, DeleteCount: 1, InsertCount: 2, Relocated: 2, Destroyed: 2,
	}}, spliced)
	require.Equal(t, []events.ArrayExchanged{{Address: "items", From: 0, To: 3, Relocated: 4}}, exchanged)
}
