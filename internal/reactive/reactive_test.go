package reactive

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	batchid "github.com/hanpama/formstate/internal/batchid"
	eventbus "github.com/hanpama/formstate/internal/eventbus"
	events "github.com/hanpama/formstate/internal/events"
	"github.com/stretchr/testify/require"
)

type change struct{ New, Old int }

func TestReactionRunsAfterOutermostCommit(t *testing.T) {
	o := New()
	x := 0
	var seen []change
	ReactToChange(o, func() int { return x }, func(_ context.Context, n, old int) {
		seen = append(seen, change{n, old})
	})

	err := o.RunAtomically(context.Background(), func(b *Batch) error {
		x = 1
		b.Touch()
		return o.RunAtomically(b.Context(), func(inner *Batch) error {
			if inner != b {
				t.Fatalf("nested call must join the open batch")
			}
			x = 2
			inner.Touch()
			if len(seen) != 0 {
				t.Fatalf("reaction fired inside the batch")
			}
			return nil
		})
	})
	require.NoError(t, err)

	if diff := cmp.Diff([]change{{New: 2, Old: 0}}, seen); diff != "" {
		t.Fatalf("reaction calls mismatch (-want +got):\n%s", diff)
	}
}

func TestBatchWithoutWritesDoesNotWakeReactions(t *testing.T) {
	o := New()
	x := 0
	calls := 0
	ReactToChange(o, func() int { return x }, func(context.Context, int, int) { calls++ })

	_ = o.RunAtomically(context.Background(), func(b *Batch) error {
		x = 5
		return nil
	})
	if calls != 0 {
		t.Fatalf("expected no reaction without Touch, got %d", calls)
	}
}

func TestAtomicallyReturnsResultAndCommitsOnError(t *testing.T) {
	o := New()
	x := 0
	calls := 0
	ReactToChange(o, func() int { return x }, func(context.Context, int, int) { calls++ })

	boom := errors.New("boom")
	got, err := Atomically(context.Background(), o, func(b *Batch) (string, error) {
		x = 1
		b.Touch()
		return "partial", boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, "partial", got)
	require.Equal(t, 1, calls)
	require.False(t, o.InBatch())
}

func TestBatchContextCarriesID(t *testing.T) {
	o := New()
	var ids []uint64
	for i := 0; i < 2; i++ {
		_ = o.RunAtomically(context.Background(), func(b *Batch) error {
			id, ok := batchid.FromContext(b.Context())
			require.True(t, ok)
			require.Equal(t, b.ID(), id)
			ids = append(ids, id)
			return nil
		})
	}
	if diff := cmp.Diff([]uint64{1, 2}, ids); diff != "" {
		t.Fatalf("batch ids mismatch (-want +got):\n%s", diff)
	}
}

func TestReactionWritesSettle(t *testing.T) {
	o := New()
	x, y := 0, 0
	ReactToChange(o, func() int { return x }, func(ctx context.Context, n, _ int) {
		_ = o.RunAtomically(ctx, func(b *Batch) error {
			y = n * 10
			b.Touch()
			return nil
		})
	})
	var ys []int
	ReactToChange(o, func() int { return y }, func(_ context.Context, n, _ int) { ys = append(ys, n) })

	_ = o.RunAtomically(context.Background(), func(b *Batch) error {
		x = 3
		b.Touch()
		return nil
	})
	if diff := cmp.Diff([]int{30}, ys); diff != "" {
		t.Fatalf("chained reaction mismatch (-want +got):\n%s", diff)
	}
}

func TestSettleStopsAtRoundLimit(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })
	var settled []events.ReactionsSettled
	eventbus.Subscribe(func(_ context.Context, e events.ReactionsSettled) { settled = append(settled, e) })

	o := New(WithMaxRounds(3))
	x := 0
	ReactToChange(o, func() int { return x }, func(ctx context.Context, n, _ int) {
		_ = o.RunAtomically(ctx, func(b *Batch) error {
			x = n + 1
			b.Touch()
			return nil
		})
	})
	_ = o.RunAtomically(context.Background(), func(b *Batch) error {
		x = 1
		b.Touch()
		return nil
	})

	require.NotEmpty(t, settled)
	last := settled[len(settled)-1]
	require.True(t, last.Exhausted)
	require.Equal(t, 3, last.Rounds)
}

func TestDisposeIsScopedAndIdempotent(t *testing.T) {
	o := New()
	x := 0
	calls := 0
	dispose := ReactToChange(o, func() int { return x }, func(context.Context, int, int) { calls++ })
	other := ReactToChange(o, func() int { return 0 }, func(context.Context, int, int) {})
	require.Equal(t, 2, o.Reactions())

	dispose()
	dispose()
	require.Equal(t, 1, o.Reactions())

	_ = o.RunAtomically(context.Background(), func(b *Batch) error {
		x = 1
		b.Touch()
		return nil
	})
	require.Zero(t, calls)
	other()
	require.Zero(t, o.Reactions())
}
