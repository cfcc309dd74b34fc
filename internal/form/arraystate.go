package form

import (
	"log/slog"
	"slices"

	eventbus "github.com/hanpama/formstate/internal/eventbus"
	events "github.com/hanpama/formstate/internal/events"
	reactive "github.com/hanpama/formstate/internal/reactive"
)

// SpliceDelta describes a splice in terms of the pre-mutation layout.
type SpliceDelta struct {
	Start       int
	DeleteCount int
	InsertCount int
}

// ExchangeDelta names two rows whose state trades places.
type ExchangeDelta struct {
	From int
	To   int
}

// Splice re-addresses the row state of f for d. Rows before Start are left
// alone, rows in [Start, Start+DeleteCount) are destroyed, and later rows
// shift by InsertCount-DeleteCount, leaving [Start, Start+InsertCount) empty.
// It must run before the value itself is spliced.
func Splice(b *reactive.Batch, f *ArrayField, d SpliceDelta) {
	t, arr := f.tree, f.node.addr
	d.Start = max(d.Start, 0)
	d.DeleteCount = max(d.DeleteCount, 0)
	d.InsertCount = max(d.InsertCount, 0)
	offset := d.InsertCount - d.DeleteCount

	var moving []int
	destroyed, relocated := 0, 0
	for _, idx := range t.IndexGroups(arr) {
		switch {
		case idx < d.Start:
		case idx < d.Start+d.DeleteCount:
			destroyed += t.RemoveSubtree(b, arr.Append(idx))
		default:
			moving = append(moving, idx)
		}
	}
	if offset != 0 {
		// Growing walks from the top so no row lands on one not yet moved.
		if offset > 0 {
			slices.Reverse(moving)
		}
		for _, idx := range moving {
			relocated += t.MoveSubtree(b, arr.Append(idx), arr.Append(idx+offset))
		}
	}

	t.logger.DebugContext(b.Context(), "array splice",
		slog.String("address", arr.String()),
		slog.Int("start", d.Start),
		slog.Int("delete", d.DeleteCount),
		slog.Int("insert", d.InsertCount),
		slog.Int("relocated", relocated),
		slog.Int("destroyed", destroyed))
	eventbus.Publish(b.Context(), events.ArraySpliced{
		Address:     arr.String(),
		Start:       d.Start,
		DeleteCount: d.DeleteCount,
		InsertCount: d.InsertCount,
		Relocated:   relocated,
		Destroyed:   destroyed,
	})
}

// Exchange swaps the complete row state at From with the one at To. Negative
// indices are ignored.
func Exchange(b *reactive.Batch, f *ArrayField, d ExchangeDelta) {
	if d.From == d.To || d.From < 0 || d.To < 0 {
		return
	}
	t, arr := f.tree, f.node.addr
	relocated := t.SwapSubtrees(b, arr.Append(d.From), arr.Append(d.To))

	t.logger.DebugContext(b.Context(), "array exchange",
		slog.String("address", arr.String()),
		slog.Int("from", d.From),
		slog.Int("to", d.To),
		slog.Int("relocated", relocated))
	eventbus.Publish(b.Context(), events.ArrayExchanged{
		Address:   arr.String(),
		From:      d.From,
		To:        d.To,
		Relocated: relocated,
	})
}

// Cleanup destroys every row of f at index from or above.
func Cleanup(b *reactive.Batch, f *ArrayField, from int) {
	t, arr := f.tree, f.node.addr
	from = max(from, 0)
	destroyed := 0
	for _, idx := range t.IndexGroups(arr) {
		if idx >= from {
			destroyed += t.RemoveSubtree(b, arr.Append(idx))
		}
	}
	if destroyed == 0 {
		return
	}

	t.logger.DebugContext(b.Context(), "array cleanup",
		slog.String("address", arr.String()),
		slog.Int("from", from),
		slog.Int("destroyed", destroyed))
	eventbus.Publish(b.Context(), events.ArrayCleaned{
		Address:   arr.String(),
		From:      from,
		Destroyed: destroyed,
	})
}
