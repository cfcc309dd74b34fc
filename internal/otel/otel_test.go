package otel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	address "github.com/hanpama/formstate/internal/address"
	eventbus "github.com/hanpama/formstate/internal/eventbus"
	form "github.com/hanpama/formstate/internal/form"
	reactive "github.com/hanpama/formstate/internal/reactive"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setup(t *testing.T, sink form.InputSink) (*tracetest.SpanRecorder, *form.Tree, *form.ArrayField) {
	t.Helper()
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	detach := Attach(tp)
	t.Cleanup(detach)

	tree := form.New(form.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	opts := []form.FieldOption{}
	if sink != nil {
		opts = append(opts, form.WithInputSink(sink))
	}
	f, err := tree.NewArrayField(address.Parse("items"), opts...)
	require.NoError(t, err)
	return sr, tree, f
}

func TestMutationSpanCarriesDeltaEvents(t *testing.T) {
	sr, _, f := setup(t, nil)
	f.SetValue(context.Background(), []any{"a", "b", "c"})

	_, err := f.Remove(context.Background(), 1)
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	require.Equal(t, "form.array.remove", span.Name())
	require.Len(t, span.Events(), 1)
	require.Equal(t, "form.array.splice", span.Events()[0].Name)

	attrs := map[string]any{}
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	require.Equal(t, "items", attrs["form.address"])
	require.Equal(t, int64(2), attrs["form.length"])
}

func TestAutoCleanupGetsOwnSpan(t *testing.T) {
	sr, tree, f := setup(t, nil)
	ctx := context.Background()
	f.SetValue(ctx, []any{"a", "b"})
	_ = tree.RunAtomically(ctx, func(b *reactive.Batch) error {
		tree.Resolve(f.Address().Append(1, "name")).SetErrors(b, "bad")
		return nil
	})

	f.SetValue(ctx, []any{"a"})

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "form.array.cleanup", spans[0].Name())
}

func TestSinkErrorMarksSpan(t *testing.T) {
	boom := errors.New("rejected")
	sr, _, f := setup(t, form.InputSinkFunc(func(context.Context, form.Sequence) (any, error) {
		return nil, boom
	}))

	_, err := f.Push(context.Background(), 1)
	require.ErrorIs(t, err, boom)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, codes.Error, spans[0].Status().Code)
	require.Equal(t, "rejected", spans[0].Status().Description)
}
