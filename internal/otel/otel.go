package otel

import (
	"context"
	"sync"

	batchid "github.com/hanpama/formstate/internal/batchid"
	eventbus "github.com/hanpama/formstate/internal/eventbus"
	events "github.com/hanpama/formstate/internal/events"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	detach := Attach(tp)
	return func(ctx context.Context) error {
		detach()
		return tp.Shutdown(ctx)
	}, nil
}

// Attach subscribes span producers backed by tp to the global event bus. Each
// array mutation becomes one span; synchronizer deltas inside it become span
// events. Deltas outside a mutation, such as auto-cleanup, get their own span.
func Attach(tp trace.TracerProvider) (detach func()) {
	s := &subscriber{tracer: tp.Tracer("formstate")}
	return s.register()
}

type subscriber struct {
	tracer    trace.Tracer
	mutations sync.Map // batch id -> trace.Span
}

func (s *subscriber) register() func() {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.MutationStart) {
			id, _ := batchid.FromContext(ctx)
			_, span := s.tracer.Start(ctx, "form.array."+e.Op)
			span.SetAttributes(
				attribute.String("form.address", e.Address),
				attribute.String("form.op", e.Op),
				attribute.Int64("form.batch_id", int64(id)),
			)
			s.mutations.Store(id, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.MutationFinish) {
			id, _ := batchid.FromContext(ctx)
			v, ok := s.mutations.LoadAndDelete(id)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(attribute.Int("form.length", e.Length))
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, e.Err.Error())
			}
			span.End()
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.ArraySpliced) {
			s.delta(ctx, "form.array.splice", e.Address,
				attribute.Int("form.start", e.Start),
				attribute.Int("form.delete_count", e.DeleteCount),
				attribute.Int("form.insert_count", e.InsertCount),
				attribute.Int("form.relocated", e.Relocated),
				attribute.Int("form.destroyed", e.Destroyed),
			)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.ArrayExchanged) {
			s.delta(ctx, "form.array.exchange", e.Address,
				attribute.Int("form.from", e.From),
				attribute.Int("form.to", e.To),
				attribute.Int("form.relocated", e.Relocated),
			)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.ArrayCleaned) {
			s.delta(ctx, "form.array.cleanup", e.Address,
				attribute.Int("form.from", e.From),
				attribute.Int("form.destroyed", e.Destroyed),
			)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (s *subscriber) delta(ctx context.Context, name, addr string, attrs ...attribute.KeyValue) {
	attrs = append(attrs, attribute.String("form.address", addr))
	id, _ := batchid.FromContext(ctx)
	if v, ok := s.mutations.Load(id); ok {
		v.(trace.Span).AddEvent(name, trace.WithAttributes(attrs...))
		return
	}
	_, span := s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	span.SetAttributes(attribute.Int64("form.batch_id", int64(id)))
	span.End()
}
