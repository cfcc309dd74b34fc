package form

import "context"

// InputSink receives the final value of every array mutation. Its result and
// error are returned to the mutator's caller unchanged. The context carries
// the mutated field; see FieldFromContext.
type InputSink interface {
	OnInput(ctx context.Context, value Sequence) (any, error)
}

// InputSinkFunc adapts a function to InputSink.
type InputSinkFunc func(ctx context.Context, value Sequence) (any, error)

func (f InputSinkFunc) OnInput(ctx context.Context, value Sequence) (any, error) {
	return f(ctx, value)
}

type fieldKey struct{}

func withField(ctx context.Context, f *ArrayField) context.Context {
	return context.WithValue(ctx, fieldKey{}, f)
}

// FieldFromContext returns the array field whose mutation is being reported
// to an input sink. Its Address is current at call time, so a sink shared by
// nested arrays that move with their rows keys values correctly.
func FieldFromContext(ctx context.Context) (*ArrayField, bool) {
	f, ok := ctx.Value(fieldKey{}).(*ArrayField)
	return f, ok
}

type nopSink struct{}

func (nopSink) OnInput(context.Context, Sequence) (any, error) { return nil, nil }

type multiSink []InputSink

// MultiSink forwards to each sink in order and stops at the first error. The
// result is the last sink's result.
func MultiSink(sinks ...InputSink) InputSink { return multiSink(sinks) }

func (m multiSink) OnInput(ctx context.Context, value Sequence) (any, error) {
	var res any
	for _, s := range m {
		r, err := s.OnInput(ctx, value.Clone())
		if err != nil {
			return r, err
		}
		res = r
	}
	return res, nil
}
