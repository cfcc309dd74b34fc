package form

import (
	"log/slog"

	reactive "github.com/hanpama/formstate/internal/reactive"
)

// Options configures a Tree.
//
// Defaults:
// - Observer: a new reactive.Observer sharing Logger
// - Logger:   slog.Default()
type Options struct {
	Observer *reactive.Observer
	Logger   *slog.Logger
}

// Option mutates Options.
type Option func(*Options)

func defaultOptions() *Options { return &Options{} }

func WithObserver(o *reactive.Observer) Option { return func(opt *Options) { opt.Observer = o } }
func WithLogger(l *slog.Logger) Option         { return func(opt *Options) { opt.Logger = l } }

type fieldOptions struct {
	sink InputSink
}

// FieldOption configures an ArrayField.
type FieldOption func(*fieldOptions)

// WithInputSink sets where mutators propagate the final value. Without one,
// mutators return a nil result.
func WithInputSink(s InputSink) FieldOption { return func(o *fieldOptions) { o.sink = s } }
