package reactive

import "log/slog"

const defaultMaxRounds = 100

// Options configures an Observer.
//
// Defaults:
// - Logger:    slog.Default()
// - MaxRounds: 100 settle passes per commit
type Options struct {
	Logger    *slog.Logger
	MaxRounds int
}

// Option mutates Options.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{MaxRounds: defaultMaxRounds}
}

func WithLogger(l *slog.Logger) Option { return func(o *Options) { o.Logger = l } }
func WithMaxRounds(n int) Option       { return func(o *Options) { o.MaxRounds = n } }
