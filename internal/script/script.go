// Package script replays a YAML description of array mutations against a
// form tree.
//
// A script names a default array, its initial items and a list of steps:
//
//	array: people
//	initial: [ann, bob]
//	steps:
//	  - op: state
//	    path: 1.name
//	    errors: [too short]
//	    touched: true
//	  - op: unshift
//	    items: [cat]
//	  - op: moveDown
//	    index: 0
//
// Steps may name another array with "array", e.g. a nested one such as
// people.0.tags; it is created on first use.
package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	address "github.com/hanpama/formstate/internal/address"
	form "github.com/hanpama/formstate/internal/form"
	reactive "github.com/hanpama/formstate/internal/reactive"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownOp = errors.New("script: unknown op")
	ErrNoArray   = errors.New("script: step names no array")
)

// Script is a decoded replay script.
type Script struct {
	Array   string `yaml:"array"`
	Initial []any  `yaml:"initial"`
	Steps   []Step `yaml:"steps"`
}

// Step is one operation. Which fields apply depends on Op.
type Step struct {
	Op    string `yaml:"op"`
	Array string `yaml:"array"`

	Index int       `yaml:"index"`
	From  int       `yaml:"from"`
	To    int       `yaml:"to"`
	Items []any     `yaml:"items"`
	Value yaml.Node `yaml:"value"`

	// state
	Path      string   `yaml:"path"`
	Errors    []string `yaml:"errors"`
	Warnings  []string `yaml:"warnings"`
	Successes []string `yaml:"successes"`
	Touched   *bool    `yaml:"touched"`
	Visited   *bool    `yaml:"visited"`
	Display   string   `yaml:"display"`
}

// Load decodes a script. Unknown keys are rejected.
func Load(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Script
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return &s, nil
		}
		return nil, fmt.Errorf("script: decode: %w", err)
	}
	return &s, nil
}

// Runner applies scripts to a tree.
type Runner struct {
	Tree *form.Tree
	// Sink, if set, is the input sink of every array the runner creates.
	// form.FieldFromContext tells the arrays apart.
	Sink   form.InputSink
	Logger *slog.Logger
}

// Run seeds the default array with Initial and applies every step in order.
// It stops at the first failing step.
func (r *Runner) Run(ctx context.Context, s *Script) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if s.Array != "" && s.Initial != nil {
		f, err := r.field(address.Parse(s.Array))
		if err != nil {
			return err
		}
		f.SetValue(ctx, form.Sequence(s.Initial))
	}
	for i, st := range s.Steps {
		name := st.Array
		if name == "" {
			name = s.Array
		}
		if name == "" {
			return fmt.Errorf("step %d (%s): %w", i, st.Op, ErrNoArray)
		}
		f, err := r.field(address.Parse(name))
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i, st.Op, err)
		}
		res, err := r.apply(ctx, f, st)
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i, st.Op, err)
		}
		logger.DebugContext(ctx, "script step",
			slog.Int("step", i),
			slog.String("op", st.Op),
			slog.String("array", name),
			slog.Int("length", f.Len()),
			slog.Any("result", res))
	}
	return nil
}

func (r *Runner) field(addr address.Address) (*form.ArrayField, error) {
	if n, ok := r.Tree.Lookup(addr); ok {
		if f, ok := n.ArrayField(); ok {
			return f, nil
		}
	}
	var opts []form.FieldOption
	if r.Sink != nil {
		opts = append(opts, form.WithInputSink(r.Sink))
	}
	return r.Tree.NewArrayField(addr, opts...)
}

func (r *Runner) apply(ctx context.Context, f *form.ArrayField, st Step) (any, error) {
	switch st.Op {
	case "push":
		return f.Push(ctx, st.Items...)
	case "pop":
		return f.Pop(ctx)
	case "insert":
		return f.Insert(ctx, st.Index, st.Items...)
	case "remove":
		return f.Remove(ctx, st.Index)
	case "shift":
		return f.Shift(ctx)
	case "unshift":
		return f.Unshift(ctx, st.Items...)
	case "move":
		return f.Move(ctx, st.From, st.To)
	case "moveUp":
		return f.MoveUp(ctx, st.Index)
	case "moveDown":
		return f.MoveDown(ctx, st.Index)
	case "set":
		v, err := decodeValue(st.Value)
		if err != nil {
			return nil, err
		}
		f.SetValue(ctx, v)
		return nil, nil
	case "destroy":
		f.Destroy(ctx)
		return nil, nil
	case "state":
		return nil, r.setState(ctx, f, st)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownOp, st.Op)
}

func (r *Runner) setState(ctx context.Context, f *form.ArrayField, st Step) error {
	addr := f.Address()
	if st.Path != "" {
		addr = addr.Append(address.Parse(st.Path)...)
	}
	display, err := parseDisplay(st.Display)
	if err != nil {
		return err
	}
	value, err := decodeValue(st.Value)
	if err != nil {
		return err
	}
	return r.Tree.RunAtomically(ctx, func(b *reactive.Batch) error {
		n := r.Tree.Resolve(addr)
		if st.Value.Kind != 0 {
			n.SetValue(b, value)
		}
		if st.Errors != nil {
			n.SetErrors(b, st.Errors...)
		}
		if st.Warnings != nil {
			n.SetWarnings(b, st.Warnings...)
		}
		if st.Successes != nil {
			n.SetSuccesses(b, st.Successes...)
		}
		if st.Touched != nil || st.Visited != nil || display != nil {
			flags := n.Flags()
			if st.Touched != nil {
				flags.Touched = *st.Touched
			}
			if st.Visited != nil {
				flags.Visited = *st.Visited
			}
			if display != nil {
				flags.Display = *display
			}
			n.SetFlags(b, flags)
		}
		return nil
	})
}

func decodeValue(n yaml.Node) (any, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, fmt.Errorf("script: value: %w", err)
	}
	return v, nil
}

func parseDisplay(s string) (*form.Display, error) {
	var d form.Display
	switch s {
	case "":
		return nil, nil
	case "visible":
		d = form.DisplayVisible
	case "hidden":
		d = form.DisplayHidden
	case "none":
		d = form.DisplayNone
	default:
		return nil, fmt.Errorf("script: unknown display %q", s)
	}
	return &d, nil
}
