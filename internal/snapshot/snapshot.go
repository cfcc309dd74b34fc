// Package snapshot renders a form tree as a protobuf Struct keyed by address
// and persists array values through an input sink.
package snapshot

import (
	"fmt"
	"maps"
	"reflect"
	"slices"

	form "github.com/hanpama/formstate/internal/form"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Encode returns one entry per attached node of t, keyed by its dotted
// address.
func Encode(t *form.Tree) (*structpb.Struct, error) {
	out := &structpb.Struct{Fields: make(map[string]*structpb.Value)}
	for _, n := range t.Nodes() {
		s, err := encodeState(n.State())
		if err != nil {
			return nil, fmt.Errorf("snapshot: %s: %w", n.Address(), err)
		}
		out.Fields[n.Address().String()] = structpb.NewStructValue(s)
	}
	return out, nil
}

// Marshal encodes t as indented JSON.
func Marshal(t *form.Tree) ([]byte, error) {
	s, err := Encode(t)
	if err != nil {
		return nil, err
	}
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
}

func encodeState(s form.State) (*structpb.Struct, error) {
	v, err := Value(s.Value)
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"value":     v,
		"errors":    stringList(s.Validation.Errors),
		"warnings":  stringList(s.Validation.Warnings),
		"successes": stringList(s.Validation.Successes),
		"touched":   structpb.NewBoolValue(s.Flags.Touched),
		"visited":   structpb.NewBoolValue(s.Flags.Visited),
		"modified":  structpb.NewBoolValue(s.Flags.Modified),
		"display":   structpb.NewStringValue(s.Flags.Display.String()),
	}}, nil
}

func stringList(ss []string) *structpb.Value {
	vs := make([]*structpb.Value, len(ss))
	for i, s := range ss {
		vs[i] = structpb.NewStringValue(s)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vs})
}

// Value converts a field value to a protobuf Value. Slices, arrays and maps
// with string keys are converted element by element; other values must be
// accepted by structpb.NewValue.
func Value(v any) (*structpb.Value, error) {
	switch x := v.(type) {
	case nil:
		return structpb.NewNullValue(), nil
	case *structpb.Value:
		return x, nil
	case form.Sequence:
		return list([]any(x))
	case []any:
		return list(x)
	case map[string]any:
		return object(x)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return list(items)
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			m := make(map[string]any, rv.Len())
			for it := rv.MapRange(); it.Next(); {
				m[it.Key().String()] = it.Value().Interface()
			}
			return object(m)
		}
	}
	return structpb.NewValue(v)
}

func list(items []any) (*structpb.Value, error) {
	l, err := List(items)
	if err != nil {
		return nil, err
	}
	return structpb.NewListValue(l), nil
}

// List converts items to a protobuf ListValue.
func List(items []any) (*structpb.ListValue, error) {
	l := &structpb.ListValue{Values: make([]*structpb.Value, len(items))}
	for i, it := range items {
		v, err := Value(it)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		l.Values[i] = v
	}
	return l, nil
}

func object(m map[string]any) (*structpb.Value, error) {
	s := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(m))}
	for _, k := range slices.Sorted(maps.Keys(m)) {
		v, err := Value(m[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		s.Fields[k] = v
	}
	return structpb.NewStructValue(s), nil
}
