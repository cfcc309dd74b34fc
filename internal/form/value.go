package form

import (
	"reflect"
	"slices"
)

// ArrayValue is the value of an array field: either Empty or Sequence.
type ArrayValue interface {
	isArrayValue()
}

// Empty is an absent value, or a value that is not a sequence. Raw keeps what
// was stored.
type Empty struct {
	Raw any
}

// Sequence is the item list of an array field.
type Sequence []any

func (Empty) isArrayValue()    {}
func (Sequence) isArrayValue() {}

// Clone returns a copy of s that shares no backing array with it.
func (s Sequence) Clone() Sequence { return slices.Clone(s) }

// ArrayValueOf classifies v. Any Go slice or array, including a nil slice, is
// a Sequence; only an untyped nil or a non-slice value is Empty.
func ArrayValueOf(v any) ArrayValue {
	switch x := v.(type) {
	case nil:
		return Empty{}
	case Sequence:
		return x
	case []any:
		return Sequence(x)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		seq := make(Sequence, rv.Len())
		for i := range seq {
			seq[i] = rv.Index(i).Interface()
		}
		return seq
	}
	return Empty{Raw: v}
}
