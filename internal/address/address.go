// Package address implements structural paths that locate field nodes in a
// form tree. An Address is a sequence of segments; each segment is either a
// string key or a non-negative int index.
package address

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Segment any

type Address []Segment

// New builds an address from segments. Integer kinds are normalized to int and
// all-digit string keys are treated as indices, so "0" and 0 name the same
// segment. New panics on a negative index or a key containing '.', which
// would collide with another address in dotted form.
func New(segs ...Segment) Address {
	a := make(Address, 0, len(segs))
	for _, s := range segs {
		a = append(a, normalize(s))
	}
	return a
}

// Parse reads the dotted form produced by String. The empty string is the root
// address.
func Parse(s string) Address {
	if s == "" {
		return Address{}
	}
	parts := strings.Split(s, ".")
	a := make(Address, 0, len(parts))
	for _, p := range parts {
		a = append(a, normalize(p))
	}
	return a
}

// normalize panics on segments no dotted string can represent: negative or
// overflowing indices and keys containing '.'.
func normalize(s Segment) Segment {
	switch v := s.(type) {
	case int:
		return index(int64(v))
	case int8:
		return index(int64(v))
	case int16:
		return index(int64(v))
	case int32:
		return index(int64(v))
	case int64:
		return index(v)
	case uint:
		return uindex(uint64(v))
	case uint8:
		return int(v)
	case uint16:
		return int(v)
	case uint32:
		return uindex(uint64(v))
	case uint64:
		return uindex(v)
	case string:
		if isDigits(v) {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return key(v)
	default:
		return key(fmt.Sprint(v))
	}
}

func index(n int64) int {
	if n < 0 || n > math.MaxInt {
		panic(fmt.Sprintf("address: index %d out of range", n))
	}
	return int(n)
}

func uindex(n uint64) int {
	if n > math.MaxInt {
		panic(fmt.Sprintf("address: index %d out of range", n))
	}
	return int(n)
}

func key(s string) string {
	if strings.Contains(s, ".") {
		panic(fmt.Sprintf("address: key %q contains '.'", s))
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (a Address) String() string {
	var b strings.Builder
	for i, seg := range a {
		if i > 0 {
			b.WriteByte('.')
		}
		switch v := seg.(type) {
		case int:
			b.WriteString(strconv.Itoa(v))
		case string:
			b.WriteString(v)
		}
	}
	return b.String()
}

// Append returns a new address with segs added. a is never modified. Segments
// are normalized as by New.
func (a Address) Append(segs ...Segment) Address {
	out := make(Address, len(a), len(a)+len(segs))
	copy(out, a)
	for _, s := range segs {
		out = append(out, normalize(s))
	}
	return out
}

// Parent returns the address without its last segment. The root is its own
// parent.
func (a Address) Parent() Address {
	if len(a) == 0 {
		return Address{}
	}
	out := make(Address, len(a)-1)
	copy(out, a[:len(a)-1])
	return out
}

func (a Address) Equal(b Address) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether p is a prefix of a. Every address has itself as a
// prefix.
func (a Address) HasPrefix(p Address) bool {
	if len(p) > len(a) {
		return false
	}
	for i := range p {
		if a[i] != p[i] {
			return false
		}
	}
	return true
}

// IsDescendantOf reports whether p is a strict prefix of a.
func (a Address) IsDescendantOf(p Address) bool {
	return len(a) > len(p) && a.HasPrefix(p)
}

// IndexUnder returns the index segment that directly follows prefix in a.
func (a Address) IndexUnder(prefix Address) (int, bool) {
	if !a.IsDescendantOf(prefix) {
		return 0, false
	}
	idx, ok := a[len(prefix)].(int)
	return idx, ok
}

// WithIndexUnder returns a copy of a whose segment after prefix is replaced by
// idx. It panics if a is not a descendant of prefix.
func (a Address) WithIndexUnder(prefix Address, idx int) Address {
	if !a.IsDescendantOf(prefix) {
		panic(fmt.Sprintf("address: %q is not under %q", a, prefix))
	}
	out := make(Address, len(a))
	idx = index(int64(idx))
	copy(out, a)
	out[len(prefix)] = idx
	return out
}

// Rebase returns a copy of a with the leading from prefix replaced by to.
func (a Address) Rebase(from, to Address) Address {
	if !a.HasPrefix(from) {
		panic(fmt.Sprintf("address: %q is not under %q", a, from))
	}
	out := make(Address, 0, len(to)+len(a)-len(from))
	out = append(out, to...)
	out = append(out, a[len(from):]...)
	return out
}

// Compare orders addresses segment by segment. Ints sort numerically and
// before strings; a shorter address sorts before its descendants.
func Compare(a, b Address) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareSegment(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

func compareSegment(x, y Segment) int {
	xi, xInt := x.(int)
	yi, yInt := y.(int)
	switch {
	case xInt && yInt:
		switch {
		case xi < yi:
			return -1
		case xi > yi:
			return 1
		}
		return 0
	case xInt:
		return -1
	case yInt:
		return 1
	}
	return strings.Compare(x.(string), y.(string))
}
