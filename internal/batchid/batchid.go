// Package batchid carries the id of the open reactive batch in a context so
// that event subscribers can correlate everything published during one
// atomic unit of change.
package batchid

import "context"

// key is the context key for the batch ID.
type key struct{}

// NewContext returns a copy of parent carrying id.
func NewContext(parent context.Context, id uint64) context.Context {
	return context.WithValue(parent, key{}, id)
}

// FromContext extracts the batch ID from ctx.
// It returns the ID and whether it was present.
func FromContext(ctx context.Context) (uint64, bool) {
	v := ctx.Value(key{})
	id, ok := v.(uint64)
	return id, ok
}
