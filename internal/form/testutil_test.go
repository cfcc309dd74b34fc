package form

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	address "github.com/hanpama/formstate/internal/address"
	reactive "github.com/hanpama/formstate/internal/reactive"
)

// recordingSink records every value it receives, like a mock runtime call log.
type recordingSink struct {
	mu     sync.Mutex
	calls  []Sequence
	result any
	err    error
}

func (s *recordingSink) OnInput(_ context.Context, v Sequence) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, v)
	return s.result, s.err
}

func (s *recordingSink) Calls() []Sequence {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sequence(nil), s.calls...)
}

func newTestTree() *Tree {
	return New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

// newTestArray builds an array field at "items" holding items, with a
// recording sink.
func newTestArray(t *testing.T, items ...any) (*Tree, *ArrayField, *recordingSink) {
	t.Helper()
	tree := newTestTree()
	sink := &recordingSink{}
	f, err := tree.NewArrayField(address.Parse("items"), WithInputSink(sink))
	if err != nil {
		t.Fatalf("NewArrayField: %v", err)
	}
	if items != nil {
		f.SetValue(context.Background(), Sequence(items))
	}
	return tree, f, sink
}

// rowState is the state seedRows attaches to each row, tagged by tag.
func rowState(tag string) map[string]State {
	return map[string]State{
		"":     {Flags: Flags{Touched: true}},
		"name": {Value: tag, Validation: Validation{Errors: []string{"bad " + tag}}},
	}
}

// seedRows gives row i the state rowState(tags[i]).
func seedRows(t *testing.T, tree *Tree, f *ArrayField, tags ...string) {
	t.Helper()
	err := tree.RunAtomically(context.Background(), func(b *reactive.Batch) error {
		for i, tag := range tags {
			for rel, s := range rowState(tag) {
				addr := f.Address().Append(i)
				if rel != "" {
					addr = addr.Append(rel)
				}
				tree.Resolve(addr).SetState(b, s)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

// partitionOf builds the expected partition from row index to tag.
func partitionOf(rows map[int]string) map[string]State {
	out := make(map[string]State)
	for i, tag := range rows {
		for rel, s := range rowState(tag) {
			key := fmt.Sprint(i)
			if rel != "" {
				key += "." + rel
			}
			out[key] = s
		}
	}
	return out
}

func diffPartition(want, got map[string]State) string {
	return cmp.Diff(want, got, cmpopts.EquateEmpty())
}

func tags(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("r%d", i)
	}
	return out
}

func seq(n int) Sequence {
	out := make(Sequence, n)
	for i := range out {
		out[i] = i
	}
	return out
}
