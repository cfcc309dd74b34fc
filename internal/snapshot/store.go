package snapshot

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	address "github.com/hanpama/formstate/internal/address"
	form "github.com/hanpama/formstate/internal/form"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	// ErrNotFound is returned by Load when nothing was stored for an address.
	ErrNotFound = errors.New("snapshot: no value stored for address")
	// ErrNoField is returned when the store is called outside an array
	// mutation.
	ErrNoField = errors.New("snapshot: input has no array field in context")
)

// Store keeps the last value every array mutation propagated. It is an input
// sink shared by any number of arrays. Values belong to the field, not to
// the address it had when it was written, so a nested array that moves with
// its row is found under its current address.
type Store struct {
	mu     sync.Mutex
	logger *slog.Logger
	values map[*form.ArrayField]*structpb.ListValue
}

// NewStore creates an empty store. A nil logger means slog.Default.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger, values: make(map[*form.ArrayField]*structpb.ListValue)}
}

// OnInput records value for the field in ctx. The result is a copy of the
// stored ListValue.
func (s *Store) OnInput(ctx context.Context, value form.Sequence) (any, error) {
	f, ok := form.FieldFromContext(ctx)
	if !ok {
		return nil, ErrNoField
	}
	key := f.Address().String()
	l, err := List(value)
	if err != nil {
		s.logger.WarnContext(ctx, "rejecting array value",
			slog.String("address", key), slog.Any("error", err))
		return nil, err
	}
	s.mu.Lock()
	for old := range s.values {
		if !old.Node().Attached() {
			delete(s.values, old)
		}
	}
	s.values[f] = l
	s.mu.Unlock()
	s.logger.DebugContext(ctx, "array value stored",
		slog.String("address", key), slog.Int("length", len(l.Values)))
	return proto.Clone(l), nil
}

// Load returns the last value stored for the field now at addr. Values of
// destroyed fields are not found.
func (s *Store) Load(addr address.Address) (form.Sequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for f, l := range s.values {
		if f.Node().Attached() && f.Address().Equal(addr) {
			return form.Sequence(l.AsSlice()), nil
		}
	}
	return nil, ErrNotFound
}

// MarshalJSON encodes the values of all live fields as one JSON object keyed
// by their current addresses.
func (s *Store) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(s.values))}
	for f, l := range s.values {
		if !f.Node().Attached() {
			continue
		}
		out.Fields[f.Address().String()] = structpb.NewListValue(l)
	}
	return protojson.Marshal(out)
}
