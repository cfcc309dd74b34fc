package events

import "time"

// FieldCreated is emitted when a node is first resolved at Address.
type FieldCreated struct {
	Address string
}

// FieldDestroyed is emitted when a node is removed from the tree and its
// disposers have run.
type FieldDestroyed struct {
	Address string
}

// MutationStart is emitted when an array mutator opens its batch.
type MutationStart struct {
	Address string
	Op      string
}

// MutationFinish is emitted after the input sink returns. Err is the sink
// error, if any.
type MutationFinish struct {
	Address  string
	Op       string
	Length   int
	Err      error
	Duration time.Duration
}

// ArraySpliced is emitted after descendant state of an array was re-addressed
// for a splice.
type ArraySpliced struct {
	Address     string
	Start       int
	DeleteCount int
	InsertCount int
	Relocated   int
	Destroyed   int
}

// ArrayExchanged is emitted after the state of two rows was swapped.
type ArrayExchanged struct {
	Address   string
	From      int
	To        int
	Relocated int
}

// ArrayCleaned is emitted after rows at or beyond From were discarded.
type ArrayCleaned struct {
	Address   string
	From      int
	Destroyed int
}
