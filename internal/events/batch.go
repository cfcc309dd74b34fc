package events

// BatchCommitted is emitted when the outermost reactive batch closes, before
// reactions run. Context carries the batch id.
type BatchCommitted struct {
	ID     uint64
	Writes int
}

// ReactionsSettled is emitted after the reactions scheduled by a commit have
// run. Rounds is the number of settle passes; Exhausted reports that the
// observer stopped at its round limit.
type ReactionsSettled struct {
	Rounds    int
	Exhausted bool
}
