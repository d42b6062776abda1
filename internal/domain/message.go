package domain

// Actions seen on Deribit book channels. Only ActionDelete has its own
// semantics; every other value is an upsert.
const (
	ActionDelete = "delete"
	ActionNew    = "new"
	ActionChange = "change"
)

// Entry is one per-price instruction inside a Delta.
// Quantity is meaningless for delete entries.
type Entry struct {
	Action   string  `json:"action"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// IsDelete reports whether the entry removes its price level.
func (e Entry) IsDelete() bool {
	return e.Action == ActionDelete
}

// IsKnownAction reports whether the action is part of the documented vocabulary.
func (e Entry) IsKnownAction() bool {
	switch e.Action {
	case ActionDelete, ActionNew, ActionChange:
		return true
	default:
		return false
	}
}

// Delta is an incremental book update. It is valid only if PrevSequenceID
// equals the sequence id of the book it is applied to.
type Delta struct {
	PrevSequenceID uint64  `json:"prev_change_id"`
	SequenceID     uint64  `json:"change_id"`
	Bids           []Entry `json:"bids"`
	Asks           []Entry `json:"asks"`
}

// EmptyDelta returns the placeholder delta used when a change frame cannot
// be decoded. It carries no entries and zero ids.
func EmptyDelta() Delta {
	return Delta{}
}

// UnknownActions counts entries whose action is outside the documented
// vocabulary. They are still applied as upserts.
func (d Delta) UnknownActions() int {
	n := 0
	for _, e := range d.Bids {
		if !e.IsKnownAction() {
			n++
		}
	}
	for _, e := range d.Asks {
		if !e.IsKnownAction() {
			n++
		}
	}
	return n
}

// Snapshot is a full replacement of both sides of the book.
type Snapshot struct {
	SequenceID uint64  `json:"change_id"`
	Bids       []Level `json:"bids"`
	Asks       []Level `json:"asks"`
}
