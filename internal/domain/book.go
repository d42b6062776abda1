package domain

import "math"

// Outcome is the result of applying a delta to a Book.
type Outcome int

const (
	// Applied means the delta chained from the book and was applied.
	Applied Outcome = iota
	// GapDetected means the delta did not chain. The book has been reset
	// and a fresh snapshot is required before applying anything else.
	GapDetected
)

// String returns the string representation of Outcome
func (o Outcome) String() string {
	switch o {
	case Applied:
		return "APPLIED"
	case GapDetected:
		return "GAP_DETECTED"
	default:
		return "UNKNOWN"
	}
}

// bookSide is one side of the book: its store, the cached best level and
// the ordering that defines "better" for that side.
type bookSide struct {
	store *PriceLevelStore
	best  Level
	empty Level

	// better is strict, atLeast is better-or-equal.
	better  func(a, b float64) bool
	atLeast func(a, b float64) bool
}

func newBidSide(sizeHint int) bookSide {
	return bookSide{
		store:   NewPriceLevelStore(sizeHint),
		empty:   Level{},
		better:  func(a, b float64) bool { return a > b },
		atLeast: func(a, b float64) bool { return a >= b },
	}
}

func newAskSide(sizeHint int) bookSide {
	empty := Level{Price: math.Inf(1)}
	return bookSide{
		store:   NewPriceLevelStore(sizeHint),
		best:    empty,
		empty:   empty,
		better:  func(a, b float64) bool { return a < b },
		atLeast: func(a, b float64) bool { return a <= b },
	}
}

func (s *bookSide) reset() {
	s.store.Clear()
	s.best = s.empty
}

// load replaces the side with levels, tracking the best in the same pass.
func (s *bookSide) load(levels []Level) {
	s.reset()
	have := false
	for _, lvl := range levels {
		s.store.Set(lvl.Price, lvl.Quantity)
		if !have || s.atLeast(lvl.Price, s.best.Price) {
			s.best = lvl
			have = true
		}
	}
}

// apply runs one side of a delta. Deleting the cached best only flags a
// recompute; the store is scanned at most once, after all entries.
func (s *bookSide) apply(entries []Entry) {
	recompute := false
	for _, e := range entries {
		if e.IsDelete() {
			s.store.Delete(e.Price)
			if e.Price == s.best.Price {
				s.best = s.empty
				recompute = true
			}
			continue
		}

		s.store.Set(e.Price, e.Quantity)
		if s.atLeast(e.Price, s.best.Price) {
			s.best = Level{Price: e.Price, Quantity: e.Quantity}
		}
	}

	if recompute {
		s.best = s.empty
		if best, ok := s.store.Best(s.better); ok {
			s.best = best
		}
	}
}

// Book is a local replica of one instrument's order book.
// A Book has a single owner and is not safe for concurrent use.
type Book struct {
	sequenceID uint64
	bids       bookSide
	asks       bookSide
}

// EmptyBook returns a book with no levels, sequence id 0, best bid 0/0 and
// best ask +Inf/0. A reset book is equal to this one.
func EmptyBook() *Book {
	return &Book{
		bids: newBidSide(0),
		asks: newAskSide(0),
	}
}

// NewBookFromSnapshot builds a fresh book from a full snapshot.
func NewBookFromSnapshot(s Snapshot) *Book {
	b := &Book{
		bids: newBidSide(len(s.Bids)),
		asks: newAskSide(len(s.Asks)),
	}
	b.Ingest(s)
	return b
}

// Ingest replaces the whole book with the snapshot contents.
func (b *Book) Ingest(s Snapshot) {
	b.sequenceID = s.SequenceID
	b.bids.load(s.Bids)
	b.asks.load(s.Asks)
}

// Apply applies one incremental update.
// The sequencing check runs before any mutation: a delta that does not
// chain from the current sequence id resets the book and is not applied.
func (b *Book) Apply(d Delta) Outcome {
	if !b.chains(d) {
		b.Reset()
		return GapDetected
	}

	b.sequenceID = d.SequenceID
	b.bids.apply(d.Bids)
	b.asks.apply(d.Asks)
	return Applied
}

func (b *Book) chains(d Delta) bool {
	return d.PrevSequenceID == b.sequenceID
}

// Reset returns the book to the empty state in place.
func (b *Book) Reset() {
	b.sequenceID = 0
	b.bids.reset()
	b.asks.reset()
}

// SequenceID returns the id of the last applied change, 0 when reset.
func (b *Book) SequenceID() uint64 {
	return b.sequenceID
}

// BestBid returns the cached best bid; 0/0 when there are no bids.
func (b *Book) BestBid() Level {
	return b.bids.best
}

// BestAsk returns the cached best ask; +Inf/0 when there are no asks.
func (b *Book) BestAsk() Level {
	return b.asks.best
}

// BidDepth returns the number of bid levels.
func (b *Book) BidDepth() int {
	return b.bids.store.Len()
}

// AskDepth returns the number of ask levels.
func (b *Book) AskDepth() int {
	return b.asks.store.Len()
}

// Bids exposes the bid store for read-only inspection.
func (b *Book) Bids() *PriceLevelStore {
	return b.bids.store
}

// Asks exposes the ask store for read-only inspection.
func (b *Book) Asks() *PriceLevelStore {
	return b.asks.store
}

// IsCrossed reports whether the best bid reaches the best ask.
func (b *Book) IsCrossed() bool {
	if b.BidDepth() == 0 || b.AskDepth() == 0 {
		return false
	}
	return b.bids.best.Price >= b.asks.best.Price
}

// Quote returns the top of book with empty sides as nil.
func (b *Book) Quote(instrument string) Quote {
	q := Quote{Instrument: instrument, SequenceID: b.sequenceID}
	if b.BidDepth() > 0 {
		bid := b.bids.best
		q.Bid = &bid
	}
	if b.AskDepth() > 0 {
		ask := b.asks.best
		q.Ask = &ask
	}
	return q
}
