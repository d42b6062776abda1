package event

import (
	"sync"
)

// changePool provides sync.Pool for high-frequency change event allocation.
// Use this to reduce GC pressure in the hotpath.
//
// Usage:
//
//	ev := AcquireChangeEvent()
//	ev.Delta.Bids = append(ev.Delta.Bids, entries...)
//	// ... send to engine, engine applies ...
//	ReleaseChangeEvent(ev)  // Return to pool after processing
var changePool = sync.Pool{
	New: func() interface{} {
		return &ChangeEvent{}
	},
}

// AcquireChangeEvent gets a ChangeEvent from the pool.
// The returned event has zero values; entry slices keep their capacity.
func AcquireChangeEvent() *ChangeEvent {
	return changePool.Get().(*ChangeEvent)
}

// ReleaseChangeEvent returns a ChangeEvent to the pool.
// The event is reset before being pooled; entry slices are truncated, not freed.
func ReleaseChangeEvent(ev *ChangeEvent) {
	if ev == nil {
		return
	}
	ev.Seq = 0
	ev.Ts = 0
	ev.Session = ""
	ev.Instrument = ""
	ev.Delta.PrevSequenceID = 0
	ev.Delta.SequenceID = 0
	ev.Delta.Bids = ev.Delta.Bids[:0]
	ev.Delta.Asks = ev.Delta.Asks[:0]

	changePool.Put(ev)
}

// Warmup pre-allocates event objects to reduce GC pressure at startup.
// It acquires and releases a batch of events.
func Warmup() {
	const batchSize = 256

	evs := make([]*ChangeEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		evs = append(evs, AcquireChangeEvent())
	}
	for _, ev := range evs {
		ReleaseChangeEvent(ev)
	}
}
