package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"deribit_book/internal/domain"
	"deribit_book/internal/event"
	"deribit_book/internal/infra"
)

// Engine is the single-threaded owner of the book.
// Feed workers push events into Inbox; nothing else touches the book.
type Engine struct {
	instrument  string
	inbox       chan event.Event
	book        *domain.Book
	awaiting    bool   // book is invalid until the next snapshot
	session     string // session of the last ingested snapshot
	lastSeq     uint64
	reportEvery time.Duration

	journal  domain.Journal
	reporter domain.QuoteReporter
	onResync func(session, reason string)
	metrics  *infra.Metrics

	// Boundary: latest top of book for external reads
	mu        sync.RWMutex
	quote     domain.Quote
	bidLevels int
	askLevels int
}

// NewEngine creates a new engine instance. journal and reporter may be nil.
func NewEngine(instrument string, inboxSize int, reportEvery time.Duration, journal domain.Journal, reporter domain.QuoteReporter) *Engine {
	return &Engine{
		instrument:  instrument,
		inbox:       make(chan event.Event, inboxSize),
		book:        domain.EmptyBook(),
		awaiting:    true,
		reportEvery: reportEvery,
		journal:     journal,
		reporter:    reporter,
		metrics:     infra.GlobalMetrics,
		quote:       domain.Quote{Instrument: instrument},
	}
}

// Inbox returns the event channel. External workers send events here.
func (e *Engine) Inbox() chan<- event.Event {
	return e.inbox
}

// OnResync registers the hook called whenever the book is dropped and a
// fresh snapshot is needed. session names the feed session the book came
// from. It runs on the engine goroutine.
func (e *Engine) OnResync(fn func(session, reason string)) {
	e.onResync = fn
}

// Run starts the main event loop. This MUST be run in a single goroutine.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("Engine started", slog.String("instrument", e.instrument))
	e.metrics.SetAwaitingSnapshot(e.awaiting)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			e.DumpState("panic_dump.json")
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	var tick <-chan time.Time
	if e.reportEvery > 0 {
		ticker := time.NewTicker(e.reportEvery)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("Engine stopping...")
			return
		case ev := <-e.inbox:
			e.processEvent(ev)
		case <-tick:
			e.report()
		}
	}
}

func (e *Engine) processEvent(ev event.Event) {
	if seq := ev.GetSeq(); e.lastSeq != 0 && seq != e.lastSeq+1 {
		// frames were abandoned on shutdown or a worker restarted; the book
		// itself is protected by change ids, so this is only logged
		slog.Warn("Frame sequence skipped", slog.Uint64("expected", e.lastSeq+1), slog.Uint64("got", seq))
	}
	e.lastSeq = ev.GetSeq()

	switch ev := ev.(type) {
	case *event.SnapshotEvent:
		e.handleSnapshot(ev)
	case *event.ChangeEvent:
		e.handleChange(ev)
		event.ReleaseChangeEvent(ev)
	case *event.DecodeFailureEvent:
		e.handleDecodeFailure(ev)
	default:
		slog.Warn("Unknown event type", slog.Any("type", ev.GetType()))
	}

	e.publish()
}

func (e *Engine) handleSnapshot(ev *event.SnapshotEvent) {
	e.book.Ingest(ev.Snapshot)
	e.session = ev.Session
	e.setAwaiting(false)
	e.metrics.RecordSnapshot()

	slog.Info("Snapshot ingested",
		slog.String("session", ev.Session),
		slog.Uint64("change_id", ev.Snapshot.SequenceID),
		slog.Time("exchange_time", ev.Ts.Time()),
		slog.Int("bids", e.book.BidDepth()),
		slog.Int("asks", e.book.AskDepth()),
	)
}

func (e *Engine) handleChange(ev *event.ChangeEvent) {
	if e.awaiting || ev.Session != e.session {
		e.metrics.RecordDropped()
		return
	}

	start := time.Now()
	bookID := e.book.SequenceID()
	outcome := e.book.Apply(ev.Delta)
	if outcome == domain.GapDetected {
		slog.Warn("Sequence gap detected",
			slog.Uint64("book_change_id", bookID),
			slog.Uint64("prev_change_id", ev.Delta.PrevSequenceID),
			slog.Uint64("change_id", ev.Delta.SequenceID),
		)
		e.metrics.RecordGap()
		e.resync(e.session, domain.ResyncEvent{
			Reason:       domain.ResyncReasonGap,
			BookChangeID: bookID,
			PrevChangeID: ev.Delta.PrevSequenceID,
			ChangeID:     ev.Delta.SequenceID,
		})
		return
	}

	e.metrics.RecordDelta(time.Since(start).Nanoseconds())
	if n := ev.Delta.UnknownActions(); n > 0 {
		slog.Debug("Unknown book actions applied as upserts", slog.Int("count", n))
		e.metrics.RecordUnknownActions(n)
	}
}

// handleDecodeFailure mirrors the placeholder semantics: an undecodable
// change is applied as an empty delta, an undecodable snapshot leaves an
// empty book.
func (e *Engine) handleDecodeFailure(ev *event.DecodeFailureEvent) {
	e.metrics.RecordDecodeError()

	// a valid book from another session is never dropped for a failure
	// that does not belong to it
	if !e.awaiting && ev.Session != e.session {
		e.metrics.RecordDropped()
		return
	}

	if ev.Kind == "snapshot" {
		e.book = domain.EmptyBook()
		e.resync(ev.Session, domain.ResyncEvent{Reason: domain.ResyncReasonDecodeSnapshot})
		return
	}

	if e.awaiting {
		e.metrics.RecordDropped()
		return
	}

	placeholder := event.AcquireChangeEvent()
	placeholder.BaseEvent = ev.BaseEvent
	placeholder.Instrument = e.instrument
	placeholder.Delta = domain.EmptyDelta()
	e.handleChange(placeholder)
	event.ReleaseChangeEvent(placeholder)
}

func (e *Engine) resync(session string, rec domain.ResyncEvent) {
	e.setAwaiting(true)
	e.session = ""

	if e.journal != nil {
		rec.Instrument = e.instrument
		rec.Session = session
		if err := e.journal.SaveResyncEvent(&rec); err != nil {
			slog.Error("Failed to journal resync", slog.Any("error", err))
		}
	}
	if e.onResync != nil {
		e.onResync(session, rec.Reason)
	}
}

func (e *Engine) setAwaiting(v bool) {
	e.awaiting = v
	e.metrics.SetAwaitingSnapshot(v)
}

func (e *Engine) publish() {
	q := e.book.Quote(e.instrument)
	e.mu.Lock()
	e.quote = q
	e.bidLevels = e.book.BidDepth()
	e.askLevels = e.book.AskDepth()
	e.mu.Unlock()
}

func (e *Engine) report() {
	if e.reporter == nil {
		return
	}
	q, bids, asks := e.CurrentQuote()
	e.reporter.Report(q, bids, asks)
}

// CurrentQuote returns the latest top of book and depth (external read).
func (e *Engine) CurrentQuote() (domain.Quote, int, int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.quote, e.bidLevels, e.askLevels
}

// DumpState writes the entire internal state to a file (for post-mortem).
func (e *Engine) DumpState(filename string) {
	slog.Info("Dumping internal state...", slog.String("file", filename))

	data := struct {
		Instrument string         `json:"instrument"`
		Session    string         `json:"session"`
		Awaiting   bool           `json:"awaiting_snapshot"`
		LastSeq    uint64         `json:"last_seq"`
		Quote      domain.Quote   `json:"quote"`
		Bids       []domain.Level `json:"bids"`
		Asks       []domain.Level `json:"asks"`
	}{
		Instrument: e.instrument,
		Session:    e.session,
		Awaiting:   e.awaiting,
		LastSeq:    e.lastSeq,
		Quote:      e.book.Quote(e.instrument),
		Bids:       e.book.Bids().Levels(),
		Asks:       e.book.Asks().Levels(),
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	err = os.WriteFile(filename, b, 0644)
	if err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
