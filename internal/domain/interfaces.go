package domain

import (
	"context"
)

// FeedWorker defines the interface for exchange WebSocket connectors
type FeedWorker interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
	// Resync drops the subscription of session so a fresh snapshot is
	// delivered. Requests for a session that already ended are ignored.
	Resync(session, reason string)
	// Done is closed when the worker gives up for good; Err says why.
	Done() <-chan struct{}
	Err() error
}

// Journal stores audit records. It is never read back to rebuild a book.
type Journal interface {
	SaveQuoteSample(sample *QuoteSample) error
	SaveResyncEvent(ev *ResyncEvent) error
}

// QuoteReporter receives the top of book at a fixed interval.
type QuoteReporter interface {
	Report(q Quote, bidLevels, askLevels int)
}
