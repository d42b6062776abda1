package service

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"deribit_book/internal/domain"
	"deribit_book/pkg/quant"

	"github.com/shopspring/decimal"
)

// Reporter renders the top of book once per engine tick and keeps a
// sampled audit trail in the journal.
type Reporter struct {
	out         io.Writer
	journal     domain.Journal
	maxSpread   decimal.Decimal // zero disables the spread warning
	sampleEvery int             // zero disables sampling

	mu    sync.Mutex
	ticks int
}

// NewReporter creates a new Reporter. journal may be nil.
func NewReporter(out io.Writer, journal domain.Journal, maxSpread decimal.Decimal, sampleEvery int) *Reporter {
	return &Reporter{
		out:         out,
		journal:     journal,
		maxSpread:   maxSpread,
		sampleEvery: sampleEvery,
	}
}

// Report implements domain.QuoteReporter
func (r *Reporter) Report(q domain.Quote, bidLevels, askLevels int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ticks++

	if !q.IsReady() {
		slog.Debug("Book not ready", slog.String("instrument", q.Instrument))
		return
	}

	fmt.Fprintln(r.out, FormatQuote(q))

	attrs := []any{
		slog.String("instrument", q.Instrument),
		slog.Uint64("change_id", q.SequenceID),
		slog.Int("bid_levels", bidLevels),
		slog.Int("ask_levels", askLevels),
	}
	if spread := q.Spread(); spread != nil {
		attrs = append(attrs, slog.String("spread", spread.String()))
		if r.maxSpread.IsPositive() && spread.GreaterThan(r.maxSpread) {
			slog.Warn("Spread above threshold", append(attrs, slog.String("max_spread", r.maxSpread.String()))...)
		}
	}
	if q.IsCrossed() {
		slog.Warn("Crossed book", attrs...)
	}
	slog.Debug("Top of book", attrs...)

	if r.journal != nil && r.sampleEvery > 0 && r.ticks%r.sampleEvery == 0 {
		if err := r.journal.SaveQuoteSample(domain.NewQuoteSample(q, bidLevels, askLevels)); err != nil {
			slog.Error("Failed to save quote sample", slog.Any("error", err))
		}
	}
}

// FormatQuote renders the classic one-line summary. Empty sides print as "-".
func FormatQuote(q domain.Quote) string {
	bidPrice, bidQty := "-", "0"
	if q.Bid != nil {
		bidPrice = quant.FormatPrice(q.Bid.Price)
		bidQty = decimal.NewFromFloat(q.Bid.Quantity).String()
	}
	askPrice, askQty := "-", "0"
	if q.Ask != nil {
		askPrice = quant.FormatPrice(q.Ask.Price)
		askQty = decimal.NewFromFloat(q.Ask.Quantity).String()
	}
	return fmt.Sprintf("Highest Bid is: %s with %s quantity, while Lowest Ask is: %s with %s quantity!",
		bidPrice, bidQty, askPrice, askQty)
}
