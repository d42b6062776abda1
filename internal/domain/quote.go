package domain

import (
	"github.com/shopspring/decimal"
)

// Quote is the read-side view of a book handed to reporters.
// A nil side means that side of the book is empty.
type Quote struct {
	Instrument string `json:"instrument"`
	SequenceID uint64 `json:"change_id"`
	Bid        *Level `json:"best_bid,omitempty"`
	Ask        *Level `json:"best_ask,omitempty"`
}

// Spread returns ask - bid, or nil when either side is missing.
func (q Quote) Spread() *decimal.Decimal {
	if q.Bid == nil || q.Ask == nil {
		return nil
	}
	spread := decimal.NewFromFloat(q.Ask.Price).Sub(decimal.NewFromFloat(q.Bid.Price))
	return &spread
}

// IsCrossed returns true if the best bid is at or above the best ask.
func (q Quote) IsCrossed() bool {
	if q.Bid == nil || q.Ask == nil {
		return false
	}
	return q.Bid.Price >= q.Ask.Price
}

// IsReady returns true once the book has a sequence id.
func (q Quote) IsReady() bool {
	return q.SequenceID != 0
}
