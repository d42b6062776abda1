package domain

import (
	"time"
)

// QuoteSample is a periodic top-of-book record kept for auditing.
// Empty sides are stored as NULL.
type QuoteSample struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Instrument  string    `gorm:"index" json:"instrument"`
	ChangeID    uint64    `json:"change_id"`
	BidPrice    *float64  `json:"bid_price,omitempty"`
	BidQuantity *float64  `json:"bid_quantity,omitempty"`
	AskPrice    *float64  `json:"ask_price,omitempty"`
	AskQuantity *float64  `json:"ask_quantity,omitempty"`
	BidLevels   int       `json:"bid_levels"`
	AskLevels   int       `json:"ask_levels"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// NewQuoteSample flattens a quote into a sample row.
func NewQuoteSample(q Quote, bidLevels, askLevels int) *QuoteSample {
	s := &QuoteSample{
		Instrument: q.Instrument,
		ChangeID:   q.SequenceID,
		BidLevels:  bidLevels,
		AskLevels:  askLevels,
	}
	if q.Bid != nil {
		price, qty := q.Bid.Price, q.Bid.Quantity
		s.BidPrice, s.BidQuantity = &price, &qty
	}
	if q.Ask != nil {
		price, qty := q.Ask.Price, q.Ask.Quantity
		s.AskPrice, s.AskQuantity = &price, &qty
	}
	return s
}

// ResyncEvent records why a book was thrown away and resubscribed.
type ResyncEvent struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Instrument   string    `gorm:"index" json:"instrument"`
	Session      string    `gorm:"index" json:"session"`
	Reason       string    `json:"reason"` // "gap", "decode_snapshot"
	BookChangeID uint64    `json:"book_change_id"`
	PrevChangeID uint64    `json:"prev_change_id"`
	ChangeID     uint64    `json:"change_id"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

const (
	ResyncReasonGap            = "gap"
	ResyncReasonDecodeSnapshot = "decode_snapshot"
)
