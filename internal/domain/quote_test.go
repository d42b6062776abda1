package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestQuote_Spread(t *testing.T) {
	t.Run("Normal Calculation", func(t *testing.T) {
		q := Quote{Bid: &Level{Price: 100.1, Quantity: 1}, Ask: &Level{Price: 100.3, Quantity: 1}}

		spread := q.Spread()
		// decimal keeps the difference exact where float64 would not
		if spread == nil || !spread.Equal(decimal.RequireFromString("0.2")) {
			t.Errorf("Expected 0.2, got %v", spread)
		}
	})

	t.Run("Safety: Missing Side", func(t *testing.T) {
		q := Quote{Ask: &Level{Price: 1}}
		if q.Spread() != nil {
			t.Error("Should return nil when bid is missing")
		}
	})
}

func TestQuote_IsReady(t *testing.T) {
	if (Quote{}).IsReady() {
		t.Error("Zero quote should not be ready")
	}
}

func TestDelta_UnknownActions(t *testing.T) {
	d := Delta{
		Bids: []Entry{{Action: ActionNew}, {Action: "modify"}},
		Asks: []Entry{{Action: ActionDelete}, {Action: ActionChange}, {Action: ""}},
	}
	if got := d.UnknownActions(); got != 2 {
		t.Errorf("Expected 2 unknown actions, got %d", got)
	}
}

func TestNewQuoteSample(t *testing.T) {
	q := Quote{Instrument: "BTC-PERPETUAL", SequenceID: 9, Bid: &Level{Price: 10, Quantity: 2}}
	s := NewQuoteSample(q, 3, 0)

	if s.BidPrice == nil || *s.BidPrice != 10 || *s.BidQuantity != 2 {
		t.Errorf("Unexpected bid columns: %v %v", s.BidPrice, s.BidQuantity)
	}
	if s.AskPrice != nil || s.AskQuantity != nil {
		t.Error("Empty ask side should be stored as NULL")
	}
	if s.ChangeID != 9 || s.BidLevels != 3 {
		t.Errorf("Unexpected sample: %+v", s)
	}
}
