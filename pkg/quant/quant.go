// Package quant holds the small numeric helpers shared by the core and the
// feed layers: canonical price keys, timestamps and frame counters.
package quant

import (
	"math"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// TimeStamp is a unix timestamp in microseconds.
type TimeStamp int64

// FromMillis converts an exchange timestamp in milliseconds.
func FromMillis(ms int64) TimeStamp {
	return TimeStamp(ms * 1000)
}

// Now returns the current time as a TimeStamp.
func Now() TimeStamp {
	return TimeStamp(time.Now().UnixMicro())
}

// Time converts back to time.Time.
func (t TimeStamp) Time() time.Time {
	return time.UnixMicro(int64(t))
}

// NextSeq atomically increments the counter and returns the new value.
func NextSeq(seq *uint64) uint64 {
	return atomic.AddUint64(seq, 1)
}

// PriceKey returns the canonical map key for a price.
// The key is the shortest decimal string that round-trips to the same
// float64, so 100.5 and 100.50 decoded from the wire share one key.
func PriceKey(price float64) string {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		// decimal.NewFromFloat panics on non-finite input
		return strconv.FormatFloat(price, 'g', -1, 64)
	}
	if price == 0 {
		// folds -0 into 0
		return "0"
	}
	return decimal.NewFromFloat(price).String()
}

// FormatPrice renders a price for humans. Infinite prices render as "-".
func FormatPrice(price float64) string {
	if math.IsInf(price, 0) || math.IsNaN(price) {
		return "-"
	}
	return decimal.NewFromFloat(price).String()
}
