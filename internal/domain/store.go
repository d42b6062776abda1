package domain

import "deribit_book/pkg/quant"

// Level is a single (price, quantity) entry on one side of the book.
type Level struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// PriceLevelStore maps price to quantity for one side of the book.
// Keys are produced by quant.PriceKey on every insert, lookup and delete.
// Iteration order is unspecified.
type PriceLevelStore struct {
	levels map[string]Level

	// scans counts full passes made by Best, for tests and benchmarks.
	scans int
}

// NewPriceLevelStore creates an empty store with room for sizeHint levels.
func NewPriceLevelStore(sizeHint int) *PriceLevelStore {
	return &PriceLevelStore{levels: make(map[string]Level, sizeHint)}
}

// Set inserts or overwrites the level at price.
func (s *PriceLevelStore) Set(price, quantity float64) {
	s.levels[quant.PriceKey(price)] = Level{Price: price, Quantity: quantity}
}

// Get returns the quantity stored at price.
func (s *PriceLevelStore) Get(price float64) (float64, bool) {
	lvl, ok := s.levels[quant.PriceKey(price)]
	return lvl.Quantity, ok
}

// Delete removes the level at price. Missing prices are ignored.
func (s *PriceLevelStore) Delete(price float64) {
	delete(s.levels, quant.PriceKey(price))
}

// Len returns the number of levels.
func (s *PriceLevelStore) Len() int {
	return len(s.levels)
}

// Clear removes every level, keeping the allocated map.
func (s *PriceLevelStore) Clear() {
	clear(s.levels)
}

// Levels returns a copy of all levels in unspecified order.
func (s *PriceLevelStore) Levels() []Level {
	out := make([]Level, 0, len(s.levels))
	for _, lvl := range s.levels {
		out = append(out, lvl)
	}
	return out
}

// Best scans every level once and returns the best one according to
// better. ok is false when the store is empty.
func (s *PriceLevelStore) Best(better func(candidate, current float64) bool) (best Level, ok bool) {
	s.scans++
	for _, lvl := range s.levels {
		if !ok || better(lvl.Price, best.Price) {
			best = lvl
			ok = true
		}
	}
	return best, ok
}
