package engine

import (
	"sync"

	"github.com/IshaanNene/wxscrape/internal/types"
)

// Accumulator is the append-only, ordered record collection of one run.
type Accumulator struct {
	mu      sync.Mutex
	records []types.ArticleRecord
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{records: make([]types.ArticleRecord, 0)}
}

// Append adds a record after all previously appended ones.
func (a *Accumulator) Append(rec types.ArticleRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
}

// All returns a copy of the records in append order.
func (a *Accumulator) All() []types.ArticleRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]types.ArticleRecord, len(a.records))
	copy(out, a.records)
	return out
}

// Len returns the number of records appended so far.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}
