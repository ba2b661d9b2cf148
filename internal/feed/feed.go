package feed

import (
	"context"
)

// Record is the raw shape of a single price feed entry.
// Price is a pointer so a missing or null price is distinguishable
// from an explicit zero; the normalizer drops both.
type Record struct {
	Currency string   `json:"currency"`
	Date     string   `json:"date"`
	Price    *float64 `json:"price"`
}

// Source produces the full raw feed. Implementations may be decorated
// with caching, rate limiting and retries; see the subpackages.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Record, error)
}
