// Package pricebook turns the raw price feed into a clean symbol -> price
// mapping with a sorted token list. The feed is trusted for shape only:
// duplicate currencies, missing prices and junk values all arrive here.
package pricebook

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"tokenswap/internal/feed"
)

// Book is an immutable symbol -> price mapping built from one fetch.
// A fetch replaces the whole Book; it is never patched in place.
type Book struct {
	prices map[string]decimal.Decimal
	tokens []string
}

// Normalize builds a Book from raw feed records.
// Rules, in feed order:
//   - a record with a missing, non-finite or non-positive price is dropped
//   - a record with an empty currency is dropped
//   - currencies compare case-insensitively; the canonical symbol is uppercase
//   - the first record for a symbol wins, later duplicates are dropped
//
// Normalize is pure and never fails; the worst input yields an empty Book.
func Normalize(records []feed.Record) *Book {
	prices := make(map[string]decimal.Decimal, len(records))
	for _, r := range records {
		if r.Price == nil || math.IsNaN(*r.Price) || math.IsInf(*r.Price, 0) || *r.Price <= 0 {
			continue
		}
		symbol := strings.ToUpper(strings.TrimSpace(r.Currency))
		if symbol == "" {
			continue
		}
		if _, ok := prices[symbol]; ok {
			continue
		}
		prices[symbol] = decimal.NewFromFloat(*r.Price)
	}

	tokens := make([]string, 0, len(prices))
	for symbol := range prices {
		tokens = append(tokens, symbol)
	}
	sort.Strings(tokens)

	return &Book{prices: prices, tokens: tokens}
}

// Empty returns a Book with no entries, the shape a failed fetch degrades to.
func Empty() *Book {
	return &Book{prices: map[string]decimal.Decimal{}}
}

// Price returns the unit price for a symbol. The bool reports presence;
// a missing symbol is absence, never a zero price.
func (b *Book) Price(symbol string) (decimal.Decimal, bool) {
	p, ok := b.prices[symbol]
	return p, ok
}

// Rate returns price(from)/price(to), or false when either side is
// unknown. It is recomputed on every call, never stored.
func (b *Book) Rate(from, to string) (decimal.Decimal, bool) {
	pf, ok := b.prices[from]
	if !ok {
		return decimal.Decimal{}, false
	}
	pt, ok := b.prices[to]
	if !ok {
		return decimal.Decimal{}, false
	}
	return pf.Div(pt), true
}

// Tokens returns the known symbols sorted ascending. Callers must not
// mutate the returned slice.
func (b *Book) Tokens() []string {
	return b.tokens
}

// Prices returns a copy of the symbol -> price mapping.
func (b *Book) Prices() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(b.prices))
	for symbol, price := range b.prices {
		out[symbol] = price
	}
	return out
}

func (b *Book) Len() int { return len(b.prices) }
