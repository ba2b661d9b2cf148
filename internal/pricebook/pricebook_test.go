package pricebook

import (
	"math"
	"sort"
	"testing"

	"github.com/shopspring/decimal"

	"tokenswap/internal/feed"
)

func price(f float64) *float64 { return &f }

func TestNormalize_FirstOccurrenceWins_CaseInsensitive(t *testing.T) {
	in := []feed.Record{
		{Currency: "eth", Date: "2023-08-29T07:10:52.000Z", Price: price(2000)},
		{Currency: "ETH", Date: "2023-08-29T07:10:53.000Z", Price: price(3000)},
	}

	b := Normalize(in)
	if b.Len() != 1 {
		t.Fatalf("want 1 entry, got %d", b.Len())
	}
	p, ok := b.Price("ETH")
	if !ok {
		t.Fatal("ETH missing")
	}
	if !p.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("first occurrence should win, got %s", p)
	}
}

func TestNormalize_DropsMalformedRecords(t *testing.T) {
	in := []feed.Record{
		{Currency: "ETH", Price: price(2000)},
		{Currency: "ZERO", Price: price(0)},
		{Currency: "NEG", Price: price(-4)},
		{Currency: "NONE", Price: nil},
		{Currency: "NAN", Price: price(math.NaN())},
		{Currency: "INF", Price: price(math.Inf(1))},
		{Currency: "", Price: price(5)},
		{Currency: "  ", Price: price(5)},
		{Currency: "USDC", Price: price(1)},
	}

	b := Normalize(in)
	if b.Len() != 2 {
		t.Fatalf("want 2 entries, got %d: %v", b.Len(), b.Tokens())
	}
	for _, sym := range []string{"ZERO", "NEG", "NONE", "NAN", "INF"} {
		if _, ok := b.Price(sym); ok {
			t.Fatalf("%s should have been dropped", sym)
		}
	}
}

func TestNormalize_TokensSortedNoDuplicates(t *testing.T) {
	in := []feed.Record{
		{Currency: "usdc", Price: price(1)},
		{Currency: "BTC", Price: price(26000)},
		{Currency: "atom", Price: price(7.18)},
		{Currency: "ATOM", Price: price(7.2)},
		{Currency: "eth", Price: price(1645)},
	}

	tokens := Normalize(in).Tokens()
	if !sort.StringsAreSorted(tokens) {
		t.Fatalf("tokens not sorted: %v", tokens)
	}
	seen := map[string]bool{}
	for _, tok := range tokens {
		if seen[tok] {
			t.Fatalf("duplicate token %s in %v", tok, tokens)
		}
		seen[tok] = true
	}
	want := []string{"ATOM", "BTC", "ETH", "USDC"}
	if len(tokens) != len(want) {
		t.Fatalf("want %v, got %v", want, tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("want %v, got %v", want, tokens)
		}
	}
}

func TestNormalize_EmptyInput(t *testing.T) {
	b := Normalize(nil)
	if b.Len() != 0 {
		t.Fatalf("want empty book, got %d entries", b.Len())
	}
	if len(b.Tokens()) != 0 {
		t.Fatalf("want no tokens, got %v", b.Tokens())
	}
	if _, ok := b.Rate("ETH", "USDC"); ok {
		t.Fatal("rate on empty book should be absent")
	}
}

func TestRate_ReciprocalProductIsOne(t *testing.T) {
	in := []feed.Record{
		{Currency: "AAA", Price: price(3)},
		{Currency: "BBB", Price: price(7)},
	}
	b := Normalize(in)

	ab, ok := b.Rate("AAA", "BBB")
	if !ok {
		t.Fatal("rate AAA->BBB missing")
	}
	ba, ok := b.Rate("BBB", "AAA")
	if !ok {
		t.Fatal("rate BBB->AAA missing")
	}
	product := ab.Mul(ba).InexactFloat64()
	if math.Abs(product-1) > 1e-12 {
		t.Fatalf("reciprocal product = %v, want ~1", product)
	}
}

func TestRate_AbsentWhenEitherSideUnknown(t *testing.T) {
	b := Normalize([]feed.Record{{Currency: "ETH", Price: price(2000)}})
	if _, ok := b.Rate("ETH", "USDC"); ok {
		t.Fatal("rate with unknown quote side should be absent")
	}
	if _, ok := b.Rate("USDC", "ETH"); ok {
		t.Fatal("rate with unknown base side should be absent")
	}
}
