// Package swap implements the bidirectional conversion engine behind the
// two-field swap form: a pair of (token, amount) slots kept numerically
// consistent against the current price book.
package swap

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"tokenswap/internal/pricebook"
)

// Side identifies one of the two conversion slots.
type Side int

const (
	SideFrom Side = iota
	SideTo
)

func (s Side) Other() Side {
	if s == SideFrom {
		return SideTo
	}
	return SideFrom
}

func (s Side) String() string {
	if s == SideFrom {
		return "from"
	}
	return "to"
}

// ParseSide parses the wire form of a side ("from" or "to").
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "from":
		return SideFrom, nil
	case "to":
		return SideTo, nil
	}
	return SideFrom, fmt.Errorf("unknown side %q", s)
}

// Slot is one side of the form. Amount stays a string so partial input
// like "12." survives verbatim until a conversion overwrites it.
type Slot struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// State is a snapshot of the engine for the presentation layer.
type State struct {
	From Slot `json:"from"`
	To   Slot `json:"to"`
	// Rate is price(from)/price(to) fixed to 8 fraction digits,
	// empty when undefined.
	Rate string `json:"rate,omitempty"`
	// LastEdited names the authoritative side, empty before any edit.
	LastEdited string `json:"last_edited,omitempty"`
}

// amountPattern admits unsigned decimal text, including partial forms
// like "12." and ".5". Anything else is rejected, keeping the field as-is.
var amountPattern = regexp.MustCompile(`^[0-9]*\.?[0-9]*$`)

// Engine owns the slot pair for one form session. It is not safe for
// concurrent use; each session gets its own Engine and serializes calls.
type Engine struct {
	book  *pricebook.Book
	slots [2]Slot

	lastEdited Side
	edited     bool
}

// New creates an engine over the given book. When the book already has
// two or more tokens the first two are preselected, as a freshly loaded
// form would show.
func New(book *pricebook.Book) *Engine {
	e := &Engine{book: book}
	e.autoSelect()
	return e
}

// SetBook replaces the price book wholesale after a fetch completes.
// Slots are left alone; amounts are re-derived on the next operation.
func (e *Engine) SetBook(book *pricebook.Book) {
	e.book = book
	e.autoSelect()
}

func (e *Engine) autoSelect() {
	if e.book == nil {
		return
	}
	tokens := e.book.Tokens()
	if len(tokens) >= 2 && e.slots[SideFrom].Token == "" && e.slots[SideTo].Token == "" {
		e.slots[SideFrom].Token = tokens[0]
		e.slots[SideTo].Token = tokens[1]
	}
}

// SelectToken sets the token for one side; an empty token clears it.
// When the opposite side already holds an amount and both prices are
// known, the just-selected side's amount is re-derived from it. With no
// usable rate the amounts stay untouched. The engine does not police
// duplicate selections; excluding the opposite token is the option
// list's job, and a transient equal pair (mid-swap) must not error.
func (e *Engine) SelectToken(side Side, token string) {
	e.slots[side].Token = token
	if token == "" {
		return
	}
	other := side.Other()
	if e.slots[other].Amount == "" {
		return
	}
	rate, ok := e.rate(other, side)
	if !ok {
		return
	}
	e.slots[side].Amount = formatAmount(parseAmount(e.slots[other].Amount).Mul(rate))
}

// EditAmount applies user keystrokes to one side. It reports whether the
// input was accepted; rejected text leaves the engine untouched.
//
// Empty input clears both amounts. Accepted text is stored verbatim and
// the opposite amount becomes text * rate fixed to 8 fraction digits,
// or empty when the rate is undefined.
func (e *Engine) EditAmount(side Side, raw string) bool {
	if raw == "" {
		e.slots[SideFrom].Amount = ""
		e.slots[SideTo].Amount = ""
		e.lastEdited = side
		e.edited = true
		return true
	}
	if !amountPattern.MatchString(raw) {
		return false
	}

	e.slots[side].Amount = raw
	e.lastEdited = side
	e.edited = true

	other := side.Other()
	if rate, ok := e.rate(side, other); ok {
		e.slots[other].Amount = formatAmount(parseAmount(raw).Mul(rate))
	} else {
		e.slots[other].Amount = ""
	}
	return true
}

// SwapSides exchanges the two slots in one transition. No recomputation:
// consistent amounts stay consistent under the inverted rate.
func (e *Engine) SwapSides() {
	e.slots[SideFrom], e.slots[SideTo] = e.slots[SideTo], e.slots[SideFrom]
	if e.edited {
		e.lastEdited = e.lastEdited.Other()
	}
}

// Rate returns price(from)/price(to). The bool reports whether both
// tokens are selected and priced; absence is not zero.
func (e *Engine) Rate() (decimal.Decimal, bool) {
	return e.rate(SideFrom, SideTo)
}

// Slot returns a copy of one side's slot.
func (e *Engine) Slot(side Side) Slot {
	return e.slots[side]
}

// State returns a snapshot for rendering.
func (e *Engine) State() State {
	st := State{
		From: e.slots[SideFrom],
		To:   e.slots[SideTo],
	}
	if rate, ok := e.Rate(); ok {
		st.Rate = formatAmount(rate)
	}
	if e.edited {
		st.LastEdited = e.lastEdited.String()
	}
	return st
}

// rate converts one unit of base's token into quote's denomination.
func (e *Engine) rate(base, quote Side) (decimal.Decimal, bool) {
	if e.book == nil {
		return decimal.Decimal{}, false
	}
	baseToken := e.slots[base].Token
	quoteToken := e.slots[quote].Token
	if baseToken == "" || quoteToken == "" {
		return decimal.Decimal{}, false
	}
	return e.book.Rate(baseToken, quoteToken)
}

// parseAmount reads the leading numeric content of text the pattern
// accepted. A bare "." or unparseable remainder counts as zero.
func parseAmount(raw string) decimal.Decimal {
	s := strings.TrimSuffix(raw, ".")
	if s == "" {
		return decimal.Zero
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// formatAmount renders derived values with exactly 8 fraction digits,
// no scientific notation, trailing zeros kept.
func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(8)
}
