// Package cart computes line totals and VAT for a client-held selection.
// It is pure: validation happens against a catalog map handed in by the
// caller, and nothing here touches storage.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/citizenwallet/self-checkout/internal/catalog"
	"github.com/citizenwallet/self-checkout/internal/orders"
)

// Selection maps item id -> chosen quantity. It is never persisted; it is
// submitted once to create an order snapshot.
type Selection map[int64]int

// Adjust changes the quantity of one line by delta. Driving a line to
// zero or below removes it entirely.
func (s Selection) Adjust(itemID int64, delta int) {
	q := s[itemID] + delta
	if q <= 0 {
		delete(s, itemID)
		return
	}
	s[itemID] = q
}

// TotalItems is the number of units across all lines.
func (s Selection) TotalItems() int {
	n := 0
	for _, q := range s {
		n += q
	}
	return n
}

// Lines converts the selection into order line snapshots, pruning
// non-positive quantities and items absent from the catalog (stale
// client state).
func (s Selection) Lines(items map[int64]catalog.Item) []orders.Line {
	out := make([]orders.Line, 0, len(s))
	for id, q := range s {
		if q <= 0 {
			continue
		}
		if _, ok := items[id]; !ok {
			continue
		}
		out = append(out, orders.Line{ItemID: id, Quantity: q})
	}
	return out
}

type Totals struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	VatCents      int64 `json:"vat_cents"`
	TotalCents    int64 `json:"total_cents"`
}

var hundred = decimal.NewFromInt(100)

// ComputeTotals prices the selection against the authoritative catalog.
// VAT is computed per line as price × qty × rate/100, rounded to a cent
// per line before summing.
func ComputeTotals(s Selection, items map[int64]catalog.Item) Totals {
	var t Totals
	for id, q := range s {
		it, ok := items[id]
		if !ok || q <= 0 {
			continue
		}
		line := it.PriceCents * int64(q)
		t.SubtotalCents += line
		t.VatCents += decimal.NewFromInt(line).
			Mul(decimal.NewFromInt(int64(it.VatPercent))).
			Div(hundred).
			Round(0).
			IntPart()
	}
	t.TotalCents = t.SubtotalCents + t.VatCents
	return t
}
