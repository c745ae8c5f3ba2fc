// Package pricing computes menu line and order totals.
//
// A line is priced as (item price + variant modifier + sum of add-on
// prices) x quantity. Add-ons are charged once per unit, and the same
// add-on selected twice counts once. Amounts are rounded to two fraction
// digits only when a total is produced.
package pricing

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be > 0")
	ErrVariantMismatch = errors.New("size variant does not belong to menu item")
)

// Item is the priced view of a menu item.
type Item struct {
	ID    uuid.UUID
	Name  string
	Price decimal.Decimal
}

// Variant is the priced view of a size variant.
type Variant struct {
	ID            uuid.UUID
	MenuItemID    uuid.UUID
	Name          string
	PriceModifier decimal.Decimal
	IsDefault     bool
}

// Addon is the priced view of an add-on.
type Addon struct {
	ID    uuid.UUID
	Name  string
	Price decimal.Decimal
}

// Line is a priced order line as it is stored: the unit price already
// includes the variant modifier, add-ons are kept separately.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int32
	Addons    []Addon
}

// NewLine prices a selection. The unit price never goes below zero, even
// when a variant carries a negative modifier larger than the item price.
func NewLine(item Item, variant *Variant, addons []Addon, quantity int32) (Line, error) {
	if quantity <= 0 {
		return Line{}, ErrInvalidQuantity
	}
	if variant != nil && variant.MenuItemID != item.ID {
		return Line{}, ErrVariantMismatch
	}
	return Line{
		UnitPrice: UnitPrice(item, variant),
		Quantity:  quantity,
		Addons:    UniqueAddons(addons),
	}, nil
}

// UnitPrice is the item price plus the variant modifier, floored at zero.
func UnitPrice(item Item, variant *Variant) decimal.Decimal {
	price := item.Price
	if variant != nil {
		price = price.Add(variant.PriceModifier)
	}
	if price.IsNegative() {
		return decimal.Zero
	}
	return price
}

// UniqueAddons drops repeated add-on IDs, keeping the first occurrence.
func UniqueAddons(addons []Addon) []Addon {
	if len(addons) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]bool, len(addons))
	out := make([]Addon, 0, len(addons))
	for _, a := range addons {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, a)
	}
	return out
}

// AddonsPrice sums the add-on prices charged per unit.
func (l Line) AddonsPrice() decimal.Decimal {
	sum := decimal.Zero
	for _, a := range UniqueAddons(l.Addons) {
		sum = sum.Add(a.Price)
	}
	return sum
}

// Total is (unit price + add-ons) x quantity, rounded to two digits.
func (l Line) Total() decimal.Decimal {
	return l.total().Round(2)
}

func (l Line) total() decimal.Decimal {
	if l.Quantity <= 0 {
		return decimal.Zero
	}
	return l.UnitPrice.Add(l.AddonsPrice()).Mul(decimal.NewFromInt32(l.Quantity))
}

// LineTotal prices a single selection.
func LineTotal(item Item, variant *Variant, addons []Addon, quantity int32) (decimal.Decimal, error) {
	line, err := NewLine(item, variant, addons, quantity)
	if err != nil {
		return decimal.Zero, err
	}
	return line.Total(), nil
}

// OrderTotal sums the line totals of one order.
func OrderTotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.total())
	}
	return sum.Round(2)
}

// OrderSnapshot is a stored order: its recorded total, when present, and
// its lines.
type OrderSnapshot struct {
	ID    uuid.UUID
	Total decimal.NullDecimal
	Lines []Line
}

// Amount returns the recorded total. Orders with no recorded total, or a
// zero total while they still have lines, are recomputed from their lines.
func (o OrderSnapshot) Amount() decimal.Decimal {
	if o.Total.Valid && !(o.Total.Decimal.IsZero() && len(o.Lines) > 0) {
		return o.Total.Decimal.Round(2)
	}
	return OrderTotal(o.Lines)
}

// TableTotal sums the amounts of a table's outstanding orders.
func TableTotal(orders []OrderSnapshot) decimal.Decimal {
	sum := decimal.Zero
	for _, o := range orders {
		sum = sum.Add(o.Amount())
	}
	return sum.Round(2)
}

// DefaultVariant picks the variant flagged default, or the first one when
// none is flagged. Returns nil for an empty list.
func DefaultVariant(variants []Variant) *Variant {
	if len(variants) == 0 {
		return nil
	}
	for i := range variants {
		if variants[i].IsDefault {
			return &variants[i]
		}
	}
	return &variants[0]
}

// Change is the amount handed back for a cash payment. It is negative when
// received does not cover total.
func Change(total, received decimal.Decimal) decimal.Decimal {
	return received.Sub(total).Round(2)
}
