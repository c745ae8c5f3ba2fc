package pricing

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownMenuItem = errors.New("menu item not found or unavailable")
	ErrUnknownVariant  = errors.New("size variant not found")
	ErrUnknownAddon    = errors.New("add-on not found")
)

// Catalog resolves cart references to priced entries.
type Catalog interface {
	Item(id uuid.UUID) (Item, bool)
	Variant(id uuid.UUID) (Variant, bool)
	Addon(id uuid.UUID) (Addon, bool)
}

// MapCatalog is an in-memory Catalog.
type MapCatalog struct {
	Items    map[uuid.UUID]Item
	Variants map[uuid.UUID]Variant
	Addons   map[uuid.UUID]Addon
}

func (c MapCatalog) Item(id uuid.UUID) (Item, bool) {
	i, ok := c.Items[id]
	return i, ok
}

func (c MapCatalog) Variant(id uuid.UUID) (Variant, bool) {
	v, ok := c.Variants[id]
	return v, ok
}

func (c MapCatalog) Addon(id uuid.UUID) (Addon, bool) {
	a, ok := c.Addons[id]
	return a, ok
}

// Selection is one "add to cart" action from a diner.
type Selection struct {
	MenuItemID    uuid.UUID
	SizeVariantID uuid.NullUUID
	AddonIDs      []uuid.UUID
	Quantity      int32
	Notes         string
}

// CartLine is the accumulated selection for one menu item.
type CartLine struct {
	MenuItemID    uuid.UUID
	SizeVariantID uuid.NullUUID
	AddonIDs      []uuid.UUID
	Quantity      int32
	Notes         string
}

// PricedLine is a cart line resolved against a catalog.
type PricedLine struct {
	CartLine
	Item      Item
	Variant   *Variant
	Line      Line
	LineTotal decimal.Decimal
}

// Cart holds at most one line per menu item. Adding an item that is
// already present adds to its quantity, merges the add-on sets, and
// replaces the variant when a new one is given.
type Cart struct {
	lines map[uuid.UUID]*CartLine
	order []uuid.UUID
}

func NewCart() *Cart {
	return &Cart{lines: make(map[uuid.UUID]*CartLine)}
}

// Add merges a selection into the cart.
func (c *Cart) Add(sel Selection) error {
	if sel.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	line, ok := c.lines[sel.MenuItemID]
	if !ok {
		c.lines[sel.MenuItemID] = &CartLine{
			MenuItemID:    sel.MenuItemID,
			SizeVariantID: sel.SizeVariantID,
			AddonIDs:      uniqueIDs(nil, sel.AddonIDs),
			Quantity:      sel.Quantity,
			Notes:         sel.Notes,
		}
		c.order = append(c.order, sel.MenuItemID)
		return nil
	}
	line.Quantity += sel.Quantity
	line.AddonIDs = uniqueIDs(line.AddonIDs, sel.AddonIDs)
	if sel.SizeVariantID.Valid {
		line.SizeVariantID = sel.SizeVariantID
	}
	if sel.Notes != "" {
		line.Notes = sel.Notes
	}
	return nil
}

// Remove decrements the line's quantity by one, dropping it at zero.
func (c *Cart) Remove(menuItemID uuid.UUID) {
	line, ok := c.lines[menuItemID]
	if !ok {
		return
	}
	line.Quantity--
	if line.Quantity > 0 {
		return
	}
	delete(c.lines, menuItemID)
	for i, id := range c.order {
		if id == menuItemID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Lines returns the cart lines in insertion order.
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.lines[id])
	}
	return out
}

// ItemCount is the total number of units in the cart.
func (c *Cart) ItemCount() int32 {
	var n int32
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Price resolves every line against the catalog. Any missing reference
// fails the whole cart.
func (c *Cart) Price(cat Catalog) ([]PricedLine, decimal.Decimal, error) {
	priced := make([]PricedLine, 0, len(c.order))
	lines := make([]Line, 0, len(c.order))
	for i, cl := range c.Lines() {
		item, ok := cat.Item(cl.MenuItemID)
		if !ok {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrUnknownMenuItem)
		}
		var variant *Variant
		if cl.SizeVariantID.Valid {
			v, ok := cat.Variant(cl.SizeVariantID.UUID)
			if !ok {
				return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrUnknownVariant)
			}
			variant = &v
		}
		addons := make([]Addon, 0, len(cl.AddonIDs))
		for j, aid := range cl.AddonIDs {
			a, ok := cat.Addon(aid)
			if !ok {
				return nil, decimal.Zero, fmt.Errorf("item[%d].addons[%d]: %w", i, j, ErrUnknownAddon)
			}
			addons = append(addons, a)
		}
		line, err := NewLine(item, variant, addons, cl.Quantity)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, err)
		}
		lines = append(lines, line)
		priced = append(priced, PricedLine{
			CartLine:  cl,
			Item:      item,
			Variant:   variant,
			Line:      line,
			LineTotal: line.Total(),
		})
	}
	return priced, OrderTotal(lines), nil
}

func uniqueIDs(base, extra []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(base)+len(extra))
	out := make([]uuid.UUID, 0, len(base)+len(extra))
	for _, ids := range [][]uuid.UUID{base, extra} {
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
