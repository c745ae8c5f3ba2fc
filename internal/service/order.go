package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-digital/api/internal/database"
	"github.com/mesa-digital/api/internal/pricing"
	"github.com/shopspring/decimal"
)

// Errors returned by the order service.
var (
	ErrEmptyItems        = errors.New("items are required")
	ErrInvalidQuantity   = errors.New("quantity must be > 0")
	ErrTableNotFound     = errors.New("table not found")
	ErrInvalidMenuItemID = errors.New("invalid menu_item_id")
	ErrMenuItemNotFound  = errors.New("menu item not found or unavailable")
	ErrInvalidVariantID  = errors.New("invalid size_variant_id")
	ErrVariantNotFound   = errors.New("size variant not found or inactive")
	ErrVariantMismatch   = errors.New("size variant does not belong to menu item")
	ErrVariantsDisabled  = errors.New("menu item does not offer size variants")
	ErrInvalidAddonID    = errors.New("invalid addon_id")
	ErrAddonNotFound     = errors.New("add-on not found or inactive")
	ErrAddonNotAllowed   = errors.New("add-on not offered for menu item")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to submit orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetTableByNumberForUpdate(ctx context.Context, number int32) (database.Table, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	GetSizeVariant(ctx context.Context, id uuid.UUID) (database.SizeVariant, error)
	ListSizeVariantsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]database.SizeVariant, error)
	GetAddon(ctx context.Context, id uuid.UUID) (database.Addon, error)
	ListMenuItemAddonIDs(ctx context.Context, menuItemID uuid.UUID) ([]uuid.UUID, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	CreateOrderItemAddon(ctx context.Context, arg database.CreateOrderItemAddonParams) (database.OrderItemAddon, error)
	OccupyTable(ctx context.Context, id uuid.UUID) (database.Table, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// SubmitOrderRequest is the diner's cart for one table.
type SubmitOrderRequest struct {
	TableNumber int32
	Items       []SubmitOrderItem
}

// SubmitOrderItem is a single cart line.
type SubmitOrderItem struct {
	MenuItemID    string
	SizeVariantID string
	AddonIDs      []string
	Quantity      int32
	Notes         string
}

// CreateOrderResult is the full created order with items.
type CreateOrderResult struct {
	Order database.Order
	Table database.Table
	Items []OrderItemResult
}

// OrderItemResult is an item with its add-ons.
type OrderItemResult struct {
	Item   database.OrderItem
	Addons []database.OrderItemAddon
}

// OrderService handles order submission.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// resolvedLine is a validated cart line ready to insert.
type resolvedLine struct {
	item    database.MenuItem
	variant *database.SizeVariant
	addons  []database.Addon
	line    pricing.Line
	notes   string
}

// CreateOrder validates the cart, prices it from the current catalog and
// stores the order against the table. The table row is locked for the
// whole transaction so a concurrent checkout either sees this order or
// runs before it.
func (s *OrderService) CreateOrder(ctx context.Context, req SubmitOrderRequest) (*CreateOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	// --- Begin transaction ---
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Lock table ---
	table, err := store.GetTableByNumberForUpdate(ctx, req.TableNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get table: %w", err)
	}

	// --- Resolve and price lines ---
	lines, total, err := mergeLines(ctx, store, req.Items)
	if err != nil {
		return nil, err
	}

	// --- Insert order ---
	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		TableID: table.ID,
		Total:   database.DecimalToNumeric(total),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// --- Insert items ---
	itemResults := make([]OrderItemResult, 0, len(lines))
	for _, rl := range lines {
		params := database.CreateOrderItemParams{
			OrderID:      order.ID,
			MenuItemID:   pgtype.UUID{Bytes: rl.item.ID, Valid: true},
			MenuItemName: rl.item.Name,
			UnitPrice:    database.DecimalToNumeric(rl.line.UnitPrice),
			Quantity:     rl.line.Quantity,
		}
		if rl.variant != nil {
			params.SizeVariantID = pgtype.UUID{Bytes: rl.variant.ID, Valid: true}
			params.SizeName = pgtype.Text{String: rl.variant.SizeName, Valid: true}
		}
		if rl.notes != "" {
			params.Notes = pgtype.Text{String: rl.notes, Valid: true}
		}
		item, err := store.CreateOrderItem(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}

		var addonResults []database.OrderItemAddon
		for _, a := range rl.addons {
			oia, err := store.CreateOrderItemAddon(ctx, database.CreateOrderItemAddonParams{
				OrderItemID: item.ID,
				AddonID:     pgtype.UUID{Bytes: a.ID, Valid: true},
				AddonName:   a.Name,
				AddonPrice:  a.Price,
			})
			if err != nil {
				return nil, fmt.Errorf("create order item addon: %w", err)
			}
			addonResults = append(addonResults, oia)
		}

		itemResults = append(itemResults, OrderItemResult{Item: item, Addons: addonResults})
	}

	// --- Occupy table ---
	table, err = store.OccupyTable(ctx, table.ID)
	if err != nil {
		return nil, fmt.Errorf("occupy table: %w", err)
	}

	// --- Commit ---
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{
		Order: order,
		Table: table,
		Items: itemResults,
	}, nil
}

// mergeLines validates every submitted item, then folds repeated menu
// items into one line through pricing.Cart, matching the menu quote.
func mergeLines(ctx context.Context, store OrderStore, items []SubmitOrderItem) ([]resolvedLine, decimal.Decimal, error) {
	cart := pricing.NewCart()
	catalog := pricing.MapCatalog{
		Items:    make(map[uuid.UUID]pricing.Item),
		Variants: make(map[uuid.UUID]pricing.Variant),
		Addons:   make(map[uuid.UUID]pricing.Addon),
	}
	dbItems := make(map[uuid.UUID]database.MenuItem)
	dbVariants := make(map[uuid.UUID]database.SizeVariant)
	dbAddons := make(map[uuid.UUID]database.Addon)

	for i, item := range items {
		rl, err := resolveLine(ctx, store, item)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, err)
		}

		sel := pricing.Selection{MenuItemID: rl.item.ID, Quantity: rl.line.Quantity, Notes: rl.notes}
		dbItems[rl.item.ID] = rl.item
		catalog.Items[rl.item.ID] = PricingItem(rl.item)
		if rl.variant != nil {
			sel.SizeVariantID = uuid.NullUUID{UUID: rl.variant.ID, Valid: true}
			dbVariants[rl.variant.ID] = *rl.variant
			catalog.Variants[rl.variant.ID] = *PricingVariant(rl.variant)
		}
		for _, a := range rl.addons {
			sel.AddonIDs = append(sel.AddonIDs, a.ID)
			dbAddons[a.ID] = a
		}
		for _, a := range PricingAddons(rl.addons) {
			catalog.Addons[a.ID] = a
		}
		if err := cart.Add(sel); err != nil {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, err)
		}
	}

	priced, total, err := cart.Price(catalog)
	if err != nil {
		return nil, decimal.Zero, err
	}

	lines := make([]resolvedLine, len(priced))
	for i, pl := range priced {
		rl := resolvedLine{
			item:  dbItems[pl.MenuItemID],
			line:  pl.Line,
			notes: pl.Notes,
		}
		if pl.SizeVariantID.Valid {
			v := dbVariants[pl.SizeVariantID.UUID]
			rl.variant = &v
		}
		for _, aid := range pl.AddonIDs {
			rl.addons = append(rl.addons, dbAddons[aid])
		}
		lines[i] = rl
	}
	return lines, total, nil
}

// resolveLine loads and checks every reference of a cart line. Items that
// offer size variants get their default variant when none was picked.
func resolveLine(ctx context.Context, store OrderStore, req SubmitOrderItem) (resolvedLine, error) {
	if req.Quantity <= 0 {
		return resolvedLine{}, ErrInvalidQuantity
	}

	menuItemID, err := uuid.Parse(req.MenuItemID)
	if err != nil {
		return resolvedLine{}, ErrInvalidMenuItemID
	}
	item, err := store.GetMenuItem(ctx, menuItemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return resolvedLine{}, ErrMenuItemNotFound
		}
		return resolvedLine{}, fmt.Errorf("get menu item: %w", err)
	}
	if !item.IsAvailable {
		return resolvedLine{}, ErrMenuItemNotFound
	}

	// Size variant
	var variant *database.SizeVariant
	if req.SizeVariantID != "" {
		if !item.ShowSizeVariants {
			return resolvedLine{}, ErrVariantsDisabled
		}
		vid, err := uuid.Parse(req.SizeVariantID)
		if err != nil {
			return resolvedLine{}, ErrInvalidVariantID
		}
		v, err := store.GetSizeVariant(ctx, vid)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return resolvedLine{}, ErrVariantNotFound
			}
			return resolvedLine{}, fmt.Errorf("get size variant: %w", err)
		}
		if v.MenuItemID != item.ID {
			return resolvedLine{}, ErrVariantMismatch
		}
		if !v.IsActive {
			return resolvedLine{}, ErrVariantNotFound
		}
		variant = &v
	} else if item.ShowSizeVariants {
		variants, err := store.ListSizeVariantsByMenuItem(ctx, item.ID)
		if err != nil {
			return resolvedLine{}, fmt.Errorf("list size variants: %w", err)
		}
		variant = defaultVariant(variants)
	}

	// Add-ons
	var addons []database.Addon
	if len(req.AddonIDs) > 0 {
		if !item.ShowAddons {
			return resolvedLine{}, ErrAddonNotAllowed
		}
		allowedIDs, err := store.ListMenuItemAddonIDs(ctx, item.ID)
		if err != nil {
			return resolvedLine{}, fmt.Errorf("list menu item addons: %w", err)
		}
		allowed := make(map[uuid.UUID]bool, len(allowedIDs))
		for _, id := range allowedIDs {
			allowed[id] = true
		}
		seen := make(map[uuid.UUID]bool, len(req.AddonIDs))
		for j, raw := range req.AddonIDs {
			aid, err := uuid.Parse(raw)
			if err != nil {
				return resolvedLine{}, fmt.Errorf("addons[%d]: %w", j, ErrInvalidAddonID)
			}
			if seen[aid] {
				continue
			}
			seen[aid] = true
			// An empty restriction list offers every active add-on
			if len(allowed) > 0 && !allowed[aid] {
				return resolvedLine{}, fmt.Errorf("addons[%d]: %w", j, ErrAddonNotAllowed)
			}
			a, err := store.GetAddon(ctx, aid)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return resolvedLine{}, fmt.Errorf("addons[%d]: %w", j, ErrAddonNotFound)
				}
				return resolvedLine{}, fmt.Errorf("addons[%d]: get addon: %w", j, err)
			}
			if !a.IsActive {
				return resolvedLine{}, fmt.Errorf("addons[%d]: %w", j, ErrAddonNotFound)
			}
			addons = append(addons, a)
		}
	}

	line, err := pricing.NewLine(PricingItem(item), PricingVariant(variant), PricingAddons(addons), req.Quantity)
	if err != nil {
		return resolvedLine{}, err
	}

	return resolvedLine{
		item:    item,
		variant: variant,
		addons:  addons,
		line:    line,
		notes:   req.Notes,
	}, nil
}

// defaultVariant picks the default among the active variants.
func defaultVariant(variants []database.SizeVariant) *database.SizeVariant {
	active := make([]database.SizeVariant, 0, len(variants))
	priced := make([]pricing.Variant, 0, len(variants))
	for _, v := range variants {
		if !v.IsActive {
			continue
		}
		active = append(active, v)
		priced = append(priced, *PricingVariant(&v))
	}
	chosen := pricing.DefaultVariant(priced)
	if chosen == nil {
		return nil
	}
	for i := range active {
		if active[i].ID == chosen.ID {
			return &active[i]
		}
	}
	return nil
}

// --- Conversions to pricing values ---

// PricingItem converts a menu item row.
func PricingItem(m database.MenuItem) pricing.Item {
	return pricing.Item{ID: m.ID, Name: m.Name, Price: database.NumericToDecimal(m.Price)}
}

// PricingVariant converts a size variant row. Nil stays nil.
func PricingVariant(v *database.SizeVariant) *pricing.Variant {
	if v == nil {
		return nil
	}
	return &pricing.Variant{
		ID:            v.ID,
		MenuItemID:    v.MenuItemID,
		Name:          v.SizeName,
		PriceModifier: database.NumericToDecimal(v.PriceModifier),
		IsDefault:     v.IsDefault,
	}
}

// PricingAddons converts add-on rows.
func PricingAddons(addons []database.Addon) []pricing.Addon {
	out := make([]pricing.Addon, 0, len(addons))
	for _, a := range addons {
		out = append(out, pricing.Addon{ID: a.ID, Name: a.Name, Price: database.NumericToDecimal(a.Price)})
	}
	return out
}

// OrderSnapshot rebuilds a stored order for table totals from its line
// snapshots.
func OrderSnapshot(order database.Order, items []OrderItemResult) pricing.OrderSnapshot {
	snap := pricing.OrderSnapshot{ID: order.ID}
	if order.Total.Valid {
		snap.Total = decimal.NewNullDecimal(database.NumericToDecimal(order.Total))
	}
	for _, it := range items {
		line := pricing.Line{
			UnitPrice: database.NumericToDecimal(it.Item.UnitPrice),
			Quantity:  it.Item.Quantity,
		}
		for _, a := range it.Addons {
			id := a.ID
			if a.AddonID.Valid {
				id = a.AddonID.Bytes
			}
			line.Addons = append(line.Addons, pricing.Addon{
				ID:    id,
				Name:  a.AddonName,
				Price: database.NumericToDecimal(a.AddonPrice),
			})
		}
		snap.Lines = append(snap.Lines, line)
	}
	return snap
}
