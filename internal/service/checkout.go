package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-digital/api/internal/database"
	"github.com/mesa-digital/api/internal/enum"
	"github.com/mesa-digital/api/internal/lifecycle"
	"github.com/mesa-digital/api/internal/pricing"
	"github.com/mesa-digital/api/internal/printing"
	"github.com/shopspring/decimal"
)

// Errors returned by the checkout service.
var (
	ErrInvalidMethod       = errors.New("invalid payment method")
	ErrMethodDisabled      = errors.New("payment method not accepted")
	ErrNoActiveOrders      = errors.New("table has no open orders")
	ErrInvalidAmount       = errors.New("invalid amount_received")
	ErrAmountRequired      = errors.New("amount_received is required for cash payments")
	ErrInsufficientPayment = errors.New("amount_received is less than the total")
	ErrOrderNotSettleable  = errors.New("order cannot be completed by settlement")
)

// CheckoutStore defines the DB methods needed to settle a table.
// Satisfied by *database.Queries (and its WithTx variant).
type CheckoutStore interface {
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.Table, error)
	GetSettings(ctx context.Context) (database.RestaurantSetting, error)
	ListActiveOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]database.Order, error)
	ListOpenOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]database.Order, error)
	ListOrderItemsByOrders(ctx context.Context, orderIDs []uuid.UUID) ([]database.OrderItem, error)
	ListOrderItemAddonsByItems(ctx context.Context, itemIDs []uuid.UUID) ([]database.OrderItemAddon, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	CreatePaymentOrder(ctx context.Context, arg database.CreatePaymentOrderParams) error
	CompleteOrders(ctx context.Context, ids []uuid.UUID) ([]database.Order, error)
	CountActiveOrdersByTable(ctx context.Context, tableID uuid.UUID) (int64, error)
	ReleaseTableIfIdle(ctx context.Context, id uuid.UUID) (database.Table, error)
	CreatePrintJob(ctx context.Context, arg database.CreatePrintJobParams) (database.PrintJob, error)
}

// NewCheckoutStore creates a CheckoutStore from a DBTX (pool or tx).
type NewCheckoutStore func(db database.DBTX) CheckoutStore

// CheckoutRequest settles every open order of a table.
type CheckoutRequest struct {
	TableID        uuid.UUID
	Method         string
	AmountReceived string
	ProcessedBy    uuid.UUID
}

// CheckoutResult is the committed settlement.
type CheckoutResult struct {
	Payment  database.Payment
	Table    database.Table
	Orders   []database.Order
	PrintJob database.PrintJob
	Total    decimal.Decimal
	Change   decimal.NullDecimal
}

// Tab is the open bill of a table.
type Tab struct {
	Table  database.Table
	Orders []TabOrder
	Total  decimal.Decimal
}

// TabOrder is an open order with its lines and the amount it adds to the tab.
type TabOrder struct {
	Order  database.Order
	Items  []OrderItemResult
	Amount decimal.Decimal
}

// CheckoutService settles tables.
type CheckoutService struct {
	pool     TxBeginner
	newStore NewCheckoutStore
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(pool TxBeginner, newStore NewCheckoutStore) *CheckoutService {
	return &CheckoutService{pool: pool, newStore: newStore}
}

// Tab loads the open orders of a table and their total.
func (s *CheckoutService) Tab(ctx context.Context, tableID uuid.UUID) (*Tab, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	table, err := store.GetTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get table: %w", err)
	}
	orders, err := store.ListOpenOrdersByTable(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("list open orders: %w", err)
	}
	return buildTab(ctx, store, table, orders)
}

// Checkout records the payment, completes the table's open orders and
// releases the table, all in one transaction. The receipt print job is
// written in the same transaction; the caller dispatches it after commit.
func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	switch req.Method {
	case enum.PaymentMethodCash, enum.PaymentMethodPix, enum.PaymentMethodCard:
	default:
		return nil, ErrInvalidMethod
	}

	var received decimal.NullDecimal
	if req.AmountReceived != "" {
		d, err := decimal.NewFromString(req.AmountReceived)
		if err != nil || d.IsNegative() {
			return nil, ErrInvalidAmount
		}
		received = decimal.NewNullDecimal(d)
	}
	if req.Method == enum.PaymentMethodCash && !received.Valid {
		return nil, ErrAmountRequired
	}

	// --- Begin transaction ---
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Lock table ---
	table, err := store.GetTableForUpdate(ctx, req.TableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get table: %w", err)
	}

	// --- Payment method ---
	settings, err := store.GetSettings(ctx)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get settings: %w", err)
		}
		settings = DefaultSettings()
	}
	if !MethodEnabled(settings, req.Method) {
		return nil, ErrMethodDisabled
	}

	// --- Open orders and total ---
	orders, err := store.ListActiveOrdersByTable(ctx, table.ID)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	if len(orders) == 0 {
		return nil, ErrNoActiveOrders
	}
	for _, o := range orders {
		if !lifecycle.CanComplete(o.Status) {
			return nil, fmt.Errorf("%w: order %s is %s", ErrOrderNotSettleable, o.ID, o.Status)
		}
	}
	tab, err := buildTab(ctx, store, table, orders)
	if err != nil {
		return nil, err
	}

	var change decimal.NullDecimal
	if req.Method == enum.PaymentMethodCash {
		c := pricing.Change(tab.Total, received.Decimal)
		if c.IsNegative() {
			return nil, ErrInsufficientPayment
		}
		change = decimal.NewNullDecimal(c)
	}

	// --- Insert payment ---
	payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
		TableID:        table.ID,
		Method:         req.Method,
		Amount:         database.DecimalToNumeric(tab.Total),
		AmountReceived: nullDecimalToNumeric(received),
		ChangeAmount:   nullDecimalToNumeric(change),
		ProcessedBy:    req.ProcessedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	orderIDs := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		orderIDs = append(orderIDs, o.ID)
		if err := store.CreatePaymentOrder(ctx, database.CreatePaymentOrderParams{
			PaymentID: payment.ID,
			OrderID:   o.ID,
		}); err != nil {
			return nil, fmt.Errorf("create payment order: %w", err)
		}
	}

	// --- Complete orders ---
	completed, err := store.CompleteOrders(ctx, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("complete orders: %w", err)
	}

	// --- Release table ---
	// The table row is locked, so no order can have slipped in since the
	// active orders were read. ErrNoRows means one is still open anyway.
	open, err := store.CountActiveOrdersByTable(ctx, table.ID)
	if err != nil {
		return nil, fmt.Errorf("count active orders: %w", err)
	}
	released := table
	if lifecycle.TableStatusAfterSettle(open) == enum.TableStatusAvailable {
		released, err = store.ReleaseTableIfIdle(ctx, table.ID)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("release table: %w", err)
			}
			released = table
		}
	}

	// --- Receipt print job ---
	payload, err := json.Marshal(buildReceipt(settings, tab, payment, received, change))
	if err != nil {
		return nil, fmt.Errorf("encode receipt: %w", err)
	}
	job, err := store.CreatePrintJob(ctx, database.CreatePrintJobParams{
		PaymentID: pgtype.UUID{Bytes: payment.ID, Valid: true},
		Kind:      enum.PrintJobKindReceipt,
		Payload:   payload,
	})
	if err != nil {
		return nil, fmt.Errorf("create print job: %w", err)
	}

	// --- Commit ---
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CheckoutResult{
		Payment:  payment,
		Table:    released,
		Orders:   completed,
		PrintJob: job,
		Total:    tab.Total,
		Change:   change,
	}, nil
}

// buildTab loads the lines of the given orders and totals them.
func buildTab(ctx context.Context, store CheckoutStore, table database.Table, orders []database.Order) (*Tab, error) {
	tab := &Tab{Table: table, Total: decimal.Zero}
	if len(orders) == 0 {
		tab.Orders = []TabOrder{}
		return tab, nil
	}

	orderIDs := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		orderIDs = append(orderIDs, o.ID)
	}
	items, err := store.ListOrderItemsByOrders(ctx, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	itemIDs := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		itemIDs = append(itemIDs, it.ID)
	}
	var addons []database.OrderItemAddon
	if len(itemIDs) > 0 {
		addons, err = store.ListOrderItemAddonsByItems(ctx, itemIDs)
		if err != nil {
			return nil, fmt.Errorf("list order item addons: %w", err)
		}
	}

	tab.Orders = GroupOrderItems(orders, items, addons)
	snapshots := make([]pricing.OrderSnapshot, 0, len(tab.Orders))
	for i := range tab.Orders {
		snap := OrderSnapshot(tab.Orders[i].Order, tab.Orders[i].Items)
		tab.Orders[i].Amount = snap.Amount()
		snapshots = append(snapshots, snap)
	}
	tab.Total = pricing.TableTotal(snapshots)
	return tab, nil
}

// GroupOrderItems nests items and add-ons under their orders, keeping the
// order of each input slice.
func GroupOrderItems(orders []database.Order, items []database.OrderItem, addons []database.OrderItemAddon) []TabOrder {
	addonsByItem := make(map[uuid.UUID][]database.OrderItemAddon)
	for _, a := range addons {
		addonsByItem[a.OrderItemID] = append(addonsByItem[a.OrderItemID], a)
	}
	itemsByOrder := make(map[uuid.UUID][]OrderItemResult)
	for _, it := range items {
		itemsByOrder[it.OrderID] = append(itemsByOrder[it.OrderID], OrderItemResult{
			Item:   it,
			Addons: addonsByItem[it.ID],
		})
	}
	out := make([]TabOrder, 0, len(orders))
	for _, o := range orders {
		out = append(out, TabOrder{Order: o, Items: itemsByOrder[o.ID]})
	}
	return out
}

func buildReceipt(settings database.RestaurantSetting, tab *Tab, payment database.Payment, received, change decimal.NullDecimal) printing.Receipt {
	r := printing.Receipt{
		Restaurant:  settings.Name,
		Address:     settings.Address.String,
		Cnpj:        settings.Cnpj.String,
		Currency:    settings.Currency,
		TableNumber: tab.Table.Number,
		PaymentID:   payment.ID,
		Method:      payment.Method,
		Total:       tab.Total,
		ProcessedAt: payment.ProcessedAt,
	}
	if received.Valid {
		s := received.Decimal.StringFixed(2)
		r.AmountReceived = &s
	}
	if change.Valid {
		s := change.Decimal.StringFixed(2)
		r.Change = &s
	}
	for _, o := range tab.Orders {
		ro := printing.ReceiptOrder{ID: o.Order.ID, CreatedAt: o.Order.CreatedAt, Total: o.Amount}
		snap := OrderSnapshot(o.Order, o.Items)
		for i, it := range o.Items {
			rl := printing.ReceiptLine{
				Name:      it.Item.MenuItemName,
				SizeName:  it.Item.SizeName.String,
				Quantity:  it.Item.Quantity,
				UnitPrice: database.NumericToDecimal(it.Item.UnitPrice),
				Total:     snap.Lines[i].Total(),
			}
			for _, a := range it.Addons {
				rl.Addons = append(rl.Addons, printing.ReceiptAddon{
					Name:  a.AddonName,
					Price: database.NumericToDecimal(a.AddonPrice),
				})
			}
			ro.Lines = append(ro.Lines, rl)
		}
		r.Orders = append(r.Orders, ro)
	}
	return r
}

func nullDecimalToNumeric(d decimal.NullDecimal) pgtype.Numeric {
	if !d.Valid {
		return pgtype.Numeric{}
	}
	return database.DecimalToNumeric(d.Decimal)
}
