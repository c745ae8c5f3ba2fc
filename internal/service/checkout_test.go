package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-digital/api/internal/database"
	"github.com/mesa-digital/api/internal/enum"
	"github.com/mesa-digital/api/internal/printing"
	"github.com/shopspring/decimal"
)

// mockCheckoutStore implements CheckoutStore over in-memory rows.
type mockCheckoutStore struct {
	tables   map[uuid.UUID]database.Table
	settings *database.RestaurantSetting
	orders   []database.Order
	items    []database.OrderItem
	addons   []database.OrderItemAddon

	// lateOrder is left open after CompleteOrders to simulate an order
	// that is still active when the table is released.
	lateOrder bool

	countCalls   int
	releaseCalls int

	payments      []database.CreatePaymentParams
	paymentOrders []database.CreatePaymentOrderParams
	printJobs     []database.CreatePrintJobParams
}

func newMockCheckoutStore() *mockCheckoutStore {
	return &mockCheckoutStore{tables: make(map[uuid.UUID]database.Table)}
}

func (m *mockCheckoutStore) GetTable(ctx context.Context, id uuid.UUID) (database.Table, error) {
	t, ok := m.tables[id]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *mockCheckoutStore) GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.Table, error) {
	return m.GetTable(ctx, id)
}

func (m *mockCheckoutStore) GetSettings(ctx context.Context) (database.RestaurantSetting, error) {
	if m.settings == nil {
		return database.RestaurantSetting{}, pgx.ErrNoRows
	}
	return *m.settings, nil
}

func (m *mockCheckoutStore) openOrders(tableID uuid.UUID) []database.Order {
	var out []database.Order
	for _, o := range m.orders {
		if o.TableID == tableID && o.Status != enum.OrderStatusCompleted {
			out = append(out, o)
		}
	}
	return out
}

func (m *mockCheckoutStore) ListActiveOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]database.Order, error) {
	return m.openOrders(tableID), nil
}

func (m *mockCheckoutStore) ListOpenOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]database.Order, error) {
	return m.openOrders(tableID), nil
}

func (m *mockCheckoutStore) ListOrderItemsByOrders(ctx context.Context, orderIDs []uuid.UUID) ([]database.OrderItem, error) {
	want := make(map[uuid.UUID]bool)
	for _, id := range orderIDs {
		want[id] = true
	}
	var out []database.OrderItem
	for _, it := range m.items {
		if want[it.OrderID] {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *mockCheckoutStore) ListOrderItemAddonsByItems(ctx context.Context, itemIDs []uuid.UUID) ([]database.OrderItemAddon, error) {
	want := make(map[uuid.UUID]bool)
	for _, id := range itemIDs {
		want[id] = true
	}
	var out []database.OrderItemAddon
	for _, a := range m.addons {
		if want[a.OrderItemID] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockCheckoutStore) CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
	m.payments = append(m.payments, arg)
	return database.Payment{
		ID:             uuid.New(),
		TableID:        arg.TableID,
		Method:         arg.Method,
		Amount:         arg.Amount,
		AmountReceived: arg.AmountReceived,
		ChangeAmount:   arg.ChangeAmount,
		ProcessedBy:    arg.ProcessedBy,
		ProcessedAt:    time.Now(),
	}, nil
}

func (m *mockCheckoutStore) CreatePaymentOrder(ctx context.Context, arg database.CreatePaymentOrderParams) error {
	m.paymentOrders = append(m.paymentOrders, arg)
	return nil
}

func (m *mockCheckoutStore) CompleteOrders(ctx context.Context, ids []uuid.UUID) ([]database.Order, error) {
	want := make(map[uuid.UUID]bool)
	for _, id := range ids {
		want[id] = true
	}
	var out []database.Order
	for i := range m.orders {
		if want[m.orders[i].ID] {
			m.orders[i].Status = enum.OrderStatusCompleted
			m.orders[i].CompletedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
			out = append(out, m.orders[i])
		}
	}
	if m.lateOrder {
		for tableID := range m.tables {
			m.orders = append(m.orders, database.Order{ID: uuid.New(), TableID: tableID, Status: enum.OrderStatusPending})
		}
	}
	return out, nil
}

func (m *mockCheckoutStore) CountActiveOrdersByTable(ctx context.Context, tableID uuid.UUID) (int64, error) {
	m.countCalls++
	return int64(len(m.openOrders(tableID))), nil
}

func (m *mockCheckoutStore) ReleaseTableIfIdle(ctx context.Context, id uuid.UUID) (database.Table, error) {
	m.releaseCalls++
	if len(m.openOrders(id)) > 0 {
		return database.Table{}, pgx.ErrNoRows
	}
	t := m.tables[id]
	t.Status = enum.TableStatusAvailable
	m.tables[id] = t
	return t, nil
}

func (m *mockCheckoutStore) CreatePrintJob(ctx context.Context, arg database.CreatePrintJobParams) (database.PrintJob, error) {
	m.printJobs = append(m.printJobs, arg)
	return database.PrintJob{
		ID:        uuid.New(),
		PaymentID: arg.PaymentID,
		Kind:      arg.Kind,
		Payload:   arg.Payload,
		Status:    enum.PrintJobStatusPending,
	}, nil
}

// --- Test helpers ---

func newTestCheckoutService(store *mockCheckoutStore) (*CheckoutService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	return NewCheckoutService(pool, func(db database.DBTX) CheckoutStore { return store }), tx
}

// seedOpenTab gives an occupied table two open orders: one stored with a
// total of 40.00 and one legacy order with no total whose line snapshot
// adds up to 15.50.
func seedOpenTab(store *mockCheckoutStore) uuid.UUID {
	tableID := uuid.New()
	store.tables[tableID] = database.Table{ID: tableID, Number: 4, Status: enum.TableStatusOccupied}

	first := database.Order{ID: uuid.New(), TableID: tableID, Status: enum.OrderStatusReady, Total: makeNumeric("40.00")}
	legacy := database.Order{ID: uuid.New(), TableID: tableID, Status: enum.OrderStatusPending}
	store.orders = append(store.orders, first, legacy)

	firstLine := database.OrderItem{ID: uuid.New(), OrderID: first.ID, MenuItemName: "Pizza", UnitPrice: makeNumeric("20.00"), Quantity: 2}
	legacyLine := database.OrderItem{ID: uuid.New(), OrderID: legacy.ID, MenuItemName: "Juice", UnitPrice: makeNumeric("6.75"), Quantity: 2}
	store.items = append(store.items, firstLine, legacyLine)
	store.addons = append(store.addons, database.OrderItemAddon{
		ID: uuid.New(), OrderItemID: legacyLine.ID, AddonName: "Ice", AddonPrice: makeNumeric("1.00"),
	})
	return tableID
}

// --- Tests ---

func TestTab_TotalsOpenOrders(t *testing.T) {
	store := newMockCheckoutStore()
	tableID := seedOpenTab(store)
	svc, _ := newTestCheckoutService(store)

	tab, err := svc.Tab(context.Background(), tableID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tab.Total.Equal(decimal.RequireFromString("55.50")) {
		t.Errorf("expected 55.50, got %s", tab.Total)
	}
	if len(tab.Orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(tab.Orders))
	}
	if !tab.Orders[1].Amount.Equal(decimal.RequireFromString("15.50")) {
		t.Errorf("expected legacy order recomputed to 15.50, got %s", tab.Orders[1].Amount)
	}
	if len(tab.Orders[1].Items[0].Addons) != 1 {
		t.Errorf("expected addon nested under legacy line")
	}
}

func TestTab_EmptyAndMissingTable(t *testing.T) {
	store := newMockCheckoutStore()
	tableID := uuid.New()
	store.tables[tableID] = database.Table{ID: tableID, Number: 1, Status: enum.TableStatusAvailable}
	svc, _ := newTestCheckoutService(store)

	tab, err := svc.Tab(context.Background(), tableID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tab.Total.IsZero() || len(tab.Orders) != 0 {
		t.Errorf("expected empty tab, got %+v", tab)
	}

	if _, err := svc.Tab(context.Background(), uuid.New()); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("expected ErrTableNotFound, got %v", err)
	}
}

func TestCheckout_CashSettlesTable(t *testing.T) {
	store := newMockCheckoutStore()
	tableID := seedOpenTab(store)
	svc, tx := newTestCheckoutService(store)
	staff := uuid.New()

	result, err := svc.Checkout(context.Background(), CheckoutRequest{
		TableID:        tableID,
		Method:         enum.PaymentMethodCash,
		AmountReceived: "60",
		ProcessedBy:    staff,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Total.Equal(decimal.RequireFromString("55.50")) {
		t.Errorf("expected total 55.50, got %s", result.Total)
	}
	if !result.Change.Valid || !result.Change.Decimal.Equal(decimal.RequireFromString("4.50")) {
		t.Errorf("expected change 4.50, got %v", result.Change)
	}
	if !numericEquals(store.payments[0].Amount, "55.50") {
		t.Errorf("payment amount not stored")
	}
	if store.payments[0].ProcessedBy != staff {
		t.Errorf("processed_by not stored")
	}
	if len(store.paymentOrders) != 2 {
		t.Errorf("expected 2 payment_orders, got %d", len(store.paymentOrders))
	}
	if len(result.Orders) != 2 {
		t.Errorf("expected 2 completed orders, got %d", len(result.Orders))
	}
	if got := len(store.openOrders(tableID)); got != 0 {
		t.Errorf("expected zero active orders, got %d", got)
	}
	if result.Table.Status != enum.TableStatusAvailable {
		t.Errorf("expected table available, got %s", result.Table.Status)
	}
	if !tx.committed {
		t.Error("expected commit")
	}

	// Receipt goes to the outbox in the same transaction
	if len(store.printJobs) != 1 {
		t.Fatalf("expected 1 print job, got %d", len(store.printJobs))
	}
	var receipt printing.Receipt
	if err := json.Unmarshal(store.printJobs[0].Payload, &receipt); err != nil {
		t.Fatalf("receipt payload: %v", err)
	}
	if receipt.TableNumber != 4 || len(receipt.Orders) != 2 {
		t.Errorf("unexpected receipt %+v", receipt)
	}
	if receipt.Change == nil || *receipt.Change != "4.50" {
		t.Errorf("expected change on receipt, got %v", receipt.Change)
	}
	if receipt.Restaurant != DefaultSettings().Name {
		t.Errorf("expected default restaurant name, got %q", receipt.Restaurant)
	}
}

func TestCheckout_PixWithoutAmount(t *testing.T) {
	store := newMockCheckoutStore()
	tableID := seedOpenTab(store)
	svc, _ := newTestCheckoutService(store)

	result, err := svc.Checkout(context.Background(), CheckoutRequest{TableID: tableID, Method: enum.PaymentMethodPix})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Change.Valid {
		t.Errorf("pix payment has no change")
	}
	if store.payments[0].AmountReceived.Valid {
		t.Errorf("amount_received should be NULL")
	}
}

func TestCheckout_KeepsTableOccupiedWhileOrdersRemain(t *testing.T) {
	store := newMockCheckoutStore()
	tableID := seedOpenTab(store)
	store.lateOrder = true
	svc, _ := newTestCheckoutService(store)

	result, err := svc.Checkout(context.Background(), CheckoutRequest{TableID: tableID, Method: enum.PaymentMethodCard})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Table.Status != enum.TableStatusOccupied {
		t.Errorf("expected table to stay occupied, got %s", result.Table.Status)
	}
	if store.countCalls != 1 {
		t.Errorf("expected open orders counted once, got %d", store.countCalls)
	}
	if store.releaseCalls != 0 {
		t.Errorf("table with open orders must not be released, got %d release calls", store.releaseCalls)
	}
}

func TestCheckout_RejectsOrderThatCannotComplete(t *testing.T) {
	store := newMockCheckoutStore()
	tableID := seedOpenTab(store)
	store.orders = append(store.orders, database.Order{ID: uuid.New(), TableID: tableID, Status: "archived"})
	svc, tx := newTestCheckoutService(store)

	_, err := svc.Checkout(context.Background(), CheckoutRequest{TableID: tableID, Method: enum.PaymentMethodCard})
	if !errors.Is(err, ErrOrderNotSettleable) {
		t.Fatalf("expected ErrOrderNotSettleable, got %v", err)
	}
	if tx.committed || len(store.payments) != 0 {
		t.Error("nothing may be written on error")
	}
	for _, o := range store.orders {
		if o.Status == enum.OrderStatusCompleted {
			t.Errorf("order %s completed despite rejected settlement", o.ID)
		}
	}
}

func TestCheckout_Errors(t *testing.T) {
	disabled := DefaultSettings()
	disabled.AcceptsCard = false

	tests := []struct {
		name     string
		settings *database.RestaurantSetting
		emptyTab bool
		req      func(tableID uuid.UUID) CheckoutRequest
		wantErr  error
	}{
		{
			name:    "invalid method",
			req:     func(id uuid.UUID) CheckoutRequest { return CheckoutRequest{TableID: id, Method: "cheque"} },
			wantErr: ErrInvalidMethod,
		},
		{
			name:    "cash without amount",
			req:     func(id uuid.UUID) CheckoutRequest { return CheckoutRequest{TableID: id, Method: enum.PaymentMethodCash} },
			wantErr: ErrAmountRequired,
		},
		{
			name: "bad amount",
			req: func(id uuid.UUID) CheckoutRequest {
				return CheckoutRequest{TableID: id, Method: enum.PaymentMethodCash, AmountReceived: "lots"}
			},
			wantErr: ErrInvalidAmount,
		},
		{
			name: "insufficient cash",
			req: func(id uuid.UUID) CheckoutRequest {
				return CheckoutRequest{TableID: id, Method: enum.PaymentMethodCash, AmountReceived: "50.00"}
			},
			wantErr: ErrInsufficientPayment,
		},
		{
			name:     "method disabled",
			settings: &disabled,
			req:      func(id uuid.UUID) CheckoutRequest { return CheckoutRequest{TableID: id, Method: enum.PaymentMethodCard} },
			wantErr:  ErrMethodDisabled,
		},
		{
			name:     "empty tab",
			emptyTab: true,
			req:      func(id uuid.UUID) CheckoutRequest { return CheckoutRequest{TableID: id, Method: enum.PaymentMethodCard} },
			wantErr:  ErrNoActiveOrders,
		},
		{
			name:    "unknown table",
			req:     func(uuid.UUID) CheckoutRequest { return CheckoutRequest{TableID: uuid.New(), Method: enum.PaymentMethodCard} },
			wantErr: ErrTableNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockCheckoutStore()
			tableID := seedOpenTab(store)
			if tt.emptyTab {
				store.orders = nil
			}
			store.settings = tt.settings
			svc, tx := newTestCheckoutService(store)

			_, err := svc.Checkout(context.Background(), tt.req(tableID))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tx.committed || len(store.payments) != 0 {
				t.Error("nothing may be written on error")
			}
		})
	}
}

func TestMethodEnabled(t *testing.T) {
	s := DefaultSettings()
	s.AcceptsPix = false
	if !MethodEnabled(s, enum.PaymentMethodCash) || MethodEnabled(s, enum.PaymentMethodPix) || MethodEnabled(s, "cheque") {
		t.Error("unexpected method flags")
	}
}
