package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-digital/api/internal/database"
	"github.com/mesa-digital/api/internal/enum"
	"github.com/mesa-digital/api/internal/lifecycle"
	"github.com/mesa-digital/api/internal/metrics"
	"github.com/mesa-digital/api/internal/pricing"
	"github.com/mesa-digital/api/internal/service"
	"github.com/rs/zerolog/log"
)

// OrderStore defines the database methods needed by order read and
// kitchen endpoints. Satisfied by *database.Queries.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrdersByStatuses(ctx context.Context, statuses []string) ([]database.Order, error)
	ListOrderItemsByOrders(ctx context.Context, orderIDs []uuid.UUID) ([]database.OrderItem, error)
	ListOrderItemAddonsByItems(ctx context.Context, itemIDs []uuid.UUID) ([]database.OrderItemAddon, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	ListTables(ctx context.Context) ([]database.Table, error)
}

// OrderHandler handles admin order views and the kitchen board.
type OrderHandler struct {
	store  OrderStore
	notify Notifier
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(store OrderStore, notify Notifier) *OrderHandler {
	return &OrderHandler{store: store, notify: notifierOrNop(notify)}
}

// RegisterRoutes registers admin order endpoints on the given Chi router.
// Expected to be mounted at /admin/orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// RegisterKitchenRoutes registers the kitchen board endpoints.
// Expected to be mounted at /kitchen/orders.
func (h *OrderHandler) RegisterKitchenRoutes(r chi.Router) {
	r.Get("/", h.KitchenBoard)
	r.Patch("/{id}/status", h.UpdateStatus)
}

// --- Request / Response types ---

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderResponse struct {
	ID          uuid.UUID           `json:"id"`
	TableID     uuid.UUID           `json:"table_id"`
	TableNumber *int32              `json:"table_number,omitempty"`
	Status      string              `json:"status"`
	NextStatus  string              `json:"next_status,omitempty"`
	Total       *string             `json:"total"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	CompletedAt *time.Time          `json:"completed_at"`
	Items       []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID            uuid.UUID                `json:"id"`
	MenuItemID    *string                  `json:"menu_item_id"`
	MenuItemName  string                   `json:"menu_item_name"`
	SizeVariantID *string                  `json:"size_variant_id"`
	SizeName      *string                  `json:"size_name"`
	UnitPrice     *string                  `json:"unit_price"`
	Quantity      int32                    `json:"quantity"`
	Notes         *string                  `json:"notes"`
	LineTotal     string                   `json:"line_total"`
	Addons        []orderItemAddonResponse `json:"addons"`
}

type orderItemAddonResponse struct {
	ID      uuid.UUID `json:"id"`
	AddonID *string   `json:"addon_id"`
	Name    string    `json:"name"`
	Price   string    `json:"price"`
}

func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:         o.ID,
		TableID:    o.TableID,
		Status:     o.Status,
		NextStatus: lifecycle.NextKitchenStatus(o.Status),
		Total:      numericPtr(o.Total),
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
	if o.CompletedAt.Valid {
		t := o.CompletedAt.Time
		resp.CompletedAt = &t
	}
	return resp
}

func toOrderItemResponse(ir service.OrderItemResult) orderItemResponse {
	it := ir.Item
	resp := orderItemResponse{
		ID:            it.ID,
		MenuItemID:    database.UUIDPtr(it.MenuItemID),
		MenuItemName:  it.MenuItemName,
		SizeVariantID: database.UUIDPtr(it.SizeVariantID),
		SizeName:      textPtr(it.SizeName),
		UnitPrice:     numericPtr(it.UnitPrice),
		Quantity:      it.Quantity,
		Notes:         textPtr(it.Notes),
		Addons:        make([]orderItemAddonResponse, len(ir.Addons)),
	}

	line := pricing.Line{
		UnitPrice: database.NumericToDecimal(it.UnitPrice),
		Quantity:  it.Quantity,
	}
	for i, a := range ir.Addons {
		resp.Addons[i] = orderItemAddonResponse{
			ID:      a.ID,
			AddonID: database.UUIDPtr(a.AddonID),
			Name:    a.AddonName,
			Price:   numericToString(a.AddonPrice),
		}
		id := a.ID
		if a.AddonID.Valid {
			id = a.AddonID.Bytes
		}
		line.Addons = append(line.Addons, pricing.Addon{ID: id, Name: a.AddonName, Price: database.NumericToDecimal(a.AddonPrice)})
	}
	resp.LineTotal = line.Total().StringFixed(2)
	return resp
}

func toOrderResponse(result *service.CreateOrderResult) orderResponse {
	resp := dbOrderToResponse(result.Order)
	number := result.Table.Number
	resp.TableNumber = &number
	resp.Items = make([]orderItemResponse, len(result.Items))
	for i, ir := range result.Items {
		resp.Items[i] = toOrderItemResponse(ir)
	}
	return resp
}

func toTabOrderResponse(to service.TabOrder) orderResponse {
	resp := dbOrderToResponse(to.Order)
	resp.Items = make([]orderItemResponse, len(to.Items))
	for i, ir := range to.Items {
		resp.Items[i] = toOrderItemResponse(ir)
	}
	return resp
}

// --- Handlers ---

// List returns orders filtered by status, table and date range, newest first.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := database.ListOrdersParams{}

	if s := q.Get("status"); s != "" {
		if !lifecycle.IsValidOrderStatus(s) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
			return
		}
		params.Status = pgtype.Text{String: s, Valid: true}
	}

	if s := q.Get("table_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table_id"})
			return
		}
		params.TableID = pgtype.UUID{Bytes: id, Valid: true}
	}

	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	params.StartDate = start
	params.EndDate = end

	limit, offset, err := parsePagination(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	params.Limit = limit
	params.Offset = offset

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Error().Err(err).Msg("list orders")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	numbers, err := h.tableNumbers(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list orders: tables")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
		if n, ok := numbers[o.TableID]; ok {
			resp[i].TableNumber = &n
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"orders": resp,
		"limit":  limit,
		"offset": offset,
	})
}

// Get returns a single order with its lines and add-ons.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Error().Err(err).Msg("get order")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp, err := h.withDetails(r.Context(), []database.Order{order})
	if err != nil {
		log.Error().Err(err).Msg("get order: details")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, resp[0])
}

// KitchenBoard returns pending and preparing orders, oldest first, with
// their lines.
func (h *OrderHandler) KitchenBoard(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListOrdersByStatuses(r.Context(), lifecycle.KitchenStatuses())
	if err != nil {
		log.Error().Err(err).Msg("kitchen board")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp, err := h.withDetails(r.Context(), orders)
	if err != nil {
		log.Error().Err(err).Msg("kitchen board: details")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpdateStatus moves an order one step forward on the kitchen board.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	current, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Error().Err(err).Msg("update status: get order")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := lifecycle.ValidateKitchenTransition(current.Status, req.Status); err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrUnknownStatus):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		default:
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return
	}

	// Conditional update: a concurrent change surfaces as ErrNoRows.
	updated, err := h.store.UpdateOrderStatus(r.Context(), database.UpdateOrderStatusParams{
		ID:            orderID,
		Status:        req.Status,
		CurrentStatus: current.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order status changed, please retry"})
			return
		}
		log.Error().Err(err).Msg("update order status")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dbOrderToResponse(updated)
	metrics.RecordStatusChange(updated.Status)
	h.notify.Notify(enum.TopicOrders, enum.ChangeUpdate, resp)
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func (h *OrderHandler) tableNumbers(ctx context.Context) (map[uuid.UUID]int32, error) {
	tables, err := h.store.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	numbers := make(map[uuid.UUID]int32, len(tables))
	for _, t := range tables {
		numbers[t.ID] = t.Number
	}
	return numbers, nil
}

// withDetails loads lines, add-ons and table numbers for the given orders.
func (h *OrderHandler) withDetails(ctx context.Context, orders []database.Order) ([]orderResponse, error) {
	resp := make([]orderResponse, 0, len(orders))
	if len(orders) == 0 {
		return resp, nil
	}

	orderIDs := make([]uuid.UUID, len(orders))
	for i, o := range orders {
		orderIDs[i] = o.ID
	}
	items, err := h.store.ListOrderItemsByOrders(ctx, orderIDs)
	if err != nil {
		return nil, err
	}
	var addons []database.OrderItemAddon
	if len(items) > 0 {
		itemIDs := make([]uuid.UUID, len(items))
		for i, it := range items {
			itemIDs[i] = it.ID
		}
		addons, err = h.store.ListOrderItemAddonsByItems(ctx, itemIDs)
		if err != nil {
			return nil, err
		}
	}

	numbers, err := h.tableNumbers(ctx)
	if err != nil {
		return nil, err
	}

	for _, to := range service.GroupOrderItems(orders, items, addons) {
		o := toTabOrderResponse(to)
		if n, ok := numbers[o.TableID]; ok {
			o.TableNumber = &n
		}
		resp = append(resp, o)
	}
	return resp, nil
}
