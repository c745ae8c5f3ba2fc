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
	"github.com/mesa-digital/api/internal/metrics"
	"github.com/mesa-digital/api/internal/middleware"
	"github.com/mesa-digital/api/internal/service"
	"github.com/rs/zerolog/log"
)

// CheckoutServicer defines the service methods the checkout handler needs.
// Satisfied by *service.CheckoutService.
type CheckoutServicer interface {
	Tab(ctx context.Context, tableID uuid.UUID) (*service.Tab, error)
	Checkout(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error)
}

// PaymentStore defines the database methods needed by payment read endpoints.
// Satisfied by *database.Queries; narrow interface for testability.
type PaymentStore interface {
	GetPayment(ctx context.Context, id uuid.UUID) (database.Payment, error)
	ListPayments(ctx context.Context, arg database.ListPaymentsParams) ([]database.Payment, error)
	ListPaymentOrderIDs(ctx context.Context, paymentID uuid.UUID) ([]uuid.UUID, error)
}

// CheckoutHandler handles open tabs, table settlement and payment history.
type CheckoutHandler struct {
	svc    CheckoutServicer
	store  PaymentStore
	queue  PrintQueue
	notify Notifier
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(svc CheckoutServicer, store PaymentStore, queue PrintQueue, notify Notifier) *CheckoutHandler {
	return &CheckoutHandler{svc: svc, store: store, queue: queue, notify: notifierOrNop(notify)}
}

// RegisterTableRoutes registers per-table endpoints.
// Expected to be mounted at /admin/tables.
func (h *CheckoutHandler) RegisterTableRoutes(r chi.Router) {
	r.Get("/{id}/tab", h.Tab)
	r.Post("/{id}/checkout", h.Checkout)
	r.Get("/{id}/payments", h.ListByTable)
}

// RegisterRoutes registers payment history endpoints.
// Expected to be mounted at /admin/payments.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// --- Request / Response types ---

type checkoutRequest struct {
	Method         string `json:"method"`
	AmountReceived string `json:"amount_received"`
}

type tabOrderResponse struct {
	orderResponse
	Amount string `json:"amount"`
}

type tabResponse struct {
	Table  tableResponse      `json:"table"`
	Orders []tabOrderResponse `json:"orders"`
	Total  string             `json:"total"`
}

type paymentResponse struct {
	ID             uuid.UUID   `json:"id"`
	TableID        uuid.UUID   `json:"table_id"`
	Method         string      `json:"method"`
	Amount         string      `json:"amount"`
	AmountReceived *string     `json:"amount_received"`
	ChangeAmount   *string     `json:"change_amount"`
	ProcessedBy    uuid.UUID   `json:"processed_by"`
	ProcessedAt    time.Time   `json:"processed_at"`
	OrderIDs       []uuid.UUID `json:"order_ids,omitempty"`
}

type checkoutResponse struct {
	Payment  paymentResponse  `json:"payment"`
	Table    tableResponse    `json:"table"`
	Orders   []orderResponse  `json:"orders"`
	PrintJob printJobResponse `json:"print_job"`
	Total    string           `json:"total"`
	Change   *string          `json:"change"`
}

func dbPaymentToResponse(p database.Payment) paymentResponse {
	return paymentResponse{
		ID:             p.ID,
		TableID:        p.TableID,
		Method:         p.Method,
		Amount:         numericToString(p.Amount),
		AmountReceived: numericPtr(p.AmountReceived),
		ChangeAmount:   numericPtr(p.ChangeAmount),
		ProcessedBy:    p.ProcessedBy,
		ProcessedAt:    p.ProcessedAt,
	}
}

func toTabResponse(tab *service.Tab) tabResponse {
	resp := tabResponse{
		Table:  toTableResponse(tab.Table),
		Orders: make([]tabOrderResponse, len(tab.Orders)),
		Total:  tab.Total.StringFixed(2),
	}
	for i, to := range tab.Orders {
		o := toTabOrderResponse(to)
		number := tab.Table.Number
		o.TableNumber = &number
		resp.Orders[i] = tabOrderResponse{orderResponse: o, Amount: to.Amount.StringFixed(2)}
	}
	return resp
}

// --- Handlers ---

// Tab returns the table's open orders and what is owed.
func (h *CheckoutHandler) Tab(w http.ResponseWriter, r *http.Request) {
	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	tab, err := h.svc.Tab(r.Context(), tableID)
	if err != nil {
		if errors.Is(err, service.ErrTableNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
			return
		}
		log.Error().Err(err).Msg("get tab")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toTabResponse(tab))
}

// Checkout settles every open order of the table with one payment. The
// receipt is queued for printing once the settlement has committed.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.Checkout(r.Context(), service.CheckoutRequest{
		TableID:        tableID,
		Method:         req.Method,
		AmountReceived: req.AmountReceived,
		ProcessedBy:    claims.UserID,
	})
	if err != nil {
		switch {
		case isCheckoutValidationError(err):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrTableNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
		case errors.Is(err, service.ErrNoActiveOrders), errors.Is(err, service.ErrOrderNotSettleable):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Error().Err(err).Str("table_id", tableID.String()).Msg("checkout")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	resp := checkoutResponse{
		Payment:  dbPaymentToResponse(result.Payment),
		Table:    toTableResponse(result.Table),
		Orders:   make([]orderResponse, len(result.Orders)),
		PrintJob: toPrintJobResponse(result.PrintJob),
		Total:    result.Total.StringFixed(2),
	}
	for i, o := range result.Orders {
		resp.Orders[i] = dbOrderToResponse(o)
		resp.Payment.OrderIDs = append(resp.Payment.OrderIDs, o.ID)
	}
	if result.Change.Valid {
		c := result.Change.Decimal.StringFixed(2)
		resp.Change = &c
	}

	if h.queue != nil {
		h.queue.Enqueue(result.PrintJob.ID)
	}
	total, _ := result.Total.Float64()
	metrics.RecordCheckout(result.Payment.Method, total)

	h.notify.Notify(enum.TopicPayments, enum.ChangeInsert, resp.Payment)
	for _, o := range resp.Orders {
		h.notify.Notify(enum.TopicOrders, enum.ChangeUpdate, o)
	}
	h.notify.Notify(enum.TopicTables, enum.ChangeUpdate, resp.Table)

	writeJSON(w, http.StatusCreated, resp)
}

// ListByTable returns the payment history of one table.
func (h *CheckoutHandler) ListByTable(w http.ResponseWriter, r *http.Request) {
	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}
	h.listPayments(w, r, pgtype.UUID{Bytes: tableID, Valid: true})
}

// List returns payments, newest first, optionally filtered by ?table_id=
// and a start_date/end_date range.
func (h *CheckoutHandler) List(w http.ResponseWriter, r *http.Request) {
	var tableID pgtype.UUID
	if v := r.URL.Query().Get("table_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table_id"})
			return
		}
		tableID = pgtype.UUID{Bytes: id, Valid: true}
	}
	h.listPayments(w, r, tableID)
}

// Get returns a payment with the IDs of the orders it settled.
func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment ID"})
		return
	}

	payment, err := h.store.GetPayment(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment not found"})
			return
		}
		log.Error().Err(err).Msg("get payment")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	orderIDs, err := h.store.ListPaymentOrderIDs(r.Context(), paymentID)
	if err != nil {
		log.Error().Err(err).Msg("list payment orders")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dbPaymentToResponse(payment)
	resp.OrderIDs = orderIDs
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func (h *CheckoutHandler) listPayments(w http.ResponseWriter, r *http.Request, tableID pgtype.UUID) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	payments, err := h.store.ListPayments(r.Context(), database.ListPaymentsParams{
		TableID:   tableID,
		StartDate: start,
		EndDate:   end,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		log.Error().Err(err).Msg("list payments")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = dbPaymentToResponse(p)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payments": resp,
		"limit":    limit,
		"offset":   offset,
	})
}

// isCheckoutValidationError reports errors caused by the request itself.
func isCheckoutValidationError(err error) bool {
	return errors.Is(err, service.ErrInvalidMethod) ||
		errors.Is(err, service.ErrMethodDisabled) ||
		errors.Is(err, service.ErrInvalidAmount) ||
		errors.Is(err, service.ErrAmountRequired) ||
		errors.Is(err, service.ErrInsufficientPayment)
}
