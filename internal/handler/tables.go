package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mesa-digital/api/internal/database"
	"github.com/mesa-digital/api/internal/enum"
	"github.com/mesa-digital/api/internal/lifecycle"
	"github.com/mesa-digital/api/internal/qr"
	"github.com/rs/zerolog/log"
)

// TableStore defines the database methods needed by table handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type TableStore interface {
	ListTables(ctx context.Context) ([]database.Table, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	CreateTable(ctx context.Context, number int32) (database.Table, error)
	DeleteTable(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error)
	CountActiveOrdersByTable(ctx context.Context, tableID uuid.UUID) (int64, error)
}

// TableHandler handles the table registry.
type TableHandler struct {
	store  TableStore
	origin string
	notify Notifier
}

// NewTableHandler creates a new TableHandler. origin is the public address
// of the diner menu, encoded into table QR codes.
func NewTableHandler(store TableStore, origin string, notify Notifier) *TableHandler {
	return &TableHandler{store: store, origin: origin, notify: notifierOrNop(notify)}
}

// RegisterRoutes registers table endpoints on the given Chi router.
// Expected to be mounted at /admin/tables.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Get("/{id}/qr", h.QRCode)
}

// --- Request / Response types ---

type createTableRequest struct {
	Number int32 `json:"number"`
}

type updateTableStatusRequest struct {
	Status string `json:"status"`
}

type tableResponse struct {
	ID        uuid.UUID `json:"id"`
	Number    int32     `json:"number"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toTableResponse(t database.Table) tableResponse {
	return tableResponse{
		ID:        t.ID,
		Number:    t.Number,
		Status:    t.Status,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// --- Handlers ---

// List returns all tables ordered by number.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	tables, err := h.store.ListTables(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list tables")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = toTableResponse(t)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single table.
func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	table, ok := h.loadTable(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

// Create registers a new table, initially available.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Number <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "number must be > 0"})
		return
	}

	table, err := h.store.CreateTable(r.Context(), req.Number)
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "table number already exists"})
			return
		}
		log.Error().Err(err).Msg("create table")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toTableResponse(table)
	h.notify.Notify(enum.TopicTables, enum.ChangeInsert, resp)
	writeJSON(w, http.StatusCreated, resp)
}

// Delete removes a table. Tables with open orders, or with any order
// history, cannot be deleted.
func (h *TableHandler) Delete(w http.ResponseWriter, r *http.Request) {
	table, ok := h.loadTable(w, r)
	if !ok {
		return
	}

	active, err := h.store.CountActiveOrdersByTable(r.Context(), table.ID)
	if err != nil {
		log.Error().Err(err).Msg("delete table: count active orders")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if active > 0 {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "table has open orders"})
		return
	}

	if _, err := h.store.DeleteTable(r.Context(), table.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
			return
		}
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "table has order history"})
			return
		}
		log.Error().Err(err).Msg("delete table")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.notify.Notify(enum.TopicTables, enum.ChangeDelete, toTableResponse(table))
	w.WriteHeader(http.StatusNoContent)
}

// UpdateStatus is the manual status override. Any valid status is accepted.
func (h *TableHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	var req updateTableStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := lifecycle.ValidateTableStatus(req.Status); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	table, err := h.store.UpdateTableStatus(r.Context(), database.UpdateTableStatusParams{
		ID:     tableID,
		Status: req.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
			return
		}
		log.Error().Err(err).Msg("update table status")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toTableResponse(table)
	h.notify.Notify(enum.TopicTables, enum.ChangeUpdate, resp)
	writeJSON(w, http.StatusOK, resp)
}

// QRCode renders a PNG pointing diners at the table's menu. ?size= sets
// the edge length in pixels.
func (h *TableHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	size := qr.DefaultSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid size"})
			return
		}
		size = n
	}

	table, ok := h.loadTable(w, r)
	if !ok {
		return
	}

	png, err := qr.TablePNG(h.origin, table.Number, size)
	if err != nil {
		if errors.Is(err, qr.ErrInvalidSize) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Error().Err(err).Msg("render table qr")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", "inline; filename=\"mesa-"+strconv.Itoa(int(table.Number))+".png\"")
	w.WriteHeader(http.StatusOK)
	w.Write(png) //nolint:errcheck
}

// --- Helpers ---

func (h *TableHandler) loadTable(w http.ResponseWriter, r *http.Request) (database.Table, bool) {
	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return database.Table{}, false
	}

	table, err := h.store.GetTable(r.Context(), tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
			return database.Table{}, false
		}
		log.Error().Err(err).Msg("get table")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return database.Table{}, false
	}
	return table, true
}
