package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mesa-digital/api/internal/database"
	"github.com/mesa-digital/api/internal/service"
	"github.com/rs/zerolog/log"
)

// SizeVariantStore defines the database methods needed by size variant handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type SizeVariantStore interface {
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	ListSizeVariantsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]database.SizeVariant, error)
	CreateSizeVariant(ctx context.Context, arg database.CreateSizeVariantParams) (database.SizeVariant, error)
	UpdateSizeVariant(ctx context.Context, arg database.UpdateSizeVariantParams) (database.SizeVariant, error)
	ClearDefaultSizeVariant(ctx context.Context, menuItemID uuid.UUID) error
	DeleteSizeVariant(ctx context.Context, arg database.DeleteSizeVariantParams) (uuid.UUID, error)
	DeleteSizeVariantsByMenuItem(ctx context.Context, menuItemID uuid.UUID) error
}

// NewSizeVariantStore creates a SizeVariantStore from a DBTX (pool or tx).
type NewSizeVariantStore func(db database.DBTX) SizeVariantStore

// SizeVariantHandler handles the size variants of a menu item.
type SizeVariantHandler struct {
	store    SizeVariantStore
	pool     service.TxBeginner
	newStore NewSizeVariantStore
}

// NewSizeVariantHandler creates a new SizeVariantHandler.
func NewSizeVariantHandler(store SizeVariantStore, pool service.TxBeginner, newStore NewSizeVariantStore) *SizeVariantHandler {
	return &SizeVariantHandler{store: store, pool: pool, newStore: newStore}
}

// RegisterRoutes registers size variant endpoints on the given Chi router.
// Expected to be mounted at /admin/menu-items/{mid}
func (h *SizeVariantHandler) RegisterRoutes(r chi.Router) {
	r.Get("/size-variants", h.List)
	r.Post("/size-variants", h.Create)
	r.Put("/size-variants", h.ReplaceAll)
	r.Put("/size-variants/{vid}", h.Update)
	r.Delete("/size-variants/{vid}", h.Delete)
}

// --- Request / Response types ---

type sizeVariantRequest struct {
	SizeName      string `json:"size_name"`
	PriceModifier string `json:"price_modifier"`
	IsDefault     bool   `json:"is_default"`
	IsActive      *bool  `json:"is_active"`
}

type replaceSizeVariantsRequest struct {
	Variants []sizeVariantRequest `json:"variants"`
}

type sizeVariantResponse struct {
	ID            uuid.UUID `json:"id"`
	MenuItemID    uuid.UUID `json:"menu_item_id"`
	SizeName      string    `json:"size_name"`
	PriceModifier string    `json:"price_modifier"`
	IsDefault     bool      `json:"is_default"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

func toSizeVariantResponse(v database.SizeVariant) sizeVariantResponse {
	return sizeVariantResponse{
		ID:            v.ID,
		MenuItemID:    v.MenuItemID,
		SizeName:      v.SizeName,
		PriceModifier: numericToString(v.PriceModifier),
		IsDefault:     v.IsDefault,
		IsActive:      v.IsActive,
		CreatedAt:     v.CreatedAt,
	}
}

// --- Handlers ---

// List returns the item's variants, default first.
func (h *SizeVariantHandler) List(w http.ResponseWriter, r *http.Request) {
	itemID, ok := h.verifyMenuItem(w, r, h.store)
	if !ok {
		return
	}

	variants, err := h.store.ListSizeVariantsByMenuItem(r.Context(), itemID)
	if err != nil {
		log.Error().Err(err).Msg("list size variants")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toSizeVariantResponses(variants))
}

// Create adds a variant. A new default replaces the previous one.
func (h *SizeVariantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req sizeVariantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params, errMsg := sizeVariantParams(req)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("create size variant: begin tx")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context()) //nolint:errcheck

	txStore := h.newStore(tx)
	itemID, ok := h.verifyMenuItem(w, r, txStore)
	if !ok {
		return
	}
	params.MenuItemID = itemID

	if params.IsDefault {
		if err := txStore.ClearDefaultSizeVariant(r.Context(), itemID); err != nil {
			log.Error().Err(err).Msg("create size variant: clear default")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	}

	variant, err := txStore.CreateSizeVariant(r.Context(), params)
	if err != nil {
		log.Error().Err(err).Msg("create size variant")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Error().Err(err).Msg("create size variant: commit")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toSizeVariantResponse(variant))
}

// Update modifies one variant of the item.
func (h *SizeVariantHandler) Update(w http.ResponseWriter, r *http.Request) {
	variantID, err := uuid.Parse(chi.URLParam(r, "vid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid size variant ID"})
		return
	}

	var req sizeVariantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params, errMsg := sizeVariantParams(req)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("update size variant: begin tx")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context()) //nolint:errcheck

	txStore := h.newStore(tx)
	itemID, ok := h.verifyMenuItem(w, r, txStore)
	if !ok {
		return
	}

	if params.IsDefault {
		if err := txStore.ClearDefaultSizeVariant(r.Context(), itemID); err != nil {
			log.Error().Err(err).Msg("update size variant: clear default")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	}

	variant, err := txStore.UpdateSizeVariant(r.Context(), database.UpdateSizeVariantParams{
		ID:            variantID,
		MenuItemID:    itemID,
		SizeName:      params.SizeName,
		PriceModifier: params.PriceModifier,
		IsDefault:     params.IsDefault,
		IsActive:      params.IsActive,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "size variant not found"})
			return
		}
		log.Error().Err(err).Msg("update size variant")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Error().Err(err).Msg("update size variant: commit")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toSizeVariantResponse(variant))
}

// ReplaceAll swaps the item's whole variant list in one transaction.
func (h *SizeVariantHandler) ReplaceAll(w http.ResponseWriter, r *http.Request) {
	var req replaceSizeVariantsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	all := make([]database.CreateSizeVariantParams, len(req.Variants))
	defaults := 0
	for i, v := range req.Variants {
		params, errMsg := sizeVariantParams(v)
		if errMsg != "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "variants[" + strconv.Itoa(i) + "]: " + errMsg})
			return
		}
		if params.IsDefault {
			defaults++
		}
		all[i] = params
	}
	if defaults > 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at most one variant can be the default"})
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("replace size variants: begin tx")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context()) //nolint:errcheck

	txStore := h.newStore(tx)
	itemID, ok := h.verifyMenuItem(w, r, txStore)
	if !ok {
		return
	}

	if err := txStore.DeleteSizeVariantsByMenuItem(r.Context(), itemID); err != nil {
		log.Error().Err(err).Msg("replace size variants: delete")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	created := make([]database.SizeVariant, 0, len(all))
	for _, params := range all {
		params.MenuItemID = itemID
		v, err := txStore.CreateSizeVariant(r.Context(), params)
		if err != nil {
			log.Error().Err(err).Msg("replace size variants: create")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		created = append(created, v)
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Error().Err(err).Msg("replace size variants: commit")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toSizeVariantResponses(created))
}

// Delete removes one variant. Order lines keep their size name snapshot.
func (h *SizeVariantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "mid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	variantID, err := uuid.Parse(chi.URLParam(r, "vid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid size variant ID"})
		return
	}

	if _, err := h.store.DeleteSizeVariant(r.Context(), database.DeleteSizeVariantParams{
		ID:         variantID,
		MenuItemID: itemID,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "size variant not found"})
			return
		}
		log.Error().Err(err).Msg("delete size variant")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

// verifyMenuItem parses {mid} and checks the item exists.
// Returns the item ID, or writes an error response.
func (h *SizeVariantHandler) verifyMenuItem(w http.ResponseWriter, r *http.Request, store SizeVariantStore) (uuid.UUID, bool) {
	itemID, err := uuid.Parse(chi.URLParam(r, "mid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return uuid.Nil, false
	}

	if _, err := store.GetMenuItem(r.Context(), itemID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return uuid.Nil, false
		}
		log.Error().Err(err).Msg("verify menu item")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return uuid.Nil, false
	}
	return itemID, true
}

func sizeVariantParams(req sizeVariantRequest) (database.CreateSizeVariantParams, string) {
	name := strings.TrimSpace(req.SizeName)
	if name == "" {
		return database.CreateSizeVariantParams{}, "size_name is required"
	}
	modifier, err := parsePriceModifier(req.PriceModifier)
	if err != nil {
		return database.CreateSizeVariantParams{}, "invalid price_modifier"
	}
	return database.CreateSizeVariantParams{
		SizeName:      name,
		PriceModifier: modifier,
		IsDefault:     req.IsDefault,
		IsActive:      req.IsActive == nil || *req.IsActive,
	}, ""
}

func toSizeVariantResponses(variants []database.SizeVariant) []sizeVariantResponse {
	resp := make([]sizeVariantResponse, len(variants))
	for i, v := range variants {
		resp[i] = toSizeVariantResponse(v)
	}
	return resp
}
