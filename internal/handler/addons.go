package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mesa-digital/api/internal/database"
	"github.com/rs/zerolog/log"
)

// AddonStore defines the database methods needed by add-on handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type AddonStore interface {
	ListAddons(ctx context.Context) ([]database.Addon, error)
	GetAddon(ctx context.Context, id uuid.UUID) (database.Addon, error)
	CreateAddon(ctx context.Context, arg database.CreateAddonParams) (database.Addon, error)
	UpdateAddon(ctx context.Context, arg database.UpdateAddonParams) (database.Addon, error)
	DeleteAddon(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// AddonHandler handles add-on CRUD endpoints.
type AddonHandler struct {
	store AddonStore
}

// NewAddonHandler creates a new AddonHandler.
func NewAddonHandler(store AddonStore) *AddonHandler {
	return &AddonHandler{store: store}
}

// RegisterRoutes registers add-on endpoints on the given Chi router.
// Expected to be mounted at /admin/addons.
func (h *AddonHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type addonRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Price       string  `json:"price"`
	IsActive    *bool   `json:"is_active"`
}

type addonResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Price       string    `json:"price"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

func toAddonResponse(a database.Addon) addonResponse {
	return addonResponse{
		ID:          a.ID,
		Name:        a.Name,
		Description: textPtr(a.Description),
		Price:       numericToString(a.Price),
		IsActive:    a.IsActive,
		CreatedAt:   a.CreatedAt,
	}
}

// --- Handlers ---

// List returns all add-ons ordered by name.
func (h *AddonHandler) List(w http.ResponseWriter, r *http.Request) {
	addons, err := h.store.ListAddons(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list addons")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]addonResponse, len(addons))
	for i, a := range addons {
		resp[i] = toAddonResponse(a)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single add-on.
func (h *AddonHandler) Get(w http.ResponseWriter, r *http.Request) {
	addonID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid addon ID"})
		return
	}

	addon, err := h.store.GetAddon(r.Context(), addonID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "addon not found"})
			return
		}
		log.Error().Err(err).Msg("get addon")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toAddonResponse(addon))
}

// Create adds a new add-on.
func (h *AddonHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAddonRequest(w, r)
	if !ok {
		return
	}

	price, err := parsePrice(req.Price)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return
	}

	addon, err := h.store.CreateAddon(r.Context(), database.CreateAddonParams{
		Name:        req.Name,
		Description: optionalText(req.Description),
		Price:       price,
		IsActive:    req.IsActive == nil || *req.IsActive,
	})
	if err != nil {
		log.Error().Err(err).Msg("create addon")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toAddonResponse(addon))
}

// Update modifies an existing add-on. Prices already recorded on orders
// are snapshots and do not change.
func (h *AddonHandler) Update(w http.ResponseWriter, r *http.Request) {
	addonID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid addon ID"})
		return
	}

	req, ok := decodeAddonRequest(w, r)
	if !ok {
		return
	}

	price, err := parsePrice(req.Price)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return
	}

	addon, err := h.store.UpdateAddon(r.Context(), database.UpdateAddonParams{
		ID:          addonID,
		Name:        req.Name,
		Description: optionalText(req.Description),
		Price:       price,
		IsActive:    req.IsActive == nil || *req.IsActive,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "addon not found"})
			return
		}
		log.Error().Err(err).Msg("update addon")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toAddonResponse(addon))
}

// Delete removes an add-on and its menu item links.
func (h *AddonHandler) Delete(w http.ResponseWriter, r *http.Request) {
	addonID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid addon ID"})
		return
	}

	if _, err := h.store.DeleteAddon(r.Context(), addonID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "addon not found"})
			return
		}
		log.Error().Err(err).Msg("delete addon")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func decodeAddonRequest(w http.ResponseWriter, r *http.Request) (addonRequest, bool) {
	var req addonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return req, false
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Price == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and price are required"})
		return req, false
	}
	return req, true
}
