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
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-digital/api/internal/database"
	"github.com/mesa-digital/api/internal/enum"
	"github.com/mesa-digital/api/internal/service"
	"github.com/mesa-digital/api/internal/storage"
	"github.com/rs/zerolog/log"
)

// MenuItemStore defines the database methods needed by menu item handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type MenuItemStore interface {
	ListMenuItems(ctx context.Context, categoryID pgtype.UUID) ([]database.MenuItem, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error)
	UpdateMenuItem(ctx context.Context, arg database.UpdateMenuItemParams) (database.MenuItem, error)
	UpdateMenuItemImage(ctx context.Context, arg database.UpdateMenuItemImageParams) (database.MenuItem, error)
	DeleteMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	ListSizeVariantsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]database.SizeVariant, error)
	ListMenuItemAddonIDs(ctx context.Context, menuItemID uuid.UUID) ([]uuid.UUID, error)
	GetAddon(ctx context.Context, id uuid.UUID) (database.Addon, error)
	DeleteMenuItemAddons(ctx context.Context, menuItemID uuid.UUID) error
	CreateMenuItemAddon(ctx context.Context, arg database.CreateMenuItemAddonParams) error
}

// NewMenuItemStore creates a MenuItemStore from a DBTX (pool or tx).
type NewMenuItemStore func(db database.DBTX) MenuItemStore

// MenuItemHandler handles menu item CRUD, images and allowed add-ons.
type MenuItemHandler struct {
	store    MenuItemStore
	pool     service.TxBeginner
	newStore NewMenuItemStore
	objects  ObjectStore
	notify   Notifier
}

// NewMenuItemHandler creates a new MenuItemHandler.
func NewMenuItemHandler(store MenuItemStore, pool service.TxBeginner, newStore NewMenuItemStore, objects ObjectStore, notify Notifier) *MenuItemHandler {
	return &MenuItemHandler{
		store:    store,
		pool:     pool,
		newStore: newStore,
		objects:  objects,
		notify:   notifierOrNop(notify),
	}
}

// RegisterRoutes registers menu item endpoints on the given Chi router.
// Expected to be mounted at /admin/menu-items.
func (h *MenuItemHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/image", h.UploadImage)
	r.Delete("/{id}/image", h.DeleteImage)
	r.Put("/{id}/addons", h.ReplaceAddons)
}

// --- Request / Response types ---

type menuItemRequest struct {
	CategoryID       *string `json:"category_id"`
	Name             string  `json:"name"`
	Description      *string `json:"description"`
	Price            string  `json:"price"`
	ShowAddons       bool    `json:"show_addons"`
	ShowSizeVariants bool    `json:"show_size_variants"`
	IsAvailable      *bool   `json:"is_available"`
}

type replaceAddonsRequest struct {
	AddonIDs []string `json:"addon_ids"`
}

type menuItemResponse struct {
	ID               uuid.UUID `json:"id"`
	CategoryID       *string   `json:"category_id"`
	Name             string    `json:"name"`
	Description      *string   `json:"description"`
	Price            string    `json:"price"`
	ImageURL         *string   `json:"image_url"`
	ShowAddons       bool      `json:"show_addons"`
	ShowSizeVariants bool      `json:"show_size_variants"`
	IsAvailable      bool      `json:"is_available"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type menuItemDetailResponse struct {
	menuItemResponse
	AddonIDs     []uuid.UUID           `json:"addon_ids"`
	SizeVariants []sizeVariantResponse `json:"size_variants"`
}

func toMenuItemResponse(m database.MenuItem) menuItemResponse {
	return menuItemResponse{
		ID:               m.ID,
		CategoryID:       database.UUIDPtr(m.CategoryID),
		Name:             m.Name,
		Description:      textPtr(m.Description),
		Price:            numericToString(m.Price),
		ImageURL:         textPtr(m.ImageUrl),
		ShowAddons:       m.ShowAddons,
		ShowSizeVariants: m.ShowSizeVariants,
		IsAvailable:      m.IsAvailable,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// --- Handlers ---

// List returns menu items, optionally filtered by ?category_id=.
func (h *MenuItemHandler) List(w http.ResponseWriter, r *http.Request) {
	var categoryID pgtype.UUID
	if v := r.URL.Query().Get("category_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category_id"})
			return
		}
		categoryID = pgtype.UUID{Bytes: id, Valid: true}
	}

	items, err := h.store.ListMenuItems(r.Context(), categoryID)
	if err != nil {
		log.Error().Err(err).Msg("list menu items")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]menuItemResponse, len(items))
	for i, m := range items {
		resp[i] = toMenuItemResponse(m)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get returns a menu item with its allowed add-ons and size variants.
func (h *MenuItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	item, err := h.store.GetMenuItem(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Error().Err(err).Msg("get menu item")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	addonIDs, err := h.store.ListMenuItemAddonIDs(r.Context(), itemID)
	if err != nil {
		log.Error().Err(err).Msg("list menu item addons")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	variants, err := h.store.ListSizeVariantsByMenuItem(r.Context(), itemID)
	if err != nil {
		log.Error().Err(err).Msg("list size variants")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := menuItemDetailResponse{
		menuItemResponse: toMenuItemResponse(item),
		AddonIDs:         addonIDs,
		SizeVariants:     make([]sizeVariantResponse, len(variants)),
	}
	for i, v := range variants {
		resp.SizeVariants[i] = toSizeVariantResponse(v)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Create adds a new menu item.
func (h *MenuItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMenuItemRequest(w, r)
	if !ok {
		return
	}

	categoryID, price, ok := parseMenuItemFields(w, req)
	if !ok {
		return
	}

	item, err := h.store.CreateMenuItem(r.Context(), database.CreateMenuItemParams{
		CategoryID:       categoryID,
		Name:             req.Name,
		Description:      optionalText(req.Description),
		Price:            price,
		ShowAddons:       req.ShowAddons,
		ShowSizeVariants: req.ShowSizeVariants,
		IsAvailable:      req.IsAvailable == nil || *req.IsAvailable,
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "category not found"})
			return
		}
		log.Error().Err(err).Msg("create menu item")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toMenuItemResponse(item)
	h.notify.Notify(enum.TopicMenuItems, enum.ChangeInsert, resp)
	writeJSON(w, http.StatusCreated, resp)
}

// Update modifies an existing menu item.
func (h *MenuItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	req, ok := decodeMenuItemRequest(w, r)
	if !ok {
		return
	}

	categoryID, price, ok := parseMenuItemFields(w, req)
	if !ok {
		return
	}

	item, err := h.store.UpdateMenuItem(r.Context(), database.UpdateMenuItemParams{
		ID:               itemID,
		CategoryID:       categoryID,
		Name:             req.Name,
		Description:      optionalText(req.Description),
		Price:            price,
		ShowAddons:       req.ShowAddons,
		ShowSizeVariants: req.ShowSizeVariants,
		IsAvailable:      req.IsAvailable == nil || *req.IsAvailable,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "category not found"})
			return
		}
		log.Error().Err(err).Msg("update menu item")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toMenuItemResponse(item)
	h.notify.Notify(enum.TopicMenuItems, enum.ChangeUpdate, resp)
	writeJSON(w, http.StatusOK, resp)
}

// Delete removes a menu item and its stored image. Order lines keep their
// name and price snapshots.
func (h *MenuItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	item, err := h.store.DeleteMenuItem(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Error().Err(err).Msg("delete menu item")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if item.ImageUrl.Valid {
		if err := h.objects.DeleteURL(item.ImageUrl.String); err != nil {
			log.Warn().Err(err).Str("menu_item_id", itemID.String()).Msg("delete menu item image")
		}
	}

	h.notify.Notify(enum.TopicMenuItems, enum.ChangeDelete, toMenuItemResponse(item))
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage stores a new image for the item and removes the previous one.
func (h *MenuItemHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	existing, err := h.store.GetMenuItem(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Error().Err(err).Msg("upload image: get menu item")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	data, ok := readUpload(w, r, storage.MenuImages)
	if !ok {
		return
	}

	obj, err := h.objects.Put(storage.MenuImages, data)
	if err != nil {
		writeUploadError(w, err, "store menu item image")
		return
	}

	item, err := h.store.UpdateMenuItemImage(r.Context(), database.UpdateMenuItemImageParams{
		ID:       itemID,
		ImageUrl: pgtype.Text{String: obj.URL, Valid: true},
	})
	if err != nil {
		if delErr := h.objects.DeleteURL(obj.URL); delErr != nil {
			log.Warn().Err(delErr).Msg("remove orphaned image")
		}
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Error().Err(err).Msg("update menu item image")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if existing.ImageUrl.Valid && existing.ImageUrl.String != obj.URL {
		if err := h.objects.DeleteURL(existing.ImageUrl.String); err != nil {
			log.Warn().Err(err).Str("menu_item_id", itemID.String()).Msg("delete previous image")
		}
	}

	resp := toMenuItemResponse(item)
	h.notify.Notify(enum.TopicMenuItems, enum.ChangeUpdate, resp)
	writeJSON(w, http.StatusOK, resp)
}

// DeleteImage clears the item's image.
func (h *MenuItemHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	existing, err := h.store.GetMenuItem(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Error().Err(err).Msg("delete image: get menu item")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	item, err := h.store.UpdateMenuItemImage(r.Context(), database.UpdateMenuItemImageParams{ID: itemID})
	if err != nil {
		log.Error().Err(err).Msg("clear menu item image")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if existing.ImageUrl.Valid {
		if err := h.objects.DeleteURL(existing.ImageUrl.String); err != nil {
			log.Warn().Err(err).Str("menu_item_id", itemID.String()).Msg("delete image object")
		}
	}

	resp := toMenuItemResponse(item)
	h.notify.Notify(enum.TopicMenuItems, enum.ChangeUpdate, resp)
	writeJSON(w, http.StatusOK, resp)
}

// ReplaceAddons sets the add-ons a diner may pick for this item. An empty
// list allows every active add-on.
func (h *MenuItemHandler) ReplaceAddons(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	var req replaceAddonsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	addonIDs := make([]uuid.UUID, 0, len(req.AddonIDs))
	seen := make(map[uuid.UUID]bool, len(req.AddonIDs))
	for i, raw := range req.AddonIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": formatItemError(i, "invalid addon_id")})
			return
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		addonIDs = append(addonIDs, id)
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("replace addons: begin tx")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context()) //nolint:errcheck

	txStore := h.newStore(tx)

	if _, err := txStore.GetMenuItem(r.Context(), itemID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Error().Err(err).Msg("replace addons: get menu item")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := txStore.DeleteMenuItemAddons(r.Context(), itemID); err != nil {
		log.Error().Err(err).Msg("replace addons: delete")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	for i, id := range addonIDs {
		if _, err := txStore.GetAddon(r.Context(), id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": formatItemError(i, "addon not found")})
				return
			}
			log.Error().Err(err).Msg("replace addons: get addon")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		if err := txStore.CreateMenuItemAddon(r.Context(), database.CreateMenuItemAddonParams{
			MenuItemID: itemID,
			AddonID:    id,
		}); err != nil {
			log.Error().Err(err).Msg("replace addons: create")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Error().Err(err).Msg("replace addons: commit")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string][]uuid.UUID{"addon_ids": addonIDs})
}

// --- Helpers ---

func decodeMenuItemRequest(w http.ResponseWriter, r *http.Request) (menuItemRequest, bool) {
	var req menuItemRequest
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

func parseMenuItemFields(w http.ResponseWriter, req menuItemRequest) (pgtype.UUID, pgtype.Numeric, bool) {
	var categoryID pgtype.UUID
	if req.CategoryID != nil && *req.CategoryID != "" {
		id, err := uuid.Parse(*req.CategoryID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category_id"})
			return pgtype.UUID{}, pgtype.Numeric{}, false
		}
		categoryID = pgtype.UUID{Bytes: id, Valid: true}
	}

	price, err := parsePrice(req.Price)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return pgtype.UUID{}, pgtype.Numeric{}, false
	}
	return categoryID, price, true
}
