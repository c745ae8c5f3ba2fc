package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mesa-digital/api/internal/database"
	"github.com/mesa-digital/api/internal/enum"
	"github.com/mesa-digital/api/internal/metrics"
	"github.com/mesa-digital/api/internal/pricing"
	"github.com/mesa-digital/api/internal/service"
	"github.com/rs/zerolog/log"
)

// MenuStore defines the database methods needed by the diner menu.
// Satisfied by *database.Queries; narrow interface for testability.
type MenuStore interface {
	ListActiveCategories(ctx context.Context) ([]database.Category, error)
	ListAvailableMenuItems(ctx context.Context) ([]database.MenuItem, error)
	ListActiveSizeVariants(ctx context.Context) ([]database.SizeVariant, error)
	ListActiveAddons(ctx context.Context) ([]database.Addon, error)
	ListMenuItemAddons(ctx context.Context) ([]database.MenuItemAddon, error)
	GetTableByNumber(ctx context.Context, number int32) (database.Table, error)
}

// OrderServicer submits diner orders.
// Satisfied by *service.OrderService.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.SubmitOrderRequest) (*service.CreateOrderResult, error)
}

// MenuHandler serves the public diner surface: menu, cart quote and
// order submission.
type MenuHandler struct {
	store  MenuStore
	orders OrderServicer
	notify Notifier
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(store MenuStore, orders OrderServicer, notify Notifier) *MenuHandler {
	return &MenuHandler{store: store, orders: orders, notify: notifierOrNop(notify)}
}

// RegisterRoutes registers the menu endpoints.
// Expected to be mounted at /menu.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Menu)
	r.Post("/quote", h.Quote)
}

// RegisterOrderRoutes registers order submission.
// Expected to be mounted at /tables.
func (h *MenuHandler) RegisterOrderRoutes(r chi.Router) {
	r.Post("/{number}/orders", h.SubmitOrder)
}

// --- Request / Response types ---

type cartItemRequest struct {
	MenuItemID    string   `json:"menu_item_id"`
	SizeVariantID string   `json:"size_variant_id"`
	AddonIDs      []string `json:"addon_ids"`
	Quantity      int32    `json:"quantity"`
	Notes         string   `json:"notes"`
}

type cartRequest struct {
	Items []cartItemRequest `json:"items"`
}

type menuCategoryResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description"`
	DisplayOrder int32     `json:"display_order"`
}

type menuVariantResponse struct {
	ID            uuid.UUID `json:"id"`
	SizeName      string    `json:"size_name"`
	PriceModifier string    `json:"price_modifier"`
	IsDefault     bool      `json:"is_default"`
}

type menuAddonResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Price       string    `json:"price"`
}

type publicMenuItemResponse struct {
	ID               uuid.UUID             `json:"id"`
	CategoryID       *string               `json:"category_id"`
	Name             string                `json:"name"`
	Description      *string               `json:"description"`
	Price            string                `json:"price"`
	ImageURL         *string               `json:"image_url"`
	ShowAddons       bool                  `json:"show_addons"`
	ShowSizeVariants bool                  `json:"show_size_variants"`
	SizeVariants     []menuVariantResponse `json:"size_variants"`
	Addons           []menuAddonResponse   `json:"addons"`
}

type menuResponse struct {
	Table      *tableResponse           `json:"table,omitempty"`
	Categories []menuCategoryResponse   `json:"categories"`
	Items      []publicMenuItemResponse `json:"items"`
}

type quoteLineResponse struct {
	MenuItemID    uuid.UUID           `json:"menu_item_id"`
	Name          string              `json:"name"`
	SizeVariantID *uuid.UUID          `json:"size_variant_id"`
	SizeName      *string             `json:"size_name"`
	UnitPrice     string              `json:"unit_price"`
	AddonsPrice   string              `json:"addons_price"`
	Quantity      int32               `json:"quantity"`
	Notes         string              `json:"notes,omitempty"`
	Addons        []menuAddonResponse `json:"addons"`
	LineTotal     string              `json:"line_total"`
}

type quoteResponse struct {
	Items     []quoteLineResponse `json:"items"`
	ItemCount int32               `json:"item_count"`
	Total     string              `json:"total"`
}

// --- Handlers ---

// Menu returns what a diner can order. With ?table=N the table is
// resolved too, so the client can show its number and reject stale codes.
func (h *MenuHandler) Menu(w http.ResponseWriter, r *http.Request) {
	var table *tableResponse
	if v := r.URL.Query().Get("table"); v != "" {
		number, err := strconv.Atoi(v)
		if err != nil || number <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table number"})
			return
		}
		t, err := h.store.GetTableByNumber(r.Context(), int32(number))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
				return
			}
			log.Error().Err(err).Msg("menu: get table")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		resp := toTableResponse(t)
		table = &resp
	}

	categories, err := h.store.ListActiveCategories(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("menu: list categories")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	menu, err := h.loadMenu(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("menu: load catalog")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := menuResponse{
		Table:      table,
		Categories: make([]menuCategoryResponse, len(categories)),
		Items:      make([]publicMenuItemResponse, len(menu.items)),
	}
	for i, c := range categories {
		resp.Categories[i] = menuCategoryResponse{
			ID:           c.ID,
			Name:         c.Name,
			Description:  textPtr(c.Description),
			DisplayOrder: c.DisplayOrder,
		}
	}
	for i, m := range menu.items {
		item := publicMenuItemResponse{
			ID:               m.ID,
			CategoryID:       database.UUIDPtr(m.CategoryID),
			Name:             m.Name,
			Description:      textPtr(m.Description),
			Price:            numericToString(m.Price),
			ImageURL:         textPtr(m.ImageUrl),
			ShowAddons:       m.ShowAddons,
			ShowSizeVariants: m.ShowSizeVariants,
			SizeVariants:     []menuVariantResponse{},
			Addons:           []menuAddonResponse{},
		}
		for _, v := range menu.variants[m.ID] {
			item.SizeVariants = append(item.SizeVariants, menuVariantResponse{
				ID:            v.ID,
				SizeName:      v.SizeName,
				PriceModifier: numericToString(v.PriceModifier),
				IsDefault:     v.IsDefault,
			})
		}
		for _, a := range menu.addons[m.ID] {
			item.Addons = append(item.Addons, toMenuAddonResponse(a))
		}
		resp.Items[i] = item
	}

	writeJSON(w, http.StatusOK, resp)
}

// Quote prices a cart against the current menu without storing anything.
// Repeated selections of one item are merged into a single line.
func (h *MenuHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": service.ErrEmptyItems.Error()})
		return
	}

	menu, err := h.loadMenu(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("quote: load catalog")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	cart := pricing.NewCart()
	for i, it := range req.Items {
		sel, errMsg := menu.selection(it)
		if errMsg != "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": formatItemError(i, errMsg)})
			return
		}
		if err := cart.Add(sel); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": formatItemError(i, err.Error())})
			return
		}
	}

	lines, total, err := cart.Price(menu.catalog())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	resp := quoteResponse{
		Items:     make([]quoteLineResponse, len(lines)),
		ItemCount: cart.ItemCount(),
		Total:     total.StringFixed(2),
	}
	for i, pl := range lines {
		line := quoteLineResponse{
			MenuItemID:  pl.Item.ID,
			Name:        pl.Item.Name,
			UnitPrice:   pl.Line.UnitPrice.StringFixed(2),
			AddonsPrice: pl.Line.AddonsPrice().StringFixed(2),
			Quantity:    pl.Line.Quantity,
			Notes:       pl.Notes,
			Addons:      make([]menuAddonResponse, len(pl.Line.Addons)),
			LineTotal:   pl.LineTotal.StringFixed(2),
		}
		if pl.Variant != nil {
			id, name := pl.Variant.ID, pl.Variant.Name
			line.SizeVariantID = &id
			line.SizeName = &name
		}
		for j, a := range pl.Line.Addons {
			line.Addons[j] = menuAddonResponse{ID: a.ID, Name: a.Name, Price: a.Price.StringFixed(2)}
		}
		resp.Items[i] = line
	}

	writeJSON(w, http.StatusOK, resp)
}

// SubmitOrder places a diner's cart as a new pending order for the table
// and marks the table occupied.
func (h *MenuHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table number"})
		return
	}

	var req cartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	items := make([]service.SubmitOrderItem, len(req.Items))
	var units int
	for i, it := range req.Items {
		items[i] = service.SubmitOrderItem{
			MenuItemID:    it.MenuItemID,
			SizeVariantID: it.SizeVariantID,
			AddonIDs:      it.AddonIDs,
			Quantity:      it.Quantity,
			Notes:         it.Notes,
		}
		units += int(it.Quantity)
	}

	result, err := h.orders.CreateOrder(r.Context(), service.SubmitOrderRequest{
		TableNumber: int32(number),
		Items:       items,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTableNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
		case isOrderValidationError(err):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			log.Error().Err(err).Int("table_number", number).Msg("create order")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	resp := toOrderResponse(result)
	metrics.RecordOrderSubmitted(units)

	h.notify.Notify(enum.TopicOrders, enum.ChangeInsert, dbOrderToResponse(result.Order))
	for _, it := range resp.Items {
		h.notify.Notify(enum.TopicOrderItems, enum.ChangeInsert, it)
	}
	h.notify.Notify(enum.TopicTables, enum.ChangeUpdate, toTableResponse(result.Table))

	writeJSON(w, http.StatusCreated, resp)
}

// --- Helpers ---

// publicMenu is the orderable catalog: available items, their active
// variants and the add-ons each item offers.
type publicMenu struct {
	items    []database.MenuItem
	byID     map[uuid.UUID]database.MenuItem
	variants map[uuid.UUID][]database.SizeVariant
	addons   map[uuid.UUID][]database.Addon
}

func (h *MenuHandler) loadMenu(ctx context.Context) (*publicMenu, error) {
	items, err := h.store.ListAvailableMenuItems(ctx)
	if err != nil {
		return nil, err
	}
	variants, err := h.store.ListActiveSizeVariants(ctx)
	if err != nil {
		return nil, err
	}
	addons, err := h.store.ListActiveAddons(ctx)
	if err != nil {
		return nil, err
	}
	links, err := h.store.ListMenuItemAddons(ctx)
	if err != nil {
		return nil, err
	}

	menu := &publicMenu{
		items:    items,
		byID:     make(map[uuid.UUID]database.MenuItem, len(items)),
		variants: make(map[uuid.UUID][]database.SizeVariant),
		addons:   make(map[uuid.UUID][]database.Addon),
	}
	for _, m := range items {
		menu.byID[m.ID] = m
	}

	for _, v := range variants {
		if m, ok := menu.byID[v.MenuItemID]; ok && m.ShowSizeVariants {
			menu.variants[v.MenuItemID] = append(menu.variants[v.MenuItemID], v)
		}
	}

	active := make(map[uuid.UUID]database.Addon, len(addons))
	for _, a := range addons {
		active[a.ID] = a
	}
	restricted := make(map[uuid.UUID][]uuid.UUID)
	for _, l := range links {
		restricted[l.MenuItemID] = append(restricted[l.MenuItemID], l.AddonID)
	}
	for _, m := range items {
		if !m.ShowAddons {
			continue
		}
		allowed, ok := restricted[m.ID]
		if !ok {
			// No restriction list: every active add-on is offered.
			menu.addons[m.ID] = addons
			continue
		}
		for _, aid := range allowed {
			if a, ok := active[aid]; ok {
				menu.addons[m.ID] = append(menu.addons[m.ID], a)
			}
		}
	}
	return menu, nil
}

// selection validates a cart line against the menu, applying the item's
// default variant when it offers variants and none was picked.
func (m *publicMenu) selection(it cartItemRequest) (pricing.Selection, string) {
	itemID, err := uuid.Parse(it.MenuItemID)
	if err != nil {
		return pricing.Selection{}, service.ErrInvalidMenuItemID.Error()
	}
	item, ok := m.byID[itemID]
	if !ok {
		return pricing.Selection{}, service.ErrMenuItemNotFound.Error()
	}

	sel := pricing.Selection{MenuItemID: itemID, Quantity: it.Quantity, Notes: it.Notes}

	variants := m.variants[itemID]
	if it.SizeVariantID != "" {
		vid, err := uuid.Parse(it.SizeVariantID)
		if err != nil {
			return pricing.Selection{}, service.ErrInvalidVariantID.Error()
		}
		if !item.ShowSizeVariants {
			return pricing.Selection{}, service.ErrVariantsDisabled.Error()
		}
		found := false
		for _, v := range variants {
			if v.ID == vid {
				found = true
				break
			}
		}
		if !found {
			return pricing.Selection{}, service.ErrVariantNotFound.Error()
		}
		sel.SizeVariantID = uuid.NullUUID{UUID: vid, Valid: true}
	} else if len(variants) > 0 {
		// Active variants are listed default first.
		sel.SizeVariantID = uuid.NullUUID{UUID: variants[0].ID, Valid: true}
	}

	offered := make(map[uuid.UUID]bool, len(m.addons[itemID]))
	for _, a := range m.addons[itemID] {
		offered[a.ID] = true
	}
	for _, raw := range it.AddonIDs {
		aid, err := uuid.Parse(raw)
		if err != nil {
			return pricing.Selection{}, service.ErrInvalidAddonID.Error()
		}
		if !offered[aid] {
			return pricing.Selection{}, service.ErrAddonNotAllowed.Error()
		}
		sel.AddonIDs = append(sel.AddonIDs, aid)
	}
	return sel, ""
}

func (m *publicMenu) catalog() pricing.MapCatalog {
	cat := pricing.MapCatalog{
		Items:    make(map[uuid.UUID]pricing.Item, len(m.items)),
		Variants: make(map[uuid.UUID]pricing.Variant),
		Addons:   make(map[uuid.UUID]pricing.Addon),
	}
	for _, it := range m.items {
		cat.Items[it.ID] = service.PricingItem(it)
	}
	for _, vs := range m.variants {
		for i := range vs {
			cat.Variants[vs[i].ID] = *service.PricingVariant(&vs[i])
		}
	}
	for _, as := range m.addons {
		for _, a := range service.PricingAddons(as) {
			cat.Addons[a.ID] = a
		}
	}
	return cat
}

func toMenuAddonResponse(a database.Addon) menuAddonResponse {
	return menuAddonResponse{
		ID:          a.ID,
		Name:        a.Name,
		Description: textPtr(a.Description),
		Price:       numericToString(a.Price),
	}
}

// isOrderValidationError reports submission errors caused by the cart.
func isOrderValidationError(err error) bool {
	for _, target := range []error{
		service.ErrEmptyItems,
		service.ErrInvalidQuantity,
		service.ErrInvalidMenuItemID,
		service.ErrMenuItemNotFound,
		service.ErrInvalidVariantID,
		service.ErrVariantNotFound,
		service.ErrVariantMismatch,
		service.ErrVariantsDisabled,
		service.ErrInvalidAddonID,
		service.ErrAddonNotFound,
		service.ErrAddonNotAllowed,
		pricing.ErrInvalidQuantity,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
