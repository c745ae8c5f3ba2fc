package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-digital/api/internal/database"
	"github.com/mesa-digital/api/internal/service"
	"github.com/mesa-digital/api/internal/storage"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// SettingsStore defines the database methods needed by settings handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type SettingsStore interface {
	GetSettings(ctx context.Context) (database.RestaurantSetting, error)
	UpsertSettings(ctx context.Context, arg database.UpsertSettingsParams) (database.RestaurantSetting, error)
}

// SettingsHandler handles the single restaurant settings row.
type SettingsHandler struct {
	store   SettingsStore
	objects ObjectStore
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(store SettingsStore, objects ObjectStore) *SettingsHandler {
	return &SettingsHandler{store: store, objects: objects}
}

// RegisterPublicRoutes registers the diner-facing branding endpoint.
func (h *SettingsHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/settings", h.Public)
}

// RegisterRoutes registers admin settings endpoints on the given Chi router.
// Expected to be mounted at /admin/settings.
func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Put("/", h.Update)
	r.Post("/logo", h.UploadLogo)
}

// --- Request / Response types ---

// settingsRequest fields left out keep their current value.
type settingsRequest struct {
	Name                    *string          `json:"name"`
	Address                 *string          `json:"address"`
	Cnpj                    *string          `json:"cnpj"`
	Phone                   *string          `json:"phone"`
	Email                   *string          `json:"email"`
	PrimaryColor            *string          `json:"primary_color"`
	SecondaryColor          *string          `json:"secondary_color"`
	Currency                *string          `json:"currency"`
	Timezone                *string          `json:"timezone"`
	ServiceChargePercentage *string          `json:"service_charge_percentage"`
	AcceptsCash             *bool            `json:"accepts_cash"`
	AcceptsPix              *bool            `json:"accepts_pix"`
	AcceptsCard             *bool            `json:"accepts_card"`
	DeliveryAvailable       *bool            `json:"delivery_available"`
	TakeawayAvailable       *bool            `json:"takeaway_available"`
	OpeningHours            *json.RawMessage `json:"opening_hours"`
}

type settingsResponse struct {
	Name                    string          `json:"name"`
	Address                 *string         `json:"address"`
	Cnpj                    *string         `json:"cnpj"`
	Phone                   *string         `json:"phone"`
	Email                   *string         `json:"email"`
	LogoURL                 *string         `json:"logo_url"`
	PrimaryColor            string          `json:"primary_color"`
	SecondaryColor          string          `json:"secondary_color"`
	Currency                string          `json:"currency"`
	Timezone                string          `json:"timezone"`
	ServiceChargePercentage string          `json:"service_charge_percentage"`
	AcceptsCash             bool            `json:"accepts_cash"`
	AcceptsPix              bool            `json:"accepts_pix"`
	AcceptsCard             bool            `json:"accepts_card"`
	DeliveryAvailable       bool            `json:"delivery_available"`
	TakeawayAvailable       bool            `json:"takeaway_available"`
	OpeningHours            json.RawMessage `json:"opening_hours"`
	UpdatedAt               *time.Time      `json:"updated_at"`
}

type publicSettingsResponse struct {
	Name              string          `json:"name"`
	LogoURL           *string         `json:"logo_url"`
	PrimaryColor      string          `json:"primary_color"`
	SecondaryColor    string          `json:"secondary_color"`
	Currency          string          `json:"currency"`
	AcceptsCash       bool            `json:"accepts_cash"`
	AcceptsPix        bool            `json:"accepts_pix"`
	AcceptsCard       bool            `json:"accepts_card"`
	DeliveryAvailable bool            `json:"delivery_available"`
	TakeawayAvailable bool            `json:"takeaway_available"`
	OpeningHours      json.RawMessage `json:"opening_hours"`
}

func toSettingsResponse(s database.RestaurantSetting) settingsResponse {
	resp := settingsResponse{
		Name:                    s.Name,
		Address:                 textPtr(s.Address),
		Cnpj:                    textPtr(s.Cnpj),
		Phone:                   textPtr(s.Phone),
		Email:                   textPtr(s.Email),
		LogoURL:                 textPtr(s.LogoUrl),
		PrimaryColor:            s.PrimaryColor,
		SecondaryColor:          s.SecondaryColor,
		Currency:                s.Currency,
		Timezone:                s.Timezone,
		ServiceChargePercentage: numericToString(s.ServiceChargePercentage),
		AcceptsCash:             s.AcceptsCash,
		AcceptsPix:              s.AcceptsPix,
		AcceptsCard:             s.AcceptsCard,
		DeliveryAvailable:       s.DeliveryAvailable,
		TakeawayAvailable:       s.TakeawayAvailable,
		OpeningHours:            openingHours(s.OpeningHours),
	}
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}

func toPublicSettingsResponse(s database.RestaurantSetting) publicSettingsResponse {
	return publicSettingsResponse{
		Name:              s.Name,
		LogoURL:           textPtr(s.LogoUrl),
		PrimaryColor:      s.PrimaryColor,
		SecondaryColor:    s.SecondaryColor,
		Currency:          s.Currency,
		AcceptsCash:       s.AcceptsCash,
		AcceptsPix:        s.AcceptsPix,
		AcceptsCard:       s.AcceptsCard,
		DeliveryAvailable: s.DeliveryAvailable,
		TakeawayAvailable: s.TakeawayAvailable,
		OpeningHours:      openingHours(s.OpeningHours),
	}
}

// --- Handlers ---

// Public returns the branding subset shown to diners.
func (h *SettingsHandler) Public(w http.ResponseWriter, r *http.Request) {
	settings, ok := h.current(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toPublicSettingsResponse(settings))
}

// Get returns the full settings, or the defaults when none were saved.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, ok := h.current(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(settings))
}

// Update merges the request into the current settings and saves them.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	settings, ok := h.current(w, r)
	if !ok {
		return
	}

	params, errMsg := mergeSettings(settings, req)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	saved, err := h.store.UpsertSettings(r.Context(), params)
	if err != nil {
		log.Error().Err(err).Msg("upsert settings")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toSettingsResponse(saved))
}

// UploadLogo stores a new logo and removes the previous one.
func (h *SettingsHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	data, ok := readUpload(w, r, storage.Logos)
	if !ok {
		return
	}

	settings, ok := h.current(w, r)
	if !ok {
		return
	}

	obj, err := h.objects.Put(storage.Logos, data)
	if err != nil {
		writeUploadError(w, err, "store logo")
		return
	}

	params := settingsParams(settings)
	params.LogoUrl = pgtype.Text{String: obj.URL, Valid: true}

	saved, err := h.store.UpsertSettings(r.Context(), params)
	if err != nil {
		if delErr := h.objects.DeleteURL(obj.URL); delErr != nil {
			log.Warn().Err(delErr).Msg("remove orphaned logo")
		}
		log.Error().Err(err).Msg("save logo url")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if settings.LogoUrl.Valid && settings.LogoUrl.String != obj.URL {
		if err := h.objects.DeleteURL(settings.LogoUrl.String); err != nil {
			log.Warn().Err(err).Msg("delete previous logo")
		}
	}

	writeJSON(w, http.StatusOK, toSettingsResponse(saved))
}

// --- Helpers ---

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func (h *SettingsHandler) current(w http.ResponseWriter, r *http.Request) (database.RestaurantSetting, bool) {
	settings, err := h.store.GetSettings(r.Context())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return service.DefaultSettings(), true
		}
		log.Error().Err(err).Msg("get settings")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return database.RestaurantSetting{}, false
	}
	return settings, true
}

func openingHours(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	return json.RawMessage(raw)
}

func settingsParams(s database.RestaurantSetting) database.UpsertSettingsParams {
	return database.UpsertSettingsParams{
		Name:                    s.Name,
		Address:                 s.Address,
		Cnpj:                    s.Cnpj,
		Phone:                   s.Phone,
		Email:                   s.Email,
		LogoUrl:                 s.LogoUrl,
		PrimaryColor:            s.PrimaryColor,
		SecondaryColor:          s.SecondaryColor,
		Currency:                s.Currency,
		Timezone:                s.Timezone,
		ServiceChargePercentage: s.ServiceChargePercentage,
		AcceptsCash:             s.AcceptsCash,
		AcceptsPix:              s.AcceptsPix,
		AcceptsCard:             s.AcceptsCard,
		DeliveryAvailable:       s.DeliveryAvailable,
		TakeawayAvailable:       s.TakeawayAvailable,
		OpeningHours:            openingHours(s.OpeningHours),
	}
}

// mergeSettings applies the request on top of the current values and
// validates the result. Returns a message on invalid input.
func mergeSettings(s database.RestaurantSetting, req settingsRequest) (database.UpsertSettingsParams, string) {
	p := settingsParams(s)

	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if p.Name == "" {
		return p, "name is required"
	}
	if req.Address != nil {
		p.Address = optionalText(req.Address)
	}
	if req.Cnpj != nil {
		p.Cnpj = optionalText(req.Cnpj)
	}
	if req.Phone != nil {
		p.Phone = optionalText(req.Phone)
	}
	if req.Email != nil {
		if *req.Email != "" && !strings.Contains(*req.Email, "@") {
			return p, "invalid email format"
		}
		p.Email = optionalText(req.Email)
	}
	if req.PrimaryColor != nil {
		if !hexColor.MatchString(*req.PrimaryColor) {
			return p, "primary_color must be #RRGGBB"
		}
		p.PrimaryColor = *req.PrimaryColor
	}
	if req.SecondaryColor != nil {
		if !hexColor.MatchString(*req.SecondaryColor) {
			return p, "secondary_color must be #RRGGBB"
		}
		p.SecondaryColor = *req.SecondaryColor
	}
	if req.Currency != nil {
		c := strings.ToUpper(strings.TrimSpace(*req.Currency))
		if len(c) != 3 {
			return p, "currency must be a 3-letter code"
		}
		p.Currency = c
	}
	if req.Timezone != nil {
		if _, err := time.LoadLocation(*req.Timezone); err != nil || *req.Timezone == "" {
			return p, "invalid timezone"
		}
		p.Timezone = *req.Timezone
	}
	if req.ServiceChargePercentage != nil {
		d, err := decimal.NewFromString(*req.ServiceChargePercentage)
		if err != nil || d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
			return p, "service_charge_percentage must be between 0 and 100"
		}
		p.ServiceChargePercentage = database.DecimalToNumeric(d)
	}
	if req.AcceptsCash != nil {
		p.AcceptsCash = *req.AcceptsCash
	}
	if req.AcceptsPix != nil {
		p.AcceptsPix = *req.AcceptsPix
	}
	if req.AcceptsCard != nil {
		p.AcceptsCard = *req.AcceptsCard
	}
	if !p.AcceptsCash && !p.AcceptsPix && !p.AcceptsCard {
		return p, "at least one payment method must be accepted"
	}
	if req.DeliveryAvailable != nil {
		p.DeliveryAvailable = *req.DeliveryAvailable
	}
	if req.TakeawayAvailable != nil {
		p.TakeawayAvailable = *req.TakeawayAvailable
	}
	if req.OpeningHours != nil {
		var hours map[string]json.RawMessage
		if err := json.Unmarshal(*req.OpeningHours, &hours); err != nil || hours == nil {
			return p, "opening_hours must be a JSON object"
		}
		p.OpeningHours = []byte(*req.OpeningHours)
	}
	return p, ""
}
