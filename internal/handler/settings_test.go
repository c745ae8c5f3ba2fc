package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-digital/api/internal/database"
	"github.com/mesa-digital/api/internal/handler"
)

// --- Mock store ---

type mockSettingsStore struct {
	settings *database.RestaurantSetting
	upserts  int
}

func (m *mockSettingsStore) GetSettings(_ context.Context) (database.RestaurantSetting, error) {
	if m.settings == nil {
		return database.RestaurantSetting{}, pgx.ErrNoRows
	}
	return *m.settings, nil
}

func (m *mockSettingsStore) UpsertSettings(_ context.Context, arg database.UpsertSettingsParams) (database.RestaurantSetting, error) {
	m.upserts++
	s := database.RestaurantSetting{
		ID:                      1,
		Name:                    arg.Name,
		Address:                 arg.Address,
		Cnpj:                    arg.Cnpj,
		Phone:                   arg.Phone,
		Email:                   arg.Email,
		LogoUrl:                 arg.LogoUrl,
		PrimaryColor:            arg.PrimaryColor,
		SecondaryColor:          arg.SecondaryColor,
		Currency:                arg.Currency,
		Timezone:                arg.Timezone,
		ServiceChargePercentage: arg.ServiceChargePercentage,
		AcceptsCash:             arg.AcceptsCash,
		AcceptsPix:              arg.AcceptsPix,
		AcceptsCard:             arg.AcceptsCard,
		DeliveryAvailable:       arg.DeliveryAvailable,
		TakeawayAvailable:       arg.TakeawayAvailable,
		OpeningHours:            arg.OpeningHours,
		UpdatedAt:               time.Now(),
	}
	m.settings = &s
	return s, nil
}

// --- Helpers ---

func setupSettingsRouter(store *mockSettingsStore, objects *mockObjectStore) *chi.Mux {
	h := handler.NewSettingsHandler(store, objects)
	r := chi.NewRouter()
	h.RegisterPublicRoutes(r)
	r.Route("/admin/settings", h.RegisterRoutes)
	return r
}

// --- Tests ---

func TestSettingsGet_Defaults(t *testing.T) {
	r := setupSettingsRouter(&mockSettingsStore{}, &mockObjectStore{})

	rr := doRequest(t, r, "GET", "/admin/settings", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeResponse(t, rr)
	if resp["currency"] != "BRL" {
		t.Errorf("currency: got %v, want BRL", resp["currency"])
	}
	if resp["accepts_cash"] != true || resp["accepts_pix"] != true || resp["accepts_card"] != true {
		t.Errorf("default payment methods: got %v %v %v", resp["accepts_cash"], resp["accepts_pix"], resp["accepts_card"])
	}
	if resp["updated_at"] != nil {
		t.Errorf("updated_at: got %v, want null for unsaved settings", resp["updated_at"])
	}
}

func TestSettingsPublic_HidesPrivateFields(t *testing.T) {
	store := &mockSettingsStore{}
	r := setupSettingsRouter(store, &mockObjectStore{})
	doRequest(t, r, "PUT", "/admin/settings", map[string]interface{}{
		"name":  "Cantina da Nona",
		"cnpj":  "12.345.678/0001-90",
		"phone": "+55 11 99999-0000",
	})

	rr := doRequest(t, r, "GET", "/settings", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeResponse(t, rr)
	if resp["name"] != "Cantina da Nona" {
		t.Errorf("name: got %v", resp["name"])
	}
	for _, private := range []string{"cnpj", "phone", "email", "timezone", "service_charge_percentage"} {
		if _, ok := resp[private]; ok {
			t.Errorf("public settings must not expose %s", private)
		}
	}
}

func TestSettingsUpdate_PartialMerge(t *testing.T) {
	store := &mockSettingsStore{}
	r := setupSettingsRouter(store, &mockObjectStore{})
	doRequest(t, r, "PUT", "/admin/settings", map[string]interface{}{"name": "Cantina", "primary_color": "#112233"})

	rr := doRequest(t, r, "PUT", "/admin/settings", map[string]interface{}{
		"currency":                  "usd",
		"timezone":                  "UTC",
		"service_charge_percentage": "10",
		"accepts_card":              false,
		"opening_hours":             map[string]string{"mon": "11:00-23:00"},
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["name"] != "Cantina" || resp["primary_color"] != "#112233" {
		t.Errorf("earlier fields lost: name=%v primary_color=%v", resp["name"], resp["primary_color"])
	}
	if resp["currency"] != "USD" {
		t.Errorf("currency: got %v, want USD", resp["currency"])
	}
	if resp["service_charge_percentage"] != "10.00" {
		t.Errorf("service charge: got %v, want 10.00", resp["service_charge_percentage"])
	}
	if resp["accepts_card"] != false {
		t.Errorf("accepts_card: got %v, want false", resp["accepts_card"])
	}
	hours, _ := resp["opening_hours"].(map[string]interface{})
	if hours["mon"] != "11:00-23:00" {
		t.Errorf("opening_hours: got %v", resp["opening_hours"])
	}
}

func TestSettingsUpdate_Validation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"blank name", map[string]interface{}{"name": "  "}},
		{"bad email", map[string]interface{}{"email": "contato"}},
		{"bad color", map[string]interface{}{"primary_color": "red"}},
		{"bad currency", map[string]interface{}{"currency": "REAL"}},
		{"bad timezone", map[string]interface{}{"timezone": "Mars/Olympus"}},
		{"service charge too high", map[string]interface{}{"service_charge_percentage": "150"}},
		{"no payment methods", map[string]interface{}{"accepts_cash": false, "accepts_pix": false, "accepts_card": false}},
		{"opening hours not an object", map[string]interface{}{"opening_hours": []string{"mon"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockSettingsStore{}
			r := setupSettingsRouter(store, &mockObjectStore{})
			rr := doRequest(t, r, "PUT", "/admin/settings", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
			}
			if store.upserts != 0 {
				t.Error("invalid settings must not be saved")
			}
		})
	}
}

func TestSettingsUploadLogo_ReplacesPrevious(t *testing.T) {
	old := "http://files.test/storage/logos/old.png"
	store := &mockSettingsStore{}
	r := setupSettingsRouter(store, &mockObjectStore{})
	doRequest(t, r, "PUT", "/admin/settings", map[string]interface{}{"name": "Cantina"})
	store.settings.LogoUrl = pgtype.Text{String: old, Valid: true}
	objects := &mockObjectStore{}
	r = setupSettingsRouter(store, objects)

	rr := doUpload(t, r, "/admin/settings/logo", pngBytes)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if len(objects.puts) != 1 || resp["logo_url"] != objects.puts[0].URL {
		t.Errorf("logo_url: got %v, puts %v", resp["logo_url"], objects.puts)
	}
	if resp["name"] != "Cantina" {
		t.Errorf("name: got %v, want Cantina", resp["name"])
	}
	if len(objects.deleted) != 1 || objects.deleted[0] != old {
		t.Errorf("deleted: got %v, want [%s]", objects.deleted, old)
	}
}

func TestSettingsUploadLogo_MissingFile(t *testing.T) {
	r := setupSettingsRouter(&mockSettingsStore{}, &mockObjectStore{})

	rr := doRequest(t, r, "POST", "/admin/settings/logo", nil)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
