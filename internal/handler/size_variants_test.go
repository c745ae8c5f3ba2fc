package handler_test

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mesa-digital/api/internal/database"
	"github.com/mesa-digital/api/internal/handler"
)

func setupSizeVariantRouter(store *mockCatalogStore) *chi.Mux {
	h := handler.NewSizeVariantHandler(store, &mockPool{}, func(database.DBTX) handler.SizeVariantStore { return store })
	r := chi.NewRouter()
	r.Route("/admin/menu-items/{mid}", h.RegisterRoutes)
	return r
}

func TestSizeVariantCreate_NewDefaultReplacesOld(t *testing.T) {
	store := newMockCatalogStore()
	item := store.addItem("Acai", "15.00")
	r := setupSizeVariantRouter(store)
	path := "/admin/menu-items/" + item.ID.String() + "/size-variants"

	rr := doRequest(t, r, "POST", path, map[string]interface{}{"size_name": "300ml", "is_default": true})
	if rr.Code != http.StatusCreated {
		t.Fatalf("first: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	rr = doRequest(t, r, "POST", path, map[string]interface{}{"size_name": "500ml", "price_modifier": "6", "is_default": true})
	if rr.Code != http.StatusCreated {
		t.Fatalf("second: got %d, want %d", rr.Code, http.StatusCreated)
	}
	if resp := decodeResponse(t, rr); resp["price_modifier"] != "6.00" {
		t.Errorf("price_modifier: got %v, want 6.00", resp["price_modifier"])
	}

	defaults := 0
	for _, v := range store.variants[item.ID] {
		if v.IsDefault {
			defaults++
			if v.SizeName != "500ml" {
				t.Errorf("default: got %s, want 500ml", v.SizeName)
			}
		}
	}
	if defaults != 1 {
		t.Errorf("defaults: got %d, want 1", defaults)
	}
}

func TestSizeVariantCreate_NegativeModifierAllowed(t *testing.T) {
	store := newMockCatalogStore()
	item := store.addItem("Pizza", "40.00")
	r := setupSizeVariantRouter(store)

	rr := doRequest(t, r, "POST", "/admin/menu-items/"+item.ID.String()+"/size-variants", map[string]interface{}{
		"size_name":      "Broto",
		"price_modifier": "-10.00",
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
}

func TestSizeVariantCreate_Validation(t *testing.T) {
	store := newMockCatalogStore()
	item := store.addItem("Pizza", "40.00")
	r := setupSizeVariantRouter(store)
	path := "/admin/menu-items/" + item.ID.String() + "/size-variants"

	if rr := doRequest(t, r, "POST", path, map[string]interface{}{"size_name": " "}); rr.Code != http.StatusBadRequest {
		t.Errorf("empty name: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if rr := doRequest(t, r, "POST", path, map[string]interface{}{"size_name": "G", "price_modifier": "x"}); rr.Code != http.StatusBadRequest {
		t.Errorf("bad modifier: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestSizeVariantCreate_UnknownItem(t *testing.T) {
	r := setupSizeVariantRouter(newMockCatalogStore())

	rr := doRequest(t, r, "POST", "/admin/menu-items/"+uuid.NewString()+"/size-variants", map[string]interface{}{"size_name": "G"})

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestSizeVariantReplaceAll(t *testing.T) {
	store := newMockCatalogStore()
	item := store.addItem("Pizza", "40.00")
	store.variants[item.ID] = []database.SizeVariant{{ID: uuid.New(), MenuItemID: item.ID, SizeName: "Old"}}
	r := setupSizeVariantRouter(store)

	rr := doRequest(t, r, "PUT", "/admin/menu-items/"+item.ID.String()+"/size-variants", map[string]interface{}{
		"variants": []map[string]interface{}{
			{"size_name": "Media", "is_default": true},
			{"size_name": "Grande", "price_modifier": "12.00"},
		},
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if got := len(decodeListResponse(t, rr)); got != 2 {
		t.Errorf("variants: got %d, want 2", got)
	}
	for _, v := range store.variants[item.ID] {
		if v.SizeName == "Old" {
			t.Error("old variant should be gone")
		}
	}
}

func TestSizeVariantReplaceAll_TwoDefaults(t *testing.T) {
	store := newMockCatalogStore()
	item := store.addItem("Pizza", "40.00")
	r := setupSizeVariantRouter(store)

	rr := doRequest(t, r, "PUT", "/admin/menu-items/"+item.ID.String()+"/size-variants", map[string]interface{}{
		"variants": []map[string]interface{}{
			{"size_name": "Media", "is_default": true},
			{"size_name": "Grande", "is_default": true},
		},
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestSizeVariantUpdateDelete(t *testing.T) {
	store := newMockCatalogStore()
	item := store.addItem("Pizza", "40.00")
	r := setupSizeVariantRouter(store)
	base := "/admin/menu-items/" + item.ID.String() + "/size-variants"
	created := decodeResponse(t, doRequest(t, r, "POST", base, map[string]interface{}{"size_name": "Media"}))
	path := base + "/" + created["id"].(string)

	rr := doRequest(t, r, "PUT", path, map[string]interface{}{"size_name": "Media", "is_active": false})
	if rr.Code != http.StatusOK {
		t.Fatalf("update: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if decodeResponse(t, rr)["is_active"] != false {
		t.Error("expected variant to be inactive")
	}

	if rr := doRequest(t, r, "DELETE", path, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d, want %d", rr.Code, http.StatusNoContent)
	}
	if rr := doRequest(t, r, "DELETE", path, nil); rr.Code != http.StatusNotFound {
		t.Errorf("second delete: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
