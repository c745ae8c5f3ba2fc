package handler_test

import (
	"bytes"
	"context"
	"image/png"
	"net/http"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mesa-digital/api/internal/database"
	"github.com/mesa-digital/api/internal/enum"
	"github.com/mesa-digital/api/internal/handler"
)

// --- Mock store ---

type mockTableStore struct {
	tables       map[uuid.UUID]database.Table
	activeOrders map[uuid.UUID]int64
	history      map[uuid.UUID]bool
}

func newMockTableStore() *mockTableStore {
	return &mockTableStore{
		tables:       make(map[uuid.UUID]database.Table),
		activeOrders: make(map[uuid.UUID]int64),
		history:      make(map[uuid.UUID]bool),
	}
}

func (m *mockTableStore) add(number int32, status string) database.Table {
	t := database.Table{ID: uuid.New(), Number: number, Status: status, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.tables[t.ID] = t
	return t
}

func (m *mockTableStore) ListTables(_ context.Context) ([]database.Table, error) {
	out := make([]database.Table, 0, len(m.tables))
	for _, t := range m.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *mockTableStore) GetTable(_ context.Context, id uuid.UUID) (database.Table, error) {
	t, ok := m.tables[id]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *mockTableStore) CreateTable(_ context.Context, number int32) (database.Table, error) {
	for _, t := range m.tables {
		if t.Number == number {
			return database.Table{}, &pgconn.PgError{Code: "23505"}
		}
	}
	return m.add(number, enum.TableStatusAvailable), nil
}

func (m *mockTableStore) DeleteTable(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	if _, ok := m.tables[id]; !ok {
		return uuid.Nil, pgx.ErrNoRows
	}
	if m.history[id] {
		return uuid.Nil, &pgconn.PgError{Code: "23503"}
	}
	delete(m.tables, id)
	return id, nil
}

func (m *mockTableStore) UpdateTableStatus(_ context.Context, arg database.UpdateTableStatusParams) (database.Table, error) {
	t, ok := m.tables[arg.ID]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	t.Status = arg.Status
	m.tables[t.ID] = t
	return t, nil
}

func (m *mockTableStore) CountActiveOrdersByTable(_ context.Context, tableID uuid.UUID) (int64, error) {
	return m.activeOrders[tableID], nil
}

// --- Helpers ---

func setupTableRouter(store *mockTableStore, notifier handler.Notifier) *chi.Mux {
	h := handler.NewTableHandler(store, "https://mesa.test", notifier)
	r := chi.NewRouter()
	r.Route("/admin/tables", h.RegisterRoutes)
	return r
}

// --- Tests ---

func TestTableCreate(t *testing.T) {
	notifier := &recordingNotifier{}
	r := setupTableRouter(newMockTableStore(), notifier)

	rr := doRequest(t, r, "POST", "/admin/tables", map[string]int{"number": 4})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	if resp := decodeResponse(t, rr); resp["status"] != enum.TableStatusAvailable {
		t.Errorf("status field: got %v, want available", resp["status"])
	}
	if got := notifier.count(enum.TopicTables, enum.ChangeInsert); got != 1 {
		t.Errorf("insert notifications: got %d, want 1", got)
	}
}

func TestTableCreate_InvalidNumber(t *testing.T) {
	r := setupTableRouter(newMockTableStore(), nil)

	rr := doRequest(t, r, "POST", "/admin/tables", map[string]int{"number": 0})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestTableCreate_DuplicateNumber(t *testing.T) {
	store := newMockTableStore()
	store.add(4, enum.TableStatusAvailable)
	r := setupTableRouter(store, nil)

	rr := doRequest(t, r, "POST", "/admin/tables", map[string]int{"number": 4})

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestTableList_OrderedByNumber(t *testing.T) {
	store := newMockTableStore()
	store.add(9, enum.TableStatusAvailable)
	store.add(2, enum.TableStatusOccupied)
	r := setupTableRouter(store, nil)

	list := decodeListResponse(t, doRequest(t, r, "GET", "/admin/tables", nil))

	if len(list) != 2 || list[0]["number"] != float64(2) {
		t.Errorf("list: got %v", list)
	}
}

func TestTableDelete(t *testing.T) {
	tests := []struct {
		name    string
		active  int64
		history bool
		want    int
	}{
		{"free table", 0, false, http.StatusNoContent},
		{"open orders", 1, false, http.StatusConflict},
		{"order history", 0, true, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockTableStore()
			table := store.add(1, enum.TableStatusAvailable)
			store.activeOrders[table.ID] = tt.active
			store.history[table.ID] = tt.history
			r := setupTableRouter(store, nil)

			rr := doRequest(t, r, "DELETE", "/admin/tables/"+table.ID.String(), nil)

			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d; body: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestTableUpdateStatus(t *testing.T) {
	store := newMockTableStore()
	table := store.add(1, enum.TableStatusOccupied)
	notifier := &recordingNotifier{}
	r := setupTableRouter(store, notifier)

	rr := doRequest(t, r, "PATCH", "/admin/tables/"+table.ID.String()+"/status", map[string]string{"status": enum.TableStatusReserved})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if store.tables[table.ID].Status != enum.TableStatusReserved {
		t.Errorf("table status: got %s, want reserved", store.tables[table.ID].Status)
	}
	if got := notifier.count(enum.TopicTables, enum.ChangeUpdate); got != 1 {
		t.Errorf("update notifications: got %d, want 1", got)
	}
}

func TestTableUpdateStatus_Invalid(t *testing.T) {
	store := newMockTableStore()
	table := store.add(1, enum.TableStatusOccupied)
	r := setupTableRouter(store, nil)

	rr := doRequest(t, r, "PATCH", "/admin/tables/"+table.ID.String()+"/status", map[string]string{"status": "dirty"})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestTableQRCode(t *testing.T) {
	store := newMockTableStore()
	table := store.add(7, enum.TableStatusAvailable)
	r := setupTableRouter(store, nil)

	rr := doRequest(t, r, "GET", "/admin/tables/"+table.ID.String()+"/qr?size=128", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content-type: got %s, want image/png", ct)
	}
	img, err := png.Decode(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != 128 {
		t.Errorf("width: got %d, want 128", img.Bounds().Dx())
	}
}

func TestTableQRCode_BadSize(t *testing.T) {
	store := newMockTableStore()
	table := store.add(7, enum.TableStatusAvailable)
	r := setupTableRouter(store, nil)

	rr := doRequest(t, r, "GET", "/admin/tables/"+table.ID.String()+"/qr?size=5000", nil)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
