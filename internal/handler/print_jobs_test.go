package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-digital/api/internal/database"
	"github.com/mesa-digital/api/internal/enum"
	"github.com/mesa-digital/api/internal/handler"
	"github.com/mesa-digital/api/internal/printing"
)

// --- Mock store ---

type mockPrintJobStore struct {
	jobs map[uuid.UUID]database.PrintJob
}

func newMockPrintJobStore() *mockPrintJobStore {
	return &mockPrintJobStore{jobs: make(map[uuid.UUID]database.PrintJob)}
}

func (m *mockPrintJobStore) add(t *testing.T, status string, receipt printing.Receipt) database.PrintJob {
	t.Helper()
	payload, err := json.Marshal(receipt)
	if err != nil {
		t.Fatalf("marshal receipt: %v", err)
	}
	j := database.PrintJob{
		ID:        uuid.New(),
		PaymentID: pgtype.UUID{Bytes: receipt.PaymentID, Valid: true},
		Kind:      enum.PrintJobKindReceipt,
		Payload:   payload,
		Status:    status,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if status == enum.PrintJobStatusFailed {
		j.Attempts = 5
		j.LastError = pgtype.Text{String: "broker unavailable", Valid: true}
	}
	m.jobs[j.ID] = j
	return j
}

func (m *mockPrintJobStore) ListPrintJobs(_ context.Context, arg database.ListPrintJobsParams) ([]database.PrintJob, error) {
	var out []database.PrintJob
	for _, j := range m.jobs {
		if arg.Status.Valid && j.Status != arg.Status.String {
			continue
		}
		out = append(out, j)
	}
	return out, nil
}

func (m *mockPrintJobStore) GetPrintJob(_ context.Context, id uuid.UUID) (database.PrintJob, error) {
	j, ok := m.jobs[id]
	if !ok {
		return database.PrintJob{}, pgx.ErrNoRows
	}
	return j, nil
}

func (m *mockPrintJobStore) RequeuePrintJob(_ context.Context, id uuid.UUID) (database.PrintJob, error) {
	j, ok := m.jobs[id]
	if !ok || j.Status != enum.PrintJobStatusFailed {
		return database.PrintJob{}, pgx.ErrNoRows
	}
	j.Status = enum.PrintJobStatusPending
	j.Attempts = 0
	j.LastError = pgtype.Text{}
	m.jobs[id] = j
	return j, nil
}

// --- Helpers ---

func setupPrintJobRouter(store *mockPrintJobStore, queue *recordingQueue) *chi.Mux {
	h := handler.NewPrintJobHandler(store, queue)
	r := chi.NewRouter()
	r.Route("/admin/print-jobs", h.RegisterRoutes)
	return r
}

func sampleReceipt() printing.Receipt {
	return printing.Receipt{
		Restaurant:  "Mesa Teste",
		Currency:    "BRL",
		TableNumber: 3,
		PaymentID:   uuid.New(),
		Method:      enum.PaymentMethodPix,
		Total:       money("27.00"),
		ProcessedAt: time.Date(2026, 3, 1, 20, 15, 0, 0, time.UTC),
		Orders: []printing.ReceiptOrder{{
			ID:    uuid.New(),
			Total: money("27.00"),
			Lines: []printing.ReceiptLine{{Name: "Pastel", Quantity: 3, UnitPrice: money("9.00"), Total: money("27.00")}},
		}},
	}
}

// --- Tests ---

func TestPrintJobList_FilterByStatus(t *testing.T) {
	store := newMockPrintJobStore()
	store.add(t, enum.PrintJobStatusSent, sampleReceipt())
	store.add(t, enum.PrintJobStatusFailed, sampleReceipt())
	r := setupPrintJobRouter(store, nil)

	rr := doRequest(t, r, "GET", "/admin/print-jobs?status=failed", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	jobs, _ := decodeResponse(t, rr)["print_jobs"].([]interface{})
	if len(jobs) != 1 {
		t.Fatalf("jobs: got %d, want 1", len(jobs))
	}
	if j := jobs[0].(map[string]interface{}); j["last_error"] != "broker unavailable" {
		t.Errorf("last_error: got %v", j["last_error"])
	}
}

func TestPrintJobList_InvalidStatus(t *testing.T) {
	r := setupPrintJobRouter(newMockPrintJobStore(), nil)

	rr := doRequest(t, r, "GET", "/admin/print-jobs?status=lost", nil)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestPrintJobGet_IncludesPayload(t *testing.T) {
	store := newMockPrintJobStore()
	job := store.add(t, enum.PrintJobStatusSent, sampleReceipt())
	r := setupPrintJobRouter(store, nil)

	rr := doRequest(t, r, "GET", "/admin/print-jobs/"+job.ID.String(), nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	payload, ok := decodeResponse(t, rr)["payload"].(map[string]interface{})
	if !ok {
		t.Fatal("expected payload object")
	}
	if payload["table_number"] != float64(3) {
		t.Errorf("payload table_number: got %v, want 3", payload["table_number"])
	}
}

func TestPrintJobReceiptText(t *testing.T) {
	store := newMockPrintJobStore()
	job := store.add(t, enum.PrintJobStatusSent, sampleReceipt())
	r := setupPrintJobRouter(store, nil)

	rr := doRequest(t, r, "GET", "/admin/print-jobs/"+job.ID.String()+"/receipt.txt", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	body := rr.Body.String()
	for _, want := range []string{"Mesa Teste", "Mesa 3", "3x Pastel", "TOTAL"} {
		if !strings.Contains(body, want) {
			t.Errorf("receipt text missing %q:\n%s", want, body)
		}
	}
}

func TestPrintJobRetry(t *testing.T) {
	tests := []struct {
		name   string
		status string
		want   int
		queued int
	}{
		{"failed job", enum.PrintJobStatusFailed, http.StatusAccepted, 1},
		{"sent job", enum.PrintJobStatusSent, http.StatusConflict, 0},
		{"pending job", enum.PrintJobStatusPending, http.StatusConflict, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockPrintJobStore()
			job := store.add(t, tt.status, sampleReceipt())
			queue := &recordingQueue{}
			r := setupPrintJobRouter(store, queue)

			rr := doRequest(t, r, "POST", "/admin/print-jobs/"+job.ID.String()+"/retry", nil)

			if rr.Code != tt.want {
				t.Fatalf("status: got %d, want %d; body: %s", rr.Code, tt.want, rr.Body.String())
			}
			if len(queue.ids) != tt.queued {
				t.Errorf("queued: got %d, want %d", len(queue.ids), tt.queued)
			}
			if tt.want == http.StatusAccepted && store.jobs[job.ID].Status != enum.PrintJobStatusPending {
				t.Errorf("stored status: got %s, want pending", store.jobs[job.ID].Status)
			}
		})
	}
}

func TestPrintJobGet_NotFound(t *testing.T) {
	r := setupPrintJobRouter(newMockPrintJobStore(), nil)

	rr := doRequest(t, r, "GET", "/admin/print-jobs/"+uuid.NewString(), nil)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
