package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-digital/api/internal/database"
	"github.com/mesa-digital/api/internal/enum"
	"github.com/mesa-digital/api/internal/printing"
	"github.com/rs/zerolog/log"
)

// PrintJobStore defines the database methods needed by print job handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type PrintJobStore interface {
	ListPrintJobs(ctx context.Context, arg database.ListPrintJobsParams) ([]database.PrintJob, error)
	GetPrintJob(ctx context.Context, id uuid.UUID) (database.PrintJob, error)
	RequeuePrintJob(ctx context.Context, id uuid.UUID) (database.PrintJob, error)
}

// PrintJobHandler exposes the receipt print outbox to admins.
type PrintJobHandler struct {
	store PrintJobStore
	queue PrintQueue
}

// NewPrintJobHandler creates a new PrintJobHandler.
func NewPrintJobHandler(store PrintJobStore, queue PrintQueue) *PrintJobHandler {
	return &PrintJobHandler{store: store, queue: queue}
}

// RegisterRoutes registers print job endpoints on the given Chi router.
// Expected to be mounted at /admin/print-jobs.
func (h *PrintJobHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/receipt.txt", h.ReceiptText)
	r.Post("/{id}/retry", h.Retry)
}

// --- Response types ---

type printJobResponse struct {
	ID        uuid.UUID       `json:"id"`
	PaymentID *string         `json:"payment_id"`
	Kind      string          `json:"kind"`
	Status    string          `json:"status"`
	Attempts  int32           `json:"attempts"`
	LastError *string         `json:"last_error"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	SentAt    *time.Time      `json:"sent_at"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func toPrintJobResponse(j database.PrintJob) printJobResponse {
	resp := printJobResponse{
		ID:        j.ID,
		PaymentID: database.UUIDPtr(j.PaymentID),
		Kind:      j.Kind,
		Status:    j.Status,
		Attempts:  j.Attempts,
		LastError: textPtr(j.LastError),
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if j.SentAt.Valid {
		t := j.SentAt.Time
		resp.SentAt = &t
	}
	return resp
}

// --- Handlers ---

// List returns print jobs, newest first, optionally filtered by ?status=.
func (h *PrintJobHandler) List(w http.ResponseWriter, r *http.Request) {
	params := database.ListPrintJobsParams{}
	if s := r.URL.Query().Get("status"); s != "" {
		switch s {
		case enum.PrintJobStatusPending, enum.PrintJobStatusSent, enum.PrintJobStatusFailed:
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
			return
		}
		params.Status = pgtype.Text{String: s, Valid: true}
	}

	limit, offset, err := parsePagination(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	params.Limit = limit
	params.Offset = offset

	jobs, err := h.store.ListPrintJobs(r.Context(), params)
	if err != nil {
		log.Error().Err(err).Msg("list print jobs")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]printJobResponse, len(jobs))
	for i, j := range jobs {
		resp[i] = toPrintJobResponse(j)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"print_jobs": resp,
		"limit":      limit,
		"offset":     offset,
	})
}

// Get returns a print job including its receipt payload.
func (h *PrintJobHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	resp := toPrintJobResponse(job)
	resp.Payload = json.RawMessage(job.Payload)
	writeJSON(w, http.StatusOK, resp)
}

// ReceiptText renders the job's receipt as the printer would print it.
func (h *PrintJobHandler) ReceiptText(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	var receipt printing.Receipt
	if err := json.Unmarshal(job.Payload, &receipt); err != nil {
		log.Error().Err(err).Str("print_job_id", job.ID.String()).Msg("decode receipt")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(receipt.Text())) //nolint:errcheck
}

// Retry puts a failed job back in the queue and dispatches it.
func (h *PrintJobHandler) Retry(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	if job.Status != enum.PrintJobStatusFailed {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "only failed print jobs can be retried"})
		return
	}

	requeued, err := h.store.RequeuePrintJob(r.Context(), job.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "print job status changed, please retry"})
			return
		}
		log.Error().Err(err).Msg("requeue print job")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if h.queue != nil {
		h.queue.Enqueue(requeued.ID)
	}

	writeJSON(w, http.StatusAccepted, toPrintJobResponse(requeued))
}

// --- Helpers ---

func (h *PrintJobHandler) loadJob(w http.ResponseWriter, r *http.Request) (database.PrintJob, bool) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid print job ID"})
		return database.PrintJob{}, false
	}

	job, err := h.store.GetPrintJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "print job not found"})
			return database.PrintJob{}, false
		}
		log.Error().Err(err).Msg("get print job")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return database.PrintJob{}, false
	}
	return job, true
}
