package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const printJobColumns = `id, payment_id, kind, payload, status, attempts, last_error, created_at, updated_at, sent_at`

func scanPrintJob(row pgx.Row) (PrintJob, error) {
	var i PrintJob
	err := row.Scan(
		&i.ID,
		&i.PaymentID,
		&i.Kind,
		&i.Payload,
		&i.Status,
		&i.Attempts,
		&i.LastError,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.SentAt,
	)
	return i, err
}

func collectPrintJobs(rows pgx.Rows, err error) ([]PrintJob, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []PrintJob{}
	for rows.Next() {
		i, err := scanPrintJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createPrintJob = `INSERT INTO print_jobs (payment_id, kind, payload) VALUES ($1, $2, $3) RETURNING ` + printJobColumns

type CreatePrintJobParams struct {
	PaymentID pgtype.UUID `json:"payment_id"`
	Kind      string      `json:"kind"`
	Payload   []byte      `json:"payload"`
}

func (q *Queries) CreatePrintJob(ctx context.Context, arg CreatePrintJobParams) (PrintJob, error) {
	return scanPrintJob(q.db.QueryRow(ctx, createPrintJob, arg.PaymentID, arg.Kind, arg.Payload))
}

const getPrintJob = `SELECT ` + printJobColumns + ` FROM print_jobs WHERE id = $1`

func (q *Queries) GetPrintJob(ctx context.Context, id uuid.UUID) (PrintJob, error) {
	return scanPrintJob(q.db.QueryRow(ctx, getPrintJob, id))
}

const listPendingPrintJobs = `SELECT ` + printJobColumns + ` FROM print_jobs
WHERE status = 'pending'
ORDER BY created_at
LIMIT $1`

func (q *Queries) ListPendingPrintJobs(ctx context.Context, limit int32) ([]PrintJob, error) {
	return collectPrintJobs(q.db.Query(ctx, listPendingPrintJobs, limit))
}

const listPrintJobs = `SELECT ` + printJobColumns + ` FROM print_jobs
WHERE ($1::text IS NULL OR status = $1)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

type ListPrintJobsParams struct {
	Status pgtype.Text `json:"status"`
	Limit  int32       `json:"limit"`
	Offset int32       `json:"offset"`
}

func (q *Queries) ListPrintJobs(ctx context.Context, arg ListPrintJobsParams) ([]PrintJob, error) {
	return collectPrintJobs(q.db.Query(ctx, listPrintJobs, arg.Status, arg.Limit, arg.Offset))
}

const markPrintJobSent = `UPDATE print_jobs SET status = 'sent', attempts = attempts + 1, last_error = NULL,
    sent_at = now(), updated_at = now()
WHERE id = $1 AND status = 'pending'
RETURNING ` + printJobColumns

func (q *Queries) MarkPrintJobSent(ctx context.Context, id uuid.UUID) (PrintJob, error) {
	return scanPrintJob(q.db.QueryRow(ctx, markPrintJobSent, id))
}

// MarkPrintJobFailed records a failed attempt. The job stays pending until
// its attempts reach MaxAttempts.
const markPrintJobFailed = `UPDATE print_jobs SET attempts = attempts + 1, last_error = $2,
    status = CASE WHEN attempts + 1 >= $3 THEN 'failed' ELSE 'pending' END,
    updated_at = now()
WHERE id = $1 AND status = 'pending'
RETURNING ` + printJobColumns

type MarkPrintJobFailedParams struct {
	ID          uuid.UUID   `json:"id"`
	LastError   pgtype.Text `json:"last_error"`
	MaxAttempts int32       `json:"max_attempts"`
}

func (q *Queries) MarkPrintJobFailed(ctx context.Context, arg MarkPrintJobFailedParams) (PrintJob, error) {
	return scanPrintJob(q.db.QueryRow(ctx, markPrintJobFailed, arg.ID, arg.LastError, arg.MaxAttempts))
}

const requeuePrintJob = `UPDATE print_jobs SET status = 'pending', attempts = 0, updated_at = now()
WHERE id = $1 AND status = 'failed'
RETURNING ` + printJobColumns

func (q *Queries) RequeuePrintJob(ctx context.Context, id uuid.UUID) (PrintJob, error) {
	return scanPrintJob(q.db.QueryRow(ctx, requeuePrintJob, id))
}
