package printing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-digital/api/internal/database"
	"github.com/mesa-digital/api/internal/enum"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Results reported to the dispatch observer.
const (
	ResultSent    = "sent"
	ResultRetry   = "retry"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

const (
	sweepBatch     = 50
	publishTimeout = 10 * time.Second
)

// JobStore defines the DB methods the dispatcher needs.
// Satisfied by *database.Queries.
type JobStore interface {
	GetPrintJob(ctx context.Context, id uuid.UUID) (database.PrintJob, error)
	ListPendingPrintJobs(ctx context.Context, limit int32) ([]database.PrintJob, error)
	MarkPrintJobSent(ctx context.Context, id uuid.UUID) (database.PrintJob, error)
	MarkPrintJobFailed(ctx context.Context, arg database.MarkPrintJobFailedParams) (database.PrintJob, error)
}

// Dispatcher publishes pending print jobs and records the outcome.
type Dispatcher struct {
	store       JobStore
	pub         Publisher
	maxAttempts int32
	observe     func(result string)

	cron *cron.Cron
	wg   sync.WaitGroup
	// serializes dispatch of one job between Enqueue and the sweep
	mu       sync.Mutex
	inFlight map[uuid.UUID]bool
}

// NewDispatcher creates a Dispatcher. observe may be nil.
func NewDispatcher(store JobStore, pub Publisher, maxAttempts int32, observe func(result string)) *Dispatcher {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if observe == nil {
		observe = func(string) {}
	}
	return &Dispatcher{
		store:       store,
		pub:         pub,
		maxAttempts: maxAttempts,
		observe:     observe,
		inFlight:    make(map[uuid.UUID]bool),
	}
}

// Dispatch publishes one job if it is still pending and marks it sent, or
// records the failure. Returns the job as stored afterwards.
func (d *Dispatcher) Dispatch(ctx context.Context, id uuid.UUID) (database.PrintJob, error) {
	if !d.claim(id) {
		d.observe(ResultSkipped)
		return database.PrintJob{}, nil
	}
	defer d.release(id)

	job, err := d.store.GetPrintJob(ctx, id)
	if err != nil {
		return database.PrintJob{}, fmt.Errorf("get print job: %w", err)
	}
	if job.Status != enum.PrintJobStatusPending {
		d.observe(ResultSkipped)
		return job, nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	pubErr := d.pub.Publish(pubCtx, job)
	cancel()

	if pubErr == nil {
		sent, err := d.store.MarkPrintJobSent(ctx, job.ID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Someone else moved it on
				d.observe(ResultSkipped)
				return job, nil
			}
			return job, fmt.Errorf("mark print job sent: %w", err)
		}
		d.observe(ResultSent)
		return sent, nil
	}

	failed, err := d.store.MarkPrintJobFailed(ctx, database.MarkPrintJobFailedParams{
		ID:          job.ID,
		LastError:   pgtype.Text{String: pubErr.Error(), Valid: true},
		MaxAttempts: d.maxAttempts,
	})
	if err != nil {
		return job, fmt.Errorf("mark print job failed: %w", err)
	}
	if failed.Status == enum.PrintJobStatusFailed {
		d.observe(ResultFailed)
		log.Error().Err(pubErr).Str("print_job_id", job.ID.String()).Int32("attempts", failed.Attempts).Msg("print job gave up")
	} else {
		d.observe(ResultRetry)
		log.Warn().Err(pubErr).Str("print_job_id", job.ID.String()).Int32("attempts", failed.Attempts).Msg("print job will retry")
	}
	return failed, nil
}

// Sweep dispatches every pending job, oldest first.
func (d *Dispatcher) Sweep(ctx context.Context) (int, error) {
	jobs, err := d.store.ListPendingPrintJobs(ctx, sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list pending print jobs: %w", err)
	}
	sent := 0
	for _, job := range jobs {
		res, err := d.Dispatch(ctx, job.ID)
		if err != nil {
			log.Error().Err(err).Str("print_job_id", job.ID.String()).Msg("dispatch print job")
			continue
		}
		if res.Status == enum.PrintJobStatusSent {
			sent++
		}
	}
	return sent, nil
}

// Enqueue dispatches a freshly committed job in the background.
func (d *Dispatcher) Enqueue(id uuid.UUID) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if _, err := d.Dispatch(context.Background(), id); err != nil {
			log.Error().Err(err).Str("print_job_id", id.String()).Msg("dispatch print job")
		}
	}()
}

// Start schedules the retry sweep using a cron spec such as "@every 30s".
func (d *Dispatcher) Start(spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := d.Sweep(context.Background()); err != nil {
			log.Error().Err(err).Msg("print sweep")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule print sweep: %w", err)
	}
	d.cron = c
	c.Start()
	return nil
}

// Stop halts the sweep and waits for in-flight dispatches.
func (d *Dispatcher) Stop() {
	if d.cron != nil {
		<-d.cron.Stop().Done()
	}
	d.wg.Wait()
}

func (d *Dispatcher) claim(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inFlight[id] {
		return false
	}
	d.inFlight[id] = true
	return true
}

func (d *Dispatcher) release(id uuid.UUID) {
	d.mu.Lock()
	delete(d.inFlight, id)
	d.mu.Unlock()
}
