package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-digital/api/internal/database"
	"github.com/mesa-digital/api/internal/storage"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Notifier publishes committed row changes to realtime subscribers.
// Satisfied by *ws.Hub.
type Notifier interface {
	Notify(table, eventType string, record any)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string, any) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

// PrintQueue dispatches committed print jobs in the background.
// Satisfied by *printing.Dispatcher.
type PrintQueue interface {
	Enqueue(id uuid.UUID)
}

// ObjectStore keeps uploaded files. Satisfied by *storage.FS.
type ObjectStore interface {
	Put(b storage.Bucket, data []byte) (storage.Object, error)
	DeleteURL(url string) error
}

var errNegativePrice = errors.New("negative price")

// parsePrice parses a non-negative money amount.
func parsePrice(s string) (pgtype.Numeric, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return pgtype.Numeric{}, err
	}
	if d.IsNegative() {
		return pgtype.Numeric{}, errNegativePrice
	}
	return database.DecimalToNumeric(d), nil
}

// parsePriceModifier parses a size variant modifier, which may be negative.
func parsePriceModifier(s string) (pgtype.Numeric, error) {
	if s == "" {
		return database.DecimalToNumeric(decimal.Zero), nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return pgtype.Numeric{}, err
	}
	return database.DecimalToNumeric(d), nil
}

func numericToString(n pgtype.Numeric) string {
	return database.NumericToDecimal(n).StringFixed(2)
}

func numericPtr(n pgtype.Numeric) *string {
	if !n.Valid {
		return nil
	}
	s := numericToString(n)
	return &s
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func optionalText(s *string) pgtype.Text {
	if s == nil || *s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func formatItemError(idx int, msg string) string {
	return "items[" + strconv.Itoa(idx) + "]: " + msg
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// parsePagination reads limit (default 20, max 100) and offset query params.
func parsePagination(r *http.Request) (int32, int32, error) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, 0, errors.New("invalid limit")
		}
		limit = n
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > math.MaxInt32 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = n
	}
	return int32(limit), int32(offset), nil
}

// parseDateRange reads the start_date and end_date query params as
// YYYY-MM-DD. end_date is inclusive, so the upper bound returned is the
// following midnight. Missing params leave their bound invalid.
func parseDateRange(r *http.Request) (start, end pgtype.Timestamptz, err error) {
	q := r.URL.Query()
	if s := q.Get("start_date"); s != "" {
		t, perr := time.Parse(time.DateOnly, s)
		if perr != nil {
			return start, end, errors.New("invalid start_date, expected YYYY-MM-DD")
		}
		start = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if s := q.Get("end_date"); s != "" {
		t, perr := time.Parse(time.DateOnly, s)
		if perr != nil {
			return start, end, errors.New("invalid end_date, expected YYYY-MM-DD")
		}
		end = pgtype.Timestamptz{Time: t.AddDate(0, 0, 1), Valid: true}
	}
	return start, end, nil
}

// readUpload pulls the "file" part out of a multipart request, bounded by
// the bucket's size limit.
func readUpload(w http.ResponseWriter, r *http.Request, b storage.Bucket) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, b.MaxSize+1<<20)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file is required"})
		return nil, false
	}
	defer file.Close()

	data, err := storage.ReadLimited(file, b.MaxSize)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
			return nil, false
		}
		log.Error().Err(err).Msg("read upload")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid upload"})
		return nil, false
	}
	return data, true
}

// writeUploadError maps storage validation errors to a response.
func writeUploadError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
	case errors.Is(err, storage.ErrUnsupportedType), errors.Is(err, storage.ErrEmptyFile):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Error().Err(err).Msg(op)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
