package idempotency

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"
	maxKeyLength   = 255
)

// Middleware makes a handler idempotent for requests carrying an
// Idempotency-Key header. Responses below 500 are stored and replayed;
// server errors release the key so the client may retry.
func Middleware(store Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(HeaderKey)
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(header) > maxKeyLength {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "idempotency key too long"})
				return
			}

			key := r.Method + ":" + r.URL.Path + ":" + header
			rec, claimed, err := store.Begin(r.Context(), key)
			if err != nil {
				log.Error().Err(err).Msg("idempotency begin")
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}
			if !claimed {
				if rec.Pending {
					writeJSON(w, http.StatusConflict, map[string]string{"error": "a request with this idempotency key is in progress"})
					return
				}
				if rec.ContentType != "" {
					w.Header().Set("Content-Type", rec.ContentType)
				}
				w.Header().Set(HeaderReplayed, "true")
				w.WriteHeader(rec.Status)
				w.Write(rec.Body)
				return
			}

			// A panicking handler releases the key before the panic reaches
			// the recoverer further up the chain.
			defer func() {
				if p := recover(); p != nil {
					if err := store.Release(r.Context(), key); err != nil {
						log.Error().Err(err).Msg("idempotency release after panic")
					}
					panic(p)
				}
			}()

			rw := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			if rw.status >= http.StatusInternalServerError {
				if err := store.Release(r.Context(), key); err != nil {
					log.Error().Err(err).Msg("idempotency release")
				}
				return
			}
			err = store.Complete(r.Context(), key, Record{
				Status:      rw.status,
				ContentType: rw.Header().Get("Content-Type"),
				Body:        rw.body.Bytes(),
			})
			if err != nil {
				log.Error().Err(err).Msg("idempotency complete")
			}
		})
	}
}

// recorder captures the response while passing it through.
type recorder struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func (r *recorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
