package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentHandler_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/admin/tables/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/admin/tables/{id}", "418"))
	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest("GET", "/admin/tables/abc", nil))
		require.Equal(t, http.StatusTeapot, rr.Code)
	}
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/admin/tables/{id}", "418"))
	assert.Equal(t, 2.0, after-before)
}

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(checkouts.WithLabelValues("pix"))
	RecordCheckout("pix", 55.5)
	assert.Equal(t, 1.0, testutil.ToFloat64(checkouts.WithLabelValues("pix"))-before)

	beforeItems := testutil.ToFloat64(orderItems)
	RecordOrderSubmitted(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(orderItems)-beforeItems)

	RecordStatusChange("preparing")
	RecordPrintDispatch("sent")
}

func TestHandler_ExposesMetrics(t *testing.T) {
	RecordPrintDispatch("retry")

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "mesa_printing_dispatches_total"))
}
