package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mesa",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mesa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mesa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	ordersSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mesa",
			Subsystem: "orders",
			Name:      "submitted_total",
			Help:      "Orders submitted by diners.",
		},
	)

	orderItems = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mesa",
			Subsystem: "orders",
			Name:      "items_total",
			Help:      "Units ordered across all submitted orders.",
		},
	)

	statusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mesa",
			Subsystem: "orders",
			Name:      "status_changes_total",
			Help:      "Order status changes by target status.",
		},
		[]string{"status"},
	)

	checkouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mesa",
			Subsystem: "checkout",
			Name:      "settlements_total",
			Help:      "Table settlements by payment method.",
		},
		[]string{"method"},
	)

	revenue = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mesa",
			Subsystem: "checkout",
			Name:      "revenue_total",
			Help:      "Settled amount by payment method.",
		},
		[]string{"method"},
	)

	printDispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mesa",
			Subsystem: "printing",
			Name:      "dispatches_total",
			Help:      "Print job dispatch attempts by result.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		ordersSubmitted,
		orderItems,
		statusChanges,
		checkouts,
		revenue,
		printDispatches,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
// Paths are labelled with the matched chi route pattern to keep cardinality low.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := routePattern(r)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordOrderSubmitted counts a diner order and its units.
func RecordOrderSubmitted(units int) {
	ordersSubmitted.Inc()
	orderItems.Add(float64(units))
}

// RecordStatusChange counts an order moving to status.
func RecordStatusChange(status string) {
	statusChanges.WithLabelValues(status).Inc()
}

// RecordCheckout counts a settlement and its amount.
func RecordCheckout(method string, amount float64) {
	checkouts.WithLabelValues(method).Inc()
	if amount > 0 {
		revenue.WithLabelValues(method).Add(amount)
	}
}

// RecordPrintDispatch counts a print dispatch attempt ("sent", "retry", "failed").
func RecordPrintDispatch(result string) {
	printDispatches.WithLabelValues(result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack passes through to the underlying writer for websocket upgrades.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
