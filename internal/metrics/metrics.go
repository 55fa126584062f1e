package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PastesCreated counts pastes persisted successfully
var PastesCreated = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "npaste_pastes_created_total",
		Help: "Number of pastes created.",
	},
)

// PasteRetrievals counts retrieval attempts by outcome (served, not_found,
// unavailable, error)
var PasteRetrievals = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "npaste_paste_retrievals_total",
		Help: "Paste retrieval attempts by outcome.",
	},
	[]string{"outcome"},
)

// PastesDeleted counts explicit deletions
var PastesDeleted = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "npaste_pastes_deleted_total",
		Help: "Number of pastes deleted through the admin API.",
	},
)

// PastesPurged counts records removed by the expiry janitor
var PastesPurged = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "npaste_pastes_purged_total",
		Help: "Number of expired pastes removed by the janitor.",
	},
)

// IDCollisions counts generated identifiers that were already taken
var IDCollisions = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "npaste_id_collisions_total",
		Help: "Generated paste identifiers rejected because they already existed.",
	},
)

// StoreOperationDuration measures each store call
var StoreOperationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "npaste_store_operation_duration_seconds",
		Help:    "Duration of paste store operations.",
		Buckets: prometheus.LinearBuckets(0.001, 0.005, 20),
	},
	[]string{"operation", "result"},
)

// HTTPRequestDuration measures requests by route template
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "npaste_http_request_duration_seconds",
		Help:    "Duration of HTTP requests.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)

func init() {
	prometheus.MustRegister(PastesCreated)
	prometheus.MustRegister(PasteRetrievals)
	prometheus.MustRegister(PastesDeleted)
	prometheus.MustRegister(PastesPurged)
	prometheus.MustRegister(IDCollisions)
	prometheus.MustRegister(StoreOperationDuration)
	prometheus.MustRegister(HTTPRequestDuration)
}

// ObserveStore records the duration of a store operation started at start
func ObserveStore(operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	StoreOperationDuration.WithLabelValues(operation, result).Observe(time.Since(start).Seconds())
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
