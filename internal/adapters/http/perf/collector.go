package perf

import (
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EntryKind distinguishes what was timed.
type EntryKind uint8

const (
	KindRequest EntryKind = iota // inbound console request
	KindQuery                    // SQLite statement
	KindBackend                  // outbound scheduling-backend call
)

// Entry is a single timing observation.
type Entry struct {
	Kind       EntryKind
	Method     string // HTTP method (requests only)
	Path       string // request path, "ExecContext", or backend operation name
	StatusCode int    // HTTP status; 0 for queries and transport failures
	DurationMs float64
	Timestamp  time.Time
}

// Collector turns timing entries into Prometheus histograms and serves them.
// Each collector owns its registry so tests never share global state.
type Collector struct {
	registry *prometheus.Registry
	requests *prometheus.HistogramVec
	queries  *prometheus.HistogramVec
	backend  *prometheus.HistogramVec
	count    int64
}

// NewCollector registers the console's histograms on a fresh registry.
// PRE: none
// POST: Returns a ready-to-use collector
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of console HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	queries := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of SQLite statements in seconds",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}, []string{"op"})

	backend := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backend_request_duration_seconds",
		Help:    "Duration of scheduling-backend calls in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "status"})

	registry.MustRegister(requests, queries, backend)
	registry.MustRegister(prometheus.NewGoCollector())

	return &Collector{
		registry: registry,
		requests: requests,
		queries:  queries,
		backend:  backend,
	}
}

// Record observes an entry.
// PRE: e.Kind is a known kind
// POST: the matching histogram is updated and the total count incremented
func (c *Collector) Record(e Entry) {
	seconds := e.DurationMs / 1000.0
	switch e.Kind {
	case KindRequest:
		c.requests.WithLabelValues(e.Method, RouteLabel(e.Path), strconv.Itoa(e.StatusCode)).Observe(seconds)
	case KindQuery:
		c.queries.WithLabelValues(e.Path).Observe(seconds)
	case KindBackend:
		c.backend.WithLabelValues(e.Path, strconv.Itoa(e.StatusCode)).Observe(seconds)
	default:
		return
	}
	atomic.AddInt64(&c.count, 1)
}

// TotalRecorded returns the total number of entries ever recorded.
// PRE: none
// POST: returns count >= 0
func (c *Collector) TotalRecorded() int64 {
	return atomic.LoadInt64(&c.count)
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RouteLabel collapses identifier segments so label cardinality stays bounded:
// any segment containing a digit becomes ":id".
// e.g. "/courses/SE101" -> "/courses/:id"
func RouteLabel(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segs {
		if strings.ContainsAny(s, "0123456789") {
			segs[i] = ":id"
		}
	}
	return "/" + strings.Join(segs, "/")
}
