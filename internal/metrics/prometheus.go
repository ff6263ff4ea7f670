package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all access list manager metrics.
type Registry struct {
	// Access list metrics
	RuleSetsGenerated *prometheus.CounterVec
	RuleSetSize       *prometheus.GaugeVec
	GatewayLookups    *prometheus.CounterVec

	// Sync metrics
	Syncs          *prometheus.CounterVec
	SyncDuration   *prometheus.HistogramVec
	LastSyncStatus *prometheus.GaugeVec
	HubFetches     *prometheus.CounterVec

	// API metrics
	APIRequests *prometheus.CounterVec
	APILatency  *prometheus.HistogramVec
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	// Access list metrics
	r.RuleSetsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubacl_rule_sets_generated_total",
		Help: "Access lists generated, by hub and policy mode",
	}, []string{"hub", "mode"})

	r.RuleSetSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hubacl_rule_set_size",
		Help: "Number of rules in the last generated access list",
	}, []string{"hub"})

	r.GatewayLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubacl_gateway_lookups_total",
		Help: "Gateway rule lookups on live access lists, by result",
	}, []string{"hub", "result"})

	// Sync metrics
	r.Syncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubacl_syncs_total",
		Help: "Access list pushes to hubs, by status",
	}, []string{"hub", "status"})

	r.SyncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hubacl_sync_duration_seconds",
		Help:    "Time spent fetching, computing and pushing an access list",
		Buckets: prometheus.DefBuckets,
	}, []string{"hub"})

	r.LastSyncStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hubacl_last_sync_success",
		Help: "1 if the last sync of the hub succeeded, 0 otherwise",
	}, []string{"hub"})

	r.HubFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubacl_hub_fetches_total",
		Help: "Live access list reads from hubs, by status",
	}, []string{"hub", "status"})

	// API metrics
	r.APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubacl_api_requests_total",
		Help: "Total API requests",
	}, []string{"method", "path", "status"})

	r.APILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hubacl_api_request_duration_seconds",
		Help:    "API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	return r
}

// RecordRuleSet records a generated access list.
func (r *Registry) RecordRuleSet(hub, mode string, size int) {
	r.RuleSetsGenerated.WithLabelValues(hub, mode).Inc()
	r.RuleSetSize.WithLabelValues(hub).Set(float64(size))
}

// RecordGatewayLookup records the outcome of a gateway rule lookup.
func (r *Registry) RecordGatewayLookup(hub, result string) {
	r.GatewayLookups.WithLabelValues(hub, result).Inc()
}

// RecordSync records a finished sync.
func (r *Registry) RecordSync(hub, status string, duration float64) {
	r.Syncs.WithLabelValues(hub, status).Inc()
	r.SyncDuration.WithLabelValues(hub).Observe(duration)
	if status == "success" {
		r.LastSyncStatus.WithLabelValues(hub).Set(1)
	} else {
		r.LastSyncStatus.WithLabelValues(hub).Set(0)
	}
}

// RecordHubFetch records a live access list read.
func (r *Registry) RecordHubFetch(hub string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	r.HubFetches.WithLabelValues(hub, status).Inc()
}

// RecordAPIRequest records an API request.
func (r *Registry) RecordAPIRequest(method, path string, status int, duration float64) {
	r.APIRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.APILatency.WithLabelValues(method, path).Observe(duration)
}
