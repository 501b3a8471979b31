package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Label values for ingest status.
const (
	StatusSuccess = "success"
	StatusInvalid = "invalid"
	StatusFailed  = "failed"
)

// Label values for geocode results.
const (
	GeocodeResolved = "resolved"
	GeocodeEmpty    = "empty"
	GeocodeFailed   = "failed"
	GeocodeTimeout  = "timeout"
	GeocodeSkipped  = "skipped"
)

// Metrics holds the collectors for ingestion, enrichment and dashboard
// queries.
type Metrics struct {
	ingestTotal   *prometheus.CounterVec
	geocodeTotal  *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ingestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracker",
			Name:      "ingest_total",
			Help:      "Total number of ingestion calls by kind and outcome.",
		}, []string{"kind", "status"}),
		geocodeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracker",
			Name:      "geocode_total",
			Help:      "Total number of reverse geocode attempts by result.",
		}, []string{"result"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tracker",
			Name:      "query_duration_seconds",
			Help:      "Latency of dashboard aggregation queries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.ingestTotal, m.geocodeTotal, m.queryDuration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

// RecordIngest counts one ingestion call. A nil receiver records nothing.
func (m *Metrics) RecordIngest(kind, status string) {
	if m == nil {
		return
	}
	m.ingestTotal.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) RecordGeocode(result string) {
	if m == nil {
		return
	}
	m.geocodeTotal.WithLabelValues(result).Inc()
}

// ObserveQuery records the time since start for the named query.
func (m *Metrics) ObserveQuery(query string, start time.Time) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
}
