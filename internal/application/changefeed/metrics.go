package changefeed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK      = "ok"
	resultFailed  = "failed"
	resultSkipped = "skipped"
)

// Metrics holds the prometheus collectors of the change feed.
type Metrics struct {
	AuditRecords    *prometheus.CounterVec
	Broadcasts      *prometheus.CounterVec
	LookupFallbacks prometheus.Counter
	DispatchDropped prometheus.Counter
}

// NewMetrics registers the collectors on reg. A nil reg uses the default
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		AuditRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantwire_audit_records_total",
			Help: "Audit record writes by result",
		}, []string{"result"}),
		Broadcasts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantwire_broadcasts_total",
			Help: "Change broadcasts by result",
		}, []string{"result"}),
		LookupFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "tenantwire_lookup_fallbacks_total",
			Help: "Tenant lookups that fell back to the actor id",
		}),
		DispatchDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "tenantwire_dispatch_dropped_total",
			Help: "Changes dropped because the dispatch queue was full",
		}),
	}
}

func (m *Metrics) observeAudit(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.AuditRecords.WithLabelValues(resultFailed).Inc()
		return
	}
	m.AuditRecords.WithLabelValues(resultOK).Inc()
}

func (m *Metrics) observeBroadcast(result string) {
	if m == nil {
		return
	}
	m.Broadcasts.WithLabelValues(result).Inc()
}

func (m *Metrics) incLookupFallback() {
	if m == nil {
		return
	}
	m.LookupFallbacks.Inc()
}

func (m *Metrics) incDispatchDropped() {
	if m == nil {
		return
	}
	m.DispatchDropped.Inc()
}
