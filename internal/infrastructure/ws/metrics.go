package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func NewConnectionGauge(reg prometheus.Registerer) prometheus.Gauge {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Name: "tenantwire_ws_connections",
		Help: "Registered websocket connections",
	})
}
