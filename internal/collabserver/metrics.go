package collabserver

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics live on a registry per server so several servers (and tests) can
// coexist in one process.
type metrics struct {
	registry *prometheus.Registry

	connections      prometheus.Gauge
	participants     prometheus.Gauge
	rosterBroadcasts prometheus.Counter
	editRelays       prometheus.Counter
	dropped          prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "codebridge_collab_connections",
			Help: "Number of open websocket connections",
		}),
		participants: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "codebridge_collab_participants",
			Help: "Number of announced participants in the roster",
		}),
		rosterBroadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codebridge_collab_roster_broadcasts_total",
			Help: "Roster messages broadcast after roster changes",
		}),
		editRelays: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codebridge_collab_edit_relays_total",
			Help: "Edit changes relayed to other connections",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codebridge_collab_dropped_connections_total",
			Help: "Connections dropped because their send queue was full",
		}),
	}

	m.registry.MustRegister(
		m.connections,
		m.participants,
		m.rosterBroadcasts,
		m.editRelays,
		m.dropped,
	)
	return m
}
