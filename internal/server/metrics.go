package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "gamechat"

// hubMetrics groups the collectors the hub updates. Each hub owns its own
// registry so tests can build hubs side by side.
type hubMetrics struct {
	registry *prometheus.Registry

	connections    prometheus.Gauge
	participants   prometheus.Gauge
	activeGames    prometheus.Gauge
	pendingInvites prometheus.Gauge
	chatMessages   prometheus.Counter
	moves          prometheus.Counter
	blockedOrigins prometheus.Counter
	droppedClients prometheus.Counter
	invites        *prometheus.CounterVec
	rejected       *prometheus.CounterVec
}

func newHubMetrics() *hubMetrics {
	m := &hubMetrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connections",
			Help:      "Open WebSocket connections.",
		}),
		participants: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "participants",
			Help:      "Connections that have joined.",
		}),
		activeGames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_games",
			Help:      "Game instances still being played.",
		}),
		pendingInvites: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pending_invites",
			Help:      "Invites awaiting an answer.",
		}),
		chatMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "chat_messages_total",
			Help:      "User chat messages broadcast.",
		}),
		moves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "game_moves_total",
			Help:      "Accepted game moves.",
		}),
		blockedOrigins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "blocked_origins_total",
			Help:      "WebSocket upgrades refused by the origin check.",
		}),
		droppedClients: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dropped_clients_total",
			Help:      "Clients removed because their send buffer was full.",
		}),
		invites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "invites_total",
			Help:      "Invites by outcome.",
		}, []string{"outcome"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rejected_intents_total",
			Help:      "Intents answered with intent.rejected, by error code.",
		}, []string{"code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connections,
		m.participants,
		m.activeGames,
		m.pendingInvites,
		m.chatMessages,
		m.moves,
		m.blockedOrigins,
		m.droppedClients,
		m.invites,
		m.rejected,
	)
	return m
}

func (m *hubMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
