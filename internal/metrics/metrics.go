// Package metrics exposes the chat subsystem's prometheus collectors. All
// methods are safe on a nil *Collector so services can run without metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "workforce_chat"

type Collector struct {
	messagesSent      *prometheus.CounterVec
	messageErrors     *prometheus.CounterVec
	deliveriesDropped prometheus.Counter
	onlineUsers       prometheus.Gauge
	connections       prometheus.Gauge
	teamSyncs         *prometheus.CounterVec
	groupsCreated     prometheus.Counter
	groupConflicts    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages persisted, by conversation kind.",
		}, []string{"kind"}),
		messageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "message_errors_total",
			Help:      "Rejected or failed message submissions, by reason.",
		}, []string{"reason"}),
		deliveriesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_dropped_total",
			Help:      "Realtime events dropped because a connection's send buffer was full.",
		}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
			Help:      "Users with at least one joined connection on this process.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Open websocket connections on this process.",
		}),
		teamSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "team_syncs_total",
			Help:      "Team conversation synchronizations, by result.",
		}, []string{"result"}),
		groupsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "groups_created_total",
			Help:      "Manual group conversations created.",
		}),
		groupConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "group_conflicts_total",
			Help:      "Group creations rejected as conflicts, by conflict type.",
		}, []string{"type"}),
	}
	if reg != nil {
		reg.MustRegister(
			c.messagesSent,
			c.messageErrors,
			c.deliveriesDropped,
			c.onlineUsers,
			c.connections,
			c.teamSyncs,
			c.groupsCreated,
			c.groupConflicts,
		)
	}
	return c
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (c *Collector) MessageSent(kind string) {
	if c == nil {
		return
	}
	c.messagesSent.WithLabelValues(kind).Inc()
}

func (c *Collector) MessageFailed(reason string) {
	if c == nil {
		return
	}
	c.messageErrors.WithLabelValues(reason).Inc()
}

func (c *Collector) DeliveryDropped() {
	if c == nil {
		return
	}
	c.deliveriesDropped.Inc()
}

func (c *Collector) SetOnlineUsers(n int) {
	if c == nil {
		return
	}
	c.onlineUsers.Set(float64(n))
}

func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connections.Inc()
}

func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connections.Dec()
}

func (c *Collector) TeamSynced(result string) {
	if c == nil {
		return
	}
	c.teamSyncs.WithLabelValues(result).Inc()
}

func (c *Collector) GroupCreated() {
	if c == nil {
		return
	}
	c.groupsCreated.Inc()
}

func (c *Collector) GroupConflict(conflictType string) {
	if c == nil {
		return
	}
	c.groupConflicts.WithLabelValues(conflictType).Inc()
}
