package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector gathers gateway counters. Every method is safe on a nil
// receiver so call sites never have to guard for a disabled collector.
type Collector struct {
	connections       *prometheus.GaugeVec
	visitorRequests   prometheus.Counter
	chatMessages      prometheus.Counter
	chatPersisted     prometheus.Counter
	chatPersistFailed prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "qring_ws_connections",
			Help: "Live websocket connections per channel.",
		}, []string{"channel"}),
		visitorRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qring_visitor_requests_total",
			Help: "Visitor session requests accepted.",
		}),
		chatMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qring_chat_messages_total",
			Help: "Chat messages optimistically broadcast.",
		}),
		chatPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qring_chat_persisted_total",
			Help: "Chat messages durably persisted.",
		}),
		chatPersistFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qring_chat_persist_failed_total",
			Help: "Chat messages dropped after the retry budget.",
		}),
	}
	reg.MustRegister(c.connections, c.visitorRequests, c.chatMessages, c.chatPersisted, c.chatPersistFailed)
	return c
}

func (c *Collector) ConnectionOpened(channel string) {
	if c == nil {
		return
	}
	c.connections.WithLabelValues(channel).Inc()
}

func (c *Collector) ConnectionClosed(channel string) {
	if c == nil {
		return
	}
	c.connections.WithLabelValues(channel).Dec()
}

func (c *Collector) VisitorRequest() {
	if c == nil {
		return
	}
	c.visitorRequests.Inc()
}

func (c *Collector) ChatMessage() {
	if c == nil {
		return
	}
	c.chatMessages.Inc()
}

func (c *Collector) ChatPersisted() {
	if c == nil {
		return
	}
	c.chatPersisted.Inc()
}

func (c *Collector) ChatPersistFailed() {
	if c == nil {
		return
	}
	c.chatPersistFailed.Inc()
}

// Handler serves the registry on /metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
