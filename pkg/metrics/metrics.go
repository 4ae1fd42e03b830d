// Package metrics exposes Prometheus counters for the session engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Counters tracks protocol and pipeline activity. It satisfies the session
// engine's metrics hooks.
type Counters struct {
	inboundEvents  *prometheus.CounterVec
	outboundEvents *prometheus.CounterVec
	admitted       *prometheus.CounterVec
	suppressed     prometheus.Counter
}

// New creates the counters and registers them on reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Counters {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Counters{
		inboundEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "inbound_events_total",
			Help:      "Inbound protocol events by name.",
		}, []string{"event"}),
		outboundEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "outbound_events_total",
			Help:      "Outbound protocol events by name.",
		}, []string{"event"}),
		admitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "messages_admitted_total",
			Help:      "Messages admitted to a window by kind.",
		}, []string{"kind"}),
		suppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "messages_suppressed_total",
			Help:      "Messages suppressed by the ignore rules.",
		}),
	}
	reg.MustRegister(c.inboundEvents, c.outboundEvents, c.admitted, c.suppressed)
	return c
}

func (c *Counters) InboundEvent(name string) {
	c.inboundEvents.WithLabelValues(name).Inc()
}

func (c *Counters) OutboundEvent(name string) {
	c.outboundEvents.WithLabelValues(name).Inc()
}

func (c *Counters) MessageAdmitted(kind string) {
	c.admitted.WithLabelValues(kind).Inc()
}

func (c *Counters) MessageSuppressed() {
	c.suppressed.Inc()
}
