// Package metrics exposes the signaling hub's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "warpmatch"

// Drop reasons.
const (
	DropNoRecipient   = "no_recipient"
	DropNotPaired     = "not_paired"
	DropSlowConsumer  = "slow_consumer"
	DropEncodeFailure = "encode_failure"
)

// Collector groups every metric the hub records.
type Collector struct {
	registry *prometheus.Registry

	clients       *prometheus.GaugeVec
	matches       prometheus.Counter
	relayed       *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	terminations  *prometheus.CounterVec
	invalid       prometheus.Counter
	evictions     prometheus.Counter
	connectsTotal prometheus.Counter
}

// New creates a Collector on its own registry, with Go runtime and process
// collectors attached.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		clients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clients",
			Help:      "Registered clients by pairing state.",
		}, []string{"state"}),
		matches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Pairs created.",
		}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relayed_messages_total",
			Help:      "Negotiation messages forwarded to a peer.",
		}, []string{"kind"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_messages_total",
			Help:      "Messages that were not delivered.",
		}, []string{"reason"}),
		terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terminations_total",
			Help:      "End-call requests and transport disconnects.",
		}, []string{"intentional"}),
		invalid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_requests_total",
			Help:      "Rejected malformed requests.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slow_client_evictions_total",
			Help:      "Connections dropped because their send buffer was full.",
		}),
		connectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Accepted websocket connections.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.clients, c.matches, c.relayed, c.dropped,
		c.terminations, c.invalid, c.evictions, c.connectsTotal,
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) SetClients(idle, waiting, paired int) {
	c.clients.WithLabelValues("idle").Set(float64(idle))
	c.clients.WithLabelValues("waiting").Set(float64(waiting))
	c.clients.WithLabelValues("paired").Set(float64(paired))
}

func (c *Collector) Connected()      { c.connectsTotal.Inc() }
func (c *Collector) Matched()        { c.matches.Inc() }
func (c *Collector) InvalidRequest() { c.invalid.Inc() }
func (c *Collector) Evicted()        { c.evictions.Inc() }

func (c *Collector) Relayed(kind string) {
	c.relayed.WithLabelValues(kind).Inc()
}

func (c *Collector) Dropped(reason string) {
	c.dropped.WithLabelValues(reason).Inc()
}

func (c *Collector) Terminated(intentional bool) {
	c.terminations.WithLabelValues(strconv.FormatBool(intentional)).Inc()
}
