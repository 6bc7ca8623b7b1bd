package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vovakirdan/meetpoint-server/internal/core"
)

const namespace = "meetpoint"

// Collector exposes room activity as Prometheus metrics. It implements
// core.Observer; every hook only touches in-memory counters.
type Collector struct {
	registry *prometheus.Registry

	roomsActive         prometheus.Gauge
	sessionsActive      prometheus.Gauge
	roomsCreated        prometheus.Counter
	roomsRemoved        *prometheus.CounterVec
	participantJoins    *prometheus.CounterVec
	participantLeaves   prometheus.Counter
	locationUpdates     *prometheus.CounterVec
	presenceTransitions *prometheus.CounterVec
	fanoutDropped       prometheus.Counter
}

var _ core.Observer = (*Collector)(nil)

// New registers the collector's metrics on a private registry together with
// the Go runtime and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		roomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Number of live rooms.",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of attached push sessions.",
		}),
		roomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_created_total",
			Help:      "Rooms created.",
		}),
		roomsRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_removed_total",
			Help:      "Rooms removed, by reason.",
		}, []string{"reason"}),
		participantJoins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "participant_joins_total",
			Help:      "Participant joins, new or returning.",
		}, []string{"kind"}),
		participantLeaves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "participant_leaves_total",
			Help:      "Explicit participant leaves.",
		}),
		locationUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_updates_total",
			Help:      "Location updates, by result.",
		}, []string{"result"}),
		presenceTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_transitions_total",
			Help:      "Presence transitions, by new state.",
		}, []string{"state"}),
		fanoutDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_dropped_total",
			Help:      "Events discarded from full session queues.",
		}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.roomsActive,
		c.sessionsActive,
		c.roomsCreated,
		c.roomsRemoved,
		c.participantJoins,
		c.participantLeaves,
		c.locationUpdates,
		c.presenceTransitions,
		c.fanoutDropped,
	)
	return c
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) RoomCreated(string, string) {
	c.roomsActive.Inc()
	c.roomsCreated.Inc()
}

func (c *Collector) RoomRemoved(_, reason string) {
	c.roomsActive.Dec()
	c.roomsRemoved.WithLabelValues(reason).Inc()
}

func (c *Collector) ParticipantJoined(_, _ string, rejoin bool) {
	kind := "new"
	if rejoin {
		kind = "rejoin"
	}
	c.participantJoins.WithLabelValues(kind).Inc()
}

func (c *Collector) ParticipantLeft(string, string) {
	c.participantLeaves.Inc()
}

func (c *Collector) PresenceChanged(_, _ string, online bool) {
	c.presenceTransitions.WithLabelValues(presenceState(online)).Inc()
}

func (c *Collector) LocationUpdated(_, result string) {
	c.locationUpdates.WithLabelValues(result).Inc()
}

func (c *Collector) SessionOpened(string) {
	c.sessionsActive.Inc()
}

func (c *Collector) SessionClosed(string) {
	c.sessionsActive.Dec()
}

func (c *Collector) EventDropped(string) {
	c.fanoutDropped.Inc()
}

func presenceState(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}
