package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes counters/histograms for the booking flows. A nil *Metrics is a valid no-op.
type Metrics struct {
	slotQueries   *prometheus.CounterVec
	slotsOffered  prometheus.Histogram
	bookings      *prometheus.CounterVec
	bookLatency   prometheus.Histogram
	cancellations *prometheus.CounterVec
	scheduleCache *prometheus.CounterVec
	events        *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		slotQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agendafacil",
			Subsystem: "booking",
			Name:      "slot_queries_total",
			Help:      "Slot availability queries by result",
		}, []string{"result"}),
		slotsOffered: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "agendafacil",
			Subsystem: "booking",
			Name:      "available_slots",
			Help:      "Number of available slots returned per query",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agendafacil",
			Subsystem: "booking",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		bookLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "agendafacil",
			Subsystem: "booking",
			Name:      "book_latency_seconds",
			Help:      "Latency of the booking write path",
			Buckets:   prometheus.DefBuckets,
		}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agendafacil",
			Subsystem: "booking",
			Name:      "cancellations_total",
			Help:      "Cancellation attempts by outcome",
		}, []string{"outcome"}),
		scheduleCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agendafacil",
			Subsystem: "booking",
			Name:      "schedule_cache_total",
			Help:      "Schedule cache lookups by result",
		}, []string{"result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agendafacil",
			Subsystem: "booking",
			Name:      "consumed_events_total",
			Help:      "Kafka events consumed by type and status",
		}, []string{"event_type", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.slotQueries, m.slotsOffered, m.bookings, m.bookLatency, m.cancellations, m.scheduleCache, m.events)
	return m
}

func (m *Metrics) ObserveSlotQuery(result string, available int) {
	if m == nil {
		return
	}
	m.slotQueries.WithLabelValues(result).Inc()
	if result == "open" {
		m.slotsOffered.Observe(float64(available))
	}
}

func (m *Metrics) ObserveBooking(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
	m.bookLatency.Observe(seconds)
}

func (m *Metrics) ObserveCancellation(outcome string) {
	if m == nil {
		return
	}
	m.cancellations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveScheduleCache(result string) {
	if m == nil {
		return
	}
	m.scheduleCache.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveEvent(eventType, status string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType, status).Inc()
}
