package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics exposes counters for the reconciliation and dispatch flows.
type EngineMetrics struct {
	eventsTotal       *prometheus.CounterVec
	dispatchTotal     *prometheus.CounterVec
	reminderJobsTotal *prometheus.CounterVec
	reconnectsTotal   prometheus.Counter
	droppedTotal      prometheus.Counter
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "remindly",
			Subsystem: "reconcile",
			Name:      "events_total",
			Help:      "Payment events by source and apply outcome",
		}, []string{"source", "outcome"}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "remindly",
			Subsystem: "dispatch",
			Name:      "messages_total",
			Help:      "Outbound reminder dispatch attempts by result",
		}, []string{"result"}),
		reminderJobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "remindly",
			Subsystem: "scheduler",
			Name:      "reminder_jobs_total",
			Help:      "Reminder job lifecycle actions",
		}, []string{"action"}),
		reconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "remindly",
			Subsystem: "livefeed",
			Name:      "reconnects_total",
			Help:      "Live channel reconnect attempts",
		}),
		droppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "remindly",
			Subsystem: "livefeed",
			Name:      "dropped_messages_total",
			Help:      "Live channel messages dropped under backpressure",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.eventsTotal, m.dispatchTotal, m.reminderJobsTotal, m.reconnectsTotal, m.droppedTotal)
	return m
}

func (m *EngineMetrics) ObserveEvent(source, outcome string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(source, outcome).Inc()
}

func (m *EngineMetrics) ObserveDispatch(result string) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(result).Inc()
}

func (m *EngineMetrics) ObserveReminderJob(action string) {
	if m == nil {
		return
	}
	m.reminderJobsTotal.WithLabelValues(action).Inc()
}

func (m *EngineMetrics) ObserveReconnect() {
	if m == nil {
		return
	}
	m.reconnectsTotal.Inc()
}

func (m *EngineMetrics) ObserveDroppedMessage() {
	if m == nil {
		return
	}
	m.droppedTotal.Inc()
}
