package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	ChecksTotal      *prometheus.CounterVec
	CheckDuration    *prometheus.HistogramVec
	EventsTotal      *prometheus.CounterVec
	SenderWorker     *prometheus.GaugeVec
	SenderInFlight   *prometheus.GaugeVec
	DispatchInFlight *prometheus.GaugeVec
	DispatchTotal    *prometheus.CounterVec
	SchedulerDue     prometheus.Gauge
	SchedulerClaimed *prometheus.CounterVec
	ApiTotal         *prometheus.CounterVec
	ApiInFlight      *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		ChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_checks_total",
			Help: "total number of completed resource checks",
		}, []string{"outcome"}),
		CheckDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "monitor_check_duration_seconds",
			Help:    "duration of resource checks",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_events_total",
			Help: "total number of published events",
		}, []string{"type", "status"}),
		SenderWorker: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sender_worker_count",
			Help: "number of sender plugin workers",
		}, []string{"plugin"}),
		SenderInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sender_worker_in_flight_messages",
			Help: "number of in flight messages per sender plugin worker",
		}, []string{"plugin", "worker"}),
		DispatchInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dispatch_in_flight",
			Help: "number of in flight work items per dispatch partition",
		}, []string{"partition"}),
		DispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_total",
			Help: "total number of dispatched work items",
		}, []string{"kind", "status"}),
		SchedulerDue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scheduler_due_monitors",
			Help: "number of due monitors read by the last scheduler tick",
		}),
		SchedulerClaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_claims_total",
			Help: "total number of monitor claims attempted by the scheduler",
		}, []string{"status"}),
		ApiTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_total_requests",
			Help: "total number of api requests",
		}, []string{"method", "path", "status"}),
		ApiInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "api_in_flight_requests",
			Help: "number of in flight api requests",
		}, []string{"method", "path"}),
	}

	metrics.Enable(reg)
	return metrics
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ChecksTotal,
		m.CheckDuration,
		m.EventsTotal,
		m.SenderWorker,
		m.SenderInFlight,
		m.DispatchInFlight,
		m.DispatchTotal,
		m.SchedulerDue,
		m.SchedulerClaimed,
		m.ApiTotal,
		m.ApiInFlight,
	}
}

func (m *Metrics) Enable(reg prometheus.Registerer) {
	for _, c := range m.collectors() {
		reg.MustRegister(c)
	}
}

func (m *Metrics) Disable(reg prometheus.Registerer) {
	for _, c := range m.collectors() {
		reg.Unregister(c)
	}
}
