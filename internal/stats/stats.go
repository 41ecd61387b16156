// Package stats records server metrics. The prometheus-backed Recorder is
// registered on the HTTP mux at /metrics; tests use the mock instead.
package stats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Recorder interface {
	SessionOpened()
	SessionClosed()
	CommandDispatched(cmdType string)
	CommandRejected(reason string)
	BroadcastDelivered(n int)
	MessagePersisted()
	MessagePersistFailed()
	OutboxEventProcessed()
	OutboxEventFailed()
}

type PromRecorder struct {
	registry *prometheus.Registry

	activeSessions    prometheus.Gauge
	commandsTotal     *prometheus.CounterVec
	rejectedTotal     *prometheus.CounterVec
	broadcastsTotal   prometheus.Counter
	messagesPersisted prometheus.Counter
	messagesFailed    prometheus.Counter
	outboxProcessed   prometheus.Counter
	outboxFailed      prometheus.Counter
}

func NewPromRecorder(mux *http.ServeMux) *PromRecorder {
	r := &PromRecorder{
		registry: prometheus.NewRegistry(),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "garrison_active_sessions",
			Help: "Number of live client sessions.",
		}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garrison_commands_total",
			Help: "Commands dispatched to the worker pool, by type.",
		}, []string{"type"}),
		rejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garrison_commands_rejected_total",
			Help: "Inbound frames rejected before execution, by reason.",
		}, []string{"reason"}),
		broadcastsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "garrison_broadcast_deliveries_total",
			Help: "Per-session deliveries performed by barrack broadcasts.",
		}),
		messagesPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "garrison_messages_persisted_total",
			Help: "Chat messages written to the message store.",
		}),
		messagesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "garrison_messages_persist_failures_total",
			Help: "Chat message writes that failed.",
		}),
		outboxProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "garrison_outbox_events_processed_total",
			Help: "Outbox events successfully relayed.",
		}),
		outboxFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "garrison_outbox_event_failures_total",
			Help: "Outbox event relay attempts that failed and will retry.",
		}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		r.activeSessions,
		r.commandsTotal,
		r.rejectedTotal,
		r.broadcastsTotal,
		r.messagesPersisted,
		r.messagesFailed,
		r.outboxProcessed,
		r.outboxFailed,
	)

	if mux != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	}

	return r
}

func (r *PromRecorder) SessionOpened() { r.activeSessions.Inc() }
func (r *PromRecorder) SessionClosed() { r.activeSessions.Dec() }

func (r *PromRecorder) CommandDispatched(cmdType string) {
	r.commandsTotal.WithLabelValues(cmdType).Inc()
}
func (r *PromRecorder) CommandRejected(reason string) {
	r.rejectedTotal.WithLabelValues(reason).Inc()
}
func (r *PromRecorder) BroadcastDelivered(n int) {
	r.broadcastsTotal.Add(float64(n))
}

func (r *PromRecorder) MessagePersisted()     { r.messagesPersisted.Inc() }
func (r *PromRecorder) MessagePersistFailed() { r.messagesFailed.Inc() }
func (r *PromRecorder) OutboxEventProcessed() { r.outboxProcessed.Inc() }
func (r *PromRecorder) OutboxEventFailed()    { r.outboxFailed.Inc() }
