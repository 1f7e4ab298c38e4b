package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors
type Metrics struct {
	registry *prometheus.Registry

	FramesReceived   *prometheus.CounterVec
	AcksSent         prometheus.Counter
	AckSendFailures  prometheus.Counter
	MessagesEnqueued prometheus.Counter
	MessagesHandled  *prometheus.CounterVec
	OutboundSends    *prometheus.CounterVec
	RoutingBatches   *prometheus.CounterVec
	UnitsRouted      *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry
func New(serviceName string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	constLabels := prometheus.Labels{"service": serviceName}

	m := &Metrics{
		registry: registry,
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "hl7_frames_received_total",
			Help:        "MLLP frames decoded from inbound connections.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		AcksSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "hl7_acks_sent_total",
			Help:        "Protocol acknowledgments written back to clients.",
			ConstLabels: constLabels,
		}),
		AckSendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "hl7_ack_send_failures_total",
			Help:        "Acknowledgment writes that failed at the socket level.",
			ConstLabels: constLabels,
		}),
		MessagesEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "hl7_messages_enqueued_total",
			Help:        "Messages handed to the processing queue after ACK.",
			ConstLabels: constLabels,
		}),
		MessagesHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "hl7_messages_handled_total",
			Help:        "Dispatched messages by staining classification.",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		OutboundSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "hl7_outbound_sends_total",
			Help:        "Outbound stainer notifications by order control and result.",
			ConstLabels: constLabels,
		}, []string{"order_control", "result"}),
		RoutingBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "routing_batches_total",
			Help:        "Workflow routing batch calls by lab type and outcome.",
			ConstLabels: constLabels,
		}, []string{"workflow_type", "outcome"}),
		UnitsRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "routing_units_routed_total",
			Help:        "Units advanced to a new workflow step.",
			ConstLabels: constLabels,
		}, []string{"workflow_type"}),
	}

	registry.MustRegister(
		m.FramesReceived,
		m.AcksSent,
		m.AckSendFailures,
		m.MessagesEnqueued,
		m.MessagesHandled,
		m.OutboundSends,
		m.RoutingBatches,
		m.UnitsRouted,
	)

	return m
}

// Handler returns the HTTP handler serving the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
