package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/autopeer-io/fleetpeer/pkg/mqtt"
)

var (
	// BrokerConnectionState reports the MQTT connection lifecycle per client
	// (0=disconnected, 1=connecting, 2=connected, 3=consuming).
	BrokerConnectionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetpeer_broker_connection_state",
			Help: "MQTT connection state (0=disconnected, 1=connecting, 2=connected, 3=consuming).",
		},
		[]string{"client"},
	)

	// MessagesRoutedTotal counts inbound vehicle messages by kind and outcome.
	MessagesRoutedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetpeer_messages_routed_total",
			Help: "Total number of inbound vehicle messages processed by the topic router.",
		},
		[]string{"kind", "outcome"}, // outcome: handled/failed/unroutable
	)

	// HandlerLatency records how long a kind handler took.
	HandlerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetpeer_handler_latency_seconds",
			Help:    "Latency of topic router handlers.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// CommandSentTotal counts commands published to vehicles.
	CommandSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetpeer_command_sent_total",
			Help: "Total number of commands published to vehicles.",
		},
		[]string{"command", "status"}, // status: success/failed
	)

	// MissionTransitionsTotal counts mission lifecycle transitions.
	MissionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetpeer_mission_transitions_total",
			Help: "Total number of mission state transitions.",
		},
		[]string{"event"},
	)

	// AgentRunsTotal counts route executions on the vehicle side.
	AgentRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetpeer_agent_runs_total",
			Help: "Total number of mission runs attempted by the vehicle agent.",
		},
		[]string{"outcome"}, // outcome: completed/failed/locked/no_route/abandoned
	)

	// FanoutClients is the number of connected dashboard sockets.
	FanoutClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetpeer_fanout_clients",
			Help: "Number of live notification clients connected.",
		},
	)
)

func init() {
	prometheus.MustRegister(BrokerConnectionState)
	prometheus.MustRegister(MessagesRoutedTotal)
	prometheus.MustRegister(HandlerLatency)
	prometheus.MustRegister(CommandSentTotal)
	prometheus.MustRegister(MissionTransitionsTotal)
	prometheus.MustRegister(AgentRunsTotal)
	prometheus.MustRegister(FanoutClients)
}

// ObserveConnection returns an OnStateChange hook that mirrors a client's state.
func ObserveConnection(client string) func(mqtt.ConnectionState) {
	return func(state mqtt.ConnectionState) {
		BrokerConnectionState.WithLabelValues(client).Set(float64(state))
	}
}
