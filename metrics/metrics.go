package metrics

import (
	"strconv"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "circle_integration"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the Prometheus collectors of the integration.
type Metrics struct {
	Transfers         *prometheus.CounterVec
	Redemptions       *prometheus.CounterVec
	GovernanceActions *prometheus.CounterVec
	PublishedMessages *prometheus.CounterVec

	RegisteredEndpoints prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// NewMetrics creates and registers the collectors (singleton pattern)
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			Transfers: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Subsystem: "engine",
					Name:      "transfers_total",
					Help:      "Outbound transfers by target chain and outcome",
				},
				[]string{"target_chain", "outcome", "code"},
			),
			Redemptions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Subsystem: "engine",
					Name:      "redemptions_total",
					Help:      "Inbound redemptions by outcome",
				},
				[]string{"outcome", "code"},
			),
			GovernanceActions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Subsystem: "governance",
					Name:      "actions_total",
					Help:      "Governance actions by action type and outcome",
				},
				[]string{"action", "outcome", "code"},
			),
			PublishedMessages: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Subsystem: "devnet",
					Name:      "published_messages_total",
					Help:      "Messages published on the devnet message network by emitter chain",
				},
				[]string{"emitter_chain"},
			),
			RegisteredEndpoints: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Subsystem: "governance",
					Name:      "registered_endpoints",
					Help:      "Remote endpoints registered on this chain",
				},
			),
		}
	})
	return metrics
}

// Outcome returns the outcome and code labels for err. Unregistered errors get code 1.
func Outcome(err error) (string, string) {
	if err == nil {
		return OutcomeSuccess, "0"
	}
	_, code, _ := errorsmod.ABCIInfo(err, false)
	return OutcomeFailure, strconv.FormatUint(uint64(code), 10)
}
