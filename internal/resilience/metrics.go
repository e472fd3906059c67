package resilience

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce sync.Once

	// BreakerState exposes the current breaker state per target (0 closed, 0.5 half-open, 1 open).
	BreakerState *prometheus.GaugeVec
	// BreakerTransitions counts breaker state transitions per target.
	BreakerTransitions *prometheus.CounterVec
)

// MustRegisterMetrics initialises breaker collectors. Safe to call more than once.
func MustRegisterMetrics(namespace string, reg prometheus.Registerer) {
	metricsOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Current circuit breaker state per target.",
		}, []string{"target"})
		BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions per target.",
		}, []string{"target", "to"})

		for _, collector := range []prometheus.Collector{BreakerState, BreakerTransitions} {
			if err := reg.Register(collector); err != nil {
				if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
					switch existing := are.ExistingCollector.(type) {
					case *prometheus.GaugeVec:
						BreakerState = existing
					case *prometheus.CounterVec:
						BreakerTransitions = existing
					}
					continue
				}
				panic(fmt.Errorf("register breaker metric: %w", err))
			}
		}
	})
}
