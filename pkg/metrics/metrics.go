// Package metrics exports injection counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/entrhq/tabscript/pkg/inject"
)

// Outcome labels.
const (
	OutcomeOK         = "ok"
	OutcomeTargetLost = "target_lost"
	OutcomeError      = "error"
)

// Metrics counts host calls made by an injector. It implements inject.Observer.
type Metrics struct {
	// Injections counts host calls by kind, capability and outcome
	Injections *prometheus.CounterVec
	// TargetLostIgnoredTotal counts target losses swallowed by IgnoreTargetErrors
	TargetLostIgnoredTotal *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Injections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tabscript",
				Name:      "injections_total",
				Help:      "Host injection calls by kind, capability and outcome",
			},
			[]string{"kind", "capability", "outcome"},
		),
		TargetLostIgnoredTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tabscript",
				Name:      "target_lost_ignored_total",
				Help:      "Target losses swallowed because target errors were ignored",
			},
			[]string{"kind", "capability"},
		),
	}
}

// Injected records one host call.
func (m *Metrics) Injected(kind inject.Kind, capability inject.Capability, err error) {
	m.Injections.WithLabelValues(string(kind), capability.String(), outcome(err)).Inc()
}

// TargetLostIgnored records one swallowed target loss.
func (m *Metrics) TargetLostIgnored(kind inject.Kind, capability inject.Capability) {
	m.TargetLostIgnoredTotal.WithLabelValues(string(kind), capability.String()).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case inject.IsTargetLost(err):
		return OutcomeTargetLost
	default:
		return OutcomeError
	}
}

var _ inject.Observer = (*Metrics)(nil)
