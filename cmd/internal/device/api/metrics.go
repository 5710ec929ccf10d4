package deviceapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics counts admission outcomes, revocations, and gate denials.
// Label values are the wire-visible outcome/reason codes.
type metrics struct {
	registrations *prometheus.CounterVec
	revocations   prometheus.Counter
	gateDenials   *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "devicegate_register_total",
			Help: "Registration requests by admission outcome.",
		}, []string{"outcome"}),
		revocations: factory.NewCounter(prometheus.CounterOpts{
			Name: "devicegate_revocations_total",
			Help: "Successful force-logout revocations.",
		}),
		gateDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "devicegate_gate_denials_total",
			Help: "Validity-gate denials by reason.",
		}, []string{"reason"}),
	}
}
