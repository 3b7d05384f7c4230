package infra

import (
	"context"

	"github.com/harishghasolia07/Designsight/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PromStatsStore exporta decisões como contadores Prometheus.
//
// Labels propositalmente de cardinalidade baixa: resultado e nome da policy.
// Key nunca vira label (identidades são ilimitadas).
type PromStatsStore struct {
	decisions *prometheus.CounterVec
}

func NewPromStatsStore(reg prometheus.Registerer) (*PromStatsStore, error) {
	s := &PromStatsStore{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "designsight",
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Decisões do rate limit por resultado e policy violada.",
		}, []string{"result", "policy"}),
	}
	if err := reg.Register(s.decisions); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PromStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	if ev.Allowed {
		s.decisions.WithLabelValues("allowed", "").Inc()
		return nil
	}
	s.decisions.WithLabelValues("denied", ev.PolicyName).Inc()
	return nil
}
