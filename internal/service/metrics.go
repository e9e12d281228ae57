package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Karenfernandes20/integrai-sub001/pkg/telemetry"
)

// serviceMetrics counts observation outcomes. Counters are best effort;
// a nil counter is skipped.
type serviceMetrics struct {
	observationsApplied  *telemetry.Counter
	observationsRejected *telemetry.Counter
}

func newServiceMetrics() *serviceMetrics {
	m := &serviceMetrics{}
	m.observationsApplied, _ = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "connect.observations.applied",
		Description: "Status observations applied to stored state",
		Unit:        "{observation}",
	})
	m.observationsRejected, _ = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "connect.observations.rejected",
		Description: "Status observations dropped without a state change",
		Unit:        "{observation}",
	})
	return m
}

func (m *serviceMetrics) applied(ctx context.Context, source string) {
	if m.observationsApplied != nil {
		m.observationsApplied.Inc(ctx, attribute.String("source", source))
	}
}

func (m *serviceMetrics) rejected(ctx context.Context, source, reason string) {
	if m.observationsRejected != nil {
		m.observationsRejected.Inc(ctx,
			attribute.String("source", source),
			attribute.String("reason", reason),
		)
	}
}
