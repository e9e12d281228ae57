package worker

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Karenfernandes20/integrai-sub001/pkg/telemetry"
)

// pollerMetrics counts unreachable polls. Best effort; a nil counter is
// skipped.
type pollerMetrics struct {
	pollFailures *telemetry.Counter
}

func newPollerMetrics() *pollerMetrics {
	m := &pollerMetrics{}
	m.pollFailures, _ = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "connect.poll.failures",
		Description: "Gateway status polls that failed",
		Unit:        "{poll}",
	})
	return m
}

func (m *pollerMetrics) failure(ctx context.Context, instanceKey string) {
	if m.pollFailures != nil {
		m.pollFailures.Inc(ctx, attribute.String("instance_key", instanceKey))
	}
}
