package notify

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Karenfernandes20/integrai-sub001/pkg/telemetry"
)

// broadcasterMetrics tracks fan-out drops and the live subscriber count.
// Instruments are best effort; a nil instrument is skipped.
type broadcasterMetrics struct {
	drops       *telemetry.Counter
	subscribers *telemetry.Gauge
}

func newBroadcasterMetrics() *broadcasterMetrics {
	m := &broadcasterMetrics{}
	m.drops, _ = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "connect.fanout.drops",
		Description: "Status changes dropped for slow subscribers",
		Unit:        "{event}",
	})
	m.subscribers, _ = telemetry.NewGauge(telemetry.MetricOpts{
		Name:        "connect.fanout.subscribers",
		Description: "Live status change subscribers",
		Unit:        "{subscription}",
	})
	return m
}

func (m *broadcasterMetrics) dropped(tenantID string) {
	if m.drops != nil {
		m.drops.Inc(context.Background(), attribute.String("tenant_id", tenantID))
	}
}

func (m *broadcasterMetrics) subscriberCount(n int64) {
	if m.subscribers != nil {
		m.subscribers.Record(context.Background(), n)
	}
}
