// Package ingest consumes relayed gateway events from Kafka.
//
// Deployments that cannot expose the webhook endpoint to the gateway run a
// thin relay that forwards gateway callbacks into a Kafka topic; this
// consumer turns those records back into observations.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/Karenfernandes20/integrai-sub001/internal/domain"
	"github.com/Karenfernandes20/integrai-sub001/internal/service"
	"github.com/Karenfernandes20/integrai-sub001/pkg/logger"
)

// RelayEvent is the record shape the webhook relay produces
type RelayEvent struct {
	InstanceKey      string `json:"instance_key"`
	State            string `json:"state"`
	RemoteIdentifier string `json:"remote_identifier,omitempty"`
	OccurredAt       string `json:"occurred_at,omitempty"`
}

// ConsumerConfig holds relay consumer configuration
type ConsumerConfig struct {
	Brokers       []string
	ConsumerGroup string
	ClientID      string
	Topic         string
}

// RelayConsumer consumes relayed gateway events and applies them as
// push observations
type RelayConsumer struct {
	client *kgo.Client
	svc    service.ConnectionService
	log    *logger.Logger
}

// NewRelayConsumer creates a consumer joined to the relay topic's group
func NewRelayConsumer(cfg ConsumerConfig, svc service.ConnectionService, log *logger.Logger) (*RelayConsumer, error) {
	if log == nil {
		log = logger.Get()
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.ConsumerGroup),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ClientID(cfg.ClientID),
		kgo.SessionTimeout(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return &RelayConsumer{client: client, svc: svc, log: log}, nil
}

// Run polls the relay topic until the context is cancelled
func (c *RelayConsumer) Run(ctx context.Context) error {
	c.log.Info("relay consumer started")
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.log.WarnContext(ctx, "kafka fetch error",
				zap.String("topic", topic),
				zap.Int32("partition", partition),
				zap.Error(err),
			)
		})
		fetches.EachRecord(func(record *kgo.Record) {
			c.handleRecord(ctx, record)
		})
	}
}

// Close shuts down the Kafka client
func (c *RelayConsumer) Close() {
	c.client.Close()
}

func (c *RelayConsumer) handleRecord(ctx context.Context, record *kgo.Record) {
	obs, err := DecodeRelayEvent(record.Value)
	if err != nil {
		// Bad records are logged and skipped, never retried
		c.log.WarnContext(ctx, "undecodable relay event",
			zap.String("topic", record.Topic),
			zap.Int64("offset", record.Offset),
			zap.Error(err),
		)
		return
	}
	if _, err := c.svc.ApplyObservation(ctx, obs); err != nil {
		c.log.WarnContext(ctx, "failed to apply relayed observation",
			zap.String("instance_key", obs.InstanceKey),
			zap.Error(err),
		)
	}
}

// DecodeRelayEvent turns a relay record payload into a push observation
func DecodeRelayEvent(payload []byte) (domain.Observation, error) {
	var ev RelayEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return domain.Observation{}, fmt.Errorf("invalid relay payload: %w", err)
	}
	if ev.InstanceKey == "" {
		return domain.Observation{}, fmt.Errorf("relay payload missing instance_key")
	}
	status := domain.InstanceStatus(ev.State)
	if !status.IsValid() {
		// Unrecognized states flow through as unknown and are dropped by
		// the reconciler
		status = domain.StatusUnknown
	}
	return domain.NewObservation(ev.InstanceKey, status, ev.RemoteIdentifier, domain.SourcePush), nil
}
