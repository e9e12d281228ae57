package notify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Karenfernandes20/integrai-sub001/internal/domain"
	"github.com/Karenfernandes20/integrai-sub001/pkg/logger"
)

// statusChannel is the Redis pub/sub channel carrying status changes
// between service nodes
const statusChannel = "channel-connect:status-changes"

type bridgeEnvelope struct {
	NodeID string              `json:"node_id"`
	Change domain.StatusChange `json:"change"`
}

// RedisBridge replicates status changes across service nodes through Redis
// pub/sub, so a subscriber connected to one node sees changes applied on
// another. Changes published by this node are skipped on receipt.
type RedisBridge struct {
	client      *goredis.Client
	broadcaster *Broadcaster
	nodeID      string
	log         *logger.Logger
}

// NewRedisBridge creates a bridge between the local broadcaster and Redis
func NewRedisBridge(client *goredis.Client, broadcaster *Broadcaster, log *logger.Logger) *RedisBridge {
	if log == nil {
		log = logger.Get()
	}
	return &RedisBridge{
		client:      client,
		broadcaster: broadcaster,
		nodeID:      uuid.New().String(),
		log:         log,
	}
}

// Publish sends a locally applied change to the other nodes
func (b *RedisBridge) Publish(ctx context.Context, change domain.StatusChange) error {
	payload, err := json.Marshal(bridgeEnvelope{NodeID: b.nodeID, Change: change})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, statusChannel, payload).Err()
}

// Run subscribes to the cross-node channel and re-injects remote changes
// into the local broadcaster. Blocks until the context is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, statusChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	b.log.Info("redis status bridge started", zap.String("node_id", b.nodeID))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env bridgeEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Warn("failed to decode bridged status change", zap.Error(err))
				continue
			}
			if env.NodeID == b.nodeID {
				continue
			}
			b.broadcaster.Publish(env.Change)
		}
	}
}
