// Package notify fans out instance status changes to live subscribers.
package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Karenfernandes20/integrai-sub001/internal/domain"
	"github.com/Karenfernandes20/integrai-sub001/pkg/logger"
)

// subscriberBufferSize is the channel buffer for each subscriber. A
// subscriber that falls this far behind starts losing events.
const subscriberBufferSize = 64

// Broadcaster provides in-process pub/sub for status changes, keyed by
// tenant. Every subscriber of a tenant receives every change applied to
// that tenant's instances.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan domain.StatusChange // tenantID -> subID -> ch
	log         *logger.Logger
	metrics     *broadcasterMetrics
}

// NewBroadcaster creates a broadcaster
func NewBroadcaster(log *logger.Logger) *Broadcaster {
	if log == nil {
		log = logger.Get()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan domain.StatusChange),
		log:         log,
		metrics:     newBroadcasterMetrics(),
	}
}

// Subscribe registers a subscriber for a tenant's status changes. The
// returned channel receives changes until the context is cancelled or
// Unsubscribe is called with the returned subscription ID.
func (b *Broadcaster) Subscribe(ctx context.Context, tenantID string) (<-chan domain.StatusChange, string) {
	subID := uuid.New().String()
	ch := make(chan domain.StatusChange, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[tenantID]; !ok {
		b.subscribers[tenantID] = make(map[string]chan domain.StatusChange)
	}
	b.subscribers[tenantID][subID] = ch
	total := b.totalSubscribersLocked()
	b.mu.Unlock()
	b.metrics.subscriberCount(total)

	b.log.Debug("subscriber added",
		zap.String("tenant_id", tenantID),
		zap.String("sub_id", subID),
	)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(tenantID, subID)
	}()

	return ch, subID
}

// Publish delivers a change to every subscriber of the tenant.
// Non-blocking: the change is dropped for subscribers whose buffers are full.
// Sends happen under the read lock so Unsubscribe and Close cannot close a
// channel mid-send; the sends never block, so holding the lock is safe.
func (b *Broadcaster) Publish(change domain.StatusChange) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs, ok := b.subscribers[change.TenantID]
	if !ok || len(subs) == 0 {
		return
	}
	for _, ch := range subs {
		select {
		case ch <- change:
		default:
			b.metrics.dropped(change.TenantID)
			b.log.Warn("dropped status change for slow subscriber",
				zap.String("tenant_id", change.TenantID),
				zap.String("instance_key", change.InstanceKey),
			)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel
func (b *Broadcaster) Unsubscribe(tenantID, subID string) {
	b.mu.Lock()

	subs, ok := b.subscribers[tenantID]
	if !ok {
		b.mu.Unlock()
		return
	}
	ch, exists := subs[subID]
	if !exists {
		b.mu.Unlock()
		return
	}

	delete(subs, subID)
	close(ch)
	if len(subs) == 0 {
		delete(b.subscribers, tenantID)
	}
	total := b.totalSubscribersLocked()
	b.mu.Unlock()
	b.metrics.subscriberCount(total)
}

// WatcherCount reports how many subscribers a tenant currently has.
// The status poller uses this to decide which tenants are worth polling.
func (b *Broadcaster) WatcherCount(tenantID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[tenantID])
}

// WatchedTenants returns the tenants that have at least one subscriber
func (b *Broadcaster) WatchedTenants() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	tenants := make([]string, 0, len(b.subscribers))
	for tenantID, subs := range b.subscribers {
		if len(subs) > 0 {
			tenants = append(tenants, tenantID)
		}
	}
	return tenants
}

// Close shuts down the broadcaster and closes all subscriber channels
func (b *Broadcaster) Close() {
	b.mu.Lock()

	for tenantID, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, tenantID)
	}
	b.mu.Unlock()
	b.metrics.subscriberCount(0)
}

func (b *Broadcaster) totalSubscribersLocked() int64 {
	var total int64
	for _, subs := range b.subscribers {
		total += int64(len(subs))
	}
	return total
}
