// Package worker runs the background status poller.
package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Karenfernandes20/integrai-sub001/internal/domain"
	"github.com/Karenfernandes20/integrai-sub001/internal/gateway"
	"github.com/Karenfernandes20/integrai-sub001/internal/notify"
	"github.com/Karenfernandes20/integrai-sub001/internal/service"
	"github.com/Karenfernandes20/integrai-sub001/pkg/logger"
)

// StatusPollerConfig holds status poller configuration
type StatusPollerConfig struct {
	// PollInterval is how often watched tenants are polled
	PollInterval time.Duration
	// FailureGrace is how many consecutive unreachable polls a connected
	// instance tolerates before it is marked as errored
	FailureGrace int
}

// DefaultStatusPollerConfig returns the default poller configuration
func DefaultStatusPollerConfig() *StatusPollerConfig {
	return &StatusPollerConfig{
		PollInterval: 3 * time.Second,
		FailureGrace: 3,
	}
}

// StatusPollerStats is a snapshot of poller activity
type StatusPollerStats struct {
	IsRunning       bool      `json:"is_running"`
	TotalPolls      int64     `json:"total_polls"`
	TotalApplied    int64     `json:"total_applied"`
	LastPollTime    time.Time `json:"last_poll_time"`
	LastPolledCount int       `json:"last_polled_count"`
	WatchedTenants  int       `json:"watched_tenants"`
}

// StatusPoller periodically asks the gateway for the status of every
// configured instance belonging to a watched tenant. A tenant is watched
// while it has at least one live subscriber; nobody polls on behalf of
// tenants nobody is looking at.
type StatusPoller struct {
	svc         service.ConnectionService
	gw          gateway.PairingGateway
	broadcaster *notify.Broadcaster
	config      *StatusPollerConfig
	log         *logger.Logger
	metrics     *pollerMetrics

	mu           sync.Mutex
	running      bool
	stopCh       chan struct{}
	doneCh       chan struct{}
	failures     map[string]int // instance key -> consecutive unreachable polls
	totalPolls   int64
	totalApplied int64
	lastPollTime time.Time
	lastPolled   int
}

// NewStatusPoller creates a new status poller
func NewStatusPoller(svc service.ConnectionService, gw gateway.PairingGateway, broadcaster *notify.Broadcaster, config *StatusPollerConfig, log *logger.Logger) *StatusPoller {
	if config == nil {
		config = DefaultStatusPollerConfig()
	}
	if log == nil {
		log = logger.Get()
	}
	return &StatusPoller{
		svc:         svc,
		gw:          gw,
		broadcaster: broadcaster,
		config:      config,
		log:         log,
		metrics:     newPollerMetrics(),
		failures:    make(map[string]int),
	}
}

// Start launches the poll loop. It returns immediately; polling stops when
// the context is cancelled or Stop is called.
func (p *StatusPoller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	p.log.Info("status poller started",
		zap.Duration("interval", p.config.PollInterval),
		zap.Int("failure_grace", p.config.FailureGrace),
	)

	go p.run(ctx)
}

// Stop halts the poll loop and waits for the current sweep to finish
func (p *StatusPoller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	done := p.doneCh
	p.mu.Unlock()

	<-done
	p.log.Info("status poller stopped")
}

// GetStats returns a snapshot of poller activity
func (p *StatusPoller) GetStats() *StatusPollerStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &StatusPollerStats{
		IsRunning:       p.running,
		TotalPolls:      p.totalPolls,
		TotalApplied:    p.totalApplied,
		LastPollTime:    p.lastPollTime,
		LastPolledCount: p.lastPolled,
		WatchedTenants:  len(p.broadcaster.WatchedTenants()),
	}
}

func (p *StatusPoller) run(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Sweep polls every configured instance of every watched tenant once
func (p *StatusPoller) Sweep(ctx context.Context) {
	tenants := p.broadcaster.WatchedTenants()
	polled := 0
	seen := make(map[string]struct{})

	for _, tenantID := range tenants {
		instances, err := p.svc.ListConfigured(ctx, tenantID)
		if err != nil {
			p.log.WarnContext(ctx, "failed to list instances for poll",
				zap.String("tenant_id", tenantID),
				zap.Error(err),
			)
			continue
		}
		if len(instances) == 0 {
			continue
		}

		ep, err := p.svc.TenantEndpoint(ctx, tenantID)
		if err != nil {
			p.log.WarnContext(ctx, "failed to resolve gateway endpoint",
				zap.String("tenant_id", tenantID),
				zap.Error(err),
			)
			continue
		}

		for _, inst := range instances {
			seen[inst.InstanceKey] = struct{}{}
			// A pairing call owns the instance's status while it runs
			if p.svc.PairingInFlight(inst.InstanceKey) {
				continue
			}
			p.pollInstance(ctx, ep, inst)
			polled++
		}
	}

	p.mu.Lock()
	// Failure counts for instances that left the sweep scope (deleted, or
	// their tenant lost its last subscriber) are stale; drop them
	for key := range p.failures {
		if _, ok := seen[key]; !ok {
			delete(p.failures, key)
		}
	}
	p.totalPolls++
	p.lastPollTime = time.Now()
	p.lastPolled = polled
	p.mu.Unlock()
}

func (p *StatusPoller) pollInstance(ctx context.Context, ep gateway.Endpoint, inst *domain.ChannelInstance) {
	rs, err := p.gw.FetchStatus(ctx, ep, inst.InstanceKey)
	if err != nil {
		p.noteFailure(ctx, inst)
		return
	}

	p.mu.Lock()
	delete(p.failures, inst.InstanceKey)
	p.mu.Unlock()

	if rs.Status == domain.StatusUnknown {
		return
	}

	changed, err := p.svc.ApplyObservation(ctx, domain.NewObservation(inst.InstanceKey, rs.Status, rs.RemoteIdentifier, domain.SourcePoll))
	if err != nil {
		p.log.WarnContext(ctx, "failed to apply poll observation",
			zap.String("instance_key", inst.InstanceKey),
			zap.Error(err),
		)
		return
	}
	if changed {
		p.mu.Lock()
		p.totalApplied++
		p.mu.Unlock()
	}
}

// noteFailure tracks consecutive unreachable polls. A connected instance
// that stays unreachable past the grace window is marked as errored, once.
func (p *StatusPoller) noteFailure(ctx context.Context, inst *domain.ChannelInstance) {
	p.metrics.failure(ctx, inst.InstanceKey)

	p.mu.Lock()
	p.failures[inst.InstanceKey]++
	count := p.failures[inst.InstanceKey]
	p.mu.Unlock()

	if count < p.config.FailureGrace {
		return
	}
	if inst.Status != domain.StatusConnected {
		return
	}

	p.log.WarnContext(ctx, "instance unreachable past grace window",
		zap.String("instance_key", inst.InstanceKey),
		zap.Int("consecutive_failures", count),
	)
	changed, err := p.svc.ApplyObservation(ctx, domain.NewObservation(inst.InstanceKey, domain.StatusError, inst.RemoteIdentifier, domain.SourcePoll))
	if err != nil {
		p.log.WarnContext(ctx, "failed to mark unreachable instance",
			zap.String("instance_key", inst.InstanceKey),
			zap.Error(err),
		)
		return
	}
	if changed {
		p.mu.Lock()
		p.totalApplied++
		p.mu.Unlock()
	}
}
