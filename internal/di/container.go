// Package di wires the connection manager's dependencies.
package di

import (
	"github.com/Karenfernandes20/integrai-sub001/internal/gateway"
	"github.com/Karenfernandes20/integrai-sub001/internal/handler"
	"github.com/Karenfernandes20/integrai-sub001/internal/notify"
	"github.com/Karenfernandes20/integrai-sub001/internal/repository"
	"github.com/Karenfernandes20/integrai-sub001/internal/service"
	"github.com/Karenfernandes20/integrai-sub001/internal/worker"
	"github.com/Karenfernandes20/integrai-sub001/pkg/config"
	"github.com/Karenfernandes20/integrai-sub001/pkg/database"
	"github.com/Karenfernandes20/integrai-sub001/pkg/logger"
	"github.com/Karenfernandes20/integrai-sub001/pkg/redis"
)

// Container holds all dependencies for the connection manager
type Container struct {
	// Infrastructure
	DB          *database.PostgresDB
	Redis       *redis.Client
	Broadcaster *notify.Broadcaster
	Bridge      *notify.RedisBridge

	// Repositories
	InstanceRepo repository.InstanceRepository
	TenantRepo   repository.TenantRepository

	// External clients
	Gateway gateway.PairingGateway

	// Services
	ConnectionService service.ConnectionService

	// Workers
	StatusPoller *worker.StatusPoller

	// Handlers
	Handlers *handler.Handlers
}

// NewContainer creates a new dependency injection container.
// db and redisClient may be nil in tests; the redis bridge is only wired
// when a redis client is present.
func NewContainer(cfg *config.Config, db *database.PostgresDB, redisClient *redis.Client, log *logger.Logger) *Container {
	c := &Container{
		DB:    db,
		Redis: redisClient,
	}

	c.Broadcaster = notify.NewBroadcaster(log)

	if db != nil {
		c.InstanceRepo = repository.NewPostgresInstanceRepository(db.Pool())
		c.TenantRepo = repository.NewPostgresTenantRepository(db.Pool())
	} else {
		c.InstanceRepo = repository.NewMemoryInstanceRepository()
		c.TenantRepo = repository.NewMemoryTenantRepository()
	}

	c.Gateway = gateway.NewHTTPPairingGateway(cfg.Gateway.CallTimeout)

	var sink service.ChangeSink
	if redisClient != nil {
		c.Bridge = notify.NewRedisBridge(redisClient.Client, c.Broadcaster, log)
		sink = c.Bridge
	}

	c.ConnectionService = service.NewConnectionService(
		c.InstanceRepo,
		c.TenantRepo,
		c.Gateway,
		c.Broadcaster,
		sink,
		gateway.Endpoint{BaseURL: cfg.Gateway.DefaultBaseURL, Secret: cfg.Gateway.DefaultSecret},
		log,
	)

	c.StatusPoller = worker.NewStatusPoller(c.ConnectionService, c.Gateway, c.Broadcaster, &worker.StatusPollerConfig{
		PollInterval: cfg.Poller.Interval,
		FailureGrace: cfg.Poller.FailureGrace,
	}, log)

	c.Handlers = &handler.Handlers{
		Health:   handler.NewHealthHandler(db, redisClient, cfg.App.Version),
		Instance: handler.NewInstanceHandler(c.ConnectionService),
		Pairing:  handler.NewPairingHandler(c.ConnectionService),
		Stream:   handler.NewStreamHandler(c.Broadcaster),
		WS:       handler.NewWSHandler(c.Broadcaster, log),
		Webhook:  handler.NewWebhookHandler(c.ConnectionService, cfg.Gateway.DefaultSecret),
	}

	return c
}
