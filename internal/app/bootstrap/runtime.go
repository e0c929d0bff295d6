package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/medbook/internal/api"
	appconfig "github.com/wolfman30/medbook/internal/config"
	"github.com/wolfman30/medbook/internal/location"
	"github.com/wolfman30/medbook/internal/observability/metrics"
	"github.com/wolfman30/medbook/internal/session"
	"github.com/wolfman30/medbook/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSessionStore picks the credential store named by SESSION_STORE. The
// returned close func releases whatever the store holds open.
func BuildSessionStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (session.Store, func() error, error) {
	noop := func() error { return nil }
	if cfg == nil {
		return nil, noop, fmt.Errorf("bootstrap: config is required")
	}
	switch cfg.SessionStore {
	case "", "file":
		store, err := session.NewFileStore(cfg.SessionFile)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	case "memory":
		return session.NewMemoryStore(), noop, nil
	case "redis":
		client := BuildRedisClient(ctx, cfg, logger, true)
		if client == nil {
			return nil, noop, fmt.Errorf("bootstrap: redis session store unavailable at %s", cfg.RedisAddr)
		}
		return session.NewRedisStore(client, cfg.SessionPrefix, nil), client.Close, nil
	default:
		return nil, noop, fmt.Errorf("bootstrap: unknown session store %q", cfg.SessionStore)
	}
}

// Runtime is everything a command needs to talk to the backend.
type Runtime struct {
	Config   *appconfig.Config
	Logger   *logging.Logger
	Metrics  *metrics.ClientMetrics
	Registry *prometheus.Registry
	Session  *session.Manager
	API      *api.Client
	Location *location.Client

	closeStore func() error
}

// BuildRuntime wires the token client, session manager and authenticated
// API client. The session is not bootstrapped yet.
func BuildRuntime(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewClientMetrics(reg)

	store, closeStore, err := BuildSessionStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	apiCfg := api.Config{
		BaseURL: cfg.APIBaseURL(),
		Timeout: cfg.RequestTimeout,
		Logger:  logger,
		Metrics: m,
	}
	tokens, err := api.NewTokenClient(apiCfg)
	if err != nil {
		_ = closeStore()
		return nil, err
	}
	manager := session.NewManager(tokens, store, logger, m)

	apiCfg.Tokens = manager
	client, err := api.NewClient(apiCfg)
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	return &Runtime{
		Config:     cfg,
		Logger:     logger,
		Metrics:    m,
		Registry:   reg,
		Session:    manager,
		API:        client,
		Location:   location.NewClient(cfg.LocationAPIBase, cfg.RequestTimeout, logger),
		closeStore: closeStore,
	}, nil
}

// Bootstrap resolves the stored session and waits for it to settle.
func (r *Runtime) Bootstrap(ctx context.Context) session.State {
	return r.Session.Bootstrap(ctx, r.API)
}

func (r *Runtime) Close() error {
	if r.closeStore == nil {
		return nil
	}
	return r.closeStore()
}
