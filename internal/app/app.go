package app

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"syncdeck/pkg/backend"
	"syncdeck/pkg/config"
	"syncdeck/pkg/kvstore"
	"syncdeck/pkg/logger"
	"syncdeck/pkg/queue"
	"syncdeck/pkg/session"
	"syncdeck/pkg/shared"
)

// App owns the collaborators built from a config and the session using them.
type App struct {
	Session *session.Session
	Backend *backend.Client
	Jobs    shared.JobBackend

	redisClient *redis.Client
	transport   *queue.Transport
	config      *config.Config
}

func New(cfg *config.Config, views session.Views) (*App, error) {
	logger.SetDefaultLevel(logger.ParseLevel(cfg.Log.Level))

	client, err := backend.NewClient(backend.Config{
		BaseURL:      cfg.Backend.BaseURL,
		Timeout:      cfg.Backend.Timeout(),
		RetryMax:     cfg.Backend.RetryMax,
		RetryWaitMin: time.Duration(cfg.Backend.RetryWaitMinMs) * time.Millisecond,
		RetryWaitMax: time.Duration(cfg.Backend.RetryWaitMaxMs) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("create backend client: %w", err)
	}

	a := &App{Backend: client, config: cfg}

	if cfg.Redis != nil {
		a.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var memory kvstore.Store
	switch cfg.Store.Type {
	case "memory":
		memory = kvstore.NewMemoryStore()
	case "redis":
		if a.redisClient == nil {
			a.Close()
			return nil, fmt.Errorf("redis configuration is required when store.type is 'redis'")
		}
		memory = kvstore.NewRedisStore(a.redisClient, cfg.Store.KeyPrefix)
	default:
		a.Close()
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Store.Type)
	}

	logger.Info("creating job transport", map[string]any{"type": cfg.Transport.Type})
	switch cfg.Transport.Type {
	case "http":
		a.Jobs = client
	case "queue":
		if a.redisClient == nil || cfg.Queue == nil {
			a.Close()
			return nil, fmt.Errorf("redis and queue configuration are required when transport.type is 'queue'")
		}
		a.transport = queue.NewTransport(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, a.redisClient, queue.Config{
			QueueName: cfg.Queue.Name,
			MaxRetry:  cfg.Queue.MaxRetry,
			Timeout:   time.Duration(cfg.Queue.TimeoutMinutes) * time.Minute,
			Retention: time.Duration(cfg.Queue.RetentionHours) * time.Hour,
		})
		a.Jobs = a.transport
	default:
		a.Close()
		return nil, fmt.Errorf("unsupported transport type: %s", cfg.Transport.Type)
	}

	a.Session = session.New(client, a.Jobs, views, session.Options{
		CacheTTL:             cfg.Browser.CacheTTL(),
		PollInterval:         cfg.Jobs.PollInterval(),
		ListInterval:         cfg.Jobs.ListInterval(),
		MaxConcurrentFetches: int64(cfg.Browser.MaxConcurrentFetches),
		LocalStartPath:       cfg.Browser.DefaultLocalPath,
		Memory:               memory,
		Logger:               logger.NewDefault(),
	})

	return a, nil
}

// Ping checks that redis answers when the config uses it.
func (a *App) Ping(ctx context.Context) error {
	if a.redisClient == nil {
		return nil
	}
	if err := a.redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", a.config.Redis.Addr, err)
	}
	return nil
}

func (a *App) Close() {
	if a.Session != nil {
		a.Session.Close()
	}
	if a.transport != nil {
		a.transport.Close()
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			logger.Error("redis close failed", err, nil)
		}
	}
}
