package main

import (
	"context"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"

	"github.com/kopkar/kopkar-client/pkg/client"
	"github.com/kopkar/kopkar-client/pkg/kopkar"
	"github.com/kopkar/kopkar-client/pkg/logging"
	"github.com/kopkar/kopkar-client/pkg/session"
)

type App struct {
	Service *kopkar.Service
	Out     io.Writer

	redis *redis.Client
}

func NewApp(ctx context.Context, c *Config, out io.Writer) (*App, error) {
	app := &App{Out: out}

	// Token store
	var store session.Store
	switch c.Store {
	case "redis":
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			app.redis.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", c.RedisAddr, err)
		}
		store = session.NewRedisStore(app.redis, session.DefaultRedisPrefix)
	default:
		store = session.NewFileStore(c.SessionDir)
	}

	sess := session.New(store, logging.NewLogger("session"))

	// Request client
	clientCfg := client.DefaultConfig(c.BaseURL)
	clientCfg.Retry.Attempts = c.Retries
	clientCfg.Retry.Delay = c.Delay
	clientCfg.Retry.Timeout = c.Timeout

	httpClient, err := client.New(clientCfg, sess)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("error while creating client: %w", err)
	}

	app.Service = kopkar.NewService(httpClient, sess)
	return app, nil
}

func (a *App) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
