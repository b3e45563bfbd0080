package redis

import (
	"context"
	"fmt"

	"github.com/railzwaylabs/recon/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("redis",
	fx.Provide(NewClient),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Cfg       config.Config
	Log       *zap.Logger
}

// NewClient connects to Redis when an address is configured. A nil client
// means locks stay in-process.
func NewClient(p Params) (*redis.Client, error) {
	if p.Cfg.Redis.Addr == "" {
		p.Log.Info("redis not configured, recalculation locks are process local")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     p.Cfg.Redis.Addr,
		Password: p.Cfg.Redis.Password,
		DB:       p.Cfg.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", p.Cfg.Redis.Addr, err)
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}
