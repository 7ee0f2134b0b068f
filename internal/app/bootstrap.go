package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"swapStreamApp/config"
	ws "swapStreamApp/internal/handlers/websocket"
	redisrepo "swapStreamApp/internal/infrastructure/cache"
	"swapStreamApp/internal/infrastructure/queue"
	"swapStreamApp/internal/lib/logger/sl"
)

// AppContext holds all app dependencies
type AppContext struct {
	Config     *config.Config
	Bridges    []*Bridge
	StatsCache *redisrepo.RedisRepository
	// Producers is keyed by feed name and only populated in demo mode.
	Producers map[string]*queue.KafkaProducer

	log *slog.Logger
}

// NewApp wires one bridge per configured feed. The Redis stats cache is
// optional: if it is not configured or not reachable, bridges run without it.
func NewApp(ctx context.Context, log *slog.Logger, cfg *config.Config) (*AppContext, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &AppContext{
		Config:    cfg,
		Producers: make(map[string]*queue.KafkaProducer),
		log:       log,
	}

	if cfg.Redis.Addr != "" {
		repo := redisrepo.NewRedisRepository(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.StatsTTL)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := repo.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Warn("redis unavailable, continuing without stats cache", sl.Err(err))
			_ = repo.Close()
		} else {
			app.StatsCache = repo
			log.Info("redis stats cache initialized", slog.String("addr", cfg.Redis.Addr))
		}
	}

	for _, feed := range cfg.Feeds {
		kafkaConfig := app.kafkaConfig(feed)

		consumer := queue.NewKafkaConsumer(kafkaConfig, log.With(slog.String("feed", feed.Name)))
		broadcaster := ws.NewWebSocketBroadcaster(feed.Label, cfg.Bridge.SendQueueSize, log.With(slog.String("feed", feed.Name)))

		var opts []BridgeOption
		if app.StatsCache != nil {
			opts = append(opts, WithStatsCache(app.StatsCache, cfg.Bridge.StatsInterval))
		}
		app.Bridges = append(app.Bridges, NewBridge(feed.Name, consumer, broadcaster, log, opts...))

		if cfg.Demo {
			app.Producers[feed.Name] = queue.NewKafkaProducer(kafkaConfig)
		}
		log.Info("feed configured",
			slog.String("feed", feed.Name),
			slog.String("topic", feed.Topic),
			slog.Int("port", feed.Port),
		)
	}

	return app, nil
}

func (a *AppContext) kafkaConfig(feed config.FeedConfig) queue.KafkaConfig {
	groupID := feed.GroupID
	if groupID == "" {
		groupID = fmt.Sprintf("%s-ws-group", feed.Name)
	}
	return queue.KafkaConfig{
		Brokers:           a.Config.Kafka.Brokers,
		Topic:             feed.Topic,
		ConsumerGroup:     groupID,
		ClientID:          feed.ClientID(),
		SessionTimeout:    a.Config.Kafka.SessionTimeout,
		HeartbeatInterval: a.Config.Kafka.HeartbeatInterval,
		RetryAttempts:     a.Config.Kafka.RetryAttempts,
		InitialRetryTime:  a.Config.Kafka.InitialRetryTime,
		ReconnectDelay:    a.Config.Kafka.ReconnectDelay,
	}
}

// Bridge returns the bridge of the named feed.
func (a *AppContext) Bridge(feed string) (*Bridge, bool) {
	for _, b := range a.Bridges {
		if b.Feed == feed {
			return b, true
		}
	}
	return nil, false
}

// Cleanup performs graceful shutdown of all components
func (a *AppContext) Cleanup(ctx context.Context) {
	for _, b := range a.Bridges {
		b.Shutdown()
	}

	for feed, p := range a.Producers {
		if err := p.Close(); err != nil {
			a.log.Warn("error closing kafka producer", slog.String("feed", feed), sl.Err(err))
		}
	}

	if a.StatsCache != nil {
		if err := a.StatsCache.Close(); err != nil {
			a.log.Warn("error closing redis client", sl.Err(err))
		}
	}

	a.log.Info("all resources cleaned up")
}
