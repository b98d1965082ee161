package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/hectic-downloader/server/internal/bot"
	"github.com/hectic-downloader/server/internal/cleanup"
	"github.com/hectic-downloader/server/internal/conversation"
	"github.com/hectic-downloader/server/internal/core"
	"github.com/hectic-downloader/server/internal/delivery"
	"github.com/hectic-downloader/server/internal/model"
	"github.com/hectic-downloader/server/internal/ops"
	"github.com/hectic-downloader/server/internal/repo"
	"github.com/hectic-downloader/server/internal/retrieval"
	"github.com/hectic-downloader/server/internal/telegram"
	logx "github.com/hectic-downloader/server/pkg/logger"
	pkgredis "github.com/hectic-downloader/server/pkg/redis"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig defines all configurable parameters of the bot, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	AppEnv   core.Environment `envconfig:"APP_ENV" default:"development"`
	LogLevel string           `envconfig:"LOG_LEVEL"`
	OpsAddr  string           `envconfig:"OPS_ADDR" default:":8080"`

	// Infrastructure
	Redis pkgredis.Config

	Telegram model.TelegramConfig
	Upstream model.UpstreamConfig
	Session  model.SessionConfig
	Cleanup  model.CleanupConfig
	Delivery model.DeliveryConfig
	Branding model.BrandingConfig
}

// sessions bundles the two session stores with their shutdown hook.
type sessions struct {
	states model.StateRepository
	cache  model.ResultCache
	close  func()
}

func main() {
	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		logx.Warn().Err(err).Msg("could not load .env file")
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("failed to process environment config")
	}
	logx.Init(logx.LoggerOpts{Environment: cfg.AppEnv, Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openSessions(ctx, cfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise session store")
	}
	defer store.close()

	client, err := telegram.NewClient(cfg.Telegram)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to connect to Telegram")
	}

	dispatcher, err := retrieval.NewDispatcher(cfg.Upstream, newSearcher(cfg.Upstream))
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build retrieval dispatcher")
	}

	transcoder := delivery.NewFFmpegTranscoder(cfg.Delivery.FFmpegPath, cfg.Delivery.AudioBitrate)
	if err := transcoder.Available(); err != nil {
		logx.Warn().Err(err).Msg("audio conversion unavailable, mp3 requests will fall back to links")
	}
	pipeline, err := delivery.NewPipeline(cfg.Delivery, client, transcoder, delivery.WithBotName(cfg.Branding.BotName))
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build delivery pipeline")
	}

	scheduler := cleanup.NewScheduler(client)
	defer scheduler.Close()

	b, err := bot.New(bot.Deps{
		Messenger:     client,
		Conversations: conversation.NewManager(store.states, cfg.Session),
		Cache:         store.cache,
		Retriever:     dispatcher,
		Deliverer:     pipeline,
		Cleanup:       scheduler,
	}, bot.Config{Cleanup: cfg.Cleanup, Branding: cfg.Branding})
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build bot")
	}

	opsServer := ops.NewServer(cfg.OpsAddr, func(context.Context) error {
		if !client.Ready() {
			return errors.New("telegram client not authorized")
		}
		if !b.Running() {
			return errors.New("update loop not running")
		}
		return nil
	})
	if err := opsServer.Start(); err != nil {
		logx.Fatal().Err(err).Str("addr", cfg.OpsAddr).Msg("failed to start ops server")
	}

	logx.Info().Str("env", cfg.AppEnv.String()).Str("username", client.Username()).Bool("redis", cfg.Redis.Enabled()).Msg("bot started")
	go func() {
		<-ctx.Done()
		client.Stop()
	}()
	b.Run(ctx, client.Updates())

	logx.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("ops server forced to shutdown")
	}
}

// openSessions picks Redis when REDIS_URL is set and process memory
// otherwise.
func openSessions(ctx context.Context, cfg AppConfig) (sessions, error) {
	if cfg.Redis.Enabled() {
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return sessions{}, err
		}
		logx.Info().Msg("connected to Redis")
		return sessions{
			states: repo.NewRedisStateRepository(rdb, cfg.Redis.KeyPrefix, cfg.Session.StateTTL),
			cache:  repo.NewRedisResultCache(rdb, cfg.Redis.KeyPrefix, cfg.Session.CacheTTL),
			close:  func() { _ = rdb.Close() },
		}, nil
	}

	states := repo.NewMemoryStateRepository(cfg.Session.StateTTL, nil)
	cache := repo.NewMemoryResultCache(cfg.Session.CacheTTL, nil)
	states.Start()
	cache.Start()
	return sessions{
		states: states,
		cache:  cache,
		close: func() {
			states.Close()
			cache.Close()
		},
	}, nil
}

func newSearcher(cfg model.UpstreamConfig) retrieval.Searcher {
	if cfg.SearchBackend == "http" && cfg.SearchAPI != "" {
		return retrieval.NewHTTPSearcher(cfg.SearchAPI, nil)
	}
	if cfg.SearchBackend == "http" {
		logx.Warn().Msg("SEARCH_BACKEND=http without SEARCH_API, using yt-dlp")
	}
	return retrieval.NewYTDLPSearcher(cfg.YTDLPPath)
}
