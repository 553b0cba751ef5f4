// Command accountd serves the account session over JSON-RPC and server-sent events.
//
// @title accountd API
// @version 1.0
// @description Account session service: current account, account registry and account-scoped preferences.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/danghamo/accountd/internal/api"
	"github.com/danghamo/accountd/internal/app/session"
	events "github.com/danghamo/accountd/internal/cqrs"
	"github.com/danghamo/accountd/internal/domain/account"
	"github.com/danghamo/accountd/internal/domain/preference"
	"github.com/danghamo/accountd/pkg/config"
	"github.com/danghamo/accountd/pkg/redisx"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: search ./, ./configs, /etc/accountd)")
	flag.Parse()

	// Initialize configuration and logger
	cfg, log, err := config.Initialize(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	// Ensure logger is flushed on exit
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting accountd",
		zap.String("version", "0.1.0"),
		zap.String("environment", cfg.Server.Environment),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		redisClient     *redisx.Client
		universalClient redis.UniversalClient
		repository      account.Repository
		preferenceStore preference.Store
	)
	if cfg.Redis.Enabled {
		redisClient, err = redisx.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal("Failed to initialize Redis client", zap.Error(err))
		}
		defer redisClient.Close()

		universalClient = redisClient.Client
		repository = account.NewRedisRepository(redisClient.Client, redisClient.KeyPrefix())
		preferenceStore = preference.NewRedisStore(redisClient.Client, redisClient.Key("preferences"))
	} else {
		log.Warn("Redis disabled, accounts and preferences are kept in memory")
		repository = account.NewMemoryRepository()
		preferenceStore = preference.NewMemoryStore(nil)
	}

	sess := session.New(session.Config{
		FilesRoot:      cfg.Session.FilesRoot,
		FallbackName:   cfg.Session.FallbackName,
		RestoreOnStart: cfg.Session.RestoreOnStart,
	}, repository, log)
	if err := sess.Start(ctx); err != nil {
		log.Fatal("Failed to start session", zap.Error(err))
	}
	defer sess.Close()

	var bus *events.Bus
	if cfg.Events.Enabled {
		bus, err = events.NewBus(events.BusConfig{
			Backend:       cfg.Events.Backend,
			TopicPrefix:   cfg.Events.TopicPrefix,
			ConsumerGroup: cfg.Events.ConsumerGroup,
		}, universalClient, log)
		if err != nil {
			log.Fatal("Failed to create event bus", zap.Error(err))
		}
	}

	apiServer, err := api.NewServer(cfg, log, api.Dependencies{
		Redis:           redisClient,
		Session:         sess,
		Bus:             bus,
		PreferenceStore: preferenceStore,
	})
	if err != nil {
		log.Fatal("Failed to create API server", zap.Error(err))
	}

	if err := apiServer.Start(ctx); err != nil {
		log.Error("Server error", zap.Error(err))
		os.Exit(1)
	}

	log.Info("Server gracefully stopped")
}
