package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vigil/internal/api"
	"vigil/internal/config"
	"vigil/internal/dispatch"
	"vigil/internal/engine"
	"vigil/internal/ingest"
	"vigil/internal/logging"
	"vigil/internal/notifications"
	"vigil/internal/storage"
)

const version = "0.3.0"

func main() {
	configPath := flag.String("config", "", "path to config file (yaml or json)")
	logFormat := flag.String("log-format", "json", "log output format: json or text")
	flag.Parse()

	var cfgMgr *config.Manager
	if *configPath != "" {
		m, err := config.NewManager(config.ResolvePath(*configPath))
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfgMgr = m
	} else {
		cfgMgr = config.NewStaticManager(nil)
	}
	cfg := cfgMgr.Get()

	logger := logging.NewLogger(cfg.LogLevel, *logFormat)
	logger.Info("starting vigil", "version", version, "storage", cfg.Storage.Driver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("storage open failed", "err", err)
		os.Exit(1)
	}
	initCtx, initCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := store.Init(initCtx); err != nil {
		initCancel()
		logger.Error("storage init failed", "err", err)
		os.Exit(1)
	}
	initCancel()
	defer store.Close()

	recent := notifications.NewStore(cfg.Engine.RecentLimit)

	channels := make([]dispatch.Channel, 0, 3)
	if cfg.Dispatch.Log.Enabled {
		channels = append(channels, dispatch.NewLogChannel(logger))
	}
	if cfg.Dispatch.Webhook.Enabled {
		channels = append(channels, dispatch.NewWebhookChannel(cfg.Dispatch.Webhook.URL, cfg.Dispatch.Webhook.Timeout))
	}
	if cfg.Dispatch.Kafka.Enabled {
		kc := dispatch.NewKafkaChannel(cfg.Dispatch.Kafka.Brokers, cfg.Dispatch.Kafka.Topic)
		defer kc.Close()
		channels = append(channels, kc)
	}
	dispatcher := dispatch.New(store, channels, logger)

	eng := engine.New(store, store, store, dispatcher, logger, engine.Options{
		Cooldown:    cfg.Engine.Cooldown(),
		RuleTimeout: cfg.Engine.RuleTimeout,
		Recent:      recent,
	})

	api.Start(ctx, cfgMgr, store, eng, recent, logger, version)
	ingest.StartKafka(ctx, cfgMgr, store, eng, logger)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigs:
		logger.Info("shutting down")
		cancel()
	case <-ctx.Done():
	}
	time.Sleep(500 * time.Millisecond)
	logger.Info("exited")
}
