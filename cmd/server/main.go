package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/badkiko/y2m/internal/actions"
	"github.com/badkiko/y2m/internal/adb"
	"github.com/badkiko/y2m/internal/config"
	"github.com/badkiko/y2m/internal/crypto"
	"github.com/badkiko/y2m/internal/dispatch"
	httpapi "github.com/badkiko/y2m/internal/http"
	"github.com/badkiko/y2m/internal/http/handlers"
	"github.com/badkiko/y2m/internal/logging"
	mqttx "github.com/badkiko/y2m/internal/mqtt"
	"github.com/badkiko/y2m/internal/oauth"
	"github.com/badkiko/y2m/internal/provider"
	"github.com/badkiko/y2m/internal/storage"
	"github.com/badkiko/y2m/internal/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.ParseLevel("info")).Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := logging.New(logging.ParseLevel(cfg.Log.Level))

	if err := os.MkdirAll(filepath.Dir(cfg.DB.Path), 0o755); err != nil {
		logger.Error("failed to create db directory", "err", err)
		os.Exit(1)
	}
	repo, err := storage.New(ctx, cfg.DB.Path, logger)
	if err != nil {
		logger.Error("failed to initialize storage", "err", err)
		os.Exit(1)
	}
	defer repo.Close()

	sealer, err := crypto.New(cfg.Crypto.Key)
	if err != nil {
		logger.Error("failed to initialize token sealer", "err", err)
		os.Exit(1)
	}
	if err := repo.BackfillTokenHashes(ctx, sealer, crypto.HashToken); err != nil {
		logger.Error("token hash backfill failed", "err", err)
		os.Exit(1)
	}

	catalog, err := provider.LoadEmbedded()
	if err != nil {
		logger.Error("failed to load device-type catalog", "err", err)
		os.Exit(1)
	}

	runner := adb.NewRunner(cfg.ADB.Bin, cfg.ADB.Timeout)
	pool := adb.NewPool(repo, runner, cfg.ADB.AutoconnectInterval, logger)

	registry := actions.NewRegistry(
		actions.NewADBExecutor(runner),
		actions.NewStationExecutor(cfg.Station.RelayURL, cfg.Station.Timeout),
	)

	broker := mqttx.NewClient(mqttx.Options{
		Host:     cfg.MQTT.Host,
		Port:     cfg.MQTT.Port,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
	}, logger)
	connectCtx, cancelConnect := context.WithTimeout(ctx, 10*time.Second)
	if err := broker.Connect(connectCtx); err != nil {
		// Connect-retry keeps working in the background; startup proceeds.
		logger.Warn("mqtt broker not reachable yet", "err", err)
	}
	cancelConnect()
	defer broker.Close()

	hub := ws.NewHub(logger)
	defer hub.Close()

	tokens := oauth.NewTokenService(repo, sealer)
	dispatcher := dispatch.New(repo, registry, broker, tokens, hub, cfg.MQTT.Namespace, logger)

	listener := mqttx.NewListener(broker, dispatcher, cfg.MQTT.Namespace, logger)
	go func() {
		if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("mqtt listener failed", "err", err)
		}
	}()

	go pool.Run(ctx)
	pool.TriggerSweep()

	upstream := oauth.NewClient(cfg.OAuth.ClientID, cfg.OAuth.ClientSecret, cfg.OAuth.RedirectURI)
	codes := oauth.NewCodeStore(0)

	api := handlers.New(handlers.Deps{
		Store:      repo,
		Registry:   registry,
		Dispatcher: dispatcher,
		Runner:     runner,
		Pool:       pool,
		Catalog:    catalog,
		Upstream:   upstream,
		Codes:      codes,
		Tokens:     tokens,
		Sealer:     sealer,
		Hub:        hub,

		SkillClientID:     cfg.Skill.ClientID,
		SkillClientSecret: cfg.Skill.ClientSecret,
		BaseURL:           cfg.URLs.Base,
		WebURL:            cfg.URLs.Web,

		Logger: logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.NewRouter(api),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      65 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("server starting", "addr", httpServer.Addr, "namespace", cfg.MQTT.Namespace)
	if err := httpapi.RunServer(ctx, httpServer, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated with error", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
