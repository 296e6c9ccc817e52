package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shijin-alpha/buildhub-main-sub011/internal/auth"
	"github.com/shijin-alpha/buildhub-main-sub011/internal/config"
	"github.com/shijin-alpha/buildhub-main-sub011/internal/gateway"
	"github.com/shijin-alpha/buildhub-main-sub011/internal/notify"
	"github.com/shijin-alpha/buildhub-main-sub011/internal/server"
	"github.com/shijin-alpha/buildhub-main-sub011/internal/server/handler"
	"github.com/shijin-alpha/buildhub-main-sub011/internal/service"
	"github.com/shijin-alpha/buildhub-main-sub011/internal/storage/sqlite"
	"github.com/shijin-alpha/buildhub-main-sub011/pkg/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to TOML config file")
	flag.Parse()

	logging.Setup()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("storage initialized", "database", cfg.Database.Path)

	gw := gateway.NewHTTPClient(
		cfg.Gateway.BaseURL,
		cfg.Gateway.KeyID,
		cfg.Gateway.KeySecret,
		time.Duration(cfg.Gateway.TimeoutSeconds)*time.Second,
		slog.Default(),
	)

	dispatcher := notify.NewDispatcher(
		store,
		[]notify.Sender{notify.NewLogSender(slog.Default())},
		10*time.Second,
		slog.Default(),
	)

	svc := service.NewSplitService(store, gw, cfg.Split, dispatcher)
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)

	srv := server.NewServer(
		server.Config{
			Port:        cfg.Server.Port,
			CORSOrigins: cfg.Server.CORSOrigins,
		},
		server.Handlers{
			Health: handler.NewHealthHandler(),
			Splits: handler.NewSplitHandler(svc),
		},
		jwtManager,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go dispatcher.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
		os.Exit(1)
	}
}
