// controld is the Control Service: the HTTP frontend exposing liveness
// summaries and the synchronous push/ack broker.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/iotgw/device-gateway/internal/control"
	"github.com/iotgw/device-gateway/internal/gwconfig"
	"github.com/iotgw/device-gateway/internal/kvs"
	"github.com/iotgw/device-gateway/internal/relay"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	cfg, err := gwconfig.Load(filepath.Join(*configDir, "gateway.toml"))
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := gwconfig.InitLogging(cfg.Log); err != nil {
		log.Fatalf("failed to initialize logging: %v", err)
	}

	slog.Info("starting control service", "bind", cfg.HTTP.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rp, err := kvs.NewRedis(ctx, cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer rp.Close()
	kv := kvs.New(rp)

	srv := control.NewServer(kv)

	hub := relay.NewHub(rp.Raw(), 5*time.Second)
	srv.SetRelay(hub)
	go func() {
		if err := hub.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("event relay stopped", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.HTTP.Addr())
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down control service")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during shutdown", "error", err)
		}
	case err := <-errCh:
		if err != nil {
			slog.Error("control service exited with error", "error", err)
			os.Exit(1)
		}
	}
	slog.Info("control service stopped")
}
