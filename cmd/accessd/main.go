// accessd is the Access Service: the TCP frontend that terminates
// device connections and drives their session state machine.
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

	"github.com/joho/godotenv"

	"github.com/iotgw/device-gateway/internal/access"
	"github.com/iotgw/device-gateway/internal/gwconfig"
	"github.com/iotgw/device-gateway/internal/kvs"
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

	slog.Info("starting access service", "bind", cfg.Perception.Addr(), "heartbeat", cfg.Perception.HeartbeatPeriod())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rp, err := kvs.NewRedis(ctx, cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer rp.Close()
	kv := kvs.New(rp)

	srv := access.NewServer(kv, cfg.Perception.HeartbeatPeriod())
	if err := srv.Serve(ctx, cfg.Perception.Addr()); err != nil {
		slog.Error("access service exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("access service stopped")
}
