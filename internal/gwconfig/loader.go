package gwconfig

import (
	"fmt"
	"log/slog"
	"os"

	"dario.cat/mergo"
	"github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors the TOML file shape. perception_service.heartbeat_interval
// is a pointer so Load can tell "absent" (nil, falls back to default) apart
// from an explicit 0 (immediate deactivation, spec §8).
type fileConfig struct {
	Log        *LogConfig      `toml:"log"`
	Perception *filePerception `toml:"perception_service"`
	Redis      *RedisConfig    `toml:"redis"`
	HTTP       *HTTPConfig     `toml:"http_service"`
}

type filePerception struct {
	BindIP           string `toml:"bind_ip"`
	Port             int    `toml:"port"`
	HeartbeatSeconds *int   `toml:"heartbeat_interval"`
}

// Load reads the TOML config file at path, applies documented defaults to
// every field the file omits, and returns a ready-to-use Config. A missing
// file is not an error — spec §6 says every field is optional, so an absent
// file is equivalent to an empty one.
func Load(path string) (*Config, error) {
	log := slog.With("config_path", path)

	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("Configuration file not found, using documented defaults")
			applyRedisPasswordFromEnv(cfg)
			return cfg, nil
		}
		return nil, newLoadError(path, err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return nil, newLoadError(path, fmt.Errorf("%w: %v", ErrInvalidTOML, err))
	}

	if fc.Log != nil {
		if err := mergo.Merge(&cfg.Log, fc.Log, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging [log]: %w", err)
		}
	}
	if fc.Redis != nil {
		if err := mergo.Merge(&cfg.Redis, fc.Redis, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging [redis]: %w", err)
		}
	}
	if fc.HTTP != nil {
		if err := mergo.Merge(&cfg.HTTP, fc.HTTP, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging [http_service]: %w", err)
		}
	}
	resolvePerception(&cfg.Perception, fc.Perception)

	applyRedisPasswordFromEnv(cfg)

	log.Info("Configuration loaded",
		"perception_addr", cfg.Perception.Addr(),
		"http_addr", cfg.HTTP.Addr(),
		"heartbeat_seconds", cfg.Perception.HeartbeatSeconds)

	return cfg, nil
}

// resolvePerception applies the perception_service section on top of
// defaults, resolving the heartbeat_interval tri-state per spec §8:
// absent -> default; negative -> default; zero or positive -> as given.
func resolvePerception(dst *PerceptionConfig, src *filePerception) {
	if src == nil {
		return
	}
	if src.BindIP != "" {
		dst.BindIP = src.BindIP
	}
	if src.Port != 0 {
		dst.Port = src.Port
	}
	if src.HeartbeatSeconds != nil && *src.HeartbeatSeconds >= 0 {
		dst.HeartbeatSeconds = *src.HeartbeatSeconds
	}
}

// applyRedisPasswordFromEnv loads the Redis password from the environment
// (REDIS_PASSWORD), never from the TOML file itself — matching the
// teacher's database credentials-from-env convention (pkg/database/config.go).
func applyRedisPasswordFromEnv(cfg *Config) {
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
}
