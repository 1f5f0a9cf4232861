package gwconfig

import (
	"net"
	"strconv"
	"time"
)

// Config is the umbrella configuration object returned by Load, mirroring
// the four TOML sections described in the gateway's external interface.
type Config struct {
	Log        LogConfig
	Perception PerceptionConfig
	Redis      RedisConfig
	HTTP       HTTPConfig
}

// LogConfig controls the process-wide slog handler.
type LogConfig struct {
	Level   string `toml:"level"`
	Outfile string `toml:"outfile"`
	Format  string `toml:"format"`
}

// PerceptionConfig configures the Access Service's TCP listener.
type PerceptionConfig struct {
	BindIP           string `toml:"bind_ip"`
	Port             int    `toml:"port"`
	HeartbeatSeconds int    `toml:"heartbeat_interval"`
}

// Addr returns the bind_ip:port pair for net.Listen.
func (p PerceptionConfig) Addr() string {
	return net.JoinHostPort(p.BindIP, strconv.Itoa(p.Port))
}

// HeartbeatPeriod returns the configured heartbeat interval as a Duration.
// Per spec: 0 deactivates immediately; negative or absent falls back to the
// default (already applied by Load before this is called).
func (p PerceptionConfig) HeartbeatPeriod() time.Duration {
	return time.Duration(p.HeartbeatSeconds) * time.Second
}

// RedisConfig configures the KVS client shared by both frontends.
type RedisConfig struct {
	IP       string `toml:"ip"`
	Port     int    `toml:"port"`
	Password string `toml:"-"` // loaded from env, never from the TOML file
	DB       int    `toml:"db"`
}

// Addr returns the host:port pair go-redis expects.
func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.IP, strconv.Itoa(r.Port))
}

// HTTPConfig configures the Control Service's HTTP listener.
type HTTPConfig struct {
	BindIP string `toml:"bind_ip"`
	Port   int    `toml:"port"`
}

// Addr returns the bind_ip:port pair for net/http.Server.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.BindIP, strconv.Itoa(h.Port))
}
