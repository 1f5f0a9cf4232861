package gwconfig

// DefaultHeartbeatSeconds is the liveness threshold applied when
// perception_service.heartbeat_interval is absent or negative (spec §4.2, §8).
const DefaultHeartbeatSeconds = 120

// defaults returns a Config populated with every documented default (spec §6).
func defaults() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Perception: PerceptionConfig{
			BindIP:           "0.0.0.0",
			Port:             9000,
			HeartbeatSeconds: DefaultHeartbeatSeconds,
		},
		Redis: RedisConfig{
			IP:   "127.0.0.1",
			Port: 6379,
			DB:   0,
		},
		HTTP: HTTPConfig{
			BindIP: "0.0.0.0",
			Port:   8080,
		},
	}
}
