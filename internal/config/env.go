package config

import "os"

// Environment variables that override the configuration file.
// Connection strings carry credentials, so deployments usually inject them
// through the environment rather than a file on disk.
const (
	EnvDatabaseURL = "SERPSCAN_DATABASE_URL"
	EnvRedisURL    = "SERPSCAN_REDIS_URL"
	EnvListenAddr  = "SERPSCAN_LISTEN_ADDR"
	EnvUserAgent   = "SERPSCAN_USER_AGENT"
)

// ApplyEnv overrides cfg with the SERPSCAN_* variables that are set.
func ApplyEnv(cfg *Config) {
	cfg.DatabaseURL = getEnv(EnvDatabaseURL, cfg.DatabaseURL)
	cfg.RedisURL = getEnv(EnvRedisURL, cfg.RedisURL)
	cfg.ListenAddr = getEnv(EnvListenAddr, cfg.ListenAddr)
	cfg.UserAgent = getEnv(EnvUserAgent, cfg.UserAgent)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
