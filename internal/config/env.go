package config

import (
	"os"
	"strconv"
	"strings"
)

// Recognized environment options. Each overrides the corresponding file
// value when set, so deployments can tune the core without editing TOML.
const (
	EnvQueueMaxConcurrent       = "QUEUE_MAX_CONCURRENT"
	EnvQueueMaxSize             = "QUEUE_MAX_SIZE"
	EnvCacheMaxEntries          = "CACHE_MAX_ENTRIES"
	EnvCacheMaxSizeMB           = "CACHE_MAX_SIZE_MB"
	EnvCacheTTLDays             = "CACHE_TTL_DAYS"
	EnvCacheEvictionPolicy      = "CACHE_EVICTION_POLICY"
	EnvCacheEvictionIntervalHrs = "CACHE_EVICTION_INTERVAL_HOURS"
)

func applyEnvOverrides(cfg *Config) {
	setInt(EnvQueueMaxConcurrent, &cfg.Queue.MaxConcurrent)
	setInt(EnvQueueMaxSize, &cfg.Queue.MaxSize)
	setInt(EnvCacheMaxEntries, &cfg.Cache.MaxEntries)
	setInt(EnvCacheMaxSizeMB, &cfg.Cache.MaxSizeMB)
	setInt(EnvCacheTTLDays, &cfg.Cache.TTLDays)
	setString(EnvCacheEvictionPolicy, &cfg.Cache.EvictionPolicy)
	setInt(EnvCacheEvictionIntervalHrs, &cfg.Cache.EvictionIntervalHours)
}

func setInt(key string, target *int) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return
	}
	*target = parsed
}

func setString(key string, target *string) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return
	}
	*target = trimmed
}
