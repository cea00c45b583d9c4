package config

const (
	defaultDataDir               = "~/.local/share/scribe"
	defaultLogDir                = "~/.local/share/scribe/logs"
	defaultAPIBind               = "127.0.0.1:7519"
	defaultQueueMaxConcurrent    = 3
	defaultQueueMaxSize          = 50
	defaultQueueWaitTimeout      = 300
	defaultCacheMaxEntries       = 10000
	defaultCacheMaxSizeMB        = 500
	defaultCacheTTLDays          = 30
	defaultCacheEvictionPolicy   = "lru"
	defaultCacheEvictionInterval = 6
	defaultExtractorKind         = "command"
	defaultExtractorTimeout      = 180
	defaultJobRetentionDays      = 30
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Queue: Queue{
			MaxConcurrent:      defaultQueueMaxConcurrent,
			MaxSize:            defaultQueueMaxSize,
			WaitTimeoutSeconds: defaultQueueWaitTimeout,
		},
		Cache: Cache{
			MaxEntries:            defaultCacheMaxEntries,
			MaxSizeMB:             defaultCacheMaxSizeMB,
			TTLDays:               defaultCacheTTLDays,
			EvictionPolicy:        defaultCacheEvictionPolicy,
			EvictionIntervalHours: defaultCacheEvictionInterval,
		},
		Extractor: Extractor{
			Kind:           defaultExtractorKind,
			TimeoutSeconds: defaultExtractorTimeout,
		},
		Jobs: Jobs{
			RetentionDays: defaultJobRetentionDays,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
