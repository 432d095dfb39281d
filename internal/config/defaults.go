package config

// Default values for configuration options. These are "layer 0" of the
// override chain and work without any config file.
const (
	defaultRoot              = "/"
	defaultExpires           = 300
	defaultPageSize          = 50
	defaultInlineMaxSize     = 5 * mebibyte
	defaultCacheBackend      = "memory"
	defaultCacheSize         = 4096
	defaultRedisAddr         = "127.0.0.1:6379"
	defaultRedisPrefix       = "onedrive-index:"
	defaultCredentialTTL     = 60
	defaultLogLevel          = "info"
	defaultLogFormat         = "auto"
	defaultLogRetentionDays  = 30
	defaultLogMaxSizeMB      = 50
	defaultConnectTimeout    = "10s"
	defaultRemoteTimeout     = "30s"
	defaultRequestsPerSecond = 10
	defaultBurst             = 20
)

// DefaultConfig returns a Config populated with all default values. It is
// the starting point for TOML decoding, so unset fields keep their defaults.
func DefaultConfig() *Config {
	return &Config{
		Index:   defaultIndexConfig(),
		Cache:   defaultCacheConfig(),
		Protect: ProtectConfig{CredentialTTL: defaultCredentialTTL},
		Preview: defaultPreviewConfig(),
		Logging: defaultLoggingConfig(),
		Network: defaultNetworkConfig(),
	}
}

func defaultIndexConfig() IndexConfig {
	return IndexConfig{
		Root:          defaultRoot,
		Expires:       defaultExpires,
		PageSize:      defaultPageSize,
		InlineMaxSize: defaultInlineMaxSize,
	}
}

func defaultCacheConfig() CacheConfig {
	return CacheConfig{
		Backend:     defaultCacheBackend,
		Size:        defaultCacheSize,
		RedisAddr:   defaultRedisAddr,
		RedisPrefix: defaultRedisPrefix,
	}
}

func defaultPreviewConfig() PreviewConfig {
	return PreviewConfig{
		Stream: []string{"txt", "log", "md", "csv"},
		Image:  []string{"bmp", "gif", "ico", "jpeg", "jpg", "png", "svg", "webp"},
		Video:  []string{"mkv", "mp4", "webm", "mov"},
		Dash:   []string{"avi", "flv", "wmv"},
		Audio:  []string{"flac", "m4a", "mp3", "ogg", "wav"},
		Code:   []string{"c", "conf", "css", "go", "html", "ini", "java", "js", "json", "php", "py", "sh", "sql", "ts", "xml", "yaml", "yml"},
		Doc:    []string{"doc", "docx", "ppt", "pptx", "xls", "xlsx"},
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogLevel:         defaultLogLevel,
		LogFormat:        defaultLogFormat,
		LogRetentionDays: defaultLogRetentionDays,
		LogMaxSizeMB:     defaultLogMaxSizeMB,
	}
}

func defaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		ConnectTimeout:    defaultConnectTimeout,
		RemoteTimeout:     defaultRemoteTimeout,
		RequestsPerSecond: defaultRequestsPerSecond,
		Burst:             defaultBurst,
	}
}
