package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validation range constants.
const (
	minPageSize       = 1
	maxPageSize       = 1000
	minCredentialTTL  = 1
	minLogRetention   = 1
	minLogMaxSizeMB   = 1
	minBurst          = 1
	minConnectTimeout = 1 * time.Second
	minRemoteTimeout  = 1 * time.Second
)

// Cache backend names accepted in [cache].backend.
var validBackends = map[string]bool{"memory": true, "sqlite": true, "redis": true}

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateIndex(&cfg.Index)...)
	errs = append(errs, validateCache(&cfg.Cache)...)
	errs = append(errs, validateProtect(&cfg.Protect)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)

	return errors.Join(errs...)
}

func validateIndex(i *IndexConfig) []error {
	var errs []error

	if !strings.HasPrefix(i.Root, "/") {
		errs = append(errs, fmt.Errorf("index.root: must start with \"/\", got %q", i.Root))
	}

	if i.Expires < 0 {
		errs = append(errs, fmt.Errorf("index.expires: must be >= 0, got %d", i.Expires))
	}

	if i.PageSize < minPageSize || i.PageSize > maxPageSize {
		errs = append(errs, fmt.Errorf("index.page_size: must be %d-%d, got %d",
			minPageSize, maxPageSize, i.PageSize))
	}

	if i.InlineMaxSize <= 0 {
		errs = append(errs, fmt.Errorf("index.inline_max_size: must be positive, got %s", i.InlineMaxSize))
	}

	return errs
}

func validateCache(c *CacheConfig) []error {
	var errs []error

	if !validBackends[c.Backend] {
		errs = append(errs, fmt.Errorf("cache.backend: must be one of memory, sqlite, redis; got %q", c.Backend))
	}

	if c.Size < 1 {
		errs = append(errs, fmt.Errorf("cache.size: must be >= 1, got %d", c.Size))
	}

	if c.Backend == "sqlite" && c.SQLitePath == "" {
		errs = append(errs, errors.New("cache.sqlite_path: required when backend is sqlite"))
	}

	if c.Backend == "redis" && c.RedisAddr == "" {
		errs = append(errs, errors.New("cache.redis_addr: required when backend is redis"))
	}

	if c.RedisDB < 0 {
		errs = append(errs, fmt.Errorf("cache.redis_db: must be >= 0, got %d", c.RedisDB))
	}

	return errs
}

func validateProtect(p *ProtectConfig) []error {
	var errs []error

	if p.CredentialTTL < minCredentialTTL {
		errs = append(errs, fmt.Errorf("protect.credential_ttl: must be >= %d, got %d",
			minCredentialTTL, p.CredentialTTL))
	}

	seen := make(map[string]bool, len(p.Subtrees))

	for n, s := range p.Subtrees {
		field := fmt.Sprintf("protect.subtree[%d]", n)

		if !strings.HasPrefix(s.Path, "/") {
			errs = append(errs, fmt.Errorf("%s.path: must start with \"/\", got %q", field, s.Path))
		}

		if s.KeyID == "" {
			errs = append(errs, fmt.Errorf("%s.key_id: must not be empty", field))
		} else if seen[s.KeyID] {
			errs = append(errs, fmt.Errorf("%s.key_id: duplicate %q", field, s.KeyID))
		}

		seen[s.KeyID] = true

		if s.Password == "" {
			errs = append(errs, fmt.Errorf("%s.password: must not be empty", field))
		}
	}

	return errs
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	errs = append(errs, validateLogLevel(l.LogLevel)...)
	errs = append(errs, validateLogFormat(l.LogFormat)...)

	if l.LogRetentionDays < minLogRetention {
		errs = append(errs, fmt.Errorf("logging.log_retention_days: must be >= %d, got %d",
			minLogRetention, l.LogRetentionDays))
	}

	if l.LogMaxSizeMB < minLogMaxSizeMB {
		errs = append(errs, fmt.Errorf("logging.log_max_size_mb: must be >= %d, got %d",
			minLogMaxSizeMB, l.LogMaxSizeMB))
	}

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("logging.log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogFormat(format string) []error {
	if !validLogFormats[format] {
		return []error{fmt.Errorf("logging.log_format: must be one of auto, text, json; got %q", format)}
	}

	return nil
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	errs = append(errs, validateDurationMin("network.connect_timeout", n.ConnectTimeout, minConnectTimeout)...)
	errs = append(errs, validateDurationMin("network.remote_timeout", n.RemoteTimeout, minRemoteTimeout)...)

	if n.RequestsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("network.requests_per_second: must be > 0, got %g", n.RequestsPerSecond))
	}

	if n.Burst < minBurst {
		errs = append(errs, fmt.Errorf("network.burst: must be >= %d, got %d", minBurst, n.Burst))
	}

	return errs
}

func validateDuration(field, value string, minimum time.Duration) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}

	if d < minimum {
		return fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)
	}

	return nil
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	if err := validateDuration(field, value, minimum); err != nil {
		return []error{err}
	}

	return nil
}
