// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for onedrive-index. Values pass through
// a four-layer override chain: defaults -> config file -> environment -> CLI
// flags.
package config

import (
	"strings"
	"time"
)

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Index   IndexConfig   `toml:"index"`
	Cache   CacheConfig   `toml:"cache"`
	Protect ProtectConfig `toml:"protect"`
	Preview PreviewConfig `toml:"preview"`
	Logging LoggingConfig `toml:"logging"`
	Network NetworkConfig `toml:"network"`
}

// IndexConfig controls what part of the drive is exposed and how listings
// are cached and paged. Expires is in seconds; keep it short, download URLs
// embedded in cached records go stale on their own schedule.
type IndexConfig struct {
	Root              string   `toml:"root"`
	Expires           int      `toml:"expires"`
	PageSize          int      `toml:"page_size"`
	InlineMaxSize     ByteSize `toml:"inline_max_size"`
	ThumbnailFallback string   `toml:"thumbnail_fallback"`
	DriveID           string   `toml:"drive_id"`
	ClientID          string   `toml:"client_id"`
	TokenPath         string   `toml:"token_path"`
}

// CacheConfig selects the store shared by the object cache and sessions.
type CacheConfig struct {
	Backend       string `toml:"backend"`
	Size          int    `toml:"size"`
	SQLitePath    string `toml:"sqlite_path"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	RedisPrefix   string `toml:"redis_prefix"`
}

// ProtectConfig lists password-protected subtrees. CredentialTTL is in
// minutes.
type ProtectConfig struct {
	CredentialTTL int              `toml:"credential_ttl"`
	Secret        string           `toml:"secret"`
	Subtrees      []SubtreeSection `toml:"subtree"`
}

// SubtreeSection is one [[protect.subtree]] entry.
type SubtreeSection struct {
	Path     string `toml:"path"`
	KeyID    string `toml:"key_id"`
	Password string `toml:"password"`
}

// PreviewConfig maps file extensions to preview kinds. Extensions are
// lowercase without the dot.
type PreviewConfig struct {
	Stream []string `toml:"stream"`
	Image  []string `toml:"image"`
	Video  []string `toml:"video"`
	Dash   []string `toml:"dash"`
	Audio  []string `toml:"audio"`
	Code   []string `toml:"code"`
	Doc    []string `toml:"doc"`
}

// LoggingConfig controls log output behavior: level, format, and rotation.
type LoggingConfig struct {
	LogLevel         string `toml:"log_level"`
	LogFile          string `toml:"log_file"`
	LogFormat        string `toml:"log_format"`
	LogRetentionDays int    `toml:"log_retention_days"`
	LogMaxSizeMB     int    `toml:"log_max_size_mb"`
}

// NetworkConfig controls HTTP client behavior toward the Graph API.
type NetworkConfig struct {
	ConnectTimeout    string  `toml:"connect_timeout"`
	RemoteTimeout     string  `toml:"remote_timeout"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
	UserAgent         string  `toml:"user_agent"`
}

// CLIOverrides holds values from CLI flags. Pointer fields distinguish "not
// specified" (nil) from an explicit zero value.
type CLIOverrides struct {
	ConfigPath string  // --config flag (empty = use default)
	Root       *string // --root flag
	Backend    *string // --cache flag
}

// Preview kinds returned by Classify.
const (
	PreviewStream   = "stream"
	PreviewImage    = "image"
	PreviewVideo    = "video"
	PreviewDash     = "dash"
	PreviewAudio    = "audio"
	PreviewCode     = "code"
	PreviewDoc      = "doc"
	PreviewDownload = "download"
)

// Classify returns the preview kind for an extension, or PreviewDownload
// when no list claims it. Lists are checked in declaration order.
func (p *PreviewConfig) Classify(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return PreviewDownload
	}

	kinds := []struct {
		kind string
		exts []string
	}{
		{PreviewStream, p.Stream},
		{PreviewImage, p.Image},
		{PreviewVideo, p.Video},
		{PreviewDash, p.Dash},
		{PreviewAudio, p.Audio},
		{PreviewCode, p.Code},
		{PreviewDoc, p.Doc},
	}

	for _, k := range kinds {
		for _, e := range k.exts {
			if strings.EqualFold(e, ext) {
				return k.kind
			}
		}
	}

	return PreviewDownload
}

// ExpiresDuration returns the cache TTL.
func (i *IndexConfig) ExpiresDuration() time.Duration {
	return time.Duration(i.Expires) * time.Second
}

// InlineMaxBytes returns inline_max_size in bytes.
func (i *IndexConfig) InlineMaxBytes() int64 {
	return int64(i.InlineMaxSize)
}

// CredentialTTLDuration returns how long a submitted password stays valid.
func (p *ProtectConfig) CredentialTTLDuration() time.Duration {
	return time.Duration(p.CredentialTTL) * time.Minute
}

// ConnectTimeoutDuration returns connect_timeout. Call after Validate.
func (n *NetworkConfig) ConnectTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(n.ConnectTimeout)
	return d
}

// RemoteTimeoutDuration returns remote_timeout. Call after Validate.
func (n *NetworkConfig) RemoteTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(n.RemoteTimeout)
	return d
}
