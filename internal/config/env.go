package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig  = "ONEDRIVE_INDEX_CONFIG"
	EnvRoot    = "ONEDRIVE_INDEX_ROOT"
	EnvSession = "ONEDRIVE_INDEX_SESSION"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // ONEDRIVE_INDEX_CONFIG: config file path
	Root       string // ONEDRIVE_INDEX_ROOT: storage root override
	SessionID  string // ONEDRIVE_INDEX_SESSION: session for protected paths
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. It does not modify any Config.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		Root:       os.Getenv(EnvRoot),
		SessionID:  os.Getenv(EnvSession),
	}
}
