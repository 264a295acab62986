package config

import (
	"encoding/json"
	"fmt"
	"os"

	"vetline/internal/constants"
	"vetline/internal/models"
	"vetline/internal/security"
)

var (
	ErrMissingAPIBaseURL = models.ConfigError{Message: "missing Green API base URL"}
	ErrMissingDBPath     = models.ConfigError{Message: "missing database path"}
)

func LoadConfig(path string) (*models.Config, error) {
	// Validate config file path to prevent directory traversal
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	if err := validateSecurity(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.GreenAPI.APIBaseURL == "" {
		return ErrMissingAPIBaseURL
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if len(c.Channels) == 0 {
		return models.ConfigError{Message: "channels array is required and must contain at least one channel"}
	}

	clinics := make(map[string]bool)
	instances := make(map[string]bool)
	for i, channel := range c.Channels {
		if channel.ClinicID == "" {
			return models.ConfigError{Message: fmt.Sprintf("empty clinic id in channel %d", i)}
		}
		if channel.InstanceID == "" {
			return models.ConfigError{Message: fmt.Sprintf("empty instance id in channel %d", i)}
		}
		if channel.APIToken == "" {
			return models.ConfigError{Message: fmt.Sprintf("empty API token in channel %d", i)}
		}
		if clinics[channel.ClinicID] {
			return models.ConfigError{Message: fmt.Sprintf("duplicate clinic id: %s", channel.ClinicID)}
		}
		if instances[channel.InstanceID] {
			return models.ConfigError{Message: fmt.Sprintf("duplicate instance id: %s", channel.InstanceID)}
		}
		clinics[channel.ClinicID] = true
		instances[channel.InstanceID] = true
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}
	if c.Server.RateLimit.WindowMs <= 0 {
		c.Server.RateLimit.WindowMs = constants.DefaultRateLimitWindowMs
	}
	if c.Server.RateLimit.MaxRequests <= 0 {
		c.Server.RateLimit.MaxRequests = constants.DefaultRateLimitMaxRequests
	}

	if c.GreenAPI.TimeoutSec <= 0 {
		c.GreenAPI.TimeoutSec = constants.DefaultHTTPTimeoutSec
	}
	if c.GreenAPI.PollIntervalSec <= 0 {
		c.GreenAPI.PollIntervalSec = constants.DefaultPollIntervalSec
	}
	if c.GreenAPI.MaxDrainPerCycle <= 0 {
		c.GreenAPI.MaxDrainPerCycle = constants.DefaultMaxDrainPerCycle
	}
	if c.GreenAPI.RecentWindowMinutes <= 0 {
		c.GreenAPI.RecentWindowMinutes = constants.DefaultRecentWindowMinutes
	}
	if c.GreenAPI.SendRefreshDelayMs <= 0 {
		c.GreenAPI.SendRefreshDelayMs = constants.DefaultSendRefreshDelayMs
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("GREEN_API_URL"); url != "" {
		c.GreenAPI.APIBaseURL = url
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if level := os.Getenv("VETLINE_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}

	// SECURITY: tokens should come from the environment, not the config
	// file. A single-channel deployment can inject its token this way.
	if token := os.Getenv("GREEN_API_TOKEN"); token != "" && len(c.Channels) == 1 {
		c.Channels[0].APIToken = token
	}
}

// validateSecurity performs security-specific validation
func validateSecurity(c *models.Config) error {
	isProduction := os.Getenv("VETLINE_ENV") == "production"

	if isProduction {
		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
		}
		if os.Getenv("VETLINE_ENABLE_ENCRYPTION") != "true" {
			fmt.Fprintf(os.Stderr, "WARNING: message content encryption is disabled. Set VETLINE_ENABLE_ENCRYPTION=true and VETLINE_ENCRYPTION_SECRET in production.\n")
		}
	}

	return nil
}
