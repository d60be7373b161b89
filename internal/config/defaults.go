package config

import (
	"strings"

	"lecture-companion/internal/domain"
)

// DefaultPollIntervalSeconds is the status polling cadence used when the
// settings file carries no usable override.
const DefaultPollIntervalSeconds = 3

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		ServerURL:           "http://localhost:8000",
		ChannelName:         "",
		PollIntervalSeconds: DefaultPollIntervalSeconds,
		LogLevel:            "info",
	}
}

// Normalize trims user inputs and replaces unusable values with defaults.
func Normalize(cfg domain.Settings) domain.Settings {
	cfg.ServerURL = strings.TrimRight(strings.TrimSpace(cfg.ServerURL), "/")
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultSettings().ServerURL
	}

	cfg.ChannelName = strings.TrimSpace(cfg.ChannelName)

	if cfg.PollIntervalSeconds <= 0 {
		cfg.PollIntervalSeconds = DefaultPollIntervalSeconds
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg
}
