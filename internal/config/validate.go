package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate reports configuration problems that would prevent the daemon from
// operating. Provider credentials are only required for enabled adapters.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir must be set")
	}
	if c.Chartmetric.Enabled && c.Chartmetric.RefreshToken == "" {
		problems = append(problems, "chartmetric.refresh_token required when chartmetric is enabled")
	}
	if c.Spotify.Enabled {
		if c.Spotify.ClientID == "" {
			problems = append(problems, "spotify.client_id required when spotify is enabled")
		}
		if c.Spotify.ClientSecret == "" {
			problems = append(problems, "spotify.client_secret required when spotify is enabled")
		}
	}
	if !c.Chartmetric.Enabled && !c.Spotify.Enabled && !c.Editorial.Enabled {
		problems = append(problems, "at least one provider adapter must be enabled")
	}
	if c.Spotify.MaxConcurrent <= 0 {
		problems = append(problems, "spotify.max_concurrent must be positive")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format: unsupported value %q", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
