package config

import "strings"

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	c.Chartmetric.RefreshToken = strings.TrimSpace(c.Chartmetric.RefreshToken)
	c.Chartmetric.BaseURL = strings.TrimRight(strings.TrimSpace(c.Chartmetric.BaseURL), "/")
	c.Spotify.ClientID = strings.TrimSpace(c.Spotify.ClientID)
	c.Spotify.ClientSecret = strings.TrimSpace(c.Spotify.ClientSecret)
	c.Spotify.BaseURL = strings.TrimRight(strings.TrimSpace(c.Spotify.BaseURL), "/")
	c.Spotify.TokenURL = strings.TrimSpace(c.Spotify.TokenURL)
	c.Editorial.UserAgent = strings.TrimSpace(c.Editorial.UserAgent)
	c.Notifications.WebhookURL = strings.TrimSpace(c.Notifications.WebhookURL)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	if c.Fetch.PlaylistParallelism <= 0 {
		c.Fetch.PlaylistParallelism = 3
	}
	if c.Identity.MinSharedTokens <= 0 {
		c.Identity.MinSharedTokens = 2
	}
	if c.Worker.PollInterval <= 0 {
		c.Worker.PollInterval = 5
	}
	if c.Worker.ErrorRetryInterval <= 0 {
		c.Worker.ErrorRetryInterval = 15
	}
	if c.Notifications.DebounceSeconds <= 0 {
		c.Notifications.DebounceSeconds = 8
	}
	return nil
}
