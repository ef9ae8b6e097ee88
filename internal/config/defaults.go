package config

// Default returns the baseline configuration before any file overrides.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: "~/.local/share/songscout",
			LogDir:  "~/.local/share/songscout/logs",
			APIBind: "127.0.0.1:7180",
		},
		Chartmetric: Chartmetric{
			Enabled:        false,
			BaseURL:        "https://api.chartmetric.com/api",
			RequestTimeout: 30,
			MinIntervalMS:  1200,
		},
		Spotify: Spotify{
			Enabled:        false,
			BaseURL:        "https://api.spotify.com/v1",
			TokenURL:       "https://accounts.spotify.com/api/token",
			RequestTimeout: 20,
			MaxConcurrent:  4,
		},
		Editorial: Editorial{
			Enabled:        true,
			RequestTimeout: 25,
			MinIntervalMS:  2000,
			UserAgent:      "songscout/1.0",
		},
		Fetch: Fetch{
			PlaylistParallelism: 3,
		},
		Identity: Identity{
			MinSharedTokens: 2,
		},
		Worker: Worker{
			PollInterval:       5,
			ErrorRetryInterval: 15,
		},
		Notifications: Notifications{
			RequestTimeout:  10,
			DebounceSeconds: 8,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}
