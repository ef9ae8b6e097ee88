package main

import (
	"log/slog"
	"time"

	"songscout/internal/config"
	"songscout/internal/fetch"
	"songscout/internal/providers"
	"songscout/internal/providers/chartmetric"
	"songscout/internal/providers/editorial"
	"songscout/internal/providers/spotify"
	"songscout/internal/ratelimit"
	"songscout/internal/store"
)

// buildScanner assembles the provider chain from the enabled adapters and
// wraps it in the fetch orchestrator. Editorial playlists try the API
// providers first and fall back to scraping; algorithmic playlists never
// scrape.
func buildScanner(cfg *config.Config, st *store.Store, logger *slog.Logger) *fetch.Orchestrator {
	var (
		algorithmic []fetch.Source
		editorials  []fetch.Source
		isrcLookup  providers.ISRCLookup
	)

	if cfg.Chartmetric.Enabled {
		source := fetch.Source{
			Adapter: chartmetric.New(cfg.Chartmetric, logger),
			Limiter: ratelimit.NewInterval(time.Duration(cfg.Chartmetric.MinIntervalMS) * time.Millisecond),
		}
		algorithmic = append(algorithmic, source)
		editorials = append(editorials, source)
	}
	if cfg.Spotify.Enabled {
		client := spotify.New(cfg.Spotify, logger)
		source := fetch.Source{
			Adapter: client,
			Limiter: ratelimit.NewPool(cfg.Spotify.MaxConcurrent),
		}
		algorithmic = append(algorithmic, source)
		editorials = append(editorials, source)
		isrcLookup = client
	}
	if cfg.Editorial.Enabled {
		editorials = append(editorials, fetch.Source{
			Adapter: editorial.New(cfg.Editorial, logger),
			Limiter: ratelimit.NewInterval(time.Duration(cfg.Editorial.MinIntervalMS) * time.Millisecond),
		})
	}

	chain := fetch.NewChain(algorithmic, editorials, logger)
	return fetch.NewOrchestrator(st, chain, isrcLookup, cfg.Fetch, logger)
}
