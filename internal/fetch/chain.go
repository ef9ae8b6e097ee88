package fetch

import (
	"context"
	"errors"
	"log/slog"

	"songscout/internal/logging"
	"songscout/internal/providers"
	"songscout/internal/ratelimit"
	"songscout/internal/store"
)

// Source pairs a provider adapter with the rate limiter that gates it.
type Source struct {
	Adapter providers.Adapter
	Limiter ratelimit.Limiter
}

// Outcome reports which provider resolved a playlist and what it returned.
type Outcome struct {
	Provider string
	Records  []providers.TrackRecord
}

// Chain holds the per-playlist-kind provider priority order. Editorial
// playlists end with the scrape adapter as last resort; algorithmic playlists
// prefer the official API.
type Chain struct {
	algorithmic []Source
	editorial   []Source
	logger      *slog.Logger
}

// NewChain builds a provider chain from ordered source lists.
func NewChain(algorithmic, editorial []Source, logger *slog.Logger) *Chain {
	return &Chain{
		algorithmic: algorithmic,
		editorial:   editorial,
		logger:      logging.NewComponentLogger(logger, "fetch"),
	}
}

// sourcesFor returns the attempt order for a playlist kind.
func (c *Chain) sourcesFor(kind store.PlaylistKind) []Source {
	if kind == store.KindEditorial {
		return c.editorial
	}
	return c.algorithmic
}

// Resolve tries providers strictly in order and commits to the first one
// returning a non-empty record set. A provider error or an empty result both
// fall through to the next source. When every source is exhausted the joined
// errors are returned so the caller can record an incomplete run.
func (c *Chain) Resolve(ctx context.Context, kind store.PlaylistKind, ref providers.PlaylistRef) (*Outcome, error) {
	sources := c.sourcesFor(kind)
	if len(sources) == 0 {
		return nil, errors.New("no providers configured for playlist kind " + string(kind))
	}

	var failures []error
	for _, source := range sources {
		var records []providers.TrackRecord
		err := source.Limiter.Do(ctx, func(ctx context.Context) error {
			fetched, fetchErr := source.Adapter.FetchTracks(ctx, ref)
			records = fetched
			return fetchErr
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("provider attempt failed",
				logging.String(logging.FieldProvider, source.Adapter.Name()),
				logging.String(logging.FieldPlaylistID, ref.ID),
				logging.Error(err))
			failures = append(failures, err)
			continue
		}
		if len(records) == 0 {
			c.logger.Debug("provider returned no tracks, falling through",
				logging.String(logging.FieldProvider, source.Adapter.Name()),
				logging.String(logging.FieldPlaylistID, ref.ID))
			failures = append(failures, errors.New(source.Adapter.Name()+": empty result"))
			continue
		}
		return &Outcome{Provider: source.Adapter.Name(), Records: records}, nil
	}
	return nil, errors.Join(failures...)
}
