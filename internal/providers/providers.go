// Package providers defines the canonical track record and the adapter
// contract shared by every playlist data source.
package providers

import (
	"context"
	"strings"
)

// PlaylistRef identifies a playlist to fetch from an external provider.
type PlaylistRef struct {
	ID        string
	Name      string
	Editorial bool
}

// TrackRecord is the provider-neutral shape of one fetched track. Adapters
// populate whatever fields their source exposes; absent fields stay zero.
type TrackRecord struct {
	Title              string
	Artist             string
	URL                string
	ISRC               string
	SongwriterRaw      string
	ProducerRaw        string
	ExternalArtistID   string
	ExternalArtistName string
	Streams            int64
	Views              int64
}

// Valid reports whether the record carries the minimum fields needed for
// persistence. Records without a canonical URL cannot be deduplicated and
// are dropped at the adapter boundary.
func (r TrackRecord) Valid() bool {
	return strings.TrimSpace(r.Title) != "" && strings.TrimSpace(r.URL) != ""
}

// Adapter fetches the current tracks of a playlist. Implementations hold no
// store state and are safe to call again after any failure.
type Adapter interface {
	Name() string
	FetchTracks(ctx context.Context, playlist PlaylistRef) ([]TrackRecord, error)
}

// ISRCLookup is the optional secondary-pass capability: resolving an ISRC
// from a title and artist when the primary adapter could not supply one.
type ISRCLookup interface {
	LookupISRC(ctx context.Context, title, artist string) (string, error)
}
