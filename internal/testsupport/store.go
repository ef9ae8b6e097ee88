package testsupport

import (
	"context"
	"testing"

	"songscout/internal/config"
	"songscout/internal/store"
)

// MustOpenStore opens a store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewPlaylist creates a monitored playlist for tests.
func NewPlaylist(t testing.TB, st *store.Store, providerID, name string, editorial bool) *store.Playlist {
	t.Helper()

	playlist, err := st.AddPlaylist(context.Background(), providerID, name, editorial)
	if err != nil {
		t.Fatalf("store.AddPlaylist: %v", err)
	}
	return playlist
}

// NewTrack inserts a single pending track for tests and returns it with an ID.
func NewTrack(t testing.TB, st *store.Store, playlistID int64, week, title, url string) *store.Track {
	t.Helper()

	tracks, err := st.InsertTracks(context.Background(), []*store.Track{{
		PlaylistID: playlistID,
		Week:       week,
		Title:      title,
		URL:        url,
	}})
	if err != nil {
		t.Fatalf("store.InsertTracks: %v", err)
	}
	return tracks[0]
}
