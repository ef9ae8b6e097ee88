package chartmetric_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"songscout/internal/config"
	"songscout/internal/logging"
	"songscout/internal/providers"
	"songscout/internal/providers/chartmetric"
	"songscout/internal/services"
)

func newTestClient(t *testing.T, handler http.Handler) *chartmetric.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return chartmetric.New(config.Chartmetric{
		RefreshToken: "refresh-abc",
		BaseURL:      server.URL,
	}, logging.NewNop())
}

func TestFetchTracksPaginates(t *testing.T) {
	var tokenRequests int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		tokenRequests++
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["refreshtoken"] != "refresh-abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"token": "bearer-1", "expires_in": 3600})
	})
	mux.HandleFunc("/api/playlist/spotify/pl-1/current/tracks", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer bearer-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		offset := r.URL.Query().Get("offset")
		tracks := make([]map[string]any, 0)
		if offset == "0" {
			// Full page forces a second request.
			for i := 0; i < 100; i++ {
				tracks = append(tracks, map[string]any{
					"name":      fmt.Sprintf("Track %d", i),
					"track_url": fmt.Sprintf("https://open.spotify.com/track/%d", i),
					"artists":   []map[string]any{{"id": 7, "name": "Artist"}},
				})
			}
		} else {
			tracks = append(tracks, map[string]any{
				"name":      "Last Track",
				"track_url": "https://open.spotify.com/track/last",
				"writers":   []string{"Amy Allen", "Jon Bellion"},
			})
		}
		json.NewEncoder(w).Encode(map[string]any{"obj": tracks})
	})

	client := newTestClient(t, mux)
	records, err := client.FetchTracks(context.Background(), providers.PlaylistRef{ID: "pl-1"})
	if err != nil {
		t.Fatalf("FetchTracks: %v", err)
	}
	if len(records) != 101 {
		t.Fatalf("expected 101 tracks across pages, got %d", len(records))
	}
	if tokenRequests != 1 {
		t.Fatalf("expected token minted once and cached, got %d requests", tokenRequests)
	}
	if records[0].ExternalArtistID != "7" || records[0].ExternalArtistName != "Artist" {
		t.Fatalf("unexpected artist fields: %+v", records[0])
	}
	if records[100].SongwriterRaw != "Amy Allen, Jon Bellion" {
		t.Fatalf("unexpected songwriter credits: %q", records[100].SongwriterRaw)
	}
}

func TestFetchTracksRateLimited(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"token": "bearer-1", "expires_in": 3600})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	client := newTestClient(t, mux)
	_, err := client.FetchTracks(context.Background(), providers.PlaylistRef{ID: "pl-1"})
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate-limited classification, got %v", err)
	}
}

func TestTokenFailureIsConfigurationError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	client := newTestClient(t, mux)
	_, err := client.FetchTracks(context.Background(), providers.PlaylistRef{ID: "pl-1"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestMissingRefreshToken(t *testing.T) {
	client := chartmetric.New(config.Chartmetric{BaseURL: "http://127.0.0.1:0"}, logging.NewNop())
	_, err := client.FetchTracks(context.Background(), providers.PlaylistRef{ID: "pl-1"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
