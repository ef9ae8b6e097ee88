package spotify_test

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
	"songscout/internal/providers/spotify"
	"songscout/internal/services"
)

// newTestServer starts a server with the token endpoint pre-wired and
// returns it alongside a client pointed at it. Additional routes are
// registered on the mux after the server URL is known.
func newTestServer(t *testing.T) (*http.ServeMux, *httptest.Server, *spotify.Client) {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil || r.Form.Get("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "bearer-1", "expires_in": 3600})
	})

	client := spotify.New(config.Spotify{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		BaseURL:      server.URL,
		TokenURL:     server.URL + "/token",
	}, logging.NewNop())
	return mux, server, client
}

func trackJSON(name, id, isrc string) map[string]any {
	return map[string]any{
		"name": name,
		"artists": []map[string]any{
			{"id": "artist-1", "name": "First Artist"},
			{"id": "artist-2", "name": "Second Artist"},
		},
		"external_ids":  map[string]any{"isrc": isrc},
		"external_urls": map[string]any{"spotify": "https://open.spotify.com/track/" + id},
	}
}

func TestFetchTracksFollowsPagingCursor(t *testing.T) {
	mux, server, client := newTestServer(t)
	mux.HandleFunc("/v1/playlists/pl-1/tracks", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer bearer-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{{"track": trackJSON("First", "t1", "USUM72600001")}},
			"next":  server.URL + "/v1/playlists/pl-1/page2",
		})
	})
	mux.HandleFunc("/v1/playlists/pl-1/page2", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{{"track": trackJSON("Second", "t2", "USUM72600002")}},
		})
	})

	records, err := client.FetchTracks(context.Background(), providers.PlaylistRef{ID: "pl-1"})
	if err != nil {
		t.Fatalf("FetchTracks: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(records))
	}
	if records[0].ISRC != "USUM72600001" || records[1].ISRC != "USUM72600002" {
		t.Fatalf("expected ISRCs populated, got %+v", records)
	}
	if records[0].Artist != "First Artist, Second Artist" {
		t.Fatalf("expected joined artist names, got %q", records[0].Artist)
	}
	if records[0].ExternalArtistID != "artist-1" {
		t.Fatalf("expected primary artist id, got %q", records[0].ExternalArtistID)
	}
}

func TestLookupISRC(t *testing.T) {
	mux, _, client := newTestServer(t)
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query != "track:Midnight Run artist:Nova Lane" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "unexpected query %q", query)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"tracks": map[string]any{
				"items": []map[string]any{trackJSON("Midnight Run", "t9", "GBX992600009")},
			},
		})
	})

	isrc, err := client.LookupISRC(context.Background(), "Midnight Run", "Nova Lane")
	if err != nil {
		t.Fatalf("LookupISRC: %v", err)
	}
	if isrc != "GBX992600009" {
		t.Fatalf("expected ISRC GBX992600009, got %q", isrc)
	}
}

func TestLookupISRCNoMatch(t *testing.T) {
	mux, _, client := newTestServer(t)
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"tracks": map[string]any{"items": []map[string]any{}},
		})
	})

	isrc, err := client.LookupISRC(context.Background(), "Unknown Song", "")
	if err != nil {
		t.Fatalf("LookupISRC: %v", err)
	}
	if isrc != "" {
		t.Fatalf("expected empty ISRC on no match, got %q", isrc)
	}
}

func TestFetchTracksServerErrorIsTransient(t *testing.T) {
	mux, _, client := newTestServer(t)
	mux.HandleFunc("/v1/playlists/pl-1/tracks", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.FetchTracks(context.Background(), providers.PlaylistRef{ID: "pl-1"})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient classification, got %v", err)
	}
}

func TestMissingCredentialsIsConfigurationError(t *testing.T) {
	client := spotify.New(config.Spotify{BaseURL: "http://127.0.0.1:0"}, logging.NewNop())
	_, err := client.FetchTracks(context.Background(), providers.PlaylistRef{ID: "pl-1"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
