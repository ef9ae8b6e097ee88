package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"songscout/internal/config"
	"songscout/internal/store"
)

// apiClient is the thin HTTP client the CLI uses to talk to the daemon.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(cfg *config.Config, override string) *apiClient {
	base := strings.TrimRight(override, "/")
	if base == "" {
		bind := cfg.Paths.APIBind
		if strings.HasPrefix(bind, ":") {
			bind = "127.0.0.1" + bind
		}
		base = "http://" + bind
	}
	return &apiClient{
		baseURL: base,
		token:   strings.TrimSpace(cfg.Paths.APIToken),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) ListJobs(ctx context.Context, status string) ([]*store.Job, error) {
	path := "/api/jobs"
	if status != "" {
		path += "?status=" + status
	}
	var payload struct {
		Jobs []*store.Job `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Jobs, nil
}

func (c *apiClient) GetJob(ctx context.Context, id int64) (*store.Job, error) {
	var job store.Job
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+strconv.FormatInt(id, 10), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

type scanPlaylistSummary struct {
	PlaylistID int64  `json:"playlist_id"`
	Playlist   string `json:"playlist"`
	Provider   string `json:"provider"`
	Complete   bool   `json:"complete"`
	Fetched    int    `json:"fetched"`
	NewTracks  int    `json:"new_tracks"`
	Error      string `json:"error"`
}

type scanResult struct {
	Week      string                `json:"week"`
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
	JobID     int64                 `json:"job_id"`
	Playlists []scanPlaylistSummary `json:"playlists"`
}

func (c *apiClient) TriggerScan(ctx context.Context) (*scanResult, error) {
	var result scanResult
	if err := c.do(ctx, http.MethodPost, "/api/scans", struct{}{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *apiClient) ListTracks(ctx context.Context, week, status string) ([]*store.Track, error) {
	query := url.Values{}
	if week != "" {
		query.Set("week", week)
	}
	if status != "" {
		query.Set("status", status)
	}
	path := "/api/tracks"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var payload struct {
		Tracks []*store.Track `json:"tracks"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Tracks, nil
}

func (c *apiClient) ListPlaylists(ctx context.Context) ([]*store.Playlist, error) {
	var payload struct {
		Playlists []*store.Playlist `json:"playlists"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/playlists", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Playlists, nil
}

func (c *apiClient) AddPlaylist(ctx context.Context, providerID, name string, editorial bool) (*store.Playlist, error) {
	body := map[string]any{
		"provider_id": providerID,
		"name":        name,
		"editorial":   editorial,
	}
	var playlist store.Playlist
	if err := c.do(ctx, http.MethodPost, "/api/playlists", body, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

type songwriterEntry struct {
	store.Songwriter
	Contact *store.Contact `json:"contact"`
}

func (c *apiClient) ListSongwriters(ctx context.Context) ([]songwriterEntry, error) {
	var payload struct {
		Songwriters []songwriterEntry `json:"songwriters"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/songwriters", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Songwriters, nil
}

func (c *apiClient) SetSongwriterStage(ctx context.Context, id int64, stage string) (*store.Contact, error) {
	var contact store.Contact
	path := "/api/songwriters/" + strconv.FormatInt(id, 10) + "/stage"
	if err := c.do(ctx, http.MethodPut, path, map[string]string{"stage": stage}, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

func (c *apiClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}
