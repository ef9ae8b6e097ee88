// Package chartmetric implements the Chartmetric playlist API adapter.
package chartmetric

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"songscout/internal/config"
	"songscout/internal/logging"
	"songscout/internal/providers"
	"songscout/internal/services"
)

const (
	defaultBaseURL = "https://api.chartmetric.com"
	pageSize       = 100
)

// Client fetches playlist tracks from the Chartmetric API. Access tokens are
// minted from the configured refresh token and cached until shortly before
// expiry.
type Client struct {
	baseURL      string
	refreshToken string
	httpClient   *http.Client
	logger       *slog.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// New builds a Chartmetric client from configuration.
func New(cfg config.Chartmetric, logger *slog.Logger) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:      baseURL,
		refreshToken: strings.TrimSpace(cfg.RefreshToken),
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logging.NewComponentLogger(logger, "chartmetric"),
	}
}

// Name identifies the adapter in fetch outcomes and track provenance.
func (c *Client) Name() string { return "chartmetric" }

// FetchTracks returns the current tracks of a playlist, walking pagination
// until a short page signals the end.
func (c *Client) FetchTracks(ctx context.Context, playlist providers.PlaylistRef) ([]providers.TrackRecord, error) {
	var records []providers.TrackRecord
	offset := 0
	for {
		page, err := c.fetchPage(ctx, playlist.ID, offset)
		if err != nil {
			return nil, err
		}
		for _, item := range page {
			record := item.toRecord()
			if record.Valid() {
				records = append(records, record)
			}
		}
		if len(page) < pageSize {
			break
		}
		offset += len(page)
	}
	c.logger.Debug("fetched playlist tracks",
		logging.String(logging.FieldPlaylistID, playlist.ID),
		logging.Int("tracks", len(records)))
	return records, nil
}

type playlistTrack struct {
	Name            string   `json:"name"`
	SpotifyTrackIDs []string `json:"spotify_track_ids"`
	ISRC            string   `json:"isrc"`
	Artists         []struct {
		ID   json.Number `json:"id"`
		Name string      `json:"name"`
	} `json:"artists"`
	Writers   []string `json:"writers"`
	Producers []string `json:"producers"`
	Streams   int64    `json:"streams"`
	Views     int64    `json:"views"`
	URL       string   `json:"track_url"`
}

func (t playlistTrack) toRecord() providers.TrackRecord {
	record := providers.TrackRecord{
		Title:         t.Name,
		URL:           t.URL,
		ISRC:          t.ISRC,
		SongwriterRaw: strings.Join(t.Writers, ", "),
		ProducerRaw:   strings.Join(t.Producers, ", "),
		Streams:       t.Streams,
		Views:         t.Views,
	}
	if record.URL == "" && len(t.SpotifyTrackIDs) > 0 {
		record.URL = "https://open.spotify.com/track/" + t.SpotifyTrackIDs[0]
	}
	if len(t.Artists) > 0 {
		record.Artist = t.Artists[0].Name
		record.ExternalArtistID = t.Artists[0].ID.String()
		record.ExternalArtistName = t.Artists[0].Name
	}
	return record
}

func (c *Client) fetchPage(ctx context.Context, playlistID string, offset int) ([]playlistTrack, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/playlist/spotify/%s/current/tracks?offset=%d&limit=%d", c.baseURL, playlistID, offset, pageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "chartmetric", "fetch tracks", "request failed", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode, "fetch tracks"); err != nil {
		return nil, err
	}

	var payload struct {
		Obj []playlistTrack `json:"obj"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrTransient, "chartmetric", "fetch tracks", "decode response", err)
	}
	return payload.Obj, nil
}

// token returns a cached access token, refreshing when absent or within a
// minute of expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Until(c.tokenExpiry) > time.Minute {
		return c.accessToken, nil
	}
	if c.refreshToken == "" {
		return "", services.Wrap(services.ErrConfiguration, "chartmetric", "token", "refresh token not configured", nil)
	}

	body, err := json.Marshal(map[string]string{"refreshtoken": c.refreshToken})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "chartmetric", "token", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", classifyStatus(resp.StatusCode, "token")
	}

	var payload struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", services.Wrap(services.ErrTransient, "chartmetric", "token", "decode response", err)
	}
	if payload.Token == "" {
		return "", services.Wrap(services.ErrTransient, "chartmetric", "token", "empty token in response", nil)
	}

	expires := time.Duration(payload.ExpiresIn) * time.Second
	if expires <= 0 {
		expires = time.Hour
	}
	c.accessToken = payload.Token
	c.tokenExpiry = time.Now().Add(expires)
	c.logger.Debug("access token refreshed", logging.Duration("valid_for", expires))
	return c.accessToken, nil
}

func classifyStatus(status int, operation string) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusTooManyRequests:
		return services.Wrap(services.ErrRateLimited, "chartmetric", operation, fmt.Sprintf("status %d", status), nil)
	case status == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "chartmetric", operation, fmt.Sprintf("status %d", status), nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "chartmetric", operation, fmt.Sprintf("status %d", status), nil)
	case status >= 500:
		return services.Wrap(services.ErrTransient, "chartmetric", operation, fmt.Sprintf("status %d", status), nil)
	default:
		return services.Wrap(services.ErrValidation, "chartmetric", operation, fmt.Sprintf("unexpected status %d", status), nil)
	}
}
