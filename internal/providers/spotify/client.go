// Package spotify implements the Spotify Web API adapter. It is the only
// adapter that supplies ISRCs, so it also serves the secondary enrichment
// pass for playlists resolved by the scraper.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"songscout/internal/config"
	"songscout/internal/logging"
	"songscout/internal/providers"
	"songscout/internal/services"
)

const (
	defaultBaseURL  = "https://api.spotify.com"
	defaultTokenURL = "https://accounts.spotify.com/api/token"
	pageSize        = 100
)

// Client fetches playlist tracks from the Spotify Web API using the
// client-credentials flow. The bearer token is cached until shortly before
// expiry.
type Client struct {
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       *slog.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// New builds a Spotify client from configuration.
func New(cfg config.Spotify, logger *slog.Logger) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	tokenURL := strings.TrimSpace(cfg.TokenURL)
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:      baseURL,
		tokenURL:     tokenURL,
		clientID:     strings.TrimSpace(cfg.ClientID),
		clientSecret: strings.TrimSpace(cfg.ClientSecret),
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logging.NewComponentLogger(logger, "spotify"),
	}
}

// Name identifies the adapter in fetch outcomes and track provenance.
func (c *Client) Name() string { return "spotify" }

// FetchTracks returns the current tracks of a playlist, following the API's
// paging cursor until exhausted.
func (c *Client) FetchTracks(ctx context.Context, playlist providers.PlaylistRef) ([]providers.TrackRecord, error) {
	var records []providers.TrackRecord
	next := fmt.Sprintf("%s/v1/playlists/%s/tracks?limit=%d", c.baseURL, playlist.ID, pageSize)
	for next != "" {
		page, err := c.fetchPage(ctx, next)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			record := item.Track.toRecord()
			if record.Valid() {
				records = append(records, record)
			}
		}
		next = page.Next
	}
	c.logger.Debug("fetched playlist tracks",
		logging.String(logging.FieldPlaylistID, playlist.ID),
		logging.Int("tracks", len(records)))
	return records, nil
}

// LookupISRC searches for a track by title and artist and returns its ISRC.
// An empty string with nil error means the search found no match.
func (c *Client) LookupISRC(ctx context.Context, title, artist string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", nil
	}
	query := fmt.Sprintf("track:%s", title)
	if artist = strings.TrimSpace(artist); artist != "" {
		query += fmt.Sprintf(" artist:%s", artist)
	}
	searchURL := fmt.Sprintf("%s/v1/search?type=track&limit=1&q=%s", c.baseURL, url.QueryEscape(query))

	token, err := c.token(ctx)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "spotify", "search", "request failed", err)
	}
	defer resp.Body.Close()
	if err := classifyStatus(resp.StatusCode, "search"); err != nil {
		return "", err
	}

	var payload struct {
		Tracks struct {
			Items []trackObject `json:"items"`
		} `json:"tracks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", services.Wrap(services.ErrTransient, "spotify", "search", "decode response", err)
	}
	if len(payload.Tracks.Items) == 0 {
		return "", nil
	}
	return payload.Tracks.Items[0].ExternalIDs.ISRC, nil
}

type trackObject struct {
	Name    string `json:"name"`
	Artists []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artists"`
	ExternalIDs struct {
		ISRC string `json:"isrc"`
	} `json:"external_ids"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

func (t trackObject) toRecord() providers.TrackRecord {
	record := providers.TrackRecord{
		Title: t.Name,
		URL:   t.ExternalURLs.Spotify,
		ISRC:  t.ExternalIDs.ISRC,
	}
	names := make([]string, 0, len(t.Artists))
	for _, artist := range t.Artists {
		names = append(names, artist.Name)
	}
	if len(t.Artists) > 0 {
		record.ExternalArtistID = t.Artists[0].ID
		record.ExternalArtistName = t.Artists[0].Name
	}
	record.Artist = strings.Join(names, ", ")
	return record
}

type tracksPage struct {
	Items []struct {
		Track trackObject `json:"track"`
	} `json:"items"`
	Next string `json:"next"`
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) (*tracksPage, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "spotify", "fetch tracks", "request failed", err)
	}
	defer resp.Body.Close()
	if err := classifyStatus(resp.StatusCode, "fetch tracks"); err != nil {
		return nil, err
	}

	var page tracksPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, services.Wrap(services.ErrTransient, "spotify", "fetch tracks", "decode response", err)
	}
	return &page, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Until(c.tokenExpiry) > time.Minute {
		return c.accessToken, nil
	}
	if c.clientID == "" || c.clientSecret == "" {
		return "", services.Wrap(services.ErrConfiguration, "spotify", "token", "client credentials not configured", nil)
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "spotify", "token", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", classifyStatus(resp.StatusCode, "token")
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", services.Wrap(services.ErrTransient, "spotify", "token", "decode response", err)
	}
	if payload.AccessToken == "" {
		return "", services.Wrap(services.ErrTransient, "spotify", "token", "empty token in response", nil)
	}

	expires := time.Duration(payload.ExpiresIn) * time.Second
	if expires <= 0 {
		expires = time.Hour
	}
	c.accessToken = payload.AccessToken
	c.tokenExpiry = time.Now().Add(expires)
	return c.accessToken, nil
}

func classifyStatus(status int, operation string) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusTooManyRequests:
		return services.Wrap(services.ErrRateLimited, "spotify", operation, fmt.Sprintf("status %d", status), nil)
	case status == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "spotify", operation, fmt.Sprintf("status %d", status), nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "spotify", operation, fmt.Sprintf("status %d", status), nil)
	case status >= 500:
		return services.Wrap(services.ErrTransient, "spotify", operation, fmt.Sprintf("status %d", status), nil)
	default:
		return services.Wrap(services.ErrValidation, "spotify", operation, fmt.Sprintf("unexpected status %d", status), nil)
	}
}
