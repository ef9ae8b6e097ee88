// Package editorial implements the scrape adapter for staff-curated
// playlists that have no public API. The scraper never yields ISRCs; the
// orchestrator backfills those through the official API when available.
package editorial

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"songscout/internal/config"
	"songscout/internal/logging"
	"songscout/internal/providers"
	"songscout/internal/services"
)

const (
	defaultUserAgent = "songscout/0.1 (+https://github.com/songscout/songscout)"
	playlistPageURL  = "https://open.spotify.com/playlist/%s"
)

// Scraper fetches editorial playlist pages and extracts track rows from the
// rendered markup.
type Scraper struct {
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger

	// pageURL is overridable for tests; production uses the playlist page.
	pageURL func(playlistID string) string
}

// New builds an editorial scraper from configuration.
func New(cfg config.Editorial, logger *slog.Logger) *Scraper {
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scraper{
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger(logger, "editorial"),
		pageURL: func(playlistID string) string {
			return fmt.Sprintf(playlistPageURL, playlistID)
		},
	}
}

// Name identifies the adapter in fetch outcomes and track provenance.
func (s *Scraper) Name() string { return "editorial-scrape" }

// SetPageURL overrides playlist page resolution. Tests point it at a local
// server.
func (s *Scraper) SetPageURL(fn func(playlistID string) string) {
	s.pageURL = fn
}

// FetchTracks downloads the playlist page and extracts its track listing.
func (s *Scraper) FetchTracks(ctx context.Context, playlist providers.PlaylistRef) ([]providers.TrackRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pageURL(playlist.ID), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "editorial", "fetch page", "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, services.Wrap(services.ErrRateLimited, "editorial", "fetch page", fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusNotFound:
		return nil, services.Wrap(services.ErrNotFound, "editorial", "fetch page", fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode >= 500:
		return nil, services.Wrap(services.ErrTransient, "editorial", "fetch page", fmt.Sprintf("status %d", resp.StatusCode), nil)
	default:
		return nil, services.Wrap(services.ErrValidation, "editorial", "fetch page", fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "editorial", "fetch page", "parse page", err)
	}

	records := extractTracks(doc)
	s.logger.Debug("scraped playlist page",
		logging.String(logging.FieldPlaylistID, playlist.ID),
		logging.Int("tracks", len(records)))
	return records, nil
}

// extractTracks pulls track rows out of the playlist markup. The page embeds
// one track entry per meta music:song tag plus a visible tracklist; the meta
// tags carry canonical URLs, the rows carry display names.
func extractTracks(doc *goquery.Document) []providers.TrackRecord {
	var records []providers.TrackRecord
	seen := make(map[string]struct{})

	doc.Find("[data-testid='tracklist-row']").Each(func(_ int, row *goquery.Selection) {
		link := row.Find("a[href*='/track/']").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		record := providers.TrackRecord{
			Title:  strings.TrimSpace(link.Text()),
			URL:    canonicalTrackURL(href),
			Artist: strings.TrimSpace(row.Find("a[href*='/artist/']").First().Text()),
		}
		if artistHref, ok := row.Find("a[href*='/artist/']").First().Attr("href"); ok {
			record.ExternalArtistID = pathTail(artistHref)
			record.ExternalArtistName = record.Artist
		}
		if !record.Valid() {
			return
		}
		if _, dup := seen[record.URL]; dup {
			return
		}
		seen[record.URL] = struct{}{}
		records = append(records, record)
	})

	// Fallback for pages rendered without the interactive tracklist.
	if len(records) == 0 {
		doc.Find("meta[name='music:song']").Each(func(_ int, meta *goquery.Selection) {
			content, ok := meta.Attr("content")
			if !ok {
				return
			}
			url := canonicalTrackURL(content)
			if _, dup := seen[url]; dup {
				return
			}
			seen[url] = struct{}{}
			records = append(records, providers.TrackRecord{
				Title: pathTail(url),
				URL:   url,
			})
		})
	}
	return records
}

// canonicalTrackURL strips query parameters and resolves relative hrefs so
// the same track always produces the same dedupe key.
func canonicalTrackURL(href string) string {
	href = strings.TrimSpace(href)
	if idx := strings.IndexAny(href, "?#"); idx >= 0 {
		href = href[:idx]
	}
	if strings.HasPrefix(href, "/") {
		href = "https://open.spotify.com" + href
	}
	return href
}

func pathTail(path string) string {
	path = strings.TrimRight(path, "/")
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
