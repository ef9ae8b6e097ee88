package store

import (
	"fmt"
	"strings"
	"time"
)

// PlaylistKind distinguishes how a playlist can be fetched.
type PlaylistKind string

const (
	// KindEditorial marks staff-curated playlists with no public API; the
	// scrape adapter is the provider of last resort for these.
	KindEditorial PlaylistKind = "editorial"
	// KindAlgorithmic marks playlists exposed through the official API.
	KindAlgorithmic PlaylistKind = "algorithmic"
)

// EnrichmentStatus is the per-track enrichment lifecycle.
type EnrichmentStatus string

const (
	EnrichmentPending  EnrichmentStatus = "pending"
	EnrichmentSuccess  EnrichmentStatus = "success"
	EnrichmentError    EnrichmentStatus = "error"
	EnrichmentNotFound EnrichmentStatus = "not_found"
)

// ConfidenceSource records which matching tier produced an identity link.
type ConfidenceSource string

const (
	ConfidenceExactID         ConfidenceSource = "exact-id-match"
	ConfidenceExactName       ConfidenceSource = "exact-name-match"
	ConfidenceNormalizedFuzzy ConfidenceSource = "normalized-fuzzy-match"
	ConfidenceManualOverride  ConfidenceSource = "manual-override"
)

// Playlist is an externally-curated playlist under monitoring.
type Playlist struct {
	ID                int64
	ProviderID        string
	Name              string
	Editorial         bool
	LastFetchAt       *time.Time
	LastFetchComplete bool
	LastFetchCount    int
	LastFetchExpected int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Kind returns the provider-chain class for the playlist.
func (p Playlist) Kind() PlaylistKind {
	if p.Editorial {
		return KindEditorial
	}
	return KindAlgorithmic
}

// Track is one playlist appearance of a song for a given ISO week. Rows are
// immutable historical records per week; new weeks insert new rows.
type Track struct {
	ID                 int64
	PlaylistID         int64
	Week               string
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
	Score              int
	ScoreSignalsJSON   string
	Enrichment         EnrichmentStatus
	FetchedVia         string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Songwriter is a resolved real-world identity.
type Songwriter struct {
	ID             int64
	Name           string
	NormalizedName string
	ExternalID     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Alias maps a known alternate spelling to exactly one songwriter profile.
type Alias struct {
	ID           int64
	SongwriterID int64
	Alias        string
	Normalized   string
	CreatedAt    time.Time
}

// TrackSongwriter links a track to a songwriter with the tier that produced
// the match and the raw source text. Unique per (track, songwriter).
type TrackSongwriter struct {
	TrackID      int64
	SongwriterID int64
	Confidence   ConfidenceSource
	SourceText   string
	CreatedAt    time.Time
}

// Contact is the derived per-songwriter aggregate consumed by the dashboard.
type Contact struct {
	SongwriterID   int64
	Score          int
	SignalsJSON    string
	Collaborations int
	Stage          string
	EnrichedVia    string
	UpdatedAt      time.Time
}

// JobStatus is the enrichment job lifecycle.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// ParseJobStatus converts a string into a known JobStatus.
func ParseJobStatus(value string) (JobStatus, bool) {
	normalized := JobStatus(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case JobQueued, JobRunning, JobCompleted, JobFailed:
		return normalized, true
	}
	return "", false
}

// Job is a unit of queued enrichment work.
type Job struct {
	ID             int64
	Type           string
	TrackIDs       []int64
	Status         JobStatus
	TotalTracks    int
	EnrichedTracks int
	FailedTracks   int
	Progress       int
	LogLines       []string
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	UpdatedAt      time.Time
}

// JobTypeEnrichTracks is the only job type the worker currently consumes.
const JobTypeEnrichTracks = "enrich-tracks"

// WeekKey renders the ISO week used as part of the track dedupe key.
func WeekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// TrackKey builds the (week, playlist, canonical URL) dedupe key.
func TrackKey(week string, playlistID int64, url string) string {
	return fmt.Sprintf("%s|%d|%s", week, playlistID, strings.TrimSpace(strings.ToLower(url)))
}
