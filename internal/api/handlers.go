package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"songscout/internal/logging"
	"songscout/internal/store"
)

type createJobRequest struct {
	TrackIDs []int64 `json:"track_ids" binding:"required,min=1"`
}

func (s *Server) createJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	job, err := s.store.EnqueueJob(c.Request.Context(), store.JobTypeEnrichTracks, req.TrackIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, job)
}

func (s *Server) getJob(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}
	job, err := s.store.GetJob(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) listJobs(c *gin.Context) {
	filter := store.JobFilter{}
	if raw := c.Query("status"); raw != "" {
		status, ok := store.ParseJobStatus(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + raw})
			return
		}
		filter.Status = status
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		filter.Limit = limit
	}

	jobs, err := s.store.ListJobs(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// triggerScan runs a fetch batch over every monitored playlist and enqueues
// one enrichment job for the new tracks. The response reports per-playlist
// partial success rather than an all-or-nothing result.
func (s *Server) triggerScan(c *gin.Context) {
	ctx := c.Request.Context()
	playlists, err := s.store.ListPlaylists(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(playlists) == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "no playlists are monitored"})
		return
	}

	batch, err := s.scanner.FetchAll(ctx, playlists)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	summaries := make([]gin.H, 0, len(batch.Results))
	succeeded, failed := 0, 0
	for _, result := range batch.Results {
		summary := gin.H{
			"playlist_id": result.PlaylistID,
			"playlist":    result.PlaylistName,
			"provider":    result.Provider,
			"complete":    result.Complete,
			"fetched":     result.Fetched,
			"new_tracks":  len(result.NewTrackIDs),
		}
		if result.Err != nil {
			summary["error"] = result.Err.Error()
			failed++
		} else {
			succeeded++
		}
		summaries = append(summaries, summary)
	}

	response := gin.H{
		"week":      batch.Week,
		"succeeded": succeeded,
		"failed":    failed,
		"playlists": summaries,
	}

	if ids := batch.NewTrackIDs(); len(ids) > 0 {
		job, err := s.store.EnqueueJob(ctx, store.JobTypeEnrichTracks, ids)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response["job_id"] = job.ID
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) listTracks(c *gin.Context) {
	filter := store.TrackFilter{Week: c.Query("week")}
	if raw := c.Query("status"); raw != "" {
		status := store.EnrichmentStatus(raw)
		switch status {
		case store.EnrichmentPending, store.EnrichmentSuccess, store.EnrichmentError, store.EnrichmentNotFound:
			filter.Enrichment = status
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown enrichment status " + raw})
			return
		}
	}
	if raw := c.Query("playlist"); raw != "" {
		playlistID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid playlist id"})
			return
		}
		filter.PlaylistID = playlistID
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		filter.Limit = limit
	}

	tracks, err := s.store.ListTracks(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tracks": tracks})
}

func (s *Server) listPlaylists(c *gin.Context) {
	playlists, err := s.store.ListPlaylists(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"playlists": playlists})
}

type addPlaylistRequest struct {
	ProviderID string `json:"provider_id" binding:"required"`
	Name       string `json:"name"`
	Editorial  bool   `json:"editorial"`
}

func (s *Server) addPlaylist(c *gin.Context) {
	var req addPlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	playlist, err := s.store.AddPlaylist(c.Request.Context(), req.ProviderID, req.Name, req.Editorial)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, playlist)
}

func (s *Server) listSongwriters(c *gin.Context) {
	ctx := c.Request.Context()
	writers, err := s.store.ListSongwriters(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	type entry struct {
		*store.Songwriter
		Contact *store.Contact `json:"contact,omitempty"`
	}
	entries := make([]entry, 0, len(writers))
	for _, writer := range writers {
		contact, err := s.store.GetContact(ctx, writer.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		entries = append(entries, entry{Songwriter: writer, Contact: contact})
	}
	c.JSON(http.StatusOK, gin.H{"songwriters": entries})
}

type setStageRequest struct {
	Stage string `json:"stage" binding:"required"`
}

// setSongwriterStage records an operator-driven funnel transition on a
// songwriter's contact aggregate.
func (s *Server) setSongwriterStage(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid songwriter id"})
		return
	}
	var req setStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch req.Stage {
	case store.StageProspect, store.StageContacted, store.StageSigned, store.StagePassed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown stage " + req.Stage})
		return
	}

	if err := s.store.SetContactStage(c.Request.Context(), id, req.Stage); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	contact, err := s.store.GetContact(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, contact)
}

// streamEvents serves the hub as a server-sent event stream until the client
// disconnects.
func (s *Server) streamEvents(c *gin.Context) {
	events, cancel := s.hub.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	s.logger.Debug("event stream opened", logging.String("remote", c.ClientIP()))
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(event.Type), event)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
