package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"songscout/internal/config"
	"songscout/internal/logging"
)

const userAgent = "songscout/0.1"

// Service broadcasts events to the in-process hub and, when configured,
// POSTs them to a webhook. Webhook delivery is best effort; failures are
// logged and never surfaced to the caller.
type Service struct {
	hub        *Hub
	webhookURL string
	client     *http.Client
	logger     *slog.Logger
}

// NewService builds the fan-out service. With no webhook URL configured,
// only hub delivery happens.
func NewService(cfg config.Notifications, hub *Hub, logger *slog.Logger) *Service {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		hub:        hub,
		webhookURL: strings.TrimSpace(cfg.WebhookURL),
		client:     &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger(logger, "notify"),
	}
}

// Publish fans one event out to all sinks.
func (s *Service) Publish(ctx context.Context, eventType EventType, payload map[string]any) {
	event := NewEvent(eventType, payload)
	s.hub.Publish(event)
	s.postWebhook(ctx, event)
}

// TrackEnriched announces one track's enrichment outcome.
func (s *Service) TrackEnriched(ctx context.Context, trackID int64, title, status string) {
	s.Publish(ctx, EventTrackEnriched, map[string]any{
		"track_id": trackID,
		"title":    title,
		"status":   status,
	})
}

// EnrichmentProgress announces a running job's progress percentage.
func (s *Service) EnrichmentProgress(ctx context.Context, jobID int64, progress int) {
	s.Publish(ctx, EventEnrichmentProgress, map[string]any{
		"job_id":   jobID,
		"progress": progress,
	})
}

// BatchComplete announces a finished job with its counters.
func (s *Service) BatchComplete(ctx context.Context, jobID int64, enriched, failed int, success bool) {
	s.Publish(ctx, EventBatchComplete, map[string]any{
		"job_id":   jobID,
		"enriched": enriched,
		"failed":   failed,
		"success":  success,
	})
}

// MetricUpdate announces that dashboard metrics changed. Callers go through
// the debouncer rather than calling this directly in hot paths.
func (s *Service) MetricUpdate(ctx context.Context) {
	s.Publish(ctx, EventMetricUpdate, nil)
}

func (s *Service) postWebhook(ctx context.Context, event Event) {
	if s.webhookURL == "" {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("marshal webhook event failed", logging.Error(err))
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		s.logger.Warn("build webhook request failed", logging.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("webhook delivery failed",
			logging.String(logging.FieldEventType, string(event.Type)),
			logging.Error(err))
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		s.logger.Warn("webhook rejected event",
			logging.String(logging.FieldEventType, string(event.Type)),
			logging.Error(fmt.Errorf("status %d", resp.StatusCode)))
	}
}
