package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"songscout/internal/config"
	"songscout/internal/logging"
	"songscout/internal/notify"
)

func TestServicePublishesToHubAndWebhook(t *testing.T) {
	received := make(chan notify.Event, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event notify.Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		received <- event
	}))
	t.Cleanup(server.Close)

	hub := notify.NewHub()
	sub, cancel := hub.Subscribe()
	t.Cleanup(cancel)

	service := notify.NewService(config.Notifications{WebhookURL: server.URL}, hub, logging.NewNop())
	service.TrackEnriched(context.Background(), 42, "Midnight Run", "success")

	select {
	case event := <-sub:
		if event.Type != notify.EventTrackEnriched {
			t.Fatalf("hub got wrong event type: %s", event.Type)
		}
		if event.Payload["title"] != "Midnight Run" {
			t.Fatalf("unexpected payload: %+v", event.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("hub subscriber never received the event")
	}

	select {
	case event := <-received:
		if event.Type != notify.EventTrackEnriched {
			t.Fatalf("webhook got wrong event type: %s", event.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("webhook never received the event")
	}
}

func TestServiceWebhookFailureIsSwallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	hub := notify.NewHub()
	service := notify.NewService(config.Notifications{WebhookURL: server.URL}, hub, logging.NewNop())

	// Must not panic or error; delivery is best effort.
	service.BatchComplete(context.Background(), 1, 3, 1, true)
}

func TestServiceWithoutWebhook(t *testing.T) {
	hub := notify.NewHub()
	sub, cancel := hub.Subscribe()
	t.Cleanup(cancel)

	service := notify.NewService(config.Notifications{}, hub, logging.NewNop())
	service.MetricUpdate(context.Background())

	select {
	case event := <-sub:
		if event.Type != notify.EventMetricUpdate {
			t.Fatalf("wrong event type: %s", event.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("hub subscriber never received the event")
	}
}
