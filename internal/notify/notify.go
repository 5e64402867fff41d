// Package notify carries confirmed parking events to their consumers.
// The engine never formats user-facing content; these sinks only move
// the event data outward.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/curbwatch/parking-backend-go/internal/models"
)

// WebhookSink POSTs confirmed parking events as JSON to a configured URL
type WebhookSink struct {
	url        string
	httpClient *http.Client
}

// NewWebhookSink creates a webhook sink
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify delivers one event
func (s *WebhookSink) Notify(ctx context.Context, event models.ParkingConfirmed) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode parking event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogSink records confirmed parking events to the structured log, for
// deployments without a webhook consumer.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a log-backed sink
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{log: logger.With().Str("component", "notification_sink").Logger()}
}

// Notify logs one event
func (s *LogSink) Notify(_ context.Context, event models.ParkingConfirmed) error {
	entry := s.log.Info().
		Str("id", event.Location.ID).
		Float64("lat", event.Location.Coordinate.Lat).
		Float64("lon", event.Location.Coordinate.Lon).
		Str("address", event.Location.Address).
		Float32("confidence", event.Location.Confidence).
		Str("method", string(event.Location.Method))
	if event.Resolution != nil {
		entry = entry.
			Str("side", event.Resolution.ChosenSide).
			Float64("distance_m", event.Resolution.DistanceToSegmentM)
	}
	entry.Msg("parking confirmed")
	return nil
}
