package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curbwatch/parking-backend-go/internal/models"
)

func sampleEvent() models.ParkingConfirmed {
	return models.ParkingConfirmed{
		Location: models.DetectedParkingLocation{
			ID:         "evt-1",
			Coordinate: models.Coordinate{Lat: 37.7755, Lon: -122.4194},
			Address:    "100 McAllister St",
			Confidence: 0.9,
			Method:     models.MethodCarPlay,
		},
		Resolution: &models.SideResolution{ChosenSide: "West", Confidence: 0.9},
	}
}

func TestWebhookSinkDelivers(t *testing.T) {
	var received models.ParkingConfirmed
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL)
	require.NoError(t, sink.Notify(context.Background(), sampleEvent()))

	assert.Equal(t, "evt-1", received.Location.ID)
	require.NotNil(t, received.Resolution)
	assert.Equal(t, "West", received.Resolution.ChosenSide)
}

func TestWebhookSinkReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL)
	assert.Error(t, sink.Notify(context.Background(), sampleEvent()))
}

func TestLogSink(t *testing.T) {
	sink := NewLogSink(zerolog.Nop())
	assert.NoError(t, sink.Notify(context.Background(), sampleEvent()))
}
