package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/curbwatch/parking-backend-go/internal/models"
)

func TestGradeEpisode(t *testing.T) {
	const threshold = 6.7056

	tests := []struct {
		name     string
		method   models.ConnectionMethod
		maxSpeed float64
		want     EpisodeConfidence
	}{
		{"carplay no speed", models.MethodCarPlay, 0, EpisodeHigh},
		{"car audio slow", models.MethodCarAudio, 2.0, EpisodeHigh},
		{"bluetooth at threshold", models.MethodBluetooth, threshold, EpisodeMedium},
		{"bluetooth fast", models.MethodBluetooth, 20.0, EpisodeMedium},
		{"bluetooth just under threshold", models.MethodBluetooth, threshold - 0.01, EpisodeLow},
		{"bluetooth no speed", models.MethodBluetooth, 0, EpisodeLow},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, GradeEpisode(tc.method, tc.maxSpeed, threshold))
		})
	}
}

func TestSideMatchConfidence(t *testing.T) {
	assert.InDelta(t, 1.0, SideMatchConfidence(0, true), 1e-9)
	assert.InDelta(t, 0.9, SideMatchConfidence(3, true), 1e-9)
	assert.InDelta(t, 0.5, SideMatchConfidence(15, true), 1e-9)
	assert.Zero(t, SideMatchConfidence(30, true))
	assert.Zero(t, SideMatchConfidence(100, true))

	// Fallback resolutions score half
	assert.InDelta(t, 0.45, SideMatchConfidence(3, false), 1e-9)
}
