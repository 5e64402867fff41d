package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curbwatch/parking-backend-go/internal/database"
	"github.com/curbwatch/parking-backend-go/internal/models"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleCandidate(corridorID, blockSide string, geometry []models.Coordinate) models.ScheduleCandidate {
	return models.ScheduleCandidate{
		CorridorID: corridorID,
		Corridor:   "MCALLISTER ST",
		Limits:     "STEINER ST - PIERCE ST",
		BlockSide:  blockSide,
		HoursByDay: map[string][]int{"tuesday": {8, 9}},
		Weeks:      [5]bool{true, true, true, true, false},
		Geometry:   geometry,
	}
}

func TestScheduleRepositoryRoundTrip(t *testing.T) {
	repo := NewScheduleRepository(testDB(t))

	geometry := []models.Coordinate{
		{Lat: 37.7750, Lon: -122.4194},
		{Lat: 37.7760, Lon: -122.4194},
	}
	id, err := repo.Insert(sampleCandidate("cnn-1", "West", geometry))
	require.NoError(t, err)
	assert.Positive(t, id)

	got, err := repo.CandidatesNear(context.Background(), models.Coordinate{Lat: 37.7755, Lon: -122.4194})
	require.NoError(t, err)
	require.Len(t, got, 1)

	cand := got[0]
	assert.Equal(t, id, cand.ID)
	assert.Equal(t, "cnn-1", cand.CorridorID)
	assert.Equal(t, "MCALLISTER ST", cand.Corridor)
	assert.Equal(t, "STEINER ST - PIERCE ST", cand.Limits)
	assert.Equal(t, "West", cand.BlockSide)
	assert.Equal(t, []int{8, 9}, cand.HoursByDay["tuesday"])
	assert.Equal(t, [5]bool{true, true, true, true, false}, cand.Weeks)
	assert.Equal(t, geometry, cand.Geometry)
}

func TestCandidatesNearFiltersByDistance(t *testing.T) {
	repo := NewScheduleRepository(testDB(t))

	near := []models.Coordinate{
		{Lat: 37.7750, Lon: -122.4194},
		{Lat: 37.7760, Lon: -122.4194},
	}
	// Roughly 1km east of the search point
	far := []models.Coordinate{
		{Lat: 37.7750, Lon: -122.4080},
		{Lat: 37.7760, Lon: -122.4080},
	}

	_, err := repo.Insert(sampleCandidate("cnn-near", "West", near))
	require.NoError(t, err)
	_, err = repo.Insert(sampleCandidate("cnn-far", "West", far))
	require.NoError(t, err)

	got, err := repo.CandidatesNear(context.Background(), models.Coordinate{Lat: 37.7755, Lon: -122.4194})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "cnn-near", got[0].CorridorID)
}

func TestCandidatesWithinWiderRadius(t *testing.T) {
	repo := NewScheduleRepository(testDB(t))

	far := []models.Coordinate{
		{Lat: 37.7750, Lon: -122.4080},
		{Lat: 37.7760, Lon: -122.4080},
	}
	_, err := repo.Insert(sampleCandidate("cnn-far", "West", far))
	require.NoError(t, err)

	got, err := repo.CandidatesWithin(context.Background(), models.Coordinate{Lat: 37.7755, Lon: -122.4194}, 1500)
	require.NoError(t, err)
	require.Len(t, got, 1)

	// Non-positive radius falls back to the default
	got, err = repo.CandidatesWithin(context.Background(), models.Coordinate{Lat: 37.7755, Lon: -122.4194}, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScheduleRepositoryCount(t *testing.T) {
	repo := NewScheduleRepository(testDB(t))

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Zero(t, count)

	geometry := []models.Coordinate{
		{Lat: 37.7750, Lon: -122.4194},
		{Lat: 37.7760, Lon: -122.4194},
	}
	_, err = repo.Insert(sampleCandidate("cnn-1", "West", geometry))
	require.NoError(t, err)
	_, err = repo.Insert(sampleCandidate("cnn-1", "East", geometry))
	require.NoError(t, err)

	count, err = repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestGeometryEncodingUsesLonLatOrder(t *testing.T) {
	encoded, err := encodeGeometry([]models.Coordinate{{Lat: 37.7750, Lon: -122.4194}})
	require.NoError(t, err)
	assert.JSONEq(t, `[[-122.4194, 37.7750]]`, encoded)

	decoded, err := decodeGeometry(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, 37.7750, decoded[0].Lat)
	assert.Equal(t, -122.4194, decoded[0].Lon)
}
