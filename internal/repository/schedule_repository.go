package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/curbwatch/parking-backend-go/internal/models"
	"github.com/curbwatch/parking-backend-go/internal/spatial"
)

// DefaultSearchRadiusM bounds how far from the parked coordinate a
// schedule candidate may sit and still be considered.
const DefaultSearchRadiusM = 100.0

// ScheduleRepository handles database operations for aggregated sweeping
// schedules. Geometry arrives from the dataset as ordered (lon, lat)
// vertex lists and is stored verbatim as JSON alongside its bounding box
// for prefiltering.
type ScheduleRepository struct {
	db      *sql.DB
	radiusM float64
}

// NewScheduleRepository creates a new schedule repository
func NewScheduleRepository(db *sql.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db, radiusM: DefaultSearchRadiusM}
}

// CandidatesNear returns all schedule candidates whose geometry bounding
// box intersects the default search radius around the coordinate.
func (r *ScheduleRepository) CandidatesNear(ctx context.Context, c models.Coordinate) ([]models.ScheduleCandidate, error) {
	return r.CandidatesWithin(ctx, c, r.radiusM)
}

// CandidatesWithin is CandidatesNear with an explicit radius in meters
func (r *ScheduleRepository) CandidatesWithin(ctx context.Context, c models.Coordinate, radiusM float64) ([]models.ScheduleCandidate, error) {
	if radiusM <= 0 {
		radiusM = r.radiusM
	}
	minLat, minLon, maxLat, maxLon := spatial.RadiusBoundingBox(c.Lat, c.Lon, radiusM)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, corridor_id, corridor, limits, block_side, hours_by_day, weeks, geometry
		FROM schedules
		WHERE max_lat >= ? AND min_lat <= ? AND max_lon >= ? AND min_lon <= ?
	`, minLat, maxLat, minLon, maxLon)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var candidates []models.ScheduleCandidate
	for rows.Next() {
		cand, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, cand)
	}

	return candidates, rows.Err()
}

// Insert stores one schedule candidate, deriving the bounding box from
// its geometry.
func (r *ScheduleRepository) Insert(cand models.ScheduleCandidate) (int64, error) {
	hours, err := json.Marshal(cand.HoursByDay)
	if err != nil {
		return 0, fmt.Errorf("failed to encode hours: %w", err)
	}
	weeks, err := json.Marshal(cand.Weeks)
	if err != nil {
		return 0, fmt.Errorf("failed to encode weeks: %w", err)
	}
	geometry, err := encodeGeometry(cand.Geometry)
	if err != nil {
		return 0, err
	}

	pts := make([]spatial.Point, 0, len(cand.Geometry))
	for _, g := range cand.Geometry {
		pts = append(pts, spatial.Point{Lat: g.Lat, Lon: g.Lon})
	}
	minLat, minLon, maxLat, maxLon := spatial.BoundingBox(pts)

	result, err := r.db.Exec(`
		INSERT INTO schedules
			(corridor_id, corridor, limits, block_side, hours_by_day, weeks, geometry,
			 min_lat, min_lon, max_lat, max_lon)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, cand.CorridorID, cand.Corridor, cand.Limits, cand.BlockSide,
		string(hours), string(weeks), geometry,
		minLat, minLon, maxLat, maxLon)
	if err != nil {
		return 0, fmt.Errorf("failed to insert schedule: %w", err)
	}

	return result.LastInsertId()
}

// Count returns the number of stored schedule candidates
func (r *ScheduleRepository) Count() (int64, error) {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM schedules").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count schedules: %w", err)
	}
	return count, nil
}

func scanCandidate(rows *sql.Rows) (models.ScheduleCandidate, error) {
	var (
		cand           models.ScheduleCandidate
		limits         sql.NullString
		hours, weeks   string
		geometryColumn string
	)
	if err := rows.Scan(&cand.ID, &cand.CorridorID, &cand.Corridor, &limits,
		&cand.BlockSide, &hours, &weeks, &geometryColumn); err != nil {
		return cand, fmt.Errorf("failed to scan schedule: %w", err)
	}
	cand.Limits = limits.String

	if err := json.Unmarshal([]byte(hours), &cand.HoursByDay); err != nil {
		return cand, fmt.Errorf("failed to decode hours for schedule %d: %w", cand.ID, err)
	}
	if err := json.Unmarshal([]byte(weeks), &cand.Weeks); err != nil {
		return cand, fmt.Errorf("failed to decode weeks for schedule %d: %w", cand.ID, err)
	}

	geometry, err := decodeGeometry(geometryColumn)
	if err != nil {
		return cand, fmt.Errorf("failed to decode geometry for schedule %d: %w", cand.ID, err)
	}
	cand.Geometry = geometry

	return cand, nil
}

// encodeGeometry serializes vertices in the dataset's (lon, lat) order
func encodeGeometry(geometry []models.Coordinate) (string, error) {
	pairs := make([][2]float64, 0, len(geometry))
	for _, g := range geometry {
		pairs = append(pairs, [2]float64{g.Lon, g.Lat})
	}
	blob, err := json.Marshal(pairs)
	if err != nil {
		return "", fmt.Errorf("failed to encode geometry: %w", err)
	}
	return string(blob), nil
}

func decodeGeometry(column string) ([]models.Coordinate, error) {
	var pairs [][2]float64
	if err := json.Unmarshal([]byte(column), &pairs); err != nil {
		return nil, err
	}
	geometry := make([]models.Coordinate, 0, len(pairs))
	for _, p := range pairs {
		geometry = append(geometry, models.Coordinate{Lon: p[0], Lat: p[1]})
	}
	return geometry, nil
}
