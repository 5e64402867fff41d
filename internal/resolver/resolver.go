// Package resolver determines which side of a street corridor a parked
// vehicle sits on, by projecting the parked coordinate onto schedule
// centerline geometry.
package resolver

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/curbwatch/parking-backend-go/internal/detection"
	"github.com/curbwatch/parking-backend-go/internal/models"
	"github.com/curbwatch/parking-backend-go/internal/spatial"
)

// SideResolver resolves a parked coordinate to a schedule candidate and
// a cardinal side name. Stateless; safe for concurrent use.
type SideResolver struct {
	log zerolog.Logger
}

// NewSideResolver creates a side resolver
func NewSideResolver(logger zerolog.Logger) *SideResolver {
	return &SideResolver{log: logger.With().Str("component", "side_resolver").Logger()}
}

// closestSegment is the best projection found for one corridor
type closestSegment struct {
	a, b      spatial.Point
	distanceM float64
	found     bool
}

// Resolve picks the schedule candidate for the side of the street the
// coordinate sits on. Returns nil only for an empty candidate list;
// when side naming fails to match any candidate's block side, the
// nearest candidate is returned as a degraded fallback rather than
// nothing, since a possibly-wrong side still beats a silent miss for a
// safety-relevant reminder.
func (r *SideResolver) Resolve(c models.Coordinate, candidates []models.ScheduleCandidate) *models.SideResolution {
	if len(candidates) == 0 {
		return nil
	}

	point := spatial.Point{Lat: c.Lat, Lon: c.Lon}

	// One corridor contributes one centerline even when both of its
	// sides are present as separate candidates, so the closest-segment
	// search runs per corridor across all of that corridor's candidates.
	byCorridor := make(map[string][]int)
	order := make([]string, 0)
	for i, cand := range candidates {
		if _, seen := byCorridor[cand.CorridorID]; !seen {
			order = append(order, cand.CorridorID)
		}
		byCorridor[cand.CorridorID] = append(byCorridor[cand.CorridorID], i)
	}

	var (
		best         closestSegment
		bestCorridor string
	)
	for _, corridorID := range order {
		seg := r.closestCorridorSegment(point, candidates, byCorridor[corridorID])
		if seg.found && (!best.found || seg.distanceM < best.distanceM) {
			best = seg
			bestCorridor = corridorID
		}
	}

	if !best.found {
		// Every candidate had malformed geometry; fall back on raw
		// centroid distance so the event still carries a schedule.
		return r.fallbackNearest(point, candidates)
	}

	cross := spatial.CrossProductSide(best.a, best.b, point)
	bearing := spatial.SegmentBearing(best.a, best.b)
	side := spatial.SideNameFromBearingAndSign(bearing, cross > 0)

	// Case-insensitive substring match against the corridor's block
	// sides. Compound designations like "NorthEast" can match more than
	// one cardinal name; that ambiguity is inherited from the dataset
	// and deliberately not tightened here.
	var matched []int
	for _, idx := range byCorridor[bestCorridor] {
		if strings.Contains(strings.ToLower(candidates[idx].BlockSide), strings.ToLower(string(side))) {
			matched = append(matched, idx)
		}
	}

	if len(matched) == 1 {
		cand := candidates[matched[0]]
		return &models.SideResolution{
			ChosenSide:         string(side),
			Matched:            &cand,
			DistanceToSegmentM: best.distanceM,
			Confidence:         detection.SideMatchConfidence(best.distanceM, true),
		}
	}

	r.log.Debug().
		Str("corridor", bestCorridor).
		Str("side", string(side)).
		Int("matches", len(matched)).
		Msg("block side match ambiguous or empty, using nearest candidate")

	res := r.fallbackNearest(point, candidates)
	if res != nil {
		res.ChosenSide = string(side)
		res.DistanceToSegmentM = best.distanceM
		res.Confidence = detection.SideMatchConfidence(best.distanceM, false)
	}
	return res
}

// closestCorridorSegment scans every vertex pair of every candidate
// geometry in one corridor for the projection nearest to point.
// Segments with fewer than two valid vertices are skipped, not fatal.
func (r *SideResolver) closestCorridorSegment(point spatial.Point, candidates []models.ScheduleCandidate, indices []int) closestSegment {
	var best closestSegment
	for _, idx := range indices {
		geometry := candidates[idx].Geometry
		for i := 1; i < len(geometry); i++ {
			a := spatial.Point{Lat: geometry[i-1].Lat, Lon: geometry[i-1].Lon}
			b := spatial.Point{Lat: geometry[i].Lat, Lon: geometry[i].Lon}
			if !validVertex(a) || !validVertex(b) {
				continue
			}
			_, dist := spatial.ClosestPointOnSegment(point, a, b)
			if !best.found || dist < best.distanceM {
				best = closestSegment{a: a, b: b, distanceM: dist, found: true}
			}
		}
	}
	return best
}

func (r *SideResolver) fallbackNearest(point spatial.Point, candidates []models.ScheduleCandidate) *models.SideResolution {
	bestIdx := -1
	bestDist := 0.0
	for i, cand := range candidates {
		if len(cand.Geometry) == 0 {
			continue
		}
		pts := make([]spatial.Point, 0, len(cand.Geometry))
		for _, g := range cand.Geometry {
			pts = append(pts, spatial.Point{Lat: g.Lat, Lon: g.Lon})
		}
		center := spatial.Centroid(pts)
		dist := spatial.HaversineDistance(point.Lat, point.Lon, center.Lat, center.Lon)
		if bestIdx < 0 || dist < bestDist {
			bestIdx = i
			bestDist = dist
		}
	}
	if bestIdx < 0 {
		return nil
	}

	cand := candidates[bestIdx]
	return &models.SideResolution{
		ChosenSide:         cand.BlockSide,
		Matched:            &cand,
		DistanceToSegmentM: bestDist,
		Confidence:         detection.SideMatchConfidence(bestDist, false),
		Fallback:           true,
	}
}

func validVertex(p spatial.Point) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180 &&
		(p.Lat != 0 || p.Lon != 0)
}
