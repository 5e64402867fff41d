package spatial

import (
	"math"
)

// Planar approximation scale. Segment math here runs on a local tangent
// plane (meters east/north of a reference point), which is accurate to
// well under a meter at block scale.
const metersPerDegreeLat = 111320.0

// CardinalSide names one side of a street
type CardinalSide string

const (
	SideNorth CardinalSide = "North"
	SideSouth CardinalSide = "South"
	SideEast  CardinalSide = "East"
	SideWest  CardinalSide = "West"
)

// toPlane projects p onto the local tangent plane anchored at ref,
// returning (x east, y north) in meters.
func toPlane(ref, p Point) (float64, float64) {
	x := (p.Lon - ref.Lon) * metersPerDegreeLat * math.Cos(ref.Lat*math.Pi/180)
	y := (p.Lat - ref.Lat) * metersPerDegreeLat
	return x, y
}

// ClosestPointOnSegment projects point onto the segment a-b, clamped to
// the segment's extent, and returns the projected point together with
// the distance from point to it in meters. A degenerate segment (a == b)
// yields a itself.
func ClosestPointOnSegment(point, a, b Point) (Point, float64) {
	ax, ay := toPlane(point, a)
	bx, by := toPlane(point, b)

	dx, dy := bx-ax, by-ay
	segLenSq := dx*dx + dy*dy
	if segLenSq == 0 {
		return a, math.Hypot(ax, ay)
	}

	// point is the plane origin, so the projection parameter simplifies
	t := -(ax*dx + ay*dy) / segLenSq
	t = math.Max(0, math.Min(1, t))

	px, py := ax+t*dx, ay+t*dy
	closest := Point{
		Lat: a.Lat + t*(b.Lat-a.Lat),
		Lon: a.Lon + t*(b.Lon-a.Lon),
	}
	return closest, math.Hypot(px, py)
}

// CrossProductSide returns the z component of (b-a) x (p-a) on the local
// plane. Positive means p lies to the left of the directed segment a->b
// (left relative to the direction of travel), negative to the right,
// zero exactly on the line.
func CrossProductSide(a, b, p Point) float64 {
	ax, ay := toPlane(p, a)
	bx, by := toPlane(p, b)
	// p is the plane origin
	return (bx-ax)*(-ay) - (by-ay)*(-ax)
}

// SegmentBearing returns the compass heading of segment a->b in degrees [0,360)
func SegmentBearing(a, b Point) float64 {
	return Bearing(a.Lat, a.Lon, b.Lat, b.Lon)
}

// SideNameFromBearingAndSign maps a segment's compass bearing and a
// left/right sign to the cardinal name of that side of the street.
//
// The mapping is a lookup over four 90 degree buckets, each inclusive of
// its starting boundary:
//
//	[315, 360) and [0, 45): street runs north  -> left West,  right East
//	[45, 135):              street runs east   -> left North, right South
//	[135, 225):             street runs south  -> left East,  right West
//	[225, 315):             street runs west   -> left South, right North
//
// So bearing 45 is treated as an east-running street, 135 as south-running,
// 225 as west-running and 315 as north-running.
func SideNameFromBearingAndSign(bearing float64, isLeft bool) CardinalSide {
	b := math.Mod(bearing, 360)
	if b < 0 {
		b += 360
	}

	switch {
	case b >= 315 || b < 45: // north-running
		if isLeft {
			return SideWest
		}
		return SideEast
	case b < 135: // east-running
		if isLeft {
			return SideNorth
		}
		return SideSouth
	case b < 225: // south-running
		if isLeft {
			return SideEast
		}
		return SideWest
	default: // west-running
		if isLeft {
			return SideSouth
		}
		return SideNorth
	}
}
