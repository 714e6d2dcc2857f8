package boundary

import (
	"math"
	"slices"

	"github.com/furrow-data/fieldline/internal/geo"
)

// Fence point spacing tiers. Larger fields tolerate coarser spacing.
const (
	baseSpacing     = 1.1      // meters, small fields
	spacingTierMid  = 200000.0 // m2; above this the target doubles
	spacingTierHigh = 400000.0 // m2; above this it triples

	insertFactor = 1.6 // insert a midpoint above this multiple of target
	removeFactor = 0.9 // drop a point below this multiple of target
)

// DefaultEarThreshold is the cumulative heading change in radians above
// which EarList keeps a point.
const DefaultEarThreshold = 0.005

// FixWinding enforces the winding convention: outer rings counter-clockwise
// (positive area), holes clockwise (negative area). When the winding is
// wrong the result is a reversed copy with every heading rotated by pi;
// otherwise the input ring is returned unchanged.
func FixWinding(ring Ring, isHole bool) Ring {
	area := ring.Area()
	if isHole {
		if area > 0 {
			return ring.Reversed()
		}
		return ring
	}
	if area < 0 {
		return ring.Reversed()
	}
	return ring
}

// TargetSpacing returns the fence point spacing in meters for a ring of the
// given signed or absolute area. Holes use half the outer spacing.
func TargetSpacing(area float64, isHole bool) float64 {
	area = math.Abs(area)
	s := baseSpacing
	switch {
	case area > spacingTierHigh:
		s = 3 * baseSpacing
	case area > spacingTierMid:
		s = 2 * baseSpacing
	}
	if isHole {
		s /= 2
	}
	return s
}

// NormalizeSpacing resamples the ring toward the target spacing for its
// area: midpoints are inserted into oversized gaps and points dropped from
// undersized ones, then headings are recomputed. The input is not modified.
func NormalizeSpacing(ring Ring, area float64, isHole bool) Ring {
	if len(ring) < 3 {
		return ring.Clone()
	}
	target := TargetSpacing(area, isHole)
	insertAt := insertFactor * target
	removeAt := removeFactor * target

	out := ring.Clone()
	for pass := 0; pass < 16; pass++ {
		changed := false
		for i := 0; i < len(out); i++ {
			j := (i + 1) % len(out)
			d := out[i].Point().Distance(out[j].Point())
			if d > insertAt {
				mid := out[i].Point().Lerp(out[j].Point(), 0.5)
				out = slices.Insert(out, i+1, geo.PointH{E: mid.E, N: mid.N})
				changed = true
			} else if d < removeAt && len(out) > 3 {
				out = slices.Delete(out, j, j+1)
				changed = true
				if j > i {
					i--
				}
			}
		}
		if !changed {
			break
		}
	}
	out.RecalcHeadings()
	return out
}

// EarList derives a heavily simplified point list for triangulation: only
// points where the cumulative heading change since the last kept point
// exceeds the threshold survive. The first point is always kept. Pass a
// non-positive threshold for the default.
func EarList(ring Ring, threshold float64) []geo.Point {
	if threshold <= 0 {
		threshold = DefaultEarThreshold
	}
	if len(ring) < 3 {
		out := make([]geo.Point, len(ring))
		for i, p := range ring {
			out[i] = p.Point()
		}
		return out
	}
	out := []geo.Point{ring[0].Point()}
	accum := 0.0
	for i := 1; i < len(ring); i++ {
		accum += math.Abs(geo.HeadingDelta(ring[i-1].Heading, ring[i].Heading))
		if accum > threshold {
			out = append(out, ring[i].Point())
			accum = 0
		}
	}
	return out
}
