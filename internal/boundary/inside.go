package boundary

import "github.com/furrow-data/fieldline/internal/geo"

// IsInsideArea reports whether pt lies in the usable area: inside the outer
// ring and outside every hole not flagged drive-through. This single test
// backs both "is the tool in the field" and "is the tool in the headland"
// style queries.
func IsInsideArea(pt geo.Point, outer Ring, holes []Hole) bool {
	if !pointInRing(pt, outer) {
		return false
	}
	for _, h := range holes {
		if h.DriveThrough {
			continue
		}
		if pointInRing(pt, h.Ring) {
			return false
		}
	}
	return true
}

// pointInRing is the even-odd ray casting test against a single ring.
// Winding direction does not matter.
func pointInRing(pt geo.Point, ring Ring) bool {
	inside := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		if (ring[i].N > pt.N) != (ring[j].N > pt.N) &&
			pt.E < (ring[j].E-ring[i].E)*(pt.N-ring[i].N)/(ring[j].N-ring[i].N)+ring[i].E {
			inside = !inside
		}
		j = i
	}
	return inside
}
