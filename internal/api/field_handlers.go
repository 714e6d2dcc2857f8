package api

import (
	"math"
	"net/http"
	"strconv"

	"github.com/furrow-data/fieldline/internal/boundary"
	"github.com/furrow-data/fieldline/internal/coverage"
	"github.com/furrow-data/fieldline/internal/httputil"
	"github.com/furrow-data/fieldline/internal/units"
)

// fieldAPI summarizes the loaded field. Boundary figures are omitted until
// a boundary is recorded.
type fieldAPI struct {
	Name            string   `json:"name"`
	ID              string   `json:"id"`
	HasBoundary     bool     `json:"has_boundary"`
	BoundaryArea    float64  `json:"boundary_area,omitempty"`
	PerimeterM      float64  `json:"perimeter_m,omitempty"`
	AreaUnits       string   `json:"area_units"`
	Holes           int      `json:"holes"`
	HeadlandRings   int      `json:"headland_rings"`
	Tracks          []string `json:"tracks"`
	WorkedArea      float64  `json:"worked_area"`
	CoveredFraction *float64 `json:"covered_fraction,omitempty"`
}

func (s *Server) showField(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	f := s.agent.Field()
	_, workedM2 := s.agent.CoverageSnapshot()

	out := fieldAPI{
		Name:       f.Name,
		ID:         f.ID,
		AreaUnits:  s.areaUnits,
		Tracks:     make([]string, 0, len(f.Tracks)),
		WorkedArea: units.ConvertArea(workedM2, s.areaUnits),
	}
	for _, t := range f.Tracks {
		out.Tracks = append(out.Tracks, t.Name)
	}
	if b := f.Boundary; b != nil {
		out.HasBoundary = true
		out.BoundaryArea = units.ConvertArea(b.AreaM2(), s.areaUnits)
		out.PerimeterM = b.Outer.Perimeter()
		out.Holes = len(b.Holes)
		out.HeadlandRings = len(b.Headland)
		if area := b.AreaM2(); area > 0 {
			fraction := workedM2 / area
			out.CoveredFraction = &fraction
		}
	}

	httputil.WriteJSONOK(w, out)
}

// ringAPI is a closed polygon ring as [easting, northing] pairs.
type ringAPI [][2]float64

func ringToAPI(r boundary.Ring) ringAPI {
	out := make(ringAPI, len(r))
	for i, p := range r {
		out[i] = [2]float64{p.E, p.N}
	}
	return out
}

type holeAPI struct {
	Ring         ringAPI `json:"ring"`
	DriveThrough bool    `json:"drive_through"`
}

type boundaryAPI struct {
	Outer    ringAPI   `json:"outer"`
	Holes    []holeAPI `json:"holes"`
	Headland []ringAPI `json:"headland"`
}

func (s *Server) showBoundary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	b := s.agent.Field().Boundary
	if b == nil {
		httputil.NotFound(w, "no boundary recorded")
		return
	}

	out := boundaryAPI{
		Outer:    ringToAPI(b.Outer),
		Holes:    make([]holeAPI, len(b.Holes)),
		Headland: make([]ringAPI, len(b.Headland)),
	}
	for i, h := range b.Holes {
		out.Holes[i] = holeAPI{Ring: ringToAPI(h.Ring), DriveThrough: h.DriveThrough}
	}
	for i, ring := range b.Headland {
		out.Headland[i] = ringToAPI(ring)
	}

	httputil.WriteJSONOK(w, out)
}

type passAPI struct {
	Section int     `json:"section"`
	Color   int     `json:"color"`
	Ring    ringAPI `json:"ring"`
}

type coverageAPI struct {
	WorkedArea float64   `json:"worked_area"`
	AreaUnits  string    `json:"area_units"`
	Passes     []passAPI `json:"passes"`
}

// showCoverage returns the visual coverage passes as closed strip outlines.
// Query params:
//   - max_points (optional; default 2000) per-pass edge pair cap
func (s *Server) showCoverage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	maxPoints := 2000
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v >= 2 && v <= 50000 {
			maxPoints = v
		}
	}

	passes, workedM2 := s.agent.CoverageSnapshot()

	out := coverageAPI{
		WorkedArea: units.ConvertArea(workedM2, s.areaUnits),
		AreaUnits:  s.areaUnits,
		Passes:     make([]passAPI, 0, len(passes)),
	}
	for _, p := range passes {
		out.Passes = append(out.Passes, passAPI{
			Section: p.Section,
			Color:   p.Color,
			Ring:    passOutline(p, maxPoints),
		})
	}

	httputil.WriteJSONOK(w, out)
}

// passOutline closes a pass into one polygon: the left edge forward, then
// the right edge back. Edge pairs beyond maxPoints are downsampled by
// stride.
func passOutline(p coverage.Pass, maxPoints int) ringAPI {
	stride := 1
	if len(p.Left) > maxPoints {
		stride = int(math.Ceil(float64(len(p.Left)) / float64(maxPoints)))
	}

	var kept []int
	for i := 0; i < len(p.Left); i += stride {
		kept = append(kept, i)
	}

	ring := make(ringAPI, 0, 2*len(kept))
	for _, i := range kept {
		ring = append(ring, [2]float64{p.Left[i].E, p.Left[i].N})
	}
	for j := len(kept) - 1; j >= 0; j-- {
		i := kept[j]
		ring = append(ring, [2]float64{p.Right[i].E, p.Right[i].N})
	}
	return ring
}
