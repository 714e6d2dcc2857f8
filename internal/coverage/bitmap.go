// Package coverage tracks which parts of a field have been worked. It keeps
// two layers per session: a fixed-resolution cell-hash bitmap answering "is
// this spot covered" in O(1), and per-section visual passes of decimated
// edge pairs for rendering and persistence. The bitmap is authoritative for
// detection; the passes are authoritative for what gets saved.
package coverage

import (
	"math"

	"github.com/furrow-data/fieldline/internal/geo"
)

// CellKey identifies one grid cell: the floor-divided easting/northing pair.
type CellKey struct {
	X, Y int32
}

// Bitmap is the detection layer: a set of worked cells plus the accumulated
// worked area. It grows monotonically during a session and is never iterated
// to answer a query.
type Bitmap struct {
	cellSize float64
	cells    map[CellKey]struct{}
	areaM2   float64
}

// NewBitmap returns an empty bitmap at the given cell resolution.
func NewBitmap(cellSizeMeters float64) *Bitmap {
	return &Bitmap{
		cellSize: cellSizeMeters,
		cells:    make(map[CellKey]struct{}),
	}
}

// CellSizeMeters returns the grid resolution.
func (b *Bitmap) CellSizeMeters() float64 { return b.cellSize }

// KeyFor returns the cell containing p.
func (b *Bitmap) KeyFor(p geo.Point) CellKey {
	return CellKey{
		X: int32(math.Floor(p.E / b.cellSize)),
		Y: int32(math.Floor(p.N / b.cellSize)),
	}
}

// center returns the center point of a cell.
func (b *Bitmap) center(k CellKey) geo.Point {
	return geo.Point{
		E: (float64(k.X) + 0.5) * b.cellSize,
		N: (float64(k.Y) + 0.5) * b.cellSize,
	}
}

// IsPointCovered reports whether p falls in a worked cell. One hash lookup.
func (b *Bitmap) IsPointCovered(p geo.Point) bool {
	_, ok := b.cells[b.KeyFor(p)]
	return ok
}

// CellCount returns the number of worked cells.
func (b *Bitmap) CellCount() int { return len(b.cells) }

// WorkedAreaM2 returns the accumulated worked area in square meters.
func (b *Bitmap) WorkedAreaM2() float64 { return b.areaM2 }

// Reset discards all coverage. Only an explicit reset or a new field load
// clears the bitmap.
func (b *Bitmap) Reset() {
	b.cells = make(map[CellKey]struct{})
	b.areaM2 = 0
}

// MarkQuad rasterizes the quadrilateral p1-p2-p3-p4 into the bitmap,
// marking every cell whose center lies inside it, and adds the quad's
// shoelace area to the worked total. The corners must form a simple loop;
// either winding works.
func (b *Bitmap) MarkQuad(p1, p2, p3, p4 geo.Point) {
	minE := min(p1.E, p2.E, p3.E, p4.E)
	maxE := max(p1.E, p2.E, p3.E, p4.E)
	minN := min(p1.N, p2.N, p3.N, p4.N)
	maxN := max(p1.N, p2.N, p3.N, p4.N)

	lo := b.KeyFor(geo.Point{E: minE, N: minN})
	hi := b.KeyFor(geo.Point{E: maxE, N: maxN})
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			k := CellKey{X: x, Y: y}
			if pointInQuad(b.center(k), p1, p2, p3, p4) {
				b.cells[k] = struct{}{}
			}
		}
	}
	b.areaM2 += quadArea(p1, p2, p3, p4)
}

// pointInQuad tests p against each edge with a cross product; p is inside
// when every edge turns the same way (points on an edge count as inside).
func pointInQuad(p, a, b, c, d geo.Point) bool {
	c1 := b.Sub(a).Cross(p.Sub(a))
	c2 := c.Sub(b).Cross(p.Sub(b))
	c3 := d.Sub(c).Cross(p.Sub(c))
	c4 := a.Sub(d).Cross(p.Sub(d))
	neg := c1 < 0 || c2 < 0 || c3 < 0 || c4 < 0
	pos := c1 > 0 || c2 > 0 || c3 > 0 || c4 > 0
	return !(neg && pos)
}

// quadArea is the shoelace area of the quad a-b-c-d, in square meters.
func quadArea(a, b, c, d geo.Point) float64 {
	s := a.E*(b.N-d.N) + b.E*(c.N-a.N) + c.E*(d.N-b.N) + d.E*(a.N-c.N)
	return math.Abs(s) / 2
}
