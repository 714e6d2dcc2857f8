package coverage

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/furrow-data/fieldline/internal/geo"
)

// Coverage file formats. V3 is current: a header, the cell size, one block
// per pass (section, color, vertex pair count, then left/right pairs), and
// a closing total-area checksum line. V2 is identical minus the cell size
// line. Anything else is treated as the legacy format: flat triangle-strip
// vertex lists, each preceded by a count line and a color marker line.
const (
	v3Header = "$CoverageV3"
	v2Header = "$CoverageV2"
)

// Save writes the mapper's passes in the V3 format. The bitmap itself is
// not stored; loading reconstructs it by replaying the saved pairs.
func (m *Mapper) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, v3Header)
	fmt.Fprintf(bw, "CellSize,%s\n", strconv.FormatFloat(m.bitmap.cellSize, 'g', -1, 64))
	for i := range m.passes {
		p := &m.passes[i]
		fmt.Fprintf(bw, "Pass,%d,%d,%d\n", p.Section, p.Color, len(p.Left))
		for j := range p.Left {
			fmt.Fprintf(bw, "%.3f,%.3f,%.3f,%.3f\n",
				p.Left[j].E, p.Left[j].N, p.Right[j].E, p.Right[j].N)
		}
	}
	fmt.Fprintf(bw, "Area,%s\n", strconv.FormatFloat(m.bitmap.areaM2, 'g', -1, 64))
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write coverage: %v", err)
	}
	return nil
}

// Load reads a coverage file in any supported format and rebuilds the full
// two-layer state: every stored quad is replayed through the same
// rasterizer used live, so the bitmap comes back exact, and the total
// worked area is restored from the checksum line when one is present.
// Malformed lines are skipped with a diagnostic; loading continues. An
// unrecognized version header falls back to the legacy parser.
func Load(r io.Reader, cfg Config) (*Mapper, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("failed to read coverage: %v", err)
		}
		return NewMapper(cfg), nil
	}

	var m *Mapper
	area := -1.0
	switch first := strings.TrimSpace(sc.Text()); first {
	case v3Header:
		m, area = loadVersioned(sc, cfg, true)
	case v2Header:
		m, area = loadVersioned(sc, cfg, false)
	default:
		m = loadLegacy(sc, cfg, first)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read coverage: %v", err)
	}

	// Replay every stored quad through the live rasterizer.
	for i := range m.passes {
		p := &m.passes[i]
		for j := 1; j < len(p.Left); j++ {
			m.bitmap.MarkQuad(p.Left[j-1], p.Right[j-1], p.Right[j], p.Left[j])
		}
	}
	if area >= 0 {
		m.bitmap.areaM2 = area
	}
	return m, nil
}

// loadVersioned parses the V3/V2 body: an optional CellSize line, Pass
// headers, vertex pair lines, and the Area checksum. Returns the checksum
// or -1 if none was read.
func loadVersioned(sc *bufio.Scanner, cfg Config, wantCellSize bool) (*Mapper, float64) {
	m := NewMapper(cfg)
	area := -1.0

	var cur *Pass
	lineNo := 1
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		switch fields[0] {
		case "CellSize":
			cs := 0.0
			var err error
			if len(fields) == 2 {
				cs, err = strconv.ParseFloat(fields[1], 64)
			}
			if !wantCellSize || err != nil || cs <= 0 {
				log.Printf("coverage: bad cell size on line %d: %q", lineNo, line)
				continue
			}
			m.cfg.CellSizeMeters = cs
			m.bitmap = NewBitmap(cs)

		case "Pass":
			cur = nil
			if len(fields) != 4 {
				log.Printf("coverage: bad pass header on line %d: %q", lineNo, line)
				continue
			}
			section, err1 := strconv.Atoi(fields[1])
			color, err2 := strconv.Atoi(fields[2])
			count, err3 := strconv.Atoi(fields[3])
			if err1 != nil || err2 != nil || err3 != nil || count < 0 {
				log.Printf("coverage: bad pass header on line %d: %q", lineNo, line)
				continue
			}
			m.passes = append(m.passes, Pass{
				Section: section,
				Color:   color,
				Left:    make([]geo.Point, 0, count),
				Right:   make([]geo.Point, 0, count),
			})
			cur = &m.passes[len(m.passes)-1]

		case "Area":
			a := -1.0
			var err error
			if len(fields) == 2 {
				a, err = strconv.ParseFloat(fields[1], 64)
			}
			if err != nil || a < 0 {
				log.Printf("coverage: bad area line %d: %q", lineNo, line)
				continue
			}
			area = a

		default:
			le, ln, re, rn, ok := parsePair(fields)
			if cur == nil || !ok {
				log.Printf("coverage: skipping line %d: %q", lineNo, line)
				continue
			}
			cur.Left = append(cur.Left, geo.Point{E: le, N: ln})
			cur.Right = append(cur.Right, geo.Point{E: re, N: rn})
		}
	}
	return m, area
}

// loadLegacy converts the old triangle-strip format: blocks of a vertex
// count, a color marker, then count "easting,northing" lines alternating
// left/right. All legacy strips land on section 0, one pass per block.
func loadLegacy(sc *bufio.Scanner, cfg Config, first string) *Mapper {
	m := NewMapper(cfg)

	line := first
	lineNo := 1
	next := func() bool {
		if !sc.Scan() {
			return false
		}
		lineNo++
		line = strings.TrimSpace(sc.Text())
		return true
	}

	for {
		for line == "" {
			if !next() {
				return m
			}
		}
		count, err := strconv.Atoi(line)
		if err != nil || count < 0 {
			log.Printf("coverage: skipping line %d: %q", lineNo, line)
			if !next() {
				return m
			}
			continue
		}
		if !next() {
			return m
		}
		color, err := strconv.Atoi(line)
		if err != nil {
			log.Printf("coverage: bad color marker on line %d: %q", lineNo, line)
			color = 0
		}

		p := Pass{Section: 0, Color: color}
		var strip []geo.Point
		for i := 0; i < count && next(); i++ {
			fields := strings.Split(line, ",")
			if len(fields) != 2 {
				log.Printf("coverage: skipping line %d: %q", lineNo, line)
				continue
			}
			e, err1 := strconv.ParseFloat(fields[0], 64)
			n, err2 := strconv.ParseFloat(fields[1], 64)
			if err1 != nil || err2 != nil {
				log.Printf("coverage: skipping line %d: %q", lineNo, line)
				continue
			}
			strip = append(strip, geo.Point{E: e, N: n})
		}
		// Strip order is L0 R0 L1 R1 ...; a trailing unpaired vertex is
		// dropped.
		for i := 0; i+1 < len(strip); i += 2 {
			p.Left = append(p.Left, strip[i])
			p.Right = append(p.Right, strip[i+1])
		}
		if len(p.Left) > 0 {
			m.passes = append(m.passes, p)
		}
		if !next() {
			return m
		}
	}
}

// parsePair parses a "leftE,leftN,rightE,rightN" vertex line.
func parsePair(fields []string) (le, ln, re, rn float64, ok bool) {
	if len(fields) != 4 {
		return 0, 0, 0, 0, false
	}
	var errs [4]error
	le, errs[0] = strconv.ParseFloat(fields[0], 64)
	ln, errs[1] = strconv.ParseFloat(fields[1], 64)
	re, errs[2] = strconv.ParseFloat(fields[2], 64)
	rn, errs[3] = strconv.ParseFloat(fields[3], 64)
	for _, err := range errs {
		if err != nil {
			return 0, 0, 0, 0, false
		}
	}
	return le, ln, re, rn, true
}
