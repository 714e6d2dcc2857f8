package field

import (
	"bufio"
	"bytes"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/furrow-data/fieldline/internal/boundary"
	"github.com/furrow-data/fieldline/internal/geo"
	"github.com/furrow-data/fieldline/internal/guidance"
)

// Field file formats. Every file is line oriented CSV with a version
// header; vertex lines are "easting,northing,heading". Malformed lines are
// skipped with a diagnostic and parsing continues.
const (
	metaHeader     = "$FieldV1"
	boundaryHeader = "$BoundaryV1"
	tracksHeader   = "$TracksV1"
)

func writeMeta(f *Field) []byte {
	var b bytes.Buffer
	fmt.Fprintln(&b, metaHeader)
	fmt.Fprintf(&b, "ID,%s\n", f.ID)
	fmt.Fprintf(&b, "Name,%s\n", f.Name)
	return b.Bytes()
}

func readMeta(f *Field, data []byte) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		key, val, ok := strings.Cut(line, ",")
		if !ok {
			continue
		}
		switch key {
		case "ID":
			f.ID = val
		case "Name":
			if val != "" {
				f.Name = val
			}
		}
	}
}

// Ring kinds in boundary.txt.
const (
	ringOuter        = "outer"
	ringHole         = "hole"
	ringDriveThrough = "drivethrough"
)

func writeBoundary(b *boundary.Boundary) []byte {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, boundaryHeader)
	writeRing(&buf, ringOuter, b.Outer)
	for _, h := range b.Holes {
		kind := ringHole
		if h.DriveThrough {
			kind = ringDriveThrough
		}
		writeRing(&buf, kind, h.Ring)
	}
	return buf.Bytes()
}

func writeRing(buf *bytes.Buffer, kind string, r boundary.Ring) {
	fmt.Fprintf(buf, "Ring,%s,%d\n", kind, len(r))
	for _, p := range r {
		fmt.Fprintf(buf, "%.3f,%.3f,%.5f\n", p.E, p.N, p.Heading)
	}
}

// readBoundary parses boundary.txt. Bad vertex lines are dropped; a ring
// that ends up degenerate is dropped whole. Only a missing or degenerate
// outer ring fails the parse.
func readBoundary(data []byte) (*boundary.Boundary, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))

	var outer boundary.Ring
	var holes []boundary.Hole
	var cur boundary.Ring
	var curKind string

	flush := func() {
		if curKind == "" {
			return
		}
		if len(cur) < 3 {
			log.Printf("boundary: dropping %s ring with %d points", curKind, len(cur))
		} else {
			switch curKind {
			case ringOuter:
				if outer != nil {
					log.Printf("boundary: ignoring extra outer ring")
				} else {
					outer = cur
				}
			case ringHole:
				holes = append(holes, boundary.Hole{Ring: cur})
			case ringDriveThrough:
				holes = append(holes, boundary.Hole{Ring: cur, DriveThrough: true})
			}
		}
		cur, curKind = nil, ""
	}

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line == boundaryHeader {
			continue
		}
		fields := strings.Split(line, ",")
		if fields[0] == "Ring" {
			flush()
			if len(fields) != 3 {
				log.Printf("boundary: bad ring header on line %d: %q", lineNo, line)
				continue
			}
			switch fields[1] {
			case ringOuter, ringHole, ringDriveThrough:
				curKind = fields[1]
			default:
				log.Printf("boundary: unknown ring kind on line %d: %q", lineNo, line)
			}
			continue
		}

		p, ok := parseVertex(fields)
		if curKind == "" || !ok {
			log.Printf("boundary: skipping line %d: %q", lineNo, line)
			continue
		}
		cur = append(cur, p)
	}
	flush()

	if outer == nil {
		return nil, fmt.Errorf("no usable outer ring")
	}
	return boundary.NewBoundary(outer, holes...)
}

func writeTracks(tracks []*guidance.Track) []byte {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, tracksHeader)
	for _, t := range tracks {
		// Name goes last so commas in it cannot break the header.
		fmt.Fprintf(&buf, "Track,%d,%s\n", len(t.Points), t.Name)
		for _, p := range t.Points {
			fmt.Fprintf(&buf, "%.3f,%.3f,%.5f\n", p.E, p.N, p.Heading)
		}
	}
	return buf.Bytes()
}

// readTracks parses tracks.txt, keeping every track that still has enough
// usable points.
func readTracks(data []byte) []*guidance.Track {
	sc := bufio.NewScanner(bytes.NewReader(data))

	var tracks []*guidance.Track
	var name string
	var pts []geo.PointH
	inTrack := false

	flush := func() {
		if !inTrack {
			return
		}
		t, err := guidance.NewTrack(name, pts)
		if err != nil {
			log.Printf("tracks: dropping %q: %v", name, err)
		} else {
			tracks = append(tracks, t)
		}
		name, pts, inTrack = "", nil, false
	}

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line == tracksHeader {
			continue
		}
		fields := strings.Split(line, ",")
		if fields[0] == "Track" {
			flush()
			if len(fields) < 3 {
				log.Printf("tracks: bad track header on line %d: %q", lineNo, line)
				continue
			}
			name = strings.Join(fields[2:], ",")
			inTrack = true
			continue
		}

		p, ok := parseVertex(fields)
		if !inTrack || !ok {
			log.Printf("tracks: skipping line %d: %q", lineNo, line)
			continue
		}
		pts = append(pts, p)
	}
	flush()
	return tracks
}

// parseVertex parses an "easting,northing,heading" line.
func parseVertex(fields []string) (geo.PointH, bool) {
	if len(fields) != 3 {
		return geo.PointH{}, false
	}
	e, err1 := strconv.ParseFloat(fields[0], 64)
	n, err2 := strconv.ParseFloat(fields[1], 64)
	h, err3 := strconv.ParseFloat(fields[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return geo.PointH{}, false
	}
	return geo.NewPointH(e, n, h), true
}
