// Package field owns the per-field session context: the boundary, the
// saved guidance tracks, and the coverage map, plus an on-disk store that
// persists them one directory per field.
package field

import (
	"github.com/google/uuid"

	"github.com/furrow-data/fieldline/internal/boundary"
	"github.com/furrow-data/fieldline/internal/coverage"
	"github.com/furrow-data/fieldline/internal/guidance"
)

// Field is one loaded field. It owns the boundary and the coverage map for
// the session; guidance state is owned by the caller per active track.
type Field struct {
	Name     string
	ID       string
	Boundary *boundary.Boundary // nil until one is recorded
	Tracks   []*guidance.Track
	Coverage *coverage.Mapper
}

// New returns a fresh field with an empty coverage map.
func New(name string, covCfg coverage.Config) *Field {
	return &Field{
		Name:     name,
		ID:       uuid.New().String(),
		Coverage: coverage.NewMapper(covCfg),
	}
}

// Track returns the named track, or nil.
func (f *Field) Track(name string) *guidance.Track {
	for _, t := range f.Tracks {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// AddTrack stores a track, replacing any existing track of the same name.
func (f *Field) AddTrack(t *guidance.Track) {
	for i, old := range f.Tracks {
		if old.Name == t.Name {
			f.Tracks[i] = t
			return
		}
	}
	f.Tracks = append(f.Tracks, t)
}

// RemoveTrack deletes the named track and reports whether it existed.
func (f *Field) RemoveTrack(name string) bool {
	for i, t := range f.Tracks {
		if t.Name == name {
			f.Tracks = append(f.Tracks[:i], f.Tracks[i+1:]...)
			return true
		}
	}
	return false
}
