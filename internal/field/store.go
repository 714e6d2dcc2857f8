package field

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/furrow-data/fieldline/internal/coverage"
	"github.com/furrow-data/fieldline/internal/fsutil"
	"github.com/furrow-data/fieldline/internal/security"
)

// Files inside each field directory.
const (
	metaFile     = "field.txt"
	boundaryFile = "boundary.txt"
	tracksFile   = "tracks.txt"
	coverageFile = "coverage.txt"
)

// Store persists fields under a root directory, one subdirectory per
// field. Corrupt lines in any stored file are skipped individually; a load
// never fails because one record went bad.
type Store struct {
	root   string
	fs     fsutil.FileSystem
	covCfg coverage.Config
}

// NewStore returns a store rooted at dir. Pass fsutil.OSFileSystem{} for
// production use.
func NewStore(dir string, filesys fsutil.FileSystem, covCfg coverage.Config) *Store {
	return &Store{root: dir, fs: filesys, covCfg: covCfg}
}

func (s *Store) dir(name string) (string, error) {
	if err := security.ValidateName(name); err != nil {
		return "", fmt.Errorf("invalid field name: %v", err)
	}
	return filepath.Join(s.root, name), nil
}

// List returns the names of all stored fields, sorted.
func (s *Store) List() ([]string, error) {
	if !s.fs.Exists(s.root) {
		return nil, nil
	}
	entries, err := s.fs.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields: %v", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Create makes a new empty field and persists it.
func (s *Store) Create(name string) (*Field, error) {
	dir, err := s.dir(name)
	if err != nil {
		return nil, err
	}
	if s.fs.Exists(dir) {
		return nil, fmt.Errorf("field %q already exists", name)
	}
	f := New(name, s.covCfg)
	if err := s.Save(f); err != nil {
		return nil, err
	}
	return f, nil
}

// Open loads a stored field. Missing component files leave that part of
// the field empty; a field saved by a newer session still opens.
func (s *Store) Open(name string) (*Field, error) {
	dir, err := s.dir(name)
	if err != nil {
		return nil, err
	}
	if !s.fs.Exists(dir) {
		return nil, fmt.Errorf("field %q not found", name)
	}

	f := &Field{Name: name, Coverage: coverage.NewMapper(s.covCfg)}

	if data, err := s.fs.ReadFile(filepath.Join(dir, metaFile)); err == nil {
		readMeta(f, data)
	}
	if f.ID == "" {
		f.ID = uuid.New().String()
	}

	if data, err := s.fs.ReadFile(filepath.Join(dir, boundaryFile)); err == nil {
		b, err := readBoundary(data)
		if err != nil {
			log.Printf("field %q: dropping boundary: %v", name, err)
		} else {
			f.Boundary = b
		}
	}

	if data, err := s.fs.ReadFile(filepath.Join(dir, tracksFile)); err == nil {
		f.Tracks = readTracks(data)
	}

	if r, err := s.fs.Open(filepath.Join(dir, coverageFile)); err == nil {
		m, err := coverage.Load(r, s.covCfg)
		r.Close()
		if err != nil {
			log.Printf("field %q: dropping coverage: %v", name, err)
		} else {
			f.Coverage = m
		}
	}
	return f, nil
}

// Save writes the complete field state.
func (s *Store) Save(f *Field) error {
	dir, err := s.dir(f.Name)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create field directory: %v", err)
	}

	if err := s.fs.WriteFile(filepath.Join(dir, metaFile), writeMeta(f), 0644); err != nil {
		return fmt.Errorf("failed to write field meta: %v", err)
	}
	if f.Boundary != nil {
		if err := s.fs.WriteFile(filepath.Join(dir, boundaryFile), writeBoundary(f.Boundary), 0644); err != nil {
			return fmt.Errorf("failed to write boundary: %v", err)
		}
	}
	if len(f.Tracks) > 0 {
		if err := s.fs.WriteFile(filepath.Join(dir, tracksFile), writeTracks(f.Tracks), 0644); err != nil {
			return fmt.Errorf("failed to write tracks: %v", err)
		}
	}

	w, err := s.fs.Create(filepath.Join(dir, coverageFile))
	if err != nil {
		return fmt.Errorf("failed to create coverage file: %v", err)
	}
	if err := f.Coverage.Save(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Delete removes a stored field and everything in it.
func (s *Store) Delete(name string) error {
	dir, err := s.dir(name)
	if err != nil {
		return err
	}
	if !s.fs.Exists(dir) {
		return fmt.Errorf("field %q not found", name)
	}
	return s.fs.RemoveAll(dir)
}
