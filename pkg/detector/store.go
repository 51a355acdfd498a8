package detector

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ModelStore persists trained model artifacts under one directory, one gob
// file per fixed model identifier.
type ModelStore struct {
	dir string
}

// NewModelStore creates the store, making the directory if needed.
func NewModelStore(dir string) (*ModelStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("model store %s: %w", dir, err)
	}
	return &ModelStore{dir: dir}, nil
}

func (s *ModelStore) path(name string) string {
	return filepath.Join(s.dir, name+".gob")
}

// save writes the artifact atomically: encode to a temp file, then rename
// over the target so a crash never leaves a half-written model.
func (s *ModelStore) save(name string, v any) error {
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("save %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

// load decodes the artifact into v. A missing file is not an error: the
// second return is false and v is untouched.
func (s *ModelStore) load(name string, v any) (bool, error) {
	f, err := os.Open(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", name, err)
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(v); err != nil {
		return false, fmt.Errorf("load %s: %w", name, err)
	}
	return true, nil
}
