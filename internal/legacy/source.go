// Package legacy imports data written by earlier releases. Each collection
// has an ordered list of known formats tried newest first; the first one
// that parses wins. Nothing here is needed once legacy installs are gone.
package legacy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Source looks up raw legacy blobs by key.
type Source interface {
	Lookup(ctx context.Context, key string) ([]byte, bool, error)
}

// DirSource reads one <key>.json file per legacy key, e.g. an exported
// browser storage dump.
type DirSource struct {
	dir string
}

// NewDirSource returns a source rooted at dir.
func NewDirSource(dir string) DirSource { return DirSource{dir: dir} }

// Lookup implements Source. A missing file is reported as not found.
func (d DirSource) Lookup(_ context.Context, key string) ([]byte, bool, error) {
	if d.dir == "" {
		return nil, false, nil
	}
	if strings.ContainsAny(key, `/\`) || key == ".." {
		return nil, false, fmt.Errorf("invalid legacy key %q", key)
	}
	raw, err := os.ReadFile(filepath.Join(d.dir, key+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read legacy %s: %w", key, err)
	}
	return raw, true, nil
}

// MapSource serves blobs from memory.
type MapSource map[string]string

// Lookup implements Source.
func (m MapSource) Lookup(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}
