package archive

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"strings"
)

// The container format is a gob-encoded MemArchive, gzip optional by file
// extension. It stands in for the native archive database in local runs so
// the full pipeline can be exercised end to end without the external
// library.

// Save writes arch to path as a gob container.
func Save(path string, arch *MemArchive) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := gob.NewEncoder(f)
	return enc.Encode(arch)
}

// Open reads a gob container from path. Any failure is an OpenError.
func Open(path string) (Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	defer f.Close()

	var arch MemArchive
	dec := gob.NewDecoder(f)
	if err := dec.Decode(&arch); err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	if arch.Label == "" {
		arch.Label = baseName(path)
	}
	if arch.BadSpots == nil {
		arch.BadSpots = make(map[uint64]bool)
	}
	arch.FaultAt = -1
	return &arch, nil
}

func baseName(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}
