//
//  Copyright © Manetu Inc. All rights reserved.
//

package persistence

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/renameio"
	"github.com/pkg/errors"
)

// File stores the snapshot as a JSON document.  Each save writes a temporary
// file and renames it over the previous one, so a reader never observes a
// partial snapshot.
type File struct {
	path string
}

// NewFile creates a file backend writing to path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the snapshot location.
func (f *File) Path() string {
	return f.path
}

// Load implements Backend.  A missing file is an empty state.
func (f *File) Load() (*Snapshot, error) {
	data, err := os.ReadFile(f.path) // #nosec G304 -- operator supplied path
	if err != nil {
		if os.IsNotExist(err) {
			logger.SysInfof("no snapshot at %s, starting empty", f.path)
			return nil, nil
		}
		return nil, errors.Wrapf(err, "error reading snapshot %s", f.path)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(err, "error decoding snapshot %s", f.path)
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot %s has version %d, expected %d", f.path, s.Version, SnapshotVersion)
	}
	return &s, nil
}

// Save implements Backend.
func (f *File) Save(s *Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "error encoding snapshot")
	}
	if err := renameio.WriteFile(f.path, data, 0o600); err != nil {
		return errors.Wrapf(err, "error writing snapshot %s", f.path)
	}
	logger.Debugf(agent, "save", "wrote %d bytes to %s", len(data), f.path)
	return nil
}
