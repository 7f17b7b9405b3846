//
//  Copyright © Manetu Inc. All rights reserved.
//

package persistence

import (
	"sync"

	"github.com/mohae/deepcopy"
)

// Memory keeps the last snapshot in process memory.  It is the backend of a
// hub configured without a store path.
type Memory struct {
	mu    sync.Mutex
	last  *Snapshot
	saves int
}

// NewMemory creates an empty memory backend.
func NewMemory() *Memory {
	return &Memory{}
}

// Load implements Backend.
func (m *Memory) Load() (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.last == nil {
		return nil, nil
	}
	return deepcopy.Copy(m.last).(*Snapshot), nil
}

// Save implements Backend.
func (m *Memory) Save(s *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.last = deepcopy.Copy(s).(*Snapshot)
	m.saves++
	return nil
}

// Saves returns how many snapshots were saved.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
