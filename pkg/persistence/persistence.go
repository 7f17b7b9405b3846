//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package persistence stores and reloads the hub state: every resource and
// every registered party.  Correctness of the hub never depends on a flush
// having happened; a backend only shortens what is lost on a crash.
package persistence

import (
	"time"

	"github.com/manetu/ocpihub/internal/logging"
	"github.com/manetu/ocpihub/pkg/ocpi/model"
)

var logger = logging.GetLogger("ocpihub.persistence")

const agent = "persistence"

// SnapshotVersion is the format version written by this build.
const SnapshotVersion = 1

// Snapshot is the complete hub state.
type Snapshot struct {
	Version   int                    `json:"version"`
	SavedAt   time.Time              `json:"saved_at"`
	Parties   []*model.RemoteParty   `json:"parties"`
	Locations []*model.Location      `json:"locations"`
	Sessions  []*model.Session       `json:"sessions"`
	Tariffs   []*model.Tariff        `json:"tariffs"`
	CDRs      []*model.CDR           `json:"cdrs"`
	Tokens    []*model.Token         `json:"tokens"`
	Commands  []*model.CommandResult `json:"commands"`
}

// Backend durably stores snapshots.
type Backend interface {
	// Load returns the last saved snapshot, or nil when nothing was saved yet.
	Load() (*Snapshot, error)
	// Save replaces the stored snapshot.
	Save(s *Snapshot) error
}
