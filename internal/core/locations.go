//
//  Copyright © Manetu Inc. All rights reserved.
//

package core

import (
	"fmt"
	"net/http"
	"time"

	"github.com/manetu/ocpihub/pkg/common"
	"github.com/manetu/ocpihub/pkg/concurrency"
	"github.com/manetu/ocpihub/pkg/core/types"
	"github.com/manetu/ocpihub/pkg/ocpi/model"
	"github.com/manetu/ocpihub/pkg/ocpi/schema"
	"github.com/manetu/ocpihub/pkg/patch"
	"github.com/manetu/ocpihub/pkg/resolve"
	"github.com/manetu/ocpihub/pkg/store"
)

// locations adds the EVSE and Connector sub-paths to the location module.
// A child is always written through its location, which is the unit of
// storage and of concurrency control.
type locations struct {
	*resources[*model.Location]
}

// Exists implements resolve.Lookup.
func (l *locations) Exists(p model.Partition, id string) bool {
	return l.store.Exists(p, id)
}

// HasEVSE implements resolve.LocationLookup.
func (l *locations) HasEVSE(p model.Partition, locationID, uid string) bool {
	loc, err := l.store.Get(p, locationID)
	return err == nil && loc.FindEVSE(uid) >= 0
}

// HasConnector implements resolve.LocationLookup.
func (l *locations) HasConnector(p model.Partition, locationID, uid, connectorID string) bool {
	loc, err := l.store.Get(p, locationID)
	if err != nil {
		return false
	}
	i := loc.FindEVSE(uid)
	return i >= 0 && loc.EVSEs[i].FindConnector(connectorID) >= 0
}

func (l *locations) serve(c *call) types.Outcome {
	if len(c.req.Segments) <= 3 {
		return l.resources.serve(c)
	}

	switch c.req.Method {
	case http.MethodGet:
		return l.getChild(c)
	case http.MethodPut:
		return l.putChild(c)
	case http.MethodPatch:
		return l.patchChild(c)
	case http.MethodDelete:
		return l.removeChild(c)
	}
	return notAllowed(c)
}

// child returns the EVSE or Connector addressed by h inside loc.
func child(loc *model.Location, h resolve.Handle) (interface{}, time.Time, bool) {
	i := loc.FindEVSE(h.EVSE)
	if i < 0 {
		return nil, time.Time{}, false
	}
	evse := &loc.EVSEs[i]
	if h.Connector == "" {
		return evse, evse.LastUpdated, true
	}
	j := evse.FindConnector(h.Connector)
	if j < 0 {
		return nil, time.Time{}, false
	}
	return &evse.Connectors[j], evse.Connectors[j].LastUpdated, true
}

func unknownChild(h resolve.Handle) error {
	if h.Connector != "" {
		return common.NewErrorWithCode(common.ClassNotFound, common.StatusUnknownLocation,
			fmt.Sprintf("unknown connector_id %q", h.Connector))
	}
	return common.NewErrorWithCode(common.ClassNotFound, common.StatusUnknownLocation,
		fmt.Sprintf("unknown evse_uid %q", h.EVSE))
}

// bump moves the parent's last_updated forward to at, never backward.
func bump(current *time.Time, at time.Time) {
	if at.After(*current) {
		*current = at
	}
}

func (l *locations) getChild(c *call) types.Outcome {
	h, err := l.chain.Resolve(c.req.Segments, true)
	if err != nil {
		return c.fail(err)
	}
	loc, err := l.store.Get(h.Partition, h.ID)
	if err != nil {
		return c.fail(err)
	}
	v, at, ok := child(loc, h)
	if !ok {
		return c.fail(unknownChild(h))
	}
	return c.object(v, at)
}

// putChild replaces or appends a complete EVSE or Connector.  The child is
// version checked on its own last_updated; its parents only move forward.
func (l *locations) putChild(c *call) types.Outcome {
	h, err := l.chain.Resolve(c.req.Segments, false)
	if err != nil {
		return c.fail(err)
	}
	if h.Connector == "" {
		return l.putEVSE(c, h)
	}
	return l.putConnector(c, h)
}

func (l *locations) putEVSE(c *call, h resolve.Handle) types.Outcome {
	evse, err := decode[*model.EVSE](schema.EVSE, c.req.Body)
	if err != nil {
		return c.fail(err)
	}
	if evse.UID != h.EVSE {
		return c.fail(malformed(fmt.Sprintf("evse uid %q does not match the path %q", evse.UID, h.EVSE)))
	}

	created := false
	stored, err := l.store.Update(h.Partition, h.ID, func(loc *model.Location) (*model.Location, error) {
		i := loc.FindEVSE(h.EVSE)
		if i < 0 {
			if err := c.precondition(false, nil); err != nil {
				return nil, err
			}
			loc.EVSEs = append(loc.EVSEs, *evse)
			created = true
		} else {
			cur := &loc.EVSEs[i]
			if err := c.precondition(true, cur); err != nil {
				return nil, err
			}
			if d := concurrency.DecideTimes(cur.LastUpdated, evse.LastUpdated, c.allowDowngrade()); !d.Accepted() {
				return nil, &store.VersionConflict{Rejected: evse.LastUpdated, Stored: cur.LastUpdated}
			}
			loc.EVSEs[i] = *evse
		}
		bump(&loc.LastUpdated, evse.LastUpdated)
		return loc, nil
	}, true)
	if err != nil {
		return c.fail(err)
	}
	return l.writtenChild(c, stored, h, created)
}

func (l *locations) putConnector(c *call, h resolve.Handle) types.Outcome {
	conn, err := decode[*model.Connector](schema.Connector, c.req.Body)
	if err != nil {
		return c.fail(err)
	}
	if conn.ID != h.Connector {
		return c.fail(malformed(fmt.Sprintf("connector id %q does not match the path %q", conn.ID, h.Connector)))
	}

	created := false
	stored, err := l.store.Update(h.Partition, h.ID, func(loc *model.Location) (*model.Location, error) {
		i := loc.FindEVSE(h.EVSE)
		if i < 0 {
			return nil, unknownChild(resolve.Handle{EVSE: h.EVSE})
		}
		evse := &loc.EVSEs[i]
		j := evse.FindConnector(h.Connector)
		if j < 0 {
			if err := c.precondition(false, nil); err != nil {
				return nil, err
			}
			evse.Connectors = append(evse.Connectors, *conn)
			created = true
		} else {
			cur := &evse.Connectors[j]
			if err := c.precondition(true, cur); err != nil {
				return nil, err
			}
			if d := concurrency.DecideTimes(cur.LastUpdated, conn.LastUpdated, c.allowDowngrade()); !d.Accepted() {
				return nil, &store.VersionConflict{Rejected: conn.LastUpdated, Stored: cur.LastUpdated}
			}
			evse.Connectors[j] = *conn
		}
		bump(&evse.LastUpdated, conn.LastUpdated)
		bump(&loc.LastUpdated, evse.LastUpdated)
		return loc, nil
	}, true)
	if err != nil {
		return c.fail(err)
	}
	return l.writtenChild(c, stored, h, created)
}

func (l *locations) writtenChild(c *call, loc *model.Location, h resolve.Handle, created bool) types.Outcome {
	v, at, ok := child(loc, h)
	if !ok {
		return c.fail(unknownChild(h))
	}
	return c.written(v, at, created)
}

// patchChild nests the child patch into a patch of the location, so
// that the child and every parent are merged and stamped in one write.
func (l *locations) patchChild(c *call) types.Outcome {
	h, err := l.chain.Resolve(c.req.Segments, true)
	if err != nil {
		return c.fail(err)
	}

	doc := c.req.Body
	if h.Connector != "" {
		if doc, err = patch.Nest(doc, schema.EVSE, "connectors", h.Connector); err != nil {
			return c.fail(err)
		}
	}
	if doc, err = patch.Nest(doc, schema.Location, "evses", h.EVSE); err != nil {
		return c.fail(err)
	}

	stored, err := l.store.Update(h.Partition, h.ID, func(loc *model.Location) (*model.Location, error) {
		v, _, ok := child(loc, h)
		if err := c.precondition(ok, v); err != nil {
			return nil, err
		}
		return patch.Apply(l.hub.patcher, schema.Location, l.kind.name, loc, doc)
	}, c.allowDowngrade())
	if err != nil {
		return c.fail(err)
	}

	return l.writtenChild(c, stored, h, false)
}

// removeChild marks an EVSE REMOVED; an EVSE is never dropped from its
// location.  Connectors cannot be removed on their own.
func (l *locations) removeChild(c *call) types.Outcome {
	if len(c.req.Segments) > 4 {
		return notAllowed(c)
	}
	h, err := l.chain.Resolve(c.req.Segments, true)
	if err != nil {
		return c.fail(err)
	}

	now := l.hub.patcher.Now()
	stored, err := l.store.Update(h.Partition, h.ID, func(loc *model.Location) (*model.Location, error) {
		i := loc.FindEVSE(h.EVSE)
		if i < 0 {
			return nil, unknownChild(h)
		}
		evse := &loc.EVSEs[i]
		if err := c.precondition(true, evse); err != nil {
			return nil, err
		}
		evse.Status = model.EVSEStatusRemoved
		evse.LastUpdated = now
		bump(&loc.LastUpdated, now)
		return loc, nil
	}, true)
	if err != nil {
		return c.fail(err)
	}

	return l.writtenChild(c, stored, h, false)
}
