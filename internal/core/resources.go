//
//  Copyright © Manetu Inc. All rights reserved.
//

package core

import (
	"fmt"
	"net/http"

	"github.com/manetu/ocpihub/pkg/common"
	"github.com/manetu/ocpihub/pkg/core/types"
	"github.com/manetu/ocpihub/pkg/ocpi/model"
	"github.com/manetu/ocpihub/pkg/patch"
	"github.com/manetu/ocpihub/pkg/resolve"
	"github.com/manetu/ocpihub/pkg/store"
)

// resources serves a flat module addressed by country code, party id and id.
type resources[T model.Resource] struct {
	hub   *Hub
	kind  *kind
	store *store.Store[T]
	chain *resolve.Chain
}

func newResources[T model.Resource](h *Hub, k *kind, s *store.Store[T]) *resources[T] {
	return &resources[T]{hub: h, kind: k, store: s, chain: resolve.ResourceChain(k.singular, s, k.notFound)}
}

func (r *resources[T]) info() *kind {
	return r.kind
}

func (r *resources[T]) serve(c *call) types.Outcome {
	if !r.kind.accepts(c.req.Method) {
		return notAllowed(c)
	}

	switch c.req.Method {
	case http.MethodGet:
		if len(c.req.Segments) < 3 {
			return r.list(c)
		}
		return r.get(c)
	case http.MethodPut:
		return r.put(c)
	case http.MethodPatch:
		return r.patch(c)
	case http.MethodDelete:
		return r.remove(c)
	case http.MethodPost:
		return r.insert(c)
	}
	return notAllowed(c)
}

// address resolves the path of a single object.
func (r *resources[T]) address(c *call, failOnMissing bool) (resolve.Handle, error) {
	if len(c.req.Segments) < 3 {
		return resolve.Handle{}, malformed("missing " + r.kind.singular + " id")
	}
	return r.chain.Resolve(c.req.Segments, failOnMissing)
}

// list serves a page.  A reader without a partition sees every partition; an
// owner without a partition sees its own.
func (r *resources[T]) list(c *call) types.Outcome {
	f := c.filter()

	var page store.Page[T]
	switch {
	case len(c.req.Segments) == 0 && c.role == r.kind.reader:
		page = r.store.ListAll(f)
	case len(c.req.Segments) == 0:
		page = r.store.List(c.own(), f)
	default:
		h, err := r.chain.Resolve(c.req.Segments, false)
		if err != nil {
			return c.fail(err)
		}
		page = r.store.List(h.Partition, f)
	}

	return paged(page.Items, page.Total, f)
}

func paged[T any](items []T, total int, f store.Filter) types.Outcome {
	o := success(http.StatusOK, items)
	o.Total = total
	o.Limit = f.Limit

	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	if next := offset + len(items); next < total {
		o.HasMore = true
		o.NextOffset = next
	}
	return o
}

func (r *resources[T]) get(c *call) types.Outcome {
	h, err := r.address(c, true)
	if err != nil {
		return c.fail(err)
	}
	item, err := r.store.Get(h.Partition, h.ID)
	if err != nil {
		return c.fail(err)
	}
	return c.object(item, item.GetLastUpdated())
}

func matchPath(item model.Resource, h resolve.Handle) error {
	if item.GetPartition() != h.Partition || item.GetID() != h.ID {
		return malformed(fmt.Sprintf("object %s/%s does not match the path %s/%s",
			item.GetPartition(), item.GetID(), h.Partition, h.ID))
	}
	return nil
}

// put replaces or creates a complete object.
func (r *resources[T]) put(c *call) types.Outcome {
	h, err := r.address(c, false)
	if err != nil {
		return c.fail(err)
	}
	item, err := decode[T](r.kind.schema, c.req.Body)
	if err != nil {
		return c.fail(err)
	}
	if err := matchPath(item, h); err != nil {
		return c.fail(err)
	}

	stored, created, err := r.store.PutIf(item, c.allowDowngrade(), func(existing T, found bool) error {
		return c.precondition(found, existing)
	})
	if err != nil {
		return c.fail(err)
	}
	return c.written(stored, stored.GetLastUpdated(), created)
}

// patch merges the body into an existing object.
func (r *resources[T]) patch(c *call) types.Outcome {
	h, err := r.address(c, true)
	if err != nil {
		return c.fail(err)
	}

	stored, err := r.store.Update(h.Partition, h.ID, func(current T) (T, error) {
		if err := c.precondition(true, current); err != nil {
			return current, err
		}
		return patch.Apply(r.hub.patcher, r.kind.schema, r.kind.name, current, c.req.Body)
	}, c.allowDowngrade())
	if err != nil {
		return c.fail(err)
	}
	return c.written(stored, stored.GetLastUpdated(), false)
}

func (r *resources[T]) remove(c *call) types.Outcome {
	h, err := r.address(c, true)
	if err != nil {
		return c.fail(err)
	}
	err = r.store.RemoveIf(h.Partition, h.ID, func(existing T) error {
		return c.precondition(true, existing)
	})
	if err != nil {
		return c.fail(err)
	}

	c.hub.observe(r.kind.name, outcomeDeleted)
	return success(http.StatusOK, nil)
}

// insert creates an object that may never be replaced.  The object names its
// own partition, which must be the caller's.
func (r *resources[T]) insert(c *call) types.Outcome {
	if len(c.req.Segments) != 0 {
		return notAllowed(c)
	}
	item, err := decode[T](r.kind.schema, c.req.Body)
	if err != nil {
		return c.fail(err)
	}
	p := item.GetPartition()
	if p != c.own() {
		return c.fail(common.NewError(common.ClassForbidden,
			fmt.Sprintf("%s may not push a %s of partition %s", c.party.Key(), r.kind.singular, p)))
	}
	if !resolve.ValidID(item.GetID()) {
		return c.fail(malformed(fmt.Sprintf("invalid %s id %q", r.kind.singular, item.GetID())))
	}

	stored, _, err := r.store.PutIf(item, c.allowDowngrade(), func(_ T, found bool) error {
		if found {
			return common.NewError(common.ClassConflict, fmt.Sprintf("%s %s already exists", r.kind.singular, item.GetID()))
		}
		return nil
	})
	if err != nil {
		return c.fail(err)
	}

	o := c.written(stored, stored.GetLastUpdated(), true)
	o.Location = fmt.Sprintf("%s%s/%s/%s/%s/%s", r.hub.settings.BasePath, types.ModulePath,
		r.kind.name, p.CountryCode, p.PartyID, stored.GetID())
	return o
}
