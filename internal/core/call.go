//
//  Copyright © Manetu Inc. All rights reserved.
//

package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/manetu/ocpihub/pkg/common"
	"github.com/manetu/ocpihub/pkg/concurrency"
	"github.com/manetu/ocpihub/pkg/core/types"
	"github.com/manetu/ocpihub/pkg/ocpi/model"
	"github.com/manetu/ocpihub/pkg/ocpi/schema"
	"github.com/manetu/ocpihub/pkg/patch"
	"github.com/manetu/ocpihub/pkg/store"
)

// Write outcomes reported to the observer.
const (
	outcomeCreated      = "created"
	outcomeUpdated      = "updated"
	outcomeDeleted      = "deleted"
	outcomeConflict     = "conflict"
	outcomePatchFailure = "patch_failure"
	outcomeRejected     = "rejected"
)

// call is an admitted request.
type call struct {
	ctx   context.Context
	req   *types.Request
	party *model.RemoteParty
	role  model.Role
	hub   *Hub
	kind  *kind
}

// own is the partition of the caller.
func (c *call) own() model.Partition {
	return c.party.Partition()
}

func (c *call) allowDowngrade() bool {
	s := c.hub.settings
	return s.AllowDowngrade || (s.AllowOverride && c.req.Query.ForceDowngrade)
}

func (c *call) filter() store.Filter {
	limit := c.req.Query.Limit
	if ceiling := c.hub.settings.PaginationMaxLimit; limit <= 0 || limit > ceiling {
		limit = ceiling
	}
	return store.Filter{From: c.req.Query.From, To: c.req.Query.To, Offset: c.req.Query.Offset, Limit: limit}
}

// precondition checks If-Match against the current version of the addressed
// object, when enforcement is on.  An absent object never matches.
func (c *call) precondition(found bool, current interface{}) error {
	if !c.hub.settings.EnforceIfMatch || c.req.IfMatch == "" {
		return nil
	}
	if !found {
		return common.NewError(common.ClassPrecondition, "If-Match given for an object that does not exist")
	}
	tag, err := concurrency.ComputeETag(current)
	if err != nil {
		return err
	}
	if !concurrency.Matches(c.req.IfMatch, tag) {
		return common.NewError(common.ClassPrecondition, "If-Match does not match the current version")
	}
	return nil
}

// object renders a single object with its entity tag, honouring If-None-Match.
func (c *call) object(v interface{}, at time.Time) types.Outcome {
	tag, err := concurrency.ComputeETag(v)
	if err != nil {
		return c.fail(err)
	}

	o := success(http.StatusOK, v)
	o.ETag = concurrency.Quote(tag)
	o.LastModified = at
	if c.req.IfNoneMatch != "" && concurrency.Matches(c.req.IfNoneMatch, tag) {
		o.HTTPStatus = http.StatusNotModified
		o.Data = nil
	}
	return o
}

// written renders a successful write.  The response carries no data, only
// the new entity tag and modification time.
func (c *call) written(v interface{}, at time.Time, created bool) types.Outcome {
	tag, err := concurrency.ComputeETag(v)
	if err != nil {
		return c.fail(err)
	}

	status := http.StatusOK
	outcome := outcomeUpdated
	if created {
		status = http.StatusCreated
		outcome = outcomeCreated
	}
	c.hub.observe(c.kind.name, outcome)

	o := success(status, nil)
	o.ETag = concurrency.Quote(tag)
	o.LastModified = at
	return o
}

// fail folds err into an outcome, reporting write failures to the observer.
func (c *call) fail(err error) types.Outcome {
	e := c.kind.fold(err)
	switch e.Class {
	case common.ClassConflict:
		c.hub.observe(c.kind.name, outcomeConflict)
	case common.ClassPatchFailure:
		c.hub.observe(c.kind.name, outcomePatchFailure)
	case common.ClassMalformed, common.ClassPrecondition:
		if c.req.Method != http.MethodGet {
			c.hub.observe(c.kind.name, outcomeRejected)
		}
	}
	return failure(e)
}

// fold maps any error of a component to its OCPI rendering.
func (k *kind) fold(err error) *common.OcpiError {
	var (
		oe *common.OcpiError
		vc *store.VersionConflict
		pf *patch.Failure
		sv *schema.Violation
	)

	switch {
	case errors.As(err, &oe):
		return oe
	case errors.As(err, &vc):
		return &common.OcpiError{Class: common.ClassConflict, StatusCode: common.StatusClientError, Reason: vc.Error(), Cause: err}
	case errors.As(err, &pf):
		return &common.OcpiError{Class: common.ClassPatchFailure, StatusCode: common.StatusInvalidParameters, Reason: pf.Error(), Cause: err}
	case errors.As(err, &sv):
		return &common.OcpiError{Class: common.ClassMalformed, StatusCode: common.StatusInvalidParameters, Reason: sv.Error(), Cause: err}
	case errors.Is(err, store.ErrNotFound):
		return &common.OcpiError{Class: common.ClassNotFound, StatusCode: k.notFound, Reason: "unknown " + k.singular, Cause: err}
	default:
		logger.Errorf(agent, "fold", "%s: unexpected failure: %+v", k.name, err)
		return common.Internal(err)
	}
}

func success(status int, data interface{}) types.Outcome {
	return types.Outcome{HTTPStatus: status, StatusCode: common.StatusSuccess, Message: "Success", Data: data}
}

func failure(e *common.OcpiError) types.Outcome {
	return types.Outcome{HTTPStatus: e.HTTPStatus(), StatusCode: e.StatusCode, Message: e.Reason}
}

func malformed(msg string) error {
	return common.NewError(common.ClassMalformed, msg)
}

func notAllowed(c *call) types.Outcome {
	return failure(common.NewError(common.ClassNotAllowed, c.req.Method+" is not supported on this "+c.kind.singular+" path"))
}

// decode parses a complete object of schema s from body.  Mandatory fields
// are checked first so that the client learns which one is missing; the
// typed decode then rejects unknown fields and wrong types.
func decode[T any](s *schema.Object, body []byte) (T, error) {
	var zero T

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil || doc == nil {
		return zero, malformed("body must be a JSON object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return zero, malformed("unexpected data after the JSON object")
	}
	if err := s.Validate(doc); err != nil {
		return zero, err
	}

	var out T
	strict := json.NewDecoder(bytes.NewReader(body))
	strict.DisallowUnknownFields()
	if err := strict.Decode(&out); err != nil {
		return zero, malformed("invalid body: " + err.Error())
	}
	return out, nil
}
