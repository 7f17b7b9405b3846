//
//  Copyright © Manetu Inc. All rights reserved.
//

package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/manetu/ocpihub/pkg/common"
	"github.com/manetu/ocpihub/pkg/core/accesslog"
	"github.com/manetu/ocpihub/pkg/core/types"
	"github.com/manetu/ocpihub/pkg/identity"
	"github.com/manetu/ocpihub/pkg/ocpi/model"
)

// rule is what an operation demands of the caller.  A caller admitted in
// the bound role must also address its own partition.
type rule struct {
	roles []model.Role
	bound model.Role
}

// gate decides whether a request may proceed.  It consults the registry only;
// it never looks at stored resources, so a denial reveals nothing about them.
type gate struct {
	registry *identity.Registry
	audit    accesslog.Stream
	env      map[string]string
	clock    func() time.Time
}

func (g *gate) admit(req *types.Request, r rule) (*model.RemoteParty, model.Role, *common.OcpiError) {
	party, role, err := g.registry.AuthorizeAny(req.Token, r.roles...)
	if err == nil && r.bound != "" && role == r.bound && len(req.Segments) >= 2 {
		if req.Segments[0] != party.CountryCode || req.Segments[1] != party.PartyID {
			err = fmt.Errorf("%w: %s may not access partition %s*%s", identity.ErrForbidden,
				party.Key(), req.Segments[0], req.Segments[1])
		}
	}

	g.record(req, party, role, r, err)

	if err != nil {
		logger.Debugf(agent, "admit", "denied %s %s: %v", req.Method, req.Kind, err)
		return nil, "", deny(err)
	}
	return party, role, nil
}

func deny(err error) *common.OcpiError {
	switch {
	case errors.Is(err, identity.ErrUnauthorized):
		return &common.OcpiError{Class: common.ClassUnauthorized, StatusCode: common.StatusClientError, Reason: "invalid or missing token", Cause: err}
	case errors.Is(err, identity.ErrForbidden):
		return &common.OcpiError{Class: common.ClassForbidden, StatusCode: common.StatusClientError, Reason: err.Error(), Cause: err}
	default:
		return common.Internal(err)
	}
}

func (g *gate) record(req *types.Request, party *model.RemoteParty, role model.Role, r rule, err error) {
	ar := &accesslog.AccessRecord{
		ID:        uuid.New().String(),
		Timestamp: g.clock().UTC(),
		RequestID: req.RequestID,
		Operation: req.Method + " " + req.Kind,
		Resource:  strings.Join(req.Segments, "/"),
		Decision:  accesslog.Grant,
		Role:      string(role),
	}
	if party != nil {
		ar.Party = party.Key()
	}
	if err != nil {
		ar.Decision = accesslog.Deny
		ar.Reason = err.Error()
		if ar.Role == "" {
			names := make([]string, len(r.roles))
			for i, role := range r.roles {
				names[i] = string(role)
			}
			ar.Role = strings.Join(names, ",")
		}
	}
	if len(g.env) > 0 {
		ar.Metadata = make(map[string]string, len(g.env))
		for k, v := range g.env {
			ar.Metadata[k] = v
		}
	}

	if g.audit != nil {
		if err := g.audit.Send(ar); err != nil {
			logger.Errorf(agent, "record", "unable to send message for accesslog %+v", err)
		}
	}
}
