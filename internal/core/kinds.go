//
//  Copyright © Manetu Inc. All rights reserved.
//

package core

import (
	"net/http"

	"github.com/manetu/ocpihub/pkg/common"
	"github.com/manetu/ocpihub/pkg/core/types"
	"github.com/manetu/ocpihub/pkg/ocpi/model"
	"github.com/manetu/ocpihub/pkg/ocpi/schema"
	"github.com/manetu/ocpihub/pkg/resolve"
)

// kind describes one module: who pushes it, who reads it and how it fails.
type kind struct {
	name     string
	singular string
	// owner is the role that pushes objects; it may only write its own partition.
	owner model.Role
	// reader is the counterpart role that reads every partition.
	reader   model.Role
	notFound int
	schema   *schema.Object
	// methods lists the write methods the module accepts.
	methods map[string]bool
	// partitioned is false when the path does not start with a partition.
	partitioned bool
}

func (k *kind) rule(method string) rule {
	if method == http.MethodGet {
		return rule{roles: []model.Role{k.reader, k.owner}, bound: k.owner}
	}
	r := rule{roles: []model.Role{k.owner}}
	if k.partitioned {
		r.bound = k.owner
	}
	return r
}

func (k *kind) accepts(method string) bool {
	return method == http.MethodGet || k.methods[method]
}

// module serves the requests of one kind once the gate admitted them.
type module interface {
	info() *kind
	serve(c *call) types.Outcome
}

// moduleOrder is the order modules are advertised in.
var moduleOrder = []string{
	schema.KindLocations,
	schema.KindSessions,
	schema.KindCDRs,
	schema.KindTariffs,
	schema.KindTokens,
	schema.KindCommands,
}

func methods(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

func (h *Hub) buildModules() map[string]module {
	cpoWrites := methods(http.MethodPut, http.MethodPatch, http.MethodDelete)

	locations := &locations{resources: newResources(h, &kind{
		name: schema.KindLocations, singular: "location",
		owner: model.RoleCPO, reader: model.RoleEMSP,
		notFound: common.StatusUnknownLocation, schema: schema.Location,
		methods: cpoWrites, partitioned: true,
	}, h.locations)}
	locations.chain = resolve.LocationChain(locations)

	sessions := newResources(h, &kind{
		name: schema.KindSessions, singular: "session",
		owner: model.RoleCPO, reader: model.RoleEMSP,
		notFound: common.StatusClientError, schema: schema.Session,
		methods: cpoWrites, partitioned: true,
	}, h.sessions)

	tariffs := newResources(h, &kind{
		name: schema.KindTariffs, singular: "tariff",
		owner: model.RoleCPO, reader: model.RoleEMSP,
		notFound: common.StatusClientError, schema: schema.Tariff,
		methods: cpoWrites, partitioned: true,
	}, h.tariffs)

	cdrs := newResources(h, &kind{
		name: schema.KindCDRs, singular: "cdr",
		owner: model.RoleCPO, reader: model.RoleEMSP,
		notFound: common.StatusClientError, schema: schema.CDR,
		methods: methods(http.MethodPost), partitioned: true,
	}, h.cdrs)

	tokens := newResources(h, &kind{
		name: schema.KindTokens, singular: "token",
		owner: model.RoleEMSP, reader: model.RoleCPO,
		notFound: common.StatusUnknownToken, schema: schema.Token,
		methods: methods(http.MethodPut, http.MethodPatch, http.MethodDelete), partitioned: true,
	}, h.tokens)

	commands := &commands{resources: newResources(h, &kind{
		name: schema.KindCommands, singular: "command result",
		owner: model.RoleCPO, reader: model.RoleEMSP,
		notFound: common.StatusClientError, schema: schema.CommandResult,
		methods: methods(http.MethodPost),
	}, h.commands)}

	return map[string]module{
		schema.KindLocations: locations,
		schema.KindSessions:  sessions,
		schema.KindTariffs:   tariffs,
		schema.KindCDRs:      cdrs,
		schema.KindTokens:    tokens,
		schema.KindCommands:  commands,
	}
}
