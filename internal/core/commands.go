//
//  Copyright © Manetu Inc. All rights reserved.
//

package core

import (
	"fmt"
	"net/http"

	"github.com/manetu/ocpihub/pkg/core/types"
	"github.com/manetu/ocpihub/pkg/ocpi/model"
	"github.com/manetu/ocpihub/pkg/ocpi/schema"
	"github.com/manetu/ocpihub/pkg/resolve"
)

var commandTypes = map[string]bool{
	"CANCEL_RESERVATION": true,
	"RESERVE_NOW":        true,
	"START_SESSION":      true,
	"STOP_SESSION":       true,
	"UNLOCK_CONNECTOR":   true,
}

var commandResults = map[string]bool{
	"ACCEPTED":             true,
	"CANCELED_RESERVATION": true,
	"EVSE_OCCUPIED":        true,
	"EVSE_INOPERATIVE":     true,
	"FAILED":               true,
	"NOT_SUPPORTED":        true,
	"REJECTED":             true,
	"TIMEOUT":              true,
	"UNKNOWN_RESERVATION":  true,
}

// commandResponse is the body a CPO posts back for a command.
type commandResponse struct {
	Result  string              `json:"result"`
	Message []model.DisplayText `json:"message,omitempty"`
}

var commandResponseSchema = &schema.Object{Mandatory: []string{"result"}}

// commands stores the results posted to /commands/{command}/{uid} in the
// partition of the posting CPO, where eMSPs read them.
type commands struct {
	*resources[*model.CommandResult]
}

func (m *commands) serve(c *call) types.Outcome {
	switch c.req.Method {
	case http.MethodPost:
		return m.post(c)
	case http.MethodGet:
		return m.resources.serve(c)
	}
	return notAllowed(c)
}

func (m *commands) post(c *call) types.Outcome {
	if len(c.req.Segments) != 2 {
		return c.fail(malformed("expected /commands/{command}/{uid}"))
	}
	command, uid := c.req.Segments[0], c.req.Segments[1]
	if !commandTypes[command] {
		return c.fail(malformed(fmt.Sprintf("unknown command %q", command)))
	}
	if !resolve.ValidID(uid) {
		return c.fail(malformed(fmt.Sprintf("invalid command uid %q", uid)))
	}

	resp, err := decode[commandResponse](commandResponseSchema, c.req.Body)
	if err != nil {
		return c.fail(err)
	}
	if !commandResults[resp.Result] {
		return c.fail(malformed(fmt.Sprintf("unknown command result %q", resp.Result)))
	}

	own := c.own()
	result := &model.CommandResult{
		CountryCode: own.CountryCode,
		PartyID:     own.PartyID,
		UID:         uid,
		Command:     command,
		Result:      resp.Result,
		Message:     resp.Message,
		LastUpdated: m.hub.patcher.Now(),
	}

	stored, created, err := m.store.Put(result, c.allowDowngrade())
	if err != nil {
		return c.fail(err)
	}
	return c.written(stored, stored.LastUpdated, created)
}
