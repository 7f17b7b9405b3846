//
//  Copyright © Manetu Inc. All rights reserved.
//

package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/manetu/ocpihub/pkg/common"
	"github.com/manetu/ocpihub/pkg/core/types"
	"github.com/manetu/ocpihub/pkg/identity"
	"github.com/manetu/ocpihub/pkg/ocpi/model"
)

func (s *Server) adminAuth(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			presented := credential(c.Request())
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				logger.Warnf(agent, "admin", "rejected admin call from %s", c.RealIP())
				return s.reject(c, http.StatusUnauthorized, common.StatusClientError, "invalid admin token")
			}
			return next(c)
		}
	}
}

func (s *Server) registerAdmin(g *echo.Group) {
	g.GET("/parties", s.listParties)
	g.POST("/parties", s.registerParty)
	g.GET("/parties/:key", s.getParty)
	g.DELETE("/parties/:key", s.removeParty)
	g.PUT("/parties/:key/status", s.setPartyStatus)
	g.PUT("/parties/:key/tokens/:token/status", s.setTokenStatus)
}

func (s *Server) party(c echo.Context, status int, p *model.RemoteParty, err error) error {
	if err != nil {
		return s.adminError(c, err)
	}
	return s.render(c, types.Outcome{HTTPStatus: status, StatusCode: common.StatusSuccess, Message: "Success", Data: p})
}

func (s *Server) adminError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	code := common.StatusServerError
	switch {
	case errors.Is(err, identity.ErrNotFound):
		status, code = http.StatusNotFound, common.StatusClientError
	case errors.Is(err, identity.ErrDuplicate):
		status, code = http.StatusConflict, common.StatusClientError
	case errors.Is(err, identity.ErrInvalid):
		status, code = http.StatusBadRequest, common.StatusInvalidParameters
	default:
		logger.Errorf(agent, "admin", "unexpected registry failure: %+v", err)
		return s.reject(c, status, code, "internal server error")
	}
	return s.reject(c, status, code, err.Error())
}

func (s *Server) listParties(c echo.Context) error {
	parties := s.hub.Registry().List()
	return s.render(c, types.Outcome{HTTPStatus: http.StatusOK, StatusCode: common.StatusSuccess, Message: "Success", Data: parties})
}

func (s *Server) getParty(c echo.Context) error {
	p, err := s.hub.Registry().Get(c.Param("key"))
	return s.party(c, http.StatusOK, p, err)
}

func (s *Server) registerParty(c echo.Context) error {
	var p model.RemoteParty
	if err := json.NewDecoder(c.Request().Body).Decode(&p); err != nil {
		return s.reject(c, http.StatusBadRequest, common.StatusInvalidParameters, "body must be a party object")
	}
	registered, err := s.hub.Registry().Register(&p)
	return s.party(c, http.StatusCreated, registered, err)
}

type removal struct {
	Purged int `json:"purged"`
}

// removeParty deletes a party.  ?purge=true also deletes the resources of
// its partition.
func (s *Server) removeParty(c echo.Context) error {
	purge := false
	if raw := c.QueryParam("purge"); raw != "" {
		var err error
		if purge, err = strconv.ParseBool(raw); err != nil {
			return s.reject(c, http.StatusBadRequest, common.StatusInvalidParameters, "invalid purge "+strconv.Quote(raw))
		}
	}

	n, err := s.hub.RemoveParty(c.Param("key"), purge)
	if err != nil {
		return s.adminError(c, err)
	}
	return s.render(c, types.Outcome{HTTPStatus: http.StatusOK, StatusCode: common.StatusSuccess, Message: "Success", Data: removal{Purged: n}})
}

type statusChange struct {
	Status string `json:"status"`
}

func (s *Server) decodeStatus(c echo.Context) (string, error) {
	var body statusChange
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil || body.Status == "" {
		return "", s.reject(c, http.StatusBadRequest, common.StatusInvalidParameters, `body must be {"status": "..."}`)
	}
	return body.Status, nil
}

func (s *Server) setPartyStatus(c echo.Context) error {
	status, err := s.decodeStatus(c)
	if status == "" {
		return err
	}
	switch model.PartyStatus(status) {
	case model.PartyEnabled, model.PartyDisabled:
	default:
		return s.reject(c, http.StatusBadRequest, common.StatusInvalidParameters, "unknown party status "+status)
	}
	p, err := s.hub.Registry().SetStatus(c.Param("key"), model.PartyStatus(status))
	return s.party(c, http.StatusOK, p, err)
}

func (s *Server) setTokenStatus(c echo.Context) error {
	status, err := s.decodeStatus(c)
	if status == "" {
		return err
	}
	switch model.GrantStatus(status) {
	case model.GrantAllowed, model.GrantBlocked, model.GrantPending:
	default:
		return s.reject(c, http.StatusBadRequest, common.StatusInvalidParameters, "unknown token status "+status)
	}
	p, err := s.hub.Registry().SetTokenStatus(c.Param("key"), c.Param("token"), model.GrantStatus(status))
	return s.party(c, http.StatusOK, p, err)
}
