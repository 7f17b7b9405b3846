//
//  Copyright © Manetu Inc. All rights reserved.
//

package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/manetu/ocpihub/pkg/common"
	"github.com/manetu/ocpihub/pkg/core/types"
)

// Request correlation headers.
const (
	HeaderRequestID     = "X-Request-ID"
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderTotalCount    = "X-Total-Count"
	HeaderLimit         = "X-Limit"
	HeaderLink          = "Link"
	HeaderETag          = "ETag"
)

// envelope is the OCPI response body.
type envelope struct {
	Data          interface{} `json:"data,omitempty"`
	StatusCode    int         `json:"status_code"`
	StatusMessage string      `json:"status_message,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

func (s *Server) fixed(kind string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return s.serve(c, kind, nil)
	}
}

func (s *Server) module(c echo.Context) error {
	segments, err := splitPath(c.Param("*"), c.Request().URL.RawPath != "")
	if err != nil {
		return s.reject(c, http.StatusBadRequest, common.StatusInvalidParameters, err.Error())
	}
	return s.serve(c, c.Param("kind"), segments)
}

func (s *Server) serve(c echo.Context, kind string, segments []string) error {
	r := c.Request()

	q, err := parseQuery(r.URL.Query())
	if err != nil {
		return s.reject(c, http.StatusBadRequest, common.StatusInvalidParameters, err.Error())
	}

	var body []byte
	if r.Body != nil {
		if body, err = io.ReadAll(r.Body); err != nil {
			return s.reject(c, http.StatusBadRequest, common.StatusInvalidParameters, "unable to read the request body")
		}
	}

	req := &types.Request{
		RequestID:   c.Response().Header().Get(HeaderRequestID),
		Method:      r.Method,
		Kind:        kind,
		Segments:    segments,
		Token:       s.token(r),
		Query:       q,
		Body:        body,
		IfMatch:     r.Header.Get("If-Match"),
		IfNoneMatch: r.Header.Get("If-None-Match"),
	}

	return s.render(c, s.hub.Handle(r.Context(), req))
}

// splitPath turns the wildcard part of a module path into segments.  A
// trailing slash is tolerated, an empty segment inside the path is not.
func splitPath(rest string, escaped bool) ([]string, error) {
	rest = strings.TrimSuffix(rest, "/")
	if rest == "" {
		return nil, nil
	}

	segments := strings.Split(rest, "/")
	for i, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("empty path segment at position %d", i+1)
		}
		if escaped {
			unescaped, err := url.PathUnescape(seg)
			if err != nil {
				return nil, fmt.Errorf("invalid path segment %q", seg)
			}
			segments[i] = unescaped
		}
	}
	return segments, nil
}

func parseQuery(v url.Values) (types.Query, error) {
	var q types.Query

	for name, dst := range map[string]*int{"offset": &q.Offset, "limit": &q.Limit} {
		raw := v.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, fmt.Errorf("invalid %s %q", name, raw)
		}
		*dst = n
	}

	// date_from and date_to are the OCPI names; from and to are accepted too
	for name, dst := range map[string]*time.Time{"date_from": &q.From, "date_to": &q.To} {
		raw := v.Get(name)
		if raw == "" {
			raw = v.Get(strings.TrimPrefix(name, "date_"))
		}
		if raw == "" {
			continue
		}
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return q, fmt.Errorf("invalid %s %q", name, raw)
		}
		*dst = at
	}

	if raw := v.Get("forceDowngrade"); raw != "" {
		force, err := strconv.ParseBool(raw)
		if err != nil {
			return q, fmt.Errorf("invalid forceDowngrade %q", raw)
		}
		q.ForceDowngrade = force
	}

	return q, nil
}

// credential returns the value of an Authorization header of scheme Token
// or Bearer.
func credential(r *http.Request) string {
	scheme, value, ok := strings.Cut(strings.TrimSpace(r.Header.Get(echo.HeaderAuthorization)), " ")
	if !ok {
		return ""
	}
	if !strings.EqualFold(scheme, "Token") && !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}

// token resolves the caller token.  OCPI 2.2 clients send it base64
// encoded; the decoded form is used when only it is known to the registry.
func (s *Server) token(r *http.Request) string {
	value := credential(r)
	if value == "" {
		return ""
	}

	registry := s.hub.Registry()
	if _, _, err := registry.ResolveToken(value); err == nil {
		return value
	}
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		if _, _, err := registry.ResolveToken(string(decoded)); err == nil {
			return string(decoded)
		}
	}
	return value
}

func (s *Server) render(c echo.Context, o types.Outcome) error {
	h := c.Response().Header()
	if o.ETag != "" {
		h.Set(HeaderETag, o.ETag)
	}
	if !o.LastModified.IsZero() {
		h.Set(echo.HeaderLastModified, o.LastModified.UTC().Format(http.TimeFormat))
	}
	if o.Location != "" {
		h.Set(echo.HeaderLocation, o.Location)
	}
	if o.IsList() {
		h.Set(HeaderTotalCount, strconv.Itoa(o.Total))
		h.Set(HeaderLimit, strconv.Itoa(o.Limit))
		if o.HasMore {
			h.Set(HeaderLink, fmt.Sprintf(`<%s>; rel="next"`, s.nextPage(c.Request(), o)))
		}
	}

	if o.HTTPStatus == http.StatusNotModified {
		return c.NoContent(http.StatusNotModified)
	}

	return c.JSON(o.HTTPStatus, envelope{
		Data:          o.Data,
		StatusCode:    o.StatusCode,
		StatusMessage: o.Message,
		Timestamp:     s.now(),
	})
}

func (s *Server) nextPage(r *http.Request, o types.Outcome) string {
	q := r.URL.Query()
	q.Set("offset", strconv.Itoa(o.NextOffset))
	q.Set("limit", strconv.Itoa(o.Limit))
	return s.hub.Settings().BasePath + r.URL.Path + "?" + q.Encode()
}

func (s *Server) reject(c echo.Context, status, code int, msg string) error {
	return s.render(c, types.Outcome{HTTPStatus: status, StatusCode: code, Message: msg})
}

// httpError renders routing failures, body limits and recovered panics in
// the envelope.
func (s *Server) httpError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	msg := "internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		msg = fmt.Sprint(he.Message)
	}

	code := common.StatusClientError
	if status >= http.StatusInternalServerError {
		code = common.StatusServerError
		logger.Errorf(agent, "httpError", "%s %s: %+v", c.Request().Method, c.Request().URL.Path, err)
	}

	if err := s.reject(c, status, code, msg); err != nil {
		logger.Errorf(agent, "httpError", "unable to render error: %+v", err)
	}
}
