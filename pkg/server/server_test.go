//
//  Copyright © Manetu Inc. All rights reserved.
//

package server

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/manetu/ocpihub/internal/core/test"
	"github.com/manetu/ocpihub/pkg/common"
	"github.com/manetu/ocpihub/pkg/core"
	"github.com/manetu/ocpihub/pkg/core/accesslog"
	"github.com/manetu/ocpihub/pkg/core/config"
	"github.com/manetu/ocpihub/pkg/core/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminToken = "admin-secret"
	cpoToken   = "cpo-token"
	emspToken  = "emsp-token"
)

func locationBody(id, at string) string {
	return `{"country_code":"DE","party_id":"ABC","id":"` + id + `","publish":true,
		"address":"Hauptstrasse 1","city":"Berlin","country":"DEU",
		"coordinates":{"latitude":"52.520008","longitude":"13.404954"},"time_zone":"Europe/Berlin",
		"evses":[{"uid":"E1","status":"AVAILABLE","connectors":[{"id":"1","standard":"IEC_62196_T2",
		"format":"SOCKET","power_type":"AC_3_PHASE","max_voltage":230,"max_amperage":32,
		"last_updated":"` + at + `"}],"last_updated":"` + at + `"}],
		"last_updated":"` + at + `"}`
}

type response struct {
	Data          json.RawMessage `json:"data"`
	StatusCode    int             `json:"status_code"`
	StatusMessage string          `json:"status_message"`
	Timestamp     time.Time       `json:"timestamp"`
}

type fixture struct {
	t       *testing.T
	handler http.Handler
}

func newFixture(t *testing.T, mutate ...func(*config.Settings)) *fixture {
	t.Helper()
	require.NoError(t, test.SetupTestConfig())

	settings := config.Defaults()
	settings.BasePath = "https://hub.test"
	settings.RegistrySeed = filepath.Join(test.GetTestdataPath(), test.SeedFilename)
	settings.AdminToken = adminToken
	for _, m := range mutate {
		m(&settings)
	}

	metrics := NewMetrics()
	hub, err := core.NewHub(
		options.WithSettings(settings),
		options.WithAccessLog(accesslog.NewNullFactory()),
		options.WithObserver(metrics.ObserveWrite),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = hub.Stop() })

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := New(hub, WithMetrics(metrics), WithClock(func() time.Time { return at }))
	return &fixture{t: t, handler: s.Handler()}
}

func (f *fixture) do(method, path, token, body string, headers ...string) *httptest.ResponseRecorder {
	f.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var out response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestPutAndGetLocation(t *testing.T) {
	f := newFixture(t)

	put := f.do(http.MethodPut, "/ocpi/2.2.1/locations/DE/ABC/L1", cpoToken, locationBody("L1", "2024-01-01T10:00:00Z"))
	require.Equal(t, http.StatusCreated, put.Code, put.Body.String())
	env := decodeResponse(t, put)
	assert.Equal(t, common.StatusSuccess, env.StatusCode)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), env.Timestamp)
	etag := put.Header().Get(HeaderETag)
	assert.NotEmpty(t, etag)
	assert.NotEmpty(t, put.Header().Get(HeaderRequestID))
	assert.Equal(t, "Mon, 01 Jan 2024 10:00:00 GMT", put.Header().Get("Last-Modified"))

	encoded := base64.StdEncoding.EncodeToString([]byte(emspToken))
	get := f.do(http.MethodGet, "/ocpi/2.2.1/locations/DE/ABC/L1", encoded, "")
	require.Equal(t, http.StatusOK, get.Code, get.Body.String())
	assert.Equal(t, etag, get.Header().Get(HeaderETag))
	var loc struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(decodeResponse(t, get).Data, &loc))
	assert.Equal(t, "L1", loc.ID)

	cached := f.do(http.MethodGet, "/ocpi/2.2.1/locations/DE/ABC/L1", emspToken, "", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, cached.Code)
	assert.Empty(t, cached.Body.String())

	stale := f.do(http.MethodPut, "/ocpi/2.2.1/locations/DE/ABC/L1", cpoToken, locationBody("L1", "2023-01-01T10:00:00Z"))
	assert.Equal(t, http.StatusConflict, stale.Code)

	forced := f.do(http.MethodPut, "/ocpi/2.2.1/locations/DE/ABC/L1?forceDowngrade=true", cpoToken, locationBody("L1", "2023-01-01T10:00:00Z"))
	assert.Equal(t, http.StatusOK, forced.Code, forced.Body.String())
}

func TestPatchEVSEPath(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(http.MethodPut, "/ocpi/2.2.1/locations/DE/ABC/L1", cpoToken, locationBody("L1", "2024-01-01T10:00:00Z")).Code)

	rec := f.do(http.MethodPatch, "/ocpi/2.2.1/locations/DE/ABC/L1/E1", cpoToken, `{"status":"CHARGING"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	unknown := f.do(http.MethodPatch, "/ocpi/2.2.1/locations/DE/ABC/L1", cpoToken, `{"evses":[{"uid":"E9","status":"CHARGING"}]}`)
	assert.Equal(t, http.StatusBadRequest, unknown.Code)
	env := decodeResponse(t, unknown)
	assert.Equal(t, common.StatusInvalidParameters, env.StatusCode)
	assert.Contains(t, env.StatusMessage, "UnknownChild")
}

func TestListHeaders(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"L1", "L2", "L3"} {
		require.Equal(t, http.StatusCreated, f.do(http.MethodPut, "/ocpi/2.2.1/locations/DE/ABC/"+id, cpoToken, locationBody(id, "2024-01-01T10:00:00Z")).Code)
	}

	rec := f.do(http.MethodGet, "/ocpi/2.2.1/locations?limit=2", emspToken, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "3", rec.Header().Get(HeaderTotalCount))
	assert.Equal(t, "2", rec.Header().Get(HeaderLimit))

	link := rec.Header().Get(HeaderLink)
	require.NotEmpty(t, link)
	assert.True(t, strings.HasPrefix(link, "<https://hub.test/ocpi/2.2.1/locations?"), link)
	assert.Contains(t, link, "offset=2")
	assert.Contains(t, link, `rel="next"`)

	var items []json.RawMessage
	require.NoError(t, json.Unmarshal(decodeResponse(t, rec).Data, &items))
	assert.Len(t, items, 2)

	last := f.do(http.MethodGet, "/ocpi/2.2.1/locations?offset=2&limit=2", emspToken, "")
	assert.Empty(t, last.Header().Get(HeaderLink))

	window := f.do(http.MethodGet, "/ocpi/2.2.1/locations?date_from=2025-01-01T00:00:00Z", emspToken, "")
	assert.Equal(t, "0", window.Header().Get(HeaderTotalCount))
}

func TestRejections(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
		code   int
	}{
		{"bad limit", http.MethodGet, "/ocpi/2.2.1/locations?limit=abc", emspToken, http.StatusBadRequest, common.StatusInvalidParameters},
		{"bad date", http.MethodGet, "/ocpi/2.2.1/locations?date_from=yesterday", emspToken, http.StatusBadRequest, common.StatusInvalidParameters},
		{"empty segment", http.MethodGet, "/ocpi/2.2.1/locations/DE//L1", emspToken, http.StatusBadRequest, common.StatusInvalidParameters},
		{"unknown token", http.MethodGet, "/ocpi/2.2.1/locations/DE/ABC/L1", "nope", http.StatusUnauthorized, common.StatusClientError},
		{"no token", http.MethodGet, "/ocpi/2.2.1/locations", "", http.StatusUnauthorized, common.StatusClientError},
		{"wrong role", http.MethodPut, "/ocpi/2.2.1/tokens/NL/EMS/T1", cpoToken, http.StatusForbidden, common.StatusClientError},
		{"missing location", http.MethodGet, "/ocpi/2.2.1/locations/DE/ABC/L404", emspToken, http.StatusNotFound, common.StatusUnknownLocation},
		{"unknown route", http.MethodGet, "/nope", "", http.StatusNotFound, common.StatusClientError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.method, tt.path, tt.token, "")
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decodeResponse(t, rec).StatusCode)
		})
	}
}

func TestRequestIDs(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/healthz", "", "", HeaderRequestID, "req-42")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get(HeaderRequestID))
	assert.Equal(t, "req-42", rec.Header().Get(HeaderCorrelationID))

	rec = f.do(http.MethodGet, "/healthz", "", "", HeaderCorrelationID, "flow-7")
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
	assert.Equal(t, "flow-7", rec.Header().Get(HeaderCorrelationID))
}

func TestDiscoveryEndpoints(t *testing.T) {
	f := newFixture(t)

	versions := f.do(http.MethodGet, "/ocpi/versions", cpoToken, "")
	require.Equal(t, http.StatusOK, versions.Code)
	var list []struct {
		Version string `json:"version"`
		URL     string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(decodeResponse(t, versions).Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "https://hub.test/ocpi/2.2.1", list[0].URL)

	details := f.do(http.MethodGet, "/ocpi/2.2.1", cpoToken, "")
	assert.Equal(t, http.StatusOK, details.Code)

	creds := f.do(http.MethodGet, "/ocpi/2.2.1/credentials", emspToken, "")
	require.Equal(t, http.StatusOK, creds.Code)
	var view struct {
		Token string `json:"token"`
		Roles []struct {
			PartyID string `json:"party_id"`
		} `json:"roles"`
		Hash             string          `json:"hash"`
		AccessInfo       json.RawMessage `json:"access_info"`
		RemoteAccessInfo json.RawMessage `json:"remote_access_info"`
	}
	require.NoError(t, json.Unmarshal(decodeResponse(t, creds).Data, &view))
	assert.Equal(t, emspToken, view.Token)
	require.Len(t, view.Roles, 1)
	assert.Equal(t, "EMS", view.Roles[0].PartyID)
	assert.NotEmpty(t, view.Hash)
	assert.Nil(t, view.AccessInfo)
	assert.Nil(t, view.RemoteAccessInfo, "the token we present to the party stays private")
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, func(s *config.Settings) {
		s.RateLimitRPS = 0.001
		s.RateLimitBurst = 1
	})

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/ocpi/versions", cpoToken, "").Code)
	limited := f.do(http.MethodGet, "/ocpi/versions", cpoToken, "")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, common.StatusClientError, decodeResponse(t, limited).StatusCode)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/ocpi/versions", emspToken, "").Code, "buckets are per token")
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/healthz", "", "").Code, "health checks are not limited")
}

func TestAdminParties(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/admin/parties", cpoToken, "").Code)

	list := f.do(http.MethodGet, "/admin/parties", adminToken, "")
	require.Equal(t, http.StatusOK, list.Code)
	var parties []json.RawMessage
	require.NoError(t, json.Unmarshal(decodeResponse(t, list).Data, &parties))
	assert.Len(t, parties, 2)

	party := `{"country_code":"FR","party_id":"NEW","role":"CPO","business_details":{"name":"New CPO"},
		"access_info":[{"token":"new-token","status":"ALLOWED"}]}`
	created := f.do(http.MethodPost, "/admin/parties", adminToken, party)
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/admin/parties", adminToken, party).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/admin/parties", adminToken, `{"country_code":"fr"}`).Code)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/ocpi/2.2.1/credentials", "new-token", "").Code)

	disabled := f.do(http.MethodPut, "/admin/parties/FR-NEW_CPO/status", adminToken, `{"status":"DISABLED"}`)
	require.Equal(t, http.StatusOK, disabled.Code, disabled.Body.String())
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/ocpi/2.2.1/credentials", "new-token", "").Code)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/admin/parties/FR-NEW_CPO/status", adminToken, `{"status":"MAYBE"}`).Code)

	blocked := f.do(http.MethodPut, "/admin/parties/DE-ABC_CPO/tokens/cpo-token/status", adminToken, `{"status":"BLOCKED"}`)
	require.Equal(t, http.StatusOK, blocked.Code, blocked.Body.String())
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/ocpi/versions", cpoToken, "").Code)

	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/admin/parties/FR-NEW_CPO", adminToken, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/admin/parties/FR-NEW_CPO", adminToken, "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/ocpi/2.2.1/credentials", "new-token", "").Code)
}

func TestAdminPurgeParty(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(http.MethodPut, "/ocpi/2.2.1/locations/DE/ABC/L1", cpoToken, locationBody("L1", "2024-01-01T10:00:00Z")).Code)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodDelete, "/admin/parties/DE-ABC_CPO?purge=maybe", adminToken, "").Code)

	removed := f.do(http.MethodDelete, "/admin/parties/DE-ABC_CPO?purge=true", adminToken, "")
	require.Equal(t, http.StatusOK, removed.Code, removed.Body.String())
	var result struct {
		Purged int `json:"purged"`
	}
	require.NoError(t, json.Unmarshal(decodeResponse(t, removed).Data, &result))
	assert.Equal(t, 1, result.Purged)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/admin/parties/DE-ABC_CPO?purge=true", adminToken, "").Code)
}

func TestAdminDisabledWithoutToken(t *testing.T) {
	f := newFixture(t, func(s *config.Settings) { s.AdminToken = "" })
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/admin/parties", "", "").Code)
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(http.MethodPut, "/ocpi/2.2.1/locations/DE/ABC/L1", cpoToken, locationBody("L1", "2024-01-01T10:00:00Z")).Code)
	require.Equal(t, http.StatusConflict, f.do(http.MethodPut, "/ocpi/2.2.1/locations/DE/ABC/L1", cpoToken, locationBody("L1", "2024-01-01T10:00:00Z")).Code)

	rec := f.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `ocpihub_store_writes_total{kind="locations",outcome="created"} 1`)
	assert.Contains(t, body, `ocpihub_store_writes_total{kind="locations",outcome="conflict"} 1`)
	assert.Contains(t, body, `ocpihub_http_requests_total{method="PUT",route="/ocpi/2.2.1/:kind/*",status="201"} 1`)
}

func TestSplitPath(t *testing.T) {
	segments, err := splitPath("DE/ABC/L1/", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"DE", "ABC", "L1"}, segments)

	segments, err = splitPath("DE/ABC/"+url.PathEscape("L 1"), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"DE", "ABC", "L 1"}, segments)

	segments, err = splitPath("", false)
	require.NoError(t, err)
	assert.Nil(t, segments)

	_, err = splitPath("DE//L1", false)
	assert.Error(t, err)
}

func TestParseQuery(t *testing.T) {
	q, err := parseQuery(url.Values{
		"offset":         {"10"},
		"limit":          {"5"},
		"from":           {"2024-01-01T00:00:00Z"},
		"date_to":        {"2024-02-01T00:00:00Z"},
		"forceDowngrade": {"true"},
	})
	require.NoError(t, err)
	assert.Equal(t, 10, q.Offset)
	assert.Equal(t, 5, q.Limit)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), q.From)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), q.To)
	assert.True(t, q.ForceDowngrade)

	for _, bad := range []url.Values{
		{"offset": {"-1"}},
		{"limit": {"x"}},
		{"date_to": {"2024"}},
		{"forceDowngrade": {"perhaps"}},
	} {
		_, err := parseQuery(bad)
		assert.Error(t, err, bad.Encode())
	}
}
