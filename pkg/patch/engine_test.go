//
//  Copyright © Manetu Inc. All rights reserved.
//

package patch

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/manetu/ocpihub/pkg/ocpi/canonical"
	"github.com/manetu/ocpihub/pkg/ocpi/model"
	"github.com/manetu/ocpihub/pkg/ocpi/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0  = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now = t0.Add(time.Hour)
)

func strp(s string) *string { return &s }

func connector(id string) model.Connector {
	return model.Connector{
		ID: id, Standard: "IEC_62196_T2", Format: "SOCKET", PowerType: "AC_3_PHASE",
		MaxVoltage: 400, MaxAmperage: 32, LastUpdated: t0,
	}
}

func location() *model.Location {
	return &model.Location{
		CountryCode: "DE",
		PartyID:     "ABC",
		ID:          "L1",
		Publish:     true,
		Name:        strp("Depot"),
		Address:     "Main St 1",
		City:        "Berlin",
		Country:     "DEU",
		Coordinates: model.GeoLocation{Latitude: "52.52", Longitude: "13.40"},
		Facilities:  []string{"CAFE", "WIFI"},
		TimeZone:    "Europe/Berlin",
		EVSEs: []model.EVSE{
			{UID: "E0", Status: "AVAILABLE", Connectors: []model.Connector{connector("1"), connector("2")}, LastUpdated: t0},
			{UID: "E2", Status: "AVAILABLE", Connectors: []model.Connector{connector("1")}, LastUpdated: t0},
		},
		LastUpdated: t0,
	}
}

func engine(opts ...Option) *Engine {
	return NewEngine(append([]Option{WithClock(func() time.Time { return now })}, opts...)...)
}

func applyLocation(t *testing.T, e *Engine, existing *model.Location, doc string) (*model.Location, *Failure) {
	t.Helper()
	out, err := Apply(e, schema.Location, schema.KindLocations, existing, []byte(doc))
	if err != nil {
		var f *Failure
		require.ErrorAs(t, err, &f)
		return nil, f
	}
	return out, nil
}

func TestEmptyPatchRoundTrip(t *testing.T) {
	orig := location()
	out, f := applyLocation(t, engine(), orig, `{}`)
	require.Nil(t, f)

	assert.Equal(t, now, out.LastUpdated)
	out.LastUpdated = orig.LastUpdated
	assert.True(t, canonical.Equal(orig, out))
}

func TestPatchIsIdempotent(t *testing.T) {
	doc := `{"name":"Renamed","evses":[{"uid":"E0","status":"CHARGING"}],"postal_code":null}`
	e := engine()

	once, f := applyLocation(t, e, location(), doc)
	require.Nil(t, f)
	twice, f := applyLocation(t, e, once, doc)
	require.Nil(t, f)

	assert.True(t, canonical.Equal(once, twice))
}

func TestPatchDoesNotModifyExisting(t *testing.T) {
	orig := location()
	before, err := canonical.Bytes(orig)
	require.NoError(t, err)

	_, f := applyLocation(t, engine(), orig, `{"name":"X","evses":[{"uid":"E0","status":"BLOCKED"}]}`)
	require.Nil(t, f)

	after, err := canonical.Bytes(orig)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestPatchScalarsAndArrays(t *testing.T) {
	out, f := applyLocation(t, engine(), location(), `{"city":"Hamburg","facilities":["PARKING_LOT"],"publish":false}`)
	require.Nil(t, f)

	assert.Equal(t, "Hamburg", out.City)
	assert.Equal(t, []string{"PARKING_LOT"}, out.Facilities)
	assert.False(t, out.Publish)
	assert.Equal(t, "Main St 1", out.Address)
}

func TestPatchNestedObject(t *testing.T) {
	out, f := applyLocation(t, engine(), location(), `{"coordinates":{"latitude":"53.55"},"operator":{"name":"ACME"}}`)
	require.Nil(t, f)

	assert.Equal(t, "53.55", out.Coordinates.Latitude)
	assert.Equal(t, "13.40", out.Coordinates.Longitude)
	require.NotNil(t, out.Operator)
	assert.Equal(t, "ACME", out.Operator.Name)
}

func TestPatchRemovesOptionalField(t *testing.T) {
	out, f := applyLocation(t, engine(), location(), `{"name":null}`)
	require.Nil(t, f)
	assert.Nil(t, out.Name)
}

func TestPatchRejectsMandatoryRemoval(t *testing.T) {
	_, f := applyLocation(t, engine(), location(), `{"address":null}`)
	require.NotNil(t, f)
	assert.Equal(t, MandatoryFieldRemoved, f.Kind)
	assert.Equal(t, "address", f.Path)

	_, f = applyLocation(t, engine(), location(), `{"coordinates":{"latitude":null}}`)
	require.NotNil(t, f)
	assert.Equal(t, MandatoryFieldRemoved, f.Kind)
	assert.Equal(t, "coordinates.latitude", f.Path)

	_, f = applyLocation(t, engine(), location(), `{"evses":[{"uid":"E0","connectors":[{"id":"2","standard":null}]}]}`)
	require.NotNil(t, f)
	assert.Equal(t, MandatoryFieldRemoved, f.Kind)
	assert.Equal(t, "evses[0].connectors[0].standard", f.Path)
}

func TestPatchMergesChildrenByIdentity(t *testing.T) {
	out, f := applyLocation(t, engine(), location(), `{"evses":[{"uid":"E0","status":"CHARGING","connectors":[{"id":"2","max_amperage":16}]}]}`)
	require.Nil(t, f)

	require.Len(t, out.EVSEs, 2)
	e0 := out.EVSEs[0]
	assert.Equal(t, "CHARGING", e0.Status)
	assert.Equal(t, now, e0.LastUpdated)
	require.Len(t, e0.Connectors, 2)
	assert.Equal(t, 32, e0.Connectors[0].MaxAmperage)
	assert.Equal(t, t0, e0.Connectors[0].LastUpdated)
	assert.Equal(t, 16, e0.Connectors[1].MaxAmperage)
	assert.Equal(t, now, e0.Connectors[1].LastUpdated)

	// untouched sibling keeps its version
	assert.Equal(t, t0, out.EVSEs[1].LastUpdated)
	assert.Equal(t, now, out.LastUpdated)
}

func TestPatchUnknownChild(t *testing.T) {
	_, f := applyLocation(t, engine(), location(), `{"evses":[{"uid":"E1","status":"AVAILABLE"}]}`)
	require.NotNil(t, f)
	assert.Equal(t, UnknownChild, f.Kind)
	assert.Equal(t, "E1", f.Child)
	assert.Contains(t, f.Error(), `"E1"`)
}

func TestPatchImplicitCreate(t *testing.T) {
	doc := `{"evses":[{"uid":"E1","status":"AVAILABLE","connectors":[{"id":"1","standard":"CHADEMO","format":"CABLE","power_type":"DC","max_voltage":500,"max_amperage":125}]}]}`

	for _, kind := range []string{schema.KindLocations, schema.KindEVSEs} {
		t.Run(kind, func(t *testing.T) {
			e := engine(WithImplicitCreate(map[string]bool{kind: true, schema.KindConnectors: true}))
			out, f := applyLocation(t, e, location(), doc)
			require.Nil(t, f)

			require.Len(t, out.EVSEs, 3)
			created := out.EVSEs[2]
			assert.Equal(t, "E1", created.UID)
			assert.Equal(t, now, created.LastUpdated)
			require.Len(t, created.Connectors, 1)
			assert.Equal(t, now, created.Connectors[0].LastUpdated)
		})
	}
}

func TestPatchImplicitCreateStillValidates(t *testing.T) {
	e := engine(WithImplicitCreate(map[string]bool{schema.KindLocations: true}))
	_, f := applyLocation(t, e, location(), `{"evses":[{"uid":"E1","status":"AVAILABLE"}]}`)
	require.NotNil(t, f)
	assert.Equal(t, InvalidResult, f.Kind)
	assert.Contains(t, f.Detail, "connectors")
}

func TestPatchMissingChildIdentity(t *testing.T) {
	_, f := applyLocation(t, engine(), location(), `{"evses":[{"status":"AVAILABLE"}]}`)
	require.NotNil(t, f)
	assert.Equal(t, MissingChildIdentity, f.Kind)
	assert.Equal(t, "evses[0].uid", f.Path)
}

func TestPatchMalformed(t *testing.T) {
	for _, doc := range []string{``, `{`, `[1,2]`, `"x"`, `{} {}`, `{"evses":{"uid":"E0"}}`, `{"evses":["E0"]}`,
		`{"evses":[{"uid":"E0"},{"uid":"E0"}]}`} {
		t.Run(doc, func(t *testing.T) {
			_, f := applyLocation(t, engine(), location(), doc)
			require.NotNil(t, f)
			assert.Equal(t, MalformedPatch, f.Kind)
		})
	}
}

func TestPatchImmutableIdentity(t *testing.T) {
	_, f := applyLocation(t, engine(), location(), `{"id":"L2"}`)
	require.NotNil(t, f)
	assert.Equal(t, ImmutableField, f.Kind)

	_, f = applyLocation(t, engine(), location(), `{"country_code":null}`)
	require.NotNil(t, f)
	assert.Equal(t, ImmutableField, f.Kind)

	out, f := applyLocation(t, engine(), location(), `{"id":"L1","party_id":"ABC"}`)
	require.Nil(t, f)
	assert.Equal(t, "L1", out.ID)
}

func TestPatchIgnoresClientTimestamp(t *testing.T) {
	out, f := applyLocation(t, engine(), location(), `{"last_updated":"2030-01-01T00:00:00Z","evses":[{"uid":"E0","last_updated":"2030-01-01T00:00:00Z"}]}`)
	require.Nil(t, f)
	assert.Equal(t, now, out.LastUpdated)
	assert.Equal(t, now, out.EVSEs[0].LastUpdated)
}

func TestPatchInvalidResult(t *testing.T) {
	for _, doc := range []string{`{"publish":"yes"}`, `{"unknown_field":1}`, `{"evses":[{"uid":"E0","connectors":[{"id":"1","max_voltage":"high"}]}]}`} {
		t.Run(doc, func(t *testing.T) {
			_, f := applyLocation(t, engine(), location(), doc)
			require.NotNil(t, f)
			assert.Equal(t, InvalidResult, f.Kind)
		})
	}
}

func TestPatchOtherKinds(t *testing.T) {
	tok := &model.Token{
		CountryCode: "NL", PartyID: "EMS", UID: "RFID1", Type: "RFID", ContractID: "C1",
		Issuer: "EMS", Valid: true, Whitelist: "ALLOWED", LastUpdated: t0,
	}
	out, err := Apply(engine(), schema.Token, schema.KindTokens, tok, []byte(`{"valid":false,"visual_number":"0001"}`))
	require.NoError(t, err)
	assert.False(t, out.Valid)
	require.NotNil(t, out.VisualNumber)
	assert.Equal(t, "0001", *out.VisualNumber)
	assert.Equal(t, now, out.LastUpdated)
}

func TestNest(t *testing.T) {
	doc, err := Nest([]byte(`{"status":"CHARGING"}`), schema.Location, "evses", "E0")
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(doc, &got))
	assert.Equal(t, map[string]interface{}{
		"evses": []interface{}{map[string]interface{}{"uid": "E0", "status": "CHARGING"}},
	}, got)

	inner, err := Nest([]byte(`{"max_amperage":16}`), schema.EVSE, "connectors", "2")
	require.NoError(t, err)
	outer, err := Nest(inner, schema.Location, "evses", "E0")
	require.NoError(t, err)

	out, f := applyLocation(t, engine(), location(), string(outer))
	require.Nil(t, f)
	assert.Equal(t, 16, out.EVSEs[0].Connectors[1].MaxAmperage)
	assert.Equal(t, now, out.EVSEs[0].LastUpdated)
	assert.Equal(t, now, out.LastUpdated)
}

func TestNestRejectsMismatchedIdentity(t *testing.T) {
	_, err := Nest([]byte(`{"uid":"E9"}`), schema.Location, "evses", "E0")
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, ImmutableField, f.Kind)

	_, err = Nest([]byte(`{"uid":"E9"}`), schema.Location, "connectors", "E0")
	require.ErrorAs(t, err, &f)

	_, err = Nest([]byte(`[]`), schema.Location, "evses", "E0")
	require.ErrorAs(t, err, &f)
	assert.Equal(t, MalformedPatch, f.Kind)
}
