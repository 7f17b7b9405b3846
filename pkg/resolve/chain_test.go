//
//  Copyright © Manetu Inc. All rights reserved.
//

package resolve

import (
	"strings"
	"testing"

	"github.com/manetu/ocpihub/pkg/common"
	"github.com/manetu/ocpihub/pkg/ocpi/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTree struct {
	locations map[string]map[string][]string // location -> evse -> connectors
}

var deABC = model.Partition{CountryCode: "DE", PartyID: "ABC"}

func (f *fakeTree) Exists(p model.Partition, id string) bool {
	if p != deABC {
		return false
	}
	_, ok := f.locations[id]
	return ok
}

func (f *fakeTree) HasEVSE(p model.Partition, locationID, uid string) bool {
	if !f.Exists(p, locationID) {
		return false
	}
	_, ok := f.locations[locationID][uid]
	return ok
}

func (f *fakeTree) HasConnector(p model.Partition, locationID, uid, connectorID string) bool {
	if !f.HasEVSE(p, locationID, uid) {
		return false
	}
	for _, c := range f.locations[locationID][uid] {
		if c == connectorID {
			return true
		}
	}
	return false
}

func tree() *fakeTree {
	return &fakeTree{locations: map[string]map[string][]string{
		"L1": {"E1": {"1", "2"}},
	}}
}

func classOf(t *testing.T, err error) *common.OcpiError {
	t.Helper()
	var oe *common.OcpiError
	require.ErrorAs(t, err, &oe)
	return oe
}

func TestLocationChainResolves(t *testing.T) {
	c := LocationChain(tree())

	h, err := c.Resolve([]string{"DE", "ABC", "L1", "E1", "2"}, true)
	require.NoError(t, err)
	assert.Equal(t, deABC, h.Partition)
	assert.Equal(t, "L1", h.ID)
	assert.Equal(t, "E1", h.EVSE)
	assert.Equal(t, "2", h.Connector)
	assert.Equal(t, 5, h.Depth)
	assert.True(t, h.Exists)

	h, err = c.Resolve([]string{"DE", "ABC"}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, h.Depth)
	assert.Empty(t, h.ID)
}

func TestChainBadRequests(t *testing.T) {
	c := LocationChain(tree())

	tests := []struct {
		name     string
		segments []string
		contains string
	}{
		{"no country", nil, "missing country_code"},
		{"no party", []string{"DE"}, "missing party_id"},
		{"lower case country", []string{"de", "ABC", "L1"}, "country_code"},
		{"long country", []string{"DEU", "ABC"}, "country_code"},
		{"short party", []string{"DE", "AB"}, "party_id"},
		{"empty party", []string{"DE", "", "L1"}, "party_id"},
		{"long id", []string{"DE", "ABC", strings.Repeat("x", 37)}, "location"},
		{"space in id", []string{"DE", "ABC", "L 1"}, "location"},
		{"missing location before bad evse", []string{"DE", "ABC", "NOPE", "E 1"}, "evse_uid"},
		{"too many", []string{"DE", "ABC", "L1", "E1", "1", "x"}, "too many"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Resolve(tt.segments, true)
			oe := classOf(t, err)
			if tt.name == "missing location before bad evse" {
				// the chain stops at the first failure: the missing location
				assert.Equal(t, common.ClassNotFound, oe.Class)
				return
			}
			assert.Equal(t, common.ClassMalformed, oe.Class)
			assert.Contains(t, oe.Reason, tt.contains)
		})
	}
}

func TestChainSyntaxBeforeExistence(t *testing.T) {
	c := LocationChain(tree())

	// a malformed id is reported as such even though it does not exist
	_, err := c.Resolve([]string{"DE", "ABC", "L/1"}, true)
	assert.Equal(t, common.ClassMalformed, classOf(t, err).Class)
}

func TestChainNotFound(t *testing.T) {
	c := LocationChain(tree())

	tests := []struct {
		name     string
		segments []string
		fail     bool
	}{
		{"missing location", []string{"DE", "ABC", "L9"}, true},
		{"missing location under evse", []string{"DE", "ABC", "L9", "E1"}, false},
		{"missing evse", []string{"DE", "ABC", "L1", "E9"}, true},
		{"missing evse under connector", []string{"DE", "ABC", "L1", "E9", "1"}, false},
		{"missing connector", []string{"DE", "ABC", "L1", "E1", "9"}, true},
		{"other partition", []string{"NL", "ABC", "L1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Resolve(tt.segments, tt.fail)
			oe := classOf(t, err)
			assert.Equal(t, common.ClassNotFound, oe.Class)
			assert.Equal(t, common.StatusUnknownLocation, oe.StatusCode)
		})
	}
}

func TestChainTolerantTerminal(t *testing.T) {
	c := LocationChain(tree())

	h, err := c.Resolve([]string{"DE", "ABC", "L9"}, false)
	require.NoError(t, err)
	assert.False(t, h.Exists)
	assert.Equal(t, "L9", h.ID)

	h, err = c.Resolve([]string{"DE", "ABC", "L1", "E2"}, false)
	require.NoError(t, err)
	assert.False(t, h.Exists)
	assert.Equal(t, "E2", h.EVSE)

	h, err = c.Resolve([]string{"DE", "ABC", "L1", "E1", "3"}, false)
	require.NoError(t, err)
	assert.False(t, h.Exists)
}

type fakeTokens map[string]bool

func (f fakeTokens) Exists(p model.Partition, id string) bool { return f[p.String()+"/"+id] }

func TestResourceChain(t *testing.T) {
	c := ResourceChain("token uid", fakeTokens{"NL*EMS/RFID1": true}, common.StatusUnknownToken)

	h, err := c.Resolve([]string{"NL", "EMS", "RFID1"}, true)
	require.NoError(t, err)
	assert.Equal(t, "RFID1", h.ID)

	_, err = c.Resolve([]string{"NL", "EMS", "RFID2"}, true)
	oe := classOf(t, err)
	assert.Equal(t, common.ClassNotFound, oe.Class)
	assert.Equal(t, common.StatusUnknownToken, oe.StatusCode)

	_, err = c.Resolve([]string{"NL", "EMS", "RFID1", "extra"}, true)
	assert.Equal(t, common.ClassMalformed, classOf(t, err).Class)
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("L1"))
	assert.True(t, ValidID("BE-BEC-E041503001"))
	assert.True(t, ValidID(strings.Repeat("a", MaxIDLength)))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID(strings.Repeat("a", MaxIDLength+1)))
	assert.False(t, ValidID("a/b"))
	assert.False(t, ValidID("é"))
}
