//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package resolve turns URL path segments into resource handles, one stage
// at a time: country code, party id, resource id and, for locations, EVSE uid
// and connector id.  Each stage validates the syntax of its segment before
// asking whether the addressed object exists, and the chain stops at the
// first failure.
package resolve

import (
	"fmt"
	"regexp"

	"github.com/manetu/ocpihub/pkg/common"
	"github.com/manetu/ocpihub/pkg/ocpi/model"
)

// MaxIDLength is the longest id accepted for any resource or child.
const MaxIDLength = 36

var idRE = regexp.MustCompile(`^[\x21-\x2E\x30-\x7E]+$`)

// ValidID reports whether s is a non-empty printable id without slashes.
func ValidID(s string) bool {
	return len(s) > 0 && len(s) <= MaxIDLength && idRE.MatchString(s)
}

// Handle is the result of a resolution: every segment resolved so far and
// whether the terminal object exists.
type Handle struct {
	Partition model.Partition
	ID        string
	EVSE      string
	Connector string
	// Depth counts the resolved segments.
	Depth int
	// Exists is false only when the terminal object is missing and the call
	// did not require it.
	Exists bool
}

// Resolver validates one segment against its resolved parent.  It returns
// the extended handle and whether the addressed object exists; a syntax error
// is returned as a failure.
type Resolver func(segment string, parent Handle) (Handle, bool, *common.OcpiError)

// Stage is one named step of a chain.
type Stage struct {
	Name string
	// Optional stages may be absent from the path; required ones may not.
	Optional bool
	Resolve  Resolver
}

// Chain is a sequence of stages composed left to right.
type Chain struct {
	stages       []Stage
	notFoundCode int
}

// NewChain composes stages.  Missing objects are reported with notFoundCode.
func NewChain(notFoundCode int, stages ...Stage) *Chain {
	return &Chain{stages: stages, notFoundCode: notFoundCode}
}

// Resolve runs segments through the chain.  Missing required segments are a
// bad request.  A missing intermediate object is always not found; a missing
// terminal object is not found only when failOnMissing is set.
func (c *Chain) Resolve(segments []string, failOnMissing bool) (Handle, error) {
	h := Handle{Exists: true}

	if len(segments) > len(c.stages) {
		return h, common.NewError(common.ClassMalformed, fmt.Sprintf("too many path segments: %d", len(segments)))
	}

	for i, stage := range c.stages {
		if i >= len(segments) {
			if !stage.Optional {
				return h, common.NewError(common.ClassMalformed, "missing "+stage.Name)
			}
			break
		}

		next, found, failure := stage.Resolve(segments[i], h)
		if failure != nil {
			return h, failure
		}
		next.Depth = i + 1
		terminal := i == len(segments)-1

		if !found {
			if !terminal || failOnMissing {
				return h, common.NewErrorWithCode(common.ClassNotFound, c.notFoundCode,
					fmt.Sprintf("unknown %s %q", stage.Name, segments[i]))
			}
			next.Exists = false
			return next, nil
		}
		h = next
	}

	return h, nil
}

// CountryCode is the country stage.
func CountryCode() Stage {
	return Stage{Name: "country_code", Resolve: func(seg string, parent Handle) (Handle, bool, *common.OcpiError) {
		if !model.ValidCountryCode(seg) {
			return parent, false, common.NewError(common.ClassMalformed, fmt.Sprintf("invalid country_code %q", seg))
		}
		parent.Partition.CountryCode = seg
		return parent, true, nil
	}}
}

// PartyID is the party stage.
func PartyID() Stage {
	return Stage{Name: "party_id", Resolve: func(seg string, parent Handle) (Handle, bool, *common.OcpiError) {
		if !model.ValidPartyID(seg) {
			return parent, false, common.NewError(common.ClassMalformed, fmt.Sprintf("invalid party_id %q", seg))
		}
		parent.Partition.PartyID = seg
		return parent, true, nil
	}}
}

func checkID(name, seg string) *common.OcpiError {
	if !ValidID(seg) {
		return common.NewError(common.ClassMalformed, fmt.Sprintf("invalid %s %q", name, seg))
	}
	return nil
}

// Lookup answers existence of top-level resources.
type Lookup interface {
	Exists(p model.Partition, id string) bool
}

// LocationLookup also answers existence of EVSEs and Connectors.
type LocationLookup interface {
	Lookup
	HasEVSE(p model.Partition, locationID, uid string) bool
	HasConnector(p model.Partition, locationID, uid, connectorID string) bool
}

// ResourceID is the terminal stage of a flat resource kind.
func ResourceID(name string, l Lookup) Stage {
	return Stage{Name: name, Resolve: func(seg string, parent Handle) (Handle, bool, *common.OcpiError) {
		if f := checkID(name, seg); f != nil {
			return parent, false, f
		}
		parent.ID = seg
		return parent, l.Exists(parent.Partition, seg), nil
	}}
}

// ResourceChain resolves country code, party id and resource id.  The id is
// optional so that a partition alone can be addressed.
func ResourceChain(name string, l Lookup, notFoundCode int) *Chain {
	id := ResourceID(name, l)
	id.Optional = true
	return NewChain(notFoundCode, CountryCode(), PartyID(), id)
}

// LocationChain resolves country code, party id, location id, EVSE uid and
// connector id, the last three optional.
func LocationChain(l LocationLookup) *Chain {
	location := ResourceID("location", l)
	location.Optional = true

	evse := Stage{Name: "evse_uid", Optional: true, Resolve: func(seg string, parent Handle) (Handle, bool, *common.OcpiError) {
		if f := checkID("evse_uid", seg); f != nil {
			return parent, false, f
		}
		parent.EVSE = seg
		return parent, l.HasEVSE(parent.Partition, parent.ID, seg), nil
	}}

	connector := Stage{Name: "connector_id", Optional: true, Resolve: func(seg string, parent Handle) (Handle, bool, *common.OcpiError) {
		if f := checkID("connector_id", seg); f != nil {
			return parent, false, f
		}
		parent.Connector = seg
		return parent, l.HasConnector(parent.Partition, parent.ID, parent.EVSE, seg), nil
	}}

	return NewChain(common.StatusUnknownLocation, CountryCode(), PartyID(), location, evse, connector)
}
