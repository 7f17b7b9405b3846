//
//  Copyright © Manetu Inc. All rights reserved.
//

package model

import "time"

// EVSE statuses used by the hub itself.
const (
	EVSEStatusAvailable = "AVAILABLE"
	EVSEStatusRemoved   = "REMOVED"
)

// Location is a charging site.  It owns its EVSEs, which own their Connectors.
type Location struct {
	CountryCode        string                  `json:"country_code"`
	PartyID            string                  `json:"party_id"`
	ID                 string                  `json:"id"`
	Publish            bool                    `json:"publish"`
	PublishAllowedTo   []PublishTokenType      `json:"publish_allowed_to,omitempty"`
	Name               *string                 `json:"name,omitempty"`
	Address            string                  `json:"address"`
	City               string                  `json:"city"`
	PostalCode         *string                 `json:"postal_code,omitempty"`
	State              *string                 `json:"state,omitempty"`
	Country            string                  `json:"country"`
	Coordinates        GeoLocation             `json:"coordinates"`
	RelatedLocations   []AdditionalGeoLocation `json:"related_locations,omitempty"`
	ParkingType        *string                 `json:"parking_type,omitempty"`
	EVSEs              []EVSE                  `json:"evses,omitempty"`
	Directions         []DisplayText           `json:"directions,omitempty"`
	Operator           *BusinessDetails        `json:"operator,omitempty"`
	Suboperator        *BusinessDetails        `json:"suboperator,omitempty"`
	Owner              *BusinessDetails        `json:"owner,omitempty"`
	Facilities         []string                `json:"facilities,omitempty"`
	TimeZone           string                  `json:"time_zone"`
	OpeningTimes       *Hours                  `json:"opening_times,omitempty"`
	ChargingWhenClosed *bool                   `json:"charging_when_closed,omitempty"`
	Images             []Image                 `json:"images,omitempty"`
	EnergyMix          *EnergyMix              `json:"energy_mix,omitempty"`
	LastUpdated        time.Time               `json:"last_updated"`
}

// PublishTokenType names a token, or a group of tokens, a location is
// published to when publish is false.
type PublishTokenType struct {
	UID          *string `json:"uid,omitempty"`
	Type         *string `json:"type,omitempty"`
	VisualNumber *string `json:"visual_number,omitempty"`
	Issuer       *string `json:"issuer,omitempty"`
	GroupID      *string `json:"group_id,omitempty"`
}

// AdditionalGeoLocation is a point related to a location, such as an entrance.
type AdditionalGeoLocation struct {
	Latitude  string       `json:"latitude"`
	Longitude string       `json:"longitude"`
	Name      *DisplayText `json:"name,omitempty"`
}

// EnergyMix describes the energy supplied at a location.
type EnergyMix struct {
	IsGreenEnergy     bool                  `json:"is_green_energy"`
	EnergySources     []EnergySource        `json:"energy_sources,omitempty"`
	EnvironImpact     []EnvironmentalImpact `json:"environ_impact,omitempty"`
	SupplierName      *string               `json:"supplier_name,omitempty"`
	EnergyProductName *string               `json:"energy_product_name,omitempty"`
}

// EnergySource is the share of one source in an [EnergyMix].
type EnergySource struct {
	Source     string  `json:"source"`
	Percentage float64 `json:"percentage"`
}

// EnvironmentalImpact is the amount of one emission category per kWh.
type EnvironmentalImpact struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// Hours describes when a location is open.
type Hours struct {
	TwentyFourSeven bool          `json:"twentyfourseven"`
	RegularHours    []RegularHour `json:"regular_hours,omitempty"`
}

// RegularHour is one weekday opening window.
type RegularHour struct {
	Weekday     int    `json:"weekday"`
	PeriodBegin string `json:"period_begin"`
	PeriodEnd   string `json:"period_end"`
}

// GetPartition implements Resource.
func (l *Location) GetPartition() Partition {
	return Partition{CountryCode: l.CountryCode, PartyID: l.PartyID}
}

// GetID implements Resource.
func (l *Location) GetID() string { return l.ID }

// GetLastUpdated implements Resource.
func (l *Location) GetLastUpdated() time.Time { return l.LastUpdated }

// FindEVSE returns the index of the EVSE with uid, or -1.
func (l *Location) FindEVSE(uid string) int {
	for i := range l.EVSEs {
		if l.EVSEs[i].UID == uid {
			return i
		}
	}
	return -1
}

// EVSE is a charging point within a location.  UID is unique within the Location.
type EVSE struct {
	UID                 string           `json:"uid"`
	EvseID              *string          `json:"evse_id,omitempty"`
	Status              string           `json:"status"`
	StatusSchedule      []StatusSchedule `json:"status_schedule,omitempty"`
	Capabilities        []string         `json:"capabilities,omitempty"`
	Connectors          []Connector      `json:"connectors"`
	FloorLevel          *string          `json:"floor_level,omitempty"`
	Coordinates         *GeoLocation     `json:"coordinates,omitempty"`
	PhysicalReference   *string          `json:"physical_reference,omitempty"`
	Directions          []DisplayText    `json:"directions,omitempty"`
	ParkingRestrictions []string         `json:"parking_restrictions,omitempty"`
	Images              []Image          `json:"images,omitempty"`
	LastUpdated         time.Time        `json:"last_updated"`
}

// StatusSchedule is a planned future status of an EVSE.
type StatusSchedule struct {
	PeriodBegin time.Time  `json:"period_begin"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`
	Status      string     `json:"status"`
}

// FindConnector returns the index of the connector with id, or -1.
func (e *EVSE) FindConnector(id string) int {
	for i := range e.Connectors {
		if e.Connectors[i].ID == id {
			return i
		}
	}
	return -1
}

// Connector is a socket or cable on an EVSE.  ID is unique within the EVSE.
type Connector struct {
	ID                 string    `json:"id"`
	Standard           string    `json:"standard"`
	Format             string    `json:"format"`
	PowerType          string    `json:"power_type"`
	MaxVoltage         int       `json:"max_voltage"`
	MaxAmperage        int       `json:"max_amperage"`
	MaxElectricPower   *int      `json:"max_electric_power,omitempty"`
	TariffIDs          []string  `json:"tariff_ids,omitempty"`
	TermsAndConditions *string   `json:"terms_and_conditions,omitempty"`
	LastUpdated        time.Time `json:"last_updated"`
}
