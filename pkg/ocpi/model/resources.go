//
//  Copyright © Manetu Inc. All rights reserved.
//

package model

import "time"

// Session is an ongoing or finished charging session.
type Session struct {
	CountryCode            string     `json:"country_code"`
	PartyID                string     `json:"party_id"`
	ID                     string     `json:"id"`
	StartDateTime          time.Time  `json:"start_date_time"`
	EndDateTime            *time.Time `json:"end_date_time,omitempty"`
	Kwh                    float64    `json:"kwh"`
	CdrToken               CdrToken   `json:"cdr_token"`
	AuthMethod             string     `json:"auth_method"`
	AuthorizationReference *string    `json:"authorization_reference,omitempty"`
	LocationID             string     `json:"location_id"`
	EvseUID                string     `json:"evse_uid"`
	ConnectorID            string     `json:"connector_id"`
	MeterID                *string    `json:"meter_id,omitempty"`
	Currency               string     `json:"currency"`
	TotalCost              *Price     `json:"total_cost,omitempty"`
	Status                 string     `json:"status"`
	LastUpdated            time.Time  `json:"last_updated"`
}

// GetPartition implements Resource.
func (s *Session) GetPartition() Partition {
	return Partition{CountryCode: s.CountryCode, PartyID: s.PartyID}
}

// GetID implements Resource.
func (s *Session) GetID() string { return s.ID }

// GetLastUpdated implements Resource.
func (s *Session) GetLastUpdated() time.Time { return s.LastUpdated }

// Tariff describes how charging is priced.
type Tariff struct {
	CountryCode   string          `json:"country_code"`
	PartyID       string          `json:"party_id"`
	ID            string          `json:"id"`
	Currency      string          `json:"currency"`
	Type          *string         `json:"type,omitempty"`
	TariffAltText []DisplayText   `json:"tariff_alt_text,omitempty"`
	TariffAltURL  *string         `json:"tariff_alt_url,omitempty"`
	MinPrice      *Price          `json:"min_price,omitempty"`
	MaxPrice      *Price          `json:"max_price,omitempty"`
	Elements      []TariffElement `json:"elements"`
	StartDateTime *time.Time      `json:"start_date_time,omitempty"`
	EndDateTime   *time.Time      `json:"end_date_time,omitempty"`
	LastUpdated   time.Time       `json:"last_updated"`
}

// TariffElement groups price components sharing restrictions.
type TariffElement struct {
	PriceComponents []PriceComponent `json:"price_components"`
}

// PriceComponent prices one dimension (energy, time, flat, parking).
type PriceComponent struct {
	Type     string   `json:"type"`
	Price    float64  `json:"price"`
	Vat      *float64 `json:"vat,omitempty"`
	StepSize int      `json:"step_size"`
}

// GetPartition implements Resource.
func (t *Tariff) GetPartition() Partition {
	return Partition{CountryCode: t.CountryCode, PartyID: t.PartyID}
}

// GetID implements Resource.
func (t *Tariff) GetID() string { return t.ID }

// GetLastUpdated implements Resource.
func (t *Tariff) GetLastUpdated() time.Time { return t.LastUpdated }

// CDR is the immutable charge detail record of a finished session.
type CDR struct {
	CountryCode   string      `json:"country_code"`
	PartyID       string      `json:"party_id"`
	ID            string      `json:"id"`
	StartDateTime time.Time   `json:"start_date_time"`
	EndDateTime   time.Time   `json:"end_date_time"`
	SessionID     *string     `json:"session_id,omitempty"`
	CdrToken      CdrToken    `json:"cdr_token"`
	AuthMethod    string      `json:"auth_method"`
	CdrLocation   CdrLocation `json:"cdr_location"`
	Currency      string      `json:"currency"`
	TotalCost     Price       `json:"total_cost"`
	TotalEnergy   float64     `json:"total_energy"`
	TotalTime     float64     `json:"total_time"`
	Remark        *string     `json:"remark,omitempty"`
	LastUpdated   time.Time   `json:"last_updated"`
}

// CdrLocation is the snapshot of the location a CDR was produced at.
type CdrLocation struct {
	ID                 string      `json:"id"`
	Address            string      `json:"address"`
	City               string      `json:"city"`
	Country            string      `json:"country"`
	Coordinates        GeoLocation `json:"coordinates"`
	EvseUID            string      `json:"evse_uid"`
	EvseID             string      `json:"evse_id"`
	ConnectorID        string      `json:"connector_id"`
	ConnectorStandard  string      `json:"connector_standard"`
	ConnectorFormat    string      `json:"connector_format"`
	ConnectorPowerType string      `json:"connector_power_type"`
}

// GetPartition implements Resource.
func (c *CDR) GetPartition() Partition {
	return Partition{CountryCode: c.CountryCode, PartyID: c.PartyID}
}

// GetID implements Resource.
func (c *CDR) GetID() string { return c.ID }

// GetLastUpdated implements Resource.
func (c *CDR) GetLastUpdated() time.Time { return c.LastUpdated }

// Token is an authorization instrument (RFID card, app user) issued by an eMSP.
type Token struct {
	CountryCode        string    `json:"country_code"`
	PartyID            string    `json:"party_id"`
	UID                string    `json:"uid"`
	Type               string    `json:"type"`
	ContractID         string    `json:"contract_id"`
	VisualNumber       *string   `json:"visual_number,omitempty"`
	Issuer             string    `json:"issuer"`
	GroupID            *string   `json:"group_id,omitempty"`
	Valid              bool      `json:"valid"`
	Whitelist          string    `json:"whitelist"`
	Language           *string   `json:"language,omitempty"`
	DefaultProfileType *string   `json:"default_profile_type,omitempty"`
	LastUpdated        time.Time `json:"last_updated"`
}

// GetPartition implements Resource.
func (t *Token) GetPartition() Partition {
	return Partition{CountryCode: t.CountryCode, PartyID: t.PartyID}
}

// GetID implements Resource.
func (t *Token) GetID() string { return t.UID }

// GetLastUpdated implements Resource.
func (t *Token) GetLastUpdated() time.Time { return t.LastUpdated }

// CommandResult is the asynchronous outcome of a command (START_SESSION,
// STOP_SESSION, ...) posted back by a CPO.
type CommandResult struct {
	CountryCode string        `json:"country_code"`
	PartyID     string        `json:"party_id"`
	UID         string        `json:"uid"`
	Command     string        `json:"command"`
	Result      string        `json:"result"`
	Message     []DisplayText `json:"message,omitempty"`
	LastUpdated time.Time     `json:"last_updated"`
}

// GetPartition implements Resource.
func (c *CommandResult) GetPartition() Partition {
	return Partition{CountryCode: c.CountryCode, PartyID: c.PartyID}
}

// GetID implements Resource.
func (c *CommandResult) GetID() string { return c.UID }

// GetLastUpdated implements Resource.
func (c *CommandResult) GetLastUpdated() time.Time { return c.LastUpdated }
