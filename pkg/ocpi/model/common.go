//
//  Copyright © Manetu Inc. All rights reserved.
//

package model

import "time"

// Resource is any versioned object held by the resource store.
type Resource interface {
	GetPartition() Partition
	GetID() string
	GetLastUpdated() time.Time
}

// DisplayText is a localized text.
type DisplayText struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

// GeoLocation holds WGS84 coordinates as decimal strings, as OCPI mandates.
type GeoLocation struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

// Price is an amount with and without VAT.
type Price struct {
	ExclVat float64  `json:"excl_vat"`
	InclVat *float64 `json:"incl_vat,omitempty"`
}

// CdrToken identifies the token used for a session or CDR.
type CdrToken struct {
	CountryCode string `json:"country_code"`
	PartyID     string `json:"party_id"`
	UID         string `json:"uid"`
	Type        string `json:"type"`
	ContractID  string `json:"contract_id"`
}
