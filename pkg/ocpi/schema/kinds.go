//
//  Copyright © Manetu Inc. All rights reserved.
//

package schema

var partitioned = []string{"country_code", "party_id"}

func ids(field string) []string {
	return append(append([]string{}, partitioned...), field)
}

var geoLocation = &Object{Mandatory: []string{"latitude", "longitude"}}

var businessDetails = &Object{Mandatory: []string{"name"}}

var energyMix = &Object{Mandatory: []string{"is_green_energy"}}

var cdrToken = &Object{Mandatory: []string{"country_code", "party_id", "uid", "type", "contract_id"}}

var price = &Object{Mandatory: []string{"excl_vat"}}

// Connector is a socket on an EVSE.
var Connector = &Object{
	Mandatory: []string{"id", "standard", "format", "power_type", "max_voltage", "max_amperage", "last_updated"},
	Stamped:   true,
}

// EVSE is a charging point; its connectors are keyed by id.
var EVSE = &Object{
	Mandatory: []string{"uid", "status", "connectors", "last_updated"},
	Stamped:   true,
	Objects:   map[string]*Object{"coordinates": geoLocation},
	Lists: map[string]*List{
		"connectors": {Kind: KindConnectors, Identity: "id", Item: Connector},
	},
}

// Location is a charging site; its EVSEs are keyed by uid.
var Location = &Object{
	Mandatory: append(ids("id"), "publish", "address", "city", "country", "coordinates", "time_zone", "last_updated"),
	Immutable: ids("id"),
	Stamped:   true,
	Objects: map[string]*Object{
		"coordinates": geoLocation,
		"operator":    businessDetails,
		"suboperator": businessDetails,
		"owner":       businessDetails,
		"energy_mix":  energyMix,
	},
	Lists: map[string]*List{
		"evses": {Kind: KindEVSEs, Identity: "uid", Item: EVSE},
	},
}

// Session is a charging session.
var Session = &Object{
	Mandatory: append(ids("id"), "start_date_time", "kwh", "cdr_token", "auth_method",
		"location_id", "evse_uid", "connector_id", "currency", "status", "last_updated"),
	Immutable: ids("id"),
	Stamped:   true,
	Objects: map[string]*Object{
		"cdr_token":  cdrToken,
		"total_cost": price,
	},
}

// Tariff is a price definition.
var Tariff = &Object{
	Mandatory: append(ids("id"), "currency", "elements", "last_updated"),
	Immutable: ids("id"),
	Stamped:   true,
	Objects: map[string]*Object{
		"min_price": price,
		"max_price": price,
	},
}

// CDR is a charge detail record.
var CDR = &Object{
	Mandatory: append(ids("id"), "start_date_time", "end_date_time", "cdr_token", "auth_method",
		"cdr_location", "currency", "total_cost", "total_energy", "total_time", "last_updated"),
	Immutable: ids("id"),
	Stamped:   true,
	Objects: map[string]*Object{
		"cdr_token": cdrToken,
		"cdr_location": {Mandatory: []string{"id", "address", "city", "country", "coordinates",
			"evse_uid", "evse_id", "connector_id", "connector_standard", "connector_format", "connector_power_type"}},
		"total_cost": price,
	},
}

// Token is an authorization instrument.
var Token = &Object{
	Mandatory: append(ids("uid"), "type", "contract_id", "issuer", "valid", "whitelist", "last_updated"),
	Immutable: ids("uid"),
	Stamped:   true,
}

// CommandResult is the outcome of an asynchronous command.
var CommandResult = &Object{
	Mandatory: append(ids("uid"), "command", "result", "last_updated"),
	Immutable: ids("uid"),
	Stamped:   true,
}

var byKind = map[string]*Object{
	KindLocations:  Location,
	KindEVSEs:      EVSE,
	KindConnectors: Connector,
	KindSessions:   Session,
	KindTariffs:    Tariff,
	KindCDRs:       CDR,
	KindTokens:     Token,
	KindCommands:   CommandResult,
}

// ForKind returns the schema of a kind, or nil.
func ForKind(kind string) *Object {
	return byKind[kind]
}
