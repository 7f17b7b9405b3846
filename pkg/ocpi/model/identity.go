//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package model defines the OCPI objects exchanged between charging-network
// operators and e-mobility service providers, together with the identity
// records of the remote parties that exchange them.
//
// Every resource carries its owning partition (country code and party id), a
// protocol-defined id and a last_updated timestamp.  Optional protocol fields
// are pointers or omitempty slices so that a merge-patch null can remove them.
package model

import (
	"fmt"
	"regexp"
	"time"
)

// Role is the protocol-defined capacity in which a party acts.
type Role string

// Roles defined by OCPI 2.2.1.
const (
	RoleCPO   Role = "CPO"
	RoleEMSP  Role = "EMSP"
	RoleHUB   Role = "HUB"
	RoleNAP   Role = "NAP"
	RoleNSP   Role = "NSP"
	RoleOTHER Role = "OTHER"
	RoleSCSP  Role = "SCSP"
)

var knownRoles = map[Role]bool{
	RoleCPO: true, RoleEMSP: true, RoleHUB: true, RoleNAP: true,
	RoleNSP: true, RoleOTHER: true, RoleSCSP: true,
}

// Valid reports whether r is one of the OCPI roles.
func (r Role) Valid() bool {
	return knownRoles[r]
}

var (
	countryCodeRE = regexp.MustCompile(`^[A-Z]{2}$`)
	partyIDRE     = regexp.MustCompile(`^[A-Z0-9]{3}$`)
)

// ValidCountryCode reports whether s is an ISO-3166 alpha-2 country code.
func ValidCountryCode(s string) bool {
	return countryCodeRE.MatchString(s)
}

// ValidPartyID reports whether s is a three character ISO-15118 party id.
func ValidPartyID(s string) bool {
	return partyIDRE.MatchString(s)
}

// Partition is the (country code, party id) pair scoping a tenant's resources.
type Partition struct {
	CountryCode string `json:"country_code" yaml:"country_code"`
	PartyID     string `json:"party_id" yaml:"party_id"`
}

func (p Partition) String() string {
	return p.CountryCode + "*" + p.PartyID
}

// Valid checks the syntax of both halves of the partition.
func (p Partition) Valid() error {
	if !ValidCountryCode(p.CountryCode) {
		return fmt.Errorf("invalid country_code %q", p.CountryCode)
	}
	if !ValidPartyID(p.PartyID) {
		return fmt.Errorf("invalid party_id %q", p.PartyID)
	}
	return nil
}

// PartyStatus enables or disables a whole party regardless of its tokens.
type PartyStatus string

// Party statuses.
const (
	PartyEnabled  PartyStatus = "ENABLED"
	PartyDisabled PartyStatus = "DISABLED"
)

// GrantStatus is the state of an access token issued to a remote party.
type GrantStatus string

// Grant statuses.
const (
	GrantAllowed GrantStatus = "ALLOWED"
	GrantBlocked GrantStatus = "BLOCKED"
	GrantPending GrantStatus = "PENDING"
)

// ConnectionStatus tracks our client connection toward a remote party.
type ConnectionStatus string

// Connection statuses.
const (
	ConnectionConnected ConnectionStatus = "CONNECTED"
	ConnectionOffline   ConnectionStatus = "OFFLINE"
	ConnectionPlanned   ConnectionStatus = "PLANNED"
	ConnectionSuspended ConnectionStatus = "SUSPENDED"
)

// AccessInfo is a token the remote party presents to us.
type AccessInfo struct {
	Token       string      `json:"token" yaml:"token"`
	Status      GrantStatus `json:"status" yaml:"status"`
	VersionsURL string      `json:"versions_url,omitempty" yaml:"versions_url,omitempty"`
	// Roles limits what the token may act as.  Empty means the party's own role.
	Roles []Role `json:"roles,omitempty" yaml:"roles,omitempty"`
}

// Permits reports whether the token may act as role on behalf of a party
// registered with partyRole.
func (a AccessInfo) Permits(partyRole, role Role) bool {
	if len(a.Roles) == 0 {
		return partyRole == role
	}
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RemoteAccessInfo is the token we present when acting as a client of the party.
type RemoteAccessInfo struct {
	Token           string           `json:"token" yaml:"token"`
	VersionsURL     string           `json:"versions_url" yaml:"versions_url"`
	SelectedVersion string           `json:"selected_version,omitempty" yaml:"selected_version,omitempty"`
	Status          ConnectionStatus `json:"status" yaml:"status"`
}

// Image is a reference to a logo or photo.
type Image struct {
	URL       string  `json:"url" yaml:"url"`
	Thumbnail *string `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
	Category  string  `json:"category" yaml:"category"`
	Type      string  `json:"type" yaml:"type"`
}

// BusinessDetails describes the company behind a party or operator.
type BusinessDetails struct {
	Name    string  `json:"name" yaml:"name"`
	Website *string `json:"website,omitempty" yaml:"website,omitempty"`
	Logo    *Image  `json:"logo,omitempty" yaml:"logo,omitempty"`
}

// RemoteParty is a registered counterpart.  Its identity is the triple of
// country code, party id and role; Hash covers every other field and changes
// whenever any of them does.
type RemoteParty struct {
	CountryCode      string             `json:"country_code" yaml:"country_code"`
	PartyID          string             `json:"party_id" yaml:"party_id"`
	Role             Role               `json:"role" yaml:"role"`
	BusinessDetails  BusinessDetails    `json:"business_details" yaml:"business_details"`
	Status           PartyStatus        `json:"status" yaml:"status"`
	AccessInfo       []AccessInfo       `json:"access_info" yaml:"access_info"`
	RemoteAccessInfo []RemoteAccessInfo `json:"remote_access_info" yaml:"remote_access_info"`
	LastUpdated      time.Time          `json:"last_updated" yaml:"-"`
	Hash             string             `json:"hash" yaml:"-"`
}

// PartyKey renders the identity key "{country}-{party}_{role}".
func PartyKey(countryCode, partyID string, role Role) string {
	return fmt.Sprintf("%s-%s_%s", countryCode, partyID, role)
}

// Key returns the party's identity key.
func (p *RemoteParty) Key() string {
	return PartyKey(p.CountryCode, p.PartyID, p.Role)
}

// Partition returns the resource partition owned by the party.
func (p *RemoteParty) Partition() Partition {
	return Partition{CountryCode: p.CountryCode, PartyID: p.PartyID}
}

// CredentialsRole is one role a party acts in, as listed in [Credentials].
type CredentialsRole struct {
	Role            Role            `json:"role"`
	BusinessDetails BusinessDetails `json:"business_details"`
	PartyID         string          `json:"party_id"`
	CountryCode     string          `json:"country_code"`
}

// Credentials is the view of a party returned to the party itself.  It
// carries the presented token only; other access tokens and the tokens we
// present to the party are never part of it.
type Credentials struct {
	Token       string            `json:"token"`
	URL         string            `json:"url"`
	Roles       []CredentialsRole `json:"roles"`
	Status      PartyStatus       `json:"status"`
	LastUpdated time.Time         `json:"last_updated"`
	Hash        string            `json:"hash"`
}

// Credentials renders the view of the party for the caller holding token.
// Roles are those the token grants, or the party's own role when it names
// none.
func (p *RemoteParty) Credentials(token string) *Credentials {
	c := &Credentials{
		Token:       token,
		Status:      p.Status,
		LastUpdated: p.LastUpdated,
		Hash:        p.Hash,
	}

	roles := []Role{p.Role}
	for _, ai := range p.AccessInfo {
		if ai.Token != token {
			continue
		}
		c.URL = ai.VersionsURL
		if len(ai.Roles) > 0 {
			roles = ai.Roles
		}
		break
	}

	for _, role := range roles {
		c.Roles = append(c.Roles, CredentialsRole{
			Role:            role,
			BusinessDetails: p.BusinessDetails,
			PartyID:         p.PartyID,
			CountryCode:     p.CountryCode,
		})
	}
	return c
}
