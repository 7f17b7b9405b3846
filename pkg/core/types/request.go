//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package types holds the transport independent request and outcome of a
// hub operation.  The HTTP server translates to and from these; tests drive
// the hub with them directly.
package types

import (
	"net/http"
	"time"
)

// Version is the protocol version served.
const Version = "2.2.1"

// ModulePath is the URL prefix of the module endpoints.
const ModulePath = "/ocpi/" + Version

// Kinds served outside the resource modules.
const (
	KindCredentials    = "credentials"
	KindVersions       = "versions"
	KindVersionDetails = "version_details"
)

// Query carries the list and write options of a request.
type Query struct {
	Offset int
	// Limit of zero means the configured maximum.
	Limit int
	// From is inclusive and To exclusive; zero values are unbounded.
	From time.Time
	To   time.Time
	// ForceDowngrade asks to accept a write that is not newer than the stored
	// version.  It is honoured only when the operator allows overrides.
	ForceDowngrade bool
}

// Request is one hub operation.
type Request struct {
	RequestID string
	Method    string
	// Kind is the module, e.g. "locations" or "tokens".
	Kind string
	// Segments is the path below the module: country code, party id, id and,
	// for locations, EVSE uid and connector id.
	Segments    []string
	Token       string
	Query       Query
	Body        []byte
	IfMatch     string
	IfNoneMatch string
}

// Outcome is the result of a [Request], ready to be rendered.
type Outcome struct {
	HTTPStatus int
	// StatusCode is the OCPI status_code: 1000 on success, 2xxx or 3xxx on failure.
	StatusCode int
	Message    string
	Data       interface{}
	// ETag is quoted, empty when the outcome addresses no single object.
	ETag         string
	LastModified time.Time
	// Total and Limit are set on list outcomes; HasMore tells whether a next
	// page starts at NextOffset.
	Total      int
	Limit      int
	HasMore    bool
	NextOffset int
	// Location is the URL of a created object when the client did not name it.
	Location string
}

// Success reports whether the outcome is a 2xx or a 304.
func (o *Outcome) Success() bool {
	return (o.HTTPStatus >= 200 && o.HTTPStatus < 300) || o.HTTPStatus == http.StatusNotModified
}

// IsList reports whether the outcome is a page of a collection.
func (o *Outcome) IsList() bool {
	return o.Limit > 0
}
