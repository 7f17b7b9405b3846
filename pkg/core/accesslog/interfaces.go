//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package accesslog provides interfaces and implementations for audit logging
// of access decisions.
//
// Every request that reaches the access gate produces exactly one
// [AccessRecord], whether it was granted or denied, creating an audit trail of
// which party acted on which resource and why a request was refused.
//
// # Built-in Implementations
//
// The package provides several stream implementations:
//   - [NewStdoutFactory]: Writes JSON records to stdout (default for development)
//   - [NewIoWriterFactory]: Writes JSON records to any io.Writer
//   - [NewNullFactory]: Discards all records (useful for testing or benchmarks)
//
// # Custom Implementations
//
// To ship records elsewhere, implement [Factory] and [Stream] and pass the
// factory to the hub with options.WithAccessLog.
package accesslog

import "time"

// Decision is the outcome of an access check.
type Decision string

// Decisions.
const (
	Grant Decision = "GRANT"
	Deny  Decision = "DENY"
)

// AccessRecord describes one access gate decision.
type AccessRecord struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	RequestID string            `json:"request_id,omitempty"`
	Party     string            `json:"party,omitempty"`
	Role      string            `json:"role"`
	Operation string            `json:"operation"`
	Resource  string            `json:"resource,omitempty"`
	Decision  Decision          `json:"decision"`
	Reason    string            `json:"reason,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Factory creates access log [Stream] instances.
//
// Early initialization (validating configuration) should happen during factory
// construction. Late initialization (opening connections, allocating buffers)
// should happen in [Factory.NewStream].
type Factory interface {
	// NewStream creates a new access log stream.
	NewStream() (Stream, error)
}

// Stream is the interface for sending access records to an audit destination.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Stream interface {
	// Send delivers an access record to the audit destination.
	//
	// Send should not modify the record. The hub logs send errors but does not
	// retry.
	Send(record *AccessRecord) error

	// Close releases any resources held by the stream.
	Close()
}
