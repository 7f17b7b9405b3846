//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package concurrency holds the optimistic concurrency rules of the hub: how a
// resource version is tagged and whether an incoming version may replace the
// stored one.  Nothing here touches the store.
package concurrency

import (
	"reflect"
	"strings"
	"time"

	"github.com/manetu/ocpihub/pkg/ocpi/canonical"
	"github.com/manetu/ocpihub/pkg/ocpi/model"
)

// ReasonDowngrade is the rejection reason of a stale write.
const ReasonDowngrade = "downgrade rejected"

// Verdict is the outcome of [DecideWrite].
type Verdict int

// Verdicts.
const (
	Accept Verdict = iota
	Reject
)

func (v Verdict) String() string {
	if v == Accept {
		return "accept"
	}
	return "reject"
}

// Decision is a verdict plus, for rejections, the reason.
type Decision struct {
	Verdict Verdict
	Reason  string
}

// Accepted reports whether the write may proceed.
func (d Decision) Accepted() bool {
	return d.Verdict == Accept
}

// DecideWrite accepts incoming when there is no existing version, when incoming
// is strictly newer, or when allowDowngrade is set.  A nil existing (including
// a typed nil pointer) means absent.
func DecideWrite(existing, incoming model.Resource, allowDowngrade bool) Decision {
	if isAbsent(existing) || allowDowngrade {
		return Decision{Verdict: Accept}
	}
	return DecideTimes(existing.GetLastUpdated(), incoming.GetLastUpdated(), false)
}

// DecideTimes applies the write rule to bare timestamps.  Sub-objects such as
// EVSEs and Connectors carry their own last_updated but are not resources.
func DecideTimes(existing, incoming time.Time, allowDowngrade bool) Decision {
	if allowDowngrade || incoming.After(existing) {
		return Decision{Verdict: Accept}
	}
	return Decision{Verdict: Reject, Reason: ReasonDowngrade}
}

func isAbsent(r model.Resource) bool {
	if r == nil {
		return true
	}
	v := reflect.ValueOf(r)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// ComputeETag returns a strong entity tag over the canonical JSON of r.  The
// value is unquoted; use [Quote] for the header form.
func ComputeETag(r interface{}) (string, error) {
	return canonical.Hash(r)
}

// Quote renders a tag as an HTTP header value.
func Quote(tag string) string {
	return `"` + tag + `"`
}

// Matches reports whether an If-Match or If-None-Match header value matches
// tag.  The header may list several tags, use the wildcard, or carry weak tags.
func Matches(header, tag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		candidate = strings.Trim(candidate, `"`)
		if candidate == tag {
			return true
		}
	}
	return false
}
