//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package patch applies JSON merge-patch documents to typed resources.
//
// Objects are merged recursively, scalars and plain arrays are replaced, and
// null removes a field.  Arrays that hold children with identity (EVSEs by
// uid, Connectors by id) are merged entry by entry instead of being replaced.
// Every object that a patch touches and that carries a last_updated is
// re-stamped with the engine clock, never with a client supplied value.
package patch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/manetu/ocpihub/internal/logging"
	"github.com/manetu/ocpihub/pkg/ocpi/schema"
)

var logger = logging.GetLogger("ocpihub.patch")

const agent = "patch"

const lastUpdated = "last_updated"

// Engine applies patches.  Its zero value is not usable; see [NewEngine].
type Engine struct {
	clock    func() time.Time
	implicit map[string]bool
}

// Option configures an [Engine].
type Option func(*Engine)

// WithClock sets the time source used to stamp last_updated.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithImplicitCreate sets, per child kind, whether a patch may append a child
// whose identity is not yet present.  Kinds not listed disallow it.
func WithImplicitCreate(policy map[string]bool) Option {
	return func(e *Engine) {
		for k, v := range policy {
			e.implicit[k] = v
		}
	}
}

// NewEngine creates an engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		clock:    time.Now,
		implicit: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the engine clock in UTC.
func (e *Engine) Now() time.Time {
	return e.clock().UTC()
}

// AllowsImplicit reports the implicit creation policy for a child kind.  The
// parent resource kind is accepted as an alias, so "locations" governs EVSEs.
func (e *Engine) AllowsImplicit(kind string) bool {
	return e.implicit[kind]
}

// Apply merges doc into existing and returns the patched copy.  existing is
// never modified.  Any error is a *Failure.
func Apply[T any](e *Engine, s *schema.Object, parentKind string, existing T, doc []byte) (T, error) {
	var zero T

	p, f := parsePatch(doc)
	if f != nil {
		return zero, f
	}

	base, err := toMap(existing)
	if err != nil {
		return zero, fail(InvalidResult, "", err.Error())
	}

	m := &merger{engine: e, parentKind: parentKind, stamp: e.Now().Format(time.RFC3339Nano)}
	if f := m.object(s, base, p, ""); f != nil {
		logger.Debugf(agent, "apply", "rejected: %v", f)
		return zero, f
	}
	if s.Stamped {
		base[lastUpdated] = m.stamp
	}

	if err := s.Validate(base); err != nil {
		return zero, fail(InvalidResult, "", err.Error())
	}

	out, f := fromMap[T](base)
	if f != nil {
		return zero, f
	}
	return out, nil
}

func parsePatch(doc []byte) (map[string]interface{}, *Failure) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fail(MalformedPatch, "", err.Error())
	}
	if dec.More() {
		return nil, fail(MalformedPatch, "", "trailing data after patch document")
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, fail(MalformedPatch, "", "patch document must be a JSON object")
	}
	return obj, nil
}

func toMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("no resource to patch")
	}
	return m, nil
}

func fromMap[T any](m map[string]interface{}) (T, *Failure) {
	var out T
	raw, err := json.Marshal(m)
	if err != nil {
		return out, fail(InvalidResult, "", err.Error())
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, fail(InvalidResult, "", err.Error())
	}
	return out, nil
}

type merger struct {
	engine     *Engine
	parentKind string
	stamp      string
}

func (m *merger) object(s *schema.Object, target, p map[string]interface{}, prefix string) *Failure {
	for _, k := range sortedKeys(p) {
		pv := p[k]
		path := join(prefix, k)

		if k == lastUpdated {
			// stamped by the engine
			continue
		}

		if s != nil && s.IsImmutable(k) {
			if pv == nil || !sameScalar(target[k], pv) {
				return fail(ImmutableField, path, "field cannot be changed by a patch")
			}
			continue
		}

		if pv == nil {
			if s != nil && s.IsMandatory(k) {
				return fail(MandatoryFieldRemoved, path, "mandatory field cannot be removed")
			}
			delete(target, k)
			continue
		}

		if s != nil {
			if l, ok := s.Lists[k]; ok {
				merged, f := m.list(l, target[k], pv, path)
				if f != nil {
					return f
				}
				target[k] = merged
				continue
			}
		}

		if po, ok := pv.(map[string]interface{}); ok {
			var child *schema.Object
			if s != nil {
				child = s.Objects[k]
			}
			to, isObj := target[k].(map[string]interface{})
			if !isObj {
				to = make(map[string]interface{})
			}
			if f := m.object(child, to, po, path); f != nil {
				return f
			}
			target[k] = to
			continue
		}

		target[k] = pv
	}
	return nil
}

func (m *merger) list(l *schema.List, current, pv interface{}, path string) ([]interface{}, *Failure) {
	entries, ok := pv.([]interface{})
	if !ok {
		return nil, fail(MalformedPatch, path, "expected an array")
	}
	existing, _ := current.([]interface{})

	index := make(map[string]int, len(existing))
	for i, e := range existing {
		if obj, ok := e.(map[string]interface{}); ok {
			if id, ok := obj[l.Identity].(string); ok {
				index[id] = i
			}
		}
	}

	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		entryPath := fmt.Sprintf("%s[%d]", path, i)
		pe, ok := e.(map[string]interface{})
		if !ok {
			return nil, fail(MalformedPatch, entryPath, "expected an object")
		}
		id, _ := pe[l.Identity].(string)
		if id == "" {
			return nil, fail(MissingChildIdentity, join(entryPath, l.Identity), "entry has no identity")
		}
		if seen[id] {
			return nil, fail(MalformedPatch, join(entryPath, l.Identity), fmt.Sprintf("duplicate %s %q", l.Identity, id))
		}
		seen[id] = true

		if at, found := index[id]; found {
			child := existing[at].(map[string]interface{})
			if f := m.object(l.Item, child, pe, entryPath); f != nil {
				return nil, f
			}
			if l.Item.Stamped {
				child[lastUpdated] = m.stamp
			}
			continue
		}

		if !m.engine.AllowsImplicit(l.Kind) && !m.engine.AllowsImplicit(m.parentKind) {
			return nil, &Failure{Kind: UnknownChild, Path: join(entryPath, l.Identity), Child: id,
				Detail: fmt.Sprintf("unknown %s", l.Identity)}
		}

		child := make(map[string]interface{})
		if f := m.object(l.Item, child, pe, entryPath); f != nil {
			return nil, f
		}
		child[l.Identity] = id
		if l.Item.Stamped {
			child[lastUpdated] = m.stamp
		}
		existing = append(existing, child)
		index[id] = len(existing) - 1
	}

	return existing, nil
}

// sameScalar compares two decoded JSON scalars.
func sameScalar(a, b interface{}) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case json.Number:
		bv, ok := b.(json.Number)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}

func join(prefix, field string) string {
	if prefix == "" {
		return field
	}
	return prefix + "." + field
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
