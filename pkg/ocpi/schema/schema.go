//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package schema describes, for each resource kind, the parts of its JSON
// layout the patch engine and validators need: mandatory fields, nested
// objects, and lists whose entries are matched by an identity field.
package schema

import (
	"fmt"
	"sort"
)

// Resource kinds as they appear in OCPI module URLs.
const (
	KindLocations  = "locations"
	KindEVSEs      = "evses"
	KindConnectors = "connectors"
	KindSessions   = "sessions"
	KindTariffs    = "tariffs"
	KindCDRs       = "cdrs"
	KindTokens     = "tokens"
	KindCommands   = "commands"
)

// Object is the shape of one JSON object.
type Object struct {
	// Mandatory fields must be present and non-null.
	Mandatory []string
	// Immutable fields may not change value through a patch.
	Immutable []string
	// Stamped objects carry a last_updated refreshed whenever they are patched.
	Stamped bool
	// Objects are nested objects with their own mandatory fields.
	Objects map[string]*Object
	// Lists are arrays of child objects keyed by an identity field.
	Lists map[string]*List
}

// List is an array of children with identity.
type List struct {
	// Kind names the child kind for the implicit creation policy.
	Kind string
	// Identity is the field that identifies an entry, unique within the list.
	Identity string
	Item     *Object
}

// IsMandatory reports whether field must be present.
func (o *Object) IsMandatory(field string) bool {
	return contains(o.Mandatory, field)
}

// IsImmutable reports whether field may not change.
func (o *Object) IsImmutable(field string) bool {
	return contains(o.Immutable, field)
}

func contains(list []string, s string) bool {
	for _, f := range list {
		if f == s {
			return true
		}
	}
	return false
}

// Violation is a validation failure at a JSON path.
type Violation struct {
	Path   string
	Reason string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Reason)
}

// Validate checks doc against o: mandatory fields present and non-null, nested
// objects well formed, every list entry carrying a unique identity.
func (o *Object) Validate(doc map[string]interface{}) error {
	return o.validate("", doc)
}

func (o *Object) validate(prefix string, doc map[string]interface{}) error {
	for _, f := range o.Mandatory {
		v, ok := doc[f]
		if !ok || v == nil {
			return &Violation{Path: join(prefix, f), Reason: "mandatory field missing"}
		}
		if s, isString := v.(string); isString && s == "" {
			return &Violation{Path: join(prefix, f), Reason: "mandatory field empty"}
		}
	}

	for _, name := range sortedKeys(o.Objects) {
		v, ok := doc[name]
		if !ok || v == nil {
			continue
		}
		child, isObj := v.(map[string]interface{})
		if !isObj {
			return &Violation{Path: join(prefix, name), Reason: "expected an object"}
		}
		if err := o.Objects[name].validate(join(prefix, name), child); err != nil {
			return err
		}
	}

	for _, name := range sortedKeys(o.Lists) {
		v, ok := doc[name]
		if !ok || v == nil {
			continue
		}
		entries, isArr := v.([]interface{})
		if !isArr {
			return &Violation{Path: join(prefix, name), Reason: "expected an array"}
		}
		l := o.Lists[name]
		seen := make(map[string]bool, len(entries))
		for i, e := range entries {
			path := fmt.Sprintf("%s[%d]", join(prefix, name), i)
			entry, isObj := e.(map[string]interface{})
			if !isObj {
				return &Violation{Path: path, Reason: "expected an object"}
			}
			id, _ := entry[l.Identity].(string)
			if id == "" {
				return &Violation{Path: join(path, l.Identity), Reason: "identity missing"}
			}
			if seen[id] {
				return &Violation{Path: join(path, l.Identity), Reason: fmt.Sprintf("duplicate %s %q", l.Identity, id)}
			}
			seen[id] = true
			if err := l.Item.validate(path, entry); err != nil {
				return err
			}
		}
	}

	return nil
}

func join(prefix, field string) string {
	if prefix == "" {
		return field
	}
	return prefix + "." + field
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
