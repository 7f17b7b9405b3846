//
//  Copyright © Manetu Inc. All rights reserved.
//

package patch

import (
	"encoding/json"

	"github.com/manetu/ocpihub/pkg/ocpi/schema"
)

// Nest turns a patch of one child into a patch of its parent.  The child is
// addressed by id in the list field of the parent schema; an identity in the
// document that contradicts id is a failure.
//
// Patching EVSE E1 of a location with {"status":"CHARGING"} becomes
// {"evses":[{"uid":"E1","status":"CHARGING"}]}.
func Nest(doc []byte, parent *schema.Object, field, id string) ([]byte, error) {
	l, ok := parent.Lists[field]
	if !ok {
		return nil, fail(MalformedPatch, field, "not a child list")
	}

	obj, f := parsePatch(doc)
	if f != nil {
		return nil, f
	}

	if v, present := obj[l.Identity]; present {
		if s, isString := v.(string); !isString || s != id {
			return nil, fail(ImmutableField, l.Identity, "identity does not match the addressed child")
		}
	}
	obj[l.Identity] = id

	out, err := json.Marshal(map[string]interface{}{field: []interface{}{obj}})
	if err != nil {
		return nil, fail(MalformedPatch, "", err.Error())
	}
	return out, nil
}
