//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package canonical renders values into a canonical JSON form: object keys
// sorted, no insignificant whitespace, numbers kept as written.  Two values
// that serialize to the same logical document produce the same bytes no
// matter how their fields are ordered.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Bytes returns the canonical JSON of v.  Top-level keys listed in exclude are
// dropped before rendering.
func Bytes(v interface{}, exclude ...string) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return Normalize(raw, exclude...)
}

// Normalize canonicalizes an already encoded JSON document.
func Normalize(raw []byte, exclude ...string) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("canonical: %w", err)
	}

	if obj, ok := doc.(map[string]interface{}); ok {
		for _, k := range exclude {
			delete(obj, k)
		}
	}

	// encoding/json writes map keys in sorted order at every depth
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("canonical: %w", err)
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Hash returns the hex encoded SHA-256 of the canonical JSON of v.
func Hash(v interface{}, exclude ...string) (string, error) {
	b, err := Bytes(v, exclude...)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Equal reports whether a and b have the same canonical JSON.
func Equal(a, b interface{}) bool {
	ab, err := Bytes(a)
	if err != nil {
		return false
	}
	bb, err := Bytes(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}
