//
//  Copyright © Manetu Inc. All rights reserved.
//

package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIsOrderIndependent(t *testing.T) {
	a, err := Normalize([]byte(`{"b":1,"a":{"y":true,"x":[3,1]}}`))
	require.NoError(t, err)
	b, err := Normalize([]byte(`{ "a": {"x":[3,1], "y":true}, "b": 1 }`))
	require.NoError(t, err)

	assert.Equal(t, string(a), string(b))
	assert.Equal(t, `{"a":{"x":[3,1],"y":true},"b":1}`, string(a))
}

func TestNormalizeKeepsNumbers(t *testing.T) {
	out, err := Normalize([]byte(`{"kwh":12.50,"big":12345678901234567890}`))
	require.NoError(t, err)
	assert.Equal(t, `{"big":12345678901234567890,"kwh":12.50}`, string(out))
}

func TestBytesExclude(t *testing.T) {
	v := map[string]interface{}{"hash": "abc", "name": "x", "nested": map[string]interface{}{"hash": "kept"}}
	out, err := Bytes(v, "hash")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"x","nested":{"hash":"kept"}}`, string(out))
}

func TestHash(t *testing.T) {
	type s struct {
		A string `json:"a"`
		B int    `json:"b"`
	}

	h1, err := Hash(s{A: "x", B: 1})
	require.NoError(t, err)
	h2, err := Hash(map[string]interface{}{"b": 1, "a": "x"})
	require.NoError(t, err)
	h3, err := Hash(s{A: "x", B: 2})
	require.NoError(t, err)

	assert.Len(t, h1, 64)
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(map[string]int{"a": 1}, struct {
		A int `json:"a"`
	}{A: 1}))
	assert.False(t, Equal(map[string]int{"a": 1}, map[string]int{"a": 2}))
	assert.False(t, Equal(make(chan int), 1))
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	_, err := Normalize([]byte(`{"a":`))
	assert.Error(t, err)
}
