//
//  Copyright © Manetu Inc. All rights reserved.
//

package parties

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTempFileWithContent(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const duplicateSeed = `
parties:
  - country_code: DE
    party_id: ABC
    role: CPO
  - country_code: DE
    party_id: ABC
    role: CPO
`

// TestCheck_ValidSeed tests the seed shipped in testdata
func TestCheck_ValidSeed(t *testing.T) {
	results := check([]string{"../../../../testdata/parties.yaml"})
	require.Len(t, results, 1)

	r := results[0]
	assert.True(t, r.Valid)
	assert.NoError(t, r.Error)
	require.Len(t, r.Parties, 2)
	assert.True(t, strings.HasPrefix(r.Parties[0], "DE-ABC_CPO "), r.Parties[0])
	assert.True(t, strings.HasPrefix(r.Parties[1], "NL-EMS_EMSP "), r.Parties[1])
	assert.Greater(t, len(strings.TrimPrefix(r.Parties[0], "DE-ABC_CPO ")), 0, "hash should be printed")
}

func TestCheck_Failures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", "parties:\n  - country_code: DE\n    colour: blue\n"},
		{"duplicate party", duplicateSeed},
		{"not yaml", "parties: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := check([]string{createTempFileWithContent(t, tt.content)})
			require.Len(t, results, 1)
			assert.False(t, results[0].Valid)
			assert.Error(t, results[0].Error)
		})
	}
}

func TestCheck_MissingFile(t *testing.T) {
	results := check([]string{filepath.Join(t.TempDir(), "absent.yaml")})
	require.Len(t, results, 1)
	assert.False(t, results[0].Valid)
	assert.Contains(t, results[0].Error.Error(), "error reading seed")
}

// TestCheck_FilesAreIndependent verifies the same party in two files is not
// reported as a duplicate.
func TestCheck_FilesAreIndependent(t *testing.T) {
	seed := "../../../../testdata/parties.yaml"
	results := check([]string{seed, seed})
	require.Len(t, results, 2)
	assert.True(t, results[0].Valid)
	assert.True(t, results[1].Valid)
	assert.Equal(t, results[0].Parties, results[1].Parties)
}

func TestReport(t *testing.T) {
	var out bytes.Buffer
	err := report(&out, []Result{
		{File: "good.yaml", Valid: true, Parties: []string{"DE-ABC_CPO abc123"}},
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "✓ good.yaml: 1 party(ies)")
	assert.Contains(t, out.String(), "  DE-ABC_CPO abc123")
	assert.Contains(t, out.String(), "All 1 file(s) valid")

	out.Reset()
	err = report(&out, []Result{
		{File: "good.yaml", Valid: true},
		{File: "bad.yaml", Error: assert.AnError},
	})
	require.Error(t, err)
	assert.Contains(t, out.String(), "✗ bad.yaml")
	assert.Contains(t, out.String(), "Validation failed: 1 of 2 file(s) with errors")
}
