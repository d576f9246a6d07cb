// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "queries.json", `{
		"viruses": [["influenza", "h5n1"], ["coronavirus"]],
		"hosts": [["avian"]],
		"disqualifying_terms": [["computer virus"], ["viral marketing"]]
	}`)

	spec, disq, err := LoadJSON(path)
	require.NoError(t, err)

	require.Len(t, spec.Groups, 2)
	assert.Equal(t, []string{"viruses", "hosts"}, spec.GroupNames())
	assert.Equal(t, [][]string{{"influenza", "h5n1"}, {"coronavirus"}}, spec.Groups[0].Alternatives)
	assert.Equal(t, []string{"influenza", "h5n1", "coronavirus"}, spec.Groups[0].Patterns())
	assert.Equal(t, Disqualifiers{"computer virus", "viral marketing"}, disq)
}

func TestLoadJSONPreservesDeclarationOrder(t *testing.T) {
	path := writeFile(t, "queries.json", `{
		"zebra": [["z"]],
		"apple": [["a"]],
		"mango": [["m"]]
	}`)

	spec, _, err := LoadJSON(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"zebra", "apple", "mango"}, spec.GroupNames())
}

func TestLoadJSONMergesFiles(t *testing.T) {
	a := writeFile(t, "a.json", `{"one": [["x"]]}`)
	b := writeFile(t, "b.json", `{"two": [["y"]], "disqualifying_terms": [["no"]]}`)

	spec, disq, err := LoadJSON(a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, spec.GroupNames())
	assert.Equal(t, Disqualifiers{"no"}, disq)
}

func TestLoadJSONRejectsDuplicateGroups(t *testing.T) {
	a := writeFile(t, "a.json", `{"one": [["x"]]}`)
	b := writeFile(t, "b.json", `{"one": [["y"]]}`)

	_, _, err := LoadJSON(a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"one"`)
}

func TestLoadJSONInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed", `{"a": [[`},
		{"top level array", `[["a"]]`},
		{"group not list of lists", `{"a": ["flat"]}`},
		{"empty alternative set", `{"a": [[]]}`},
		{"empty pattern", `{"a": [["ok", " "]]}`},
		{"no groups", `{"disqualifying_terms": [["x"]]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "bad.json", tt.content)
			_, _, err := LoadJSON(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadJSONMissingFile(t *testing.T) {
	_, _, err := LoadJSON(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadSimple(t *testing.T) {
	path := writeFile(t, "accessions.txt", "foo\n# comment\n\nbar\n")

	spec, err := LoadSimple(path)
	require.NoError(t, err)

	require.Len(t, spec.Groups, 1)
	g := spec.Groups[0]
	assert.Equal(t, "accessions", g.Name)
	assert.Equal(t, [][]string{{"foo"}, {"bar"}}, g.Alternatives)
}

func TestLoadSimpleEmpty(t *testing.T) {
	path := writeFile(t, "empty.txt", "# only comments\n\n")
	_, err := LoadSimple(path)
	assert.Error(t, err)
}
