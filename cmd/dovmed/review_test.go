// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateSnippet(t *testing.T) {
	assert.Equal(t, "short context", truncateSnippet("short context", 60))

	exact := strings.Repeat("x", 60)
	assert.Equal(t, exact, truncateSnippet(exact, 60))

	long := strings.Repeat("y", 80)
	assert.Equal(t, strings.Repeat("y", 57)+"...", truncateSnippet(long, 60))

	// Multi-byte runes are never split mid-sequence.
	wide := strings.Repeat("β", 80)
	got := truncateSnippet(wide, 60)
	assert.Equal(t, strings.Repeat("β", 57)+"...", got)
	assert.True(t, utf8.ValidString(got))
}
