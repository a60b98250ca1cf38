package staging

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScopedQueryMultiArtifact verifies a multi-artifact component
// enumerates every sub-artifact pattern disjunctively, all scoped to the
// exact release version.
func TestScopedQueryMultiArtifact(t *testing.T) {
	patterns := []string{
		"org/example/data/commons-parent/{version}/*",
		"org/example/data/commons-core/{version}/*",
		"org/example/data/commons-dist/{version}/*",
	}

	query, err := ScopedQuery("commons", patterns, "2.4.1")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(query, "items.find("))
	assert.Contains(t, query, `"$or"`)
	assert.Contains(t, query, `"org/example/data/commons-parent/2.4.1/*"`)
	assert.Contains(t, query, `"org/example/data/commons-core/2.4.1/*"`)
	assert.Contains(t, query, `"org/example/data/commons-dist/2.4.1/*"`)

	// Fully scoped: no placeholder survives substitution.
	assert.NotContains(t, query, VersionPlaceholder)
}

// TestScopedQueryDefaultPattern verifies the fallback for components without
// declared patterns.
func TestScopedQueryDefaultPattern(t *testing.T) {
	query, err := ScopedQuery("relational", nil, "3.5.0-M1")
	require.NoError(t, err)
	assert.Contains(t, query, `"relational/**/3.5.0-M1/*"`)
}

// TestScopedQueryRejectsUnscopedPattern verifies a pattern without the
// version placeholder is a hard error, not a silently wider query.
func TestScopedQueryRejectsUnscopedPattern(t *testing.T) {
	_, err := ScopedQuery("commons", []string{"org/example/data/commons-core/**"}, "2.4.1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnscopedPattern)
}

// TestScopedQueryRejectsEmptyVersion verifies the guard against an
// unversioned promotion.
func TestScopedQueryRejectsEmptyVersion(t *testing.T) {
	_, err := ScopedQuery("commons", nil, "")
	require.Error(t, err)
}
