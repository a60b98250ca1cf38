package staging

import (
	"encoding/json"
	"fmt"
	"strings"
)

// VersionPlaceholder is the token substituted with the release version in
// artifact path patterns. Patterns come from catalog data, not code: which
// sub-artifacts a component publishes is configuration.
const VersionPlaceholder = "{version}"

// ScopedQuery builds the commercial repository's promotion query for one
// component: every sub-artifact path pattern joined disjunctively, each
// scoped to exactly the version being released. A component without declared
// patterns gets a single default pattern over its own path.
//
// Every pattern must carry the version placeholder. A pattern without it
// would match paths of other versions, and promoting through it would move
// the wrong artifacts.
func ScopedQuery(component string, patterns []string, version string) (string, error) {
	if version == "" {
		return "", fmt.Errorf("component %s: empty version", component)
	}
	if len(patterns) == 0 {
		patterns = []string{component + "/**/" + VersionPlaceholder + "/*"}
	}

	matches := make([]map[string]any, 0, len(patterns))
	for _, pattern := range patterns {
		if !strings.Contains(pattern, VersionPlaceholder) {
			return "", fmt.Errorf("component %s pattern %q: %w", component, pattern, ErrUnscopedPattern)
		}
		scoped := strings.ReplaceAll(pattern, VersionPlaceholder, version)
		matches = append(matches, map[string]any{
			"path": map[string]any{"$match": scoped},
		})
	}

	criteria, err := json.Marshal(map[string]any{"$or": matches})
	if err != nil {
		return "", fmt.Errorf("component %s: failed to encode query: %w", component, err)
	}
	return fmt.Sprintf("items.find(%s)", criteria), nil
}
