package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// indexOf returns the position of c in order, failing the test when absent.
func indexOf(t *testing.T, order []string, c string) int {
	t.Helper()
	for i, v := range order {
		if v == c {
			return i
		}
	}
	t.Fatalf("component %s missing from order %v", c, order)
	return -1
}

// TestOrder verifies dependencies precede their dependents while
// unconstrained components keep declaration order.
func TestOrder(t *testing.T) {
	tests := []struct {
		name       string
		components []string
		deps       map[string][]string
		validate   func(t *testing.T, order []string)
	}{
		{
			name:       "no edges keeps declaration order",
			components: []string{"c", "a", "b"},
			deps:       nil,
			validate: func(t *testing.T, order []string) {
				assert.Equal(t, []string{"c", "a", "b"}, order)
			},
		},
		{
			name:       "shared dependency builds first",
			components: []string{"a", "b", "c"},
			deps:       map[string][]string{"b": {"a"}, "c": {"a"}},
			validate: func(t *testing.T, order []string) {
				assert.Less(t, indexOf(t, order, "a"), indexOf(t, order, "b"))
				assert.Less(t, indexOf(t, order, "a"), indexOf(t, order, "c"))
			},
		},
		{
			name:       "chains order transitively",
			components: []string{"c", "b", "a"},
			deps:       map[string][]string{"c": {"b"}, "b": {"a"}},
			validate: func(t *testing.T, order []string) {
				assert.Equal(t, []string{"a", "b", "c"}, order)
			},
		},
		{
			name:       "diamond resolves deterministically",
			components: []string{"bom", "commons", "relational", "jpa"},
			deps: map[string][]string{
				"relational": {"commons"},
				"jpa":        {"commons", "relational"},
				"bom":        {"commons", "relational", "jpa"},
			},
			validate: func(t *testing.T, order []string) {
				assert.Equal(t, []string{"commons", "relational", "jpa", "bom"}, order)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := Order(tt.components, tt.deps)
			require.NoError(t, err)
			require.Len(t, order, len(tt.components))
			tt.validate(t, order)
		})
	}
}

// TestOrderDeterminism verifies repeated sorts of the same input agree.
func TestOrderDeterminism(t *testing.T) {
	components := []string{"e", "d", "c", "b", "a"}
	deps := map[string][]string{"d": {"e"}, "b": {"c"}}

	first, err := Order(components, deps)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Order(components, deps)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

// TestOrderCycle verifies cycles fail loudly and name their members.
func TestOrderCycle(t *testing.T) {
	t.Run("two-component cycle", func(t *testing.T) {
		_, err := Order([]string{"a", "b"}, map[string][]string{"a": {"b"}, "b": {"a"}})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCyclicDependency)

		var cycle *CycleError
		require.ErrorAs(t, err, &cycle)
		assert.ElementsMatch(t, []string{"a", "b"}, cycle.Members)
	})

	t.Run("self dependency", func(t *testing.T) {
		_, err := Order([]string{"a"}, map[string][]string{"a": {"a"}})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCyclicDependency)
	})

	t.Run("cycle behind a valid prefix", func(t *testing.T) {
		_, err := Order(
			[]string{"a", "b", "c"},
			map[string][]string{"b": {"a", "c"}, "c": {"b"}},
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCyclicDependency)

		var cycle *CycleError
		require.ErrorAs(t, err, &cycle)
		assert.ElementsMatch(t, []string{"b", "c"}, cycle.Members)
	})
}

// TestOrderUnknownDependency verifies edges must stay within the input set.
func TestOrderUnknownDependency(t *testing.T) {
	_, err := Order([]string{"a"}, map[string][]string{"a": {"ghost"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownDependency)
}
