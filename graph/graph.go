// Package graph derives a deterministic build order for a set of components
// from their declared dependency edges.
package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCyclicDependency is returned when the declared edges form a cycle.
// A cycle is never silently broken by picking an arbitrary order.
var ErrCyclicDependency = errors.New("cyclic dependency")

// ErrUnknownDependency is returned when an edge references a component that
// is not part of the input set.
var ErrUnknownDependency = errors.New("unknown dependency")

// CycleError reports the components participating in a dependency cycle.
// It unwraps to ErrCyclicDependency.
type CycleError struct {
	// Members are the components on the cycle, in input order.
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle between %s", strings.Join(e.Members, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCyclicDependency }

// Order performs a topological sort of components over the declared
// dependency edges: a component never precedes one of its dependencies.
// Components whose relative order is unconstrained keep their declaration
// order, making the result deterministic for a given input.
func Order(components []string, deps map[string][]string) ([]string, error) {
	index := make(map[string]int, len(components))
	for i, c := range components {
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("component %s listed twice", c)
		}
		index[c] = i
	}

	// Count unresolved dependencies per component and invert the edges.
	remaining := make(map[string]int, len(components))
	dependents := make(map[string][]string, len(components))
	for _, c := range components {
		for _, dep := range deps[c] {
			if _, ok := index[dep]; !ok {
				return nil, fmt.Errorf("component %s depends on %s, which is not part of the release: %w",
					c, dep, ErrUnknownDependency)
			}
			if dep == c {
				return nil, &CycleError{Members: []string{c}}
			}
			remaining[c]++
			dependents[dep] = append(dependents[dep], c)
		}
	}

	// Kahn's algorithm with a declaration-ordered frontier. The frontier is
	// re-scanned in declaration order on every step; release sets are a few
	// dozen components, so the quadratic scan is irrelevant.
	ordered := make([]string, 0, len(components))
	scheduled := make(map[string]bool, len(components))
	for len(ordered) < len(components) {
		progressed := false
		for _, c := range components {
			if scheduled[c] || remaining[c] > 0 {
				continue
			}
			ordered = append(ordered, c)
			scheduled[c] = true
			for _, dependent := range dependents[c] {
				remaining[dependent]--
			}
			progressed = true
		}
		if !progressed {
			return nil, cycleOf(components, scheduled, remaining)
		}
	}

	return ordered, nil
}

// cycleOf names the components still blocked when the sort stalls. All of
// them sit on or behind a cycle; the error lists the ones with unresolved
// edges so the offending declaration is identifiable.
func cycleOf(components []string, scheduled map[string]bool, remaining map[string]int) error {
	var members []string
	for _, c := range components {
		if !scheduled[c] && remaining[c] > 0 {
			members = append(members, c)
		}
	}
	return &CycleError{Members: members}
}
