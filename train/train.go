// Package train models release trains: named product lines whose member
// components are versioned and shipped together, milestone by milestone.
package train

import (
	"fmt"
	"strings"
)

// BOMComponent is the distinguished pseudo-component present in every train.
// It carries the bill-of-materials artifact and tracks the overall release
// lifecycle rather than any single module's code.
const BOMComponent = "bom"

// Scheme identifies how a train derives its own version identifier.
type Scheme string

const (
	// SchemeClassic names trains after their iteration (e.g. "Moore SR1");
	// member versions stand alone.
	SchemeClassic Scheme = "classic"

	// SchemeCalendar gives the train a date-based version (e.g. "2025.1.0")
	// that is appended to qualified member versions.
	SchemeCalendar Scheme = "calendar"
)

// Status describes the support level of a train.
type Status string

const (
	StatusOpenSource Status = "oss"
	StatusCommercial Status = "commercial"
	StatusEndOfLife  Status = "eol"
)

// Member is one component participating in a train, with the base version
// all milestone versions of that component derive from.
type Member struct {
	// Component is the module name, unique within the train.
	Component string

	// Base is the component's base version for this train (e.g. "2.4.0").
	Base Triple

	// Dependencies lists other members this component builds against.
	Dependencies []string

	// ArtifactPatterns enumerates the repository path patterns of every
	// sub-artifact this component publishes. The placeholder {version} is
	// substituted with the exact release version. Empty means the component
	// publishes a single artifact under its own name.
	ArtifactPatterns []string
}

// Train is an immutable release line: an ordered set of members plus the
// versioning scheme and support status. The member order is the declaration
// order from the catalog and is used as the deterministic tie-breaker when
// computing build order.
type Train struct {
	// Name is the train's human name (e.g. "Turing").
	Name string

	// Version is the train's own calendar version. Empty for classic trains.
	Version string

	Scheme  Scheme
	Status  Status
	Members []Member

	// Plan is the ordered milestone sequence this train moves through.
	// Defaults to DefaultPlan when the catalog does not override it.
	Plan []Milestone

	// MainOnly marks trains that always develop on the main branch and
	// never get a dedicated maintenance branch.
	MainOnly bool
}

// Member returns the member declaration for the named component.
func (t *Train) Member(component string) (Member, bool) {
	for _, m := range t.Members {
		if m.Component == component {
			return m, true
		}
	}
	return Member{}, false
}

// Components returns the member component names in declaration order,
// including the BOM pseudo-component.
func (t *Train) Components() []string {
	out := make([]string, len(t.Members))
	for i, m := range t.Members {
		out[i] = m.Component
	}
	return out
}

// PreviousMilestone returns the milestone preceding m in this train's plan.
// It returns ErrNoPriorMilestone when m is the plan's first entry, and a
// wrapped ErrMalformedVersion when m is not part of the plan at all.
func (t *Train) PreviousMilestone(m Milestone) (Milestone, error) {
	plan := t.Plan
	if len(plan) == 0 {
		plan = DefaultPlan()
	}
	for i, p := range plan {
		if p == m {
			if i == 0 {
				return Milestone{}, fmt.Errorf("%s is the first milestone of train %s: %w", m, t.Name, ErrNoPriorMilestone)
			}
			return plan[i-1], nil
		}
	}
	return Milestone{}, fmt.Errorf("milestone %s is not in the plan of train %s: %w", m, t.Name, ErrMalformedVersion)
}

// Validate checks structural train invariants: non-empty name, known scheme
// and status, a calendar version on calendar trains, unique members, a BOM
// member, and dependency references that resolve within the train.
func (t *Train) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("train has no name: %w", ErrMalformedVersion)
	}
	switch t.Scheme {
	case SchemeClassic, SchemeCalendar:
	default:
		return fmt.Errorf("train %s: unknown scheme %q: %w", t.Name, t.Scheme, ErrMalformedVersion)
	}
	switch t.Status {
	case StatusOpenSource, StatusCommercial, StatusEndOfLife:
	default:
		return fmt.Errorf("train %s: unknown status %q: %w", t.Name, t.Status, ErrMalformedVersion)
	}
	if t.Scheme == SchemeCalendar && t.Version == "" {
		return fmt.Errorf("calendar train %s has no train version: %w", t.Name, ErrMalformedVersion)
	}

	seen := make(map[string]bool, len(t.Members))
	for _, m := range t.Members {
		if m.Component == "" {
			return fmt.Errorf("train %s has a member without a component name: %w", t.Name, ErrMalformedVersion)
		}
		if seen[m.Component] {
			return fmt.Errorf("train %s declares component %s twice: %w", t.Name, m.Component, ErrMalformedVersion)
		}
		seen[m.Component] = true
	}
	if !seen[BOMComponent] {
		return fmt.Errorf("train %s has no %s member: %w", t.Name, BOMComponent, ErrMalformedVersion)
	}
	for _, m := range t.Members {
		for _, dep := range m.Dependencies {
			if !seen[dep] {
				return fmt.Errorf("train %s: component %s depends on undeclared component %s: %w",
					t.Name, m.Component, dep, ErrMalformedVersion)
			}
		}
	}
	return nil
}

// MaintenanceBranch derives the maintenance branch name for a member from
// its base version, e.g. base 3.1.0 develops on branch "3.1.x" after GA.
func MaintenanceBranch(base Triple) string {
	return fmt.Sprintf("%d.%d.x", base.Major, base.Minor)
}

// String renders the train identity: calendar trains by their version,
// classic trains by name.
func (t *Train) String() string {
	if t.Scheme == SchemeCalendar {
		return t.Version
	}
	return t.Name
}

// FindComponentPrefix returns the member whose component name is a prefix of
// the given artifact identifier, preferring the longest match. Used when
// mapping deployed artifact coordinates back to members.
func (t *Train) FindComponentPrefix(artifact string) (Member, bool) {
	var best Member
	found := false
	for _, m := range t.Members {
		if strings.HasPrefix(artifact, m.Component) {
			if !found || len(m.Component) > len(best.Component) {
				best = m
				found = true
			}
		}
	}
	return best, found
}
