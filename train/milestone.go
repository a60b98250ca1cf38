package train

import (
	"fmt"
	"regexp"
	"strconv"
)

// milestoneKind orders the milestone classes: every pre-release milestone
// sorts before every release candidate, which sorts before GA, which sorts
// before every service release.
type milestoneKind int

const (
	kindMilestone milestoneKind = iota
	kindReleaseCandidate
	kindGA
	kindServiceRelease
)

// Milestone is one point in a train's lifecycle: M1..Mn, RC1..RCn, GA or
// SR1..SRn. The zero value is invalid; construct via M, RC, GA, SR or
// ParseMilestone.
type Milestone struct {
	kind    milestoneKind
	ordinal int
}

// M returns the n-th pre-release milestone (n >= 1).
func M(n int) Milestone { return Milestone{kind: kindMilestone, ordinal: n} }

// RC returns the n-th release candidate (n >= 1).
func RC(n int) Milestone { return Milestone{kind: kindReleaseCandidate, ordinal: n} }

// GA is the general-availability milestone.
var GA = Milestone{kind: kindGA}

// SR returns the n-th service release (n >= 1).
func SR(n int) Milestone { return Milestone{kind: kindServiceRelease, ordinal: n} }

// IsGAClass reports whether this milestone triggers maintenance-branch
// creation. Only GA itself does.
func (m Milestone) IsGAClass() bool { return m.kind == kindGA }

// IsServiceRelease reports whether this is an SR milestone.
func (m Milestone) IsServiceRelease() bool { return m.kind == kindServiceRelease }

// IsQualified reports whether versions at this milestone carry a qualifier
// suffix (M and RC milestones do; GA and SR do not).
func (m Milestone) IsQualified() bool {
	return m.kind == kindMilestone || m.kind == kindReleaseCandidate
}

// PatchOffset is the amount added to a member's base patch digit at this
// milestone. Zero for everything but service releases.
func (m Milestone) PatchOffset() int {
	if m.kind == kindServiceRelease {
		return m.ordinal
	}
	return 0
}

// Compare orders milestones: M* < RC* < GA < SR1 < SR2 < ...; within a kind,
// by ordinal. Returns -1, 0 or 1.
func (m Milestone) Compare(other Milestone) int {
	switch {
	case m.kind != other.kind:
		if m.kind < other.kind {
			return -1
		}
		return 1
	case m.ordinal != other.ordinal:
		if m.ordinal < other.ordinal {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// String renders the milestone the way it appears inside version strings:
// "M1", "RC2", "GA", "SR1".
func (m Milestone) String() string {
	switch m.kind {
	case kindMilestone:
		return fmt.Sprintf("M%d", m.ordinal)
	case kindReleaseCandidate:
		return fmt.Sprintf("RC%d", m.ordinal)
	case kindGA:
		return "GA"
	case kindServiceRelease:
		return fmt.Sprintf("SR%d", m.ordinal)
	default:
		return "invalid"
	}
}

var milestonePattern = regexp.MustCompile(`^(M|RC|SR)([1-9][0-9]*)$|^GA$`)

// ParseMilestone parses a milestone name ("M1", "RC2", "GA", "SR3").
// Returns ErrMalformedVersion for anything else.
func ParseMilestone(s string) (Milestone, error) {
	if s == "GA" {
		return GA, nil
	}
	match := milestonePattern.FindStringSubmatch(s)
	if match == nil {
		return Milestone{}, fmt.Errorf("unrecognized milestone %q: %w", s, ErrMalformedVersion)
	}
	n, err := strconv.Atoi(match[2])
	if err != nil || n < 1 {
		return Milestone{}, fmt.Errorf("unrecognized milestone ordinal in %q: %w", s, ErrMalformedVersion)
	}
	switch match[1] {
	case "M":
		return M(n), nil
	case "RC":
		return RC(n), nil
	default:
		return SR(n), nil
	}
}

// DefaultPlan is the milestone sequence a train moves through when the
// catalog does not declare its own: one pre-release milestone, one release
// candidate, GA, then three service releases.
func DefaultPlan() []Milestone {
	return []Milestone{M(1), RC(1), GA, SR(1), SR(2), SR(3)}
}
