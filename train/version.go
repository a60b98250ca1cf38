package train

import (
	"fmt"
	"regexp"
	"strconv"
)

// Triple is a plain major.minor.patch version number.
type Triple struct {
	Major, Minor, Patch int
}

// ParseTriple parses "2.4.0" into a Triple. The patch digit is required.
func ParseTriple(s string) (Triple, error) {
	match := triplePattern.FindStringSubmatch(s)
	if match == nil {
		return Triple{}, fmt.Errorf("unrecognized version number %q: %w", s, ErrMalformedVersion)
	}
	major, _ := strconv.Atoi(match[1])
	minor, _ := strconv.Atoi(match[2])
	patch, _ := strconv.Atoi(match[3])
	return Triple{Major: major, Minor: minor, Patch: patch}, nil
}

var triplePattern = regexp.MustCompile(`^([0-9]+)\.([0-9]+)\.([0-9]+)$`)

// String renders the full dotted triple.
func (t Triple) String() string {
	return fmt.Sprintf("%d.%d.%d", t.Major, t.Minor, t.Patch)
}

// shortString elides a trailing-zero patch digit ("2.4.0" -> "2.4").
func (t Triple) shortString() string {
	if t.Patch == 0 {
		return fmt.Sprintf("%d.%d", t.Major, t.Minor)
	}
	return t.String()
}

// BumpPatch returns the triple with n added to the patch digit.
func (t Triple) BumpPatch(n int) Triple {
	return Triple{Major: t.Major, Minor: t.Minor, Patch: t.Patch + n}
}

// NextMinor returns the following minor version with a zero patch digit.
func (t Triple) NextMinor() Triple {
	return Triple{Major: t.Major, Minor: t.Minor + 1}
}

// Compare orders triples numerically. Returns -1, 0 or 1.
func (t Triple) Compare(other Triple) int {
	pairs := [][2]int{
		{t.Major, other.Major},
		{t.Minor, other.Minor},
		{t.Patch, other.Patch},
	}
	for _, p := range pairs {
		if p[0] != p[1] {
			if p[0] < p[1] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Version is the resolved version of one component at one milestone of one
// train. Service releases fold into the numeric triple (base 2.4.0 at SR1 is
// 2.4.1 with no qualifier), so a Version is fully described by its number,
// an optional M/RC qualifier and, on calendar trains, the train's own version.
type Version struct {
	// Component is the member this version belongs to. Empty on versions
	// recovered by Parse, which sees only the rendered string.
	Component string

	// Number is the resolved numeric triple.
	Number Triple

	// Qualifier is the milestone qualifier ("M1", "RC2") or empty for
	// GA and service releases.
	Qualifier string

	// TrainSuffix is the calendar train version rendered in parentheses
	// after qualified versions. Empty on classic trains and on unqualified
	// versions.
	TrainSuffix string

	// scheme records which versioning scheme produced this version. Parse
	// infers it from the rendered form; Resolve sets it from the train.
	scheme Scheme
}

// String renders the version exactly:
//
//	base 2.4.0, M1, classic   -> "2.4 M1"
//	base 2.4.0, M1, calendar  -> "2.4 M1 (2025.1.0)"
//	base 2.4.0, GA            -> "2.4.0"
//	base 2.4.0, SR1           -> "2.4.1"
//
// Qualified versions elide a trailing-zero patch digit; unqualified versions
// always render the full triple.
func (v Version) String() string {
	if v.Qualifier == "" {
		return v.Number.String()
	}
	s := v.Number.shortString() + " " + v.Qualifier
	if v.TrainSuffix != "" {
		s += " (" + v.TrainSuffix + ")"
	}
	return s
}

// ArtifactVersion renders the version the way build descriptors and
// repository paths spell it: dash-qualified, no spaces, no train suffix
// ("2.4.0-M1", "2.4.0", "2.4.1").
func (v Version) ArtifactVersion() string {
	if v.Qualifier == "" {
		return v.Number.String()
	}
	return v.Number.String() + "-" + v.Qualifier
}

// SnapshotVersion renders the development version that follows this release
// on the same branch ("2.4.0-SNAPSHOT" while 2.4.0 is still being cut,
// "2.4.2-SNAPSHOT" after SR1 shipped as 2.4.1).
func (v Version) SnapshotVersion() string {
	if v.Qualifier != "" {
		// Pre-GA iterations return to the base development version.
		return v.Number.String() + "-SNAPSHOT"
	}
	return v.Number.BumpPatch(1).String() + "-SNAPSHOT"
}

// Equal reports semantic equality of two versions regardless of which
// component they are attached to or how the scheme was inferred.
func (v Version) Equal(other Version) bool {
	return v.Number == other.Number &&
		v.Qualifier == other.Qualifier &&
		v.TrainSuffix == other.TrainSuffix
}

// Compare orders two versions of the same scheme: numerically first, then
// unqualified above qualified (2.4.0 GA > 2.4 RC1 > 2.4 M1). Comparing
// versions from different schemes returns ErrIncompatibleScheme.
func Compare(a, b Version) (int, error) {
	if a.scheme != b.scheme {
		return 0, fmt.Errorf("cannot order %q (%s) against %q (%s): %w",
			a, a.scheme, b, b.scheme, ErrIncompatibleScheme)
	}
	if c := a.Number.Compare(b.Number); c != 0 {
		return c, nil
	}
	switch {
	case a.Qualifier == b.Qualifier:
		return 0, nil
	case a.Qualifier == "":
		return 1, nil
	case b.Qualifier == "":
		return -1, nil
	}
	ma, err := ParseMilestone(a.Qualifier)
	if err != nil {
		return 0, err
	}
	mb, err := ParseMilestone(b.Qualifier)
	if err != nil {
		return 0, err
	}
	return ma.Compare(mb), nil
}

// versionPattern matches everything String can produce: a dotted number with
// two or three digits, an optional space-separated qualifier, and an optional
// parenthesized train suffix after the qualifier.
var versionPattern = regexp.MustCompile(
	`^([0-9]+)\.([0-9]+)(?:\.([0-9]+))?(?: (M[1-9][0-9]*|RC[1-9][0-9]*))?(?: \(([^)]+)\))?$`)

// Parse is the inverse of Version.String. It fails with ErrMalformedVersion
// on any input String cannot produce: a two-digit number without a qualifier
// ("2.4"), a train suffix without a qualifier, or anything unrecognized.
// Re-rendering the result reproduces the input exactly.
func Parse(s string) (Version, error) {
	match := versionPattern.FindStringSubmatch(s)
	if match == nil {
		return Version{}, fmt.Errorf("unrecognized version %q: %w", s, ErrMalformedVersion)
	}

	major, _ := strconv.Atoi(match[1])
	minor, _ := strconv.Atoi(match[2])
	qualifier := match[4]
	suffix := match[5]

	patch := 0
	if match[3] != "" {
		p, err := strconv.Atoi(match[3])
		if err != nil {
			return Version{}, fmt.Errorf("unrecognized patch digit in %q: %w", s, ErrMalformedVersion)
		}
		patch = p
	}

	switch {
	case qualifier == "" && match[3] == "":
		// "2.4" round-trips to "2.4.0", so it is not a rendered version.
		return Version{}, fmt.Errorf("version %q lacks a patch digit: %w", s, ErrMalformedVersion)
	case qualifier == "" && suffix != "":
		return Version{}, fmt.Errorf("version %q has a train suffix without a qualifier: %w", s, ErrMalformedVersion)
	case qualifier != "" && match[3] != "" && patch == 0:
		// A qualified version renders a zero patch elided; "2.4.0 M1" is
		// not a form String produces.
		return Version{}, fmt.Errorf("version %q spells out a zero patch digit: %w", s, ErrMalformedVersion)
	}

	scheme := SchemeClassic
	if suffix != "" {
		scheme = SchemeCalendar
	}

	return Version{
		Number:      Triple{Major: major, Minor: minor, Patch: patch},
		Qualifier:   qualifier,
		TrainSuffix: suffix,
		scheme:      scheme,
	}, nil
}
