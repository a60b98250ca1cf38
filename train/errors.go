// Package train provides sentinel errors for the version model.
// All errors can be checked using errors.Is() for programmatic handling.
package train

import "errors"

// ErrMalformedVersion is returned when a version string or train definition
// does not match any recognized pattern. Configuration errors of this kind
// are never retried.
var ErrMalformedVersion = errors.New("malformed version")

// ErrIncompatibleScheme is returned when two versions from trains with
// different versioning schemes are compared. Ordering across schemes is
// undefined and must fail rather than sort arbitrarily.
var ErrIncompatibleScheme = errors.New("incompatible versioning scheme")

// ErrNoPriorMilestone is returned by PreviousMilestone when the given
// milestone is the first in the train's plan.
var ErrNoPriorMilestone = errors.New("no prior milestone")

// ErrUnknownComponent is returned when an operation names a component that
// is not a member of the train.
var ErrUnknownComponent = errors.New("unknown component")
