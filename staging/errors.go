// Package staging provides sentinel errors for the staging lifecycle.
// All errors can be checked using errors.Is() for programmatic handling.
package staging

import (
	"errors"
	"fmt"
)

// ErrStateConflict is returned when a repository is asked to perform a
// transition its current state does not allow.
var ErrStateConflict = errors.New("staging state conflict")

// ErrAuthenticationFailed is returned by VerifyAuthentication when a
// publication target rejects the configured credentials. It is treated as
// fatal by the pipeline: nothing else can succeed.
var ErrAuthenticationFailed = errors.New("authentication failed")

// ErrPromotionDeclined is returned when the operator declines to promote on
// a target whose promotion is irreversible.
var ErrPromotionDeclined = errors.New("promotion declined by operator")

// ErrUnscopedPattern is returned when an artifact path pattern carries no
// version placeholder. Promoting through such a pattern would match artifacts
// of other versions.
var ErrUnscopedPattern = errors.New("artifact pattern is not version-scoped")

// StateConflictError reports the rejected transition. It unwraps to
// ErrStateConflict.
type StateConflictError struct {
	RepositoryID string
	Component    string
	From         State
	To           State
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("staging repository %s (%s): cannot transition %s -> %s",
		e.RepositoryID, e.Component, e.From, e.To)
}

func (e *StateConflictError) Unwrap() error { return ErrStateConflict }
