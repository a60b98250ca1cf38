// Package vcs provides sentinel errors for workspace operations.
// All errors can be checked using errors.Is() for programmatic handling.
package vcs

import (
	"errors"
	"fmt"
)

// ErrComponentMissing is returned when a component has no repository in the
// workspace.
var ErrComponentMissing = errors.New("component repository does not exist")

// ErrNoChanges is returned by Commit when the worktree is clean. Idempotent
// pipeline re-runs treat it as already-applied work.
var ErrNoChanges = errors.New("no changes to commit")

// ErrTagExists is returned when creating a tag that is already present.
var ErrTagExists = errors.New("tag already exists")

// ErrBranchExists is returned when creating a branch that already exists at
// a different commit.
var ErrBranchExists = errors.New("branch already exists")

// wrapf wraps an error with formatted context while preserving errors.Is.
func wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
