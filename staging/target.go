package staging

import "context"

// Target is one publication destination for a release unit. All three
// concrete targets drive the same lifecycle; what differs is the remote
// protocol behind each call.
//
// Close and Promote are idempotent: calling either on a repository that has
// already passed that state is a no-op, so an interrupted run can resume
// from the exact call that failed without restaging.
type Target interface {
	// Name identifies the target in logs and failure reports.
	Name() string

	// CreateStagingArea opens a fresh publication attempt for one component
	// at one version. The local staging directory is purged and recreated.
	CreateStagingArea(ctx context.Context, component, version string) (*Repository, error)

	// Upload transfers the staged artifacts to the target. Requires Staged;
	// leaves the repository Verified.
	Upload(ctx context.Context, repo *Repository) error

	// Close seals the remote staging area. Requires Verified (or Closed,
	// for resumed runs); leaves the repository Closed.
	Close(ctx context.Context, repo *Repository) error

	// Promote makes the sealed artifacts publicly visible. Requires Closed
	// (or Promoted, for resumed runs); leaves the repository Promoted.
	Promote(ctx context.Context, repo *Repository) error

	// VerifyAuthentication checks the configured credentials before any
	// artifact is built or uploaded. Returns ErrAuthenticationFailed when
	// the target rejects them.
	VerifyAuthentication(ctx context.Context) error
}

// Confirmer asks the operator for an explicit go-ahead. Promotion on the
// public release target is irreversible, so it never happens without one.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(prompt string) (bool, error)

func (f ConfirmerFunc) Confirm(prompt string) (bool, error) { return f(prompt) }
