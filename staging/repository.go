package staging

import (
	"fmt"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
)

// State is a staging repository lifecycle state.
type State int

// Lifecycle states. The only legal forward path is Empty, Staged, Verified,
// Closed, Promoted; Abandoned is terminal and reachable from every
// non-terminal state.
const (
	Empty State = iota
	Staged
	Verified
	Closed
	Promoted
	Abandoned
)

func (s State) String() string {
	switch s {
	case Empty:
		return "EMPTY"
	case Staged:
		return "STAGED"
	case Verified:
		return "VERIFIED"
	case Closed:
		return "CLOSED"
	case Promoted:
		return "PROMOTED"
	case Abandoned:
		return "ABANDONED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// terminal reports whether no further transition is allowed from s.
func (s State) terminal() bool { return s == Promoted || s == Abandoned }

// Repository tracks one publication attempt for one component: a local
// staging directory plus the lifecycle state of its remote counterpart.
//
// The directory is exclusive to this repository for its whole lifecycle and
// is purged on creation, so a prior attempt can never leak stale artifacts
// into the next one. Repositories are safe for concurrent use, although the
// pipeline drives each one from a single worker.
type Repository struct {
	id        string
	component string
	version   string
	fs        billy.Filesystem
	dir       string

	mu       sync.Mutex
	state    State
	remoteID string
}

// NewRepository creates a staging repository for one component at one
// version. The component's staging directory under fs is purged and
// recreated.
func NewRepository(fs billy.Filesystem, component, version string) (*Repository, error) {
	r := &Repository{
		id:        uuid.NewString(),
		component: component,
		version:   version,
		fs:        fs,
		dir:       component,
	}
	if err := r.recreateDir(); err != nil {
		return nil, err
	}
	return r, nil
}

// ID is the repository's local identity. It must be logged whenever the
// repository is discarded so a failed attempt can be traced afterwards.
func (r *Repository) ID() string { return r.id }

// Component names the component this repository stages.
func (r *Repository) Component() string { return r.component }

// Version is the release version being staged, as rendered into artifact
// coordinates.
func (r *Repository) Version() string { return r.version }

// Dir is the repository's staging directory, relative to the staging root.
func (r *Repository) Dir() string { return r.dir }

// FS returns a filesystem rooted at the staging directory. The build tool
// deploys artifacts through it; targets read them back from it.
func (r *Repository) FS() (billy.Filesystem, error) {
	fs, err := r.fs.Chroot(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to enter staging directory %s: %w", r.dir, err)
	}
	return fs, nil
}

// State returns the current lifecycle state.
func (r *Repository) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// RemoteID is the server-side identifier assigned by a target, when the
// target's protocol has one. Empty otherwise.
func (r *Repository) RemoteID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remoteID
}

// SetRemoteID records the server-side identifier assigned by a target.
func (r *Repository) SetRemoteID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remoteID = id
}

// MarkStaged records that artifacts have been deployed into the staging
// directory. Marking a repository that is already staged is a no-op, so a
// restarted attempt can redeploy after Restage.
func (r *Repository) MarkStaged() error {
	return r.advance(Staged, Empty, Staged)
}

// MarkVerified records that the staged content has been bundled or
// query-scoped and handed to the target.
func (r *Repository) MarkVerified() error {
	return r.advance(Verified, Staged)
}

// MarkClosed records the remote close. Closing an already closed repository
// is a no-op so an interrupted run can resume from the close call.
func (r *Repository) MarkClosed() error {
	return r.advance(Closed, Verified, Closed)
}

// MarkPromoted records the remote promotion. Promoting an already promoted
// repository is a no-op for the same resume reason as MarkClosed. A
// repository that is merely staged cannot be promoted: it must pass through
// Verified and Closed first.
func (r *Repository) MarkPromoted() error {
	return r.advance(Promoted, Closed, Promoted)
}

// Abandon terminates the lifecycle after a fatal error. The caller logs the
// repository id; the staging directory is left in place for inspection.
func (r *Repository) Abandon() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.terminal() {
		return r.conflict(Abandoned)
	}
	r.state = Abandoned
	return nil
}

// Restage purges the staging directory and returns to Staged so a failed
// attempt can be restarted. It is only legal before the remote state has
// advanced: once Closed, the remote side cannot go back, and the caller must
// resume from MarkClosed or MarkPromoted instead.
func (r *Repository) Restage() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Staged && r.state != Verified {
		return r.conflict(Staged)
	}
	if err := r.recreateDir(); err != nil {
		return err
	}
	r.state = Staged
	return nil
}

// advance moves to the target state if the current state is one of from.
func (r *Repository) advance(to State, from ...State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range from {
		if r.state == s {
			r.state = to
			return nil
		}
	}
	return r.conflict(to)
}

// ensure verifies the current state is one of allowed, without moving.
// Targets call it before issuing a remote call so an illegal transition is
// rejected before any side effect.
func (r *Repository) ensure(allowed ...State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range allowed {
		if r.state == s {
			return nil
		}
	}
	return r.conflict(allowed[0])
}

// conflict builds the transition error. Callers hold r.mu.
func (r *Repository) conflict(to State) error {
	return &StateConflictError{
		RepositoryID: r.id,
		Component:    r.component,
		From:         r.state,
		To:           to,
	}
}

func (r *Repository) recreateDir() error {
	if err := util.RemoveAll(r.fs, r.dir); err != nil {
		return fmt.Errorf("failed to purge staging directory %s: %w", r.dir, err)
	}
	if err := r.fs.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create staging directory %s: %w", r.dir, err)
	}
	return nil
}
