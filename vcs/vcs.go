// Package vcs manages the source repositories of a release's components.
// A Workspace holds one git repository per component under a common root
// and exposes the operations the release pipeline needs: branch checkout,
// commits, tags and maintenance-branch creation. It operates exclusively
// through billy filesystems so tests run against in-memory repositories.
package vcs

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-git/go-billy/v5"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// MainBranch is the default development branch of every component.
const MainBranch = "main"

// Signature identifies the author/committer of release commits and tags.
type Signature struct {
	Name  string
	Email string
}

// Workspace is a directory tree with one component repository per
// subdirectory. It is exclusive to one pipeline run.
type Workspace struct {
	root billy.Filesystem
	sig  Signature
}

// NewWorkspace returns a workspace rooted at fs. Commits and annotated tags
// are authored with sig.
func NewWorkspace(fs billy.Filesystem, sig Signature) *Workspace {
	return &Workspace{root: fs, sig: sig}
}

// ComponentFS returns the filesystem of one component's worktree, for
// collaborators that rewrite files (build descriptors) before committing.
func (w *Workspace) ComponentFS(component string) (billy.Filesystem, error) {
	fs, err := w.root.Chroot(component)
	if err != nil {
		return nil, fmt.Errorf("failed to enter worktree of %s: %w", component, err)
	}
	return fs, nil
}

// Init creates an empty repository for the component with an initial commit
// on the main branch. Used by tests and workspace bootstrap.
func (w *Workspace) Init(ctx context.Context, component string) error {
	worktree, err := w.ComponentFS(component)
	if err != nil {
		return err
	}
	storage, err := w.storage(component)
	if err != nil {
		return err
	}
	repo, err := gogit.InitWithOptions(storage, worktree, gogit.InitOptions{
		DefaultBranch: plumbing.NewBranchReferenceName(MainBranch),
	})
	if err != nil {
		return wrapf(err, "failed to initialize repository for %s", component)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return wrapf(err, "failed to get worktree of %s", component)
	}
	if _, err := wt.Commit("initial import", &gogit.CommitOptions{
		Author:            w.signature(),
		Committer:         w.signature(),
		AllowEmptyCommits: true,
	}); err != nil {
		return wrapf(err, "failed to create initial commit for %s", component)
	}
	return nil
}

// open opens the component's existing repository.
func (w *Workspace) open(component string) (*gogit.Repository, error) {
	worktree, err := w.ComponentFS(component)
	if err != nil {
		return nil, err
	}
	storage, err := w.storage(component)
	if err != nil {
		return nil, err
	}
	repo, err := gogit.Open(storage, worktree)
	if err != nil {
		return nil, fmt.Errorf("no repository for component %s: %w", component, ErrComponentMissing)
	}
	return repo, nil
}

// storage builds the .git object storage for a component.
func (w *Workspace) storage(component string) (*filesystem.Storage, error) {
	fs, err := w.ComponentFS(component)
	if err != nil {
		return nil, err
	}
	dotGit, err := fs.Chroot(gogit.GitDirName)
	if err != nil {
		return nil, fmt.Errorf("failed to enter .git of %s: %w", component, err)
	}
	return filesystem.NewStorage(dotGit, cache.NewObjectLRUDefault()), nil
}

// Checkout switches the component to the named branch, creating it from the
// current HEAD when it does not exist yet.
func (w *Workspace) Checkout(ctx context.Context, component, branch string) error {
	repo, err := w.open(component)
	if err != nil {
		return err
	}

	branchRef := plumbing.NewBranchReferenceName(branch)
	if _, refErr := repo.Reference(branchRef, true); refErr != nil {
		head, headErr := repo.Head()
		if headErr != nil {
			return wrapf(headErr, "failed to resolve HEAD of %s", component)
		}
		if setErr := repo.Storer.SetReference(plumbing.NewHashReference(branchRef, head.Hash())); setErr != nil {
			return wrapf(setErr, "failed to create branch %s on %s", branch, component)
		}
	}

	wt, err := repo.Worktree()
	if err != nil {
		return wrapf(err, "failed to get worktree of %s", component)
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{Branch: branchRef}); err != nil {
		return wrapf(err, "failed to checkout %s on %s", branch, component)
	}
	return nil
}

// CurrentBranch returns the branch the component is on. Detached HEADs are
// an error: the pipeline always operates on branches.
func (w *Workspace) CurrentBranch(ctx context.Context, component string) (string, error) {
	repo, err := w.open(component)
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", wrapf(err, "failed to resolve HEAD of %s", component)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("HEAD of %s is detached", component)
	}
	return head.Name().Short(), nil
}

// Commit stages every change in the component's worktree and commits it.
// Returns ErrNoChanges when the worktree is clean, which callers treat as
// already-applied work during idempotent re-runs.
func (w *Workspace) Commit(ctx context.Context, component, message string) (string, error) {
	repo, err := w.open(component)
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", wrapf(err, "failed to get worktree of %s", component)
	}

	status, err := wt.Status()
	if err != nil {
		return "", wrapf(err, "failed to get status of %s", component)
	}
	if status.IsClean() {
		return "", fmt.Errorf("worktree of %s is clean: %w", component, ErrNoChanges)
	}

	if err := wt.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return "", wrapf(err, "failed to stage changes in %s", component)
	}
	hash, err := wt.Commit(message, &gogit.CommitOptions{
		Author:    w.signature(),
		Committer: w.signature(),
	})
	if err != nil {
		return "", wrapf(err, "failed to commit in %s", component)
	}
	return hash.String(), nil
}

// Tag creates a lightweight tag at the component's current HEAD. Returns
// ErrTagExists when the tag is already present, which re-runs treat as
// completed work.
func (w *Workspace) Tag(ctx context.Context, component, name string) error {
	repo, err := w.open(component)
	if err != nil {
		return err
	}

	tagRef := plumbing.NewTagReferenceName(name)
	if _, refErr := repo.Reference(tagRef, true); refErr == nil {
		return fmt.Errorf("tag %s already exists on %s: %w", name, component, ErrTagExists)
	}

	head, err := repo.Head()
	if err != nil {
		return wrapf(err, "failed to resolve HEAD of %s", component)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(tagRef, head.Hash())); err != nil {
		return wrapf(err, "failed to tag %s on %s", name, component)
	}
	return nil
}

// HasTag reports whether the named tag exists on the component.
func (w *Workspace) HasTag(ctx context.Context, component, name string) (bool, error) {
	repo, err := w.open(component)
	if err != nil {
		return false, err
	}
	_, refErr := repo.Reference(plumbing.NewTagReferenceName(name), true)
	return refErr == nil, nil
}

// Tags lists the component's tags, sorted.
func (w *Workspace) Tags(ctx context.Context, component string) ([]string, error) {
	repo, err := w.open(component)
	if err != nil {
		return nil, err
	}
	refs, err := repo.References()
	if err != nil {
		return nil, wrapf(err, "failed to list references of %s", component)
	}

	var tags []string
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Name().IsTag() {
			tags = append(tags, ref.Name().Short())
		}
		return nil
	})
	if err != nil {
		return nil, wrapf(err, "failed to iterate references of %s", component)
	}
	sort.Strings(tags)
	return tags, nil
}

// CreateBranch creates a branch at the given start revision without
// switching to it. Creating an existing branch again is not an error when
// it already points where a re-run would point it.
func (w *Workspace) CreateBranch(ctx context.Context, component, from, name string) error {
	repo, err := w.open(component)
	if err != nil {
		return err
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(from))
	if err != nil {
		return wrapf(err, "failed to resolve %s on %s", from, component)
	}

	branchRef := plumbing.NewBranchReferenceName(name)
	if existing, refErr := repo.Reference(branchRef, true); refErr == nil {
		if existing.Hash() == *hash {
			return nil
		}
		return fmt.Errorf("branch %s already exists on %s at a different commit: %w", name, component, ErrBranchExists)
	}

	if err := repo.Storer.SetReference(plumbing.NewHashReference(branchRef, *hash)); err != nil {
		return wrapf(err, "failed to create branch %s on %s", name, component)
	}
	return nil
}

// Head returns the component's current HEAD commit hash.
func (w *Workspace) Head(ctx context.Context, component string) (string, error) {
	repo, err := w.open(component)
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", wrapf(err, "failed to resolve HEAD of %s", component)
	}
	return head.Hash().String(), nil
}

func (w *Workspace) signature() *object.Signature {
	return &object.Signature{
		Name:  w.sig.Name,
		Email: w.sig.Email,
		When:  time.Now(),
	}
}
