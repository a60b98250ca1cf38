package vcs

import (
	"context"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testWorkspace is a helper wrapping an in-memory workspace with one
// initialized component.
type testWorkspace struct {
	ws  *Workspace
	ctx context.Context
}

func setupWorkspace(t *testing.T, components ...string) *testWorkspace {
	t.Helper()

	ctx := context.Background()
	ws := NewWorkspace(memfs.New(), Signature{Name: "Release Bot", Email: "release@example.com"})
	for _, c := range components {
		require.NoError(t, ws.Init(ctx, c))
	}
	return &testWorkspace{ws: ws, ctx: ctx}
}

// writeFile writes a file into a component's worktree.
func (tw *testWorkspace) writeFile(t *testing.T, component, path, content string) {
	t.Helper()

	fs, err := tw.ws.ComponentFS(component)
	require.NoError(t, err)
	require.NoError(t, util.WriteFile(fs, path, []byte(content), 0o644))
}

// TestCommit verifies staging, committing and the clean-worktree sentinel.
func TestCommit(t *testing.T) {
	tw := setupWorkspace(t, "commons")

	tw.writeFile(t, "commons", "pom.xml", "<version>1.0.0-SNAPSHOT</version>")
	hash, err := tw.ws.Commit(tw.ctx, "commons", "Prepare release")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	// A clean worktree reports ErrNoChanges so re-runs can skip.
	_, err = tw.ws.Commit(tw.ctx, "commons", "Prepare release")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoChanges)
}

// TestCheckout verifies branch switching and on-demand creation.
func TestCheckout(t *testing.T) {
	tw := setupWorkspace(t, "commons")

	branch, err := tw.ws.CurrentBranch(tw.ctx, "commons")
	require.NoError(t, err)
	assert.Equal(t, MainBranch, branch)

	require.NoError(t, tw.ws.Checkout(tw.ctx, "commons", "3.1.x"))
	branch, err = tw.ws.CurrentBranch(tw.ctx, "commons")
	require.NoError(t, err)
	assert.Equal(t, "3.1.x", branch)

	// Back to an existing branch.
	require.NoError(t, tw.ws.Checkout(tw.ctx, "commons", MainBranch))
	branch, err = tw.ws.CurrentBranch(tw.ctx, "commons")
	require.NoError(t, err)
	assert.Equal(t, MainBranch, branch)
}

// TestTag verifies tag creation, duplicate detection and listing.
func TestTag(t *testing.T) {
	tw := setupWorkspace(t, "commons")

	require.NoError(t, tw.ws.Tag(tw.ctx, "commons", "2.4.0-M1"))
	require.NoError(t, tw.ws.Tag(tw.ctx, "commons", "2.4.0"))

	has, err := tw.ws.HasTag(tw.ctx, "commons", "2.4.0-M1")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = tw.ws.HasTag(tw.ctx, "commons", "9.9.9")
	require.NoError(t, err)
	assert.False(t, has)

	err = tw.ws.Tag(tw.ctx, "commons", "2.4.0")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTagExists)

	tags, err := tw.ws.Tags(tw.ctx, "commons")
	require.NoError(t, err)
	assert.Equal(t, []string{"2.4.0", "2.4.0-M1"}, tags)
}

// TestCreateBranch verifies maintenance-branch creation semantics.
func TestCreateBranch(t *testing.T) {
	tw := setupWorkspace(t, "commons")

	head, err := tw.ws.Head(tw.ctx, "commons")
	require.NoError(t, err)

	require.NoError(t, tw.ws.CreateBranch(tw.ctx, "commons", head, "3.1.x"))

	// Re-creating at the same commit is idempotent.
	require.NoError(t, tw.ws.CreateBranch(tw.ctx, "commons", head, "3.1.x"))

	// Advance main, then recreating the branch elsewhere must fail.
	tw.writeFile(t, "commons", "README.adoc", "changed")
	_, err = tw.ws.Commit(tw.ctx, "commons", "Advance main")
	require.NoError(t, err)

	newHead, err := tw.ws.Head(tw.ctx, "commons")
	require.NoError(t, err)
	err = tw.ws.CreateBranch(tw.ctx, "commons", newHead, "3.1.x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBranchExists)
}

// TestMissingComponent verifies the sentinel for unknown repositories.
func TestMissingComponent(t *testing.T) {
	tw := setupWorkspace(t)

	_, err := tw.ws.CurrentBranch(tw.ctx, "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrComponentMissing)
}
