// Package pipeline drives a resolved release iteration through its phases:
// prepare, build, conclude, distribute. Each phase corresponds to one CLI
// command, fans out over the iteration's components, and is idempotent with
// respect to work a previous partial run already applied.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/spring-projects/spring-data-release-sub001/graph"
	"github.com/spring-projects/spring-data-release-sub001/maven"
	"github.com/spring-projects/spring-data-release-sub001/staging"
	"github.com/spring-projects/spring-data-release-sub001/train"
	"github.com/spring-projects/spring-data-release-sub001/vcs"
	"github.com/spring-projects/spring-data-release-sub001/work"
)

// SourceControl is the version-control collaborator, one repository per
// component. Satisfied by vcs.Workspace.
type SourceControl interface {
	ComponentFS(component string) (billy.Filesystem, error)
	Checkout(ctx context.Context, component, branch string) error
	Commit(ctx context.Context, component, message string) (string, error)
	Tag(ctx context.Context, component, name string) error
	HasTag(ctx context.Context, component, name string) (bool, error)
	CreateBranch(ctx context.Context, component, from, name string) error
	Head(ctx context.Context, component string) (string, error)
}

// Builder is the build-tool collaborator. Satisfied by maven.Maven.
type Builder interface {
	// Verify checks the toolchain before any descriptor is touched.
	Verify(ctx context.Context) error

	// SetVersion rewrites the version descriptor in a component worktree,
	// reporting false when it already carries the wanted version.
	SetVersion(fs billy.Filesystem, version string) (bool, error)

	// Build builds one component and deploys its artifacts into deployDir.
	Build(ctx context.Context, component string, version train.Version, deployDir string) (*maven.DeploymentInformation, error)
}

// Documentation publishes non-artifact release resources (reference docs,
// static site metadata) during the distribute phase.
type Documentation interface {
	Publish(ctx context.Context, component string, version train.Version) error
}

// Targets holds the three publication targets. Which one a release goes to
// depends on the train and milestone, never on operator choice.
type Targets struct {
	// Central is the public release repository (GA and service releases).
	Central staging.Target

	// Milestone is the public milestone/snapshot repository.
	Milestone staging.Target

	// Commercial is the commercial repository, used for every milestone of
	// commercial trains.
	Commercial staging.Target
}

// For selects the publication target for one iteration.
func (t Targets) For(tr *train.Train, m train.Milestone) staging.Target {
	if tr.Status == train.StatusCommercial {
		return t.Commercial
	}
	if m.IsQualified() {
		return t.Milestone
	}
	return t.Central
}

// Options configures the pipeline.
type Options struct {
	// Logger receives phase progress. Defaults to slog.Default.
	Logger *slog.Logger

	// Pool bounds the fan-out over components. Defaults to a pool sized off
	// the CPU count; a synchronous pool serializes everything for
	// deterministic runs.
	Pool *work.Pool

	// StagingDir is the filesystem path of the local staging root, as the
	// build tool must address it.
	StagingDir string

	// Docs is the optional documentation collaborator.
	Docs Documentation

	// RemoteAttempts bounds retries of remote publication calls, which are
	// observed to fail transiently.
	RemoteAttempts int

	// RetryDelay is the pause between remote attempts.
	RetryDelay time.Duration
}

// Option mutates Options.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithPool sets the worker pool.
func WithPool(pool *work.Pool) Option {
	return func(o *Options) { o.Pool = pool }
}

// WithStagingDir sets the local staging root path.
func WithStagingDir(dir string) Option {
	return func(o *Options) { o.StagingDir = dir }
}

// WithDocumentation sets the documentation collaborator.
func WithDocumentation(docs Documentation) Option {
	return func(o *Options) { o.Docs = docs }
}

// WithRemoteAttempts bounds remote-call retries.
func WithRemoteAttempts(attempts int) Option {
	return func(o *Options) { o.RemoteAttempts = attempts }
}

// WithRetryDelay sets the pause between remote attempts.
func WithRetryDelay(delay time.Duration) Option {
	return func(o *Options) { o.RetryDelay = delay }
}

// Pipeline orchestrates the release phases over its collaborators.
type Pipeline struct {
	options Options
	scm     SourceControl
	builder Builder
	targets Targets
}

// New returns a pipeline over the given collaborators.
func New(scm SourceControl, builder Builder, targets Targets, opts ...Option) *Pipeline {
	options := Options{RemoteAttempts: 3, RetryDelay: 2 * time.Second}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Pool == nil {
		options.Pool = work.NewPool(work.DefaultPoolSize())
	}
	return &Pipeline{options: options, scm: scm, builder: builder, targets: targets}
}

// Release is the unit the phases operate on: one resolved iteration, its
// dependency build order, the publication target it goes to, and the staging
// repositories opened during the build phase.
type Release struct {
	Iteration *train.Iteration

	// Order is the component build order: every component after all of its
	// declared dependencies, ties broken by declaration order.
	Order []string

	// Target is the publication target for this iteration.
	Target staging.Target

	repos map[string]*staging.Repository
}

// NewRelease resolves a train and milestone into a release unit.
func (p *Pipeline) NewRelease(t *train.Train, m train.Milestone) (*Release, error) {
	it, err := train.Resolve(t, m)
	if err != nil {
		return nil, err
	}

	deps := make(map[string][]string, len(t.Members))
	for _, member := range t.Members {
		deps[member.Component] = member.Dependencies
	}
	order, err := graph.Order(t.Components(), deps)
	if err != nil {
		return nil, err
	}

	return &Release{
		Iteration: it,
		Order:     order,
		Target:    p.targets.For(t, m),
		repos:     make(map[string]*staging.Repository),
	}, nil
}

// Repository returns the staging repository the build phase opened for a
// component.
func (r *Release) Repository(component string) (*staging.Repository, bool) {
	repo, ok := r.repos[component]
	return repo, ok
}

// branch returns the branch a component is released from: the maintenance
// branch of its base version for service releases, otherwise main.
func (r *Release) branch(component string) string {
	t := r.Iteration.Train
	if t.MainOnly || !r.Iteration.Milestone.IsServiceRelease() {
		return vcs.MainBranch
	}
	member, ok := t.Member(component)
	if !ok {
		return vcs.MainBranch
	}
	return train.MaintenanceBranch(member.Base)
}
