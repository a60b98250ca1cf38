package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/spring-projects/spring-data-release-sub001/staging"
	"github.com/spring-projects/spring-data-release-sub001/train"
	"github.com/spring-projects/spring-data-release-sub001/vcs"
	"github.com/spring-projects/spring-data-release-sub001/work"
)

// PhaseError names the phase a failure happened in. The wrapped error names
// the component(s): a single component for fatal build failures, a
// work.PartialFailure for fan-out phases.
type PhaseError struct {
	Phase string
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("phase %s failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

func phaseError(phase string, err error) error {
	if err == nil {
		return nil
	}
	return &PhaseError{Phase: phase, Err: err}
}

// Prepare runs the pre-flight checks, checks out the release branch of every
// component, and rewrites descriptors to the release versions in dependency
// order. Re-running after a partial failure skips components whose
// descriptor already carries the release version.
func (p *Pipeline) Prepare(ctx context.Context, r *Release) error {
	if err := p.builder.Verify(ctx); err != nil {
		return phaseError("prepare", err)
	}
	if err := r.Target.VerifyAuthentication(ctx); err != nil {
		return phaseError("prepare", err)
	}

	err := work.Run(ctx, p.options.Pool, r.Order, func(ctx context.Context, component string) error {
		return p.scm.Checkout(ctx, component, r.branch(component))
	})
	if err != nil {
		return phaseError("prepare", err)
	}

	for _, component := range r.Order {
		version, err := r.Iteration.Version(component)
		if err != nil {
			return phaseError("prepare", err)
		}
		message := fmt.Sprintf("Prepare %s.", version)
		if err := p.rewriteVersion(ctx, component, version.ArtifactVersion(), message); err != nil {
			return phaseError("prepare", fmt.Errorf("component %s: %w", component, err))
		}
	}

	p.options.Logger.Info("prepared release", "iteration", r.Iteration.String())
	return nil
}

// Build builds every component in dependency order, strictly sequentially: a
// component's build resolves the exact coordinates its dependencies deployed
// moments before. Each component gets a fresh staging area; its artifacts
// are uploaded as soon as its build finishes. Any build failure is fatal for
// the whole release unit.
//
// Re-running after a partial failure resumes where the last run stopped:
// components whose artifacts are already uploaded are skipped, a staged but
// not yet uploaded attempt is purged and rebuilt, and an abandoned
// repository is replaced by a fresh staging area.
func (p *Pipeline) Build(ctx context.Context, r *Release) error {
	for _, component := range r.Order {
		version, err := r.Iteration.Version(component)
		if err != nil {
			return phaseError("build", err)
		}

		repo, ok := r.repos[component]
		if ok {
			switch repo.State() {
			case staging.Verified, staging.Closed, staging.Promoted:
				p.options.Logger.Info("component already staged",
					"component", component, "stagingRepository", repo.ID())
				continue
			case staging.Staged:
				if err := repo.Restage(); err != nil {
					return phaseError("build", err)
				}
			case staging.Abandoned:
				p.options.Logger.Info("replacing abandoned staging repository",
					"component", component, "id", repo.ID())
				ok = false
			}
		}
		if !ok {
			repo, err = r.Target.CreateStagingArea(ctx, component, version.ArtifactVersion())
			if err != nil {
				return phaseError("build", fmt.Errorf("component %s: %w", component, err))
			}
			r.repos[component] = repo
		}

		info, err := p.builder.Build(ctx, component, version, p.options.StagingDir+"/"+repo.Dir())
		if err != nil {
			p.abandon(repo)
			return phaseError("build", err)
		}
		if err := repo.MarkStaged(); err != nil {
			return phaseError("build", err)
		}

		if err := p.remote(ctx, func(ctx context.Context) error {
			return r.Target.Upload(ctx, repo)
		}); err != nil {
			p.abandon(repo)
			return phaseError("build", fmt.Errorf("component %s: %w", component, err))
		}

		p.options.Logger.Info("built component",
			"component", component, "version", version.ArtifactVersion(),
			"artifacts", len(info.Artifacts), "stagingRepository", repo.ID())
	}
	return nil
}

// Conclude tags the built commits and moves development onto the next
// version: back to the base snapshot after a qualified milestone, onto the
// bumped patch snapshot after a service release, and after GA onto a fresh
// maintenance branch per component plus the next minor on main. Existing
// tags are skipped so a re-run never fails on its own earlier work.
func (p *Pipeline) Conclude(ctx context.Context, r *Release) error {
	err := work.Run(ctx, p.options.Pool, r.Order, func(ctx context.Context, component string) error {
		tag, err := r.Iteration.TagName(component)
		if err != nil {
			return err
		}
		has, err := p.scm.HasTag(ctx, component, tag)
		if err != nil {
			return err
		}
		if has {
			p.options.Logger.Info("tag already exists", "component", component, "tag", tag)
			return nil
		}
		return p.scm.Tag(ctx, component, tag)
	})
	if err != nil {
		return phaseError("conclude", err)
	}

	if r.Iteration.Milestone.IsGAClass() {
		if err := p.openMaintenanceLines(ctx, r); err != nil {
			return phaseError("conclude", err)
		}
		return nil
	}

	for _, component := range r.Order {
		version, err := r.Iteration.Version(component)
		if err != nil {
			return phaseError("conclude", err)
		}
		next := version.SnapshotVersion()
		message := fmt.Sprintf("After release cleanups. Prepare next development iteration %s.", next)
		if err := p.rewriteVersion(ctx, component, next, message); err != nil {
			return phaseError("conclude", fmt.Errorf("component %s: %w", component, err))
		}
	}
	return nil
}

// openMaintenanceLines creates the post-GA branch mapping: each component
// gets a maintenance branch carrying the patch snapshot while main moves on
// to the next minor snapshot.
func (p *Pipeline) openMaintenanceLines(ctx context.Context, r *Release) error {
	mapping := train.NewBranchMapping(r.Iteration)

	for _, component := range r.Order {
		version, err := r.Iteration.Version(component)
		if err != nil {
			return err
		}
		branch, err := mapping.Branch(component)
		if err != nil {
			return err
		}

		if branch != train.BranchNone {
			head, err := p.scm.Head(ctx, component)
			if err != nil {
				return err
			}
			if err := p.scm.CreateBranch(ctx, component, head, branch); err != nil {
				return fmt.Errorf("component %s: %w", component, err)
			}

			if err := p.scm.Checkout(ctx, component, branch); err != nil {
				return err
			}
			maintenance := version.SnapshotVersion()
			message := fmt.Sprintf("After release cleanups. Prepare next development iteration %s.", maintenance)
			if err := p.rewriteVersion(ctx, component, maintenance, message); err != nil {
				return fmt.Errorf("component %s: %w", component, err)
			}
			if err := p.scm.Checkout(ctx, component, vcs.MainBranch); err != nil {
				return err
			}
		}

		next := version.Number.NextMinor().String() + "-SNAPSHOT"
		message := fmt.Sprintf("After release cleanups. Prepare next development iteration %s.", next)
		if err := p.rewriteVersion(ctx, component, next, message); err != nil {
			return fmt.Errorf("component %s: %w", component, err)
		}
	}
	return nil
}

// Distribute makes the staged release public: close and promote every
// component's staging repository against the target, then push documentation
// resources. All failures across components are collected, not just the
// first.
func (p *Pipeline) Distribute(ctx context.Context, r *Release) error {
	if len(r.repos) == 0 {
		return phaseError("distribute", errors.New("nothing staged: run the build phase first"))
	}

	err := work.Run(ctx, p.options.Pool, r.Order, func(ctx context.Context, component string) error {
		repo, ok := r.repos[component]
		if !ok {
			return fmt.Errorf("component %s was not staged", component)
		}
		if err := p.remote(ctx, func(ctx context.Context) error {
			return r.Target.Close(ctx, repo)
		}); err != nil {
			return err
		}
		return p.remote(ctx, func(ctx context.Context) error {
			return r.Target.Promote(ctx, repo)
		})
	})
	if err != nil {
		return phaseError("distribute", err)
	}

	if p.options.Docs != nil {
		err := work.Run(ctx, p.options.Pool, r.Order, func(ctx context.Context, component string) error {
			version, err := r.Iteration.Version(component)
			if err != nil {
				return err
			}
			return p.options.Docs.Publish(ctx, component, version)
		})
		if err != nil {
			return phaseError("distribute", err)
		}
	}

	p.options.Logger.Info("distributed release",
		"iteration", r.Iteration.String(), "target", r.Target.Name())
	return nil
}

// ShipIt runs all phases in sequence, stopping on the first failure. The
// returned error names the failed phase and component(s).
func (p *Pipeline) ShipIt(ctx context.Context, r *Release) error {
	phases := []func(context.Context, *Release) error{
		p.Prepare,
		p.Build,
		p.Conclude,
		p.Distribute,
	}
	for _, phase := range phases {
		if err := phase(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// rewriteVersion rewrites a component's descriptor and commits, skipping
// silently when the descriptor (or worktree) already reflects the wanted
// state.
func (p *Pipeline) rewriteVersion(ctx context.Context, component, version, message string) error {
	fs, err := p.scm.ComponentFS(component)
	if err != nil {
		return err
	}
	changed, err := p.builder.SetVersion(fs, version)
	if err != nil {
		return err
	}
	if !changed {
		p.options.Logger.Info("descriptor already at version", "component", component, "version", version)
		return nil
	}
	if _, err := p.scm.Commit(ctx, component, message); err != nil && !errors.Is(err, vcs.ErrNoChanges) {
		return err
	}
	return nil
}

// remote runs one remote publication call with bounded retries. State
// conflicts, declined promotions and bad credentials are never retried:
// repeating them cannot succeed.
func (p *Pipeline) remote(ctx context.Context, fn func(context.Context) error) error {
	return work.Retry(ctx, p.options.RemoteAttempts, fn,
		work.WithDelay(p.options.RetryDelay),
		work.WithRetryIf(func(err error) bool {
			return !errors.Is(err, staging.ErrStateConflict) &&
				!errors.Is(err, staging.ErrPromotionDeclined) &&
				!errors.Is(err, staging.ErrAuthenticationFailed)
		}))
}

// abandon terminates a staging repository after a fatal failure, logging its
// id so the attempt can be traced.
func (p *Pipeline) abandon(repo *staging.Repository) {
	if err := repo.Abandon(); err != nil {
		p.options.Logger.Warn("failed to abandon staging repository",
			"id", repo.ID(), "component", repo.Component(), "error", err)
		return
	}
	p.options.Logger.Warn("abandoned staging repository",
		"id", repo.ID(), "component", repo.Component())
}
