package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/spring-projects/spring-data-release-sub001/catalog"
	"github.com/spring-projects/spring-data-release-sub001/maven"
	"github.com/spring-projects/spring-data-release-sub001/pipeline"
	"github.com/spring-projects/spring-data-release-sub001/staging"
	"github.com/spring-projects/spring-data-release-sub001/train"
	"github.com/spring-projects/spring-data-release-sub001/vcs"
	"github.com/spring-projects/spring-data-release-sub001/work"
)

// Credentials come from the environment, never from flags, so they cannot
// leak into shell history or process listings.
const (
	envCentralToken     = "CONDUCTOR_CENTRAL_TOKEN"
	envRegistryUser     = "CONDUCTOR_REGISTRY_USERNAME"
	envRegistryPassword = "CONDUCTOR_REGISTRY_PASSWORD"
)

type options struct {
	catalogPath         string
	workspaceDir        string
	stagingDir          string
	poolSize            int
	synchronous         bool
	verbose             bool
	centralURL          string
	milestoneRepository string
	commercialBucket    string
}

func defaultOptions() options {
	return options{
		workspaceDir:        "workspace",
		stagingDir:          "staging",
		centralURL:          "https://central.example.com",
		milestoneRepository: "repo.example.com/milestones",
		commercialBucket:    "commercial-releases",
	}
}

// app is the composition root: every collaborator is wired here, explicitly.
type app struct {
	catalog  *catalog.Catalog
	pipeline *pipeline.Pipeline
	out      io.Writer
}

func newApp(ctx context.Context, opts options) (*app, error) {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	catalogPath := opts.catalogPath
	if catalogPath == "" {
		var err error
		catalogPath, err = catalog.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	cat, err := catalog.LoadFile(catalogPath)
	if err != nil {
		return nil, err
	}

	stagingDir, err := filepath.Abs(opts.stagingDir)
	if err != nil {
		return nil, err
	}
	stagingFS := osfs.New(stagingDir)

	workspace := vcs.NewWorkspace(osfs.New(opts.workspaceDir), vcs.Signature{
		Name:  "Release Conductor",
		Email: "release@example.com",
	})
	builder := maven.New(opts.workspaceDir,
		maven.WithProfiles("release"),
		maven.WithLogger(logger))

	central := staging.NewCentral(opts.centralURL, stagingFS, terminalConfirmer{},
		staging.WithCentralToken(os.Getenv(envCentralToken)),
		staging.WithCentralLogger(logger))

	milestoneOpts := []staging.MilestoneOption{staging.WithMilestoneLogger(logger)}
	if user := os.Getenv(envRegistryUser); user != "" {
		milestoneOpts = append(milestoneOpts,
			staging.WithRegistryCredentials(user, os.Getenv(envRegistryPassword)))
	}
	milestone := staging.NewMilestone(opts.milestoneRepository, stagingFS, milestoneOpts...)

	commercial, err := staging.NewCommercial(ctx, opts.commercialBucket, stagingFS,
		staging.WithArtifactPatterns(artifactPatterns(cat)),
		staging.WithCommercialLogger(logger))
	if err != nil {
		return nil, err
	}

	pool := work.NewPool(opts.poolSize)
	if opts.synchronous {
		pool = work.Synchronous()
	}

	p := pipeline.New(workspace, builder,
		pipeline.Targets{Central: central, Milestone: milestone, Commercial: commercial},
		pipeline.WithLogger(logger),
		pipeline.WithPool(pool),
		pipeline.WithStagingDir(stagingDir))

	return &app{catalog: cat, pipeline: p, out: os.Stdout}, nil
}

// artifactPatterns collects the per-component sub-artifact path patterns
// from every train in the catalog.
func artifactPatterns(cat *catalog.Catalog) map[string][]string {
	patterns := make(map[string][]string)
	for _, t := range cat.Trains() {
		for _, member := range t.Members {
			if len(member.ArtifactPatterns) > 0 {
				patterns[member.Component] = member.ArtifactPatterns
			}
		}
	}
	return patterns
}

// release resolves the TRAIN MILESTONE argument pair into a release unit.
func (a *app) release(trainName, milestoneName string) (*pipeline.Release, error) {
	t, err := a.catalog.Train(trainName)
	if err != nil {
		return nil, err
	}
	m, err := train.ParseMilestone(milestoneName)
	if err != nil {
		return nil, err
	}
	return a.pipeline.NewRelease(t, m)
}

func (a *app) printResolved(trainName, milestoneName string) error {
	release, err := a.release(trainName, milestoneName)
	if err != nil {
		return err
	}
	it := release.Iteration

	fmt.Fprintf(a.out, "%s (target: %s)\n", it, release.Target.Name())
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, component := range release.Order {
		version, err := it.Version(component)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", component, version, version.ArtifactVersion())
	}
	return tw.Flush()
}

func (a *app) printCatalog() error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRAIN\tSCHEME\tVERSION\tSTATUS\tMEMBERS")
	for _, t := range a.catalog.Trains() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			t.Name, t.Scheme, t.Version, t.Status, len(t.Members))
	}
	return tw.Flush()
}

// terminalConfirmer asks on the controlling terminal. Anything but an
// explicit yes declines.
type terminalConfirmer struct{}

func (terminalConfirmer) Confirm(prompt string) (bool, error) {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
