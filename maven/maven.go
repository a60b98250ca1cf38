// Package maven drives the external build tool: it rewrites project
// descriptors to release versions, runs builds that deploy into a local
// staging directory, and reports what was deployed where.
package maven

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spring-projects/spring-data-release-sub001/runner"
	"github.com/spring-projects/spring-data-release-sub001/train"
)

// ErrBuildFailed is returned when the build tool exits non-zero. The
// returned error chain carries a BuildError with a log excerpt.
var ErrBuildFailed = errors.New("build failed")

// logExcerptBytes bounds how much build output a failure report carries.
const logExcerptBytes = 4096

// BuildError reports a failed component build with the tail of its log.
type BuildError struct {
	Component  string
	LogExcerpt string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build of %s failed:\n%s", e.Component, e.LogExcerpt)
}

func (e *BuildError) Unwrap() error { return ErrBuildFailed }

// DeploymentInformation is the output of building one component: the
// artifact coordinates produced and the staging area they were deployed
// into.
type DeploymentInformation struct {
	Component         string
	Version           train.Version
	Artifacts         []string
	StagingRepository string
}

// Options configures the build collaborator.
type Options struct {
	// Program is the build tool binary. Defaults to "mvn".
	Program string

	// WorkspaceDir is the directory holding one checkout per component.
	WorkspaceDir string

	// Profiles are extra build profiles activated on release builds
	// (e.g. "release,distribute").
	Profiles []string

	// Logger receives build progress. Defaults to slog.Default.
	Logger *slog.Logger

	// Runner overrides command execution, for tests.
	Runner runner.Runner
}

// Option mutates Options.
type Option func(*Options)

// WithProgram sets the build tool binary.
func WithProgram(program string) Option {
	return func(o *Options) { o.Program = program }
}

// WithProfiles sets the release build profiles.
func WithProfiles(profiles ...string) Option {
	return func(o *Options) { o.Profiles = profiles }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithRunner injects a command runner, for tests.
func WithRunner(r runner.Runner) Option {
	return func(o *Options) { o.Runner = r }
}

// Maven invokes the build tool per component. Safe for concurrent use;
// builds of distinct components run in distinct working directories.
type Maven struct {
	options Options
}

// New returns a build collaborator over the given workspace directory.
func New(workspaceDir string, opts ...Option) *Maven {
	options := Options{Program: "mvn", WorkspaceDir: workspaceDir}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Runner == nil {
		options.Runner = runner.New(options.Program)
	}
	return &Maven{options: options}
}

// Verify checks the build toolchain is available, as a pre-flight check
// before any descriptor is touched.
func (m *Maven) Verify(ctx context.Context) error {
	if _, err := m.options.Runner.Run(ctx, []string{"--version"}); err != nil {
		return fmt.Errorf("build toolchain unavailable: %w", err)
	}
	return nil
}

// Build runs a full build of one component at the given version and deploys
// its artifacts into deployDir. Any build failure is fatal for the whole
// release unit; the error names the component and carries a log excerpt.
func (m *Maven) Build(ctx context.Context, component string, version train.Version, deployDir string) (*DeploymentInformation, error) {
	args := []string{
		"--batch-mode",
		"clean",
		"deploy",
		"-DskipTests=false",
		fmt.Sprintf("-DaltDeploymentRepository=staging::default::file://%s", deployDir),
	}
	if len(m.options.Profiles) > 0 {
		args = append(args, "-P"+strings.Join(m.options.Profiles, ","))
	}

	m.options.Logger.Info("building component",
		"component", component, "version", version.ArtifactVersion())

	result, err := m.options.Runner.Run(ctx, args,
		runner.InDir(m.componentDir(component)))
	if err != nil {
		excerpt := ""
		if result != nil {
			excerpt = result.Tail(logExcerptBytes)
		}
		return nil, &BuildError{Component: component, LogExcerpt: excerpt}
	}

	return &DeploymentInformation{
		Component:         component,
		Version:           version,
		Artifacts:         parseDeployedArtifacts(result.Stdout),
		StagingRepository: deployDir,
	}, nil
}

func (m *Maven) componentDir(component string) string {
	return m.options.WorkspaceDir + "/" + component
}

// parseDeployedArtifacts extracts deployed artifact coordinates from build
// output. The build tool logs one "Uploaded to staging:" line per file; the
// coordinate is the path segment before the version directory.
func parseDeployedArtifacts(output string) []string {
	var artifacts []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(output, "\n") {
		idx := strings.Index(line, "Uploaded to staging:")
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(line[idx+len("Uploaded to staging:"):])
		path := strings.Fields(rest)
		if len(path) == 0 {
			continue
		}
		coordinate := artifactCoordinate(path[0])
		if coordinate != "" && !seen[coordinate] {
			seen[coordinate] = true
			artifacts = append(artifacts, coordinate)
		}
	}
	return artifacts
}

// artifactCoordinate reduces an uploaded file URL to its artifact directory:
// everything up to and excluding the version and file name segments.
func artifactCoordinate(url string) string {
	url = strings.TrimPrefix(url, "file://")
	segments := strings.Split(strings.Trim(url, "/"), "/")
	if len(segments) < 3 {
		return ""
	}
	// …/<groupPath>/<artifactId>/<version>/<file> -> drop the last two.
	return strings.Join(segments[:len(segments)-2], "/")
}
