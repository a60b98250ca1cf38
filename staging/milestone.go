package staging

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-git/go-billy/v5"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
)

// artifactType marks release bundles in OCI manifests.
const artifactType = "application/vnd.spring-data.release-bundle.v1"

// registryClient is the OCI surface the milestone target needs. The real
// implementation sits on ORAS; tests substitute a recorder.
type registryClient interface {
	// Push stores data as a single-layer artifact under reference.
	Push(ctx context.Context, reference string, data []byte) error

	// Retag points targetTag at the manifest already tagged sourceTag in
	// repository.
	Retag(ctx context.Context, repository, sourceTag, targetTag string) error

	// Ping checks registry reachability and credentials.
	Ping(ctx context.Context) error
}

// Milestone publishes to the public milestone/snapshot repository, which is
// an OCI registry. Upload pushes the bundle under a staging tag; promotion
// needs no confirmation and merely moves the release tag onto the staged
// manifest, so close is a local bookkeeping step.
type Milestone struct {
	options MilestoneOptions
	fs      billy.Filesystem
	client  registryClient
}

// MilestoneOptions configures the milestone target.
type MilestoneOptions struct {
	// Repository is the registry repository prefix holding one OCI
	// repository per component (e.g. "repo.example.com/milestones").
	Repository string

	// Username and Password are static registry credentials. Empty means
	// the ambient credential chain.
	Username string
	Password string

	// PlainHTTP switches the registry connection to HTTP, for local
	// registries in tests.
	PlainHTTP bool

	// Logger receives lifecycle progress. Defaults to slog.Default.
	Logger *slog.Logger

	// Client overrides the registry client, for tests.
	Client registryClient
}

// MilestoneOption mutates MilestoneOptions.
type MilestoneOption func(*MilestoneOptions)

// WithRegistryCredentials sets static registry credentials.
func WithRegistryCredentials(username, password string) MilestoneOption {
	return func(o *MilestoneOptions) {
		o.Username = username
		o.Password = password
	}
}

// WithPlainHTTP switches the registry connection to HTTP.
func WithPlainHTTP() MilestoneOption {
	return func(o *MilestoneOptions) { o.PlainHTTP = true }
}

// WithMilestoneLogger sets the logger.
func WithMilestoneLogger(logger *slog.Logger) MilestoneOption {
	return func(o *MilestoneOptions) { o.Logger = logger }
}

// WithRegistryClient injects a registry client, for tests.
func WithRegistryClient(client registryClient) MilestoneOption {
	return func(o *MilestoneOptions) { o.Client = client }
}

// NewMilestone returns a milestone target staging into fs and publishing to
// the given registry repository prefix.
func NewMilestone(repository string, fs billy.Filesystem, opts ...MilestoneOption) *Milestone {
	options := MilestoneOptions{Repository: repository}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	client := options.Client
	if client == nil {
		client = &orasClient{options: options}
	}
	return &Milestone{options: options, fs: fs, client: client}
}

// Name implements Target.
func (m *Milestone) Name() string { return "milestone" }

// VerifyAuthentication pings the registry with the configured credentials.
func (m *Milestone) VerifyAuthentication(ctx context.Context) error {
	if err := m.client.Ping(ctx); err != nil {
		return fmt.Errorf("milestone: %w: %w", ErrAuthenticationFailed, err)
	}
	return nil
}

// CreateStagingArea opens the local staging directory. The registry has no
// server-side staging notion; staging lives in the tag namespace.
func (m *Milestone) CreateStagingArea(ctx context.Context, component, version string) (*Repository, error) {
	repo, err := NewRepository(m.fs, component, version)
	if err != nil {
		return nil, err
	}
	m.options.Logger.Info("created staging repository",
		"target", m.Name(), "component", component, "id", repo.ID())
	return repo, nil
}

// Upload bundles the staged artifacts and pushes them under the staging tag.
func (m *Milestone) Upload(ctx context.Context, repo *Repository) error {
	if err := repo.ensure(Staged); err != nil {
		return err
	}

	stagedFS, err := repo.FS()
	if err != nil {
		return err
	}
	var bundle bytes.Buffer
	if err := WriteBundle(stagedFS, &bundle); err != nil {
		return fmt.Errorf("milestone: %s: %w", repo.Component(), err)
	}

	reference := m.componentRepository(repo.Component()) + ":" + stagingTag(repo.Version())
	if err := m.client.Push(ctx, reference, bundle.Bytes()); err != nil {
		return fmt.Errorf("milestone: failed to push %s: %w", reference, err)
	}

	return repo.MarkVerified()
}

// Close is local bookkeeping: the staged manifest is already immutable under
// its digest.
func (m *Milestone) Close(ctx context.Context, repo *Repository) error {
	if err := repo.ensure(Verified, Closed); err != nil {
		return err
	}
	return repo.MarkClosed()
}

// Promote moves the release tag onto the staged manifest. No confirmation:
// milestones are not final releases.
func (m *Milestone) Promote(ctx context.Context, repo *Repository) error {
	if err := repo.ensure(Closed, Promoted); err != nil {
		return err
	}

	repository := m.componentRepository(repo.Component())
	if err := m.client.Retag(ctx, repository, stagingTag(repo.Version()), repo.Version()); err != nil {
		return fmt.Errorf("milestone: failed to promote %s:%s: %w", repository, repo.Version(), err)
	}

	m.options.Logger.Info("promoted staging repository",
		"target", m.Name(), "component", repo.Component(), "id", repo.ID(),
		"reference", repository+":"+repo.Version())
	return repo.MarkPromoted()
}

func (m *Milestone) componentRepository(component string) string {
	return m.options.Repository + "/" + component
}

func stagingTag(version string) string {
	return version + "-staging"
}

// orasClient is the real registry client.
type orasClient struct {
	options MilestoneOptions
}

func (c *orasClient) Push(ctx context.Context, reference string, data []byte) error {
	repository, tag, ok := splitReference(reference)
	if !ok {
		return fmt.Errorf("reference %q carries no tag", reference)
	}
	repo, err := c.repository(repository)
	if err != nil {
		return err
	}

	blobDesc, err := oras.PushBytes(ctx, repo, BundleMediaType, data)
	if err != nil {
		return fmt.Errorf("failed to push blob: %w", err)
	}

	packOpts := oras.PackManifestOptions{Layers: []ocispec.Descriptor{blobDesc}}
	manifestDesc, err := oras.PackManifest(ctx, repo, oras.PackManifestVersion1_1, artifactType, packOpts)
	if err != nil {
		return fmt.Errorf("failed to pack manifest: %w", err)
	}

	if _, err := oras.Tag(ctx, repo, manifestDesc.Digest.String(), tag); err != nil {
		return fmt.Errorf("failed to tag manifest: %w", err)
	}
	return nil
}

func (c *orasClient) Retag(ctx context.Context, repository, sourceTag, targetTag string) error {
	repo, err := c.repository(repository)
	if err != nil {
		return err
	}
	if _, err := oras.Tag(ctx, repo, sourceTag, targetTag); err != nil {
		return fmt.Errorf("failed to retag %s -> %s: %w", sourceTag, targetTag, err)
	}
	return nil
}

func (c *orasClient) Ping(ctx context.Context) error {
	registry, err := remote.NewRegistry(registryHost(c.options.Repository))
	if err != nil {
		return err
	}
	registry.PlainHTTP = c.options.PlainHTTP
	registry.Client = c.authClient()
	return registry.Ping(ctx)
}

func (c *orasClient) repository(repository string) (*remote.Repository, error) {
	repo, err := remote.NewRepository(repository)
	if err != nil {
		return nil, fmt.Errorf("invalid repository %q: %w", repository, err)
	}
	repo.PlainHTTP = c.options.PlainHTTP
	repo.Client = c.authClient()
	return repo, nil
}

func (c *orasClient) authClient() *auth.Client {
	client := &auth.Client{Cache: auth.NewCache()}
	if c.options.Username != "" {
		client.Credential = auth.StaticCredential(
			registryHost(c.options.Repository),
			auth.Credential{Username: c.options.Username, Password: c.options.Password})
	}
	return client
}

// splitReference splits "host/repo:tag" into repository and tag, looking for
// the colon only after the last slash so registry ports survive.
func splitReference(reference string) (repository, tag string, ok bool) {
	tail := reference[strings.LastIndex(reference, "/")+1:]
	colon := strings.LastIndex(tail, ":")
	if colon < 0 {
		return reference, "", false
	}
	cut := len(reference) - len(tail) + colon
	return reference[:cut], reference[cut+1:], true
}

// registryHost isolates the registry host from a repository path.
func registryHost(repository string) string {
	if slash := strings.Index(repository, "/"); slash >= 0 {
		return repository[:slash]
	}
	return repository
}
