package staging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-git/go-billy/v5"
)

// errorBodyBytes bounds how much of a failure response ends up in an error.
const errorBodyBytes = 2048

// Central publishes to the public release repository through its two-phase
// staging API: a server-side staging repository is created up front, the
// bundle is uploaded into it, and close/promote are separate remote calls.
// Promotion is irreversible and therefore gated on operator confirmation.
type Central struct {
	options   CentralOptions
	fs        billy.Filesystem
	confirmer Confirmer
}

// CentralOptions configures the central target.
type CentralOptions struct {
	// BaseURL is the root of the staging API.
	BaseURL string

	// Token authenticates every request.
	Token string

	// HTTPClient overrides the HTTP client, for tests and timeouts.
	HTTPClient *http.Client

	// Logger receives lifecycle progress. Defaults to slog.Default.
	Logger *slog.Logger
}

// CentralOption mutates CentralOptions.
type CentralOption func(*CentralOptions)

// WithCentralToken sets the API token.
func WithCentralToken(token string) CentralOption {
	return func(o *CentralOptions) { o.Token = token }
}

// WithCentralHTTPClient sets the HTTP client.
func WithCentralHTTPClient(client *http.Client) CentralOption {
	return func(o *CentralOptions) { o.HTTPClient = client }
}

// WithCentralLogger sets the logger.
func WithCentralLogger(logger *slog.Logger) CentralOption {
	return func(o *CentralOptions) { o.Logger = logger }
}

// NewCentral returns a central target staging into fs and publishing against
// baseURL. The confirmer gates promotion.
func NewCentral(baseURL string, fs billy.Filesystem, confirmer Confirmer, opts ...CentralOption) *Central {
	options := CentralOptions{BaseURL: baseURL}
	for _, opt := range opts {
		opt(&options)
	}
	if options.HTTPClient == nil {
		options.HTTPClient = http.DefaultClient
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Central{options: options, fs: fs, confirmer: confirmer}
}

// Name implements Target.
func (c *Central) Name() string { return "central" }

// VerifyAuthentication checks the token against the status endpoint.
func (c *Central) VerifyAuthentication(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/status", "", nil)
	if err != nil {
		return fmt.Errorf("central: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("central: %w", ErrAuthenticationFailed)
	default:
		return fmt.Errorf("central: %s", responseError(resp))
	}
}

// CreateStagingArea opens a server-side staging repository and the matching
// local staging directory.
func (c *Central) CreateStagingArea(ctx context.Context, component, version string) (*Repository, error) {
	repo, err := NewRepository(c.fs, component, version)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]string{"component": component, "version": version})
	if err != nil {
		return nil, fmt.Errorf("central: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/repositories", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("central: failed to create staging repository: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("central: failed to create staging repository: %s", responseError(resp))
	}

	var created struct {
		RepositoryID string `json:"repositoryId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("central: malformed create response: %w", err)
	}
	if created.RepositoryID == "" {
		return nil, fmt.Errorf("central: create response carries no repository id")
	}
	repo.SetRemoteID(created.RepositoryID)

	c.options.Logger.Info("created staging repository",
		"target", c.Name(), "component", component, "id", repo.ID(), "remoteId", created.RepositoryID)
	return repo, nil
}

// Upload bundles the staged artifacts and transfers the bundle.
func (c *Central) Upload(ctx context.Context, repo *Repository) error {
	if err := repo.ensure(Staged); err != nil {
		return err
	}

	stagedFS, err := repo.FS()
	if err != nil {
		return err
	}
	var bundle bytes.Buffer
	if err := WriteBundle(stagedFS, &bundle); err != nil {
		return fmt.Errorf("central: %s: %w", repo.Component(), err)
	}

	path := fmt.Sprintf("/api/v1/repositories/%s/bundle", repo.RemoteID())
	resp, err := c.do(ctx, http.MethodPut, path, "application/gzip", &bundle)
	if err != nil {
		return fmt.Errorf("central: failed to upload %s: %w", repo.Component(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("central: failed to upload %s: %s", repo.Component(), responseError(resp))
	}

	return repo.MarkVerified()
}

// Close seals the remote staging repository.
func (c *Central) Close(ctx context.Context, repo *Repository) error {
	if err := repo.ensure(Verified, Closed); err != nil {
		return err
	}

	path := fmt.Sprintf("/api/v1/repositories/%s/close", repo.RemoteID())
	resp, err := c.do(ctx, http.MethodPost, path, "", nil)
	if err != nil {
		return fmt.Errorf("central: failed to close %s: %w", repo.Component(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("central: failed to close %s: %s", repo.Component(), responseError(resp))
	}

	return repo.MarkClosed()
}

// Promote releases the closed repository after operator confirmation.
func (c *Central) Promote(ctx context.Context, repo *Repository) error {
	if err := repo.ensure(Closed, Promoted); err != nil {
		return err
	}

	prompt := fmt.Sprintf("Release %s %s from staging repository %s? This cannot be undone.",
		repo.Component(), repo.Version(), repo.RemoteID())
	ok, err := c.confirmer.Confirm(prompt)
	if err != nil {
		return fmt.Errorf("central: %w", err)
	}
	if !ok {
		return fmt.Errorf("central: %s: %w", repo.Component(), ErrPromotionDeclined)
	}

	path := fmt.Sprintf("/api/v1/repositories/%s/promote", repo.RemoteID())
	resp, err := c.do(ctx, http.MethodPost, path, "", nil)
	if err != nil {
		return fmt.Errorf("central: failed to promote %s: %w", repo.Component(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("central: failed to promote %s: %s", repo.Component(), responseError(resp))
	}

	c.options.Logger.Info("promoted staging repository",
		"target", c.Name(), "component", repo.Component(), "id", repo.ID(), "remoteId", repo.RemoteID())
	return repo.MarkPromoted()
}

func (c *Central) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.options.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.options.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.options.Token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.options.HTTPClient.Do(req)
}

// responseError summarizes a non-success response for an error message.
func responseError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyBytes))
	if len(body) == 0 {
		return resp.Status
	}
	return fmt.Sprintf("%s: %s", resp.Status, bytes.TrimSpace(body))
}
