package staging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/go-git/go-billy/v5"
)

// s3API is the S3 surface the commercial target needs. It allows mocking in
// tests.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Object key layout inside the commercial bucket. Promotion is a server-side
// copy from the staging prefix to the release prefix, so a failed promotion
// never leaves a half-published release visible.
const (
	stagingPrefix = "staging"
	releasePrefix = "releases"
	bundleObject  = "bundle.tar.gz"
	queryObject   = "promote.aql"
)

// Commercial publishes to the commercial repository, an S3 bucket fronted by
// the vendor's indexer. Upload stores the bundle together with the scoped
// promotion query the indexer executes; the query enumerates every
// sub-artifact path the release unit must have published, so under- or
// over-scoping would promote the wrong artifacts.
type Commercial struct {
	options CommercialOptions
	fs      billy.Filesystem
	api     s3API
}

// CommercialOptions configures the commercial target.
type CommercialOptions struct {
	// Bucket is the commercial repository bucket.
	Bucket string

	// Region overrides the ambient AWS region.
	Region string

	// Patterns maps a component to its sub-artifact path patterns. Catalog
	// data: components publishing several sub-artifacts declare all of them
	// there.
	Patterns map[string][]string

	// Logger receives lifecycle progress. Defaults to slog.Default.
	Logger *slog.Logger

	// API overrides the S3 client, for tests.
	API s3API
}

// CommercialOption mutates CommercialOptions.
type CommercialOption func(*CommercialOptions)

// WithRegion sets the AWS region.
func WithRegion(region string) CommercialOption {
	return func(o *CommercialOptions) { o.Region = region }
}

// WithArtifactPatterns sets the per-component sub-artifact path patterns.
func WithArtifactPatterns(patterns map[string][]string) CommercialOption {
	return func(o *CommercialOptions) { o.Patterns = patterns }
}

// WithCommercialLogger sets the logger.
func WithCommercialLogger(logger *slog.Logger) CommercialOption {
	return func(o *CommercialOptions) { o.Logger = logger }
}

// WithS3API injects an S3 client, for tests.
func WithS3API(api s3API) CommercialOption {
	return func(o *CommercialOptions) { o.API = api }
}

// NewCommercial returns a commercial target staging into fs and publishing
// to the given bucket. Without an injected API the default AWS credential
// chain is used.
func NewCommercial(ctx context.Context, bucket string, fs billy.Filesystem, opts ...CommercialOption) (*Commercial, error) {
	options := CommercialOptions{Bucket: bucket}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	api := options.API
	if api == nil {
		var cfgOpts []func(*config.LoadOptions) error
		if options.Region != "" {
			cfgOpts = append(cfgOpts, config.WithRegion(options.Region))
		}
		cfg, err := config.LoadDefaultConfig(ctx, cfgOpts...)
		if err != nil {
			return nil, fmt.Errorf("commercial: failed to load AWS configuration: %w", err)
		}
		api = s3.NewFromConfig(cfg)
	}

	return &Commercial{options: options, fs: fs, api: api}, nil
}

// Name implements Target.
func (c *Commercial) Name() string { return "commercial" }

// VerifyAuthentication checks bucket access with the configured credentials.
// Only credential rejections map to ErrAuthenticationFailed; transient
// reachability failures stay retryable.
func (c *Commercial) VerifyAuthentication(ctx context.Context) error {
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.options.Bucket)})
	if err == nil {
		return nil
	}
	if isAccessDenied(err) {
		return fmt.Errorf("commercial: %w: %w", ErrAuthenticationFailed, err)
	}
	return fmt.Errorf("commercial: failed to reach bucket %s: %w", c.options.Bucket, err)
}

// isAccessDenied reports whether the S3 error indicates rejected credentials
// rather than a transient failure.
func isAccessDenied(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
		return true
	}
	return false
}

// CreateStagingArea opens the local staging directory. The bucket-side
// staging area is just the component/version key prefix.
func (c *Commercial) CreateStagingArea(ctx context.Context, component, version string) (*Repository, error) {
	repo, err := NewRepository(c.fs, component, version)
	if err != nil {
		return nil, err
	}
	c.options.Logger.Info("created staging repository",
		"target", c.Name(), "component", component, "id", repo.ID())
	return repo, nil
}

// Upload stores the bundle and the scoped promotion query under the staging
// prefix.
func (c *Commercial) Upload(ctx context.Context, repo *Repository) error {
	if err := repo.ensure(Staged); err != nil {
		return err
	}

	query, err := ScopedQuery(repo.Component(), c.options.Patterns[repo.Component()], repo.Version())
	if err != nil {
		return fmt.Errorf("commercial: %w", err)
	}

	stagedFS, err := repo.FS()
	if err != nil {
		return err
	}
	var bundle bytes.Buffer
	if err := WriteBundle(stagedFS, &bundle); err != nil {
		return fmt.Errorf("commercial: %s: %w", repo.Component(), err)
	}

	if err := c.put(ctx, c.stagingKey(repo, bundleObject), bundle.Bytes(), "application/gzip"); err != nil {
		return fmt.Errorf("commercial: failed to upload %s bundle: %w", repo.Component(), err)
	}
	if err := c.put(ctx, c.stagingKey(repo, queryObject), []byte(query), "text/plain"); err != nil {
		return fmt.Errorf("commercial: failed to upload %s query: %w", repo.Component(), err)
	}

	return repo.MarkVerified()
}

// Close seals the staged prefix with a marker object. The put is idempotent,
// matching the resume semantics.
func (c *Commercial) Close(ctx context.Context, repo *Repository) error {
	if err := repo.ensure(Verified, Closed); err != nil {
		return err
	}
	if err := c.put(ctx, c.stagingKey(repo, "CLOSED"), []byte(repo.ID()), "text/plain"); err != nil {
		return fmt.Errorf("commercial: failed to close %s: %w", repo.Component(), err)
	}
	return repo.MarkClosed()
}

// Promote copies the sealed bundle and query from the staging prefix to the
// release prefix, where the indexer picks them up. No confirmation: the
// commercial repository is not the public release target.
func (c *Commercial) Promote(ctx context.Context, repo *Repository) error {
	if err := repo.ensure(Closed, Promoted); err != nil {
		return err
	}

	for _, object := range []string{bundleObject, queryObject} {
		source := c.options.Bucket + "/" + c.stagingKey(repo, object)
		_, err := c.api.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(c.options.Bucket),
			CopySource: aws.String(source),
			Key:        aws.String(c.releaseKey(repo, object)),
		})
		if err != nil {
			return fmt.Errorf("commercial: failed to promote %s: %w", repo.Component(), err)
		}
	}

	c.options.Logger.Info("promoted staging repository",
		"target", c.Name(), "component", repo.Component(), "id", repo.ID(),
		"prefix", c.releaseKey(repo, ""))
	return repo.MarkPromoted()
}

func (c *Commercial) put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.options.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	return err
}

func (c *Commercial) stagingKey(repo *Repository, object string) string {
	return objectKey(stagingPrefix, repo, object)
}

func (c *Commercial) releaseKey(repo *Repository, object string) string {
	return objectKey(releasePrefix, repo, object)
}

func objectKey(prefix string, repo *Repository, object string) string {
	return strings.TrimSuffix(prefix+"/"+repo.Component()+"/"+repo.Version()+"/"+object, "/")
}
