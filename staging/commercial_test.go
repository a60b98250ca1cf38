package staging

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 records object writes and copies in memory.
type fakeS3 struct {
	objects map[string][]byte
	copies  [][2]string
	headErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*params.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) CopyObject(_ context.Context, params *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.copies = append(f.copies, [2]string{*params.CopySource, *params.Key})
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func newTestCommercial(t *testing.T, api s3API) *Commercial {
	t.Helper()

	commercial, err := NewCommercial(context.Background(), "commercial-repo", memfs.New(),
		WithS3API(api),
		WithArtifactPatterns(map[string][]string{
			"commons": {
				"org/example/data/commons-parent/{version}/*",
				"org/example/data/commons-core/{version}/*",
			},
		}))
	require.NoError(t, err)
	return commercial
}

// TestCommercialLifecycle verifies bundle + scoped query upload and
// promote-by-copy.
func TestCommercialLifecycle(t *testing.T) {
	api := newFakeS3()
	commercial := newTestCommercial(t, api)
	ctx := context.Background()

	require.NoError(t, commercial.VerifyAuthentication(ctx))

	repo, err := commercial.CreateStagingArea(ctx, "commons", "2.4.1")
	require.NoError(t, err)

	staged, err := repo.FS()
	require.NoError(t, err)
	require.NoError(t, util.WriteFile(staged, "org/example/data/commons-core/2.4.1/commons-core-2.4.1.jar", []byte("jar"), 0o644))
	require.NoError(t, repo.MarkStaged())

	require.NoError(t, commercial.Upload(ctx, repo))
	assert.Contains(t, api.objects, "staging/commons/2.4.1/bundle.tar.gz")

	query := string(api.objects["staging/commons/2.4.1/promote.aql"])
	assert.Contains(t, query, "org/example/data/commons-parent/2.4.1/*")
	assert.Contains(t, query, "org/example/data/commons-core/2.4.1/*")

	require.NoError(t, commercial.Close(ctx, repo))
	assert.Contains(t, api.objects, "staging/commons/2.4.1/CLOSED")

	require.NoError(t, commercial.Promote(ctx, repo))
	assert.Equal(t, Promoted, repo.State())
	assert.Equal(t, [][2]string{
		{"commercial-repo/staging/commons/2.4.1/bundle.tar.gz", "releases/commons/2.4.1/bundle.tar.gz"},
		{"commercial-repo/staging/commons/2.4.1/promote.aql", "releases/commons/2.4.1/promote.aql"},
	}, api.copies)
}

// TestCommercialUnscopedPattern verifies a misconfigured pattern fails the
// upload instead of producing an over-wide promotion.
func TestCommercialUnscopedPattern(t *testing.T) {
	api := newFakeS3()
	commercial, err := NewCommercial(context.Background(), "commercial-repo", memfs.New(),
		WithS3API(api),
		WithArtifactPatterns(map[string][]string{"commons": {"org/example/data/**"}}))
	require.NoError(t, err)
	ctx := context.Background()

	repo, err := commercial.CreateStagingArea(ctx, "commons", "2.4.1")
	require.NoError(t, err)
	require.NoError(t, repo.MarkStaged())

	err = commercial.Upload(ctx, repo)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnscopedPattern)
	assert.Empty(t, api.objects)
}

// TestCommercialAuthenticationFailure verifies that only credential
// rejections surface the pre-flight sentinel; a transient failure must stay
// retryable.
func TestCommercialAuthenticationFailure(t *testing.T) {
	tests := []struct {
		name    string
		headErr error
		denied  bool
	}{
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied", Message: "access denied"}, true},
		{"bad access key", &smithy.GenericAPIError{Code: "InvalidAccessKeyId", Message: "unknown key"}, true},
		{"transient failure", errors.New("dial tcp: connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeS3()
			api.headErr = tt.headErr
			commercial := newTestCommercial(t, api)

			err := commercial.VerifyAuthentication(context.Background())
			require.Error(t, err)
			if tt.denied {
				assert.ErrorIs(t, err, ErrAuthenticationFailed)
			} else {
				assert.NotErrorIs(t, err, ErrAuthenticationFailed)
			}
		})
	}
}
