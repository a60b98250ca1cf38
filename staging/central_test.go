package staging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// centralServer fakes the staging API and records the lifecycle calls it
// sees.
type centralServer struct {
	*httptest.Server
	token string
	calls []string
}

func newCentralServer(t *testing.T, token string) *centralServer {
	t.Helper()

	s := &centralServer{token: token}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/status", s.authorized(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	mux.HandleFunc("POST /api/v1/repositories", s.authorized(func(w http.ResponseWriter, r *http.Request) {
		s.calls = append(s.calls, "create")
		w.WriteHeader(http.StatusCreated)
		require.NoError(t, json.NewEncoder(w).Encode(map[string]string{"repositoryId": "central-4711"}))
	}))
	mux.HandleFunc("PUT /api/v1/repositories/{id}/bundle", s.authorized(func(w http.ResponseWriter, r *http.Request) {
		s.calls = append(s.calls, "bundle "+r.PathValue("id"))
		w.WriteHeader(http.StatusCreated)
	}))
	mux.HandleFunc("POST /api/v1/repositories/{id}/close", s.authorized(func(w http.ResponseWriter, r *http.Request) {
		s.calls = append(s.calls, "close "+r.PathValue("id"))
		w.WriteHeader(http.StatusOK)
	}))
	mux.HandleFunc("POST /api/v1/repositories/{id}/promote", s.authorized(func(w http.ResponseWriter, r *http.Request) {
		s.calls = append(s.calls, "promote "+r.PathValue("id"))
		w.WriteHeader(http.StatusOK)
	}))

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *centralServer) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// confirmAll approves every promotion prompt.
var confirmAll = ConfirmerFunc(func(string) (bool, error) { return true, nil })

// TestCentralLifecycle verifies the full two-phase publication flow.
func TestCentralLifecycle(t *testing.T) {
	server := newCentralServer(t, "secret")
	central := NewCentral(server.URL, memfs.New(), confirmAll, WithCentralToken("secret"))
	ctx := context.Background()

	require.NoError(t, central.VerifyAuthentication(ctx))

	repo, err := central.CreateStagingArea(ctx, "commons", "2.4.1")
	require.NoError(t, err)
	assert.Equal(t, "central-4711", repo.RemoteID())

	staged, err := repo.FS()
	require.NoError(t, err)
	require.NoError(t, util.WriteFile(staged, "org/example/commons-2.4.1.jar", []byte("jar"), 0o644))
	require.NoError(t, repo.MarkStaged())

	require.NoError(t, central.Upload(ctx, repo))
	require.NoError(t, central.Close(ctx, repo))
	require.NoError(t, central.Promote(ctx, repo))
	assert.Equal(t, Promoted, repo.State())

	assert.Equal(t, []string{
		"create",
		"bundle central-4711",
		"close central-4711",
		"promote central-4711",
	}, server.calls)
}

// TestCentralPromotionDeclined verifies a declined confirmation stops the
// release without touching the remote repository.
func TestCentralPromotionDeclined(t *testing.T) {
	server := newCentralServer(t, "secret")
	decline := ConfirmerFunc(func(string) (bool, error) { return false, nil })
	central := NewCentral(server.URL, memfs.New(), decline, WithCentralToken("secret"))
	ctx := context.Background()

	repo, err := central.CreateStagingArea(ctx, "commons", "2.4.1")
	require.NoError(t, err)
	require.NoError(t, repo.MarkStaged())
	require.NoError(t, central.Upload(ctx, repo))
	require.NoError(t, central.Close(ctx, repo))

	err = central.Promote(ctx, repo)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPromotionDeclined)

	// Still closed, so a later run can promote after all.
	assert.Equal(t, Closed, repo.State())
	assert.NotContains(t, fmt.Sprint(server.calls), "promote")
}

// TestCentralAuthenticationFailure verifies the pre-flight sentinel.
func TestCentralAuthenticationFailure(t *testing.T) {
	server := newCentralServer(t, "secret")
	central := NewCentral(server.URL, memfs.New(), confirmAll, WithCentralToken("wrong"))

	err := central.VerifyAuthentication(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

// TestCentralUploadRequiresStaged verifies no remote call happens for a
// repository whose artifacts were never staged.
func TestCentralUploadRequiresStaged(t *testing.T) {
	server := newCentralServer(t, "secret")
	central := NewCentral(server.URL, memfs.New(), confirmAll, WithCentralToken("secret"))
	ctx := context.Background()

	repo, err := central.CreateStagingArea(ctx, "commons", "2.4.1")
	require.NoError(t, err)

	err = central.Upload(ctx, repo)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStateConflict)
	assert.Equal(t, []string{"create"}, server.calls)
}
