package gitapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nsvirk/gitcoderapi/internal/gitapi"
	"github.com/nsvirk/gitcoderapi/internal/gitapi/gitapitest"
	"github.com/nsvirk/gitcoderapi/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const token = "tok-alice"

func newFixture(t *testing.T) (*gitapitest.Server, *gitapi.Client) {
	t.Helper()
	srv := gitapitest.NewServer(t)
	srv.AddUser(token, models.UserProfile{ID: 7, Login: "alice", Name: "Alice"})
	srv.AddRepo("alice", "demo", false, "main")
	return srv, gitapi.New(token, gitapi.Options{BaseURL: srv.URL, UserAgent: "test", Timeout: 5 * time.Second})
}

func TestContentEncoding(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		for _, s := range []string{"", "hello", "line1\nline2\n", "ünïcödé ✓"} {
			decoded, err := gitapi.DecodeContent(gitapi.EncodeContent(s))
			require.NoError(t, err)
			assert.Equal(t, s, decoded)
		}
	})

	t.Run("strips line wrapping", func(t *testing.T) {
		decoded, err := gitapi.DecodeContent("aGVs\nbG8g\r\nd29y\nbGQ=\n")
		require.NoError(t, err)
		assert.Equal(t, "hello world", decoded)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := gitapi.DecodeContent("%%%")
		require.Error(t, err)
	})
}

func TestClient_GetUser(t *testing.T) {
	_, c := newFixture(t)

	user, err := c.GetUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Login)
	assert.Equal(t, int64(7), user.ID)

	bad := gitapi.New("nope", gitapi.Options{BaseURL: c.BaseURL()})
	_, err = bad.GetUser(context.Background())
	apiErr, ok := gitapi.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, gitapi.KindUnauthorized, apiErr.Kind)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestClient_Headers(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"login":"alice","id":1}`))
	}))
	defer srv.Close()

	c := gitapi.New("secret-token", gitapi.Options{BaseURL: srv.URL + "/", UserAgent: "Git-Coder/test"})
	_, err := c.GetUser(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret-token", got.Get("Authorization"))
	assert.Equal(t, "Git-Coder/test", got.Get("User-Agent"))
	assert.Equal(t, "application/vnd.github+json", got.Get("Accept"))
}

func TestClient_Contents(t *testing.T) {
	srv, c := newFixture(t)
	ctx := context.Background()
	sha := srv.PutFile("alice", "demo", "main", "src/app.js", "console.log('hi')\n")
	srv.PutFile("alice", "demo", "main", "README.md", "# demo\n")

	t.Run("root listing", func(t *testing.T) {
		entries, err := c.ListContents(ctx, "alice", "demo", "", "")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "README.md", entries[0].Path)
		assert.Equal(t, "dir", entries[1].Type)
	})

	t.Run("file listing becomes single entry", func(t *testing.T) {
		entries, err := c.ListContents(ctx, "alice", "demo", "src/app.js", "")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, sha, entries[0].SHA)
	})

	t.Run("file is decoded", func(t *testing.T) {
		file, err := c.GetFile(ctx, "alice", "demo", "src/app.js", "main")
		require.NoError(t, err)
		assert.Equal(t, "console.log('hi')\n", file.DecodedContent)
		assert.Equal(t, sha, file.SHA)
	})

	t.Run("directory is not a file", func(t *testing.T) {
		_, err := c.GetFile(ctx, "alice", "demo", "src", "")
		assert.True(t, errors.Is(err, gitapi.ErrNotAFile))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := c.GetFile(ctx, "alice", "demo", "nope.txt", "")
		apiErr, ok := gitapi.AsAPIError(err)
		require.True(t, ok)
		assert.Equal(t, gitapi.KindNotFound, apiErr.Kind)
		assert.Equal(t, http.StatusNotFound, apiErr.HTTPStatus())
	})
}

func TestClient_WriteFiles(t *testing.T) {
	srv, c := newFixture(t)
	ctx := context.Background()

	created, err := c.CreateFile(ctx, "alice", "demo", "a.txt", "one", "add a", "main")
	require.NoError(t, err)
	require.NotNil(t, created.Content)
	assert.NotEmpty(t, created.Commit.SHA)

	_, err = c.UpdateFile(ctx, "alice", "demo", "a.txt", "two", "stale", "0000", "main")
	apiErr, ok := gitapi.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, gitapi.KindConflict, apiErr.Kind)
	assert.Equal(t, http.StatusConflict, apiErr.HTTPStatus())

	updated, err := c.UpdateFile(ctx, "alice", "demo", "a.txt", "two", "update a", created.Content.SHA, "main")
	require.NoError(t, err)
	stored, _ := srv.File("alice", "demo", "main", "a.txt")
	assert.Equal(t, "two", stored.Content)
	assert.Equal(t, stored.SHA, updated.Content.SHA)

	_, err = c.DeleteFile(ctx, "alice", "demo", "a.txt", "remove a", updated.Content.SHA, "main")
	require.NoError(t, err)
	_, exists := srv.File("alice", "demo", "main", "a.txt")
	assert.False(t, exists)
}

func TestClient_WriteEmptyFile(t *testing.T) {
	srv, c := newFixture(t)
	ctx := context.Background()

	created, err := c.CreateFile(ctx, "alice", "demo", "empty.txt", "", "add empty", "main")
	require.NoError(t, err)
	stored, ok := srv.File("alice", "demo", "main", "empty.txt")
	require.True(t, ok)
	assert.Equal(t, "", stored.Content)

	file, err := c.GetFile(ctx, "alice", "demo", "empty.txt", "main")
	require.NoError(t, err)
	assert.Equal(t, "", file.DecodedContent)

	_, err = c.CreateFile(ctx, "alice", "demo", "full.txt", "data", "add full", "main")
	require.NoError(t, err)
	full, _ := srv.File("alice", "demo", "main", "full.txt")
	_, err = c.UpdateFile(ctx, "alice", "demo", "full.txt", "", "truncate", full.SHA, "main")
	require.NoError(t, err)
	full, _ = srv.File("alice", "demo", "main", "full.txt")
	assert.Equal(t, "", full.Content)

	_, err = c.DeleteFile(ctx, "alice", "demo", "empty.txt", "remove empty", created.Content.SHA, "main")
	require.NoError(t, err)
}

func TestClient_WriteBodyCarriesContent(t *testing.T) {
	bodies := map[string]map[string]interface{}{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies[r.Method] = body
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":{"path":"e.txt","sha":"abc"},"commit":{"sha":"c1"}}`))
	}))
	defer srv.Close()

	c := gitapi.New(token, gitapi.Options{BaseURL: srv.URL})
	ctx := context.Background()

	_, err := c.CreateFile(ctx, "alice", "demo", "e.txt", "", "add", "")
	require.NoError(t, err)
	content, ok := bodies[http.MethodPut]["content"]
	require.True(t, ok, "content key missing from create body")
	assert.Equal(t, "", content)

	_, err = c.DeleteFile(ctx, "alice", "demo", "e.txt", "rm", "abc", "")
	require.NoError(t, err)
	_, ok = bodies[http.MethodDelete]["content"]
	assert.False(t, ok)
	assert.Equal(t, "abc", bodies[http.MethodDelete]["sha"])
}

func TestClient_CreateBranch(t *testing.T) {
	srv, c := newFixture(t)
	ctx := context.Background()
	srv.PutFile("alice", "demo", "main", "a.txt", "one")
	head := srv.BranchHead("alice", "demo", "main")

	ref, err := c.CreateBranch(ctx, "alice", "demo", "feature/x", "main")
	require.NoError(t, err)
	assert.Equal(t, "refs/heads/feature/x", ref.Ref)
	assert.Equal(t, head, ref.Object.SHA)
	assert.Equal(t, head, srv.BranchHead("alice", "demo", "feature/x"))

	_, err = c.CreateBranch(ctx, "alice", "demo", "feature/x", "main")
	apiErr, ok := gitapi.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, gitapi.KindUnprocessable, apiErr.Kind)

	_, err = c.CreateBranch(ctx, "alice", "demo", "other", "missing")
	apiErr, ok = gitapi.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, gitapi.KindNotFound, apiErr.Kind)
}

func TestClient_CommitsAndCompare(t *testing.T) {
	srv, c := newFixture(t)
	ctx := context.Background()
	_, err := c.CreateBranch(ctx, "alice", "demo", "dev", "main")
	require.NoError(t, err)
	srv.PutFile("alice", "demo", "dev", "a.txt", "one")
	srv.PutFile("alice", "demo", "dev", "b.txt", "two")

	commits, err := c.ListCommits(ctx, "alice", "demo", "dev", "", 0)
	require.NoError(t, err)
	require.Len(t, commits, 3)
	assert.Equal(t, "seed b.txt", commits[0].Commit.Message)

	filtered, err := c.ListCommits(ctx, "alice", "demo", "dev", "a.txt", 0)
	require.NoError(t, err)
	require.Len(t, filtered, 1)

	cmp, err := c.Compare(ctx, "alice", "demo", "main", "dev")
	require.NoError(t, err)
	assert.Equal(t, 2, cmp.AheadBy)
	assert.Equal(t, 0, cmp.BehindBy)
}

func TestClient_PullRequests(t *testing.T) {
	_, c := newFixture(t)
	ctx := context.Background()
	_, err := c.CreateBranch(ctx, "alice", "demo", "dev", "main")
	require.NoError(t, err)

	pr, err := c.CreatePullRequest(ctx, "alice", "demo", models.PullRequestRef{Title: "T", Head: "dev", Base: "main"})
	require.NoError(t, err)
	assert.Equal(t, 1, pr.Number)

	open, err := c.ListPullRequests(ctx, "alice", "demo", "")
	require.NoError(t, err)
	assert.Len(t, open, 1)

	closed, err := c.ListPullRequests(ctx, "alice", "demo", "closed")
	require.NoError(t, err)
	assert.Empty(t, closed)
}

func TestClient_SearchCode(t *testing.T) {
	srv, c := newFixture(t)
	srv.PutFile("alice", "demo", "main", "a.go", "func needle() {}")
	srv.PutFile("alice", "demo", "main", "b.go", "func other() {}")

	result, err := c.SearchCode(context.Background(), "alice", "demo", "needle")
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalCount)
	assert.Equal(t, "a.go", result.Items[0].Path)
}

func TestClient_ErrorClassification(t *testing.T) {
	t.Run("rate limited", func(t *testing.T) {
		srv, _ := newFixture(t)
		c := gitapi.New(gitapitest.RateLimitedToken, gitapi.Options{BaseURL: srv.URL})
		_, err := c.GetUser(context.Background())
		apiErr, ok := gitapi.AsAPIError(err)
		require.True(t, ok)
		assert.Equal(t, gitapi.KindRateLimited, apiErr.Kind)
		assert.Equal(t, http.StatusTooManyRequests, apiErr.HTTPStatus())
	})

	t.Run("timeout", func(t *testing.T) {
		srv, _ := newFixture(t)
		srv.SetDelay(500 * time.Millisecond)
		c := gitapi.New(token, gitapi.Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
		_, err := c.GetUser(context.Background())
		apiErr, ok := gitapi.AsAPIError(err)
		require.True(t, ok)
		assert.Equal(t, gitapi.KindTimeout, apiErr.Kind)
		assert.Equal(t, http.StatusGatewayTimeout, apiErr.HTTPStatus())
	})
}
