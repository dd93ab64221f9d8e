package service_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/nsvirk/gitcoderapi/internal/apperror"
	"github.com/nsvirk/gitcoderapi/internal/gitapi"
	"github.com/nsvirk/gitcoderapi/internal/gitapi/gitapitest"
	"github.com/nsvirk/gitcoderapi/internal/models"
	"github.com/nsvirk/gitcoderapi/internal/repository"
	"github.com/nsvirk/gitcoderapi/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const token = "tok-alice"

type fixture struct {
	srv      *gitapitest.Server
	github   *gitapi.Factory
	sessions *service.SessionService
	session  *models.Session
	ref      service.RepoRef
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := gitapitest.NewServer(t)
	srv.AddUser(token, models.UserProfile{ID: 1, Login: "alice", Name: "Alice"})
	srv.AddRepo("alice", "demo", false, "main")

	github := gitapi.NewFactory(gitapi.Options{BaseURL: srv.URL, Timeout: 5 * time.Second})
	sessions := service.NewSessionService(repository.NewMemorySessionStore(time.Hour, nil), github)
	session, err := sessions.Login(context.Background(), token)
	require.NoError(t, err)

	return &fixture{
		srv:      srv,
		github:   github,
		sessions: sessions,
		session:  session,
		ref:      service.RepoRef{Owner: "alice", Repo: "demo"},
	}
}

func requireKind(t *testing.T, err error, kind apperror.Kind, status int) {
	t.Helper()
	require.Error(t, err)
	appErr := apperror.From(err)
	assert.Equal(t, kind, appErr.Kind)
	assert.Equal(t, status, appErr.HTTPStatus())
}

func strPtr(s string) *string { return &s }

func TestSessionService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("login returns user without token", func(t *testing.T) {
		assert.Equal(t, "alice", f.session.User.Login)
		assert.NotEmpty(t, f.session.ID)
	})

	t.Run("resolve", func(t *testing.T) {
		got, err := f.sessions.Resolve(ctx, f.session.ID)
		require.NoError(t, err)
		assert.Equal(t, token, got.AccessToken)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := f.sessions.Login(ctx, "")
		requireKind(t, err, apperror.KindValidation, http.StatusBadRequest)
	})

	t.Run("bad credentials", func(t *testing.T) {
		_, err := f.sessions.Login(ctx, "wrong")
		requireKind(t, err, apperror.KindUpstream, http.StatusUnauthorized)
		assert.Equal(t, "Bad credentials", apperror.From(err).Details)
	})

	t.Run("rate limited", func(t *testing.T) {
		_, err := f.sessions.Login(ctx, gitapitest.RateLimitedToken)
		requireKind(t, err, apperror.KindUpstream, http.StatusTooManyRequests)
	})

	t.Run("unknown and missing session", func(t *testing.T) {
		_, err := f.sessions.Resolve(ctx, "nope")
		requireKind(t, err, apperror.KindSessionInvalid, http.StatusUnauthorized)
		_, err = f.sessions.Resolve(ctx, "")
		requireKind(t, err, apperror.KindSessionInvalid, http.StatusUnauthorized)
	})

	t.Run("logout is idempotent", func(t *testing.T) {
		s, err := f.sessions.Login(ctx, token)
		require.NoError(t, err)

		deleted, err := f.sessions.Logout(ctx, s.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = f.sessions.Logout(ctx, s.ID)
		require.NoError(t, err)
		assert.False(t, deleted)

		_, err = f.sessions.Resolve(ctx, s.ID)
		requireKind(t, err, apperror.KindSessionInvalid, http.StatusUnauthorized)
	})
}

func TestRepoService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.srv.AddRepo("alice", "secret", true, "main")
	f.srv.AddRepo("alice", "tools", false, "main")
	repos := service.NewRepoService(f.github)

	t.Run("all views", func(t *testing.T) {
		views, err := repos.ListAll(ctx, f.session)
		require.NoError(t, err)
		assert.Len(t, views.Public, 2)
		assert.Len(t, views.Private, 1)
		assert.Equal(t, len(views.Public)+len(views.Private), len(views.All))
	})

	t.Run("private only", func(t *testing.T) {
		list, err := repos.List(ctx, f.session, "private")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.True(t, list[0].Private)
	})

	t.Run("invalid type", func(t *testing.T) {
		_, err := repos.List(ctx, f.session, "forks")
		requireKind(t, err, apperror.KindValidation, http.StatusBadRequest)
	})

	t.Run("create initializes by default", func(t *testing.T) {
		repo, err := repos.Create(ctx, f.session, service.CreateRepoInput{Name: "fresh"})
		require.NoError(t, err)
		assert.Equal(t, "alice/fresh", repo.FullName)
		_, ok := f.srv.File("alice", "fresh", "main", "README.md")
		assert.True(t, ok)
	})

	t.Run("create without init", func(t *testing.T) {
		no := false
		_, err := repos.Create(ctx, f.session, service.CreateRepoInput{Name: "bare", AutoInit: &no})
		require.NoError(t, err)
		_, ok := f.srv.File("alice", "bare", "main", "README.md")
		assert.False(t, ok)
	})

	t.Run("create requires name", func(t *testing.T) {
		_, err := repos.Create(ctx, f.session, service.CreateRepoInput{Name: "  "})
		requireKind(t, err, apperror.KindValidation, http.StatusBadRequest)
	})
}

func TestFileService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	files := service.NewFileService(f.github)
	sha := f.srv.PutFile("alice", "demo", "main", "src/main.go", "package main\n")

	t.Run("update then read is byte identical", func(t *testing.T) {
		content := "package main\n\n// ünïcödé ✓\nfunc main() {}\n"
		_, err := files.UpdateFile(ctx, f.session, f.ref, service.FileWrite{
			Path: "src/main.go", Content: content, Message: "edit", SHA: sha,
		})
		require.NoError(t, err)

		file, err := files.ReadFile(ctx, f.session, f.ref, "src/main.go", "")
		require.NoError(t, err)
		assert.Equal(t, content, file.DecodedContent)
	})

	t.Run("stale sha is a conflict and nothing is written", func(t *testing.T) {
		before, _ := f.srv.File("alice", "demo", "main", "src/main.go")
		_, err := files.UpdateFile(ctx, f.session, f.ref, service.FileWrite{
			Path: "src/main.go", Content: "overwrite", Message: "edit", SHA: sha,
		})
		requireKind(t, err, apperror.KindUpstream, http.StatusConflict)
		after, _ := f.srv.File("alice", "demo", "main", "src/main.go")
		assert.Equal(t, before, after)
	})

	t.Run("validation happens before any upstream call", func(t *testing.T) {
		f.srv.ResetRequests()
		_, err := files.CreateFile(ctx, f.session, f.ref, service.FileWrite{Path: "x.txt", Content: "x"})
		requireKind(t, err, apperror.KindValidation, http.StatusBadRequest)
		_, err = files.CreateFile(ctx, f.session, f.ref, service.FileWrite{Content: "x", Message: "m"})
		requireKind(t, err, apperror.KindValidation, http.StatusBadRequest)
		_, err = files.DeleteFile(ctx, f.session, f.ref, service.FileWrite{Path: "x.txt", Message: "m"})
		requireKind(t, err, apperror.KindValidation, http.StatusBadRequest)
		_, err = files.ListContents(ctx, f.session, service.RepoRef{Owner: "alice"}, "", "")
		requireKind(t, err, apperror.KindValidation, http.StatusBadRequest)
		assert.Empty(t, f.srv.Requests())
	})

	t.Run("reading a directory", func(t *testing.T) {
		_, err := files.ReadFile(ctx, f.session, f.ref, "src", "")
		requireKind(t, err, apperror.KindValidation, http.StatusBadRequest)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := files.ReadFile(ctx, f.session, f.ref, "nope.go", "")
		requireKind(t, err, apperror.KindUpstream, http.StatusNotFound)
	})

	t.Run("create list delete", func(t *testing.T) {
		created, err := files.CreateFile(ctx, f.session, f.ref, service.FileWrite{Path: "notes.md", Content: "hi", Message: "add"})
		require.NoError(t, err)

		entries, err := files.ListContents(ctx, f.session, f.ref, "", "")
		require.NoError(t, err)
		assert.Len(t, entries, 2)

		_, err = files.DeleteFile(ctx, f.session, f.ref, service.FileWrite{Path: "notes.md", Message: "rm", SHA: created.Content.SHA})
		require.NoError(t, err)
		_, ok := f.srv.File("alice", "demo", "main", "notes.md")
		assert.False(t, ok)
	})

	t.Run("empty files", func(t *testing.T) {
		_, err := files.CreateFile(ctx, f.session, f.ref, service.FileWrite{Path: "empty.txt", Content: "", Message: "add empty"})
		require.NoError(t, err)
		file, err := files.ReadFile(ctx, f.session, f.ref, "empty.txt", "")
		require.NoError(t, err)
		assert.Equal(t, "", file.DecodedContent)

		created, err := files.CreateFile(ctx, f.session, f.ref, service.FileWrite{Path: "trunc.txt", Content: "data", Message: "add"})
		require.NoError(t, err)
		_, err = files.UpdateFile(ctx, f.session, f.ref, service.FileWrite{
			Path: "trunc.txt", Content: "", Message: "truncate", SHA: created.Content.SHA,
		})
		require.NoError(t, err)
		file, err = files.ReadFile(ctx, f.session, f.ref, "trunc.txt", "")
		require.NoError(t, err)
		assert.Equal(t, "", file.DecodedContent)
	})

	t.Run("search", func(t *testing.T) {
		result, err := files.Search(ctx, f.session, f.ref, "func main")
		require.NoError(t, err)
		assert.Equal(t, 1, result.TotalCount)

		_, err = files.Search(ctx, f.session, f.ref, "")
		requireKind(t, err, apperror.KindValidation, http.StatusBadRequest)
	})
}

func TestBranchService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.srv.AddRepo("alice", "legacy", false, "trunk")
	f.srv.PutFile("alice", "legacy", "trunk", "a.txt", "a")
	branches := service.NewBranchService(f.github)
	legacy := service.RepoRef{Owner: "alice", Repo: "legacy"}

	t.Run("default source is the repository default branch", func(t *testing.T) {
		head := f.srv.BranchHead("alice", "legacy", "trunk")
		ref, err := branches.Create(ctx, f.session, legacy, "feature-x", "")
		require.NoError(t, err)
		assert.Equal(t, head, ref.Object.SHA)
		assert.Equal(t, head, f.srv.BranchHead("alice", "legacy", "feature-x"))
	})

	t.Run("explicit source", func(t *testing.T) {
		_, err := branches.Create(ctx, f.session, legacy, "feature-y", "feature-x")
		require.NoError(t, err)
	})

	t.Run("list and switch", func(t *testing.T) {
		list, err := branches.List(ctx, f.session, legacy)
		require.NoError(t, err)
		assert.Len(t, list, 3)

		b, err := branches.Switch(ctx, f.session, legacy, "feature-x")
		require.NoError(t, err)
		assert.Equal(t, "feature-x", b.Name)

		_, err = branches.Switch(ctx, f.session, legacy, "missing")
		requireKind(t, err, apperror.KindUpstream, http.StatusNotFound)
	})

	t.Run("name required", func(t *testing.T) {
		_, err := branches.Create(ctx, f.session, legacy, "", "")
		requireKind(t, err, apperror.KindValidation, http.StatusBadRequest)
	})
}

func TestGitService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	git := service.NewGitService(f.github, nil)
	branches := service.NewBranchService(f.github)

	_, err := branches.Create(ctx, f.session, f.ref, "dev", "")
	require.NoError(t, err)
	f.srv.PutFile("alice", "demo", "dev", "a.txt", "a")
	f.srv.PutFile("alice", "demo", "dev", "b.txt", "b")
	f.srv.PutFile("alice", "demo", "main", "c.txt", "c")

	t.Run("status on default branch", func(t *testing.T) {
		status, err := git.Status(ctx, f.session, f.ref, "")
		require.NoError(t, err)
		assert.Equal(t, "main", status.CurrentBranch)
		assert.Equal(t, "main", status.DefaultBranch)
		assert.Zero(t, status.Ahead)
		assert.Zero(t, status.Behind)
		assert.False(t, status.HasChanges)
		require.NotNil(t, status.LastCommit)
		assert.Equal(t, "seed c.txt", status.LastCommit.Commit.Message)
	})

	t.Run("status on feature branch", func(t *testing.T) {
		status, err := git.Status(ctx, f.session, f.ref, "dev")
		require.NoError(t, err)
		assert.Equal(t, 2, status.Ahead)
		assert.Equal(t, 1, status.Behind)
		assert.True(t, status.HasChanges)
		assert.Equal(t, "seed b.txt", status.LastCommit.Commit.Message)
	})

	t.Run("history by path", func(t *testing.T) {
		commits, err := git.History(ctx, f.session, f.ref, "dev", "a.txt")
		require.NoError(t, err)
		require.Len(t, commits, 1)
	})

	t.Run("pull requests", func(t *testing.T) {
		_, err := git.CreatePullRequest(ctx, f.session, f.ref, models.PullRequestRef{Title: "T", Head: "dev"})
		requireKind(t, err, apperror.KindValidation, http.StatusBadRequest)

		pr, err := git.CreatePullRequest(ctx, f.session, f.ref, models.PullRequestRef{Title: "T", Head: "dev", Base: "main"})
		require.NoError(t, err)
		assert.Equal(t, "dev", pr.Head.Ref)

		pulls, err := git.ListPullRequests(ctx, f.session, f.ref, "")
		require.NoError(t, err)
		assert.Len(t, pulls, 1)

		_, err = git.ListPullRequests(ctx, f.session, f.ref, "merged")
		requireKind(t, err, apperror.KindValidation, http.StatusBadRequest)
	})

	t.Run("audit disabled", func(t *testing.T) {
		assert.False(t, git.AuditEnabled())
		audits, err := git.Audits(ctx, f.session, f.ref)
		require.NoError(t, err)
		assert.Empty(t, audits)
	})
}

func TestGitService_UpstreamTimeout(t *testing.T) {
	f := newFixture(t)
	f.srv.SetDelay(300 * time.Millisecond)
	slow := gitapi.NewFactory(gitapi.Options{BaseURL: f.srv.URL, Timeout: 50 * time.Millisecond})
	git := service.NewGitService(slow, nil)

	_, err := git.History(context.Background(), f.session, f.ref, "", "")
	requireKind(t, err, apperror.KindUpstream, http.StatusGatewayTimeout)
}
