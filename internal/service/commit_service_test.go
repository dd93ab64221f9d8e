package service_test

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/nsvirk/gitcoderapi/internal/apperror"
	"github.com/nsvirk/gitcoderapi/internal/models"
	"github.com/nsvirk/gitcoderapi/internal/repository"
	"github.com/nsvirk/gitcoderapi/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func commitRequest(files ...models.FileChange) models.CommitRequest {
	return models.CommitRequest{Owner: "alice", Repo: "demo", Message: "batch", Files: files}
}

func countRequests(requests []string, want string) int {
	n := 0
	for _, r := range requests {
		if r == want {
			n++
		}
	}
	return n
}

func TestCommitService_CreateThenUpdate(t *testing.T) {
	f := newFixture(t)
	commits := service.NewCommitService(f.github, nil)

	result, err := commits.Commit(context.Background(), f.session, commitRequest(
		models.FileChange{Path: "a.txt", Operation: models.OperationCreate, Content: strPtr("first")},
		models.FileChange{Path: "a.txt", Operation: models.OperationUpdate, Content: strPtr("second")},
	))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.BatchID)
	assert.Nil(t, result.Failed)
	require.Len(t, result.Results, 2)

	stored, ok := f.srv.File("alice", "demo", "main", "a.txt")
	require.True(t, ok)
	assert.Equal(t, "second", stored.Content)
	assert.Equal(t, stored.SHA, result.Results[1].SHA)
	assert.NotEqual(t, result.Results[0].SHA, result.Results[1].SHA)
	assert.NotEmpty(t, result.Results[1].CommitSHA)
}

func TestCommitService_EmptyContent(t *testing.T) {
	f := newFixture(t)
	commits := service.NewCommitService(f.github, nil)
	f.srv.PutFile("alice", "demo", "main", "full.txt", "data")
	full, _ := f.srv.File("alice", "demo", "main", "full.txt")

	result, err := commits.Commit(context.Background(), f.session, commitRequest(
		models.FileChange{Path: "empty.txt", Operation: models.OperationCreate, Content: strPtr("")},
		models.FileChange{Path: "full.txt", Operation: models.OperationUpdate, Content: strPtr(""), SHA: full.SHA},
	))
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, result.Results, 2)

	empty, ok := f.srv.File("alice", "demo", "main", "empty.txt")
	require.True(t, ok)
	assert.Equal(t, "", empty.Content)
	full, _ = f.srv.File("alice", "demo", "main", "full.txt")
	assert.Equal(t, "", full.Content)
}

func TestCommitService_StopsAtFirstFailure(t *testing.T) {
	f := newFixture(t)
	commits := service.NewCommitService(f.github, nil)
	f.srv.PutFile("alice", "demo", "main", "b.txt", "b")
	f.srv.ResetRequests()

	result, err := commits.Commit(context.Background(), f.session, commitRequest(
		models.FileChange{Path: "b.txt", Operation: models.OperationUpdate, Content: strPtr("new"), SHA: "stale"},
		models.FileChange{Path: "c.txt", Operation: models.OperationCreate, Content: strPtr("c")},
	))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Empty(t, result.Results)
	require.NotNil(t, result.Failed)
	assert.Equal(t, 0, result.Failed.Index)
	assert.Equal(t, "b.txt", result.Failed.Path)
	assert.Equal(t, http.StatusConflict, result.Failed.Status)

	requests := f.srv.Requests()
	assert.Equal(t, 1, countRequests(requests, "PUT /repos/alice/demo/contents/b.txt"))
	assert.Zero(t, countRequests(requests, "PUT /repos/alice/demo/contents/c.txt"))
	_, exists := f.srv.File("alice", "demo", "main", "c.txt")
	assert.False(t, exists)
}

func TestCommitService_PartialResultsAreKept(t *testing.T) {
	f := newFixture(t)
	commits := service.NewCommitService(f.github, nil)

	result, err := commits.Commit(context.Background(), f.session, commitRequest(
		models.FileChange{Path: "one.txt", Operation: models.OperationCreate, Content: strPtr("1")},
		models.FileChange{Path: "gone.txt", Operation: models.OperationDelete, SHA: "missing"},
		models.FileChange{Path: "three.txt", Operation: models.OperationCreate, Content: strPtr("3")},
	))
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "one.txt", result.Results[0].Path)
	require.NotNil(t, result.Failed)
	assert.Equal(t, 1, result.Failed.Index)
	assert.Equal(t, http.StatusNotFound, result.Failed.Status)

	// no rollback of what was applied
	_, exists := f.srv.File("alice", "demo", "main", "one.txt")
	assert.True(t, exists)
	_, exists = f.srv.File("alice", "demo", "main", "three.txt")
	assert.False(t, exists)
}

func TestCommitService_DeleteThenUpdate(t *testing.T) {
	f := newFixture(t)
	commits := service.NewCommitService(f.github, nil)
	sha := f.srv.PutFile("alice", "demo", "main", "d.txt", "d")
	f.srv.ResetRequests()

	result, err := commits.Commit(context.Background(), f.session, commitRequest(
		models.FileChange{Path: "d.txt", Operation: models.OperationDelete, SHA: sha},
		models.FileChange{Path: "d.txt", Operation: models.OperationUpdate, Content: strPtr("again"), SHA: sha},
	))
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Results, 1)
	require.NotNil(t, result.Failed)
	assert.Equal(t, http.StatusConflict, result.Failed.Status)
	assert.Len(t, f.srv.Requests(), 1)
}

func TestCommitService_Validation(t *testing.T) {
	f := newFixture(t)
	commits := service.NewCommitService(f.github, nil)

	cases := map[string]models.CommitRequest{
		"no message": {Owner: "alice", Repo: "demo", Files: []models.FileChange{
			{Path: "a", Operation: models.OperationCreate, Content: strPtr("a")},
		}},
		"no files": commitRequest(),
		"bad operation": commitRequest(
			models.FileChange{Path: "a", Operation: "rename", Content: strPtr("a")},
		),
		"missing content": commitRequest(
			models.FileChange{Path: "a", Operation: models.OperationCreate},
		),
		"missing path": commitRequest(
			models.FileChange{Operation: models.OperationCreate, Content: strPtr("a")},
		),
		"late op without sha": commitRequest(
			models.FileChange{Path: "a", Operation: models.OperationCreate, Content: strPtr("a")},
			models.FileChange{Path: "b", Operation: models.OperationUpdate, Content: strPtr("b")},
		),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			f.srv.ResetRequests()
			_, err := commits.Commit(context.Background(), f.session, req)
			requireKind(t, err, apperror.KindValidation, http.StatusBadRequest)
			assert.Empty(t, f.srv.Requests())
		})
	}
}

func TestCommitService_Audit(t *testing.T) {
	f := newFixture(t)
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "audit.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))
	audits := repository.NewCommitAuditRepository(db)

	commits := service.NewCommitService(f.github, audits)
	git := service.NewGitService(f.github, audits)
	ctx := context.Background()

	ok, err := commits.Commit(ctx, f.session, commitRequest(
		models.FileChange{Path: "a.txt", Operation: models.OperationCreate, Content: strPtr("a")},
	))
	require.NoError(t, err)
	failed, err := commits.Commit(ctx, f.session, commitRequest(
		models.FileChange{Path: "a.txt", Operation: models.OperationUpdate, Content: strPtr("b"), SHA: "stale"},
	))
	require.NoError(t, err)

	assert.True(t, git.AuditEnabled())
	records, err := git.Audits(ctx, f.session, f.ref)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, failed.BatchID, records[0].BatchID)
	assert.False(t, records[0].Success)
	assert.NotEmpty(t, records[0].Failure)
	assert.Equal(t, ok.BatchID, records[1].BatchID)
	assert.True(t, records[1].Success)
	assert.Equal(t, 1, records[1].Completed)
}
