package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/nsvirk/gitcoderapi/internal/apperror"
	"github.com/nsvirk/gitcoderapi/internal/gitapi"
	"github.com/nsvirk/gitcoderapi/internal/models"
	"github.com/nsvirk/gitcoderapi/internal/repository"
	"github.com/nsvirk/gitcoderapi/pkg/utils/zaplogger"
	"gorm.io/datatypes"
)

// CommitService applies a batch of file operations as one logical commit.
//
// Operations run strictly in order. The first failure stops the batch and
// nothing already applied is rolled back.
type CommitService struct {
	upstream
	audits *repository.CommitAuditRepository
}

// NewCommitService creates a new commit orchestrator; audits may be nil
func NewCommitService(github *gitapi.Factory, audits *repository.CommitAuditRepository) *CommitService {
	return &CommitService{upstream: upstream{github: github}, audits: audits}
}

// validateBatch checks every operation before anything is sent upstream
func validateBatch(req models.CommitRequest) error {
	if err := (RepoRef{Owner: req.Owner, Repo: req.Repo}).validate(); err != nil {
		return err
	}
	if strings.TrimSpace(req.Message) == "" {
		return apperror.Validation("Commit message is required")
	}
	if len(req.Files) == 0 {
		return apperror.Validation("At least one file is required")
	}

	touched := map[string]bool{}
	for i, f := range req.Files {
		if strings.TrimSpace(f.Path) == "" {
			return apperror.Validation("files[%d]: path is required", i)
		}
		if !f.Operation.Valid() {
			return apperror.Validation("files[%d]: invalid operation %q", i, f.Operation)
		}
		if f.Operation != models.OperationDelete && f.Content == nil {
			return apperror.Validation("files[%d]: content is required for %s", i, f.Operation)
		}
		if f.Operation != models.OperationCreate && f.SHA == "" && !touched[f.Path] {
			return apperror.Validation("files[%d]: sha is required for %s", i, f.Operation)
		}
		touched[f.Path] = true
	}
	return nil
}

// Commit runs the batch; a partial failure is reported in the result, not as an error
func (s *CommitService) Commit(ctx context.Context, session *models.Session, req models.CommitRequest) (*models.CommitResult, error) {
	if err := validateBatch(req); err != nil {
		return nil, err
	}

	client := s.client(session)
	result := &models.CommitResult{
		BatchID: uuid.NewString(),
		Results: []models.CommitFileResult{},
	}
	// revision markers produced inside this batch win over the client supplied ones
	shas := map[string]string{}
	deleted := map[string]bool{}

	for i, f := range req.Files {
		sha := f.SHA
		if tracked, ok := shas[f.Path]; ok {
			sha = tracked
		}

		var (
			res *models.ContentWriteResult
			err error
		)
		switch {
		case f.Operation != models.OperationCreate && deleted[f.Path]:
			result.Failed = &models.CommitFailure{
				Index:     i,
				Path:      f.Path,
				Operation: f.Operation,
				Error:     fmt.Sprintf("Failed to %s %s", f.Operation, f.Path),
				Details:   "file was deleted earlier in this commit",
				Status:    http.StatusConflict,
			}
		case f.Operation == models.OperationCreate:
			res, err = client.CreateFile(ctx, req.Owner, req.Repo, f.Path, *f.Content, req.Message, req.Branch)
		case f.Operation == models.OperationUpdate:
			res, err = client.UpdateFile(ctx, req.Owner, req.Repo, f.Path, *f.Content, req.Message, sha, req.Branch)
		case f.Operation == models.OperationDelete:
			res, err = client.DeleteFile(ctx, req.Owner, req.Repo, f.Path, req.Message, sha, req.Branch)
		}

		if err != nil {
			result.Failed = failureFor(i, f, err)
		}
		if result.Failed != nil {
			break
		}

		fileResult := models.CommitFileResult{
			Index:     i,
			Path:      f.Path,
			Operation: f.Operation,
			Success:   true,
			CommitSHA: res.Commit.SHA,
		}
		if f.Operation == models.OperationDelete {
			delete(shas, f.Path)
			deleted[f.Path] = true
		} else if res.Content != nil {
			fileResult.SHA = res.Content.SHA
			shas[f.Path] = res.Content.SHA
			deleted[f.Path] = false
		}
		result.Results = append(result.Results, fileResult)
	}

	result.Success = result.Failed == nil
	fields := zaplogger.Fields{
		"batch":     result.BatchID,
		"session":   models.ShortID(session.ID),
		"repo":      req.Owner + "/" + req.Repo,
		"files":     len(req.Files),
		"completed": len(result.Results),
	}
	if result.Success {
		zaplogger.Info("commit batch applied", fields)
	} else {
		fields["failed_index"] = result.Failed.Index
		fields["error"] = result.Failed.Details
		zaplogger.Warn("commit batch stopped", fields)
	}

	s.audit(ctx, session, req, result)
	return result, nil
}

func failureFor(index int, f models.FileChange, err error) *models.CommitFailure {
	failure := &models.CommitFailure{
		Index:     index,
		Path:      f.Path,
		Operation: f.Operation,
		Error:     fmt.Sprintf("Failed to %s %s", f.Operation, f.Path),
		Details:   err.Error(),
		Status:    http.StatusInternalServerError,
	}
	if apiErr, ok := gitapi.AsAPIError(err); ok {
		failure.Details = apiErr.Message
		failure.Status = apiErr.HTTPStatus()
	}
	return failure
}

// audit records the batch when a database is configured; failures are only logged
func (s *CommitService) audit(ctx context.Context, session *models.Session, req models.CommitRequest, result *models.CommitResult) {
	if s.audits == nil {
		return
	}

	results, err := json.Marshal(result.Results)
	if err != nil {
		zaplogger.Error("failed to encode commit audit", zaplogger.Fields{"batch": result.BatchID, "error": err.Error()})
		return
	}
	record := &models.CommitAuditModel{
		BatchID:   result.BatchID,
		UserLogin: session.User.Login,
		Owner:     req.Owner,
		Repo:      req.Repo,
		Branch:    req.Branch,
		Message:   req.Message,
		FileCount: len(req.Files),
		Completed: len(result.Results),
		Success:   result.Success,
		Results:   datatypes.JSON(results),
	}
	if result.Failed != nil {
		record.Failure = result.Failed.Error + ": " + result.Failed.Details
	}

	// the request may already be finished, the record should still be written
	if err := s.audits.Insert(context.WithoutCancel(ctx), record); err != nil {
		zaplogger.Error("failed to write commit audit", zaplogger.Fields{"batch": result.BatchID, "error": err.Error()})
	}
}
