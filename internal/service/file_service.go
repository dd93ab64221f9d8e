package service

import (
	"context"
	"strings"

	"github.com/nsvirk/gitcoderapi/internal/apperror"
	"github.com/nsvirk/gitcoderapi/internal/gitapi"
	"github.com/nsvirk/gitcoderapi/internal/models"
)

// FileService reads and writes single files
type FileService struct {
	upstream
}

// NewFileService creates a new service for the files API
func NewFileService(github *gitapi.Factory) *FileService {
	return &FileService{upstream{github: github}}
}

// FileWrite is one create, update or delete of a file
type FileWrite struct {
	Path    string
	Content string
	Message string
	// SHA is the revision marker, required for update and delete
	SHA    string
	Branch string
}

func (w FileWrite) validate(needSHA bool) error {
	if strings.TrimSpace(w.Path) == "" {
		return apperror.Validation("Path is required")
	}
	if strings.TrimSpace(w.Message) == "" {
		return apperror.Validation("Commit message is required")
	}
	if needSHA && w.SHA == "" {
		return apperror.Validation("File SHA is required")
	}
	return nil
}

// ListContents lists a directory, the repository root when path is empty
func (s *FileService) ListContents(ctx context.Context, session *models.Session, ref RepoRef, path, branch string) ([]models.ContentEntry, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	entries, err := s.client(session).ListContents(ctx, ref.Owner, ref.Repo, path, branch)
	if err != nil {
		return nil, upstreamError("Failed to fetch contents", err)
	}
	return entries, nil
}

// ReadFile returns a file with its decoded text
func (s *FileService) ReadFile(ctx context.Context, session *models.Session, ref RepoRef, path, branch string) (*models.FileContent, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(path) == "" {
		return nil, apperror.Validation("Path is required")
	}
	file, err := s.client(session).GetFile(ctx, ref.Owner, ref.Repo, path, branch)
	if err != nil {
		return nil, upstreamError("Failed to fetch file", err)
	}
	return file, nil
}

// CreateFile creates a new file
func (s *FileService) CreateFile(ctx context.Context, session *models.Session, ref RepoRef, w FileWrite) (*models.ContentWriteResult, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	if err := w.validate(false); err != nil {
		return nil, err
	}
	result, err := s.client(session).CreateFile(ctx, ref.Owner, ref.Repo, w.Path, w.Content, w.Message, w.Branch)
	if err != nil {
		return nil, upstreamError("Failed to create file", err)
	}
	return result, nil
}

// UpdateFile overwrites a file guarded by its revision marker
func (s *FileService) UpdateFile(ctx context.Context, session *models.Session, ref RepoRef, w FileWrite) (*models.ContentWriteResult, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	if err := w.validate(true); err != nil {
		return nil, err
	}
	result, err := s.client(session).UpdateFile(ctx, ref.Owner, ref.Repo, w.Path, w.Content, w.Message, w.SHA, w.Branch)
	if err != nil {
		return nil, upstreamError("Failed to update file", err)
	}
	return result, nil
}

// DeleteFile removes a file guarded by its revision marker
func (s *FileService) DeleteFile(ctx context.Context, session *models.Session, ref RepoRef, w FileWrite) (*models.ContentWriteResult, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	if err := w.validate(true); err != nil {
		return nil, err
	}
	result, err := s.client(session).DeleteFile(ctx, ref.Owner, ref.Repo, w.Path, w.Message, w.SHA, w.Branch)
	if err != nil {
		return nil, upstreamError("Failed to delete file", err)
	}
	return result, nil
}

// Search searches code inside one repository
func (s *FileService) Search(ctx context.Context, session *models.Session, ref RepoRef, query string) (*models.SearchResult, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, apperror.Validation("Search query is required")
	}
	result, err := s.client(session).SearchCode(ctx, ref.Owner, ref.Repo, query)
	if err != nil {
		return nil, upstreamError("Failed to search code", err)
	}
	return result, nil
}
