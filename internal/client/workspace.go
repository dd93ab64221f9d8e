package client

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/nsvirk/gitcoderapi/internal/models"
)

// ErrNotOpen is returned for edits to a file the workspace does not track
var ErrNotOpen = errors.New("file is not open")

// ErrNothingToCommit is returned by Commit without pending changes
var ErrNothingToCommit = errors.New("no pending changes")

// FileHandle is one file as known to the editor
type FileHandle struct {
	Path     string
	SHA      string
	Content  string
	Language string

	saved string
}

// Dirty reports whether the content differs from the last read or saved content
func (f *FileHandle) Dirty() bool {
	return f.Content != f.saved
}

// Workspace tracks the open files of one repository branch and the changes not yet committed
type Workspace struct {
	client *Client
	Owner  string
	Repo   string
	Branch string

	mu      sync.Mutex
	files   map[string]*FileHandle
	pending []models.FileChange
}

// NewWorkspace creates an empty workspace; an empty branch means the default branch
func NewWorkspace(c *Client, owner, repo, branch string) *Workspace {
	return &Workspace{
		client: c,
		Owner:  owner,
		Repo:   repo,
		Branch: branch,
		files:  make(map[string]*FileHandle),
	}
}

// Open reads a file and starts tracking it
func (w *Workspace) Open(ctx context.Context, p string) (*FileHandle, error) {
	file, err := w.client.ReadFile(ctx, w.Owner, w.Repo, p, w.Branch)
	if err != nil {
		return nil, err
	}

	h := &FileHandle{
		Path:     p,
		SHA:      file.SHA,
		Content:  file.DecodedContent,
		Language: LanguageFor(p),
		saved:    file.DecodedContent,
	}

	w.mu.Lock()
	w.files[p] = h
	w.mu.Unlock()
	return h, nil
}

// File returns a copy of the tracked handle for p
func (w *Workspace) File(p string) (FileHandle, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	h, ok := w.files[p]
	if !ok {
		return FileHandle{}, false
	}
	return *h, true
}

// Edit replaces the content of an open file and records the change
func (w *Workspace) Edit(p, content string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	h, ok := w.files[p]
	if !ok {
		return fmt.Errorf("%s: %w", p, ErrNotOpen)
	}
	h.Content = content

	if w.pendingOp(p) == models.OperationCreate {
		w.track(models.FileChange{Path: p, Operation: models.OperationCreate, Content: &content})
		return nil
	}
	if !h.Dirty() {
		w.untrack(p)
		return nil
	}
	w.track(models.FileChange{Path: p, Operation: models.OperationUpdate, Content: &content, SHA: h.SHA})
	return nil
}

// Add starts tracking a new file that will be created by the next commit
func (w *Workspace) Add(p, content string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.files[p] = &FileHandle{Path: p, Content: content, Language: LanguageFor(p)}
	w.track(models.FileChange{Path: p, Operation: models.OperationCreate, Content: &content})
}

// Remove schedules deletion of an open file. Removing a file added in this workspace just forgets it.
func (w *Workspace) Remove(p string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	h, ok := w.files[p]
	if !ok {
		return fmt.Errorf("%s: %w", p, ErrNotOpen)
	}
	if w.pendingOp(p) == models.OperationCreate {
		w.untrack(p)
		delete(w.files, p)
		return nil
	}
	w.track(models.FileChange{Path: p, Operation: models.OperationDelete, SHA: h.SHA})
	return nil
}

// Save writes one open file immediately, outside of any batch
func (w *Workspace) Save(ctx context.Context, p, message string) (*models.ContentWriteResult, error) {
	w.mu.Lock()
	h, ok := w.files[p]
	if !ok {
		w.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", p, ErrNotOpen)
	}
	write := FileWrite{
		Owner:   w.Owner,
		Repo:    w.Repo,
		Path:    p,
		Content: h.Content,
		Message: message,
		SHA:     h.SHA,
		Branch:  w.Branch,
	}
	creating := w.pendingOp(p) == models.OperationCreate
	w.mu.Unlock()

	var (
		result *models.ContentWriteResult
		err    error
	)
	if creating {
		result, err = w.client.CreateFile(ctx, write)
	} else {
		result, err = w.client.SaveFile(ctx, write)
	}
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if h, ok := w.files[p]; ok {
		if result.Content != nil {
			h.SHA = result.Content.SHA
		}
		h.saved = write.Content
		if h.Content == h.saved {
			w.untrack(p)
		} else {
			w.track(models.FileChange{Path: p, Operation: models.OperationUpdate, Content: strPtr(h.Content), SHA: h.SHA})
		}
	}
	return result, nil
}

// Pending returns the changes the next commit would apply, in order
func (w *Workspace) Pending() []models.FileChange {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.FileChange, len(w.pending))
	copy(out, w.pending)
	return out
}

// Commit sends every pending change as one batch.
// Applied changes are cleared and their handles updated; changes after a failure stay pending.
func (w *Workspace) Commit(ctx context.Context, message string) (*models.CommitResult, error) {
	files := w.Pending()
	if len(files) == 0 {
		return nil, ErrNothingToCommit
	}

	result, err := w.client.Commit(ctx, models.CommitRequest{
		Owner:   w.Owner,
		Repo:    w.Repo,
		Branch:  w.Branch,
		Message: message,
		Files:   files,
	})
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range result.Results {
		if !r.Success {
			continue
		}
		change := files[r.Index]
		if r.Operation == models.OperationDelete {
			delete(w.files, r.Path)
		} else if h, ok := w.files[r.Path]; ok {
			h.SHA = r.SHA
			h.saved = *change.Content
		}
		w.untrackExact(change)
	}
	return result, nil
}

func (w *Workspace) pendingOp(p string) models.FileOperation {
	for _, c := range w.pending {
		if c.Path == p {
			return c.Operation
		}
	}
	return ""
}

// track replaces the pending change of c.Path in place or appends it
func (w *Workspace) track(c models.FileChange) {
	for i := range w.pending {
		if w.pending[i].Path == c.Path {
			w.pending[i] = c
			return
		}
	}
	w.pending = append(w.pending, c)
}

func (w *Workspace) untrack(p string) {
	for i := range w.pending {
		if w.pending[i].Path == p {
			w.pending = append(w.pending[:i], w.pending[i+1:]...)
			return
		}
	}
}

// untrackExact drops c only if it is still the pending change for its path
func (w *Workspace) untrackExact(c models.FileChange) {
	for i, p := range w.pending {
		if p.Path != c.Path || p.Operation != c.Operation {
			continue
		}
		if (p.Content == nil) != (c.Content == nil) || (p.Content != nil && *p.Content != *c.Content) {
			return
		}
		w.pending = append(w.pending[:i], w.pending[i+1:]...)
		return
	}
}

func strPtr(s string) *string { return &s }

var languages = map[string]string{
	".js":    "javascript",
	".mjs":   "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".py":    "python",
	".go":    "go",
	".rb":    "ruby",
	".java":  "java",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cs":    "csharp",
	".php":   "php",
	".rs":    "rust",
	".sh":    "shell",
	".html":  "html",
	".css":   "css",
	".scss":  "scss",
	".json":  "json",
	".md":    "markdown",
	".yml":   "yaml",
	".yaml":  "yaml",
	".xml":   "xml",
	".sql":   "sql",
	".swift": "swift",
	".kt":    "kotlin",
}

// LanguageFor returns the editor language hint for a file name, plaintext when unknown
func LanguageFor(p string) string {
	base := path.Base(p)
	if base == "Dockerfile" {
		return "dockerfile"
	}
	if lang, ok := languages[strings.ToLower(path.Ext(base))]; ok {
		return lang
	}
	return "plaintext"
}
