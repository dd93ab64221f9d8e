// Package gitapitest provides an in-memory fake of the hosting provider's REST API
package gitapitest

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nsvirk/gitcoderapi/internal/models"
)

// RateLimitedToken always receives a rate limit response
const RateLimitedToken = "rate-limited-token"

// File is a file stored on a fake branch
type File struct {
	Content string
	SHA     string
}

type commitRecord struct {
	SHA     string
	Message string
	Paths   []string
	Date    time.Time
}

type branchState struct {
	files   map[string]File
	commits []commitRecord
}

type repoState struct {
	meta     models.Repository
	branches map[string]*branchState
	pulls    []models.PullRequest
}

// Server is a fake upstream API backed by in-memory repositories
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	users    map[string]models.UserProfile
	repos    map[string]*repoState
	requests []string
	seq      int
	nextID   int64
	delay    time.Duration
}

// NewServer starts a fake upstream that is closed when the test ends
func NewServer(t testing.TB) *Server {
	s := &Server{
		users:  make(map[string]models.UserProfile),
		repos:  make(map[string]*repoState),
		nextID: 1000,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", s.handleGetUser)
	mux.HandleFunc("GET /user/repos", s.handleListRepos)
	mux.HandleFunc("POST /user/repos", s.handleCreateRepo)
	mux.HandleFunc("GET /repos/{owner}/{repo}", s.handleGetRepo)
	mux.HandleFunc("GET /repos/{owner}/{repo}/contents", s.handleGetContents)
	mux.HandleFunc("GET /repos/{owner}/{repo}/contents/{path...}", s.handleGetContents)
	mux.HandleFunc("PUT /repos/{owner}/{repo}/contents/{path...}", s.handlePutContents)
	mux.HandleFunc("DELETE /repos/{owner}/{repo}/contents/{path...}", s.handleDeleteContents)
	mux.HandleFunc("GET /repos/{owner}/{repo}/branches", s.handleListBranches)
	mux.HandleFunc("GET /repos/{owner}/{repo}/branches/{branch...}", s.handleGetBranch)
	mux.HandleFunc("GET /repos/{owner}/{repo}/git/ref/heads/{branch...}", s.handleGetRef)
	mux.HandleFunc("POST /repos/{owner}/{repo}/git/refs", s.handleCreateRef)
	mux.HandleFunc("GET /repos/{owner}/{repo}/commits", s.handleListCommits)
	mux.HandleFunc("GET /repos/{owner}/{repo}/compare/{basehead...}", s.handleCompare)
	mux.HandleFunc("GET /repos/{owner}/{repo}/pulls", s.handleListPulls)
	mux.HandleFunc("POST /repos/{owner}/{repo}/pulls", s.handlePostPull)
	mux.HandleFunc("GET /search/code", s.handleSearchCode)

	s.Server = httptest.NewServer(s.authenticate(mux))
	t.Cleanup(s.Server.Close)
	return s
}

// AddUser registers an access token and the identity it belongs to
func (s *Server) AddUser(token string, user models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[token] = user
}

// AddRepo creates an empty repository with one initial commit on its default branch
func (s *Server) AddRepo(owner, name string, private bool, defaultBranch string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addRepoLocked(owner, name, "", private, defaultBranch)
}

// PutFile writes a file directly and records a commit for it
func (s *Server) PutFile(owner, repo, branch, path, content string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.repos[owner+"/"+repo].branches[branch]
	sha := blobSHA(content)
	b.files[path] = File{Content: content, SHA: sha}
	s.commitLocked(b, "seed "+path, path)
	return sha
}

// File returns a file as currently stored
func (s *Server) File(owner, repo, branch, path string) (File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.repos[owner+"/"+repo]
	if !ok {
		return File{}, false
	}
	b, ok := r.branches[branch]
	if !ok {
		return File{}, false
	}
	f, ok := b.files[path]
	return f, ok
}

// BranchHead returns the head commit sha of a branch
func (s *Server) BranchHead(owner, repo, branch string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.repos[owner+"/"+repo].branches[branch]
	return b.head()
}

// Requests returns "METHOD /path" for every request received
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

// ResetRequests clears the request log
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// SetDelay makes every response wait d before being written
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

func (b *branchState) head() string {
	if len(b.commits) == 0 {
		return ""
	}
	return b.commits[len(b.commits)-1].SHA
}

func (b *branchState) clone() *branchState {
	files := make(map[string]File, len(b.files))
	for k, v := range b.files {
		files[k] = v
	}
	commits := make([]commitRecord, len(b.commits))
	copy(commits, b.commits)
	return &branchState{files: files, commits: commits}
}

func blobSHA(content string) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("blob %d\x00%s", len(content), content)))
	return hex.EncodeToString(sum[:])
}

func (s *Server) addRepoLocked(owner, name, description string, private bool, defaultBranch string) *repoState {
	s.nextID++
	r := &repoState{
		meta: models.Repository{
			ID:            s.nextID,
			Name:          name,
			FullName:      owner + "/" + name,
			Owner:         models.Owner{Login: owner},
			Private:       private,
			Description:   description,
			DefaultBranch: defaultBranch,
			HTMLURL:       "https://example.test/" + owner + "/" + name,
		},
		branches: map[string]*branchState{},
	}
	b := &branchState{files: map[string]File{}}
	s.commitLocked(b, "Initial commit")
	r.branches[defaultBranch] = b
	s.repos[owner+"/"+name] = r
	return r
}

func (s *Server) commitLocked(b *branchState, message string, paths ...string) commitRecord {
	s.seq++
	sum := sha1.Sum([]byte(fmt.Sprintf("commit %d %s", s.seq, message)))
	c := commitRecord{
		SHA:     hex.EncodeToString(sum[:]),
		Message: message,
		Paths:   paths,
		Date:    time.Date(2024, 1, 1, 0, 0, s.seq, 0, time.UTC),
	}
	b.commits = append(b.commits, c)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		delay := s.delay
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == RateLimitedToken {
			w.Header().Set("X-RateLimit-Remaining", "0")
			writeError(w, http.StatusForbidden, "API rate limit exceeded")
			return
		}
		s.mu.Lock()
		_, ok := s.users[token]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "Bad credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) currentUser(r *http.Request) models.UserProfile {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return s.users[token]
}

// lookup resolves the repository and branch of a request, writing a 404 when absent
func (s *Server) lookup(w http.ResponseWriter, r *http.Request, branch string) (*repoState, *branchState, bool) {
	repo, ok := s.repos[r.PathValue("owner")+"/"+r.PathValue("repo")]
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return nil, nil, false
	}
	if branch == "" {
		branch = repo.meta.DefaultBranch
	}
	b, ok := repo.branches[branch]
	if !ok {
		writeError(w, http.StatusNotFound, "No commit found for the ref "+branch)
		return nil, nil, false
	}
	return repo, b, true
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.currentUser(r))
}

func (s *Server) handleListRepos(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.currentUser(r)
	visibility := r.URL.Query().Get("visibility")

	repos := []models.Repository{}
	for _, repo := range s.repos {
		if repo.meta.Owner.Login != user.Login {
			continue
		}
		if visibility == "public" && repo.meta.Private {
			continue
		}
		if visibility == "private" && !repo.meta.Private {
			continue
		}
		repos = append(repos, repo.meta)
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].FullName < repos[j].FullName })
	writeJSON(w, http.StatusOK, repos)
}

func (s *Server) handleCreateRepo(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Private     bool   `json:"private"`
		AutoInit    bool   `json:"auto_init"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "Repository creation failed.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.currentUser(r)
	if _, exists := s.repos[user.Login+"/"+body.Name]; exists {
		writeError(w, http.StatusUnprocessableEntity, "name already exists on this account")
		return
	}
	repo := s.addRepoLocked(user.Login, body.Name, body.Description, body.Private, "main")
	if body.AutoInit {
		b := repo.branches["main"]
		content := "# " + body.Name + "\n"
		b.files["README.md"] = File{Content: content, SHA: blobSHA(content)}
		s.commitLocked(b, "Add README", "README.md")
	}
	writeJSON(w, http.StatusCreated, repo.meta)
}

func (s *Server) handleGetRepo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	repo, _, ok := s.lookup(w, r, "")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, repo.meta)
}

func entryFor(path string, f File) models.ContentEntry {
	name := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		name = path[i+1:]
	}
	return models.ContentEntry{Name: name, Path: path, SHA: f.SHA, Size: int64(len(f.Content)), Type: "file"}
}

// wrapBase64 splits the encoding into 60 character lines like the real upstream
func wrapBase64(content string) string {
	enc := base64.StdEncoding.EncodeToString([]byte(content))
	var sb strings.Builder
	for len(enc) > 60 {
		sb.WriteString(enc[:60])
		sb.WriteString("\n")
		enc = enc[60:]
	}
	sb.WriteString(enc)
	sb.WriteString("\n")
	return sb.String()
}

func (s *Server) handleGetContents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, b, ok := s.lookup(w, r, r.URL.Query().Get("ref"))
	if !ok {
		return
	}
	path := strings.Trim(r.PathValue("path"), "/")

	if f, isFile := b.files[path]; isFile && path != "" {
		entry := entryFor(path, f)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"name":     entry.Name,
			"path":     entry.Path,
			"sha":      entry.SHA,
			"size":     entry.Size,
			"type":     "file",
			"encoding": "base64",
			"content":  wrapBase64(f.Content),
		})
		return
	}

	prefix := ""
	if path != "" {
		prefix = path + "/"
	}
	seenDirs := map[string]bool{}
	entries := []models.ContentEntry{}
	for p, f := range b.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		if i := strings.Index(rest, "/"); i >= 0 {
			dir := rest[:i]
			if !seenDirs[dir] {
				seenDirs[dir] = true
				entries = append(entries, models.ContentEntry{Name: dir, Path: prefix + dir, Type: "dir"})
			}
			continue
		}
		entries = append(entries, entryFor(p, f))
	}
	if path != "" && len(entries) == 0 {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	writeJSON(w, http.StatusOK, entries)
}

type contentsBody struct {
	Message string  `json:"message"`
	Content *string `json:"content"`
	SHA     string `json:"sha"`
	Branch  string `json:"branch"`
}

func writeResult(w http.ResponseWriter, status int, content interface{}, c commitRecord) {
	writeJSON(w, status, map[string]interface{}{
		"content": content,
		"commit":  map[string]string{"sha": c.SHA, "message": c.Message},
	})
}

func (s *Server) handlePutContents(w http.ResponseWriter, r *http.Request) {
	var body contentsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Message == "" {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request.")
		return
	}
	if body.Content == nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request.\n\n\"content\" wasn't supplied.")
		return
	}
	decoded, err := base64.StdEncoding.DecodeString(*body.Content)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "content is not valid Base64")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, b, ok := s.lookup(w, r, body.Branch)
	if !ok {
		return
	}
	path := r.PathValue("path")
	current, exists := b.files[path]

	switch {
	case exists && body.SHA == "":
		writeError(w, http.StatusUnprocessableEntity, "Invalid request.\n\n\"sha\" wasn't supplied.")
		return
	case exists && body.SHA != current.SHA:
		writeError(w, http.StatusConflict, path+" does not match "+body.SHA)
		return
	case !exists && body.SHA != "":
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}

	content := string(decoded)
	f := File{Content: content, SHA: blobSHA(content)}
	b.files[path] = f
	c := s.commitLocked(b, body.Message, path)

	status := http.StatusOK
	if !exists {
		status = http.StatusCreated
	}
	writeResult(w, status, entryFor(path, f), c)
}

func (s *Server) handleDeleteContents(w http.ResponseWriter, r *http.Request) {
	var body contentsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Message == "" {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, b, ok := s.lookup(w, r, body.Branch)
	if !ok {
		return
	}
	path := r.PathValue("path")
	current, exists := b.files[path]
	switch {
	case !exists:
		writeError(w, http.StatusNotFound, "Not Found")
		return
	case body.SHA == "":
		writeError(w, http.StatusUnprocessableEntity, "Invalid request.\n\n\"sha\" wasn't supplied.")
		return
	case body.SHA != current.SHA:
		writeError(w, http.StatusConflict, path+" does not match "+body.SHA)
		return
	}

	delete(b.files, path)
	c := s.commitLocked(b, body.Message, path)
	writeResult(w, http.StatusOK, nil, c)
}

func (s *Server) handleListBranches(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	repo, _, ok := s.lookup(w, r, "")
	if !ok {
		return
	}
	branches := []models.Branch{}
	for name, b := range repo.branches {
		branches = append(branches, models.Branch{Name: name, Commit: models.BranchCommit{SHA: b.head()}})
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	writeJSON(w, http.StatusOK, branches)
}

func (s *Server) handleGetBranch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := r.PathValue("branch")
	_, b, ok := s.lookup(w, r, name)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, models.Branch{Name: name, Commit: models.BranchCommit{SHA: b.head()}})
}

func refFor(name, sha string) models.Ref {
	var ref models.Ref
	ref.Ref = "refs/heads/" + name
	ref.Object.SHA = sha
	ref.Object.Type = "commit"
	return ref
}

func (s *Server) handleGetRef(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := r.PathValue("branch")
	_, b, ok := s.lookup(w, r, name)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, refFor(name, b.head()))
}

func (s *Server) handleCreateRef(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Ref string `json:"ref"`
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !strings.HasPrefix(body.Ref, "refs/heads/") {
		writeError(w, http.StatusUnprocessableEntity, "Reference name must start with refs/heads/")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	repo, _, ok := s.lookup(w, r, "")
	if !ok {
		return
	}
	name := strings.TrimPrefix(body.Ref, "refs/heads/")
	if _, exists := repo.branches[name]; exists {
		writeError(w, http.StatusUnprocessableEntity, "Reference already exists")
		return
	}
	for _, b := range repo.branches {
		if b.head() == body.SHA {
			repo.branches[name] = b.clone()
			writeJSON(w, http.StatusCreated, refFor(name, body.SHA))
			return
		}
	}
	writeError(w, http.StatusUnprocessableEntity, "Object does not exist")
}

func (s *Server) handleListCommits(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	query := r.URL.Query()
	_, b, ok := s.lookup(w, r, query.Get("sha"))
	if !ok {
		return
	}
	path := query.Get("path")
	perPage := 30
	fmt.Sscan(query.Get("per_page"), &perPage)

	commits := []models.Commit{}
	for i := len(b.commits) - 1; i >= 0 && len(commits) < perPage; i-- {
		c := b.commits[i]
		if path != "" && !containsPath(c.Paths, path) {
			continue
		}
		date := c.Date
		commits = append(commits, models.Commit{
			SHA: c.SHA,
			Commit: models.CommitDetail{
				Message: c.Message,
				Author:  &models.CommitIdentity{Name: "fake", Email: "fake@example.test", Date: &date},
			},
		})
	}
	writeJSON(w, http.StatusOK, commits)
}

func containsPath(paths []string, path string) bool {
	for _, p := range paths {
		if p == path {
			return true
		}
	}
	return false
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	parts := strings.SplitN(r.PathValue("basehead"), "...", 2)
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	repo, base, ok := s.lookup(w, r, parts[0])
	if !ok {
		return
	}
	head, ok := repo.branches[parts[1]]
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}

	common := 0
	for common < len(base.commits) && common < len(head.commits) && base.commits[common].SHA == head.commits[common].SHA {
		common++
	}
	ahead := len(head.commits) - common
	behind := len(base.commits) - common
	status := "identical"
	switch {
	case ahead > 0 && behind > 0:
		status = "diverged"
	case ahead > 0:
		status = "ahead"
	case behind > 0:
		status = "behind"
	}
	writeJSON(w, http.StatusOK, models.CompareResult{Status: status, AheadBy: ahead, BehindBy: behind, TotalCommits: ahead})
}

func (s *Server) handleListPulls(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	repo, _, ok := s.lookup(w, r, "")
	if !ok {
		return
	}
	state := r.URL.Query().Get("state")
	pulls := []models.PullRequest{}
	for _, pr := range repo.pulls {
		if state == "all" || pr.State == state {
			pulls = append(pulls, pr)
		}
	}
	writeJSON(w, http.StatusOK, pulls)
}

func (s *Server) handlePostPull(w http.ResponseWriter, r *http.Request) {
	var body models.PullRequestRef
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Validation Failed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	repo, _, ok := s.lookup(w, r, "")
	if !ok {
		return
	}
	head, headOK := repo.branches[body.Head]
	base, baseOK := repo.branches[body.Base]
	if !headOK || !baseOK || body.Head == body.Base {
		writeError(w, http.StatusUnprocessableEntity, "Validation Failed")
		return
	}

	s.nextID++
	user := s.currentUser(r)
	pr := models.PullRequest{
		ID:     s.nextID,
		Number: len(repo.pulls) + 1,
		State:  "open",
		Title:  body.Title,
		Body:   body.Body,
		User:   &models.Owner{Login: user.Login, ID: user.ID},
		Head:   models.PullRequestBranch{Ref: body.Head, SHA: head.head()},
		Base:   models.PullRequestBranch{Ref: body.Base, SHA: base.head()},
	}
	pr.HTMLURL = fmt.Sprintf("%s/pull/%d", repo.meta.HTMLURL, pr.Number)
	repo.pulls = append(repo.pulls, pr)
	writeJSON(w, http.StatusCreated, pr)
}

func (s *Server) handleSearchCode(w http.ResponseWriter, r *http.Request) {
	var terms []string
	repoName := ""
	for _, token := range strings.Fields(r.URL.Query().Get("q")) {
		if strings.HasPrefix(token, "repo:") {
			repoName = strings.TrimPrefix(token, "repo:")
			continue
		}
		terms = append(terms, token)
	}
	term := strings.Join(terms, " ")

	s.mu.Lock()
	defer s.mu.Unlock()
	repo, ok := s.repos[repoName]
	if !ok || term == "" {
		writeError(w, http.StatusUnprocessableEntity, "Validation Failed")
		return
	}

	b := repo.branches[repo.meta.DefaultBranch]
	items := []models.SearchItem{}
	for p, f := range b.files {
		if strings.Contains(f.Content, term) {
			entry := entryFor(p, f)
			items = append(items, models.SearchItem{Name: entry.Name, Path: p, SHA: f.SHA})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })
	writeJSON(w, http.StatusOK, models.SearchResult{TotalCount: len(items), Items: items})
}
