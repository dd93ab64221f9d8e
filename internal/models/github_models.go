package models

import "time"

// Owner is the account owning a repository
type Owner struct {
	Login     string `json:"login"`
	ID        int64  `json:"id"`
	AvatarURL string `json:"avatar_url,omitempty"`
	HTMLURL   string `json:"html_url,omitempty"`
}

// Repository is an upstream repository
type Repository struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	FullName        string     `json:"full_name"`
	Owner           Owner      `json:"owner"`
	Private         bool       `json:"private"`
	Description     string     `json:"description"`
	HTMLURL         string     `json:"html_url"`
	DefaultBranch   string     `json:"default_branch"`
	Language        string     `json:"language"`
	StargazersCount int        `json:"stargazers_count"`
	ForksCount      int        `json:"forks_count"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// RepositoryViews is the denormalized listing returned when no partition is requested
type RepositoryViews struct {
	Public  []Repository `json:"public"`
	Private []Repository `json:"private"`
	All     []Repository `json:"all"`
}

// ContentEntry is one item of a directory listing
type ContentEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	SHA         string `json:"sha"`
	Size        int64  `json:"size"`
	Type        string `json:"type"`
	HTMLURL     string `json:"html_url,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

// FileContent is a file with its content already decoded to text
type FileContent struct {
	ContentEntry
	Encoding       string `json:"encoding,omitempty"`
	DecodedContent string `json:"decoded_content"`
}

// CommitIdentity is the author or committer of a commit
type CommitIdentity struct {
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Date  *time.Time `json:"date,omitempty"`
}

// CommitDetail is the git-level part of a commit
type CommitDetail struct {
	Message   string          `json:"message"`
	Author    *CommitIdentity `json:"author,omitempty"`
	Committer *CommitIdentity `json:"committer,omitempty"`
}

// Commit is an entry of the commit history
type Commit struct {
	SHA     string       `json:"sha"`
	HTMLURL string       `json:"html_url,omitempty"`
	Commit  CommitDetail `json:"commit"`
	Author  *Owner       `json:"author,omitempty"`
}

// ContentWriteResult is returned by the create, update and delete file calls
type ContentWriteResult struct {
	Content *ContentEntry `json:"content"`
	Commit  struct {
		SHA     string `json:"sha"`
		Message string `json:"message"`
		HTMLURL string `json:"html_url,omitempty"`
	} `json:"commit"`
}

// BranchCommit is the head commit reference of a branch
type BranchCommit struct {
	SHA string `json:"sha"`
	URL string `json:"url,omitempty"`
}

// Branch is an upstream branch
type Branch struct {
	Name      string       `json:"name"`
	Commit    BranchCommit `json:"commit"`
	Protected bool         `json:"protected"`
}

// Ref is a git reference
type Ref struct {
	Ref    string `json:"ref"`
	URL    string `json:"url,omitempty"`
	Object struct {
		SHA  string `json:"sha"`
		Type string `json:"type"`
	} `json:"object"`
}

// PullRequestBranch is the head or base of a pull request
type PullRequestBranch struct {
	Ref   string `json:"ref"`
	SHA   string `json:"sha"`
	Label string `json:"label,omitempty"`
}

// PullRequest is an upstream pull request
type PullRequest struct {
	ID        int64             `json:"id"`
	Number    int               `json:"number"`
	State     string            `json:"state"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	HTMLURL   string            `json:"html_url"`
	User      *Owner            `json:"user,omitempty"`
	Head      PullRequestBranch `json:"head"`
	Base      PullRequestBranch `json:"base"`
	CreatedAt *time.Time        `json:"created_at,omitempty"`
	UpdatedAt *time.Time        `json:"updated_at,omitempty"`
}

// PullRequestRef is forwarded verbatim to the upstream when opening a pull request
type PullRequestRef struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Head  string `json:"head"`
	Base  string `json:"base"`
}

// CompareResult is the upstream comparison of two refs
type CompareResult struct {
	Status       string `json:"status"`
	AheadBy      int    `json:"ahead_by"`
	BehindBy     int    `json:"behind_by"`
	TotalCommits int    `json:"total_commits"`
}

// SearchItem is a code search hit
type SearchItem struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
}

// SearchResult is the code search response
type SearchResult struct {
	TotalCount        int          `json:"total_count"`
	IncompleteResults bool         `json:"incomplete_results"`
	Items             []SearchItem `json:"items"`
}

// RepoStatus is the status summary of a branch relative to the default branch
type RepoStatus struct {
	CurrentBranch string  `json:"currentBranch"`
	DefaultBranch string  `json:"defaultBranch"`
	Ahead         int     `json:"ahead"`
	Behind        int     `json:"behind"`
	HasChanges    bool    `json:"hasChanges"`
	LastCommit    *Commit `json:"lastCommit"`
}
