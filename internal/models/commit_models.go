package models

import (
	"time"

	"gorm.io/datatypes"
)

// FileOperation selects the upstream mutation for one file of a commit
type FileOperation string

const (
	OperationCreate FileOperation = "create"
	OperationUpdate FileOperation = "update"
	OperationDelete FileOperation = "delete"
)

// Valid reports whether op is one of the supported operations
func (op FileOperation) Valid() bool {
	switch op {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// FileChange is one file operation of a commit request
type FileChange struct {
	Path      string        `json:"path"`
	Operation FileOperation `json:"operation"`
	Content   *string       `json:"content,omitempty"`
	SHA       string        `json:"sha,omitempty"`
}

// CommitRequest is a message plus an ordered list of file operations
type CommitRequest struct {
	Owner   string       `json:"owner"`
	Repo    string       `json:"repo"`
	Branch  string       `json:"branch,omitempty"`
	Message string       `json:"message"`
	Files   []FileChange `json:"files"`
}

// CommitFileResult is the outcome of one applied file operation
type CommitFileResult struct {
	Index     int           `json:"index"`
	Path      string        `json:"path"`
	Operation FileOperation `json:"operation"`
	Success   bool          `json:"success"`
	SHA       string        `json:"sha,omitempty"`
	CommitSHA string        `json:"commitSha,omitempty"`
}

// CommitFailure describes the operation that stopped a batch
type CommitFailure struct {
	Index     int           `json:"index"`
	Path      string        `json:"path"`
	Operation FileOperation `json:"operation"`
	Error     string        `json:"error"`
	Details   string        `json:"details,omitempty"`
	Status    int           `json:"status,omitempty"`
}

// CommitResult is the outcome of a whole batch
type CommitResult struct {
	BatchID string             `json:"batchId"`
	Success bool               `json:"success"`
	Results []CommitFileResult `json:"results"`
	Failed  *CommitFailure     `json:"failed,omitempty"`
}

const CommitAuditsTableName = "commit_audits"

// CommitAuditModel is the durable record of one commit batch
type CommitAuditModel struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	BatchID   string         `gorm:"uniqueIndex;size:36" json:"batch_id"`
	UserLogin string         `gorm:"index:idx_audit_user_repo,priority:1" json:"user_login"`
	Owner     string         `gorm:"index:idx_audit_user_repo,priority:2" json:"owner"`
	Repo      string         `gorm:"index:idx_audit_user_repo,priority:3" json:"repo"`
	Branch    string         `json:"branch"`
	Message   string         `json:"message"`
	FileCount int            `json:"file_count"`
	Completed int            `json:"completed"`
	Success   bool           `json:"success"`
	Failure   string         `json:"failure,omitempty"`
	Results   datatypes.JSON `json:"results"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

func (CommitAuditModel) TableName() string {
	return CommitAuditsTableName
}
