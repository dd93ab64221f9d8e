package repository

import (
	"context"

	"github.com/nsvirk/gitcoderapi/internal/models"
	"github.com/rotisserie/eris"
	"gorm.io/gorm"
)

// CommitAuditRepository records the outcome of commit batches
type CommitAuditRepository struct {
	DB *gorm.DB
}

// NewCommitAuditRepository creates a new repository for commit audits
func NewCommitAuditRepository(db *gorm.DB) *CommitAuditRepository {
	return &CommitAuditRepository{DB: db}
}

// Insert stores one audit record
func (r *CommitAuditRepository) Insert(ctx context.Context, audit *models.CommitAuditModel) error {
	if err := r.DB.WithContext(ctx).Create(audit).Error; err != nil {
		return eris.Wrapf(err, "failed to insert commit audit %s", audit.BatchID)
	}
	return nil
}

// ListRecent returns the newest audits of a user for one repository
func (r *CommitAuditRepository) ListRecent(ctx context.Context, userLogin, owner, repo string, limit int) ([]models.CommitAuditModel, error) {
	audits := []models.CommitAuditModel{}
	err := r.DB.WithContext(ctx).
		Where("user_login = ? AND owner = ? AND repo = ?", userLogin, owner, repo).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&audits).Error
	if err != nil {
		return nil, eris.Wrap(err, "failed to list commit audits")
	}
	return audits, nil
}
