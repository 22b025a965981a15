package repository

import (
	"context"

	"github.com/aihub/chatbot-go/internal/models"
	"gorm.io/gorm"
)

// AuditRepository 导入审计记录，只写
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) RecordRefresh(ctx context.Context, info *models.RefreshInformation) error {
	return r.db.WithContext(ctx).Create(info).Error
}

func (r *AuditRepository) RecordImportError(ctx context.Context, rec *models.ImportError) error {
	return r.db.WithContext(ctx).Create(rec).Error
}
