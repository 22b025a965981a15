package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aihub/chatbot-go/internal/models"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NearestQuery 向量检索条件
type NearestQuery struct {
	ChatbotID     uint
	Embedding     []float32
	ExcludeOrders []int
	MaxDistance   float64
	Limit         int
}

// SourceRef 一个已导入来源（按file_hash聚合）
type SourceRef struct {
	ChatbotID   uint
	FileHash    string
	FileName    string
	URL         string
	CronJob     string
	ChunkSize   int
	OverlapSize int
	IsRequired  bool
	UseCag      bool
	LastUpdate  time.Time
}

// KnowledgeRepository 知识块存储
type KnowledgeRepository struct {
	db *gorm.DB
}

func NewKnowledgeRepository(db *gorm.DB) *KnowledgeRepository {
	return &KnowledgeRepository{db: db}
}

// CountChunks 机器人的知识块总数
func (r *KnowledgeRepository) CountChunks(ctx context.Context, chatbotID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.PreMessage{}).Where("chatbot_id = ?", chatbotID).Count(&n).Error
	return n, err
}

// Required 必选块，按order降序
func (r *KnowledgeRepository) Required(ctx context.Context, chatbotID uint) ([]models.PreMessage, error) {
	var rows []models.PreMessage
	err := r.db.WithContext(ctx).
		Where("chatbot_id = ? AND is_required = ?", chatbotID, true).
		Order("order_index DESC").
		Find(&rows).Error
	return rows, err
}

// Nearest 按L2距离(<->)升序返回距离不超过阈值的候选块
func (r *KnowledgeRepository) Nearest(ctx context.Context, q NearestQuery) ([]models.PreMessage, error) {
	if q.Limit <= 0 {
		return nil, nil
	}
	vec := pgvector.NewVector(q.Embedding)

	tx := r.db.WithContext(ctx).
		Where("chatbot_id = ? AND embedding IS NOT NULL", q.ChatbotID)
	if len(q.ExcludeOrders) > 0 {
		tx = tx.Where("order_index NOT IN ?", q.ExcludeOrders)
	}

	var rows []models.PreMessage
	err := tx.Where("embedding <-> ? <= ?", vec, q.MaxDistance).
		Clauses(clause.OrderBy{Expression: clause.Expr{SQL: "embedding <-> ?", Vars: []interface{}{vec}}}).
		Limit(q.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("nearest chunks: %w", err)
	}
	return rows, nil
}

// Contents 批量读取CAG原文
func (r *KnowledgeRepository) Contents(ctx context.Context, preMessageIDs []uint) (map[uint]models.PreMessageContent, error) {
	out := make(map[uint]models.PreMessageContent, len(preMessageIDs))
	if len(preMessageIDs) == 0 {
		return out, nil
	}
	var rows []models.PreMessageContent
	if err := r.db.WithContext(ctx).Where("pre_message_id IN ?", preMessageIDs).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load chunk contents: %w", err)
	}
	for _, row := range rows {
		out[row.PreMessageID] = row
	}
	return out, nil
}

// MaxOrderBelow 小于limit的最大order，没有记录时为0
func (r *KnowledgeRepository) MaxOrderBelow(ctx context.Context, chatbotID uint, limit int) (int, error) {
	var max int
	err := r.db.WithContext(ctx).Model(&models.PreMessage{}).
		Select("COALESCE(MAX(order_index), 0)").
		Where("chatbot_id = ? AND order_index < ?", chatbotID, limit).
		Scan(&max).Error
	return max, err
}

// MaxOrder 全部记录中的最大order，没有记录时为0
func (r *KnowledgeRepository) MaxOrder(ctx context.Context, chatbotID uint) (int, error) {
	var max int
	err := r.db.WithContext(ctx).Model(&models.PreMessage{}).
		Select("COALESCE(MAX(order_index), 0)").
		Where("chatbot_id = ?", chatbotID).
		Scan(&max).Error
	return max, err
}

// FindCag 查找该文件已有的CAG块，不存在返回nil
func (r *KnowledgeRepository) FindCag(ctx context.Context, chatbotID uint, fileHash string) (*models.PreMessage, error) {
	var row models.PreMessage
	err := r.db.WithContext(ctx).
		Where("chatbot_id = ? AND file_hash = ? AND use_cag = ? AND order_index >= ?", chatbotID, fileHash, true, models.CagOrderBase).
		Order("order_index").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// CountByHash 某来源当前的知识块数
func (r *KnowledgeRepository) CountByHash(ctx context.Context, chatbotID uint, fileHash string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.PreMessage{}).
		Where("chatbot_id = ? AND file_hash = ?", chatbotID, fileHash).
		Count(&n).Error
	return n, err
}

// ReplaceSource 在同一事务内先插入新块，再删除同一file_hash下的旧分块
func (r *KnowledgeRepository) ReplaceSource(ctx context.Context, chatbotID uint, fileHash string, rows []models.PreMessage) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var oldIDs []uint
		if err := tx.Model(&models.PreMessage{}).
			Where("chatbot_id = ? AND file_hash = ? AND order_index < ?", chatbotID, fileHash, models.CagOrderBase).
			Pluck("id", &oldIDs).Error; err != nil {
			return fmt.Errorf("list superseded chunks: %w", err)
		}

		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("insert chunks: %w", err)
			}
		}

		if len(oldIDs) > 0 {
			res := tx.Where("id IN ?", oldIDs).Delete(&models.PreMessage{})
			if res.Error != nil {
				return fmt.Errorf("delete superseded chunks: %w", res.Error)
			}
			deleted = res.RowsAffected
		}
		return nil
	})
	return deleted, err
}

// SaveCag 已存在时原地更新摘要、向量和原文，保持order不变；否则新建
func (r *KnowledgeRepository) SaveCag(ctx context.Context, row *models.PreMessage, content models.PreMessageContent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if row.ID == 0 {
			if err := tx.Create(row).Error; err != nil {
				return fmt.Errorf("create cag chunk: %w", err)
			}
		} else {
			err := tx.Model(&models.PreMessage{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
				"user_message": row.UserMessage,
				"embedding":    row.Embedding,
				"file_name":    row.FileName,
				"url":          row.URL,
				"cron_job":     row.CronJob,
				"is_required":  row.IsRequired,
				"last_update":  row.LastUpdate,
			}).Error
			if err != nil {
				return fmt.Errorf("update cag chunk %d: %w", row.ID, err)
			}
		}

		content.PreMessageID = row.ID
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pre_message_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"file_name", "mime_type", "content"}),
		}).Create(&content).Error
	})
}

// ScheduledSources 配置了定时刷新的URL来源
func (r *KnowledgeRepository) ScheduledSources(ctx context.Context) ([]SourceRef, error) {
	var refs []SourceRef
	err := r.db.WithContext(ctx).Model(&models.PreMessage{}).
		Select(`chatbot_id, file_hash, MAX(file_name) AS file_name, url, cron_job,
			MAX(chunk_size) AS chunk_size, MAX(overlap_size) AS overlap_size,
			BOOL_OR(is_required) AS is_required, BOOL_OR(use_cag) AS use_cag,
			MAX(last_update) AS last_update`).
		Where("url <> '' AND cron_job <> ''").
		Group("chatbot_id, file_hash, url, cron_job").
		Scan(&refs).Error
	if err != nil {
		return nil, fmt.Errorf("list scheduled sources: %w", err)
	}
	return refs, nil
}
