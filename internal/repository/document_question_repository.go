package repository

import (
	"fmt"

	"gorm.io/gorm"

	"docrelay/internal/model"
)

type DocumentQuestionRepository struct {
	db *gorm.DB
}

func NewDocumentQuestionRepository(db *gorm.DB) *DocumentQuestionRepository {
	return &DocumentQuestionRepository{db: db}
}

func (r *DocumentQuestionRepository) Create(q *model.DocumentQuestion) error {
	if err := r.db.Create(q).Error; err != nil {
		return fmt.Errorf("create document question failed: %w", err)
	}
	return nil
}

// ListRecent returns the latest limit questions for a document, oldest first.
func (r *DocumentQuestionRepository) ListRecent(documentID string, limit int) ([]model.DocumentQuestion, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	var list []model.DocumentQuestion
	if err := r.db.Where("document_id = ?", documentID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list document questions failed: %w", err)
	}
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}

// Trim deletes all but the newest keep questions of a document.
func (r *DocumentQuestionRepository) Trim(documentID string, keep int) error {
	var keepIDs []uint
	if err := r.db.Model(&model.DocumentQuestion{}).
		Where("document_id = ?", documentID).
		Order("created_at DESC").Order("id DESC").
		Limit(keep).
		Pluck("id", &keepIDs).Error; err != nil {
		return fmt.Errorf("list document question ids failed: %w", err)
	}
	if len(keepIDs) < keep {
		return nil
	}
	if err := r.db.Where("document_id = ? AND id NOT IN ?", documentID, keepIDs).
		Delete(&model.DocumentQuestion{}).Error; err != nil {
		return fmt.Errorf("trim document questions failed: %w", err)
	}
	return nil
}
