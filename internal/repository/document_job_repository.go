package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docrelay/internal/model"
)

type DocumentJobRepository struct {
	db *gorm.DB
}

func NewDocumentJobRepository(db *gorm.DB) *DocumentJobRepository {
	return &DocumentJobRepository{db: db}
}

func (r *DocumentJobRepository) Create(job *model.DocumentJob) error {
	if err := r.db.Create(job).Error; err != nil {
		return fmt.Errorf("create document job failed: %w", err)
	}
	return nil
}

func (r *DocumentJobRepository) GetByID(id string) (*model.DocumentJob, error) {
	var job model.DocumentJob
	if err := r.db.Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document job failed: %w", err)
	}
	return &job, nil
}

func (r *DocumentJobRepository) Update(job *model.DocumentJob) error {
	if err := r.db.Save(job).Error; err != nil {
		return fmt.Errorf("update document job failed: %w", err)
	}
	return nil
}

func (r *DocumentJobRepository) ListByDocumentID(documentID string) ([]model.DocumentJob, error) {
	var list []model.DocumentJob
	if err := r.db.Where("document_id = ?", documentID).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list document jobs failed: %w", err)
	}
	return list, nil
}
