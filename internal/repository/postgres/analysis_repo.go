package postgres

import (
	"context"

	"github.com/fiora-labs/aura-backend/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type analysisRepository struct {
	db *gorm.DB
}

func NewAnalysisRepository(db *gorm.DB) *analysisRepository {
	return &analysisRepository{db: db}
}

func (r *analysisRepository) Create(ctx context.Context, analysis *domain.HairAnalysis) error {
	return r.db.WithContext(ctx).Create(analysis).Error
}

func (r *analysisRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.HairAnalysis, error) {
	var analysis domain.HairAnalysis
	err := r.db.WithContext(ctx).First(&analysis, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (r *analysisRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.HairAnalysis, error) {
	var analyses []*domain.HairAnalysis
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&analyses).Error
	if err != nil {
		return nil, err
	}
	return analyses, nil
}
