package postgres

import (
	"context"

	"github.com/fiora-labs/aura-backend/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type diagnosticRepository struct {
	db *gorm.DB
}

func NewDiagnosticRepository(db *gorm.DB) *diagnosticRepository {
	return &diagnosticRepository{db: db}
}

func (r *diagnosticRepository) Create(ctx context.Context, result *domain.DiagnosticResult) error {
	return r.db.WithContext(ctx).Create(result).Error
}

func (r *diagnosticRepository) GetLatestByUser(ctx context.Context, userID uuid.UUID) (*domain.DiagnosticResult, error) {
	var result domain.DiagnosticResult
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}
