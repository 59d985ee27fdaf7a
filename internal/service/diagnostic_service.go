package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fiora-labs/aura-backend/internal/domain"
	"github.com/fiora-labs/aura-backend/internal/repository"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type DiagnosticService struct {
	diagRepo repository.DiagnosticRepository
}

func NewDiagnosticService(diagRepo repository.DiagnosticRepository) *DiagnosticService {
	return &DiagnosticService{diagRepo: diagRepo}
}

// Save stores one questionnaire submission. Submissions are immutable;
// a new submission supersedes older ones for prompt context.
func (s *DiagnosticService) Save(ctx context.Context, userID uuid.UUID, answers map[string]string) (*domain.DiagnosticResult, error) {
	if len(answers) == 0 {
		return nil, fmt.Errorf("diagnostic answers are required")
	}

	raw, err := json.Marshal(answers)
	if err != nil {
		return nil, err
	}

	result := &domain.DiagnosticResult{
		ID:        uuid.New(),
		UserID:    userID,
		Answers:   datatypes.JSON(raw),
		CreatedAt: time.Now(),
	}

	if err := s.diagRepo.Create(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Latest returns the most recent submission, or nil when the user has
// never completed the questionnaire.
func (s *DiagnosticService) Latest(ctx context.Context, userID uuid.UUID) (*domain.DiagnosticResult, error) {
	result, err := s.diagRepo.GetLatestByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return result, nil
}
