package repository

import (
	"context"

	"github.com/fiora-labs/aura-backend/internal/domain"
	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	SetReferralCode(ctx context.Context, userID uuid.UUID, code string) error
	SetUsedReferralCode(ctx context.Context, userID uuid.UUID, code string) error
	// AddCredits atomically adjusts availableAnalyses by delta, flooring
	// the counter at zero.
	AddCredits(ctx context.Context, userID uuid.UUID, delta int) error
	// ConsumeCredit atomically decrements availableAnalyses if it is
	// positive. Returns false when no credit was available.
	ConsumeCredit(ctx context.Context, userID uuid.UUID) (bool, error)
	// SetCredits atomically replaces availableAnalyses with amount,
	// flooring at zero.
	SetCredits(ctx context.Context, userID uuid.UUID, amount int) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *domain.UserSession) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

type ReferralCodeRepository interface {
	Create(ctx context.Context, code *domain.ReferralCode) error
	GetByCode(ctx context.Context, code string) (*domain.ReferralCode, error)
	// GetByCodeForUpdate locks the code row for the duration of the
	// surrounding transaction. Only meaningful inside TxManager.Do.
	GetByCodeForUpdate(ctx context.Context, code string) (*domain.ReferralCode, error)
	AddRedemption(ctx context.Context, redemption *domain.ReferralRedemption) error
	CountRedemptions(ctx context.Context, codeID uuid.UUID) (int64, error)
	HasRedemption(ctx context.Context, codeID, userID uuid.UUID) (bool, error)
	// HasRedeemedFromOwner reports whether userID has redeemed any code
	// belonging to ownerID.
	HasRedeemedFromOwner(ctx context.Context, ownerID, userID uuid.UUID) (bool, error)
}

type AnalysisRepository interface {
	Create(ctx context.Context, analysis *domain.HairAnalysis) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.HairAnalysis, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.HairAnalysis, error)
}

type DiagnosticRepository interface {
	Create(ctx context.Context, result *domain.DiagnosticResult) error
	GetLatestByUser(ctx context.Context, userID uuid.UUID) (*domain.DiagnosticResult, error)
}

// TxManager runs a function against transactional repositories. The
// whole function commits or rolls back as a unit; the referral redeem
// path depends on this being genuinely atomic.
type TxManager interface {
	Do(ctx context.Context, fn func(repos *Repositories) error) error
}

type Repositories struct {
	User         UserRepository
	Session      SessionRepository
	ReferralCode ReferralCodeRepository
	Analysis     AnalysisRepository
	Diagnostic   DiagnosticRepository
}
