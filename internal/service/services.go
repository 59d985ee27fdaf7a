package service

import (
	"github.com/fiora-labs/aura-backend/internal/cache"
	"github.com/fiora-labs/aura-backend/internal/config"
	"github.com/fiora-labs/aura-backend/internal/notify"
	"github.com/fiora-labs/aura-backend/internal/repository"
	"github.com/fiora-labs/aura-backend/internal/vision"
	"go.uber.org/zap"
)

type Services struct {
	Auth       *AuthService
	Referral   *ReferralService
	Analysis   *AnalysisService
	Diagnostic *DiagnosticService
}

func NewServices(
	repos *repository.Repositories,
	tx repository.TxManager,
	visionClient vision.Client,
	statusCache *cache.ReferralStatusCache,
	hub *notify.Hub,
	cfg *config.Config,
	log *zap.Logger,
) *Services {
	referral := NewReferralService(repos, tx, statusCache, hub, cfg)

	return &Services{
		Auth:       NewAuthService(repos.User, repos.Session, cfg),
		Referral:   referral,
		Analysis:   NewAnalysisService(repos.Analysis, repos.Diagnostic, referral, visionClient, hub, log, cfg.MaxImageBytes),
		Diagnostic: NewDiagnosticService(repos.Diagnostic),
	}
}
