package api

import (
	"net/http"

	"github.com/fiora-labs/aura-backend/internal/api/handlers"
	"github.com/fiora-labs/aura-backend/internal/api/middleware"
	"github.com/fiora-labs/aura-backend/internal/notify"
	"github.com/fiora-labs/aura-backend/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(services *service.Services, hub *notify.Hub, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)

	authHandler := handlers.NewAuthHandler(services.Auth)
	referralHandler := handlers.NewReferralHandler(services.Referral)
	analysisHandler := handlers.NewAnalysisHandler(services.Analysis)
	diagnosticHandler := handlers.NewDiagnosticHandler(services.Diagnostic)
	wsHandler := handlers.NewWebSocketHandler(hub, services.Auth, log)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(services.Auth))

			r.Get("/auth/me", authHandler.Me)
			r.Post("/auth/logout", authHandler.Logout)

			r.Get("/referral/status", referralHandler.Status)
			r.Post("/referral/code", referralHandler.Code)
			r.Post("/referral/redeem", referralHandler.Redeem)

			r.Post("/analyses", analysisHandler.Analyze)
			r.Get("/analyses", analysisHandler.List)
			r.Get("/analyses/{analysisID}", analysisHandler.Get)

			r.Post("/diagnostic", diagnosticHandler.Submit)
			r.Get("/diagnostic/latest", diagnosticHandler.Latest)
		})
	})

	r.Get("/ws", wsHandler.Handle)

	return r
}
