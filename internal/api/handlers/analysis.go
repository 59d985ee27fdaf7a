package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fiora-labs/aura-backend/internal/api/middleware"
	"github.com/fiora-labs/aura-backend/internal/domain"
	"github.com/fiora-labs/aura-backend/internal/scoring"
	"github.com/fiora-labs/aura-backend/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type AnalysisHandler struct {
	analysisService *service.AnalysisService
}

func NewAnalysisHandler(analysisService *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analysisService: analysisService}
}

type AnalyzeRequest struct {
	Image string `json:"image"`
}

// DimensionView is one sub-score normalized for display. Ring and Stars
// are already inverted for the higher-is-worse dimensions; Raw is the
// stored model value.
type DimensionView struct {
	Raw   float64 `json:"raw"`
	Ring  int     `json:"ring"`
	Stars float64 `json:"stars"`
}

type AnalysisResponse struct {
	ID              uuid.UUID                `json:"id"`
	Thickness       string                   `json:"thickness"`
	Health          string                   `json:"health"`
	OverallScore    int                      `json:"overallScore"`
	Scores          map[string]DimensionView `json:"scores"`
	Recommendations json.RawMessage          `json:"recommendations"`
	CreatedAt       time.Time                `json:"createdAt"`
}

func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	image, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil || len(image) == 0 {
		http.Error(w, "Image must be base64-encoded", http.StatusBadRequest)
		return
	}

	analysis, err := h.analysisService.Analyze(r.Context(), userID, image)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrImageTooLarge):
			http.Error(w, "Image exceeds the maximum allowed size", http.StatusRequestEntityTooLarge)
		case errors.Is(err, domain.ErrInsufficientCredits):
			http.Error(w, "No analyses available", http.StatusPaymentRequired)
		case errors.Is(err, domain.ErrMalformedModelOutput):
			http.Error(w, "Analysis failed, please try again", http.StatusBadGateway)
		default:
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	writeJSONStatus(w, http.StatusCreated, analysisResponse(analysis))
}

func (h *AnalysisHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	analyses, err := h.analysisService.History(r.Context(), userID, limit, offset)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	out := make([]AnalysisResponse, 0, len(analyses))
	for _, a := range analyses {
		out = append(out, analysisResponse(a))
	}
	writeJSON(w, out)
}

func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	analysisID, err := uuid.Parse(chi.URLParam(r, "analysisID"))
	if err != nil {
		http.Error(w, "Invalid analysis ID", http.StatusBadRequest)
		return
	}

	analysis, err := h.analysisService.Get(r.Context(), userID, analysisID)
	if err != nil {
		if errors.Is(err, domain.ErrAnalysisNotFound) {
			http.Error(w, "Analysis not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, analysisResponse(analysis))
}

func analysisResponse(a *domain.HairAnalysis) AnalysisResponse {
	scores := map[string]DimensionView{}
	for d, raw := range map[scoring.Dimension]float64{
		scoring.Moisture:   a.Moisture,
		scoring.Damage:     a.Damage,
		scoring.Texture:    a.Texture,
		scoring.Frizz:      a.Frizz,
		scoring.Shine:      a.Shine,
		scoring.Density:    a.Density,
		scoring.Elasticity: a.Elasticity,
	} {
		scores[string(d)] = DimensionView{
			Raw:   raw,
			Ring:  scoring.DisplayRing(d, raw),
			Stars: scoring.DisplayStars(d, raw),
		}
	}

	return AnalysisResponse{
		ID:              a.ID,
		Thickness:       a.Thickness,
		Health:          a.Health,
		OverallScore:    a.OverallScore,
		Scores:          scores,
		Recommendations: json.RawMessage(a.Recommendations),
		CreatedAt:       a.CreatedAt,
	}
}
