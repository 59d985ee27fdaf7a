package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fiora-labs/aura-backend/internal/domain"
	"github.com/fiora-labs/aura-backend/internal/notify"
	"github.com/fiora-labs/aura-backend/internal/repository"
	"github.com/fiora-labs/aura-backend/internal/scoring"
	"github.com/fiora-labs/aura-backend/internal/vision"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AnalysisService runs the photo-analysis workflow: consume a credit,
// ask the vision model for a structured assessment, aggregate the
// sub-scores, persist the result, and notify the user's live socket.
type AnalysisService struct {
	analysisRepo  repository.AnalysisRepository
	diagRepo      repository.DiagnosticRepository
	referral      *ReferralService
	vision        vision.Client
	hub           *notify.Hub
	log           *zap.Logger
	maxImageBytes int64
}

func NewAnalysisService(
	analysisRepo repository.AnalysisRepository,
	diagRepo repository.DiagnosticRepository,
	referral *ReferralService,
	visionClient vision.Client,
	hub *notify.Hub,
	log *zap.Logger,
	maxImageBytes int64,
) *AnalysisService {
	return &AnalysisService{
		analysisRepo:  analysisRepo,
		diagRepo:      diagRepo,
		referral:      referral,
		vision:        visionClient,
		hub:           hub,
		log:           log,
		maxImageBytes: maxImageBytes,
	}
}

func (s *AnalysisService) Analyze(ctx context.Context, userID uuid.UUID, image []byte) (*domain.HairAnalysis, error) {
	if int64(len(image)) > s.maxImageBytes {
		return nil, domain.ErrImageTooLarge
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image payload")
	}

	// Take the credit up front with a conditional decrement; a failure
	// anywhere past this point refunds it so the user never pays for a
	// bad model response.
	if err := s.referral.ConsumeCredit(ctx, userID); err != nil {
		return nil, err
	}

	analysis, err := s.runAnalysis(ctx, userID, image)
	if err != nil {
		if refundErr := s.referral.RefundCredit(ctx, userID); refundErr != nil {
			s.log.Error("failed to refund analysis credit",
				zap.String("userId", userID.String()),
				zap.Error(refundErr),
			)
		}
		return nil, err
	}

	if s.hub != nil {
		s.hub.Publish(userID, notify.EventAnalysisCompleted, map[string]interface{}{
			"id":           analysis.ID,
			"overallScore": analysis.OverallScore,
		})
	}

	return analysis, nil
}

func (s *AnalysisService) runAnalysis(ctx context.Context, userID uuid.UUID, image []byte) (*domain.HairAnalysis, error) {
	diag, err := s.diagRepo.GetLatestByUser(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	raw, err := s.vision.AnalyzeImage(ctx, image, buildPrompt(diag))
	if err != nil {
		return nil, err
	}

	parsed, err := parseModelOutput(raw)
	if err != nil {
		s.log.Warn("malformed model output",
			zap.String("userId", userID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	rawScores := scoring.Scores{
		Moisture:   parsed.Scores.Moisture,
		Damage:     parsed.Scores.Damage,
		Texture:    parsed.Scores.Texture,
		Frizz:      parsed.Scores.Frizz,
		Shine:      parsed.Scores.Shine,
		Density:    parsed.Scores.Density,
		Elasticity: parsed.Scores.Elasticity,
	}

	recommendations, err := json.Marshal(parsed.Recommendations)
	if err != nil {
		return nil, err
	}

	analysis := &domain.HairAnalysis{
		ID:              uuid.New(),
		UserID:          userID,
		Thickness:       parsed.Thickness,
		Health:          parsed.Health,
		Moisture:        clampScore(rawScores.Moisture),
		Damage:          clampScore(rawScores.Damage),
		Texture:         clampScore(rawScores.Texture),
		Frizz:           clampScore(rawScores.Frizz),
		Shine:           clampScore(rawScores.Shine),
		Density:         clampScore(rawScores.Density),
		Elasticity:      clampScore(rawScores.Elasticity),
		OverallScore:    scoring.OverallFromRaw(rawScores),
		Recommendations: datatypes.JSON(recommendations),
		CreatedAt:       time.Now(),
	}

	if err := s.analysisRepo.Create(ctx, analysis); err != nil {
		return nil, err
	}

	return analysis, nil
}

func (s *AnalysisService) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.HairAnalysis, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.analysisRepo.ListByUser(ctx, userID, limit, offset)
}

func (s *AnalysisService) Get(ctx context.Context, userID, analysisID uuid.UUID) (*domain.HairAnalysis, error) {
	analysis, err := s.analysisRepo.GetByID(ctx, analysisID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAnalysisNotFound
		}
		return nil, err
	}
	if analysis.UserID != userID {
		return nil, domain.ErrAnalysisNotFound
	}
	return analysis, nil
}

type modelScores struct {
	Moisture   *float64 `json:"moisture"`
	Damage     *float64 `json:"damage"`
	Texture    *float64 `json:"texture"`
	Frizz      *float64 `json:"frizz"`
	Shine      *float64 `json:"shine"`
	Density    *float64 `json:"density"`
	Elasticity *float64 `json:"elasticity"`
}

type modelOutput struct {
	Thickness       string                 `json:"thickness"`
	Health          string                 `json:"health"`
	Scores          modelScores            `json:"scores"`
	Recommendations domain.Recommendations `json:"recommendations"`
}

type parsedOutput struct {
	Thickness       string
	Health          string
	Scores          scoring.Scores
	Recommendations domain.Recommendations
}

// parseModelOutput extracts the JSON object from the model's free-text
// reply. The model frequently wraps the object in a fenced code block or
// surrounds it with prose; both are stripped. Anything that does not
// contain a complete object with all required fields surfaces as
// ErrMalformedModelOutput.
func parseModelOutput(raw string) (*parsedOutput, error) {
	body := stripCodeFences(raw)

	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in response", domain.ErrMalformedModelOutput)
	}

	var out modelOutput
	if err := json.Unmarshal([]byte(body[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedModelOutput, err)
	}

	if strings.TrimSpace(out.Thickness) == "" || strings.TrimSpace(out.Health) == "" {
		return nil, fmt.Errorf("%w: missing thickness or health label", domain.ErrMalformedModelOutput)
	}

	missing := missingScores(out.Scores)
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing scores %s", domain.ErrMalformedModelOutput, strings.Join(missing, ", "))
	}

	return &parsedOutput{
		Thickness: strings.ToLower(strings.TrimSpace(out.Thickness)),
		Health:    strings.ToLower(strings.TrimSpace(out.Health)),
		Scores: scoring.Scores{
			Moisture:   *out.Scores.Moisture,
			Damage:     *out.Scores.Damage,
			Texture:    *out.Scores.Texture,
			Frizz:      *out.Scores.Frizz,
			Shine:      *out.Scores.Shine,
			Density:    *out.Scores.Density,
			Elasticity: *out.Scores.Elasticity,
		},
		Recommendations: out.Recommendations,
	}, nil
}

func missingScores(s modelScores) []string {
	var missing []string
	for name, v := range map[string]*float64{
		"moisture":   s.Moisture,
		"damage":     s.Damage,
		"texture":    s.Texture,
		"frizz":      s.Frizz,
		"shine":      s.Shine,
		"density":    s.Density,
		"elasticity": s.Elasticity,
	} {
		if v == nil {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func buildPrompt(diag *domain.DiagnosticResult) string {
	var b strings.Builder

	b.WriteString(`Analyze the hair in this photo and reply with a single JSON object, no other text, in exactly this shape:
{
  "thickness": "fine" | "medium" | "thick",
  "health": "poor" | "fair" | "good" | "excellent",
  "scores": {
    "moisture": 0-100,
    "damage": 0-100,
    "texture": 0-100,
    "frizz": 0-100,
    "shine": 0-100,
    "density": 0-100,
    "elasticity": 0-100
  },
  "recommendations": {
    "products": [{"category": "...", "name": "...", "reason": "..."}],
    "techniques": ["..."],
    "lifestyle": ["..."]
  }
}
For damage and frizz a higher number means a worse condition; for every other score a higher number means a better condition.
Give three product recommendations and at least two techniques and two lifestyle tips, all specific and actionable.`)

	if diag != nil {
		var answers map[string]string
		if err := json.Unmarshal(diag.Answers, &answers); err == nil && len(answers) > 0 {
			b.WriteString("\n\nThe user reported the following about their hair routine:\n")
			questions := make([]string, 0, len(answers))
			for q := range answers {
				questions = append(questions, q)
			}
			sort.Strings(questions)
			for _, q := range questions {
				fmt.Fprintf(&b, "- %s %s\n", q, answers[q])
			}
			b.WriteString("Take this into account when scoring and recommending.")
		}
	}

	return b.String()
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
