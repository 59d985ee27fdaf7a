package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// HairAnalysis is one completed analysis. Rows are immutable once written;
// the per-user history is read newest first.
//
// Sub-scores are stored exactly as the model reported them, on [0,100]:
// damage and frizz are higher-is-worse and get inverted for display and
// aggregation, the other five are higher-is-better.
type HairAnalysis struct {
	ID     uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID uuid.UUID `json:"userId" gorm:"type:uuid;not null;index"`

	Thickness string `json:"thickness" gorm:"not null"`
	Health    string `json:"health" gorm:"not null"`

	Moisture   float64 `json:"moisture" gorm:"not null"`
	Damage     float64 `json:"damage" gorm:"not null"`
	Texture    float64 `json:"texture" gorm:"not null"`
	Frizz      float64 `json:"frizz" gorm:"not null"`
	Shine      float64 `json:"shine" gorm:"not null"`
	Density    float64 `json:"density" gorm:"not null"`
	Elasticity float64 `json:"elasticity" gorm:"not null"`

	OverallScore int `json:"overallScore" gorm:"not null"`

	Recommendations datatypes.JSON `json:"recommendations"`

	CreatedAt time.Time `json:"createdAt"`
}

// ProductRecommendation is one suggested product inside the
// recommendations payload.
type ProductRecommendation struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Reason   string `json:"reason"`
}

// Recommendations is the advice payload returned by the model and stored
// verbatim alongside the scores.
type Recommendations struct {
	Products   []ProductRecommendation `json:"products"`
	Techniques []string                `json:"techniques"`
	Lifestyle  []string                `json:"lifestyle"`
}
