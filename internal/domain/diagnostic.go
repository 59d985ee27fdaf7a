package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DiagnosticResult holds one submission of the onboarding questionnaire:
// a question-text to selected-option mapping. Immutable; the most recent
// row per user is treated as canonical and fed into the next analysis
// prompt as context.
type DiagnosticResult struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    uuid.UUID      `json:"userId" gorm:"type:uuid;not null;index"`
	Answers   datatypes.JSON `json:"answers" gorm:"not null"`
	CreatedAt time.Time      `json:"createdAt"`
}
