package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fiora-labs/aura-backend/internal/api/middleware"
	"github.com/fiora-labs/aura-backend/internal/domain"
	"github.com/fiora-labs/aura-backend/internal/service"
)

type ReferralHandler struct {
	referralService *service.ReferralService
}

func NewReferralHandler(referralService *service.ReferralService) *ReferralHandler {
	return &ReferralHandler{referralService: referralService}
}

type RedeemRequest struct {
	Code string `json:"code"`
}

func (h *ReferralHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	status, err := h.referralService.GetStatus(r.Context(), userID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, status)
}

func (h *ReferralHandler) Code(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	code, err := h.referralService.EnsureCode(r.Context(), userID)
	if err != nil {
		writeReferralError(w, err)
		return
	}

	writeJSON(w, code)
}

// referralErrorStatus maps the ledger sentinels to HTTP statuses. Anything
// unrecognized is an internal error.
func referralErrorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrCodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSelfRedemption):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrAlreadyRedeemed), errors.Is(err, domain.ErrDuplicateOwnerRedemption):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCodeExhausted):
		return http.StatusGone
	case errors.Is(err, domain.ErrCodeGenerationExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeReferralError surfaces the sentinel message verbatim; these errors
// are worded for the end user.
func writeReferralError(w http.ResponseWriter, err error) {
	status := referralErrorStatus(err)
	if status == http.StatusInternalServerError {
		http.Error(w, "Internal server error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func (h *ReferralHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.referralService.Redeem(r.Context(), req.Code, userID); err != nil {
		writeReferralError(w, err)
		return
	}

	status, err := h.referralService.GetStatus(r.Context(), userID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, status)
}
