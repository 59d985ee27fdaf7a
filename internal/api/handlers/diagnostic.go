package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/fiora-labs/aura-backend/internal/api/middleware"
	"github.com/fiora-labs/aura-backend/internal/service"
)

type DiagnosticHandler struct {
	diagnosticService *service.DiagnosticService
}

func NewDiagnosticHandler(diagnosticService *service.DiagnosticService) *DiagnosticHandler {
	return &DiagnosticHandler{diagnosticService: diagnosticService}
}

type DiagnosticRequest struct {
	Answers map[string]string `json:"answers"`
}

func (h *DiagnosticHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req DiagnosticRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Answers) == 0 {
		http.Error(w, "Answers are required", http.StatusBadRequest)
		return
	}

	result, err := h.diagnosticService.Save(r.Context(), userID, req.Answers)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, http.StatusCreated, result)
}

func (h *DiagnosticHandler) Latest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	result, err := h.diagnosticService.Latest(r.Context(), userID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if result == nil {
		http.Error(w, "No diagnostic submitted", http.StatusNotFound)
		return
	}

	writeJSON(w, result)
}
