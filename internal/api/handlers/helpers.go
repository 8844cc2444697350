package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nominahq/payslip-service/internal/batch"
	"github.com/nominahq/payslip-service/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeDomainError maps service errors onto HTTP statuses: validation 400,
// missing resources 404, state-machine conflicts 409 (with the current
// status so the UI can refresh), collaborator outages 502.
func writeDomainError(w http.ResponseWriter, err error) {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Error(), "field": ve.Field})
		return
	}

	var gv *models.GuardViolation
	if errors.As(err, &gv) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":          gv.Error(),
			"current_status": string(gv.Current),
		})
		return
	}

	if errors.Is(err, models.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if errors.Is(err, batch.ErrBatchCancelled) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "batch cancelled"})
		return
	}

	var ce *models.CollaboratorError
	if errors.As(err, &ce) {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": ce.Error(), "system": ce.System})
		return
	}

	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
