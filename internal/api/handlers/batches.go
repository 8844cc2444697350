package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nominahq/payslip-service/internal/auth"
	"github.com/nominahq/payslip-service/internal/batch"
	"github.com/nominahq/payslip-service/internal/matcher"
	"github.com/nominahq/payslip-service/internal/models"
	"github.com/nominahq/payslip-service/internal/publication"
	"github.com/nominahq/payslip-service/internal/review"
)

type BatchHandler struct {
	svc   *batch.Service
	pub   *publication.Controller
	queue *review.Queue
}

func NewBatchHandler(svc *batch.Service, pub *publication.Controller, queue *review.Queue) *BatchHandler {
	return &BatchHandler{svc: svc, pub: pub, queue: queue}
}

func (h *BatchHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil { // 64MB max
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file required"})
		return
	}
	defer file.Close()

	b, err := h.svc.CreateBatch(r.Context(), batch.UploadRequest{
		FileName:   header.Filename,
		Data:       file,
		UploadedBy: auth.UserIDFromContext(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, b)
}

func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid batch ID"})
		return
	}

	b, err := h.svc.GetBatch(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

func (h *BatchHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	batches, err := h.svc.ListBatches(r.Context(), auth.UserIDFromContext(r.Context()), limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"batches": batches, "count": len(batches)})
}

// IngestItem is the OCR splitter callback: one detection per split page.
func (h *BatchHandler) IngestItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid batch ID"})
		return
	}

	var req struct {
		SourceRef    string `json:"source_ref"`
		PageNumber   int    `json:"page_number"`
		DetectedDNI  string `json:"detected_dni"`
		DetectedName string `json:"detected_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	item, err := h.svc.IngestItem(r.Context(), id, matcher.Detection{
		SourceRef:    req.SourceRef,
		PageNumber:   req.PageNumber,
		DetectedDNI:  req.DetectedDNI,
		DetectedName: req.DetectedName,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

func (h *BatchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid batch ID"})
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	b, err := h.svc.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

// Revoke pulls back every published item in the batch.
func (h *BatchHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid batch ID"})
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	count, err := h.pub.RevokeBatch(r.Context(), id, req.Reason, actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"revoked_count": count})
}

func (h *BatchHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid batch ID"})
		return
	}

	f := review.Filter{}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := models.ParseItemStatus(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown status " + raw})
			return
		}
		f.Status = &status
	}
	f.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	f.PageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))

	page, err := h.queue.ListItems(r.Context(), id, f)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func actor(r *http.Request) string {
	return auth.UserIDFromContext(r.Context()).String()
}
