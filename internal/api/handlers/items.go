package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nominahq/payslip-service/internal/audit"
	"github.com/nominahq/payslip-service/internal/batch"
	"github.com/nominahq/payslip-service/internal/cache"
	"github.com/nominahq/payslip-service/internal/models"
	"github.com/nominahq/payslip-service/internal/publication"
	"github.com/nominahq/payslip-service/internal/review"
	"github.com/nominahq/payslip-service/internal/storage"
)

type ItemHandler struct {
	svc      *batch.Service
	queue    *review.Queue
	pub      *publication.Controller
	trail    *audit.Trail
	store    storage.Store
	previews *cache.PreviewURLs
	bucket   string
	ttl      time.Duration
}

func NewItemHandler(svc *batch.Service, queue *review.Queue, pub *publication.Controller, trail *audit.Trail, store storage.Store, previews *cache.PreviewURLs, bucket string, previewTTL time.Duration) *ItemHandler {
	return &ItemHandler{
		svc:      svc,
		queue:    queue,
		pub:      pub,
		trail:    trail,
		store:    store,
		previews: previews,
		bucket:   bucket,
		ttl:      previewTTL,
	}
}

func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	item, err := h.svc.GetItem(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	var req struct {
		EmployeeID uuid.UUID `json:"employee_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EmployeeID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "employee_id required"})
		return
	}

	item, err := h.queue.Assign(r.Context(), id, req.EmployeeID, actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) Skip(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	item, err := h.queue.Skip(r.Context(), id, req.Reason, actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// SkipMany discards a whole selection in one call. Partial success is the
// contract: the response lists per-id outcomes.
func (h *ItemHandler) SkipMany(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemIDs []uuid.UUID `json:"item_ids"`
		Reason  string      `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.ItemIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "item_ids required"})
		return
	}

	result, err := h.queue.SkipMany(r.Context(), req.ItemIDs, req.Reason, actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *ItemHandler) Publish(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	item, err := h.pub.Publish(r.Context(), id, actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	item, err := h.pub.Revoke(r.Context(), id, req.Reason, actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	item, err := h.svc.Resubmit(r.Context(), id, actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.previews.Invalidate(r.Context(), id)

	writeJSON(w, http.StatusOK, item)
}

// Events returns the item's transition history, oldest first.
func (h *ItemHandler) Events(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	if _, err := h.svc.GetItem(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	events, err := h.trail.ItemHistory(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events, "count": len(events)})
}

// Preview redirects to a signed URL for the item's split page. URLs are
// cached just under the signature lifetime.
func (h *ItemHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	if url := h.previews.Get(r.Context(), id); url != "" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}

	item, err := h.svc.GetItem(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	url, err := h.store.SignedPreviewURL(r.Context(), h.bucket, item.SourceRef, h.ttl)
	if err != nil {
		writeDomainError(w, &models.CollaboratorError{System: "storage", Err: err})
		return
	}
	h.previews.Set(r.Context(), id, url)

	http.Redirect(w, r, url, http.StatusFound)
}

func itemID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return uuid.Nil, false
	}
	return id, true
}
