package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/optisaas25/fiscal-engine/internal/httpx"
	"github.com/optisaas25/fiscal-engine/internal/models"
	"github.com/optisaas25/fiscal-engine/internal/services"
	"github.com/optisaas25/fiscal-engine/internal/store"
)

// DocumentHandler exposes the document lifecycle over HTTP.
type DocumentHandler struct {
	Store  *store.DocumentStore
	Engine *services.LifecycleEngine
}

func NewDocumentHandler(s *store.DocumentStore, engine *services.LifecycleEngine) *DocumentHandler {
	return &DocumentHandler{Store: s, Engine: engine}
}

// List: GET /documents?center=..&type=..&status=..&client=..&page=..&limit=..
// Center scoping is fail-closed: no center parameter means an empty result.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	f := store.DocumentFilter{
		CenterID: uintQuery(r, "center"),
		Type:     models.DocumentType(r.URL.Query().Get("type")),
		Status:   models.DocumentStatus(r.URL.Query().Get("status")),
		ClientID: uintQuery(r, "client"),
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	f.Limit = limit
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			f.Offset = (n - 1) * limit
		}
	}
	docs, total, err := h.Store.ListDocuments(f)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_documents", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": docs, "total": total, "limit": limit, "offset": f.Offset})
}

// Create: POST /documents
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.CreateDocumentInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	doc, err := h.Engine.CreateDocument(in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

// Get: GET /documents/{id}
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := uintParam(r, "id")
	if id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	doc, err := h.Store.GetDocument(id)
	if err == store.ErrNotFound {
		httpx.JSONError(w, http.StatusNotFound, "document_not_found", nil)
		return
	}
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_document", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

// UpdateStatus: PATCH /documents/{id}/status. Targeting VALID on a draft runs
// the promotion protocol; the response is the new official document, which is
// the object of record from then on.
func (h *DocumentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := uintParam(r, "id")
	if id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var req struct {
		Status models.DocumentStatus `json:"status"`
	}
	if err := httpx.Decode(r, &req); err != nil || req.Status == "" {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	doc, err := h.Engine.UpdateStatus(id, req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

// Delete: DELETE /documents/{id}. The response is a discriminated outcome:
// {"action":"DELETED"} or {"action":"CREDIT_NOTE_CREATED","credit_note":{...}}.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := uintParam(r, "id")
	if id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	outcome, err := h.Engine.Delete(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, outcome)
}

// SweepDrafts: POST /maintenance/sweep-drafts
func (h *DocumentHandler) SweepDrafts(w http.ResponseWriter, r *http.Request) {
	swept, err := h.Engine.SweepStaleDrafts()
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "sweep_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"swept": swept})
}

func uintParam(r *http.Request, name string) uint {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || n <= 0 {
		return 0
	}
	return uint(n)
}

func uintQuery(r *http.Request, name string) uint {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n <= 0 {
		return 0
	}
	return uint(n)
}
