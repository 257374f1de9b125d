package handlers

import (
	"net/http"

	"github.com/optisaas25/fiscal-engine/internal/httpx"
	"github.com/optisaas25/fiscal-engine/internal/services"
)

// PaymentHandler exposes payment reconciliation over HTTP.
type PaymentHandler struct {
	Reconciler *services.PaymentReconciler
}

func NewPaymentHandler(rec *services.PaymentReconciler) *PaymentHandler {
	return &PaymentHandler{Reconciler: rec}
}

// Apply: POST /documents/{id}/payments
func (h *PaymentHandler) Apply(w http.ResponseWriter, r *http.Request) {
	docID := uintParam(r, "id")
	if docID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var in services.ApplyPaymentInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	p, err := h.Reconciler.Apply(docID, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

// Update: PATCH /payments/{id}
func (h *PaymentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := uintParam(r, "id")
	if id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var in services.UpdatePaymentInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	p, err := h.Reconciler.Update(id, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

// Remove: DELETE /payments/{id}
func (h *PaymentHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id := uintParam(r, "id")
	if id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	if err := h.Reconciler.Remove(id); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
