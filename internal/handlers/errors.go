package handlers

import (
	"errors"
	"net/http"

	"github.com/optisaas25/fiscal-engine/internal/httpx"
	"github.com/optisaas25/fiscal-engine/internal/services"
)

// writeServiceError maps engine errors onto HTTP responses. Continuity and
// guard violations carry their human-readable reason in the details field.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case services.IsNotFound(err):
		httpx.JSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, services.ErrEmptyDocument):
		httpx.JSONError(w, http.StatusBadRequest, "empty_document", nil)
	case errors.Is(err, services.ErrInvalidAmount):
		httpx.JSONError(w, http.StatusBadRequest, "invalid_amount", nil)
	case errors.Is(err, services.ErrAmountExceedsBalance):
		httpx.JSONError(w, http.StatusUnprocessableEntity, "amount_exceeds_balance", err.Error())
	case errors.Is(err, services.ErrDocumentCancelled):
		httpx.JSONError(w, http.StatusConflict, "document_cancelled", nil)
	case services.IsConflict(err):
		httpx.JSONError(w, http.StatusConflict, "fiscal_guard", err.Error())
	default:
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
