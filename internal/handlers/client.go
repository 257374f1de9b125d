package handlers

import (
	"net/http"

	"github.com/optisaas25/fiscal-engine/internal/httpx"
	"github.com/optisaas25/fiscal-engine/internal/services"
)

// ClientHandler exposes the client deletion guard. Client CRUD belongs to the
// client collaborator; only the fiscally sensitive removal runs through the
// engine.
type ClientHandler struct {
	Engine *services.LifecycleEngine
}

func NewClientHandler(engine *services.LifecycleEngine) *ClientHandler {
	return &ClientHandler{Engine: engine}
}

// Delete: DELETE /clients/{id}
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := uintParam(r, "id")
	if id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	if err := h.Engine.DeleteClient(id); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
