package api

import (
	"encoding/json"
	"net/http"

	"chronofauna/internal/router"
)

// TasksHandler implements POST /tasks/abort (§6, §5 "abort_current_tasks").
type TasksHandler struct {
	router *router.Router
}

func NewTasksHandler(r *router.Router) *TasksHandler {
	return &TasksHandler{router: r}
}

func (h *TasksHandler) Abort(w http.ResponseWriter, r *http.Request) {
	h.router.AbortCurrentTasks()
	diag := h.router.Diagnostics()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":          true,
		"active_requests":  diag.ActiveRequests,
		"queued_requests":  diag.QueuedRequests,
	})
}
