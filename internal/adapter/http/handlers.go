// Package http exposes the workflow manager's public API over HTTP. It is a
// thin boundary: every handler resolves a manager and delegates; no
// scheduling or state-machine logic lives here.
package http

import (
	"net/http"
	"time"

	"github.com/planwright/planwright/internal/adapter/ws"
	"github.com/planwright/planwright/internal/domain/task"
	"github.com/planwright/planwright/internal/executor"
	"github.com/planwright/planwright/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Registry    *service.Registry
	Executor    *executor.Executor
	Hub         *ws.Hub
	StopTimeout time.Duration
}

type createPlanRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type blockTaskRequest struct {
	Reason string `json:"reason"`
}

type completeTaskRequest struct {
	Notes   string         `json:"notes"`
	Outputs map[string]any `json:"outputs,omitempty"`
}

func (h *Handlers) manager(w http.ResponseWriter, r *http.Request) (*service.Manager, bool) {
	mgr, err := h.Registry.Open(r.Context(), urlParam(r, "handle"))
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	return mgr, true
}

// CreatePlan handles POST /api/workflows/{handle}/plan.
func (h *Handlers) CreatePlan(w http.ResponseWriter, r *http.Request) {
	mgr, ok := h.manager(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[createPlanRequest](w, r)
	if !ok {
		return
	}

	p, err := mgr.CreatePlan(r.Context(), req.Name, req.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetPlan handles GET /api/workflows/{handle}/plan.
func (h *Handlers) GetPlan(w http.ResponseWriter, r *http.Request) {
	mgr, ok := h.manager(w, r)
	if !ok {
		return
	}
	p := mgr.GetCurrentPlan()
	if p == nil {
		writeError(w, http.StatusNotFound, "no active plan")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// History handles GET /api/workflows/{handle}/history.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	mgr, ok := h.manager(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, mgr.History())
}

// ArchivePlan handles POST /api/workflows/{handle}/plan/{id}/archive.
func (h *Handlers) ArchivePlan(w http.ResponseWriter, r *http.Request) {
	mgr, ok := h.manager(w, r)
	if !ok {
		return
	}
	if err := mgr.ArchivePlan(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

// DeletePlan handles DELETE /api/workflows/{handle}/plan/{id}.
func (h *Handlers) DeletePlan(w http.ResponseWriter, r *http.Request) {
	mgr, ok := h.manager(w, r)
	if !ok {
		return
	}
	if err := mgr.DeletePlan(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddTask handles POST /api/workflows/{handle}/tasks.
func (h *Handlers) AddTask(w http.ResponseWriter, r *http.Request) {
	mgr, ok := h.manager(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[task.CreateRequest](w, r)
	if !ok {
		return
	}

	t, err := mgr.AddTask(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// StartTask handles POST /api/workflows/{handle}/tasks/{id}/start.
func (h *Handlers) StartTask(w http.ResponseWriter, r *http.Request) {
	mgr, ok := h.manager(w, r)
	if !ok {
		return
	}
	if err := mgr.StartTask(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "in_progress"})
}

// CompleteTask handles POST /api/workflows/{handle}/tasks/{id}/complete.
func (h *Handlers) CompleteTask(w http.ResponseWriter, r *http.Request) {
	mgr, ok := h.manager(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[completeTaskRequest](w, r)
	if !ok {
		return
	}
	if err := mgr.CompleteTask(r.Context(), urlParam(r, "id"), req.Notes, req.Outputs); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// BlockTask handles POST /api/workflows/{handle}/tasks/{id}/block.
func (h *Handlers) BlockTask(w http.ResponseWriter, r *http.Request) {
	mgr, ok := h.manager(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[blockTaskRequest](w, r)
	if !ok {
		return
	}
	if err := mgr.BlockTask(r.Context(), urlParam(r, "id"), req.Reason); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "blocked"})
}

// CancelTask handles POST /api/workflows/{handle}/tasks/{id}/cancel.
func (h *Handlers) CancelTask(w http.ResponseWriter, r *http.Request) {
	mgr, ok := h.manager(w, r)
	if !ok {
		return
	}
	if err := mgr.CancelTask(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// RequeueTask handles POST /api/workflows/{handle}/tasks/{id}/requeue.
func (h *Handlers) RequeueTask(w http.ResponseWriter, r *http.Request) {
	mgr, ok := h.manager(w, r)
	if !ok {
		return
	}
	if err := mgr.RequeueTask(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "pending"})
}

// Status handles GET /api/workflows/{handle}/status.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	mgr, ok := h.manager(w, r)
	if !ok {
		return
	}
	st, err := mgr.Status(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ExecutorState handles GET /api/executor.
func (h *Handlers) ExecutorState(w http.ResponseWriter, r *http.Request) {
	if h.Executor == nil {
		writeError(w, http.StatusNotFound, "no executor configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state": h.Executor.State(),
		"stats": h.Executor.Stats(),
	})
}

// ExecutorStart handles POST /api/executor/start.
func (h *Handlers) ExecutorStart(w http.ResponseWriter, r *http.Request) {
	if h.Executor == nil {
		writeError(w, http.StatusNotFound, "no executor configured")
		return
	}
	if err := h.Executor.Start(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": h.Executor.State()})
}

// ExecutorStop handles POST /api/executor/stop.
func (h *Handlers) ExecutorStop(w http.ResponseWriter, r *http.Request) {
	if h.Executor == nil {
		writeError(w, http.StatusNotFound, "no executor configured")
		return
	}
	timeout := h.StopTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if err := h.Executor.Stop(timeout); err != nil {
		writeError(w, http.StatusGatewayTimeout, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": h.Executor.State()})
}

// ExecutorPause handles POST /api/executor/pause.
func (h *Handlers) ExecutorPause(w http.ResponseWriter, r *http.Request) {
	if h.Executor == nil {
		writeError(w, http.StatusNotFound, "no executor configured")
		return
	}
	h.Executor.Pause()
	writeJSON(w, http.StatusOK, map[string]any{"state": h.Executor.State()})
}

// ExecutorResume handles POST /api/executor/resume.
func (h *Handlers) ExecutorResume(w http.ResponseWriter, r *http.Request) {
	if h.Executor == nil {
		writeError(w, http.StatusNotFound, "no executor configured")
		return
	}
	h.Executor.Resume()
	writeJSON(w, http.StatusOK, map[string]any{"state": h.Executor.State()})
}

// Healthz handles GET /healthz.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
