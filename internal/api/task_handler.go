package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/tasktrack/internal/api/shared"
	"github.com/phrazzld/tasktrack/internal/platform/logger"
	"github.com/phrazzld/tasktrack/internal/service"
)

// TaskHandler handles task HTTP requests
type TaskHandler struct {
	tasks  service.TaskService
	logger *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(tasks service.TaskService, log *slog.Logger) *TaskHandler {
	if tasks == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("task service cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &TaskHandler{
		tasks:  tasks,
		logger: log.With(slog.String("component", "task_handler")),
	}
}

// Routes mounts the task endpoints on r.
func (h *TaskHandler) Routes(r chi.Router) {
	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", h.CreateTask)
		r.Get("/", h.ListTasks)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetTask)
			r.Put("/", h.UpdateTask)
			r.Patch("/", h.UpdateTask)
			r.Delete("/", h.DeleteTask)
			r.Post("/process", h.StartProcessing)
			r.Post("/cancel", h.CancelProcessing)
		})
	})
}

// CreateTask handles POST /tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleValidationError(w, r, err)
		return
	}

	input := service.CreateTaskInput{Title: req.Title, Priority: req.Priority}
	if req.Description != nil {
		input.Description = *req.Description
	}

	created, err := h.tasks.CreateTask(r.Context(), input)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, taskToResponse(created))
}

// ListTasks handles GET /tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListQuery(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	tasks, err := h.tasks.ListTasks(r.Context(), filter)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to fetch tasks")
		return
	}

	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskToResponse(t))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, out)
}

// GetTask handles GET /tasks/{id}
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	found, err := h.tasks.GetTask(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to fetch task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToDetailResponse(found))
}

// UpdateTask handles PUT and PATCH /tasks/{id}
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req UpdateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleValidationError(w, r, err)
		return
	}

	updated, err := h.tasks.UpdateTask(r.Context(), id, req.Patch())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(updated))
}

// DeleteTask handles DELETE /tasks/{id}
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.tasks.DeleteTask(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete task")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StartProcessing handles POST /tasks/{id}/process
func (h *TaskHandler) StartProcessing(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	job, err := h.tasks.StartProcessing(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to start background processing")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Debug("processing accepted",
		slog.String("task_id", id.String()),
		slog.String("job_id", job.ID().String()))
	shared.RespondWithJSON(w, r, http.StatusAccepted, jobToResponse("Task processing started", job))
}

// CancelProcessing handles POST /tasks/{id}/cancel
func (h *TaskHandler) CancelProcessing(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	job, err := h.tasks.CancelProcessing(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to cancel processing")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, jobToResponse("Task processing cancellation requested", job))
}
