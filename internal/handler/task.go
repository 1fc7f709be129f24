package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/evotodo/evotodo/internal/auth"
	"github.com/evotodo/evotodo/internal/handler/dto"
	"github.com/evotodo/evotodo/internal/middleware"
	"github.com/evotodo/evotodo/internal/model"
	"github.com/evotodo/evotodo/internal/service"
)

// TaskHandler handles HTTP requests for task operations.
// All routes sit behind the auth middleware, so an identity is always
// present in the request context.
type TaskHandler struct {
	svc    *service.TaskService
	logger *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(svc *service.TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/v1/tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	var req dto.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	task, err := h.svc.CreateTask(r.Context(), identity, service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("task_created",
		"task_id", task.ID,
		"subject", identity.SubjectID,
	)

	writeJSON(w, http.StatusCreated, dto.ToTaskResponse(task))
}

// List handles GET /api/v1/tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	tasks, err := h.svc.ListTasks(r.Context(), identity)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToTaskListResponse(tasks))
}

// Get handles GET /api/v1/tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	taskID, ok := taskIDParam(w, r)
	if !ok {
		return
	}

	task, err := h.svc.GetTask(r.Context(), identity, taskID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToTaskResponse(task))
}

// Update handles PUT /api/v1/tasks/{id}.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	taskID, ok := taskIDParam(w, r)
	if !ok {
		return
	}

	var req dto.UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	task, err := h.svc.UpdateTask(r.Context(), identity, taskID, model.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("task_updated",
		"task_id", task.ID,
		"subject", identity.SubjectID,
	)

	writeJSON(w, http.StatusOK, dto.ToTaskResponse(task))
}

// Delete handles DELETE /api/v1/tasks/{id}.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	taskID, ok := taskIDParam(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteTask(r.Context(), identity, taskID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("task_deleted",
		"task_id", taskID,
		"subject", identity.SubjectID,
	)

	w.WriteHeader(http.StatusNoContent)
}

// ToggleComplete handles PATCH /api/v1/tasks/{id}/complete.
func (h *TaskHandler) ToggleComplete(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	taskID, ok := taskIDParam(w, r)
	if !ok {
		return
	}

	task, err := h.svc.ToggleComplete(r.Context(), identity, taskID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToTaskResponse(task))
}

// taskIDParam parses the {id} route parameter. A non-numeric id names
// a resource that cannot exist, so it reads as not found.
func taskIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Task not found")
		return 0, false
	}
	return id, true
}

// handleServiceError maps service errors to HTTP responses. Ownership
// denials stay deliberately vague: the body never names the owner or
// confirms anything beyond "not yours".
func (h *TaskHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Task not found")
	case errors.Is(err, service.ErrTaskForbidden):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Access denied")
	case errors.Is(err, service.ErrTitleRequired):
		writeFieldError(w, "title", "Title must not be empty")
	case errors.Is(err, service.ErrTitleTooLong):
		writeFieldError(w, "title", "Title must be at most 200 characters")
	case errors.Is(err, service.ErrDescriptionTooLong):
		writeFieldError(w, "description", "Description must be at most 1000 characters")
	case errors.Is(err, service.ErrStoreUnavailable):
		h.logger.Error("store_unavailable",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "A database error occurred. Please try again later.")
	default:
		h.logger.Error("internal_error",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred.")
	}
}

// writeFieldError writes a 400 validation error naming the offending field.
func writeFieldError(w http.ResponseWriter, field, message string) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
		Error: dto.ErrorDetail{
			Code:    "VALIDATION_ERROR",
			Message: message,
			Field:   field,
		},
	})
}
