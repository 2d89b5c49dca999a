package api

import (
	"time"

	"github.com/phrazzld/tasktrack/internal/domain"
	"github.com/phrazzld/tasktrack/internal/task"
)

// CreateTaskRequest is the body of POST /tasks.
type CreateTaskRequest struct {
	Title       string  `json:"title"       validate:"required,max=255"`
	Description *string `json:"description"`
	Priority    int     `json:"priority"    validate:"required,min=1,max=10"`
}

// UpdateTaskRequest is the body of PUT and PATCH /tasks/{id}. Absent or
// null fields are left unchanged.
type UpdateTaskRequest struct {
	Title       *string `json:"title"       validate:"omitempty,max=255"`
	Description *string `json:"description"`
	Status      *string `json:"status"      validate:"omitempty,oneof=pending in_progress completed"`
	Priority    *int    `json:"priority"    validate:"omitempty,min=1,max=10"`
}

// Patch converts the request into a domain patch.
func (r UpdateTaskRequest) Patch() domain.TaskPatch {
	patch := domain.TaskPatch{
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
	}
	if r.Status != nil {
		status := domain.TaskStatus(*r.Status)
		patch.Status = &status
	}
	return patch
}

// TaskResponse is a task without its history.
type TaskResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    int       `json:"priority"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskLogResponse is one status history entry.
type TaskLogResponse struct {
	ID        int64     `json:"id"`
	TaskID    string    `json:"task_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskDetailResponse is a task with its ordered status history.
type TaskDetailResponse struct {
	TaskResponse
	Logs []TaskLogResponse `json:"logs"`
}

// ProcessingResponse acknowledges a processing request.
type ProcessingResponse struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
	JobID   string `json:"job_id"`
}

func taskToResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func taskToDetailResponse(t *domain.Task) TaskDetailResponse {
	logs := make([]TaskLogResponse, 0, len(t.Logs))
	for _, l := range t.Logs {
		logs = append(logs, TaskLogResponse{
			ID:        l.ID,
			TaskID:    l.TaskID.String(),
			Status:    string(l.Status),
			CreatedAt: l.CreatedAt,
		})
	}
	return TaskDetailResponse{TaskResponse: taskToResponse(t), Logs: logs}
}

func jobToResponse(message string, job *task.Job) ProcessingResponse {
	return ProcessingResponse{
		Message: message,
		TaskID:  job.TaskID().String(),
		JobID:   job.ID().String(),
	}
}
