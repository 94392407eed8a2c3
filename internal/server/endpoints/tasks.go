package endpoints

import (
	"errors"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/popsci/internal/api"
	"github.com/jackzampolin/popsci/internal/svcctx"
	"github.com/jackzampolin/popsci/internal/task"
)

// ListTasksResponse wraps a page of task statuses, newest first.
type ListTasksResponse struct {
	Tasks []StatusResponse `json:"tasks"`
}

// ListTasksEndpoint handles GET /api/paper/tasks.
type ListTasksEndpoint struct{}

func (e *ListTasksEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/paper/tasks", e.handler
}

func (e *ListTasksEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List tasks
//	@Tags			paper
//	@Produce		json
//	@Param			status	query		string	false	"Filter by status"
//	@Param			limit	query		int		false	"Max results (default 100)"
//	@Success		200		{object}	ListTasksResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/paper/tasks [get]
func (e *ListTasksEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	tasks := svcctx.TasksFrom(r.Context())
	if tasks == nil {
		writeError(w, http.StatusServiceUnavailable, "task registry not initialized")
		return
	}

	filter := task.ListFilter{Status: task.Status(r.URL.Query().Get("status"))}
	switch filter.Status {
	case "", task.StatusQueued, task.StatusRunning, task.StatusCompleted, task.StatusFailed:
	default:
		writeError(w, http.StatusBadRequest, "unknown status: "+string(filter.Status))
		return
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	list, err := tasks.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := ListTasksResponse{Tasks: make([]StatusResponse, len(list))}
	for i, t := range list {
		resp.Tasks[i] = newStatusResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListTasksEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if status != "" {
				q.Set("status", status)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			p := "/api/paper/tasks"
			if len(q) > 0 {
				p += "?" + q.Encode()
			}
			client := api.NewClient(getServerURL())
			var resp ListTasksResponse
			if err := client.Get(cmd.Context(), p, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (queued, running, completed, failed)")
	cmd.Flags().IntVar(&limit, "limit", 0, "max results")
	return cmd
}

// DeleteTaskEndpoint handles DELETE /api/paper/tasks/{task_id}.
type DeleteTaskEndpoint struct{}

func (e *DeleteTaskEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/paper/tasks/{task_id}", e.handler
}

func (e *DeleteTaskEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Delete a finished task
//	@Description	Remove a completed or failed task and its artifacts
//	@Tags			paper
//	@Param			task_id	path	string	true	"Task ID"
//	@Success		204
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Router			/api/paper/tasks/{task_id} [delete]
func (e *DeleteTaskEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	t, ok := lookupTask(w, r)
	if !ok {
		return
	}
	if !t.Status.Terminal() {
		writeError(w, http.StatusConflict, "task is still "+string(t.Status))
		return
	}

	if err := svcctx.TasksFrom(r.Context()).Delete(r.Context(), t.ID); err != nil && !errors.Is(err, task.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if dir := svcctx.TaskDirFrom(r.Context(), t.ID); dir != "" {
		if err := os.RemoveAll(dir); err != nil {
			if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
				logger.Warn("failed to remove task directory", "task_id", t.ID, "error", err)
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *DeleteTaskEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task_id>",
		Short: "Delete a finished task and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			return client.Delete(cmd.Context(), "/api/paper/tasks/"+url.PathEscape(args[0]))
		},
	}
}
