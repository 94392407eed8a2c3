package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/popsci/internal/api"
	"github.com/jackzampolin/popsci/internal/pipeline"
	"github.com/jackzampolin/popsci/internal/svcctx"
	"github.com/jackzampolin/popsci/internal/task"
)

// MaxIllustrations caps illustration_count on a single request.
const MaxIllustrations = 10

// InterpretRequest is the body of POST /api/paper/interpret.
type InterpretRequest struct {
	URL string `json:"url"`
	// IllustrationCount is nil when omitted; the server default applies.
	IllustrationCount *int   `json:"illustration_count,omitempty"`
	Email             string `json:"email,omitempty"`
}

// InterpretResponse carries the id to poll.
type InterpretResponse struct {
	TaskID string `json:"task_id"`
}

// InterpretEndpoint handles POST /api/paper/interpret.
type InterpretEndpoint struct{}

func (e *InterpretEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/paper/interpret", e.handler
}

func (e *InterpretEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Interpret a paper
//	@Description	Queue a task that turns a paper reference into a popular-science article
//	@Tags			paper
//	@Accept			json
//	@Produce		json
//	@Param			request	body		InterpretRequest	true	"Paper reference"
//	@Success		202		{object}	InterpretResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/paper/interpret [post]
func (e *InterpretEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req InterpretRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if n := req.IllustrationCount; n != nil && (*n < 0 || *n > MaxIllustrations) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("illustration_count must be between 0 and %d", MaxIllustrations))
		return
	}

	runner := svcctx.RunnerFrom(r.Context())
	if runner == nil {
		writeError(w, http.StatusServiceUnavailable, "runner not initialized")
		return
	}

	t, err := runner.Submit(r.Context(), task.Request{
		URL:               req.URL,
		IllustrationCount: req.IllustrationCount,
		Email:             strings.TrimSpace(req.Email),
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrClosed) {
			writeError(w, http.StatusServiceUnavailable, "server is shutting down")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, InterpretResponse{TaskID: t.ID})
}

func (e *InterpretEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		count    int
		email    string
		wait     bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "interpret <url>",
		Short: "Submit a paper for interpretation",
		Long: `Submit a paper reference and print the task id.

Accepted references include arXiv abs/pdf links, DOIs, OpenReview forum
links, Semantic Scholar paper pages and direct PDF links.

With --wait the command polls until the task finishes and prints its
final status.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp InterpretResponse
			req := InterpretRequest{URL: args[0], Email: email}
			if cmd.Flags().Changed("illustrations") {
				req.IllustrationCount = &count
			}
			if err := client.Post(ctx, "/api/paper/interpret", req, &resp); err != nil {
				return err
			}
			if !wait {
				return api.Output(resp)
			}
			status, err := pollStatus(cmd, client, resp.TaskID, interval)
			if err != nil {
				return err
			}
			return api.Output(status)
		},
	}
	cmd.Flags().IntVar(&count, "illustrations", 0, "number of illustrations (default from server config)")
	cmd.Flags().StringVar(&email, "email", "", "contact email for open-access lookups")
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the task finishes")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval with --wait")
	return cmd
}

// StatusResponse is what pollers see for one task.
type StatusResponse struct {
	TaskID       string        `json:"task_id"`
	Status       task.Status   `json:"status"`
	Progress     int           `json:"progress"`
	CurrentStage task.Stage    `json:"current_stage,omitempty"`
	Result       *task.Result  `json:"result,omitempty"`
	Error        *task.Failure `json:"error,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func newStatusResponse(t *task.Task) StatusResponse {
	resp := StatusResponse{
		TaskID:       t.ID,
		Status:       t.Status,
		Progress:     t.Progress,
		CurrentStage: t.CurrentStage,
		Error:        t.Error,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
	if t.Status == task.StatusCompleted {
		resp.Result = t.Result
	}
	return resp
}

// StatusEndpoint handles GET /api/paper/status/{task_id}.
type StatusEndpoint struct{}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/paper/status/{task_id}", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get task status
//	@Description	Poll a task. result is present once completed, error once failed.
//	@Tags			paper
//	@Produce		json
//	@Param			task_id	path		string	true	"Task ID"
//	@Success		200		{object}	StatusResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/paper/status/{task_id} [get]
func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	t, ok := lookupTask(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newStatusResponse(t))
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		wait     bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status <task_id>",
		Short: "Get a task's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if wait {
				status, err := pollStatus(cmd, client, args[0], interval)
				if err != nil {
					return err
				}
				return api.Output(status)
			}
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/api/paper/status/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the task finishes")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval with --wait")
	return cmd
}

// pollStatus polls until the task is terminal, reporting progress on stderr.
func pollStatus(cmd *cobra.Command, client *api.Client, id string, interval time.Duration) (*StatusResponse, error) {
	ctx := cmd.Context()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := -1
	for {
		var resp StatusResponse
		if err := client.Get(ctx, "/api/paper/status/"+url.PathEscape(id), &resp); err != nil {
			return nil, err
		}
		if resp.Progress != last {
			fmt.Fprintf(cmd.ErrOrStderr(), "%3d%% %s\n", resp.Progress, resp.CurrentStage)
			last = resp.Progress
		}
		if resp.Status.Terminal() {
			return &resp, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// lookupTask resolves the {task_id} path value, writing the error response
// itself when the task cannot be returned.
func lookupTask(w http.ResponseWriter, r *http.Request) (*task.Task, bool) {
	id := r.PathValue("task_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "task id is required")
		return nil, false
	}

	tasks := svcctx.TasksFrom(r.Context())
	if tasks == nil {
		writeError(w, http.StatusServiceUnavailable, "task registry not initialized")
		return nil, false
	}

	t, err := tasks.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return t, true
}
