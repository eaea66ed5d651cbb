package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"talentops/internal/domain"
	"talentops/internal/engine"
	"talentops/internal/repo"
	"talentops/internal/router"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	Router   router.Router
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"forbidden"`
	Message string         `json:"message" example:"role consultant is not permitted to perform create_department"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the TalentOps API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}

	r := chi.NewRouter()
	r.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("TalentOps API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(r, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerChat(group, cfg.Router)
	registerTasks(group, cfg.Engine)
	registerNotifications(group, cfg.Engine)
	registerMe(group, cfg.Engine)

	return r, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	var amb *repo.ErrAmbiguous
	if errors.As(err, &amb) {
		return newAPIError(http.StatusConflict, "ambiguous", err.Error(), map[string]any{"candidates": amb.Candidates})
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	default:
		return "internal_error"
	}
}

func registerHealth(api huma.API) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status" example:"ok"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*healthOutput, error) {
		out := &healthOutput{}
		out.Body.Status = "ok"
		return out, nil
	})
}

func registerChat(api huma.API, rt router.Router) {
	type chatInput struct {
		Body struct {
			Message string `json:"message" minLength:"1" example:"apply leave from 2025-03-01 to 2025-03-02"`
		}
	}
	type chatOutput struct {
		Body router.Response
	}
	huma.Register(api, huma.Operation{
		OperationID: "chat",
		Method:      http.MethodPost,
		Path:        "/chat",
		Summary:     "Send a message to the assistant",
	}, func(ctx context.Context, in *chatInput) (*chatOutput, error) {
		p, herr := requirePrincipal(ctx)
		if herr != nil {
			return nil, herr
		}
		resp := rt.Route(ctx, engine.Request{
			Text:    in.Body.Message,
			Role:    p.Role,
			ActorID: p.ActorID,
			TeamID:  p.TeamID,
		})
		return &chatOutput{Body: resp}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	type listTasksInput struct {
		Status   string `query:"status" enum:"pending,in_progress,completed,closed,"`
		SubState string `query:"sub_state" enum:"in_progress,pending_validation,approved,rejected,"`
		Mine     bool   `query:"mine"`
	}
	type listTasksOutput struct {
		Body struct {
			Tasks []domain.Task `json:"tasks"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
	}, func(ctx context.Context, in *listTasksInput) (*listTasksOutput, error) {
		p, herr := requirePrincipal(ctx)
		if herr != nil {
			return nil, herr
		}
		f := repo.TaskFilters{Status: in.Status, SubState: in.SubState, Limit: 100}
		if in.Mine {
			f.AssignedTo = p.ActorID
		}
		tasks, err := e.Repo.ListTasks(ctx, f)
		if err != nil {
			return nil, handleError(err)
		}
		out := &listTasksOutput{}
		out.Body.Tasks = tasks
		return out, nil
	})

	type historyInput struct {
		ID string `path:"id"`
	}
	type historyOutput struct {
		Body struct {
			History []domain.HistoryEntry `json:"history"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "task-history",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}/history",
		Summary:     "Task audit history",
	}, func(ctx context.Context, in *historyInput) (*historyOutput, error) {
		if _, herr := requirePrincipal(ctx); herr != nil {
			return nil, herr
		}
		if _, err := e.Repo.GetTask(ctx, in.ID); err != nil {
			return nil, handleError(err)
		}
		entries, err := e.Repo.ListTaskHistory(ctx, in.ID)
		if err != nil {
			return nil, handleError(err)
		}
		out := &historyOutput{}
		out.Body.History = entries
		return out, nil
	})
}

func registerNotifications(api huma.API, e engine.Engine) {
	type listInput struct {
		Unread bool `query:"unread"`
	}
	type listOutput struct {
		Body struct {
			Notifications []domain.Notification `json:"notifications"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications",
		Summary:     "List my notifications",
	}, func(ctx context.Context, in *listInput) (*listOutput, error) {
		p, herr := requirePrincipal(ctx)
		if herr != nil {
			return nil, herr
		}
		items, err := e.Repo.ListNotifications(ctx, p.ActorID, in.Unread, 50)
		if err != nil {
			return nil, handleError(err)
		}
		out := &listOutput{}
		out.Body.Notifications = items
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "read-notifications",
		Method:      http.MethodPost,
		Path:        "/notifications/read",
		Summary:     "Mark all my notifications read",
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		p, herr := requirePrincipal(ctx)
		if herr != nil {
			return nil, herr
		}
		if err := e.Repo.MarkNotificationsRead(ctx, p.ActorID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

func registerMe(api huma.API, e engine.Engine) {
	type meOutput struct {
		Body domain.Profile
	}
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "My profile",
	}, func(ctx context.Context, _ *struct{}) (*meOutput, error) {
		p, herr := requirePrincipal(ctx)
		if herr != nil {
			return nil, herr
		}
		profile, err := e.Repo.GetProfile(ctx, p.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &meOutput{Body: profile}, nil
	})
}
