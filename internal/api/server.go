// Package api serves the HTTP chat and task API, plus a websocket chat
// endpoint, on a chi router with huma operations.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/user/tasktalk/internal/auth"
	"github.com/user/tasktalk/internal/gateway"
	"github.com/user/tasktalk/internal/runtime"
	"github.com/user/tasktalk/internal/types"
)

// Source tags tool calls made through the API.
const Source = "api"

// RoutineRunner runs a routine on demand for its owner.
type RoutineRunner interface {
	Run(ctx context.Context, name, owner string) (*gateway.Result, error)
}

// Config wires the server's collaborators. Routines may be nil.
type Config struct {
	Gateway  *gateway.Gateway
	Registry *runtime.Registry
	Tasks    types.TaskStore
	Routines RoutineRunner
	Verifier *auth.Verifier
}

type server struct {
	cfg Config
}

type apiErrorBody struct {
	Code    string `json:"code" example:"not_found"`
	Message string `json:"message" example:"task 3: not found"`
}

// apiError is the error envelope: {"error":{"code","message"}}.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

func newAPIError(status int, code, message string) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{status: status, Body: apiErrorBody{Code: code, Message: message}}
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
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// New returns the HTTP handler.
func New(cfg Config) http.Handler {
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, _ ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		return newAPIError(status, "", msg)
	}

	s := &server{cfg: cfg}
	router := chi.NewRouter()
	router.Use(s.authMiddleware)

	hcfg := huma.DefaultConfig("tasktalk API", "1.0.0")
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)

	registerHealth(api)
	s.registerChat(api)
	s.registerTasks(api)
	s.registerRoutines(api)
	router.Get("/ws/chat", s.handleWebSocket)

	return router
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

// handleError maps domain errors to the error envelope.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve *runtime.ValidationError
	switch {
	case errors.As(err, &ve):
		return newAPIError(http.StatusBadRequest, "bad_request", ve.Msg)
	case errors.Is(err, types.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, types.ErrForbidden):
		return newAPIError(http.StatusForbidden, "forbidden", err.Error())
	}
	slog.Error("api request failed", "error", err)
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error")
}

// resultError maps a failed tool result to the error envelope.
func resultError(res runtime.Result) huma.StatusError {
	switch res.Kind {
	case runtime.KindValidation:
		return newAPIError(http.StatusBadRequest, "bad_request", res.Error)
	case runtime.KindNotFound:
		return newAPIError(http.StatusNotFound, "not_found", res.Error)
	case runtime.KindDenied:
		return newAPIError(http.StatusForbidden, "forbidden", res.Error)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", res.Error)
}
