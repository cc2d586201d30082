package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *server) registerRoutines(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "run-routine",
		Method:      http.MethodPost,
		Path:        "/api/routines/{name}/run",
		Summary:     "Run a routine now",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Name string `path:"name"`
	}) (*struct {
		Body ChatResponse `json:"body"`
	}, error) {
		user, authErr := authorize(ctx, "")
		if authErr != nil {
			return nil, authErr
		}
		if s.cfg.Routines == nil {
			return nil, newAPIError(http.StatusNotFound, "not_found", "routines are not configured")
		}
		res, err := s.cfg.Routines.Run(ctx, input.Name, user)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ChatResponse `json:"body"`
		}{Body: chatResponse(res)}, nil
	})
}
