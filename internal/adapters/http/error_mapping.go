package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/kirillkom/grantflow/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrStepClosed),
		domain.IsKind(err, domain.ErrStepMismatch),
		domain.IsKind(err, domain.ErrStepInFlight),
		domain.IsKind(err, domain.ErrSessionReset),
		domain.IsKind(err, domain.ErrPreconditionViolation):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func errorResponse(err error) errorBody {
	body := errorBody{Error: err.Error()}
	var fieldErr *domain.FieldError
	if errors.As(err, &fieldErr) {
		body.Field = fieldErr.Field
	}
	return body
}
