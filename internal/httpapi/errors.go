package httpapi

import (
	"errors"
	"net/http"

	"github.com/vk/paramfn/internal/ctxlog"
	"github.com/vk/paramfn/internal/model"
)

// errBadRequest marks a request the server could not read.
var errBadRequest = errors.New("bad request")

// statusFor maps a fault onto an HTTP status and a metrics label.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, model.ErrInvalidDefinition):
		return http.StatusBadRequest, "invalid_definition"
	case errors.Is(err, model.ErrEvaluation):
		return http.StatusBadRequest, "evaluation"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrSerialization):
		return http.StatusInternalServerError, "serialization"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

type errorBody struct {
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	faultsTotal.WithLabelValues(kind).Inc()

	logger := ctxlog.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed.", "status", status, "error", err)
	} else {
		logger.Debug("Request rejected.", "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{Detail: err.Error()})
}
