package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/yamui/internal/apperr"
	"github.com/starford/yamui/internal/docstore"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("api: json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// statusOf maps runtime errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, apperr.ErrScreenNotFound),
		errors.Is(err, apperr.ErrComponentNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict),
		errors.Is(err, apperr.ErrCannotPopRoot),
		errors.Is(err, apperr.ErrAlreadyRendering),
		errors.Is(err, apperr.ErrQueueFull):
		return http.StatusConflict
	case errors.Is(err, docstore.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, apperr.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, apperr.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperr.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrParseSyntax),
		errors.Is(err, apperr.ErrParseOutOfMemory),
		errors.Is(err, apperr.ErrMissingSection),
		errors.Is(err, apperr.ErrInvalidShape),
		errors.Is(err, apperr.ErrCompileOutOfMemory),
		errors.Is(err, apperr.ErrEvalSyntax),
		errors.Is(err, apperr.ErrDivideByZero),
		errors.Is(err, apperr.ErrUnknownAction),
		errors.Is(err, apperr.ErrMissingArgument):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		slog.Error("api: request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		writeJSON(w, status, errorBody("internal error"))
		return
	}
	writeJSON(w, status, errorBody(err.Error()))
}

