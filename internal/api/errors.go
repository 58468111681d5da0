package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/dgallion1/reportedit/internal/editor"
	"github.com/dgallion1/reportedit/internal/generate"
	"github.com/dgallion1/reportedit/internal/lock"
	"github.com/dgallion1/reportedit/internal/service"
	"github.com/dgallion1/reportedit/internal/store"
	"github.com/dgallion1/reportedit/internal/versions"
	"github.com/go-chi/chi/v5"
)

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	var failure *editor.Failure
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, versions.ErrVersionNotFound):
		return http.StatusNotFound
	case errors.Is(err, lock.ErrLocked), errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidVersion),
		errors.Is(err, service.ErrInvalidDocument),
		errors.Is(err, generate.ErrInvalidRequest),
		errors.As(err, &failure):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNoModel):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	jsonError(w, err.Error(), code)
}

// reportID parses the {reportID} URL parameter, writing a 400 when it is
// not a positive integer.
func reportID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "reportID"), 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, "invalid report id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
