package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(w, r)
	if !ok {
		return
	}
	h, err := s.svc.Versions(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

type versionRequest struct {
	Description string `json:"description"`
}

// handleCreateVersion snapshots the current content. The body is optional.
func (s *Server) handleCreateVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(w, r)
	if !ok {
		return
	}
	var req versionRequest
	if r.ContentLength != 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if err := decodeOptional(r.Body, &req); err != nil {
			jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	res, err := s.svc.CreateVersion(r.Context(), id, req.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(w, r)
	if !ok {
		return
	}
	v, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		jsonError(w, "invalid version number", http.StatusBadRequest)
		return
	}
	res, err := s.svc.Restore(r.Context(), id, v)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func decodeOptional(body io.Reader, v any) error {
	err := json.NewDecoder(body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
