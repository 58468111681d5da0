package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/reportedit/internal/generate"
	"github.com/dgallion1/reportedit/internal/service"
	"github.com/dgallion1/reportedit/internal/sources"
	"github.com/dgallion1/reportedit/internal/store"
	"github.com/go-chi/chi/v5"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

type reportView struct {
	ID              int64   `json:"id"`
	Title           string  `json:"title"`
	FilePath        string  `json:"file_path"`
	DocumentVersion int     `json:"document_version"`
	HTMLContent     *string `json:"html_content,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func viewReport(r store.Report) reportView {
	return reportView{
		ID:              r.ID,
		Title:           r.Title,
		FilePath:        r.FilePath,
		DocumentVersion: r.DocumentVersion,
		HTMLContent:     r.HTMLContent,
		CreatedAt:       r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type editView struct {
	ID              int64   `json:"id"`
	UserID          *int64  `json:"user_id,omitempty"`
	ChatMessageID   *int64  `json:"chat_message_id,omitempty"`
	EditType        string  `json:"edit_type"`
	ContentBefore   *string `json:"content_before,omitempty"`
	ContentAfter    *string `json:"content_after,omitempty"`
	Paragraph       *int    `json:"paragraph,omitempty"`
	Diff            string  `json:"diff,omitempty"`
	DocumentVersion int     `json:"document_version"`
	CreatedAt       string  `json:"created_at"`
}

// handleCreateReport accepts a multipart form. A "file" part holding a
// .docx is imported directly as version 1. Otherwise "title", a JSON array
// in "sections" and optional reference "files" start a generation job.
func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	title := r.FormValue("title")
	if fhs := r.MultipartForm.File["file"]; len(fhs) > 0 {
		s.importReport(w, r, title, fhs[0])
		return
	}

	if s.orchestrator == nil {
		s.writeError(w, r, service.ErrNoModel)
		return
	}
	var sections []generate.SectionSpec
	if err := json.Unmarshal([]byte(r.FormValue("sections")), &sections); err != nil {
		jsonError(w, "sections must be a JSON array: "+err.Error(), http.StatusBadRequest)
		return
	}
	req := generate.Request{Title: title, Sections: sections}
	for _, fh := range r.MultipartForm.File["files"] {
		name := sanitizeFilename(fh.Filename)
		if !sources.IsSupported(name) {
			jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(name)), http.StatusBadRequest)
			return
		}
		data, err := s.readUpload(fh)
		if err != nil {
			jsonError(w, fmt.Sprintf("%s: %s", name, err), http.StatusRequestEntityTooLarge)
			return
		}
		req.Uploads = append(req.Uploads, generate.Upload{Name: name, Data: data})
	}

	job, err := generate.NewJob(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"status":   generate.StatusQueued,
		"poll_url": fmt.Sprintf("/api/jobs/%s", job.ID),
	})
}

func (s *Server) importReport(w http.ResponseWriter, r *http.Request, title string, fh *multipart.FileHeader) {
	name := sanitizeFilename(fh.Filename)
	if !strings.EqualFold(filepath.Ext(name), ".docx") {
		jsonError(w, "file must be a .docx", http.StatusBadRequest)
		return
	}
	data, err := s.readUpload(fh)
	if err != nil {
		jsonError(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	if strings.TrimSpace(title) == "" {
		title = strings.TrimSuffix(name, filepath.Ext(name))
	}
	rep, err := s.svc.ImportReport(r.Context(), title, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewReport(rep))
}

func (s *Server) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
	}
	return data, nil
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(w, r)
	if !ok {
		return
	}
	rep, err := s.svc.Report(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewReport(rep))
}

// handleHTML renders the current version, or ?version=N.
func (s *Server) handleHTML(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(w, r)
	if !ok {
		return
	}
	var version *int
	if q := r.URL.Query().Get("version"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil {
			jsonError(w, "invalid version number", http.StatusBadRequest)
			return
		}
		version = &v
	}
	view, err := s.svc.HTML(r.Context(), id, version)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(w, r)
	if !ok {
		return
	}
	data, name, err := s.svc.File(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", docxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *Server) handleEdits(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(w, r)
	if !ok {
		return
	}
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, 500)
	}
	edits, err := s.svc.Edits(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]editView, len(edits))
	for i, e := range edits {
		out[i] = editView{
			ID:              e.ID,
			UserID:          e.UserID,
			ChatMessageID:   e.ChatMessageID,
			EditType:        e.EditType,
			ContentBefore:   e.ContentBefore,
			ContentAfter:    e.ContentAfter,
			Paragraph:       e.Paragraph,
			Diff:            e.Diff,
			DocumentVersion: e.DocumentVersion,
			CreatedAt:       e.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"edits": out})
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
