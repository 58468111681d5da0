package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dgallion1/reportedit/internal/editor"
	"github.com/dgallion1/reportedit/internal/interpret"
	"github.com/dgallion1/reportedit/internal/service"
)

const maxJSONBody = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// handleEdit applies a structured edit. Commands that cannot be applied
// still answer 200 with success=false.
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(w, r)
	if !ok {
		return
	}
	var p editor.Payload
	if !decodeBody(w, r, &p) {
		return
	}
	res, err := s.svc.Edit(r.Context(), id, p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// commandRequest carries chat text. A selection may be sent inline as a
// marker in Text or in the selectedText/selectedParagraph fields.
type commandRequest struct {
	Text              string `json:"text"`
	SelectedText      string `json:"selectedText,omitempty"`
	SelectedParagraph *int   `json:"selectedParagraph,omitempty"`
	UserID            *int64 `json:"user_id,omitempty"`
	MessageID         *int64 `json:"message_id,omitempty"`
}

func (c commandRequest) input() string {
	if c.SelectedText == "" {
		return c.Text
	}
	if _, _, marked := interpret.ParseSelection(c.Text); marked {
		return c.Text
	}
	return interpret.Marker(interpret.Selection{Text: c.SelectedText, Paragraph: c.SelectedParagraph}, strings.TrimSpace(c.Text))
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(w, r)
	if !ok {
		return
	}
	var req commandRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		jsonError(w, "text is required", http.StatusBadRequest)
		return
	}
	res, err := s.svc.Command(r.Context(), id, req.input(), service.Origin{UserID: req.UserID, MessageID: req.MessageID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type suggestionRequest struct {
	SelectedText string `json:"selectedText"`
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(w, r)
	if !ok {
		return
	}
	var req suggestionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SelectedText) == "" {
		jsonError(w, "selectedText is required", http.StatusBadRequest)
		return
	}
	out, err := s.svc.Suggest(r.Context(), id, req.SelectedText)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if out == nil {
		out = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": out})
}
