package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dgallion1/reportedit/internal/document"
	"github.com/dgallion1/reportedit/internal/editor"
	"github.com/dgallion1/reportedit/internal/interpret"
	"github.com/dgallion1/reportedit/internal/render"
	"github.com/dgallion1/reportedit/internal/store"
)

// CommandResult is the reply to a chat command.
type CommandResult struct {
	EditResult
	Action      interpret.Action `json:"action,omitempty"`
	Explanation string           `json:"explanation,omitempty"`
	// Command is the structured edit the text was turned into.
	Command *editor.Payload `json:"command,omitempty"`
}

// Command interprets free text from the chat and applies the resulting
// edit. Interpretation happens before the edit lock is taken so a slow
// model call does not block other edits; the command then runs against
// whatever version is current when the lock is acquired.
func (s *Service) Command(ctx context.Context, id int64, text string, from Origin) (CommandResult, error) {
	if s.interp == nil {
		return CommandResult{}, ErrNoModel
	}
	r, err := s.store.GetReport(ctx, id)
	if err != nil {
		return CommandResult{}, err
	}
	doc, _, err := s.load(ctx, r.FilePath)
	if err != nil {
		return CommandResult{}, err
	}
	log := s.log.With("report_id", id)

	intent, err := s.interp.Interpret(ctx, text, documentText(r, doc, log))
	if err != nil {
		if ctx.Err() != nil {
			return CommandResult{}, ctx.Err()
		}
		log.Info("command not understood", "error", err)
		return commandFailure(err, intent), nil
	}
	cmd, err := s.interp.Command(ctx, intent, doc)
	if err != nil {
		if ctx.Err() != nil {
			return CommandResult{}, ctx.Err()
		}
		log.Info("command not executable", "action", intent.Action, "error", err)
		return commandFailure(err, intent), nil
	}

	res, err := s.Apply(ctx, id, cmd, from)
	if err != nil {
		return CommandResult{}, err
	}
	payload := editor.Encode(cmd)
	return CommandResult{EditResult: res, Action: intent.Action, Explanation: intent.Explanation, Command: &payload}, nil
}

// documentText is the text the interpreter sees: the cached HTML of the
// current version, numbered by visible paragraph, or the document itself
// when no usable cache exists.
func documentText(r store.Report, doc *document.Document, log *slog.Logger) string {
	if r.HTMLContent != nil && *r.HTMLContent != "" {
		text, err := render.PlainText(*r.HTMLContent)
		if err == nil && text != "" {
			return text
		}
		log.Warn("cached html unreadable, using document text", "error", err)
	}
	return doc.PlainText()
}

func commandFailure(err error, intent interpret.Intent) CommandResult {
	out := CommandResult{Action: intent.Action, Explanation: intent.Explanation}
	out.Success = false
	out.Message = interpret.UserMessage(err)
	var amb *interpret.Ambiguity
	if errors.As(err, &amb) {
		out.Action = interpret.ActionClarify
	}
	return out
}

// Suggest returns alternative phrasings for text selected in report id.
func (s *Service) Suggest(ctx context.Context, id int64, selected string) ([]string, error) {
	if s.interp == nil {
		return nil, ErrNoModel
	}
	if _, err := s.store.GetReport(ctx, id); err != nil {
		return nil, err
	}
	return s.interp.Suggest(ctx, selected)
}
