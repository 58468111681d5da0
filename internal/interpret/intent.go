package interpret

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/reportedit/internal/editor"
)

// Action is what the model decided the user wants.
type Action string

const (
	ActionClarify               Action = "clarify"
	ActionRewriteAll            Action = "rewrite_all"
	ActionRewriteParagraph      Action = "rewrite_paragraph"
	ActionReplaceText           Action = "replace_text"
	ActionReplaceAllOccurrences Action = "replace_all_occurrences"
	ActionRemoveFormatting      Action = "remove_formatting"
	ActionRemoveAllFormatting   Action = "remove_all_formatting"
	ActionFormatText            Action = "format_text"
	ActionAddText               Action = "add_text"
	ActionAddParagraph          Action = "add_paragraph"
	ActionDeleteText            Action = "delete_text"
	ActionDeleteParagraph       Action = "delete_paragraph"
	ActionFormatAllText         Action = "format_all_text"
	ActionFormatAllHeadings     Action = "format_all_headings"
)

var validActions = map[Action]bool{
	ActionClarify: true, ActionRewriteAll: true, ActionRewriteParagraph: true,
	ActionReplaceText: true, ActionReplaceAllOccurrences: true,
	ActionRemoveFormatting: true, ActionRemoveAllFormatting: true,
	ActionFormatText: true, ActionAddText: true, ActionAddParagraph: true,
	ActionDeleteText: true, ActionDeleteParagraph: true,
	ActionFormatAllText: true, ActionFormatAllHeadings: true,
}

// Intent is the model's structured reading of a chat command.
type Intent struct {
	Action      Action        `json:"action"`
	Target      string        `json:"target"`
	Replacement string        `json:"replacement"`
	Style       string        `json:"style"`
	ParagraphID *editor.Index `json:"paragraph_id"`
	Explanation string        `json:"explanation"`
}

// Ambiguity is returned when the model asks the user to clarify.
type Ambiguity struct {
	Explanation string
}

func (a *Ambiguity) Error() string {
	if a.Explanation == "" {
		return "clarification needed: the command is unclear"
	}
	return "clarification needed: " + a.Explanation
}

// ErrNeedsGeneration marks rewrite intents, which need the model to write
// the replacement before they become a command.
var ErrNeedsGeneration = errors.New("intent needs generated text")

// Normalize trims fields and lower-cases the action and style.
func (in *Intent) Normalize() {
	in.Action = Action(strings.ToLower(strings.TrimSpace(string(in.Action))))
	in.Style = strings.ToLower(strings.TrimSpace(in.Style))
	in.Explanation = strings.TrimSpace(in.Explanation)
}

// Validate rejects actions the executor cannot serve.
func (in Intent) Validate() error {
	if in.Action == "" {
		return errors.New("model reply has no action")
	}
	if !validActions[in.Action] {
		return &editor.Failure{Kind: editor.Unsupported, Message: fmt.Sprintf("unknown action %q", in.Action)}
	}
	return nil
}

// ApplySelection makes the selection authoritative: the target becomes the
// selected text and the paragraph is filled in when the model left it out.
func (in *Intent) ApplySelection(sel Selection) {
	in.Target = sel.Text
	if in.ParagraphID == nil && sel.Paragraph != nil {
		id := editor.Index(*sel.Paragraph)
		in.ParagraphID = &id
	}
}

func (in Intent) style() string {
	if in.Style == "" {
		return "bold"
	}
	return in.Style
}

// Payload converts the intent into an edit payload. Rewrite intents return
// ErrNeedsGeneration and clarify returns an *Ambiguity.
func (in Intent) Payload() (editor.Payload, error) {
	switch in.Action {
	case ActionClarify:
		return editor.Payload{}, &Ambiguity{Explanation: in.Explanation}
	case ActionRewriteAll, ActionRewriteParagraph:
		return editor.Payload{}, ErrNeedsGeneration
	case ActionReplaceText:
		return editor.Payload{Command: string(editor.KindReplaceText), OldText: in.Target, NewText: in.Replacement}, nil
	case ActionDeleteText:
		return editor.Payload{Command: string(editor.KindReplaceText), OldText: in.Target}, nil
	case ActionReplaceAllOccurrences:
		return editor.Payload{Command: string(editor.KindReplaceAllOccurrences), OldText: in.Target, NewText: in.Replacement}, nil
	case ActionFormatText:
		return editor.Payload{Command: string(editor.KindFormatText), Text: in.Target, Style: in.style()}, nil
	case ActionFormatAllText:
		return editor.Payload{Command: string(editor.KindFormatAllText), Style: in.style()}, nil
	case ActionFormatAllHeadings:
		return editor.Payload{Command: string(editor.KindFormatAllHeadings), Style: in.style()}, nil
	case ActionAddText, ActionAddParagraph:
		text := in.Replacement
		if strings.TrimSpace(text) == "" {
			text = in.Target
		}
		return editor.Payload{Command: string(editor.KindAddParagraph), Text: text}, nil
	case ActionDeleteParagraph:
		if in.ParagraphID == nil {
			return editor.Payload{}, &editor.Failure{Kind: editor.InvalidArgument, Message: "could not tell which paragraph to delete; select some text in it"}
		}
		return editor.Payload{Command: string(editor.KindDeleteParagraph), ParagraphID: in.ParagraphID}, nil
	case ActionRemoveFormatting:
		return editor.Payload{Command: string(editor.KindRemoveFormatting), Text: in.Target, Style: in.style(), ParagraphID: in.ParagraphID}, nil
	case ActionRemoveAllFormatting:
		return editor.Payload{Command: string(editor.KindRemoveAllFormatting)}, nil
	}
	return editor.Payload{}, &editor.Failure{Kind: editor.Unsupported, Message: fmt.Sprintf("unknown action %q", in.Action)}
}

// Command is Payload followed by Payload.Decode.
func (in Intent) Command() (editor.Command, error) {
	p, err := in.Payload()
	if err != nil {
		return nil, err
	}
	return p.Decode()
}
