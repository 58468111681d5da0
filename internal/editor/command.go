// Package editor applies structured edit commands to a document snapshot.
package editor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgallion1/reportedit/internal/document"
)

// Kind is the wire name of a command.
type Kind string

const (
	KindReplaceText           Kind = "replace_text"
	KindFormatText            Kind = "format_text"
	KindAddParagraph          Kind = "add_paragraph"
	KindDeleteParagraph       Kind = "delete_paragraph"
	KindFormatAllText         Kind = "format_all_text"
	KindFormatAllHeadings     Kind = "format_all_headings"
	KindReplaceAllOccurrences Kind = "replace_all_occurrences"
	KindRemoveFormatting      Kind = "remove_formatting"
	KindRemoveAllFormatting   Kind = "remove_all_formatting"

	// KindRewriteDocument is produced by the chat interpreter only; it has
	// no wire form.
	KindRewriteDocument Kind = "rewrite_document"
)

// Kinds lists the command kinds accepted in an edit payload.
var Kinds = []Kind{
	KindReplaceText, KindFormatText, KindAddParagraph, KindDeleteParagraph,
	KindFormatAllText, KindFormatAllHeadings, KindReplaceAllOccurrences,
	KindRemoveFormatting, KindRemoveAllFormatting,
}

// Command is one of the variant types below. The set is closed.
type Command interface {
	Kind() Kind
	sealed()
}

// ReplaceText substitutes the first occurrence of Old. Paragraph restricts
// the search to one structural paragraph. An empty New deletes the text.
type ReplaceText struct {
	Old       string
	New       string
	Paragraph *int
}

// FormatText switches Style on for Target.
type FormatText struct {
	Target    string
	Style     document.Style
	Paragraph *int
}

// AddParagraph inserts Text after the structural paragraph After, or at the
// end of the document when After is nil.
type AddParagraph struct {
	Text  string
	After *int
}

// DeleteParagraph removes the paragraph with user-facing number Visible.
type DeleteParagraph struct {
	Visible int
}

type FormatAllText struct {
	Style document.Style
}

type FormatAllHeadings struct {
	Style document.Style
}

// ReplaceAllOccurrences substitutes Old everywhere in the document.
type ReplaceAllOccurrences struct {
	Old string
	New string
}

// RemoveFormatting clears Style on Target. A nil Style clears every flag.
type RemoveFormatting struct {
	Target    string
	Style     *document.Style
	Paragraph *int
}

type RemoveAllFormatting struct{}

// RewriteDocument replaces every paragraph of the document with Paragraphs.
type RewriteDocument struct {
	Paragraphs []document.Paragraph
}

func (ReplaceText) Kind() Kind           { return KindReplaceText }
func (FormatText) Kind() Kind            { return KindFormatText }
func (AddParagraph) Kind() Kind          { return KindAddParagraph }
func (DeleteParagraph) Kind() Kind       { return KindDeleteParagraph }
func (FormatAllText) Kind() Kind         { return KindFormatAllText }
func (FormatAllHeadings) Kind() Kind     { return KindFormatAllHeadings }
func (ReplaceAllOccurrences) Kind() Kind { return KindReplaceAllOccurrences }
func (RemoveFormatting) Kind() Kind      { return KindRemoveFormatting }
func (RemoveAllFormatting) Kind() Kind   { return KindRemoveAllFormatting }
func (RewriteDocument) Kind() Kind       { return KindRewriteDocument }

func (ReplaceText) sealed()           {}
func (FormatText) sealed()            {}
func (AddParagraph) sealed()          {}
func (DeleteParagraph) sealed()       {}
func (FormatAllText) sealed()         {}
func (FormatAllHeadings) sealed()     {}
func (ReplaceAllOccurrences) sealed() {}
func (RemoveFormatting) sealed()      {}
func (RemoveAllFormatting) sealed()   {}
func (RewriteDocument) sealed()       {}

// Index is a paragraph number that decodes from a JSON number or a numeric
// string.
type Index int

func (i *Index) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("paragraph id %q is not a number", s)
		}
		*i = Index(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("paragraph id: %w", err)
	}
	*i = Index(n)
	return nil
}

// Payload is the JSON shape of an edit request.
type Payload struct {
	Command          string `json:"command"`
	OldText          string `json:"oldText,omitempty"`
	NewText          string `json:"newText,omitempty"`
	ParagraphID      *Index `json:"paragraphId,omitempty"`
	Style            string `json:"style,omitempty"`
	Text             string `json:"text,omitempty"`
	AfterParagraphID *Index `json:"afterParagraphId,omitempty"`
	UserID           *int64 `json:"user_id,omitempty"`
	MessageID        *int64 `json:"message_id,omitempty"`
}

// Decode turns the payload into a Command. The error is a *Failure.
func (p Payload) Decode() (Command, error) {
	switch Kind(p.Command) {
	case KindReplaceText:
		if p.OldText == "" {
			return nil, invalid("replace_text needs oldText")
		}
		return ReplaceText{Old: p.OldText, New: p.NewText, Paragraph: p.ParagraphID.ptr()}, nil
	case KindFormatText:
		if p.Text == "" {
			return nil, invalid("format_text needs text")
		}
		s, err := requireStyle(p.Style)
		if err != nil {
			return nil, err
		}
		return FormatText{Target: p.Text, Style: s, Paragraph: p.ParagraphID.ptr()}, nil
	case KindAddParagraph:
		if strings.TrimSpace(p.Text) == "" {
			return nil, invalid("add_paragraph needs text")
		}
		return AddParagraph{Text: p.Text, After: p.AfterParagraphID.ptr()}, nil
	case KindDeleteParagraph:
		if p.ParagraphID == nil {
			return nil, invalid("delete_paragraph needs paragraphId")
		}
		return DeleteParagraph{Visible: int(*p.ParagraphID)}, nil
	case KindFormatAllText:
		s, err := requireStyle(p.Style)
		if err != nil {
			return nil, err
		}
		return FormatAllText{Style: s}, nil
	case KindFormatAllHeadings:
		s, err := requireStyle(p.Style)
		if err != nil {
			return nil, err
		}
		return FormatAllHeadings{Style: s}, nil
	case KindReplaceAllOccurrences:
		if p.OldText == "" {
			return nil, invalid("replace_all_occurrences needs oldText")
		}
		return ReplaceAllOccurrences{Old: p.OldText, New: p.NewText}, nil
	case KindRemoveFormatting:
		if p.Text == "" {
			return nil, invalid("remove_formatting needs text")
		}
		cmd := RemoveFormatting{Target: p.Text, Paragraph: p.ParagraphID.ptr()}
		if p.Style != "" {
			s, err := requireStyle(p.Style)
			if err != nil {
				return nil, err
			}
			cmd.Style = &s
		}
		return cmd, nil
	case KindRemoveAllFormatting:
		return RemoveAllFormatting{}, nil
	}
	return nil, &Failure{Kind: Unsupported, Message: fmt.Sprintf("unknown command %q", p.Command)}
}

// Encode is the inverse of Decode.
func Encode(cmd Command) Payload {
	p := Payload{Command: string(cmd.Kind())}
	switch c := cmd.(type) {
	case ReplaceText:
		p.OldText, p.NewText, p.ParagraphID = c.Old, c.New, index(c.Paragraph)
	case FormatText:
		p.Text, p.Style, p.ParagraphID = c.Target, c.Style.String(), index(c.Paragraph)
	case AddParagraph:
		p.Text, p.AfterParagraphID = c.Text, index(c.After)
	case DeleteParagraph:
		p.ParagraphID = index(&c.Visible)
	case FormatAllText:
		p.Style = c.Style.String()
	case FormatAllHeadings:
		p.Style = c.Style.String()
	case ReplaceAllOccurrences:
		p.OldText, p.NewText = c.Old, c.New
	case RemoveFormatting:
		p.Text, p.ParagraphID = c.Target, index(c.Paragraph)
		if c.Style != nil {
			p.Style = c.Style.String()
		}
	case RemoveAllFormatting:
	}
	return p
}

func (i *Index) ptr() *int {
	if i == nil {
		return nil
	}
	n := int(*i)
	return &n
}

func index(n *int) *Index {
	if n == nil {
		return nil
	}
	i := Index(*n)
	return &i
}

func requireStyle(name string) (document.Style, error) {
	if name == "" {
		return 0, invalid("style is required")
	}
	s, err := document.ParseStyle(name)
	if err != nil {
		return 0, &Failure{Kind: Unsupported, Message: err.Error()}
	}
	return s, nil
}
