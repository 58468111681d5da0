package interpret

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/dgallion1/reportedit/internal/document"
	"github.com/dgallion1/reportedit/internal/editor"
	"github.com/dgallion1/reportedit/internal/llm"
	"github.com/dgallion1/reportedit/internal/locate"
	"github.com/dgallion1/reportedit/internal/mdconv"
)

const (
	analysisTemperature = 0.1
	analysisMaxTokens   = 400
	rewriteTemperature  = 0.7
	rewriteMaxTokens    = 500
	rewriteAllMaxTokens = 2000
	suggestMaxTokens    = 800

	// Targets shorter than this are treated as "no passage named".
	minRewriteTarget = 10
	minRewriteAll    = 50

	MaxSuggestions = 3
)

// Interpreter asks a model to classify chat commands and to write
// replacement prose.
type Interpreter struct {
	model llm.Completer
	log   *slog.Logger
}

func New(model llm.Completer, log *slog.Logger) *Interpreter {
	return &Interpreter{model: model, log: log}
}

// Interpret classifies one chat command against the document text. A
// selection marker in input overrides the model's target.
func (i *Interpreter) Interpret(ctx context.Context, input, docText string) (Intent, error) {
	sel, command, hasSel := ParseSelection(input)
	var selp *Selection
	if hasSel {
		selp = &sel
	}
	if command == "" {
		return Intent{}, &editor.Failure{Kind: editor.InvalidArgument, Message: "command text is empty"}
	}

	reply, err := i.model.Complete(ctx, llm.Request{
		Op:          "interpret",
		System:      analysisSystem,
		Prompt:      BuildAnalysisPrompt(command, selp, docText),
		MaxTokens:   analysisMaxTokens,
		Temperature: analysisTemperature,
	})
	if err != nil {
		return Intent{}, fmt.Errorf("analyze command: %w", err)
	}

	intent, err := ParseReply(reply)
	if err != nil {
		i.log.Warn("unreadable interpreter reply", "reply", clip(reply, 200), "error", err)
		return Intent{}, err
	}
	if hasSel {
		intent.ApplySelection(sel)
	}
	i.log.Debug("command interpreted", "action", intent.Action, "target", clip(intent.Target, 80), "selection", hasSel)
	return intent, nil
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{[^{}]*\}`)

// ParseReply decodes the model's JSON answer, tolerating a code fence and
// prose around the object.
func ParseReply(reply string) (Intent, error) {
	var in Intent
	body := llm.StripCodeBlock(reply)
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		obj := jsonObjectRe.FindString(reply)
		if obj == "" {
			return Intent{}, &editor.Failure{Kind: editor.InvalidArgument, Message: "the command could not be understood"}
		}
		in = Intent{}
		if err := json.Unmarshal([]byte(obj), &in); err != nil {
			return Intent{}, &editor.Failure{Kind: editor.InvalidArgument, Message: "the command could not be understood"}
		}
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return Intent{}, err
	}
	return in, nil
}

// Command turns an intent into an executable command, generating the
// replacement text for rewrite intents.
func (i *Interpreter) Command(ctx context.Context, in Intent, doc *document.Document) (editor.Command, error) {
	switch in.Action {
	case ActionRewriteParagraph:
		return i.rewriteParagraph(ctx, in, doc)
	case ActionRewriteAll:
		return i.rewriteAll(ctx, doc)
	case ActionDeleteParagraph:
		if in.ParagraphID == nil && in.Target != "" {
			if n, ok := visibleParagraphOf(doc, in.Target); ok {
				id := editor.Index(n)
				in.ParagraphID = &id
			}
		}
	}
	return in.Command()
}

func (i *Interpreter) rewriteParagraph(ctx context.Context, in Intent, doc *document.Document) (editor.Command, error) {
	target := strings.TrimSpace(in.Target)
	if len([]rune(target)) < minRewriteTarget {
		target = paragraphText(doc, in.ParagraphID)
	}
	if target == "" {
		return nil, &editor.Failure{Kind: editor.NotFound, Message: "the document has no text to rewrite"}
	}
	out, err := i.model.Complete(ctx, llm.Request{
		Op:          "rewrite",
		System:      rewriteSystem,
		Prompt:      BuildRewritePrompt(target),
		MaxTokens:   rewriteMaxTokens,
		Temperature: rewriteTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("rewrite paragraph: %w", err)
	}
	return editor.ReplaceText{Old: target, New: cleanProse(out)}, nil
}

func (i *Interpreter) rewriteAll(ctx context.Context, doc *document.Document) (editor.Command, error) {
	text := doc.PlainText()
	if len([]rune(strings.TrimSpace(text))) < minRewriteAll {
		return nil, &editor.Failure{Kind: editor.InvalidArgument, Message: "the document is too short to rewrite"}
	}
	out, err := i.model.Complete(ctx, llm.Request{
		Op:          "rewrite",
		System:      rewriteSystem,
		Prompt:      BuildRewriteAllPrompt(text),
		MaxTokens:   rewriteAllMaxTokens,
		Temperature: rewriteTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("rewrite document: %w", err)
	}
	paragraphs := rewrittenParagraphs(out)
	if len(paragraphs) == 0 {
		return nil, &editor.Failure{Kind: editor.InvalidArgument, Message: "the rewrite came back empty"}
	}
	return editor.RewriteDocument{Paragraphs: paragraphs}, nil
}

// rewrittenParagraphs reads a whole-document rewrite as markdown, one
// paragraph per non-empty line.
func rewrittenParagraphs(reply string) []document.Paragraph {
	body := strings.TrimSpace(llm.StripCodeBlock(reply))
	var lines []string
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	var out []document.Paragraph
	for _, p := range mdconv.Paragraphs(strings.Join(lines, "\n\n")) {
		if !p.IsBlank() {
			out = append(out, p)
		}
	}
	return out
}

// Suggest returns up to MaxSuggestions alternative phrasings of selected.
func (i *Interpreter) Suggest(ctx context.Context, selected string) ([]string, error) {
	selected = strings.TrimSpace(selected)
	if selected == "" {
		return nil, &editor.Failure{Kind: editor.InvalidArgument, Message: "no text selected"}
	}
	out, err := i.model.Complete(ctx, llm.Request{
		Op:          "suggest",
		System:      suggestSystem,
		Prompt:      BuildSuggestPrompt(selected, MaxSuggestions),
		MaxTokens:   suggestMaxTokens,
		Temperature: rewriteTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("suggest edits: %w", err)
	}
	return ParseSuggestions(out), nil
}

var listMarkerRe = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s+`)

// ParseSuggestions reads a JSON array of strings or, failing that, one
// suggestion per non-empty line with list markers removed.
func ParseSuggestions(reply string) []string {
	var items []string
	if err := json.Unmarshal([]byte(llm.StripCodeBlock(reply)), &items); err != nil {
		items = items[:0]
		for _, line := range strings.Split(reply, "\n") {
			line = strings.TrimSpace(listMarkerRe.ReplaceAllString(line, ""))
			if line != "" && !strings.HasPrefix(line, "```") {
				items = append(items, line)
			}
		}
	}
	out := make([]string, 0, MaxSuggestions)
	for _, s := range items {
		s = cleanProse(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == MaxSuggestions {
			break
		}
	}
	return out
}

// paragraphText returns the text of visible paragraph id, or of the first
// visible paragraph when id is nil or does not resolve.
func paragraphText(doc *document.Document, id *editor.Index) string {
	m := document.BuildVisibleMapping(doc)
	if id != nil {
		if real, err := m.Resolve(int(*id), document.FallbackRaw); err == nil {
			if t := strings.TrimSpace(doc.Paragraphs[real].Text()); t != "" {
				return t
			}
		}
	}
	if real, ok := m.Real(0); ok {
		return strings.TrimSpace(doc.Paragraphs[real].Text())
	}
	return ""
}

// visibleParagraphOf returns the visible number of the first paragraph
// holding target.
func visibleParagraphOf(doc *document.Document, target string) (int, bool) {
	m := locate.Find(doc.Texts(), target)
	if !locate.Found(m) {
		return 0, false
	}
	return document.BuildVisibleMapping(doc).Visible(m.Spans()[0].Paragraph)
}

// cleanProse drops a code fence, wrapping quotes and markdown syntax from
// model prose.
func cleanProse(s string) string {
	s = strings.TrimSpace(llm.StripCodeBlock(s))
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if plain := mdconv.PlainText(s); plain != "" {
		return plain
	}
	return s
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// UserMessage renders an interpretation error for the chat reply.
func UserMessage(err error) string {
	var amb *Ambiguity
	var f *editor.Failure
	switch {
	case errors.As(err, &amb):
		return "Clarification needed: " + orDefault(amb.Explanation, "the command is unclear")
	case errors.As(err, &f):
		return f.Message
	}
	return "Error processing the command: " + err.Error()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
