package interpret

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/dgallion1/reportedit/internal/document"
	"github.com/dgallion1/reportedit/internal/editor"
	"github.com/dgallion1/reportedit/internal/llm"
)

type fakeModel struct {
	replies []string
	err     error
	reqs    []llm.Request
}

func (f *fakeModel) Complete(_ context.Context, req llm.Request) (string, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return "", f.err
	}
	if len(f.reqs) > len(f.replies) {
		return "", errors.New("no scripted reply")
	}
	return f.replies[len(f.reqs)-1], nil
}

func newInterpreter(m *fakeModel) *Interpreter {
	return New(m, slog.New(slog.DiscardHandler))
}

func doc(texts ...string) *document.Document {
	ps := make([]document.Paragraph, len(texts))
	for i, t := range texts {
		ps[i] = document.NewParagraph(t)
	}
	return document.New(ps...)
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name, in  string
		text, cmd string
		para      int
		ok        bool
	}{
		{"with paragraph", `[SELECTED TEXT: "quick fox" in paragraph 3] make it bold`, "quick fox", "make it bold", 3, true},
		{"no paragraph", `[SELECTED TEXT: "quick fox"] delete this`, "quick fox", "delete this", -1, true},
		{"embedded quotes", `[SELECTED TEXT: "say "hi" now" in paragraph 0] italic`, `say "hi" now`, "italic", 0, true},
		{"multi-line", "[SELECTED TEXT: \"a\nb\"] rewrite", "a\nb", "rewrite", -1, true},
		{"no marker", "  make the title bold ", "", "make the title bold", -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, cmd, ok := ParseSelection(tt.in)
			if ok != tt.ok || sel.Text != tt.text || cmd != tt.cmd {
				t.Fatalf("expected (%q, %q, %v), got (%q, %q, %v)", tt.text, tt.cmd, tt.ok, sel.Text, cmd, ok)
			}
			if tt.para < 0 && sel.Paragraph != nil {
				t.Errorf("expected no paragraph, got %d", *sel.Paragraph)
			}
			if tt.para >= 0 && (sel.Paragraph == nil || *sel.Paragraph != tt.para) {
				t.Errorf("expected paragraph %d, got %v", tt.para, sel.Paragraph)
			}
		})
	}
}

func TestMarkerRoundTrip(t *testing.T) {
	n := 4
	in := Marker(Selection{Text: "the lazy dog", Paragraph: &n}, "underline it")
	sel, cmd, ok := ParseSelection(in)
	if !ok || sel.Text != "the lazy dog" || *sel.Paragraph != 4 || cmd != "underline it" {
		t.Errorf("unexpected parse of %q: %+v %q", in, sel, cmd)
	}
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		action Action
		para   int
	}{
		{"plain", `{"action":"format_text","target":"fox","style":"Bold"}`, ActionFormatText, -1},
		{"fenced", "```json\n{\"action\":\"replace_text\",\"target\":\"a\",\"replacement\":\"b\"}\n```", ActionReplaceText, -1},
		{"prose around", "Sure! Here it is: {\"action\":\"delete_paragraph\",\"paragraph_id\":\"2\"} hope that helps", ActionDeleteParagraph, 2},
		{"null paragraph", `{"action":"remove_all_formatting","paragraph_id":null}`, ActionRemoveAllFormatting, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := ParseReply(tt.reply)
			if err != nil {
				t.Fatal(err)
			}
			if in.Action != tt.action {
				t.Errorf("expected %q, got %q", tt.action, in.Action)
			}
			if tt.para >= 0 && (in.ParagraphID == nil || int(*in.ParagraphID) != tt.para) {
				t.Errorf("expected paragraph %d, got %v", tt.para, in.ParagraphID)
			}
		})
	}

	if in, _ := ParseReply(`{"action":"format_text","style":"Bold"}`); in.Style != "bold" {
		t.Errorf("expected style lower-cased, got %q", in.Style)
	}
	for _, bad := range []string{"no json here", `{"action":"teleport"}`, `{"target":"x"}`} {
		if _, err := ParseReply(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestSelectionOverridesModelTarget(t *testing.T) {
	m := &fakeModel{replies: []string{`{"action":"format_text","target":"quick","style":"italic"}`}}
	in, err := newInterpreter(m).Interpret(context.Background(), `[SELECTED TEXT: "quick brown fox" in paragraph 0] italicize`, "The quick brown fox")
	if err != nil {
		t.Fatal(err)
	}
	if in.Target != "quick brown fox" {
		t.Errorf("expected selection as target, got %q", in.Target)
	}
	if in.ParagraphID == nil || *in.ParagraphID != 0 {
		t.Errorf("expected paragraph from marker, got %v", in.ParagraphID)
	}
	req := m.reqs[0]
	if req.Temperature != 0.1 || req.MaxTokens != 400 || req.Op != "interpret" {
		t.Errorf("unexpected request settings %+v", req)
	}
	if !strings.Contains(req.Prompt, `Selected text: "quick brown fox"`) || strings.Contains(req.Prompt, "[SELECTED TEXT") {
		t.Errorf("expected marker stripped into prompt fields, got %q", req.Prompt)
	}
}

func TestModelParagraphWinsOverMarker(t *testing.T) {
	m := &fakeModel{replies: []string{`{"action":"delete_paragraph","paragraph_id":5}`}}
	in, err := newInterpreter(m).Interpret(context.Background(), `[SELECTED TEXT: "x" in paragraph 1] delete the sixth paragraph`, "")
	if err != nil {
		t.Fatal(err)
	}
	if *in.ParagraphID != 5 {
		t.Errorf("expected model paragraph 5, got %d", *in.ParagraphID)
	}
}

func TestPromptPreviewIsCapped(t *testing.T) {
	long := strings.Repeat("word ", 1000)
	p := BuildAnalysisPrompt("rewrite", nil, long)
	if strings.Contains(p, long[:previewLimit+5]) {
		t.Error("expected document preview to be capped")
	}
	if !strings.Contains(p, "Selected text: none") {
		t.Error("expected prompt to say no selection")
	}
}

func TestIntentCommand(t *testing.T) {
	two := editor.Index(2)
	tests := []struct {
		name string
		in   Intent
		want editor.Command
	}{
		{"replace", Intent{Action: ActionReplaceText, Target: "a", Replacement: "b"}, editor.ReplaceText{Old: "a", New: "b"}},
		{"delete text", Intent{Action: ActionDeleteText, Target: "a"}, editor.ReplaceText{Old: "a"}},
		{"format default bold", Intent{Action: ActionFormatText, Target: "a"}, editor.FormatText{Target: "a", Style: document.Bold}},
		{"add text", Intent{Action: ActionAddText, Replacement: "New."}, editor.AddParagraph{Text: "New."}},
		{"add paragraph from target", Intent{Action: ActionAddParagraph, Target: "New."}, editor.AddParagraph{Text: "New."}},
		{"delete paragraph", Intent{Action: ActionDeleteParagraph, ParagraphID: &two}, editor.DeleteParagraph{Visible: 2}},
		{"headings", Intent{Action: ActionFormatAllHeadings, Style: "underline"}, editor.FormatAllHeadings{Style: document.Underline}},
		{"replace all", Intent{Action: ActionReplaceAllOccurrences, Target: "cat", Replacement: "dog"}, editor.ReplaceAllOccurrences{Old: "cat", New: "dog"}},
		{"remove all", Intent{Action: ActionRemoveAllFormatting}, editor.RemoveAllFormatting{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Command()
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("expected %#v, got %#v", tt.want, got)
			}
		})
	}
}

func TestIntentCommandFailures(t *testing.T) {
	var amb *Ambiguity
	if _, err := (Intent{Action: ActionClarify, Explanation: "which paragraph?"}).Command(); !errors.As(err, &amb) {
		t.Errorf("expected Ambiguity, got %v", err)
	} else if msg := UserMessage(err); msg != "Clarification needed: which paragraph?" {
		t.Errorf("unexpected message %q", msg)
	}

	if _, err := (Intent{Action: ActionRewriteAll}).Command(); !errors.Is(err, ErrNeedsGeneration) {
		t.Errorf("expected ErrNeedsGeneration, got %v", err)
	}

	var f *editor.Failure
	if _, err := (Intent{Action: ActionDeleteParagraph}).Command(); !errors.As(err, &f) || f.Kind != editor.InvalidArgument {
		t.Errorf("expected invalid argument, got %v", err)
	}
	if _, err := (Intent{Action: ActionFormatText, Target: "x", Style: "blink"}).Command(); !errors.As(err, &f) || f.Kind != editor.Unsupported {
		t.Errorf("expected unsupported style, got %v", err)
	}
}

func TestRewriteParagraphDefaultsToFirstVisible(t *testing.T) {
	m := &fakeModel{replies: []string{`"A clearer opening sentence."`}}
	d := doc("", "The opening sentence is weak.", "Second.")
	cmd, err := newInterpreter(m).Command(context.Background(), Intent{Action: ActionRewriteParagraph, Target: "it"}, d)
	if err != nil {
		t.Fatal(err)
	}
	want := editor.ReplaceText{Old: "The opening sentence is weak.", New: "A clearer opening sentence."}
	if cmd != want {
		t.Errorf("expected %#v, got %#v", want, cmd)
	}
	if m.reqs[0].Temperature != 0.7 || m.reqs[0].Op != "rewrite" {
		t.Errorf("unexpected rewrite request %+v", m.reqs[0])
	}
}

func TestRewriteParagraphUsesGivenParagraph(t *testing.T) {
	m := &fakeModel{replies: []string{"Better second."}}
	one := editor.Index(1)
	d := doc("First paragraph here.", "", "Second paragraph here.")
	cmd, err := newInterpreter(m).Command(context.Background(), Intent{Action: ActionRewriteParagraph, ParagraphID: &one}, d)
	if err != nil {
		t.Fatal(err)
	}
	if rt := cmd.(editor.ReplaceText); rt.Old != "Second paragraph here." {
		t.Errorf("expected visible paragraph 1, got %q", rt.Old)
	}
}

func TestRewriteAll(t *testing.T) {
	m := &fakeModel{replies: []string{"# Overview\nLine one **rewritten**.\n\nLine two rewritten."}}
	d := doc("The first paragraph of the report is here.", "The second paragraph follows it closely.")
	cmd, err := newInterpreter(m).Command(context.Background(), Intent{Action: ActionRewriteAll}, d)
	if err != nil {
		t.Fatal(err)
	}
	rd, ok := cmd.(editor.RewriteDocument)
	if !ok {
		t.Fatalf("expected RewriteDocument, got %T", cmd)
	}
	var texts []string
	for _, p := range rd.Paragraphs {
		texts = append(texts, p.Text())
	}
	want := []string{"Overview", "Line one rewritten.", "Line two rewritten."}
	if strings.Join(texts, "|") != strings.Join(want, "|") {
		t.Errorf("expected %q, got %q", want, texts)
	}
	if rd.Paragraphs[0].HeadingLevel() != 1 {
		t.Errorf("expected heading style, got %q", rd.Paragraphs[0].StyleName)
	}
	if m.reqs[0].MaxTokens != 2000 {
		t.Errorf("expected 2000 max tokens, got %d", m.reqs[0].MaxTokens)
	}

	if _, err := newInterpreter(&fakeModel{}).Command(context.Background(), Intent{Action: ActionRewriteAll}, doc("Short.")); err == nil {
		t.Error("expected short document to be rejected")
	}
	empty := &fakeModel{replies: []string{"```\n\n```"}}
	if _, err := newInterpreter(empty).Command(context.Background(), Intent{Action: ActionRewriteAll}, d); err == nil {
		t.Error("expected empty rewrite to be rejected")
	}
}

func TestRewriteParagraphStripsMarkdown(t *testing.T) {
	m := &fakeModel{replies: []string{"The **new** opening, _clearer_ than before."}}
	d := doc("The opening sentence is weak.")
	cmd, err := newInterpreter(m).Command(context.Background(), Intent{Action: ActionRewriteParagraph, Target: "The opening sentence is weak."}, d)
	if err != nil {
		t.Fatal(err)
	}
	if got := cmd.(editor.ReplaceText).New; got != "The new opening, clearer than before." {
		t.Errorf("expected markdown stripped, got %q", got)
	}
}

func TestDeleteParagraphFromTarget(t *testing.T) {
	d := doc("Intro.", "", "Remove this paragraph please.")
	cmd, err := newInterpreter(&fakeModel{}).Command(context.Background(), Intent{Action: ActionDeleteParagraph, Target: "Remove this"}, d)
	if err != nil {
		t.Fatal(err)
	}
	if cmd != (editor.DeleteParagraph{Visible: 1}) {
		t.Errorf("expected visible paragraph 1, got %#v", cmd)
	}
}

func TestModelErrorPropagates(t *testing.T) {
	m := &fakeModel{err: &llm.RetryableError{StatusCode: 529}}
	_, err := newInterpreter(m).Interpret(context.Background(), "make it bold", "")
	if !llm.IsRetryable(err) {
		t.Errorf("expected wrapped retryable error, got %v", err)
	}
	if !strings.HasPrefix(UserMessage(err), "Error processing the command") {
		t.Errorf("unexpected user message %q", UserMessage(err))
	}
}

func TestSuggest(t *testing.T) {
	m := &fakeModel{replies: []string{`["One.", "Two.", "", "Three.", "Four."]`}}
	got, err := newInterpreter(m).Suggest(context.Background(), "Original.")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0] != "One." || got[2] != "Three." {
		t.Errorf("unexpected suggestions %q", got)
	}
	if _, err := newInterpreter(m).Suggest(context.Background(), "  "); err == nil {
		t.Error("expected error for empty selection")
	}
}

func TestParseSuggestionsFallsBackToLines(t *testing.T) {
	got := ParseSuggestions("1. First option\n2) Second option\n- Third option\n")
	want := []string{"First option", "Second option", "Third option"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("expected %q, got %q", want, got)
	}
}
