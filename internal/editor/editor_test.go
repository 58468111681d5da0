package editor

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/dgallion1/reportedit/internal/document"
)

func doc(texts ...string) *document.Document {
	d := document.New()
	for _, t := range texts {
		d.Paragraphs = append(d.Paragraphs, document.NewParagraph(t))
	}
	return d
}

func intp(n int) *int { return &n }

func TestReplaceTextSingleParagraph(t *testing.T) {
	d := doc("The quick brown fox jumps over the lazy dog.")
	out := (&Executor{}).Execute(d, ReplaceText{Old: "quick brown fox", New: "slow red hare"})
	if !out.Success {
		t.Fatalf("expected success, got %q", out.Message)
	}
	if got := out.Doc.Paragraphs[0].Text(); got != "The slow red hare jumps over the lazy dog." {
		t.Errorf("expected replaced text, got %q", got)
	}
	if out.Change.Kind != KindReplaceText || out.Change.Before != "quick brown fox" {
		t.Errorf("unexpected change %+v", out.Change)
	}
	if *out.Change.Paragraph != 0 {
		t.Errorf("expected position 0, got %d", *out.Change.Paragraph)
	}
}

func TestReplaceTextNotFoundLeavesDocument(t *testing.T) {
	d := doc("First paragraph.", "Second paragraph.")
	before := d.Clone()
	out := (&Executor{}).Execute(d, ReplaceText{Old: "nonexistent phrase", New: "x"})
	if out.Success {
		t.Fatal("expected failure")
	}
	if out.Doc != d {
		t.Error("expected the input document back on failure")
	}
	if !reflect.DeepEqual(d, before) {
		t.Error("input document was modified")
	}
	var f *Failure
	if !errors.As(out.Err, &f) || f.Kind != NotFound {
		t.Errorf("expected NotFound failure, got %v", out.Err)
	}
}

func TestReplaceTextRestrictedToParagraph(t *testing.T) {
	d := doc("alpha beta", "alpha gamma")
	out := (&Executor{}).Execute(d, ReplaceText{Old: "alpha", New: "omega", Paragraph: intp(1)})
	if !out.Success {
		t.Fatalf("expected success, got %q", out.Message)
	}
	if got := out.Doc.Texts(); got[0] != "alpha beta" || got[1] != "omega gamma" {
		t.Errorf("expected only paragraph 1 changed, got %q", got)
	}

	out = (&Executor{}).Execute(d, ReplaceText{Old: "beta", New: "x", Paragraph: intp(1)})
	if out.Success {
		t.Error("expected failure when the text is in another paragraph")
	}
	out = (&Executor{}).Execute(d, ReplaceText{Old: "beta", New: "x", Paragraph: intp(9)})
	if out.Success {
		t.Error("expected failure for out of range paragraph")
	}
}

func TestReplaceTextAcrossParagraphs(t *testing.T) {
	d := doc(
		"Quarterly report overview",
		"",
		"Revenue grew strongly in the northern region this year.",
		"Operating costs were reduced through careful vendor renegotiation.",
		"Headcount remained flat while output per employee increased.",
		"Next year we expect moderate growth.",
	)
	target := d.Paragraphs[3].Text() + "\n" + d.Paragraphs[4].Text()
	out := (&Executor{}).Execute(d, ReplaceText{Old: target, New: "Costs fell.\nHeadcount held steady."})
	if !out.Success {
		t.Fatalf("expected success, got %q", out.Message)
	}
	want := []string{
		"Quarterly report overview",
		"",
		"Revenue grew strongly in the northern region this year.",
		"Costs fell.",
		"Headcount held steady.",
		"Next year we expect moderate growth.",
	}
	if got := out.Doc.Texts(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestDeleteTextAcrossParagraphsDropsEmptied(t *testing.T) {
	d := doc(
		"Quarterly report overview",
		"Revenue grew strongly in the northern region this year.",
		"Operating costs were reduced through careful vendor renegotiation.",
		"Headcount remained flat while output per employee increased.",
	)
	target := d.Paragraphs[2].Text() + "\n" + d.Paragraphs[3].Text()
	out := (&Executor{}).Execute(d, ReplaceText{Old: target, New: ""})
	if !out.Success {
		t.Fatalf("expected success, got %q", out.Message)
	}
	want := []string{
		"Quarterly report overview",
		"Revenue grew strongly in the northern region this year.",
	}
	if got := out.Doc.Texts(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestFormatTextSplitsRuns(t *testing.T) {
	d := doc("This is important information")
	out := (&Executor{}).Execute(d, FormatText{Target: "important", Style: document.Bold})
	if !out.Success {
		t.Fatalf("expected success, got %q", out.Message)
	}
	runs := out.Doc.Paragraphs[0].Runs
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d: %+v", len(runs), runs)
	}
	want := []struct {
		text string
		bold bool
	}{{"This is ", false}, {"important", true}, {" information", false}}
	for i, w := range want {
		if runs[i].Text != w.text || runs[i].Bold != w.bold {
			t.Errorf("run %d: expected %q bold=%v, got %q bold=%v", i, w.text, w.bold, runs[i].Text, runs[i].Bold)
		}
	}
	if d.Paragraphs[0].Runs[0].Bold || len(d.Paragraphs[0].Runs) != 1 {
		t.Error("input document was modified")
	}
}

func TestRemoveFormatting(t *testing.T) {
	p := document.Paragraph{Runs: []document.Run{
		{Text: "keep ", Bold: true},
		{Text: "clear me", Bold: true, Italic: true},
	}}
	d := document.New(p)
	bold := document.Bold

	out := (&Executor{}).Execute(d, RemoveFormatting{Target: "clear me", Style: &bold})
	if !out.Success {
		t.Fatalf("expected success, got %q", out.Message)
	}
	runs := out.Doc.Paragraphs[0].Runs
	if !runs[0].Bold {
		t.Error("expected untouched run to stay bold")
	}
	if runs[1].Bold || !runs[1].Italic {
		t.Errorf("expected only bold cleared, got %+v", runs[1])
	}

	out = (&Executor{}).Execute(d, RemoveFormatting{Target: "clear me"})
	if r := out.Doc.Paragraphs[0].Runs[1]; r.Bold || r.Italic || r.Underline {
		t.Errorf("expected all flags cleared, got %+v", r)
	}
}

func TestRemoveFormattingHintIsAdvisory(t *testing.T) {
	p := document.Paragraph{Runs: []document.Run{{Text: "bold words", Bold: true}}}
	d := document.New(document.NewParagraph("intro"), p)
	out := (&Executor{}).Execute(d, RemoveFormatting{Target: "bold words", Paragraph: intp(0)})
	if !out.Success {
		t.Fatalf("expected success, got %q", out.Message)
	}
	if out.Doc.Paragraphs[1].Runs[0].Bold {
		t.Error("expected bold cleared in paragraph 1")
	}
}

func TestAddParagraph(t *testing.T) {
	d := doc("one", "two")
	ex := &Executor{}

	out := ex.Execute(d, AddParagraph{Text: "end"})
	if got := out.Doc.Texts(); !reflect.DeepEqual(got, []string{"one", "two", "end"}) {
		t.Errorf("expected append, got %q", got)
	}
	out = ex.Execute(d, AddParagraph{Text: "middle", After: intp(0)})
	if got := out.Doc.Texts(); !reflect.DeepEqual(got, []string{"one", "middle", "two"}) {
		t.Errorf("expected insert after 0, got %q", got)
	}
	out = ex.Execute(d, AddParagraph{Text: "x", After: intp(2)})
	if out.Success {
		t.Error("expected failure for out of range paragraph")
	}
}

func TestDeleteParagraphUsesVisibleNumbering(t *testing.T) {
	d := doc("", "first visible", "second visible")
	out := (&Executor{}).Execute(d, DeleteParagraph{Visible: 0})
	if !out.Success {
		t.Fatalf("expected success, got %q", out.Message)
	}
	if got := out.Doc.Texts(); !reflect.DeepEqual(got, []string{"", "second visible"}) {
		t.Errorf("expected blank and second paragraph, got %q", got)
	}
	if *out.Change.Paragraph != 1 {
		t.Errorf("expected structural index 1, got %d", *out.Change.Paragraph)
	}
}

func TestDeleteParagraphOutOfRangePolicy(t *testing.T) {
	// Two visible paragraphs, four structural ones.
	d := doc("a", "", "b", "")

	out := (&Executor{Policy: document.FallbackRaw}).Execute(d, DeleteParagraph{Visible: 3})
	if !out.Success {
		t.Fatalf("expected raw fallback to succeed, got %q", out.Message)
	}
	if got := out.Doc.Texts(); !reflect.DeepEqual(got, []string{"a", "", "b"}) {
		t.Errorf("expected structural paragraph 3 removed, got %q", got)
	}

	out = (&Executor{Policy: document.Strict}).Execute(d, DeleteParagraph{Visible: 3})
	if out.Success {
		t.Error("expected strict policy to reject id past the visible range")
	}

	out = (&Executor{}).Execute(d, DeleteParagraph{Visible: 4})
	if out.Success {
		t.Error("expected failure for id past the document")
	}
}

func TestFormatAllText(t *testing.T) {
	d := doc("one", "", "two")
	out := (&Executor{}).Execute(d, FormatAllText{Style: document.Italic})
	if !out.Success {
		t.Fatalf("expected success, got %q", out.Message)
	}
	for _, i := range []int{0, 2} {
		for _, r := range out.Doc.Paragraphs[i].Runs {
			if !r.Italic {
				t.Errorf("paragraph %d: expected italic run, got %+v", i, r)
			}
		}
	}
	if out.Message != "Applied italic to all text (2 paragraphs)" {
		t.Errorf("unexpected message %q", out.Message)
	}
}

func TestFormatAllHeadings(t *testing.T) {
	styled := func(text, style string) document.Paragraph {
		p := document.NewParagraph(text)
		p.StyleName = style
		return p
	}
	d := document.New(
		styled("Annual Report", "Title"),
		styled("Fiscal year 2025", "Subtitle"),
		styled("Overview", "Heading1"),
		document.NewParagraph("body"),
		styled("Headings are listed below", "Normal"),
	)
	out := (&Executor{}).Execute(d, FormatAllHeadings{Style: document.Underline})
	for i, want := range []bool{true, true, true, false, false} {
		if got := out.Doc.Paragraphs[i].Runs[0].Underline; got != want {
			t.Errorf("paragraph %d (%q): expected underline %v, got %v", i, out.Doc.Paragraphs[i].StyleName, want, got)
		}
	}
	if out.Message != "Applied underline to all headings (3 headings)" {
		t.Errorf("unexpected message %q", out.Message)
	}
}

func TestRewriteDocumentLeavesNoOldText(t *testing.T) {
	h1 := document.NewParagraph("Introduction")
	h1.StyleName = "Heading1"
	h2 := document.NewParagraph("Costs")
	h2.StyleName = "Heading1"
	d := document.New(
		h1,
		document.NewParagraph("This report covers the third quarter."),
		h2,
		document.NewParagraph("Costs rose across every region, driven mostly by freight and energy prices."),
		document.NewParagraph(""),
		document.NewParagraph("Summary: all good."),
	)
	old := d.Texts()

	out := (&Executor{}).Execute(d, RewriteDocument{Paragraphs: []document.Paragraph{
		document.NewParagraph("New intro."),
		document.NewParagraph(""),
		document.NewParagraph("New body text."),
	}})
	if !out.Success {
		t.Fatalf("expected success, got %q", out.Message)
	}
	want := []string{"New intro.", "New body text."}
	if got := out.Doc.Texts(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
	for _, p := range out.Doc.Paragraphs {
		for _, o := range old {
			if o != "" && p.Text() == o {
				t.Errorf("old paragraph %q survived", o)
			}
		}
	}
	if out.Change.Kind != KindRewriteDocument || out.Change.Before != d.PlainText() || out.Change.After != "New intro.\nNew body text." {
		t.Errorf("unexpected change %+v", out.Change)
	}
	if !reflect.DeepEqual(d.Texts(), old) {
		t.Error("input document was modified")
	}

	empty := (&Executor{}).Execute(d, RewriteDocument{Paragraphs: []document.Paragraph{document.NewParagraph("  ")}})
	var f *Failure
	if empty.Success || !errors.As(empty.Err, &f) || f.Kind != InvalidArgument {
		t.Errorf("expected invalid argument for an empty rewrite, got %+v", empty)
	}
}

func TestReplaceAllOccurrences(t *testing.T) {
	d := doc("cat and cat", "no match", "one cat")
	out := (&Executor{}).Execute(d, ReplaceAllOccurrences{Old: "cat", New: "dog"})
	if !out.Success {
		t.Fatalf("expected success, got %q", out.Message)
	}
	want := []string{"dog and dog", "no match", "one dog"}
	if got := out.Doc.Texts(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}
	if out.Message != `Replaced "cat" with "dog" 3 times` {
		t.Errorf("unexpected message %q", out.Message)
	}

	out = (&Executor{}).Execute(d, ReplaceAllOccurrences{Old: "bird", New: "dog"})
	if out.Success {
		t.Error("expected failure when nothing matches")
	}
}

func TestRemoveAllFormattingIdempotent(t *testing.T) {
	p := document.Paragraph{Runs: []document.Run{
		{Text: "a", Bold: true},
		{Text: "b", Italic: true, Underline: true},
	}}
	d := document.New(p)
	ex := &Executor{}
	once := ex.Execute(d, RemoveAllFormatting{})
	twice := ex.Execute(once.Doc, RemoveAllFormatting{})
	if !reflect.DeepEqual(once.Doc, twice.Doc) {
		t.Error("expected second pass to change nothing")
	}
	for _, r := range twice.Doc.Paragraphs[0].Runs {
		if r.Bold || r.Italic || r.Underline {
			t.Errorf("expected plain run, got %+v", r)
		}
	}
}

func TestExecuteNilCommand(t *testing.T) {
	out := (&Executor{}).Execute(doc("x"), nil)
	if out.Success {
		t.Error("expected failure")
	}
}

func TestPayloadDecode(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Command
		kind FailureKind
	}{
		{"replace", `{"command":"replace_text","oldText":"a","newText":"b","paragraphId":2}`,
			ReplaceText{Old: "a", New: "b", Paragraph: intp(2)}, 0},
		{"string id", `{"command":"delete_paragraph","paragraphId":"4"}`,
			DeleteParagraph{Visible: 4}, 0},
		{"format", `{"command":"format_text","text":"x","style":"Bold"}`,
			FormatText{Target: "x", Style: document.Bold}, 0},
		{"add", `{"command":"add_paragraph","text":"new","afterParagraphId":1,"user_id":7}`,
			AddParagraph{Text: "new", After: intp(1)}, 0},
		{"remove all styles", `{"command":"remove_formatting","text":"x"}`,
			RemoveFormatting{Target: "x"}, 0},
		{"remove all", `{"command":"remove_all_formatting"}`, RemoveAllFormatting{}, 0},
		{"unknown", `{"command":"explode"}`, nil, Unsupported},
		{"bad style", `{"command":"format_all_text","style":"strike"}`, nil, Unsupported},
		{"missing old", `{"command":"replace_text","newText":"b"}`, nil, InvalidArgument},
		{"missing id", `{"command":"delete_paragraph"}`, nil, InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Payload
			if err := json.Unmarshal([]byte(tt.json), &p); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			got, err := p.Decode()
			if tt.want == nil {
				var f *Failure
				if !errors.As(err, &f) || f.Kind != tt.kind {
					t.Fatalf("expected %s failure, got %v", tt.kind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %#v, got %#v", tt.want, got)
			}
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	italic := document.Italic
	cmds := []Command{
		ReplaceText{Old: "a", New: "b"},
		FormatText{Target: "x", Style: document.Underline, Paragraph: intp(3)},
		RemoveFormatting{Target: "y", Style: &italic},
		DeleteParagraph{Visible: 2},
	}
	for _, c := range cmds {
		got, err := Encode(c).Decode()
		if err != nil {
			t.Fatalf("%s: %v", c.Kind(), err)
		}
		if !reflect.DeepEqual(got, c) {
			t.Errorf("expected %#v, got %#v", c, got)
		}
	}
}

func TestIndexRejectsText(t *testing.T) {
	var p Payload
	if err := json.Unmarshal([]byte(`{"paragraphId":"third"}`), &p); err == nil {
		t.Error("expected error for non numeric id")
	}
}
