package interpret

import (
	"fmt"
	"strings"
)

// previewLimit caps how much document text goes into the analysis prompt.
const previewLimit = 1500

const analysisSystem = `You are an expert document editor. The user gave a command for editing a report. Work out exactly what they want and answer with instructions in JSON.`

const analysisRules = `Critical rules:
- If there is selected text, copy it EXACTLY into "target". Do not change, extend or shorten it.

Rules:
1. "Rephrase the text" without naming any text means the whole document or its first paragraph.
2. "Rephrase the first paragraph" means find the first paragraph of the document.
3. Requests to make something bold, italic or underlined are formatting.
4. Requests to swap particular words are replacements.
5. For "delete the paragraph" with a selection that has a paragraph number, use that number.
6. Ordinal words (first, second, third...) become a plain number in "paragraph_id" (1, 2, 3...).
7. "Delete this paragraph" with a selection but no number uses the selection's paragraph.
8. Unless the user explicitly asks to delete a paragraph, use "delete_text" on the selected text.
9. If the command is unclear, answer "clarify" and explain what needs clarifying.

Actions:
- rewrite_all: rephrase the whole document
- rewrite_paragraph: rephrase one paragraph (say which in "target")
- replace_text: replace one piece of text with another
- replace_all_occurrences: replace every occurrence of a word or phrase
- remove_formatting: remove one kind of formatting
- remove_all_formatting: remove all formatting
- format_text: make text bold, italic or underlined
- add_text: add new text
- add_paragraph: add a new paragraph
- delete_text: delete text
- delete_paragraph: delete a paragraph
- format_all_text: format the WHOLE document
- format_all_headings: format every heading

Answer with JSON in this shape:
{
    "action": "action_name",
    "target": "the exact text to work on",
    "replacement": "new text (for replacements and additions)",
    "style": "bold/italic/underline (for formatting)",
    "paragraph_id": null,
    "explanation": "what will be done"
}

If the command is unclear, answer:
{
    "action": "clarify",
    "explanation": "what the user needs to clarify"
}

Respond with ONLY the JSON object, no other text.`

// BuildAnalysisPrompt assembles the user turn for command analysis.
func BuildAnalysisPrompt(command string, sel *Selection, docText string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "User command: %q\n\n", command)
	if sel != nil {
		fmt.Fprintf(&sb, "Selected text: %q\n", sel.Text)
		if sel.Paragraph != nil {
			fmt.Fprintf(&sb, "Paragraph: %d\n", *sel.Paragraph)
		} else {
			sb.WriteString("Paragraph: not given\n")
		}
	} else {
		sb.WriteString("Selected text: none\nParagraph: not given\n")
	}
	sb.WriteString("\n---\nDocument text:\n")
	sb.WriteString(preview(docText))
	sb.WriteString("\n---\n\n")
	sb.WriteString(analysisRules)
	return sb.String()
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLimit {
		return s
	}
	return string(r[:previewLimit])
}

const rewriteSystem = `You rewrite report text. Keep the meaning, improve style and clarity, fix grammar. Return only the rewritten text, without quotes or commentary.`

// BuildRewritePrompt asks for one passage to be rephrased.
func BuildRewritePrompt(passage string) string {
	return fmt.Sprintf("Rephrase the following text, keeping its meaning but improving style and clarity:\n\n%q", passage)
}

// BuildRewriteAllPrompt asks for the whole document to be rephrased with its
// paragraph structure intact.
func BuildRewriteAllPrompt(docText string) string {
	return "Rephrase the following document, keeping its meaning but improving style, clarity and readability.\n\n" +
		"Requirements:\n" +
		"- Keep the structure: one output line per input line, in the same order\n" +
		"- Make the text clearer and more professional\n" +
		"- Fix grammatical errors\n" +
		"- Keep every key idea and fact\n\n" +
		"---\n" + docText
}

const suggestSystem = `You suggest better phrasings for a passage of a report.`

// BuildSuggestPrompt asks for up to n alternative phrasings as a JSON array.
func BuildSuggestPrompt(selected string, n int) string {
	return fmt.Sprintf("Suggest %d alternative ways to write the following text. Keep the meaning; vary tone and length.\n\n"+
		"Respond with ONLY a JSON array of strings.\n\n---\n%s", n, selected)
}
