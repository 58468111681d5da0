package generate

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/dgallion1/reportedit/internal/chunker"
	"github.com/dgallion1/reportedit/internal/document"
	"github.com/dgallion1/reportedit/internal/llm"
	"github.com/dgallion1/reportedit/internal/mdconv"
	"github.com/dgallion1/reportedit/internal/sources"
	"github.com/dgallion1/reportedit/internal/store"
	"golang.org/x/sync/errgroup"
)

// Creator stores a finished document as a new report.
type Creator interface {
	CreateReport(ctx context.Context, title string, doc *document.Document) (store.Report, error)
}

const missingSection = "This section could not be generated."

// Worker processes one job at a time.
type Worker struct {
	model   llm.Completer
	creator Creator
	log     *slog.Logger

	chunkCfg      chunker.Config
	contextTokens int
	concurrency   int
	pdfFallback   bool
}

func NewWorker(model llm.Completer, creator Creator, log *slog.Logger, chunkCfg chunker.Config, contextTokens, concurrency int) *Worker {
	return &Worker{
		model:         model,
		creator:       creator,
		log:           log,
		chunkCfg:      chunkCfg,
		contextTokens: contextTokens,
		concurrency:   max(concurrency, 1),
	}
}

// Process runs extraction, drafting and report creation for job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "title", job.Title)
	req := job.req

	// Phase 1: reference material.
	job.SetStatus(StatusExtracting, "extracting")
	srcs, hadErrors := w.extract(job, log)
	chunks := chunker.SplitAll(srcs, w.chunkCfg)
	job.SetSources(len(srcs), len(chunks))
	log.Info("reference material extracted", "sources", len(srcs), "chunks", len(chunks))

	// Phase 2: draft each section.
	job.SetStatus(StatusWriting, "writing")
	outline := make([]string, len(req.Sections))
	for i, s := range req.Sections {
		outline[i] = s.Title
	}
	bodies := make([]string, len(req.Sections))
	written := make([]bool, len(req.Sections))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i, sec := range req.Sections {
		g.Go(func() error {
			refs := chunker.Select(chunks, sec.Title+" "+sec.Instructions, w.contextTokens)
			reply, err := w.model.Complete(gctx, llm.Request{
				Op:          "write",
				System:      writeSystem,
				Prompt:      BuildSectionPrompt(job.Title, outline, sec, refs),
				MaxTokens:   2000,
				Temperature: 0.5,
			})
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Error("section failed", "section", sec.Title, "error", err)
				job.AddError(fmt.Sprintf("section %q: %s", sec.Title, err))
				return nil
			}
			bodies[i] = cleanSection(sec.Title, reply)
			written[i] = true
			job.IncrSectionsWritten()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("generation cancelled", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "writing")
		return
	}

	n := 0
	for _, ok := range written {
		if ok {
			n++
		}
	}
	if n == 0 {
		job.SetStatus(StatusFailed, "writing")
		return
	}
	if n < len(written) {
		hadErrors = true
	}

	// Phase 3: build and store.
	job.SetStatus(StatusBuilding, "building")
	doc := document.New(mdconv.Paragraphs(Assemble(job.Title, req.Sections, bodies, written))...)
	r, err := w.creator.CreateReport(ctx, job.Title, doc)
	if err != nil {
		log.Error("create report failed", "error", err)
		job.AddError(fmt.Sprintf("create report: %s", err))
		job.SetStatus(StatusFailed, "building")
		return
	}
	job.SetReport(r.ID)
	log.Info("report generated", "report_id", r.ID, "sections", n, "paragraphs", doc.Len())

	if hadErrors {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
}

// extract parses each distinct upload. The second result reports whether
// any upload could not be used.
func (w *Worker) extract(job *Job, log *slog.Logger) ([]*sources.Source, bool) {
	var (
		out    []*sources.Source
		failed bool
		seen   = map[string]bool{}
	)
	for _, up := range job.req.Uploads {
		hash := ContentHashHex(up.Data)
		if seen[hash] {
			log.Info("duplicate upload skipped", "file", up.Name)
			continue
		}
		seen[hash] = true

		ex, err := sources.ForFile(up.Name)
		if err != nil {
			job.AddError(fmt.Sprintf("%s: %s", up.Name, err))
			failed = true
			continue
		}
		if pdf, ok := ex.(*sources.PDF); ok {
			pdf.FallbackPdftotext = w.pdfFallback
		}
		src, err := ex.Extract(bytes.NewReader(up.Data), up.Name)
		if err != nil {
			log.Warn("extract failed", "file", up.Name, "error", err)
			job.AddError(fmt.Sprintf("%s: %s", up.Name, err))
			failed = true
			continue
		}
		out = append(out, src)
	}
	return out, failed
}

// Assemble joins section bodies into one markdown document under the
// report title. Sections that were not written get a placeholder.
func Assemble(title string, sections []SectionSpec, bodies []string, written []bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	for i, s := range sections {
		fmt.Fprintf(&b, "## %s\n\n", s.Title)
		if !written[i] || strings.TrimSpace(bodies[i]) == "" {
			b.WriteString(missingSection + "\n\n")
			continue
		}
		b.WriteString(bodies[i])
		b.WriteString("\n\n")
	}
	return b.String()
}

var (
	fenceRe   = regexp.MustCompile("(?s)^```[a-zA-Z]*[ \t]*\n(.*?)\\s*```$")
	headingRe = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
)

// cleanSection removes a wrapping code fence and a repeated title line.
// Body headings are kept at level 3 or deeper so they nest under the
// section heading.
func cleanSection(title, reply string) string {
	reply = strings.TrimSpace(reply)
	if m := fenceRe.FindStringSubmatch(reply); m != nil {
		reply = strings.TrimSpace(m[1])
	}
	lines := strings.Split(reply, "\n")
	if len(lines) > 0 {
		if m := headingRe.FindStringSubmatch(strings.TrimSpace(lines[0])); m != nil &&
			strings.EqualFold(strings.TrimSpace(m[2]), strings.TrimSpace(title)) {
			lines = lines[1:]
		}
	}
	inFence := false
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if m := headingRe.FindStringSubmatch(line); m != nil {
			level := max(len(m[1]), 3)
			lines[i] = strings.Repeat("#", level) + " " + m[2]
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
