// Package service runs edit commands against stored reports: it loads the
// current document, applies the command, writes the new version and
// records the edit, all under a per-report lock.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/reportedit/internal/blob"
	"github.com/dgallion1/reportedit/internal/document"
	"github.com/dgallion1/reportedit/internal/docxio"
	"github.com/dgallion1/reportedit/internal/editor"
	"github.com/dgallion1/reportedit/internal/interpret"
	"github.com/dgallion1/reportedit/internal/lock"
	"github.com/dgallion1/reportedit/internal/render"
	"github.com/dgallion1/reportedit/internal/store"
	"github.com/dgallion1/reportedit/internal/versions"
)

var (
	// ErrNoModel is returned by chat operations when no model is configured.
	ErrNoModel = errors.New("no language model configured")
	// ErrInvalidVersion is a version number outside 1..current.
	ErrInvalidVersion = errors.New("invalid version number")
	// ErrInvalidDocument is an upload that is not a readable .docx.
	ErrInvalidDocument = errors.New("invalid document")
)

// Deps are the collaborators of a Service. Interpreter may be nil, which
// disables the chat operations. Renderer defaults to render.HTML.
type Deps struct {
	Store       store.Store
	Blobs       blob.Store
	Locks       lock.Locker
	Executor    *editor.Executor
	Interpreter *interpret.Interpreter
	Renderer    render.Renderer
	Log         *slog.Logger
}

type Service struct {
	store    store.Store
	blobs    blob.Store
	locks    lock.Locker
	exec     *editor.Executor
	interp   *interpret.Interpreter
	renderer render.Renderer
	log      *slog.Logger
	now      func() time.Time
}

func New(d Deps) *Service {
	if d.Renderer == nil {
		d.Renderer = render.HTML{}
	}
	if d.Executor == nil {
		d.Executor = editor.NewExecutor(document.FallbackRaw, d.Log)
	}
	return &Service{
		store:    d.Store,
		blobs:    d.Blobs,
		locks:    d.Locks,
		exec:     d.Executor,
		interp:   d.Interpreter,
		renderer: d.Renderer,
		log:      d.Log,
		now:      time.Now,
	}
}

// EditResult is the reply to an edit. Version and HTML are set on success.
type EditResult struct {
	editor.Result
	Version int     `json:"document_version,omitempty"`
	HTML    *string `json:"html_content,omitempty"`
}

// Origin identifies who asked for an edit.
type Origin struct {
	UserID    *int64
	MessageID *int64
}

// Edit decodes p and applies it to report id. Command failures come back
// as an unsuccessful result; the error is reserved for missing reports,
// lock and version conflicts, and storage failures.
func (s *Service) Edit(ctx context.Context, id int64, p editor.Payload) (EditResult, error) {
	cmd, err := p.Decode()
	if err != nil {
		return EditResult{Result: failure(err)}, nil
	}
	return s.Apply(ctx, id, cmd, Origin{UserID: p.UserID, MessageID: p.MessageID})
}

// Apply runs cmd against the current version of report id and, when it
// succeeds, stores the result as the next version.
func (s *Service) Apply(ctx context.Context, id int64, cmd editor.Command, from Origin) (EditResult, error) {
	log := s.log.With("report_id", id, "command", cmd.Kind())
	var res EditResult
	err := s.withLock(ctx, id, func() error {
		r, err := s.store.GetReport(ctx, id)
		if err != nil {
			return err
		}
		doc, file, err := s.load(ctx, r.FilePath)
		if err != nil {
			return err
		}

		out := s.exec.Execute(doc, cmd)
		if !out.Success {
			log.Info("edit rejected", "reason", out.Message)
			res = EditResult{Result: out.Result}
			return nil
		}

		st := r.Versions()
		st.EnsureInitialized(s.now())
		data, err := file.Encode(out.Doc)
		if err != nil {
			res, err = s.saveFailed(ctx, log, fmt.Errorf("encode document: %w", err))
			return err
		}
		key := versions.FilePath(st.FilePath, st.Next())
		if err := s.blobs.Put(ctx, key, data); err != nil {
			res, err = s.saveFailed(ctx, log, fmt.Errorf("write version file: %w", err))
			return err
		}
		html := s.render(out.Doc, log)
		entry := st.Append(versions.Content{FilePath: key, HTML: &html}, out.Change.Description, s.now())

		expected := r.DocumentVersion
		r.SetVersions(st)
		edit := &store.Edit{
			ReportID:        id,
			UserID:          from.UserID,
			ChatMessageID:   from.MessageID,
			EditType:        string(out.Change.Kind),
			ContentBefore:   nonEmpty(out.Change.Before),
			ContentAfter:    nonEmpty(out.Change.After),
			Paragraph:       out.Change.Paragraph,
			Diff:            store.Diff(doc.PlainText(), out.Doc.PlainText()),
			DocumentVersion: entry.Version,
			CreatedAt:       s.now(),
		}
		if err := s.persist(ctx, r, st, expected, edit, key); err != nil {
			if isStateError(err) {
				return err
			}
			res, err = s.saveFailed(ctx, log, err)
			return err
		}
		log.Info("edit applied", "version", entry.Version, "file", key)
		res = EditResult{Result: out.Result, Version: entry.Version, HTML: &html}
		return nil
	})
	return res, err
}

// saveMessage is shown when an edit was applied in memory but could not be
// stored.
const saveMessage = "The edit could not be saved, so the document was left unchanged. Please try again."

// saveFailed logs a storage failure and turns it into a failed edit. A
// cancelled request is returned as an error instead.
func (s *Service) saveFailed(ctx context.Context, log *slog.Logger, cause error) (EditResult, error) {
	if err := ctx.Err(); err != nil {
		return EditResult{}, err
	}
	log.Error("edit not saved", "error", cause)
	return EditResult{Result: editor.Result{Success: false, Message: saveMessage}}, nil
}

// persist validates st and stores r with it. When storing fails the
// version file written under key is removed again.
func (s *Service) persist(ctx context.Context, r store.Report, st versions.State, expected int, edit *store.Edit, key string) error {
	err := st.Validate()
	if err != nil {
		err = fmt.Errorf("version history: %w", err)
	} else if err = s.store.UpdateReport(ctx, r, expected, edit); err != nil {
		err = fmt.Errorf("save report: %w", err)
	}
	if err == nil {
		return nil
	}
	if derr := s.blobs.Delete(context.WithoutCancel(ctx), key); derr != nil {
		s.log.Warn("remove unsaved version file", "report_id", r.ID, "file", key, "error", derr)
	}
	return err
}

// isStateError reports errors that describe the report rather than a
// storage fault: a missing report or a concurrent update.
func isStateError(err error) bool {
	return errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConflict)
}

// withLock runs fn while holding the edit lock of report id.
func (s *Service) withLock(ctx context.Context, id int64, fn func() error) error {
	lease, err := s.locks.Acquire(ctx, fmt.Sprintf("report:%d", id))
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("release edit lock", "report_id", id, "error", err)
		}
	}()
	return fn()
}

// load reads and parses the .docx stored under key.
func (s *Service) load(ctx context.Context, key string) (*document.Document, *docxio.File, error) {
	data, err := s.blobs.Get(ctx, key)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", key, err)
	}
	file, doc, err := docxio.Decode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return doc, file, nil
}

// render falls back to plain paragraphs when the full renderer fails; the
// edit itself has already succeeded at that point.
func (s *Service) render(doc *document.Document, log *slog.Logger) string {
	html, err := s.renderer.Render(doc)
	if err != nil {
		log.Warn("render failed, using fallback", "error", err)
		return render.Fallback(doc)
	}
	return html
}

func failure(err error) editor.Result {
	var f *editor.Failure
	if errors.As(err, &f) {
		return editor.Result{Success: false, Message: f.Message}
	}
	return editor.Result{Success: false, Message: err.Error()}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Report returns the stored report row.
func (s *Service) Report(ctx context.Context, id int64) (store.Report, error) {
	return s.store.GetReport(ctx, id)
}

// Ping checks the report store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Edits returns the newest edit log entries of report id.
func (s *Service) Edits(ctx context.Context, id int64, limit int) ([]store.Edit, error) {
	if _, err := s.store.GetReport(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListEdits(ctx, id, limit)
}
