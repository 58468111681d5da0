package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/reportedit/internal/document"
	"github.com/dgallion1/reportedit/internal/docxio"
	"github.com/dgallion1/reportedit/internal/store"
	"github.com/dgallion1/reportedit/internal/versions"
	"github.com/google/uuid"
)

// CreateReport stores doc as version 1 of a new report.
func (s *Service) CreateReport(ctx context.Context, title string, doc *document.Document) (store.Report, error) {
	data, err := docxio.Build(doc)
	if err != nil {
		return store.Report{}, fmt.Errorf("build docx: %w", err)
	}
	return s.create(ctx, title, data, doc)
}

// ImportReport stores an uploaded .docx as version 1 of a new report.
func (s *Service) ImportReport(ctx context.Context, title string, data []byte) (store.Report, error) {
	_, doc, err := docxio.Decode(data)
	if err != nil {
		return store.Report{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return s.create(ctx, title, data, doc)
}

func (s *Service) create(ctx context.Context, title string, data []byte, doc *document.Document) (store.Report, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled report"
	}
	key := versions.FilePath(fmt.Sprintf("reports/%s/%s.docx", uuid.NewString(), Slugify(title)), 1)
	if err := s.blobs.Put(ctx, key, data); err != nil {
		return store.Report{}, fmt.Errorf("write report file: %w", err)
	}
	html := s.render(doc, s.log.With("file", key))

	r := store.Report{
		Title:           title,
		FilePath:        key,
		HTMLContent:     &html,
		DocumentVersion: 1,
	}
	st := r.Versions()
	st.EnsureInitialized(s.now())
	r.SetVersions(st)
	if err := s.store.CreateReport(ctx, &r); err != nil {
		return store.Report{}, fmt.Errorf("create report: %w", err)
	}
	s.log.Info("report created", "report_id", r.ID, "title", title, "file", key, "paragraphs", doc.Len())
	return r, nil
}

var (
	slugInvalid = regexp.MustCompile(`[^a-z0-9-]`)
	slugDashes  = regexp.MustCompile(`-+`)
)

// Slugify converts a title to a path-safe file stem.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugInvalid.ReplaceAllString(s, "-")
	s = slugDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 50 {
		s = strings.TrimRight(s[:50], "-")
	}
	if s == "" {
		return "report"
	}
	return s
}
