package service

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/dgallion1/reportedit/internal/store"
	"github.com/dgallion1/reportedit/internal/versions"
)

// History is the version listing of a report.
type History struct {
	CurrentVersion int                `json:"current_version"`
	TotalVersions  int                `json:"total_versions"`
	History        []versions.Summary `json:"history"`
}

// Versions lists the history of report id, seeding it when the report has
// none yet. HasFile reflects whether the version's file still exists.
func (s *Service) Versions(ctx context.Context, id int64) (History, error) {
	r, err := s.store.GetReport(ctx, id)
	if err != nil {
		return History{}, err
	}
	st := r.Versions()
	if st.EnsureInitialized(s.now()) {
		seeded := r
		seeded.SetVersions(st)
		if err := s.store.UpdateReport(ctx, seeded, r.DocumentVersion, nil); err != nil && !errors.Is(err, store.ErrConflict) {
			return History{}, fmt.Errorf("seed history: %w", err)
		}
	}
	list := st.List()
	for i := range list {
		if !list[i].HasFile {
			continue
		}
		e, _ := st.Lookup(list[i].Version)
		ok, err := s.blobs.Exists(ctx, e.FilePath)
		if err != nil {
			s.log.Warn("check version file", "report_id", id, "version", e.Version, "error", err)
		}
		list[i].HasFile = ok
	}
	return History{CurrentVersion: st.Version, TotalVersions: len(list), History: list}, nil
}

// VersionResult is the reply to CreateVersion and Restore.
type VersionResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	NewVersion int    `json:"new_version,omitempty"`
}

// CreateVersion copies the current content forward as a new version.
func (s *Service) CreateVersion(ctx context.Context, id int64, description string) (VersionResult, error) {
	var res VersionResult
	err := s.withLock(ctx, id, func() error {
		r, err := s.store.GetReport(ctx, id)
		if err != nil {
			return err
		}
		st := r.Versions()
		st.EnsureInitialized(s.now())
		key := versions.FilePath(st.FilePath, st.Next())
		if err := s.blobs.Copy(ctx, st.FilePath, key); err != nil {
			return fmt.Errorf("copy version file: %w", err)
		}
		e := st.CreateNewVersion(key, description, s.now())

		expected := r.DocumentVersion
		r.SetVersions(st)
		if err := s.persist(ctx, r, st, expected, nil, key); err != nil {
			return err
		}
		res = VersionResult{Success: true, Message: fmt.Sprintf("Version %d created", e.Version), NewVersion: e.Version}
		return nil
	})
	return res, err
}

// Restore makes a copy of version v the new current version. History is
// never truncated.
func (s *Service) Restore(ctx context.Context, id int64, v int) (VersionResult, error) {
	var res VersionResult
	err := s.withLock(ctx, id, func() error {
		r, err := s.store.GetReport(ctx, id)
		if err != nil {
			return err
		}
		st := r.Versions()
		st.EnsureInitialized(s.now())
		if v < 1 || v > st.Version {
			return fmt.Errorf("%w: %d (current is %d)", ErrInvalidVersion, v, st.Version)
		}
		if v == st.Version {
			res = VersionResult{Success: true, Message: fmt.Sprintf("Version %d is already the current version", v)}
			return nil
		}
		old, ok := st.Lookup(v)
		if !ok {
			return fmt.Errorf("%w: %d", versions.ErrVersionNotFound, v)
		}

		key := versions.FilePath(st.FilePath, st.Next())
		if err := s.blobs.Copy(ctx, old.FilePath, key); err != nil {
			return fmt.Errorf("copy version %d file: %w", v, err)
		}
		e, err := st.Restore(v, key, s.now())
		if err != nil {
			if derr := s.blobs.Delete(context.WithoutCancel(ctx), key); derr != nil {
				s.log.Warn("remove unused version file", "report_id", id, "file", key, "error", derr)
			}
			return err
		}

		expected := r.DocumentVersion
		r.SetVersions(st)
		if err := s.persist(ctx, r, st, expected, nil, key); err != nil {
			return err
		}
		s.log.Info("version restored", "report_id", id, "from", v, "version", e.Version)
		res = VersionResult{Success: true, Message: fmt.Sprintf("Version %d restored as version %d", v, e.Version), NewVersion: e.Version}
		return nil
	})
	return res, err
}

// HTMLView is a rendered version.
type HTMLView struct {
	HTML    string `json:"html"`
	Version int    `json:"version"`
}

// HTML returns the rendered HTML of version v, or of the current version
// when v is nil. Cached HTML is used when present; otherwise the version's
// file is rendered.
func (s *Service) HTML(ctx context.Context, id int64, v *int) (HTMLView, error) {
	r, err := s.store.GetReport(ctx, id)
	if err != nil {
		return HTMLView{}, err
	}
	current := max(r.DocumentVersion, 1)
	if v == nil || *v == current {
		if r.HTMLContent != nil && *r.HTMLContent != "" {
			return HTMLView{HTML: *r.HTMLContent, Version: current}, nil
		}
		html, err := s.renderFile(ctx, r.FilePath)
		if err != nil {
			return HTMLView{}, err
		}
		cached := r
		cached.HTMLContent = &html
		if err := s.store.UpdateReport(ctx, cached, r.DocumentVersion, nil); err != nil && !errors.Is(err, store.ErrConflict) {
			s.log.Warn("cache html", "report_id", id, "error", err)
		}
		return HTMLView{HTML: html, Version: current}, nil
	}

	if *v < 1 || *v > current {
		return HTMLView{}, fmt.Errorf("%w: %d (current is %d)", ErrInvalidVersion, *v, current)
	}
	st := r.Versions()
	e, ok := st.Lookup(*v)
	if !ok {
		return HTMLView{}, fmt.Errorf("%w: %d", versions.ErrVersionNotFound, *v)
	}
	if e.HTMLContent != nil && *e.HTMLContent != "" {
		return HTMLView{HTML: *e.HTMLContent, Version: *v}, nil
	}
	if e.FilePath == "" {
		return HTMLView{}, fmt.Errorf("%w: %d has no content", versions.ErrVersionNotFound, *v)
	}
	html, err := s.renderFile(ctx, e.FilePath)
	if err != nil {
		return HTMLView{}, err
	}
	return HTMLView{HTML: html, Version: *v}, nil
}

func (s *Service) renderFile(ctx context.Context, key string) (string, error) {
	doc, _, err := s.load(ctx, key)
	if err != nil {
		return "", err
	}
	return s.render(doc, s.log.With("file", key)), nil
}

// File returns the current .docx of report id and its file name.
func (s *Service) File(ctx context.Context, id int64) ([]byte, string, error) {
	r, err := s.store.GetReport(ctx, id)
	if err != nil {
		return nil, "", err
	}
	data, err := s.blobs.Get(ctx, r.FilePath)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", r.FilePath, err)
	}
	return data, path.Base(r.FilePath), nil
}
