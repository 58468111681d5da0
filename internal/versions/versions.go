// Package versions keeps the append-only version history of a report.
package versions

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"slices"
	"strconv"
	"time"
)

// Entry is one persisted version. The JSON field names are the stored
// format of the history column.
type Entry struct {
	Version         int     `json:"version"`
	Timestamp       string  `json:"timestamp"`
	Description     string  `json:"description"`
	FilePath        string  `json:"file_path"`
	HTMLContent     *string `json:"html_content"`
	EditDescription string  `json:"edit_description"`
}

// Summary is an Entry without its payloads, for listings.
type Summary struct {
	Version         int    `json:"version"`
	Timestamp       string `json:"timestamp"`
	Description     string `json:"description"`
	EditDescription string `json:"edit_description"`
	HasHTML         bool   `json:"has_html"`
	HasFile         bool   `json:"has_file"`
}

// Content is what a version points at.
type Content struct {
	FilePath string
	HTML     *string
}

// State is the versioned part of a report: the head fields stored on the
// report itself and the history list.
type State struct {
	Version  int
	FilePath string
	HTML     *string
	History  []Entry
}

var (
	ErrVersionNotFound = errors.New("version not found")
	ErrAlreadyCurrent  = errors.New("version is already current")
)

func stamp(now time.Time) string {
	return now.UTC().Format(time.RFC3339)
}

// EnsureInitialized seeds an empty history with a version entry for the
// current head. It reports whether the state changed.
func (s *State) EnsureInitialized(now time.Time) bool {
	if len(s.History) > 0 {
		return false
	}
	if s.Version < 1 {
		s.Version = 1
	}
	s.History = []Entry{{
		Version:         s.Version,
		Timestamp:       stamp(now),
		Description:     "Initial document version",
		FilePath:        s.FilePath,
		HTMLContent:     s.HTML,
		EditDescription: "Document created",
	}}
	return true
}

// Lookup returns the entry for version v.
func (s *State) Lookup(v int) (Entry, bool) {
	for _, e := range s.History {
		if e.Version == v {
			return e, true
		}
	}
	return Entry{}, false
}

// Latest returns the highest version number in the history, or the head
// version when the history is empty.
func (s *State) Latest() int {
	latest := s.Version
	for _, e := range s.History {
		latest = max(latest, e.Version)
	}
	return latest
}

// Next returns the number the next appended version will get.
func (s *State) Next() int {
	return s.Latest() + 1
}

// Append records c as a new head version. The current head is first
// snapshotted into the history if it is missing from it.
func (s *State) Append(c Content, editDescription string, now time.Time) Entry {
	hist := slices.Clip(s.History)
	if _, ok := s.Lookup(s.Version); !ok && s.Version > 0 {
		hist = append(hist, Entry{
			Version:         s.Version,
			Timestamp:       stamp(now),
			Description:     fmt.Sprintf("Version %d", s.Version),
			FilePath:        s.FilePath,
			HTMLContent:     s.HTML,
			EditDescription: "Previous state",
		})
	}
	e := Entry{
		Version:         s.Next(),
		Timestamp:       stamp(now),
		Description:     fmt.Sprintf("Version %d", s.Next()),
		FilePath:        c.FilePath,
		HTMLContent:     c.HTML,
		EditDescription: editDescription,
	}
	s.History = append(hist, e)
	s.Version = e.Version
	s.FilePath = c.FilePath
	s.HTML = c.HTML
	return e
}

// CreateNewVersion copies the head forward unchanged as a new version.
// filePath is where the caller has copied the head's file.
func (s *State) CreateNewVersion(filePath, description string, now time.Time) Entry {
	if description == "" {
		description = "Manual version"
	}
	return s.Append(Content{FilePath: filePath, HTML: s.HTML}, description, now)
}

// Restore makes a new head version whose content is a copy of version
// target. filePath is where the caller has copied (or will copy) the
// target's file. Older versions are left as they are.
func (s *State) Restore(target int, filePath string, now time.Time) (Entry, error) {
	if target < 1 || target > s.Version {
		return Entry{}, fmt.Errorf("%w: %d (current is %d)", ErrVersionNotFound, target, s.Version)
	}
	if target == s.Version {
		return Entry{}, ErrAlreadyCurrent
	}
	old, ok := s.Lookup(target)
	if !ok {
		return Entry{}, fmt.Errorf("%w: %d is not in the history", ErrVersionNotFound, target)
	}
	e := s.Append(Content{FilePath: filePath, HTML: old.HTMLContent}, fmt.Sprintf("Restored from version %d", target), now)
	return e, nil
}

// List returns the history in ascending version order without payloads.
func (s *State) List() []Summary {
	hist := slices.Clone(s.History)
	slices.SortFunc(hist, func(a, b Entry) int { return a.Version - b.Version })
	out := make([]Summary, len(hist))
	for i, e := range hist {
		out[i] = Summary{
			Version:         e.Version,
			Timestamp:       e.Timestamp,
			Description:     e.Description,
			EditDescription: e.EditDescription,
			HasHTML:         e.HTMLContent != nil && *e.HTMLContent != "",
			HasFile:         e.FilePath != "",
		}
	}
	return out
}

// Validate checks that versions strictly increase and that the head is
// the last entry.
func (s *State) Validate() error {
	for i := 1; i < len(s.History); i++ {
		if s.History[i].Version <= s.History[i-1].Version {
			return fmt.Errorf("history out of order at %d: %d after %d", i, s.History[i].Version, s.History[i-1].Version)
		}
	}
	if n := len(s.History); n > 0 && s.History[n-1].Version != s.Version {
		return fmt.Errorf("head version %d does not match latest entry %d", s.Version, s.History[n-1].Version)
	}
	return nil
}

var versionSuffix = regexp.MustCompile(`_v\d+$`)

// FilePath derives the storage path of version v from an existing version
// path: "reports/q3_v2.docx" becomes "reports/q3_v5.docx".
func FilePath(current string, v int) string {
	ext := path.Ext(current)
	base := versionSuffix.ReplaceAllString(current[:len(current)-len(ext)], "")
	return base + "_v" + strconv.Itoa(v) + ext
}
