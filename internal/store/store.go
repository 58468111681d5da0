// Package store persists reports and their edit log.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"time"

	"github.com/dgallion1/reportedit/internal/versions"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means the report moved on since it was loaded.
	ErrConflict = errors.New("report was modified concurrently")
)

// Report is the persisted report row.
type Report struct {
	ID              int64
	Title           string
	FilePath        string
	HTMLContent     *string
	DocumentVersion int
	VersionHistory  []versions.Entry
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Versions returns the versioned fields of r.
func (r Report) Versions() versions.State {
	return versions.State{
		Version:  r.DocumentVersion,
		FilePath: r.FilePath,
		HTML:     r.HTMLContent,
		History:  slices.Clone(r.VersionHistory),
	}
}

// SetVersions copies s back into r.
func (r *Report) SetVersions(s versions.State) {
	r.DocumentVersion = s.Version
	r.FilePath = s.FilePath
	r.HTMLContent = s.HTML
	r.VersionHistory = s.History
}

// Edit is one entry of the append-only edit log.
type Edit struct {
	ID              int64
	ReportID        int64
	UserID          *int64
	ChatMessageID   *int64
	EditType        string
	ContentBefore   *string
	ContentAfter    *string
	Paragraph       *int
	Diff            string
	DocumentVersion int
	CreatedAt       time.Time
}

// Store is implemented by Postgres and Memory.
type Store interface {
	CreateReport(ctx context.Context, r *Report) error
	GetReport(ctx context.Context, id int64) (Report, error)
	// UpdateReport writes r if the stored document_version still equals
	// expectedVersion, and appends edit (when non-nil) in the same
	// transaction. It returns ErrConflict otherwise.
	UpdateReport(ctx context.Context, r Report, expectedVersion int, edit *Edit) error
	ListEdits(ctx context.Context, reportID int64, limit int) ([]Edit, error)
	Ping(ctx context.Context) error
	Close() error
}

type textPayload struct {
	Text string `json:"text"`
}

type positionPayload struct {
	ParagraphID int `json:"paragraph_id"`
}

// encodeText wraps s as {"text": s}, nil for an empty string.
func encodeText(s *string) (*string, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	b, err := json.Marshal(textPayload{Text: *s})
	if err != nil {
		return nil, err
	}
	out := string(b)
	return &out, nil
}

func decodeText(raw []byte) *string {
	if len(raw) == 0 {
		return nil
	}
	var p textPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s := string(raw)
		return &s
	}
	return &p.Text
}

func encodePosition(i *int) (*string, error) {
	if i == nil {
		return nil, nil
	}
	b, err := json.Marshal(positionPayload{ParagraphID: *i})
	if err != nil {
		return nil, err
	}
	out := string(b)
	return &out, nil
}

func decodePosition(raw []byte) *int {
	if len(raw) == 0 {
		return nil
	}
	var p positionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil
	}
	return &p.ParagraphID
}
