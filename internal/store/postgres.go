package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgallion1/reportedit/internal/versions"
)

// Postgres stores reports in the reports table and the edit log in
// document_edits.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Postgres) Close() error {
	return s.db.Close()
}

func encodeHistory(h []versions.Entry) (*string, error) {
	if h == nil {
		return nil, nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("marshal version history: %w", err)
	}
	out := string(b)
	return &out, nil
}

func (s *Postgres) CreateReport(ctx context.Context, r *Report) error {
	history, err := encodeHistory(r.VersionHistory)
	if err != nil {
		return err
	}
	if r.DocumentVersion < 1 {
		r.DocumentVersion = 1
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO reports (title, file_path, html_content, document_version, version_history)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		RETURNING id, created_at, updated_at
	`, r.Title, r.FilePath, r.HTMLContent, r.DocumentVersion, history).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *Postgres) GetReport(ctx context.Context, id int64) (Report, error) {
	var (
		r       Report
		html    sql.NullString
		history []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, file_path, html_content, document_version, version_history, created_at, updated_at
		FROM reports WHERE id=$1
	`, id).Scan(&r.ID, &r.Title, &r.FilePath, &html, &r.DocumentVersion, &history, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, fmt.Errorf("report %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Report{}, fmt.Errorf("get report: %w", err)
	}
	if html.Valid {
		r.HTMLContent = &html.String
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &r.VersionHistory); err != nil {
			return Report{}, fmt.Errorf("decode version history of report %d: %w", id, err)
		}
	}
	return r, nil
}

func (s *Postgres) UpdateReport(ctx context.Context, r Report, expectedVersion int, edit *Edit) error {
	history, err := encodeHistory(r.VersionHistory)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE reports
		SET title=$2, file_path=$3, html_content=$4, document_version=$5, version_history=$6::jsonb, updated_at=NOW()
		WHERE id=$1 AND document_version=$7
	`, r.ID, r.Title, r.FilePath, r.HTMLContent, r.DocumentVersion, history, expectedVersion)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM reports WHERE id=$1)`, r.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check report: %w", err)
		}
		if !exists {
			return fmt.Errorf("report %d: %w", r.ID, ErrNotFound)
		}
		return fmt.Errorf("report %d at version %d: %w", r.ID, expectedVersion, ErrConflict)
	}

	if edit != nil {
		if err := insertEdit(ctx, tx, *edit); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit report update: %w", err)
	}
	return nil
}

func insertEdit(ctx context.Context, tx *sql.Tx, e Edit) error {
	before, err := encodeText(e.ContentBefore)
	if err != nil {
		return fmt.Errorf("marshal edit content: %w", err)
	}
	after, err := encodeText(e.ContentAfter)
	if err != nil {
		return fmt.Errorf("marshal edit content: %w", err)
	}
	position, err := encodePosition(e.Paragraph)
	if err != nil {
		return fmt.Errorf("marshal edit position: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO document_edits (report_id, user_id, chat_message_id, edit_type, content_before, content_after, position, diff, document_version)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7::jsonb, $8, $9)
	`, e.ReportID, e.UserID, e.ChatMessageID, e.EditType, before, after, position, e.Diff, e.DocumentVersion)
	if err != nil {
		return fmt.Errorf("insert document edit: %w", err)
	}
	return nil
}

func (s *Postgres) ListEdits(ctx context.Context, reportID int64, limit int) ([]Edit, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, report_id, user_id, chat_message_id, edit_type, content_before, content_after, position, diff, document_version, created_at
		FROM document_edits
		WHERE report_id=$1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, reportID, limit)
	if err != nil {
		return nil, fmt.Errorf("list document edits: %w", err)
	}
	defer rows.Close()

	items := make([]Edit, 0)
	for rows.Next() {
		var (
			e                       Edit
			user, message           sql.NullInt64
			before, after, position []byte
		)
		if err := rows.Scan(&e.ID, &e.ReportID, &user, &message, &e.EditType, &before, &after, &position, &e.Diff, &e.DocumentVersion, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document edit: %w", err)
		}
		if user.Valid {
			e.UserID = &user.Int64
		}
		if message.Valid {
			e.ChatMessageID = &message.Int64
		}
		e.ContentBefore = decodeText(before)
		e.ContentAfter = decodeText(after)
		e.Paragraph = decodePosition(position)
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document edits: %w", err)
	}
	return items, nil
}
