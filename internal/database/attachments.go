package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Attachment is a stored image asset. FilePath is relative to the uploads
// directory. ParentID is nil for assets not attached to another record.
type Attachment struct {
	ID        int64     `json:"id"`
	FilePath  string    `json:"filePath"`
	MimeType  string    `json:"mimeType"`
	Title     string    `json:"title"`
	Excerpt   string    `json:"excerpt,omitempty"`
	ParentID  *int64    `json:"parentId"`
	ByteSize  int64     `json:"byteSize"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	AuthorID  *int64    `json:"authorId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateAttachment inserts a record and returns its id.
func (d *Database) CreateAttachment(ctx context.Context, a *Attachment) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_attachment", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `
		INSERT INTO attachments (file_path, mime_type, title, excerpt, parent_id, byte_size, width, height, author_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.FilePath, a.MimeType, a.Title, a.Excerpt, nullInt(a.ParentID),
		a.ByteSize, a.Width, a.Height, nullInt(a.AuthorID), d.now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create attachment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read attachment id: %w", err)
	}
	return id, nil
}

// GetAttachment loads a record by id. It returns ErrNotFound when missing.
func (d *Database) GetAttachment(ctx context.Context, id int64) (*Attachment, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_attachment", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var a Attachment
	var parentID, authorID sql.NullInt64
	var createdAt int64
	err = d.db.QueryRowContext(ctx, `
		SELECT id, file_path, mime_type, title, excerpt, parent_id, byte_size, width, height, author_id, created_at
		FROM attachments WHERE id = ?`, id,
	).Scan(&a.ID, &a.FilePath, &a.MimeType, &a.Title, &a.Excerpt, &parentID,
		&a.ByteSize, &a.Width, &a.Height, &authorID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	a.ParentID = ptrInt(parentID)
	a.AuthorID = ptrInt(authorID)
	a.CreatedAt = time.Unix(createdAt, 0)
	return &a, nil
}

// DeleteAttachment removes a record. The file is the caller's concern.
func (d *Database) DeleteAttachment(ctx context.Context, id int64) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_attachment", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, "DELETE FROM attachments WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
	}
	return err
}

// CountAttachments returns the number of stored assets.
func (d *Database) CountAttachments(ctx context.Context) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int64
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM attachments").Scan(&n)
	return n, err
}

// AttachmentPaths returns the file path of every stored asset.
func (d *Database) AttachmentPaths(ctx context.Context) (map[string]struct{}, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("attachment_paths", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT file_path FROM attachments")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err = rows.Scan(&p); err != nil {
			return nil, err
		}
		paths[p] = struct{}{}
	}
	err = rows.Err()
	return paths, err
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func ptrInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
