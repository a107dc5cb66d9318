package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ziadkadry99/docvault/internal/apperr"
	"github.com/ziadkadry99/docvault/internal/db"
)

// Deleting an entity leaves its documents in place: the schema sets
// correspondent_id and doctype_id to NULL and drops tag links.

// ListCorrespondents returns all correspondents with their document counts.
func (s *Store) ListCorrespondents(ctx context.Context) ([]Correspondent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.email, c.address, c.created_at,
			(SELECT COUNT(*) FROM documents d WHERE d.correspondent_id = c.id)
		FROM correspondents c ORDER BY c.name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("listing correspondents: %w", err)
	}
	defer rows.Close()

	out := []Correspondent{}
	for rows.Next() {
		c, err := scanCorrespondent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// GetCorrespondent returns a single correspondent.
func (s *Store) GetCorrespondent(ctx context.Context, id string) (*Correspondent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.name, c.email, c.address, c.created_at,
			(SELECT COUNT(*) FROM documents d WHERE d.correspondent_id = c.id)
		FROM correspondents c WHERE c.id = ?`, id)
	c, err := scanCorrespondent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "correspondents.get", "correspondent %s not found", id)
	}
	return c, err
}

// CreateCorrespondent inserts a correspondent. Names are unique
// case-insensitively.
func (s *Store) CreateCorrespondent(ctx context.Context, c Correspondent) (*Correspondent, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, apperr.New(apperr.ValidationFailure, "correspondents.create", "name is required")
	}
	c.ID = uuid.New().String()
	c.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO correspondents (id, name, name_key, email, address, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		c.ID, c.Name, NameKey(c.Name), c.Email, c.Address, db.FormatTime(c.CreatedAt))
	if err != nil {
		return nil, entityWriteError("correspondents.create", c.Name, err)
	}
	return &c, nil
}

// UpdateCorrespondent replaces the editable fields of a correspondent.
func (s *Store) UpdateCorrespondent(ctx context.Context, id string, c Correspondent) (*Correspondent, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, apperr.New(apperr.ValidationFailure, "correspondents.update", "name is required")
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE correspondents SET name = ?, name_key = ?, email = ?, address = ? WHERE id = ?",
		c.Name, NameKey(c.Name), c.Email, c.Address, id)
	if err != nil {
		return nil, entityWriteError("correspondents.update", c.Name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.New(apperr.NotFound, "correspondents.update", "correspondent %s not found", id)
	}
	return s.GetCorrespondent(ctx, id)
}

// DeleteCorrespondent removes a correspondent.
func (s *Store) DeleteCorrespondent(ctx context.Context, id string) error {
	return s.deleteEntity(ctx, "correspondents", "correspondent", id)
}

// ListDocTypes returns all document types with their document counts.
func (s *Store) ListDocTypes(ctx context.Context) ([]DocType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.description, t.created_at,
			(SELECT COUNT(*) FROM documents d WHERE d.doctype_id = t.id)
		FROM doctypes t ORDER BY t.name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("listing doctypes: %w", err)
	}
	defer rows.Close()

	out := []DocType{}
	for rows.Next() {
		t, err := scanDocType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// GetDocType returns a single document type.
func (s *Store) GetDocType(ctx context.Context, id string) (*DocType, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.name, t.description, t.created_at,
			(SELECT COUNT(*) FROM documents d WHERE d.doctype_id = t.id)
		FROM doctypes t WHERE t.id = ?`, id)
	t, err := scanDocType(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "doctypes.get", "doctype %s not found", id)
	}
	return t, err
}

// CreateDocType inserts a document type.
func (s *Store) CreateDocType(ctx context.Context, t DocType) (*DocType, error) {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return nil, apperr.New(apperr.ValidationFailure, "doctypes.create", "name is required")
	}
	t.ID = uuid.New().String()
	t.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO doctypes (id, name, name_key, description, created_at) VALUES (?, ?, ?, ?, ?)",
		t.ID, t.Name, NameKey(t.Name), t.Description, db.FormatTime(t.CreatedAt))
	if err != nil {
		return nil, entityWriteError("doctypes.create", t.Name, err)
	}
	return &t, nil
}

// UpdateDocType replaces the editable fields of a document type.
func (s *Store) UpdateDocType(ctx context.Context, id string, t DocType) (*DocType, error) {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return nil, apperr.New(apperr.ValidationFailure, "doctypes.update", "name is required")
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE doctypes SET name = ?, name_key = ?, description = ? WHERE id = ?",
		t.Name, NameKey(t.Name), t.Description, id)
	if err != nil {
		return nil, entityWriteError("doctypes.update", t.Name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.New(apperr.NotFound, "doctypes.update", "doctype %s not found", id)
	}
	return s.GetDocType(ctx, id)
}

// DeleteDocType removes a document type.
func (s *Store) DeleteDocType(ctx context.Context, id string) error {
	return s.deleteEntity(ctx, "doctypes", "doctype", id)
}

// ListTags returns all tags with their document counts.
func (s *Store) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.color, t.created_at,
			(SELECT COUNT(*) FROM document_tags l WHERE l.tag_id = t.id)
		FROM tags t ORDER BY t.name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	out := []Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// GetTag returns a single tag.
func (s *Store) GetTag(ctx context.Context, id string) (*Tag, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.name, t.color, t.created_at,
			(SELECT COUNT(*) FROM document_tags l WHERE l.tag_id = t.id)
		FROM tags t WHERE t.id = ?`, id)
	t, err := scanTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "tags.get", "tag %s not found", id)
	}
	return t, err
}

// CreateTag inserts a tag, defaulting the color.
func (s *Store) CreateTag(ctx context.Context, t Tag) (*Tag, error) {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return nil, apperr.New(apperr.ValidationFailure, "tags.create", "name is required")
	}
	if t.Color == "" {
		t.Color = DefaultTagColor
	}
	t.ID = uuid.New().String()
	t.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO tags (id, name, name_key, color, created_at) VALUES (?, ?, ?, ?, ?)",
		t.ID, t.Name, NameKey(t.Name), t.Color, db.FormatTime(t.CreatedAt))
	if err != nil {
		return nil, entityWriteError("tags.create", t.Name, err)
	}
	return &t, nil
}

// UpdateTag replaces the editable fields of a tag.
func (s *Store) UpdateTag(ctx context.Context, id string, t Tag) (*Tag, error) {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return nil, apperr.New(apperr.ValidationFailure, "tags.update", "name is required")
	}
	if t.Color == "" {
		t.Color = DefaultTagColor
	}
	res, err := s.db.ExecContext(ctx, "UPDATE tags SET name = ?, name_key = ?, color = ? WHERE id = ?",
		t.Name, NameKey(t.Name), t.Color, id)
	if err != nil {
		return nil, entityWriteError("tags.update", t.Name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.New(apperr.NotFound, "tags.update", "tag %s not found", id)
	}
	return s.GetTag(ctx, id)
}

// DeleteTag removes a tag and its document links.
func (s *Store) DeleteTag(ctx context.Context, id string) error {
	return s.deleteEntity(ctx, "tags", "tag", id)
}

func (s *Store) deleteEntity(ctx context.Context, table, noun, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", noun, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.NotFound, table+".delete", "%s %s not found", noun, id)
	}
	return nil
}

func entityWriteError(op, name string, err error) error {
	if isUniqueViolation(err) {
		return apperr.New(apperr.Conflict, op, "%q already exists", name)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func scanCorrespondent(sc scanner) (*Correspondent, error) {
	var (
		c         Correspondent
		createdAt string
	)
	if err := sc.Scan(&c.ID, &c.Name, &c.Email, &c.Address, &createdAt, &c.DocumentCount); err != nil {
		return nil, err
	}
	c.CreatedAt, _ = db.ParseTime(createdAt)
	return &c, nil
}

func scanDocType(sc scanner) (*DocType, error) {
	var (
		t         DocType
		createdAt string
	)
	if err := sc.Scan(&t.ID, &t.Name, &t.Description, &createdAt, &t.DocumentCount); err != nil {
		return nil, err
	}
	t.CreatedAt, _ = db.ParseTime(createdAt)
	return &t, nil
}

func scanTag(sc scanner) (*Tag, error) {
	var (
		t         Tag
		createdAt string
	)
	if err := sc.Scan(&t.ID, &t.Name, &t.Color, &createdAt, &t.DocumentCount); err != nil {
		return nil, err
	}
	t.CreatedAt, _ = db.ParseTime(createdAt)
	return &t, nil
}
