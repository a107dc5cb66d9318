package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/ziadkadry99/docvault/internal/apperr"
	"github.com/ziadkadry99/docvault/internal/db"
	"github.com/ziadkadry99/docvault/internal/metadata"
)

// Store provides CRUD and stage bookkeeping for documents.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: time.Now}
}

// DB exposes the underlying database for packages sharing the schema.
func (s *Store) DB() *db.DB { return s.db }

const documentColumns = `d.id, d.filename, d.file_path, d.file_hash, d.mime_type, d.file_size, d.full_text,
	d.extraction_method, d.title, d.summary, d.correspondent_id, c.name, d.doctype_id, dt.name,
	d.document_date, d.is_tax_relevant, d.ai_raw_response, d.is_approved, d.approved_by, d.approved_at,
	d.view_count, d.last_viewed_at, d.ocr_status, d.ai_status, d.vector_status, d.reminder_date,
	d.notes, d.created_at, d.updated_at, d.processed_at`

const documentFrom = ` FROM documents d
	LEFT JOIN correspondents c ON c.id = d.correspondent_id
	LEFT JOIN doctypes dt ON dt.id = d.doctype_id`

// Create inserts doc with all stages pending. ID and timestamps are filled
// in when empty. A second document with the same hash is a Conflict.
func (s *Store) Create(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := s.now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	doc.OCRStatus, doc.AIStatus, doc.VectorStatus = StatusPending, StatusPending, StatusPending
	if doc.Tags == nil {
		doc.Tags = []Tag{}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, filename, file_path, file_hash, mime_type, file_size, title,
			ocr_status, ai_status, vector_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'pending', 'pending', 'pending', ?, ?)`,
		doc.ID, doc.Filename, doc.FilePath, doc.FileHash, doc.MimeType, doc.FileSize,
		db.NullString(doc.Title), db.FormatTime(doc.CreatedAt), db.FormatTime(doc.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.Conflict, "documents.create", "a document with hash %s already exists", doc.FileHash)
		}
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// Get returns a document with its tags.
func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+documentColumns+documentFrom+" WHERE d.id = ?", id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("documents.get", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	if err := s.attachTags(ctx, []*Document{doc}); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetByHash returns the document with the given content hash.
func (s *Store) GetByHash(ctx context.Context, hash string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+documentColumns+documentFrom+" WHERE d.file_hash = ?", hash)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "documents.get_by_hash", "no document with hash %s", hash)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document by hash: %w", err)
	}
	return doc, nil
}

// Exists reports whether a document with id exists.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE id = ?", id).Scan(&n); err != nil {
		return false, fmt.Errorf("checking document: %w", err)
	}
	return n > 0, nil
}

// List returns a page of documents, newest first, plus the total count.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Document, int, error) {
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, 0, apperr.New(apperr.ValidationFailure, "documents.list", "limit and offset must not be negative")
	}
	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting documents: %w", err)
	}

	query := "SELECT " + documentColumns + documentFrom + " ORDER BY d.created_at DESC, d.id"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", opts.Limit, opts.Offset)
	} else if opts.Offset > 0 {
		query += fmt.Sprintf(" LIMIT -1 OFFSET %d", opts.Offset)
	}
	docs, err := s.queryDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// Find returns every document matching q ordered by created_at DESC, id.
func (s *Store) Find(ctx context.Context, q Query) ([]Document, error) {
	var (
		clauses []string
		args    []any
	)
	in := func(column string, ids []string) {
		clauses = append(clauses, column+" IN ("+placeholders(len(ids))+")")
		for _, id := range ids {
			args = append(args, id)
		}
	}

	if len(q.CorrespondentIDs) > 0 {
		in("d.correspondent_id", q.CorrespondentIDs)
	}
	if len(q.DocTypeIDs) > 0 {
		in("d.doctype_id", q.DocTypeIDs)
	}
	if len(q.TagIDs) > 0 {
		clauses = append(clauses,
			"d.id IN (SELECT document_id FROM document_tags WHERE tag_id IN ("+placeholders(len(q.TagIDs))+"))")
		for _, id := range q.TagIDs {
			args = append(args, id)
		}
	}
	if q.TaxRelevant != nil {
		clauses = append(clauses, "d.is_tax_relevant = ?")
		args = append(args, boolInt(*q.TaxRelevant))
	}
	if q.DateFrom != nil {
		clauses = append(clauses, "d.document_date >= ?")
		args = append(args, q.DateFrom.Format(db.DateFormat))
	}
	if q.DateTo != nil {
		clauses = append(clauses, "d.document_date <= ?")
		args = append(args, q.DateTo.Format(db.DateFormat))
	}
	switch q.Reminder {
	case ReminderHas:
		clauses = append(clauses, "d.reminder_date IS NOT NULL")
	case ReminderNone:
		clauses = append(clauses, "d.reminder_date IS NULL")
	case ReminderOverdue:
		now := q.Now
		if now.IsZero() {
			now = s.now()
		}
		clauses = append(clauses, "d.reminder_date IS NOT NULL AND d.reminder_date < ?")
		args = append(args, now.Format(db.DateFormat))
	case ReminderAny:
	default:
		return nil, apperr.New(apperr.ValidationFailure, "documents.find", "unknown reminder state %q", q.Reminder)
	}

	query := "SELECT " + documentColumns + documentFrom
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY d.created_at DESC, d.id"
	return s.queryDocuments(ctx, query, args...)
}

// GetMany returns the documents with the given IDs in the order requested.
// Unknown IDs are skipped.
func (s *Store) GetMany(ctx context.Context, ids []string) ([]Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	docs, err := s.queryDocuments(ctx,
		"SELECT "+documentColumns+documentFrom+" WHERE d.id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	ordered := make([]Document, 0, len(docs))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			ordered = append(ordered, d)
			delete(byID, id)
		}
	}
	return ordered, nil
}

// IDsWithStatus returns the IDs of documents whose stage has one of the
// given statuses, oldest first.
func (s *Store) IDsWithStatus(ctx context.Context, stage Stage, statuses ...StageStatus) ([]string, error) {
	if !stage.Valid() {
		return nil, apperr.New(apperr.ValidationFailure, "documents.ids", "unknown stage %q", stage)
	}
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = string(st)
	}
	query := "SELECT id FROM documents"
	if len(statuses) > 0 {
		query += " WHERE " + stage.column() + " IN (" + placeholders(len(statuses)) + ")"
	}
	query += " ORDER BY created_at, id"
	return s.queryIDs(ctx, query, args...)
}

// PendingIDs returns documents that still have at least one pending stage.
func (s *Store) PendingIDs(ctx context.Context) ([]string, error) {
	return s.queryIDs(ctx, `SELECT id FROM documents
		WHERE ocr_status = 'pending' OR ai_status = 'pending' OR vector_status = 'pending'
		ORDER BY created_at, id`)
}

// AllIDs returns every document ID.
func (s *Store) AllIDs(ctx context.Context) ([]string, error) {
	return s.queryIDs(ctx, "SELECT id FROM documents ORDER BY created_at, id")
}

// SetStage sets one stage's status in a single statement. Completing the
// vector stage stamps processed_at.
func (s *Store) SetStage(ctx context.Context, id string, stage Stage, status StageStatus) error {
	if !stage.Valid() {
		return apperr.New(apperr.ValidationFailure, "documents.set_stage", "unknown stage %q", stage)
	}
	now := db.FormatTime(s.now())
	query := "UPDATE documents SET " + stage.column() + " = ?, updated_at = ?"
	args := []any{string(status), now}
	if stage == StageVector && status == StatusCompleted {
		query += ", processed_at = ?"
		args = append(args, now)
	}
	query += " WHERE id = ?"
	args = append(args, id)
	return s.execOne(ctx, "documents.set_stage", id, query, args...)
}

// ResetStages sets the given stages back to pending atomically.
func (s *Store) ResetStages(ctx context.Context, id string, stages ...Stage) error {
	if len(stages) == 0 {
		return nil
	}
	sets := make([]string, 0, len(stages))
	for _, st := range stages {
		if !st.Valid() {
			return apperr.New(apperr.ValidationFailure, "documents.reset", "unknown stage %q", st)
		}
		sets = append(sets, st.column()+" = 'pending'")
	}
	return s.execOne(ctx, "documents.reset", id,
		"UPDATE documents SET "+strings.Join(sets, ", ")+", updated_at = ? WHERE id = ?",
		db.FormatTime(s.now()), id)
}

// SaveExtraction stores the extracted text and completes the OCR stage.
func (s *Store) SaveExtraction(ctx context.Context, id, text, method string) error {
	return s.execOne(ctx, "documents.save_extraction", id, `
		UPDATE documents SET full_text = ?, extraction_method = ?, ocr_status = 'completed', updated_at = ?
		WHERE id = ?`, text, method, db.FormatTime(s.now()), id)
}

// ApplyMetadata stores inferred metadata and completes the AI stage in one
// transaction. Correspondent, document type and tag names are matched
// case-insensitively against existing rows and created when unknown. The
// document's tag links are replaced by the inferred tags.
func (s *Store) ApplyMetadata(ctx context.Context, id string, m metadata.Metadata, raw string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	correspondentID, err := upsertByName(ctx, tx, "correspondents", m.Correspondent, now)
	if err != nil {
		return err
	}
	doctypeID, err := upsertByName(ctx, tx, "doctypes", m.DocumentType, now)
	if err != nil {
		return err
	}

	var docDate sql.NullString
	if m.DocumentDate != nil {
		docDate = sql.NullString{String: m.DocumentDate.Format(db.DateFormat), Valid: true}
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE documents SET title = ?, summary = ?, correspondent_id = ?, doctype_id = ?,
			document_date = ?, is_tax_relevant = ?, ai_raw_response = ?, ai_status = 'completed', updated_at = ?
		WHERE id = ?`,
		db.NullString(m.Title), db.NullString(m.Summary), db.NullString(correspondentID), db.NullString(doctypeID),
		docDate, boolInt(m.IsTaxRelevant()), db.NullString(raw), db.FormatTime(now), id,
	)
	if err != nil {
		return fmt.Errorf("updating document metadata: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("documents.apply_metadata", id)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM document_tags WHERE document_id = ?", id); err != nil {
		return fmt.Errorf("clearing tags: %w", err)
	}
	for _, name := range m.Tags {
		tagID, err := upsertByName(ctx, tx, "tags", name, now)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO document_tags (document_id, tag_id) VALUES (?, ?)", id, tagID); err != nil {
			return fmt.Errorf("linking tag: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing metadata: %w", err)
	}
	return nil
}

// NameKey is the unique key of a correspondent, document type or tag name:
// trimmed, NFC-normalised and Unicode case-folded.
func NameKey(name string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(name)))
}

// upsertByName returns the ID of the row in table whose name key matches
// name, inserting it first if needed. An empty name yields "".
func upsertByName(ctx context.Context, tx *sql.Tx, table, name string, now time.Time) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}
	var id string
	err := tx.QueryRowContext(ctx, "SELECT id FROM "+table+" WHERE name_key = ?", NameKey(name)).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("looking up %s %q: %w", table, name, err)
	}
	id = uuid.New().String()
	if _, err := tx.ExecContext(ctx, "INSERT INTO "+table+" (id, name, name_key, created_at) VALUES (?, ?, ?, ?)",
		id, name, NameKey(name), db.FormatTime(now)); err != nil {
		return "", fmt.Errorf("creating %s %q: %w", table, name, err)
	}
	return id, nil
}

// Update applies user edits and returns the updated document.
func (s *Store) Update(ctx context.Context, id string, u Update) (*Document, error) {
	const op = "documents.update"
	var (
		sets []string
		args []any
	)
	set := func(column string, v any) {
		sets = append(sets, column+" = ?")
		args = append(args, v)
	}

	if u.Title != nil {
		set("title", db.NullString(strings.TrimSpace(*u.Title)))
	}
	if u.Summary != nil {
		set("summary", db.NullString(*u.Summary))
	}
	if u.CorrespondentID != nil {
		if err := s.requireEntity(ctx, "correspondents", *u.CorrespondentID); err != nil {
			return nil, err
		}
		set("correspondent_id", db.NullString(*u.CorrespondentID))
	}
	if u.DocTypeID != nil {
		if err := s.requireEntity(ctx, "doctypes", *u.DocTypeID); err != nil {
			return nil, err
		}
		set("doctype_id", db.NullString(*u.DocTypeID))
	}
	if u.DocumentDate != nil {
		v, err := dateColumn(op, "document_date", *u.DocumentDate)
		if err != nil {
			return nil, err
		}
		set("document_date", v)
	}
	if u.ReminderDate != nil {
		v, err := dateColumn(op, "reminder_date", *u.ReminderDate)
		if err != nil {
			return nil, err
		}
		set("reminder_date", v)
	}
	if u.IsTaxRelevant != nil {
		set("is_tax_relevant", boolInt(*u.IsTaxRelevant))
	}
	if u.Notes != nil {
		set("notes", *u.Notes)
	}

	if len(sets) > 0 {
		set("updated_at", db.FormatTime(s.now()))
		args = append(args, id)
		if err := s.execOne(ctx, op, id, "UPDATE documents SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, id)
}

func dateColumn(op, field, v string) (sql.NullString, error) {
	if strings.TrimSpace(v) == "" {
		return sql.NullString{}, nil
	}
	t, err := metadata.ParseDate(v)
	if err != nil {
		return sql.NullString{}, apperr.New(apperr.ValidationFailure, op, "invalid %s %q", field, v)
	}
	return sql.NullString{String: t.Format(db.DateFormat), Valid: true}, nil
}

func (s *Store) requireEntity(ctx context.Context, table, id string) error {
	if id == "" {
		return nil
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE id = ?", id).Scan(&n); err != nil {
		return fmt.Errorf("checking %s: %w", table, err)
	}
	if n == 0 {
		return apperr.New(apperr.ValidationFailure, "documents.update", "unknown %s id %s", strings.TrimSuffix(table, "s"), id)
	}
	return nil
}

// SetFilePath records where the stored file now lives.
func (s *Store) SetFilePath(ctx context.Context, id, key string) error {
	return s.execOne(ctx, "documents.set_file_path", id,
		"UPDATE documents SET file_path = ?, updated_at = ? WHERE id = ?", key, db.FormatTime(s.now()), id)
}

// Delete removes the document row. Tag links, relation edges and
// processing logs go with it through the schema's cascades. The deleted
// document is returned so callers can clean up the file and vectors.
func (s *Store) Delete(ctx context.Context, id string) (*Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.execOne(ctx, "documents.delete", id, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return nil, err
	}
	return doc, nil
}

// RecordView increments the view counter.
func (s *Store) RecordView(ctx context.Context, id string) error {
	now := db.FormatTime(s.now())
	return s.execOne(ctx, "documents.view", id,
		"UPDATE documents SET view_count = view_count + 1, last_viewed_at = ? WHERE id = ?", now, id)
}

// SetApproval approves or un-approves a document.
func (s *Store) SetApproval(ctx context.Context, id string, approved bool, actor string) (*Approval, error) {
	var by, at sql.NullString
	if approved {
		by = db.NullString(actor)
		at = sql.NullString{String: db.FormatTime(s.now()), Valid: true}
	}
	if err := s.execOne(ctx, "documents.approve", id,
		"UPDATE documents SET is_approved = ?, approved_by = ?, approved_at = ?, updated_at = ? WHERE id = ?",
		boolInt(approved), by, at, db.FormatTime(s.now()), id); err != nil {
		return nil, err
	}
	return s.Approval(ctx, id)
}

// Approval returns the review state of a document.
func (s *Store) Approval(ctx context.Context, id string) (*Approval, error) {
	var (
		a      = Approval{DocumentID: id}
		by, at sql.NullString
	)
	err := s.db.QueryRowContext(ctx, "SELECT is_approved, approved_by, approved_at FROM documents WHERE id = ?", id).
		Scan(&a.Approved, &by, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("documents.approval", id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading approval: %w", err)
	}
	a.ApprovedBy = by.String
	a.ApprovedAt = db.TimePtr(at)
	return &a, nil
}

// SetNotes replaces the document notes.
func (s *Store) SetNotes(ctx context.Context, id, notes string) error {
	return s.execOne(ctx, "documents.notes", id,
		"UPDATE documents SET notes = ?, updated_at = ? WHERE id = ?", notes, db.FormatTime(s.now()), id)
}

// AddTag links an existing tag to a document. Linking twice is a no-op.
func (s *Store) AddTag(ctx context.Context, documentID, tagID string) error {
	if err := s.requireDocument(ctx, documentID); err != nil {
		return err
	}
	if _, err := s.GetTag(ctx, tagID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO document_tags (document_id, tag_id) VALUES (?, ?)", documentID, tagID); err != nil {
		return fmt.Errorf("linking tag: %w", err)
	}
	return nil
}

// RemoveTag unlinks a tag from a document.
func (s *Store) RemoveTag(ctx context.Context, documentID, tagID string) error {
	if err := s.requireDocument(ctx, documentID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM document_tags WHERE document_id = ? AND tag_id = ?", documentID, tagID); err != nil {
		return fmt.Errorf("unlinking tag: %w", err)
	}
	return nil
}

func (s *Store) requireDocument(ctx context.Context, id string) error {
	ok, err := s.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("documents", id)
	}
	return nil
}

// RecoverInterrupted marks every stage left in processing as failed and
// returns the affected document IDs.
func (s *Store) RecoverInterrupted(ctx context.Context) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM documents
		WHERE ocr_status = 'processing' OR ai_status = 'processing' OR vector_status = 'processing'
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("finding interrupted documents: %w", err)
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return nil, err
	}

	now := db.FormatTime(s.now())
	for _, stage := range Stages {
		col := stage.column()
		if _, err := tx.ExecContext(ctx,
			"UPDATE documents SET "+col+" = 'failed', updated_at = ? WHERE "+col+" = 'processing'", now); err != nil {
			return nil, fmt.Errorf("failing interrupted %s stages: %w", stage, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing recovery: %w", err)
	}
	return ids, nil
}

// StageCounts returns, per stage, how many documents are in each status.
func (s *Store) StageCounts(ctx context.Context) (map[Stage]map[StageStatus]int, error) {
	counts := make(map[Stage]map[StageStatus]int, len(Stages))
	for _, stage := range Stages {
		byStatus := make(map[StageStatus]int, len(Statuses))
		for _, st := range Statuses {
			byStatus[st] = 0
		}
		rows, err := s.db.QueryContext(ctx,
			"SELECT "+stage.column()+", COUNT(*) FROM documents GROUP BY "+stage.column())
		if err != nil {
			return nil, fmt.Errorf("counting %s stages: %w", stage, err)
		}
		for rows.Next() {
			var (
				status string
				n      int
			)
			if err := rows.Scan(&status, &n); err != nil {
				rows.Close()
				return nil, err
			}
			byStatus[StageStatus(status)] = n
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
		counts[stage] = byStatus
	}
	return counts, nil
}

// Stats summarises the whole collection.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{ByDocType: make(map[string]int)}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(file_size), 0),
			COALESCE(SUM(is_tax_relevant), 0), COALESCE(SUM(is_approved), 0),
			COALESCE(SUM(CASE WHEN reminder_date IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM documents`).Scan(&st.Total, &st.TotalSize, &st.TaxRelevant, &st.Approved, &st.WithReminder)
	if err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(dt.name, ''), COUNT(*) FROM documents d
		LEFT JOIN doctypes dt ON dt.id = d.doctype_id
		GROUP BY dt.name`)
	if err != nil {
		return nil, fmt.Errorf("counting doctypes: %w", err)
	}
	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			rows.Close()
			return nil, err
		}
		if name == "" {
			name = "unclassified"
		}
		st.ByDocType[name] = n
	}
	rows.Close()

	if st.Stages, err = s.StageCounts(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

// Vocabulary returns the known doctype, correspondent and tag names.
func (s *Store) Vocabulary(ctx context.Context) (metadata.Vocab, error) {
	var (
		v   metadata.Vocab
		err error
	)
	if v.DocTypes, err = s.names(ctx, "SELECT name FROM doctypes ORDER BY name COLLATE NOCASE"); err != nil {
		return v, err
	}
	if v.Correspondents, err = s.names(ctx, "SELECT name FROM correspondents ORDER BY name COLLATE NOCASE"); err != nil {
		return v, err
	}
	v.Tags, err = s.names(ctx, "SELECT name FROM tags ORDER BY name COLLATE NOCASE")
	return v, err
}

// Suggest returns up to limit names per category containing prefix.
// Inputs shorter than two characters yield empty lists.
func (s *Store) Suggest(ctx context.Context, prefix string, limit int) (*Suggestions, error) {
	out := &Suggestions{Correspondents: []string{}, DocTypes: []string{}, Tags: []string{}, Titles: []string{}}
	prefix = strings.TrimSpace(prefix)
	if len([]rune(prefix)) < 2 {
		return out, nil
	}
	if limit <= 0 {
		limit = 5
	}
	pattern := "%" + escapeLike(prefix) + "%"
	lists := []struct {
		dest  *[]string
		query string
	}{
		{&out.Correspondents, "SELECT name FROM correspondents WHERE name LIKE ? ESCAPE '\\' ORDER BY name COLLATE NOCASE LIMIT ?"},
		{&out.DocTypes, "SELECT name FROM doctypes WHERE name LIKE ? ESCAPE '\\' ORDER BY name COLLATE NOCASE LIMIT ?"},
		{&out.Tags, "SELECT name FROM tags WHERE name LIKE ? ESCAPE '\\' ORDER BY name COLLATE NOCASE LIMIT ?"},
		{&out.Titles, "SELECT DISTINCT title FROM documents WHERE title LIKE ? ESCAPE '\\' ORDER BY title COLLATE NOCASE LIMIT ?"},
	}
	for _, l := range lists {
		names, err := s.names(ctx, l.query, pattern, limit)
		if err != nil {
			return nil, err
		}
		if names != nil {
			*l.dest = names
		}
	}
	return out, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *Store) names(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing names: %w", err)
	}
	return collectIDs(rows)
}

func (s *Store) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing document ids: %w", err)
	}
	return collectIDs(rows)
}

// collectIDs reads a single string column and closes rows.
func collectIDs(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) queryDocuments(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	var ptrs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		ptrs = append(ptrs, doc)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	if err := s.attachTags(ctx, ptrs); err != nil {
		return nil, err
	}
	docs := make([]Document, len(ptrs))
	for i, p := range ptrs {
		docs[i] = *p
	}
	return docs, nil
}

// maxInList bounds IN (...) lists; larger sets load every link instead.
const maxInList = 500

func (s *Store) attachTags(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}
	byID := make(map[string]*Document, len(docs))
	for _, d := range docs {
		d.Tags = []Tag{}
		byID[d.ID] = d
	}

	query := `SELECT l.document_id, t.id, t.name, t.color, t.created_at
		FROM document_tags l JOIN tags t ON t.id = l.tag_id`
	var args []any
	if len(docs) <= maxInList {
		query += " WHERE l.document_id IN (" + placeholders(len(docs)) + ")"
		for _, d := range docs {
			args = append(args, d.ID)
		}
	}
	query += " ORDER BY t.name COLLATE NOCASE"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("loading tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			docID, createdAt string
			t                Tag
		)
		if err := rows.Scan(&docID, &t.ID, &t.Name, &t.Color, &createdAt); err != nil {
			return err
		}
		t.CreatedAt, _ = db.ParseTime(createdAt)
		if d, ok := byID[docID]; ok {
			d.Tags = append(d.Tags, t)
		}
	}
	return rows.Err()
}

func (s *Store) execOne(ctx context.Context, op, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(op, id)
	}
	return nil
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (*Document, error) {
	var d Document
	var (
		fullText, title, summary, corrID, corrName  sql.NullString
		typeID, typeName, docDate, raw, approvedBy  sql.NullString
		approvedAt, lastViewed, reminder, processed sql.NullString
		ocr, ai, vector, createdAt, updatedAt       string
	)
	err := sc.Scan(
		&d.ID, &d.Filename, &d.FilePath, &d.FileHash, &d.MimeType, &d.FileSize, &fullText,
		&d.ExtractionMethod, &title, &summary, &corrID, &corrName, &typeID, &typeName,
		&docDate, &d.IsTaxRelevant, &raw, &d.IsApproved, &approvedBy, &approvedAt,
		&d.ViewCount, &lastViewed, &ocr, &ai, &vector, &reminder,
		&d.Notes, &createdAt, &updatedAt, &processed,
	)
	if err != nil {
		return nil, err
	}
	d.FullText = fullText.String
	d.Title = title.String
	d.Summary = summary.String
	d.CorrespondentID = corrID.String
	d.CorrespondentName = corrName.String
	d.DocTypeID = typeID.String
	d.DocTypeName = typeName.String
	d.DocumentDate = parseDate(docDate)
	d.ReminderDate = parseDate(reminder)
	d.AIRawResponse = raw.String
	d.ApprovedBy = approvedBy.String
	d.ApprovedAt = db.TimePtr(approvedAt)
	d.LastViewedAt = db.TimePtr(lastViewed)
	d.ProcessedAt = db.TimePtr(processed)
	d.OCRStatus = StageStatus(ocr)
	d.AIStatus = StageStatus(ai)
	d.VectorStatus = StageStatus(vector)
	d.CreatedAt, _ = db.ParseTime(createdAt)
	d.UpdatedAt, _ = db.ParseTime(updatedAt)
	d.Tags = []Tag{}
	return &d, nil
}

func parseDate(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(db.DateFormat, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func notFound(op, id string) error {
	return apperr.New(apperr.NotFound, op, "document %s not found", id)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
