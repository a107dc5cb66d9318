package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/docvault/internal/apperr"
	"github.com/ziadkadry99/docvault/internal/db"
)

// Store appends and queries processing log entries.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Log inserts a new entry. If entry.ID is empty a UUID is generated and a
// zero CreatedAt is set to now.
func (s *Store) Log(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if !entry.Status.Valid() {
		return apperr.New(apperr.ValidationFailure, "audit.log", "invalid status %q", entry.Status)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processing_logs (id, document_id, operation, status, message, execution_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		db.NullString(entry.DocumentID),
		entry.Operation,
		string(entry.Status),
		entry.Message,
		entry.ExecutionTime,
		db.FormatTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting processing log: %w", err)
	}
	return nil
}

// Record is a shorthand for Log that takes the elapsed duration.
func (s *Store) Record(ctx context.Context, documentID, operation string, status Status, message string, elapsed time.Duration) error {
	return s.Log(ctx, Entry{
		DocumentID:    documentID,
		Operation:     operation,
		Status:        status,
		Message:       message,
		ExecutionTime: elapsed.Seconds(),
	})
}

// GetByID retrieves a single entry.
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM processing_logs WHERE id = ?", id)
	e, err := scanInto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "audit.get", "log entry %s not found", id)
	}
	return e, err
}

// QueryFilter controls which entries are returned by Query.
type QueryFilter struct {
	DocumentID string
	Operation  string
	Status     Status
	Since      *time.Time
	Limit      int
	Offset     int
}

const entryColumns = "id, document_id, operation, status, message, execution_time, created_at"

// Query returns entries matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.DocumentID != "" {
		clauses = append(clauses, "document_id = ?")
		args = append(args, filter.DocumentID)
	}
	if filter.Operation != "" {
		clauses = append(clauses, "operation = ?")
		args = append(args, filter.Operation)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, db.FormatTime(*filter.Since))
	}

	query := "SELECT " + entryColumns + " FROM processing_logs"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	} else if filter.Offset > 0 {
		query += fmt.Sprintf(" LIMIT -1 OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying processing logs: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanInto(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// DeleteBefore removes entries older than before and returns how many
// were deleted.
func (s *Store) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM processing_logs WHERE created_at < ?", db.FormatTime(before))
	if err != nil {
		return 0, fmt.Errorf("deleting old processing logs: %w", err)
	}
	return res.RowsAffected()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInto(sc scanner) (*Entry, error) {
	var (
		e          Entry
		documentID sql.NullString
		status     string
		createdAt  string
	)
	if err := sc.Scan(&e.ID, &documentID, &e.Operation, &status, &e.Message, &e.ExecutionTime, &createdAt); err != nil {
		return nil, err
	}
	e.DocumentID = documentID.String
	e.Status = Status(status)
	if t, err := db.ParseTime(createdAt); err == nil {
		e.CreatedAt = t
	}
	return &e, nil
}
