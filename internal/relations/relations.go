// Package relations links documents to each other and finds documents with
// similar content through their stored chunk embeddings.
package relations

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ziadkadry99/docvault/internal/apperr"
	"github.com/ziadkadry99/docvault/internal/db"
	"github.com/ziadkadry99/docvault/internal/documents"
	"github.com/ziadkadry99/docvault/internal/vectordb"
)

// DefaultType is used when a link is created without a relation type.
const DefaultType = "related"

// Related is a linked document as seen from the other end of the link.
type Related struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Filename     string    `json:"filename"`
	RelationType string    `json:"relation_type"`
	LinkedAt     time.Time `json:"linked_at"`
}

// Relations lists the documents linked to one document.
type Relations struct {
	DocumentID string    `json:"document_id"`
	Parents    []Related `json:"parents"`
	Children   []Related `json:"children"`
}

// Link is a stored parent to child relation.
type Link struct {
	ParentID     string    `json:"parent_id"`
	ChildID      string    `json:"child_id"`
	RelationType string    `json:"relation_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// Graph stores relations. Cycles are allowed; only self-links are refused.
type Graph struct {
	db      *db.DB
	docs    *documents.Store
	vectors vectordb.Store
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Graph. vectors may be nil, which disables FindSimilar.
func New(database *db.DB, docs *documents.Store, vectors vectordb.Store, logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	return &Graph{db: database, docs: docs, vectors: vectors, logger: logger, now: time.Now}
}

// Link relates parent to child. Linking an already linked pair updates the
// relation type.
func (g *Graph) Link(ctx context.Context, parentID, childID, relationType string) (*Link, error) {
	const op = "relations.link"
	if parentID == childID {
		return nil, apperr.New(apperr.ValidationFailure, op, "a document cannot be related to itself")
	}
	relationType = strings.ToLower(strings.TrimSpace(relationType))
	if relationType == "" {
		relationType = DefaultType
	}
	for _, id := range []string{parentID, childID} {
		ok, err := g.docs.Exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.New(apperr.NotFound, op, "document %s not found", id)
		}
	}

	link := &Link{ParentID: parentID, ChildID: childID, RelationType: relationType, CreatedAt: g.now().UTC()}
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO document_relations (parent_id, child_id, relation_type, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(parent_id, child_id) DO UPDATE SET relation_type = excluded.relation_type`,
		parentID, childID, relationType, db.FormatTime(link.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("linking documents: %w", err)
	}
	return link, nil
}

// Unlink removes the relation from parent to child.
func (g *Graph) Unlink(ctx context.Context, parentID, childID string) error {
	res, err := g.db.ExecContext(ctx,
		"DELETE FROM document_relations WHERE parent_id = ? AND child_id = ?", parentID, childID)
	if err != nil {
		return fmt.Errorf("unlinking documents: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.NotFound, "relations.unlink", "no relation from %s to %s", parentID, childID)
	}
	return nil
}

// Get returns the parents and children of id.
func (g *Graph) Get(ctx context.Context, id string) (*Relations, error) {
	ok, err := g.docs.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.NotFound, "relations.get", "document %s not found", id)
	}

	out := &Relations{DocumentID: id}
	if out.Parents, err = g.related(ctx, `
		SELECT d.id, COALESCE(d.title, ''), d.filename, r.relation_type, r.created_at
		FROM document_relations r JOIN documents d ON d.id = r.parent_id
		WHERE r.child_id = ? ORDER BY r.created_at, d.id`, id); err != nil {
		return nil, err
	}
	if out.Children, err = g.related(ctx, `
		SELECT d.id, COALESCE(d.title, ''), d.filename, r.relation_type, r.created_at
		FROM document_relations r JOIN documents d ON d.id = r.child_id
		WHERE r.parent_id = ? ORDER BY r.created_at, d.id`, id); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Graph) related(ctx context.Context, query, id string) ([]Related, error) {
	rows, err := g.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("querying relations: %w", err)
	}
	defer rows.Close()

	out := []Related{}
	for rows.Next() {
		var (
			r       Related
			created string
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.Filename, &r.RelationType, &created); err != nil {
			return nil, fmt.Errorf("scanning relation: %w", err)
		}
		if t, err := db.ParseTime(created); err == nil {
			r.LinkedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
