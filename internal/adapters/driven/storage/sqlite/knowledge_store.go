package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/emma/internal/core/domain"
	"github.com/custodia-labs/emma/internal/core/ports/driven"
)

type knowledgeRecordStore struct {
	db *sql.DB
}

var _ driven.KnowledgeRecordStore = (*knowledgeRecordStore)(nil)

// Append inserts a record. Embeddings are not stored.
func (s *knowledgeRecordStore) Append(ctx context.Context, record *domain.KnowledgeRecord) error {
	if record == nil || record.ID == "" {
		return domain.ErrInvalidInput
	}

	tags := record.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshalling tags: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_records (id, kind, primary_text, body_text, category, tags, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, record.ID, string(record.Kind), record.PrimaryText, record.BodyText,
		record.Category, string(tagsJSON), formatTime(record.AddedAt))
	if err != nil {
		return fmt.Errorf("appending knowledge record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("appending knowledge record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("knowledge record %s: %w", record.ID, domain.ErrAlreadyExists)
	}
	return nil
}

// Delete removes a record by id. Missing ids are ignored.
func (s *knowledgeRecordStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM knowledge_records WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting knowledge record: %w", err)
	}
	return nil
}

// List returns all records in insertion order.
func (s *knowledgeRecordStore) List(ctx context.Context) ([]domain.KnowledgeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, primary_text, body_text, category, tags, added_at
		FROM knowledge_records
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("querying knowledge records: %w", err)
	}
	defer rows.Close()

	var records []domain.KnowledgeRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			r        domain.KnowledgeRecord
			kind     string
			tagsJSON string
			addedAt  sql.NullString
		)
		if err := rows.Scan(&r.ID, &kind, &r.PrimaryText, &r.BodyText,
			&r.Category, &tagsJSON, &addedAt); err != nil {
			return nil, fmt.Errorf("scanning knowledge record: %w", err)
		}
		r.Kind = domain.KnowledgeKind(kind)
		if err := json.Unmarshal([]byte(tagsJSON), &r.Tags); err != nil {
			return nil, fmt.Errorf("unmarshalling tags for %s: %w", r.ID, err)
		}
		r.AddedAt = parseTime(addedAt)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating knowledge records: %w", err)
	}
	return records, nil
}
