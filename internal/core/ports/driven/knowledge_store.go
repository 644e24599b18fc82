package driven

import (
	"context"

	"github.com/custodia-labs/emma/internal/core/domain"
)

// KnowledgeRecordStore persists knowledge records as an append-only
// collection keyed by id. It is reloaded at startup to repopulate the
// in-memory knowledge store and re-index vectors.
type KnowledgeRecordStore interface {
	// Append persists a new record. Appending an existing id returns
	// domain.ErrAlreadyExists.
	Append(ctx context.Context, record *domain.KnowledgeRecord) error

	// Delete removes a record. Used only to roll back a failed add.
	Delete(ctx context.Context, id string) error

	// List returns every record in insertion order.
	List(ctx context.Context) ([]domain.KnowledgeRecord, error)
}
