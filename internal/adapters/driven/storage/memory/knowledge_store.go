package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/emma/internal/core/domain"
	"github.com/custodia-labs/emma/internal/core/ports/driven"
)

// Ensure KnowledgeRecordStore implements the interface.
var _ driven.KnowledgeRecordStore = (*KnowledgeRecordStore)(nil)

// KnowledgeRecordStore keeps records in insertion order.
type KnowledgeRecordStore struct {
	mu      sync.RWMutex
	records []domain.KnowledgeRecord
	index   map[string]int
}

// NewKnowledgeRecordStore creates an empty record store.
func NewKnowledgeRecordStore() *KnowledgeRecordStore {
	return &KnowledgeRecordStore{index: make(map[string]int)}
}

// Append stores a copy of record without its embedding.
func (s *KnowledgeRecordStore) Append(_ context.Context, record *domain.KnowledgeRecord) error {
	if record == nil || record.ID == "" {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[record.ID]; ok {
		return domain.ErrAlreadyExists
	}

	r := *record
	r.Tags = append([]string{}, record.Tags...)
	r.Embedding = nil
	s.index[r.ID] = len(s.records)
	s.records = append(s.records, r)
	return nil
}

// Delete removes a record. Missing ids are ignored.
func (s *KnowledgeRecordStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return nil
	}
	s.records = append(s.records[:pos], s.records[pos+1:]...)
	delete(s.index, id)
	for i := pos; i < len(s.records); i++ {
		s.index[s.records[i].ID] = i
	}
	return nil
}

// List returns copies of all records in insertion order.
func (s *KnowledgeRecordStore) List(_ context.Context) ([]domain.KnowledgeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.KnowledgeRecord, len(s.records))
	for i, r := range s.records {
		out[i] = r
		out[i].Tags = append([]string{}, r.Tags...)
	}
	return out, nil
}
