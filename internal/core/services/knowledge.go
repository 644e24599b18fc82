package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/emma/internal/core/domain"
	"github.com/custodia-labs/emma/internal/core/ports/driven"
	"github.com/custodia-labs/emma/internal/logger"
)

// keywordScoreFloor is the overlap ratio a record must exceed to be returned.
const keywordScoreFloor = 0.1

// indexedRecord pairs a record with its precomputed token set.
type indexedRecord struct {
	record domain.KnowledgeRecord
	tokens map[string]struct{}
}

// keywordHit is a keyword search result before conversion to RetrievalResult.
type keywordHit struct {
	record domain.KnowledgeRecord
	score  float64
}

// KnowledgeStore holds knowledge records in insertion order with a token
// index for keyword search. Persistence is delegated to an optional
// driven.KnowledgeRecordStore.
type KnowledgeStore struct {
	mu      sync.RWMutex
	records []indexedRecord
	byID    map[string]int
	persist driven.KnowledgeRecordStore
}

// NewKnowledgeStore creates an empty store. persist may be nil for a
// purely in-memory knowledge base.
func NewKnowledgeStore(persist driven.KnowledgeRecordStore) *KnowledgeStore {
	return &KnowledgeStore{
		byID:    make(map[string]int),
		persist: persist,
	}
}

// Load repopulates the store from persistence. When persistence is empty
// and seed is true, the default NHS knowledge base is written first.
func (k *KnowledgeStore) Load(ctx context.Context, seed bool) error {
	logger.Section("Knowledge Load")

	var records []domain.KnowledgeRecord
	if k.persist != nil {
		stored, err := k.persist.List(ctx)
		if err != nil {
			return fmt.Errorf("list knowledge records: %w", err)
		}
		records = stored
	}

	if len(records) == 0 && seed {
		logger.Info("Knowledge base empty, seeding %d default records", len(DefaultKnowledgeRecords()))
		for _, rec := range DefaultKnowledgeRecords() {
			rec := rec
			if k.persist != nil {
				if err := k.persist.Append(ctx, &rec); err != nil {
					return fmt.Errorf("seed record %s: %w", rec.ID, err)
				}
			}
			records = append(records, rec)
		}
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.records = k.records[:0]
	k.byID = make(map[string]int, len(records))
	for _, rec := range records {
		k.insertLocked(rec)
	}
	logger.Info("Loaded %d knowledge records", len(k.records))
	return nil
}

// Add persists a record and makes it searchable.
func (k *KnowledgeStore) Add(ctx context.Context, record domain.KnowledgeRecord) error {
	if strings.TrimSpace(record.BodyText) == "" {
		return fmt.Errorf("%w: record body is empty", domain.ErrInvalidInput)
	}
	if record.ID == "" {
		return fmt.Errorf("%w: record id is empty", domain.ErrInvalidInput)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if _, exists := k.byID[record.ID]; exists {
		return fmt.Errorf("record %s: %w", record.ID, domain.ErrAlreadyExists)
	}
	if k.persist != nil {
		if err := k.persist.Append(ctx, &record); err != nil {
			return fmt.Errorf("persist record: %w", err)
		}
	}
	k.insertLocked(record)
	return nil
}

func (k *KnowledgeStore) insertLocked(record domain.KnowledgeRecord) {
	if _, exists := k.byID[record.ID]; exists {
		return
	}
	k.byID[record.ID] = len(k.records)
	k.records = append(k.records, indexedRecord{
		record: record,
		tokens: tokenSet(recordHaystack(&record)),
	})
}

// Get returns a copy of the record with the given id.
func (k *KnowledgeStore) Get(id string) (*domain.KnowledgeRecord, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	pos, ok := k.byID[id]
	if !ok {
		return nil, false
	}
	rec := k.records[pos].record
	return &rec, true
}

// All returns every record in insertion order.
func (k *KnowledgeStore) All() []domain.KnowledgeRecord {
	k.mu.RLock()
	defer k.mu.RUnlock()

	out := make([]domain.KnowledgeRecord, len(k.records))
	for i, ir := range k.records {
		out[i] = ir.record
	}
	return out
}

// Len returns the number of records.
func (k *KnowledgeStore) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.records)
}

// KeywordSearch scores every record by the fraction of distinct query
// tokens that appear in its question/title, body and tags. Records at or
// below the floor are dropped. Results keep insertion order.
func (k *KnowledgeStore) KeywordSearch(query string) []keywordHit {
	queryTokens := tokenSet(query)
	if len(queryTokens) == 0 {
		return nil
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	var hits []keywordHit
	for _, ir := range k.records {
		if len(ir.tokens) == 0 {
			continue
		}
		overlap := 0
		for tok := range queryTokens {
			if _, ok := ir.tokens[tok]; ok {
				overlap++
			}
		}
		score := float64(overlap) / float64(len(queryTokens))
		if score > keywordScoreFloor {
			hits = append(hits, keywordHit{record: ir.record, score: score})
		}
	}
	return hits
}

// recordHaystack joins the searchable text of a record.
func recordHaystack(r *domain.KnowledgeRecord) string {
	return r.PrimaryText + " " + r.BodyText + " " + strings.Join(r.Tags, " ")
}

// tokenSet lowercases text and splits it on whitespace.
func tokenSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// seedTime is the added_at stamp for the built-in records.
var seedTime = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// DefaultKnowledgeRecords returns the built-in NHS FAQs and guidelines.
func DefaultKnowledgeRecords() []domain.KnowledgeRecord {
	return []domain.KnowledgeRecord{
		{
			ID:          "faq-001",
			Kind:        domain.KindFAQ,
			PrimaryText: "How do I book an appointment with my GP?",
			BodyText: "You can book an appointment by calling your GP surgery, using the NHS app, " +
				"or visiting their website. Many surgeries also offer online booking systems.",
			Category: "appointments",
			Tags:     []string{"gp", "appointment", "booking"},
			AddedAt:  seedTime,
		},
		{
			ID:          "faq-002",
			Kind:        domain.KindFAQ,
			PrimaryText: "What should I do if I have a medical emergency?",
			BodyText: "For medical emergencies, call 999 immediately. For urgent but non-emergency care, " +
				"call 111 or visit your nearest urgent care centre.",
			Category: "emergencies",
			Tags:     []string{"emergency", "999", "urgent care"},
			AddedAt:  seedTime,
		},
		{
			ID:          "faq-003",
			Kind:        domain.KindFAQ,
			PrimaryText: "How do I get a repeat prescription?",
			BodyText: "You can request a repeat prescription through your GP surgery, local pharmacy, " +
				"or using the NHS app. Allow 48 hours for processing.",
			Category: "prescriptions",
			Tags:     []string{"prescription", "repeat", "medication"},
			AddedAt:  seedTime,
		},
		{
			ID:          "faq-004",
			Kind:        domain.KindFAQ,
			PrimaryText: "What are the opening hours for my local pharmacy?",
			BodyText: "Pharmacy opening hours vary. You can find your nearest pharmacy and their opening " +
				"hours using the NHS website or by calling 111.",
			Category: "pharmacies",
			Tags:     []string{"pharmacy", "opening hours", "medication"},
			AddedAt:  seedTime,
		},
		{
			ID:          "faq-005",
			Kind:        domain.KindFAQ,
			PrimaryText: "How do I register with a new GP surgery?",
			BodyText: "To register with a new GP surgery, visit the surgery in person with proof of identity " +
				"and address. You can also register online through some surgeries.",
			Category: "registration",
			Tags:     []string{"gp", "registration", "new patient"},
			AddedAt:  seedTime,
		},
		{
			ID:          "guideline-001",
			Kind:        domain.KindGuideline,
			PrimaryText: "NHS Appointments Policy",
			BodyText: "The NHS aims to provide appointments within 48 hours for urgent cases and within " +
				"18 weeks for non-urgent referrals. Patients should contact their GP for non-emergency care.",
			Category: "appointments",
			Tags:     []string{"nhs", "appointments", "policy", "waiting times"},
			AddedAt:  seedTime,
		},
		{
			ID:          "guideline-002",
			Kind:        domain.KindGuideline,
			PrimaryText: "Patient Privacy and Confidentiality",
			BodyText: "All patient information is confidential and protected under GDPR and NHS data " +
				"protection regulations. Information is only shared with consent or when legally required.",
			Category: "privacy",
			Tags:     []string{"gdpr", "confidentiality", "data protection", "privacy"},
			AddedAt:  seedTime,
		},
		{
			ID:          "guideline-003",
			Kind:        domain.KindGuideline,
			PrimaryText: "Emergency Care Guidelines",
			BodyText: "Emergency care is available 24/7 through A&E departments and ambulance services. " +
				"Call 999 for life-threatening emergencies. Use 111 for urgent advice.",
			Category: "emergencies",
			Tags:     []string{"emergency", "999", "111", "a&e", "urgent care"},
			AddedAt:  seedTime,
		},
	}
}
