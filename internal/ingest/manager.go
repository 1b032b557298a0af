// Package ingest synchronizes catalog source records into the vector store,
// enforcing the at-most-one-document-per-source-record invariant.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smartbeauty/skincare-rag/internal/catalog"
	"github.com/smartbeauty/skincare-rag/internal/storage"
)

// Embedder generates embedding vectors for texts.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the subset of the vector store the manager writes through.
type Store interface {
	EnsureCollection(ctx context.Context, collection string) error
	ListSourceKeys(ctx context.Context, collection string) (map[storage.SourceKey]struct{}, error)
	UpsertDocuments(ctx context.Context, collection string, docs []*storage.Document) error
	DeleteSourced(ctx context.Context, collection string) (int, error)
	DeleteByKey(ctx context.Context, collection string, key storage.SourceKey) error
}

// SyncResult contains statistics about a sync operation.
type SyncResult struct {
	Inserted int
	Skipped  int
	Deleted  int
	Failed   int
	Failures []FailedRecord
}

// FailedRecord identifies a source record whose embedding failed.
type FailedRecord struct {
	Key    storage.SourceKey
	Reason string
}

// Manager synchronizes source records into vector store collections.
// Writes to the same collection are serialized; the dedup lookup and the
// subsequent insert would otherwise race and duplicate documents.
type Manager struct {
	embedder Embedder
	store    Store
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates an ingestion manager with the given components.
func NewManager(embedder Embedder, store Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		embedder: embedder,
		store:    store,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// collectionLock returns the write lock for a collection, creating it on first use.
func (m *Manager) collectionLock(collection string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[collection]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[collection] = lock
	}
	return lock
}

// Sync brings the collection in line with the given source records.
//
// With rebuild=false it performs one batched source-key lookup, embeds and
// inserts only records whose (source_table, source_id) pair is absent, and is
// therefore idempotent: a second identical call inserts nothing. With
// rebuild=true it first deletes every provider-sourced document in the
// collection, then embeds and inserts all records; if the insert then fails
// the collection is left inconsistent and the error wraps ErrInconsistentState
// so the caller knows to retry.
//
// Individual embedding failures are counted and logged, not fatal, unless
// every record in the batch fails.
func (m *Manager) Sync(ctx context.Context, collection string, records []catalog.SourceRecord, rebuild bool) (*SyncResult, error) {
	lock := m.collectionLock(collection)
	lock.Lock()
	defer lock.Unlock()

	result := &SyncResult{}

	if err := m.store.EnsureCollection(ctx, collection); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	toInsert := records
	if rebuild {
		deleted, err := m.store.DeleteSourced(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("rebuild delete: %w", err)
		}
		result.Deleted = deleted
		m.logger.Info("Cleared collection for rebuild", "collection", collection, "deleted", deleted)
	} else {
		existing, err := m.store.ListSourceKeys(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("dedup lookup: %w", err)
		}

		toInsert = toInsert[:0:0]
		for _, record := range records {
			key := storage.SourceKey{Table: string(record.Kind), ID: record.ID}
			if _, seen := existing[key]; seen {
				result.Skipped++
				continue
			}
			toInsert = append(toInsert, record)
		}
	}

	docs := make([]*storage.Document, 0, len(toInsert))
	for _, record := range toInsert {
		doc, err := m.embedRecord(ctx, record)
		if err != nil {
			key := storage.SourceKey{Table: string(record.Kind), ID: record.ID}
			m.logger.Warn("Failed to embed record", "table", key.Table, "id", key.ID, "error", err)
			result.Failed++
			result.Failures = append(result.Failures, FailedRecord{Key: key, Reason: err.Error()})
			continue
		}
		docs = append(docs, doc)
	}

	if len(toInsert) > 0 && len(docs) == 0 {
		if rebuild {
			return result, fmt.Errorf("%w: rebuild deleted %d documents and embedded none of %d records",
				ErrInconsistentState, result.Deleted, len(toInsert))
		}
		return result, fmt.Errorf("%w: %d of %d records", ErrAllRecordsFailed, result.Failed, len(toInsert))
	}

	if err := m.store.UpsertDocuments(ctx, collection, docs); err != nil {
		if rebuild {
			return result, fmt.Errorf("%w: insert after rebuild delete: %v", ErrInconsistentState, err)
		}
		return result, fmt.Errorf("insert documents: %w", err)
	}
	result.Inserted = len(docs)

	m.logger.Info("Sync complete",
		"collection", collection,
		"inserted", result.Inserted,
		"skipped", result.Skipped,
		"deleted", result.Deleted,
		"failed", result.Failed,
	)

	return result, nil
}

// Upsert replaces the document for a single source record: delete by source
// key, then embed and insert. This is the supported path for updating a
// record whose text changed, since Sync deliberately skips existing keys.
func (m *Manager) Upsert(ctx context.Context, collection string, record catalog.SourceRecord) error {
	lock := m.collectionLock(collection)
	lock.Lock()
	defer lock.Unlock()

	if err := m.store.EnsureCollection(ctx, collection); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	doc, err := m.embedRecord(ctx, record)
	if err != nil {
		return fmt.Errorf("embed record %s/%s: %w", record.Kind, record.ID, err)
	}

	key := storage.SourceKey{Table: string(record.Kind), ID: record.ID}
	if err := m.store.DeleteByKey(ctx, collection, key); err != nil {
		return fmt.Errorf("delete existing document: %w", err)
	}

	if err := m.store.UpsertDocuments(ctx, collection, []*storage.Document{doc}); err != nil {
		return fmt.Errorf("%w: insert after delete for %s/%s: %v", ErrInconsistentState, key.Table, key.ID, err)
	}

	return nil
}

// embedRecord turns a source record into an embedded document.
func (m *Manager) embedRecord(ctx context.Context, record catalog.SourceRecord) (*storage.Document, error) {
	text := record.EmbeddingText()

	embeddings, err := m.embedder.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	return &storage.Document{
		ID:        uuid.New().String(),
		Content:   text,
		Embedding: embeddings[0],
		Metadata: storage.DocumentMetadata{
			SourceTable: string(record.Kind),
			SourceID:    record.ID,
			DisplayName: record.DisplayName,
			Type:        string(record.Kind),
			EmbeddedAt:  time.Now().UTC(),
		},
	}, nil
}
