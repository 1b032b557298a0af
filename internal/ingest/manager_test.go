package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartbeauty/skincare-rag/internal/catalog"
	"github.com/smartbeauty/skincare-rag/internal/storage"
)

// fakeEmbedder returns a constant vector, or fails for texts containing a marker.
type fakeEmbedder struct {
	failSubstring string
	calls         int
}

func (f *fakeEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if f.failSubstring != "" && strings.Contains(text, f.failSubstring) {
			return nil, fmt.Errorf("embedding refused for %q", text)
		}
		out[i] = make([]float32, storage.VectorDimension)
	}
	return out, nil
}

// fakeStore tracks documents by source key in memory.
type fakeStore struct {
	docs map[storage.SourceKey]*storage.Document

	listCalls  int
	upsertErr  error
	deleteErr  error
	lastUpsert []*storage.Document
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[storage.SourceKey]*storage.Document)}
}

func (f *fakeStore) EnsureCollection(ctx context.Context, collection string) error { return nil }

func (f *fakeStore) ListSourceKeys(ctx context.Context, collection string) (map[storage.SourceKey]struct{}, error) {
	f.listCalls++
	keys := make(map[storage.SourceKey]struct{}, len(f.docs))
	for k := range f.docs {
		keys[k] = struct{}{}
	}
	return keys, nil
}

func (f *fakeStore) UpsertDocuments(ctx context.Context, collection string, docs []*storage.Document) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.lastUpsert = docs
	for _, doc := range docs {
		f.docs[doc.Key()] = doc
	}
	return nil
}

func (f *fakeStore) DeleteSourced(ctx context.Context, collection string) (int, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	n := len(f.docs)
	f.docs = make(map[storage.SourceKey]*storage.Document)
	return n, nil
}

func (f *fakeStore) DeleteByKey(ctx context.Context, collection string, key storage.SourceKey) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.docs, key)
	return nil
}

func testRecords() []catalog.SourceRecord {
	return []catalog.SourceRecord{
		{Kind: catalog.KindProduct, ID: "1", DisplayName: "Clarifying Cleanser", Description: "A gentle gel cleanser."},
		{Kind: catalog.KindProduct, ID: "2", DisplayName: "Retinol Serum", Description: "A night serum with retinol."},
	}
}

func TestSync_InsertsNewRecords(t *testing.T) {
	store := newFakeStore()
	manager := NewManager(&fakeEmbedder{}, store, nil)

	result, err := manager.Sync(context.Background(), storage.CollectionProducts, testRecords(), false)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.Failed)
	assert.Len(t, store.docs, 2)

	for _, doc := range store.docs {
		assert.NotEmpty(t, doc.ID)
		assert.Equal(t, "product", doc.Metadata.SourceTable)
		assert.Equal(t, "product", doc.Metadata.Type)
		assert.Len(t, doc.Embedding, storage.VectorDimension)
		assert.False(t, doc.Metadata.EmbeddedAt.IsZero())
	}
}

func TestSync_SecondRunIsNoOp(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{}
	manager := NewManager(embedder, store, nil)
	ctx := context.Background()

	_, err := manager.Sync(ctx, storage.CollectionProducts, testRecords(), false)
	require.NoError(t, err)
	embedCallsAfterFirst := embedder.calls

	result, err := manager.Sync(ctx, storage.CollectionProducts, testRecords(), false)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, embedCallsAfterFirst, embedder.calls, "second sync should not embed anything")
	assert.Len(t, store.docs, 2)
}

func TestSync_OneDedupLookupPerCall(t *testing.T) {
	store := newFakeStore()
	manager := NewManager(&fakeEmbedder{}, store, nil)

	records := make([]catalog.SourceRecord, 50)
	for i := range records {
		records[i] = catalog.SourceRecord{Kind: catalog.KindProduct, ID: fmt.Sprintf("%d", i), DisplayName: "P", Description: "d"}
	}

	_, err := manager.Sync(context.Background(), storage.CollectionProducts, records, false)
	require.NoError(t, err)
	assert.Equal(t, 1, store.listCalls, "dedup lookup must be batched, not per record")
}

func TestSync_RebuildReplacesEverything(t *testing.T) {
	store := newFakeStore()
	manager := NewManager(&fakeEmbedder{}, store, nil)
	ctx := context.Background()

	_, err := manager.Sync(ctx, storage.CollectionProducts, testRecords(), false)
	require.NoError(t, err)

	result, err := manager.Sync(ctx, storage.CollectionProducts, testRecords(), true)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Deleted)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 0, result.Skipped)
	assert.Len(t, store.docs, 2)
}

func TestSync_PartialEmbedFailureIsNotFatal(t *testing.T) {
	store := newFakeStore()
	manager := NewManager(&fakeEmbedder{failSubstring: "Retinol"}, store, nil)

	result, err := manager.Sync(context.Background(), storage.CollectionProducts, testRecords(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, storage.SourceKey{Table: "product", ID: "2"}, result.Failures[0].Key)
	assert.Contains(t, result.Failures[0].Reason, "embedding refused")
}

func TestSync_AllRecordsFailed(t *testing.T) {
	store := newFakeStore()
	manager := NewManager(&fakeEmbedder{failSubstring: "serum"}, store, nil)

	records := []catalog.SourceRecord{
		{Kind: catalog.KindProduct, ID: "1", DisplayName: "A", Description: "a serum"},
		{Kind: catalog.KindProduct, ID: "2", DisplayName: "B", Description: "another serum"},
	}

	result, err := manager.Sync(context.Background(), storage.CollectionProducts, records, false)
	require.ErrorIs(t, err, ErrAllRecordsFailed)
	assert.Equal(t, 2, result.Failed)
	assert.Empty(t, store.docs, "nothing should be written when every record fails")
}

func TestSync_RebuildAllFailedIsInconsistent(t *testing.T) {
	store := newFakeStore()
	manager := NewManager(&fakeEmbedder{}, store, nil)
	ctx := context.Background()

	_, err := manager.Sync(ctx, storage.CollectionProducts, testRecords(), false)
	require.NoError(t, err)

	failing := NewManager(&fakeEmbedder{failSubstring: "Description"}, store, nil)
	_, err = failing.Sync(ctx, storage.CollectionProducts, testRecords(), true)
	require.ErrorIs(t, err, ErrInconsistentState)
}

func TestSync_RebuildInsertFailureIsInconsistent(t *testing.T) {
	store := newFakeStore()
	store.upsertErr = errors.New("qdrant write refused")
	manager := NewManager(&fakeEmbedder{}, store, nil)

	_, err := manager.Sync(context.Background(), storage.CollectionProducts, testRecords(), true)
	require.ErrorIs(t, err, ErrInconsistentState)
}

func TestSync_EmptyRecords(t *testing.T) {
	store := newFakeStore()
	manager := NewManager(&fakeEmbedder{}, store, nil)

	result, err := manager.Sync(context.Background(), storage.CollectionProducts, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.Failed)
}

func TestUpsert_ReplacesExistingDocument(t *testing.T) {
	store := newFakeStore()
	manager := NewManager(&fakeEmbedder{}, store, nil)
	ctx := context.Background()

	record := testRecords()[0]
	require.NoError(t, manager.Upsert(ctx, storage.CollectionProducts, record))

	key := storage.SourceKey{Table: "product", ID: record.ID}
	first := store.docs[key]
	require.NotNil(t, first)

	record.Description = "A reformulated gel cleanser."
	require.NoError(t, manager.Upsert(ctx, storage.CollectionProducts, record))

	require.Len(t, store.docs, 1, "upsert must keep at most one document per source record")
	second := store.docs[key]
	assert.NotEqual(t, first.ID, second.ID)
	assert.Contains(t, second.Content, "reformulated")
}

func TestUpsert_InsertFailureAfterDeleteIsInconsistent(t *testing.T) {
	store := newFakeStore()
	manager := NewManager(&fakeEmbedder{}, store, nil)
	ctx := context.Background()

	record := testRecords()[0]
	require.NoError(t, manager.Upsert(ctx, storage.CollectionProducts, record))

	store.upsertErr = errors.New("qdrant write refused")
	err := manager.Upsert(ctx, storage.CollectionProducts, record)
	require.ErrorIs(t, err, ErrInconsistentState)
}

func TestUpsert_EmbedFailureLeavesStoreUntouched(t *testing.T) {
	store := newFakeStore()
	manager := NewManager(&fakeEmbedder{}, store, nil)
	ctx := context.Background()

	record := testRecords()[0]
	require.NoError(t, manager.Upsert(ctx, storage.CollectionProducts, record))

	failing := NewManager(&fakeEmbedder{failSubstring: "Cleanser"}, store, nil)
	err := failing.Upsert(ctx, storage.CollectionProducts, record)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInconsistentState, "failure before the delete must not report inconsistency")
	assert.Len(t, store.docs, 1, "existing document must survive a failed embed")
}
