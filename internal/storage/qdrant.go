package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
)

// sourceTables lists every source table the ingestion manager writes for.
// Documents carrying one of these markers are "sourced from this provider"
// and are the only points a rebuild is allowed to delete.
var sourceTables = []string{"product", "condition"}

// QdrantStorage wraps the Qdrant client with connection management and health checks.
type QdrantStorage struct {
	client *qdrant.Client
	host   string
	port   int
}

// NewQdrantStorage creates a new Qdrant client with health validation.
// It performs a health check with retry on startup and fails fast if Qdrant is unreachable.
func NewQdrantStorage(host string, port int) (*QdrantStorage, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	storage := &QdrantStorage{
		client: client,
		host:   host,
		port:   port,
	}

	ctx := context.Background()
	if err := storage.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}

	return storage, nil
}

// healthCheckWithRetry performs a health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStorage) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		return s.Health(ctx)
	}

	return backoff.Retry(operation, backoff.WithContext(exponentialBackoff, ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStorage) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}

	return nil
}

// EnsureCollection ensures the named collection exists with cosine-distance
// vectors and payload indexes on the filterable fields.
// Idempotent - safe to call multiple times. Collections are never implicitly deleted.
func (s *QdrantStorage) EnsureCollection(ctx context.Context, collection string) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, name := range collections {
		if name == collection {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     VectorDimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", collection, err)
	}

	if err := s.createPayloadIndexes(ctx, collection); err != nil {
		return fmt.Errorf("failed to create payload indexes: %w", err)
	}

	return nil
}

// createPayloadIndexes creates keyword indexes for the filterable fields.
// Without these, the dedup lookup and type-filtered search fall back to full scans.
func (s *QdrantStorage) createPayloadIndexes(ctx context.Context, collection string) error {
	fields := []string{
		"source_table", // Dedup lookup and rebuild deletion
		"source_id",    // Per-record delete for upsert
		"type",         // Filtered search by record kind
	}

	for _, field := range fields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}

	return nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// upsertWithRetry performs an upsert operation with exponential backoff retry.
func (s *QdrantStorage) upsertWithRetry(ctx context.Context, collection string, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         points,
		})
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(exponentialBackoff, ctx))
}

// UpsertDocuments stores embedded documents in the collection.
// Documents are batched in groups of 100 for performance.
func (s *QdrantStorage) UpsertDocuments(ctx context.Context, collection string, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	for i, doc := range docs {
		if len(doc.Embedding) != VectorDimension {
			return fmt.Errorf("%w: document %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(doc.Embedding), VectorDimension)
		}
	}

	batchSize := 100
	for i := 0; i < len(docs); i += batchSize {
		end := min(i+batchSize, len(docs))

		batch := docs[i:end]
		points := make([]*qdrant.PointStruct, len(batch))

		for j, doc := range batch {
			points[j] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(doc.ID),
				Vectors: qdrant.NewVectors(doc.Embedding...),
				Payload: qdrant.NewValueMap(map[string]any{
					"source_table": doc.Metadata.SourceTable,
					"source_id":    doc.Metadata.SourceID,
					"display_name": doc.Metadata.DisplayName,
					"type":         doc.Metadata.Type,
					"content":      doc.Content,
					"embedded_at":  doc.Metadata.EmbeddedAt.Format(time.RFC3339),
				}),
			}
		}

		if err := s.upsertWithRetry(ctx, collection, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// ListSourceKeys returns the set of (source_table, source_id) pairs present in
// the collection. This is the single batched lookup the dedup contract requires;
// it uses the Scroll API with payload projection, never per-record round trips.
func (s *QdrantStorage) ListSourceKeys(ctx context.Context, collection string) (map[SourceKey]struct{}, error) {
	keys := make(map[SourceKey]struct{})
	var offset *qdrant.PointId

	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatchKeywords("source_table", sourceTables...),
		},
	}

	batchSize := uint32(256)

	for {
		results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: collection,
			Filter:         filter,
			Limit:          qdrant.PtrOf(batchSize),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayloadInclude("source_table", "source_id"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll source keys: %w", err)
		}

		for _, result := range results {
			key := SourceKey{
				Table: result.Payload["source_table"].GetStringValue(),
				ID:    result.Payload["source_id"].GetStringValue(),
			}
			if key.Table != "" && key.ID != "" {
				keys[key] = struct{}{}
			}
		}

		if uint32(len(results)) < batchSize {
			break
		}

		offset = results[len(results)-1].Id
	}

	return keys, nil
}

// DeleteSourced removes every document in the collection that was written by the
// ingestion manager, leaving any foreign points untouched. Returns the number of
// documents that matched before deletion.
func (s *QdrantStorage) DeleteSourced(ctx context.Context, collection string) (int, error) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatchKeywords("source_table", sourceTables...),
		},
	}

	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         filter,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count sourced documents: %w", err)
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete sourced documents: %w", err)
	}

	return int(count), nil
}

// DeleteByKey removes the document(s) for a single source key.
// Used by the per-record upsert path.
func (s *QdrantStorage) DeleteByKey(ctx context.Context, collection string, key SourceKey) error {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("source_table", key.Table),
			qdrant.NewMatch("source_id", key.ID),
		},
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return fmt.Errorf("failed to delete document for %s/%s: %w", key.Table, key.ID, err)
	}

	return nil
}

// Search performs vector similarity search in the collection.
// Results are ordered by score descending; an optional typeFilter restricts
// matches to documents whose metadata type equals the filter.
func (s *QdrantStorage) Search(ctx context.Context, collection string, embedding []float32, limit int, typeFilter string) ([]*ScoredDocument, error) {
	if len(embedding) != VectorDimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(embedding), VectorDimension)
	}

	var filter *qdrant.Filter
	if typeFilter != "" {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("type", typeFilter),
			},
		}
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(embedding...),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search collection %s: %w", collection, err)
	}

	scored := make([]*ScoredDocument, 0, len(results))
	for _, result := range results {
		payload := result.Payload

		embeddedAt, err := time.Parse(time.RFC3339, payload["embedded_at"].GetStringValue())
		if err != nil {
			embeddedAt = time.Time{}
		}

		doc := &Document{
			ID:      result.Id.GetUuid(),
			Content: payload["content"].GetStringValue(),
			Metadata: DocumentMetadata{
				SourceTable: payload["source_table"].GetStringValue(),
				SourceID:    payload["source_id"].GetStringValue(),
				DisplayName: payload["display_name"].GetStringValue(),
				Type:        payload["type"].GetStringValue(),
				EmbeddedAt:  embeddedAt,
			},
		}

		scored = append(scored, &ScoredDocument{
			Document: doc,
			Score:    float64(result.Score),
		})
	}

	return scored, nil
}

// CountDocuments returns the number of provider-sourced documents in the collection.
func (s *QdrantStorage) CountDocuments(ctx context.Context, collection string) (int, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchKeywords("source_table", sourceTables...),
			},
		},
		Exact: qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count documents in %s: %w", collection, err)
	}

	return int(count), nil
}

// CollectionDimension returns the configured vector size of the collection.
// The retriever compares this against its embedder to catch model mismatches
// between ingestion and query time.
func (s *QdrantStorage) CollectionDimension(ctx context.Context, collection string) (int, error) {
	info, err := s.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return 0, fmt.Errorf("collection %s has no vector params", collection)
	}

	return int(params.GetSize()), nil
}
