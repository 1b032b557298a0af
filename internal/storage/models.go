package storage

import "time"

// Document is an embedded catalog record stored in Qdrant.
// One document corresponds to one source row at the time it was embedded.
type Document struct {
	ID        string // UUID
	Content   string // Embedding text built from the source record
	Embedding []float32
	Metadata  DocumentMetadata
}

// DocumentMetadata carries the source identity and discriminant for a document.
// source_table + source_id uniquely identify the originating row; at most one
// live document exists per pair in a collection outside of a rebuild.
type DocumentMetadata struct {
	SourceTable string    // "product" or "condition"
	SourceID    string    // Stable row identifier in the source table
	DisplayName string    // Human-readable name, surfaced in chat sources
	Type        string    // Discriminant for filtered search, same vocabulary as SourceTable
	EmbeddedAt  time.Time // When this document was embedded
}

// SourceKey identifies a source row independent of its document ID.
type SourceKey struct {
	Table string
	ID    string
}

// Key returns the document's source key.
func (d *Document) Key() SourceKey {
	return SourceKey{Table: d.Metadata.SourceTable, ID: d.Metadata.SourceID}
}

// ScoredDocument pairs a document with its raw similarity score from Qdrant.
type ScoredDocument struct {
	Document *Document
	Score    float64
}

// Collection names, one per source table.
const (
	CollectionProducts   = "products"
	CollectionConditions = "skin_conditions"
)

// VectorDimension is the embedding size for text-embedding-3-small.
const VectorDimension = 1536
