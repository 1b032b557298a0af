package ingest

import "errors"

var (
	// ErrAllRecordsFailed means every record in a sync batch failed to embed.
	ErrAllRecordsFailed = errors.New("all records in batch failed")

	// ErrInconsistentState means a delete succeeded but the following insert
	// did not, leaving the collection missing documents. The caller should
	// retry the sync.
	ErrInconsistentState = errors.New("collection left in inconsistent state")
)
