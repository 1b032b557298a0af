// Package catalog provides read access to the two source tables the advisor
// is grounded on: skincare products and skin condition profiles.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Kind discriminates the source table a record came from. All downstream
// filtering keys off this tag, never off field presence.
type Kind string

const (
	KindProduct   Kind = "product"
	KindCondition Kind = "condition"
)

// SourceRecord is a single row from one of the source tables, as observed by
// the ingestion manager. Immutable here; the catalog database owns it.
type SourceRecord struct {
	Kind        Kind
	ID          string
	DisplayName string
	Description string
	// Extra holds additional labeled attributes (benefits, ingredients, usage)
	// folded into the embedding text for products.
	Extra map[string]string
}

// EmbeddingText derives the text to embed from the record. The template is
// fixed and deterministic: identical records always produce identical text,
// which is what makes ingestion dedup meaningful. Changing a record's text
// does not update an existing document; that requires a rebuild or an
// explicit per-record upsert.
func (r SourceRecord) EmbeddingText() string {
	var b strings.Builder

	switch r.Kind {
	case KindCondition:
		fmt.Fprintf(&b, "Skin Condition: %s\n", r.DisplayName)
	default:
		fmt.Fprintf(&b, "Product Name: %s\n", r.DisplayName)
	}
	fmt.Fprintf(&b, "Description: %s", r.Description)

	if len(r.Extra) > 0 {
		labels := make([]string, 0, len(r.Extra))
		for label := range r.Extra {
			labels = append(labels, label)
		}
		sort.Strings(labels)

		for _, label := range labels {
			if value := strings.TrimSpace(r.Extra[label]); value != "" {
				fmt.Fprintf(&b, "\n%s: %s", label, value)
			}
		}
	}

	return b.String()
}
