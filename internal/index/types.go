package index

import "time"

// Entry stores one catalog record with its embedding vector. ID is the record
// URL.
type Entry struct {
	ID        string         `json:"id"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding"`
}

// Index is the top-level persisted structure.
type Index struct {
	Entries   []Entry   `json:"entries"`
	Model     string    `json:"model,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`

	// CatalogDigest is the digest of the catalog the entries were built from.
	CatalogDigest string `json:"catalogDigest,omitempty"`
}

// Hit is a scored entry returned by Query.
type Hit struct {
	ID       string
	Metadata map[string]any
	Score    float32
}
