// Package embeddings turns text into fixed-dimension vectors.
package embeddings

import "context"

// Embedder is implemented by every embedding backend.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// embedRequest is the request body for Ollama's /api/embed endpoint. Input is
// either a string or a list of strings.
type embedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

// embedResponse is the response from Ollama's /api/embed endpoint.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}
