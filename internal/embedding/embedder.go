// Package embedding produces vector embeddings for clause text, via ONNX when
// built with CGO and a deterministic hash embedder otherwise. Clause
// embeddings power semantic search over processed documents and are computed
// in the background after a document completes.
package embedding

import "context"

// Embedder produces vector embeddings for clause text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
