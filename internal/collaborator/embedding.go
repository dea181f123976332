package collaborator

import (
	"context"

	"github.com/ptts-corpus/ptts/internal/embed"
	ptserrors "github.com/ptts-corpus/ptts/internal/errors"
	"github.com/ptts-corpus/ptts/internal/store"
)

// LocalEmbeddingClient adapts an embed.Embedder (Ollama, MLX, or static
// hash-based fallback) to EmbeddingClient, guarded by a circuit breaker
// and bounded retry so a stalled model server degrades one document
// instead of the whole run.
type LocalEmbeddingClient struct {
	embedder embed.Embedder
	breaker  *ptserrors.CircuitBreaker
	retry    ptserrors.RetryConfig
}

// NewLocalEmbeddingClient wraps embedder with the ambient retry/circuit
// policy used for every external collaborator.
func NewLocalEmbeddingClient(embedder embed.Embedder) *LocalEmbeddingClient {
	return &LocalEmbeddingClient{
		embedder: embedder,
		breaker:  ptserrors.NewCircuitBreaker("embedding"),
		retry:    ptserrors.DefaultRetryConfig(),
	}
}

var _ EmbeddingClient = (*LocalEmbeddingClient)(nil)

// Embed computes vectors for texts. task distinguishes document-time
// embedding from query-time embedding; the underlying models here treat
// both the same way, but the distinction is preserved for collaborators
// that tune encoding per task (e.g. asymmetric retrieval models).
func (c *LocalEmbeddingClient) Embed(ctx context.Context, texts []string, task store.TaskType) ([][]float32, error) {
	if !c.breaker.Allow() {
		return nil, ptserrors.New(ptserrors.KindCircuitOpen, "embedding collaborator circuit open", nil)
	}

	result, err := ptserrors.RetryWithResult(ctx, c.retry, func() ([][]float32, error) {
		return c.embedder.EmbedBatch(ctx, texts)
	})
	if err != nil {
		c.breaker.RecordFailure()
		return nil, ptserrors.Wrap(ptserrors.KindExternalUnavailable, err)
	}
	c.breaker.RecordSuccess()
	return result, nil
}

// Dimensions returns the embedder's output dimensionality.
func (c *LocalEmbeddingClient) Dimensions() int { return c.embedder.Dimensions() }

// ModelName returns the embedder's model identifier.
func (c *LocalEmbeddingClient) ModelName() string { return c.embedder.ModelName() }
