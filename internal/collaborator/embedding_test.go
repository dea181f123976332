package collaborator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptts-corpus/ptts/internal/embed"
	"github.com/ptts-corpus/ptts/internal/store"
)

// failingEmbedder always errors, used to exercise the retry/circuit-breaker
// wrapping without depending on a real model server.
type failingEmbedder struct{}

func (failingEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("model unreachable")
}
func (failingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("model unreachable")
}
func (failingEmbedder) Dimensions() int                { return 8 }
func (failingEmbedder) ModelName() string               { return "failing" }
func (failingEmbedder) Available(_ context.Context) bool { return false }
func (failingEmbedder) Close() error                     { return nil }
func (failingEmbedder) SetBatchIndex(_ int)              {}
func (failingEmbedder) SetFinalBatch(_ bool)             {}

var _ embed.Embedder = failingEmbedder{}

func TestLocalEmbeddingClientEmbedsViaStaticEmbedder(t *testing.T) {
	c := NewLocalEmbeddingClient(embed.NewStaticEmbedder())

	vectors, err := c.Embed(t.Context(), []string{"quarterly budget forecast"}, store.TaskDocument)
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, embed.StaticDimensions, len(vectors[0]))
	assert.Equal(t, embed.StaticDimensions, c.Dimensions())
}

func TestLocalEmbeddingClientIsDeterministic(t *testing.T) {
	c := NewLocalEmbeddingClient(embed.NewStaticEmbedder())

	first, err := c.Embed(t.Context(), []string{"identical input"}, store.TaskDocument)
	require.NoError(t, err)
	second, err := c.Embed(t.Context(), []string{"identical input"}, store.TaskDocument)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLocalEmbeddingClientPropagatesEmbedderFailure(t *testing.T) {
	c := NewLocalEmbeddingClient(failingEmbedder{})

	// The default retry policy waits between attempts; bound the call with
	// a short-lived context so the retry loop's ctx.Done() case fires
	// immediately instead of sleeping out a real multi-second backoff.
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Embed(ctx, []string{"anything"}, store.TaskDocument)
	assert.Error(t, err)
}

func TestLocalEmbeddingClientModelName(t *testing.T) {
	c := NewLocalEmbeddingClient(failingEmbedder{})
	assert.Equal(t, "failing", c.ModelName())
}
