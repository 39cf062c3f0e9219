// Package embed defines the embedding provider contract and the caching
// layer that keeps re-embedding off the hot path.
package embed

import (
	"context"

	scouterr "github.com/scoutindex/scout/internal/errors"
)

// Provider produces dense vectors for text. Implementations must be safe
// for concurrent use.
type Provider interface {
	// Embed returns one vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the vector width this provider produces.
	Dimensions() int

	// ModelTag identifies the model and version. Vectors from different
	// tags are never comparable and never share cache entries.
	ModelTag() string

	// Available reports whether the provider can serve requests now.
	Available(ctx context.Context) bool

	// Close releases provider resources.
	Close() error
}

// retryProvider wraps a Provider with exponential backoff on retryable
// failures.
type retryProvider struct {
	Provider
	cfg scouterr.RetryConfig
}

// WithRetry wraps p so Embed and EmbedBatch retry on retryable errors.
func WithRetry(p Provider, cfg scouterr.RetryConfig) Provider {
	return &retryProvider{Provider: p, cfg: cfg}
}

func (r *retryProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := scouterr.Retry(ctx, r.cfg, func() error {
		var err error
		vec, err = r.Provider.Embed(ctx, text)
		return err
	})
	return vec, err
}

func (r *retryProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := scouterr.Retry(ctx, r.cfg, func() error {
		var err error
		vecs, err = r.Provider.EmbedBatch(ctx, texts)
		return err
	})
	return vecs, err
}
