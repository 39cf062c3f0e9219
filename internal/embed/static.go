package embed

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/scoutindex/scout/internal/lexical"
)

// StaticProvider is a deterministic, dependency-free embedder: each code
// token hashes into a fixed number of buckets and the bucket counts are
// L2-normalized. Texts sharing tokens land near each other, identical
// texts produce identical vectors. It is the default when no external
// model is configured, and the workhorse for tests.
type StaticProvider struct {
	dims      int
	stopWords map[string]struct{}
}

// NewStaticProvider creates a static embedder with the given width.
func NewStaticProvider(dims int) *StaticProvider {
	if dims <= 0 {
		dims = 256
	}
	return &StaticProvider{
		dims:      dims,
		stopWords: lexical.BuildStopWordSet(lexical.DefaultStopWords),
	}
}

func (p *StaticProvider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, p.dims)

	for _, token := range lexical.Tokenize(text, p.stopWords) {
		h := fnv.New32a()
		h.Write([]byte(token))
		bucket := int(h.Sum32()) % p.dims
		if bucket < 0 {
			bucket += p.dims
		}
		vec[bucket]++
	}

	normalize(vec)
	return vec, nil
}

func (p *StaticProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func (p *StaticProvider) Dimensions() int { return p.dims }

func (p *StaticProvider) ModelTag() string { return "static-v1" }

func (p *StaticProvider) Available(context.Context) bool { return true }

func (p *StaticProvider) Close() error { return nil }

// normalize scales vec to unit length in place. Zero vectors stay zero.
func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) * inv)
	}
}
