package store

import (
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scouterr "github.com/scoutindex/scout/internal/errors"
)

func unitVec(dims, hot int) []float32 {
	vec := make([]float32, dims)
	vec[hot] = 1
	return vec
}

func TestVectorStore_AddAndSearch(t *testing.T) {
	s := NewVectorStore(4, "static-v1")

	require.NoError(t, s.Add("a", "static-v1", unitVec(4, 0)))
	require.NoError(t, s.Add("b", "static-v1", unitVec(4, 1)))
	require.NoError(t, s.Add("c", "static-v1", unitVec(4, 2)))

	hits, err := s.Search(unitVec(4, 0), 2)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	assert.Equal(t, "a", hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Score, 0.01, "identical vector scores ~1")
	for _, h := range hits {
		assert.GreaterOrEqual(t, h.Score, 0.0)
		assert.LessOrEqual(t, h.Score, 1.0)
	}
}

func TestVectorStore_ModelTagMismatchRejected(t *testing.T) {
	s := NewVectorStore(4, "static-v1")

	err := s.Add("a", "other-model", unitVec(4, 0))
	require.Error(t, err)
	assert.Equal(t, scouterr.ErrCodeProviderMismatch, scouterr.GetCode(err))
}

func TestVectorStore_DimensionMismatchRejected(t *testing.T) {
	s := NewVectorStore(4, "static-v1")

	err := s.Add("a", "static-v1", unitVec(8, 0))
	require.Error(t, err)
	assert.Equal(t, scouterr.ErrCodeProviderMismatch, scouterr.GetCode(err))

	_, err = s.Search(unitVec(8, 0), 1)
	require.Error(t, err)
}

func TestVectorStore_RemoveHidesFromSearch(t *testing.T) {
	s := NewVectorStore(4, "static-v1")
	require.NoError(t, s.Add("a", "static-v1", unitVec(4, 0)))
	require.NoError(t, s.Add("b", "static-v1", unitVec(4, 1)))

	s.Remove("a")

	assert.False(t, s.Contains("a"))
	assert.Equal(t, 1, s.Count())

	hits, err := s.Search(unitVec(4, 0), 2)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "a", h.ChunkID, "removed vectors never surface")
	}
}

func TestVectorStore_ReplaceUpdatesVector(t *testing.T) {
	s := NewVectorStore(4, "static-v1")
	require.NoError(t, s.Add("a", "static-v1", unitVec(4, 0)))
	require.NoError(t, s.Add("a", "static-v1", unitVec(4, 3)))

	assert.Equal(t, 1, s.Count())

	hits, err := s.Search(unitVec(4, 3), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Score, 0.01)
}

func TestVectorStore_EmptySearch(t *testing.T) {
	s := NewVectorStore(4, "static-v1")
	hits, err := s.Search(unitVec(4, 0), 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBoltCache_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := OpenBoltCache(path)
	require.NoError(t, err)
	defer c.Close()

	vec := []float32{0.25, -1.5, 3.0}
	require.NoError(t, c.Put("hash-1|static-v1", vec))

	got, found, err := c.Get("hash-1|static-v1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, vec, got)
}

func TestBoltCache_MissAndDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := OpenBoltCache(path)
	require.NoError(t, err)
	defer c.Close()

	_, found, err := c.Get("absent")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Put("k", []float32{1}))
	require.NoError(t, c.Delete("k"))
	_, found, err = c.Get("k")
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, c.Delete("never-existed"))
}

func TestBoltCache_MalformedValueIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := OpenBoltCache(path)
	require.NoError(t, err)
	defer c.Close()

	// Write a value that is not a whole number of float32s.
	err = c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(embeddingBucket).Put([]byte("bad"), []byte{1, 2, 3})
	})
	require.NoError(t, err)

	_, _, err = c.Get("bad")
	require.Error(t, err)
	assert.Equal(t, scouterr.ErrCodeIndexCorrupt, scouterr.GetCode(err))
}

func TestBoltCache_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	c, err := OpenBoltCache(path)
	require.NoError(t, err)
	require.NoError(t, c.Put("k", []float32{42}))
	require.NoError(t, c.Close())

	c2, err := OpenBoltCache(path)
	require.NoError(t, err)
	defer c2.Close()

	got, found, err := c2.Get("k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []float32{42}, got)
}
