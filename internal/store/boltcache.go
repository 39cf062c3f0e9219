package store

import (
	"encoding/binary"
	"math"
	"time"

	bolt "go.etcd.io/bbolt"

	scouterr "github.com/scoutindex/scout/internal/errors"
)

var embeddingBucket = []byte("embeddings")

// BoltCache persists embedding vectors in a bbolt file, keyed by content
// hash plus model tag. Malformed values decode to an IndexCorrupt error,
// which the caching layer treats as a miss.
type BoltCache struct {
	db *bolt.DB
}

// OpenBoltCache opens (or creates) the cache file at path.
func OpenBoltCache(path string) (*BoltCache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, scouterr.New(scouterr.ErrCodeStorageFailure, "open embedding cache", err).
			WithDetail("path", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(embeddingBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, scouterr.New(scouterr.ErrCodeStorageFailure, "initialize embedding cache", err)
	}

	return &BoltCache{db: db}, nil
}

// Get returns the cached vector for key, or found=false on a miss.
func (c *BoltCache) Get(key string) ([]float32, bool, error) {
	var raw []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(embeddingBucket).Get([]byte(key)); v != nil {
			raw = make([]byte, len(v))
			copy(raw, v)
		}
		return nil
	})
	if err != nil {
		return nil, false, scouterr.New(scouterr.ErrCodeStorageFailure, "read embedding cache", err)
	}
	if raw == nil {
		return nil, false, nil
	}

	vec, err := decodeVector(raw)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// Put stores a vector under key, overwriting any existing entry.
func (c *BoltCache) Put(key string, vec []float32) error {
	raw := encodeVector(vec)
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(embeddingBucket).Put([]byte(key), raw)
	})
	if err != nil {
		return scouterr.New(scouterr.ErrCodeStorageFailure, "write embedding cache", err)
	}
	return nil
}

// Delete removes an entry. Deleting a missing key is not an error.
func (c *BoltCache) Delete(key string) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(embeddingBucket).Delete([]byte(key))
	})
	if err != nil {
		return scouterr.New(scouterr.ErrCodeStorageFailure, "delete embedding cache entry", err)
	}
	return nil
}

// Close closes the underlying database.
func (c *BoltCache) Close() error {
	return c.db.Close()
}

// encodeVector packs float32s little-endian, 4 bytes each.
func encodeVector(vec []float32) []byte {
	raw := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}
	return raw
}

// decodeVector rejects values whose length is not a whole number of floats.
func decodeVector(raw []byte) ([]float32, error) {
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil, scouterr.IndexCorrupt("embedding value has invalid length", nil)
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return vec, nil
}
