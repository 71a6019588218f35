// Package storage holds the local bbolt database. The mail itself
// lives on the remote store; what is kept here is the cache of
// downloaded attachment blobs, which are immutable per blobId.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const blobBucket = "Blobs"

// Blobs above this size are served straight through without caching
const maxCachedBlobSize = 5 * 1024 * 1024

// BlobCache is a persistent cache of attachment bytes
type BlobCache struct {
	db *bbolt.DB
}

// OpenBlobCache opens (or creates) the cache database under dataDir
func OpenBlobCache(dataDir string) (*BlobCache, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data dir: %v", err)
	}
	dbPath := filepath.Join(dataDir, "blobs.db")

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open blob cache: %v", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(blobBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating blob bucket: %v", err)
	}

	return &BlobCache{db: db}, nil
}

// Get returns cached bytes for a blob id
func (c *BlobCache) Get(blobID string) ([]byte, bool) {
	var data []byte
	c.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket([]byte(blobBucket)).Get([]byte(blobID)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	return data, data != nil
}

// Put stores blob bytes. Oversized blobs are silently skipped.
func (c *BlobCache) Put(blobID string, data []byte) error {
	if len(data) > maxCachedBlobSize {
		return nil
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(blobBucket)).Put([]byte(blobID), data)
	})
}

// Close closes the underlying database
func (c *BlobCache) Close() error {
	return c.db.Close()
}
