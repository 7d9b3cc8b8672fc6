package data

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketDownloads = []byte("downloads")

// BoltBackend stores the blob in a single bbolt bucket.
type BoltBackend struct {
	path string
	db   *bolt.DB
}

func NewBoltBackend(path string) *BoltBackend {
	return &BoltBackend{path: path}
}

func (b *BoltBackend) Init(context.Context) error {
	if b.db != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := bolt.Open(b.path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return fmt.Errorf("failed to open bolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDownloads)
		return err
	})
	if err != nil {
		db.Close()
		return err
	}
	b.db = db
	return nil
}

func (b *BoltBackend) Read(context.Context) ([]byte, error) {
	if b.db == nil {
		return nil, ErrClosed
	}
	var blob []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketDownloads)
		if bucket == nil {
			return nil
		}
		if v := bucket.Get([]byte(StorageKey)); v != nil {
			blob = make([]byte, len(v))
			copy(blob, v)
		}
		return nil
	})
	return blob, err
}

func (b *BoltBackend) Write(_ context.Context, blob []byte) error {
	if b.db == nil {
		return ErrClosed
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketDownloads)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(StorageKey), blob)
	})
}

func (b *BoltBackend) Close() error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}
