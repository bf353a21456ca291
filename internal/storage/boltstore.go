package storage

import (
	"bytes"
	"context"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/starkwallet-io/starkwallet-client/internal/walleterr"
)

var boltBucket = []byte("general")

// BoltGeneralStore is a file-backed GeneralStore over a single bbolt bucket.
// It supports enumeration, which makes it the natural home for the key
// registry, cached config and wallet metadata.
type BoltGeneralStore struct {
	db *bolt.DB
}

func NewBoltGeneralStore(path string) (*BoltGeneralStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "open %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(boltBucket)
		return e
	})
	if err != nil {
		_ = db.Close()
		return nil, walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "create bucket")
	}
	return &BoltGeneralStore{db: db}, nil
}

func (s *BoltGeneralStore) Close() error { return s.db.Close() }

func (s *BoltGeneralStore) Put(_ context.Context, key, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "put %s", key)
	}
	return nil
}

func (s *BoltGeneralStore) Get(_ context.Context, key string) (string, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(boltBucket).Get([]byte(key)); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return "", false, walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "get %s", key)
	}
	if out == nil {
		return "", false, nil
	}
	return string(out), true, nil
}

func (s *BoltGeneralStore) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(key))
	})
	if err != nil {
		return walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "delete %s", key)
	}
	return nil
}

func (s *BoltGeneralStore) SupportsEnumeration() bool { return true }

func (s *BoltGeneralStore) Keys(_ context.Context, prefix string) ([]string, error) {
	var out []string
	p := []byte(prefix)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(boltBucket).Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			out = append(out, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "keys %s", prefix)
	}
	return out, nil
}
