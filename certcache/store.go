package certcache

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"rubin.dev/tlsprovider/crypto/compress"
)

const SchemaVersionV1 uint32 = 1

var (
	bucketMeta       = []byte("meta")
	keySchemaVersion = []byte("schema_version")
)

func bucketFor(alg compress.Algorithm) []byte {
	return []byte("compressed_" + alg.String())
}

// Store persists amortized compressions keyed by algorithm and the SHA-256
// of the uncompressed certificate message.
type Store struct {
	path string
	db   *bolt.DB
}

// OpenStore opens (or creates) dir/certcache.db with a bucket for each of
// algs.
func OpenStore(dir string, algs ...compress.Algorithm) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, "certcache.db")
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}

	s := &Store{path: path, db: bdb}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return fmt.Errorf("create bucket %s: %w", bucketMeta, err)
		}
		if v := meta.Get(keySchemaVersion); v != nil {
			if len(v) != 4 {
				return fmt.Errorf("corrupt schema_version")
			}
			if got := binary.BigEndian.Uint32(v); got > SchemaVersionV1 {
				return fmt.Errorf("schema_version %d > supported %d", got, SchemaVersionV1)
			}
		} else {
			var v [4]byte
			binary.BigEndian.PutUint32(v[:], SchemaVersionV1)
			if err := meta.Put(keySchemaVersion, v[:]); err != nil {
				return err
			}
		}
		for _, alg := range algs {
			if _, err := tx.CreateBucketIfNotExists(bucketFor(alg)); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucketFor(alg), err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string { return s.path }

func (s *Store) Get(alg compress.Algorithm, digest [32]byte) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFor(alg))
		if b == nil {
			return nil
		}
		if v := b.Get(digest[:]); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (s *Store) Put(alg compress.Algorithm, digest [32]byte, compressed []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketFor(alg))
		if err != nil {
			return err
		}
		return b.Put(digest[:], compressed)
	})
}

func (s *Store) Delete(alg compress.Algorithm, digest [32]byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFor(alg))
		if b == nil {
			return nil
		}
		return b.Delete(digest[:])
	})
}

// Count returns the number of entries persisted for alg.
func (s *Store) Count(alg compress.Algorithm) (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(bucketFor(alg)); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n, err
}
