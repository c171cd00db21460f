package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"prodvec/internal/domain"
)

var (
	bucketMeta        = []byte("meta")
	bucketCollections = []byte("collections")
	bucketPoints      = []byte("points")
	bucketIndexes     = []byte("indexes")
	keyCollectionConf = []byte("config")
)

// BoltVectorStore keeps collections in a single bbolt file. Each collection
// is a nested bucket holding its parameters, its points keyed by big-endian
// id, and one keyword index bucket per indexed metadata field.
//
// Search is brute force over the matching points.
type BoltVectorStore struct {
	db   *bbolt.DB
	path string
}

type collectionConf struct {
	VectorSize int             `json:"vector_size"`
	Distance   domain.Distance `json:"distance"`
	CreatedAt  time.Time       `json:"created_at"`
}

type storedPoint struct {
	Vector  []float32      `json:"v"`
	Payload domain.Payload `json:"p"`
}

// NewBoltVectorStore opens (or creates) the database at path. timeout bounds
// the wait for the file lock held by another process.
func NewBoltVectorStore(path string, timeout time.Duration) (*BoltVectorStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open bolt db: %v", domain.ErrStoreUnavailable, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketCollections} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	return &BoltVectorStore{db: db, path: path}, nil
}

func (s *BoltVectorStore) Path() string {
	return s.path
}

func (s *BoltVectorStore) Close() error {
	return s.db.Close()
}

func (s *BoltVectorStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storeErr(err)
	}
	var exists bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(bucketCollections).Bucket([]byte(name)) != nil
		return nil
	})
	return exists, storeErr(err)
}

func (s *BoltVectorStore) CreateCollection(ctx context.Context, name string, params domain.CollectionParams) error {
	if err := ctx.Err(); err != nil {
		return storeErr(err)
	}
	if params.VectorSize <= 0 {
		return fmt.Errorf("vector size must be positive, got %d", params.VectorSize)
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketCollections)
		if root.Bucket([]byte(name)) != nil {
			return fmt.Errorf("collection already exists: %s", name)
		}
		coll, err := root.CreateBucket([]byte(name))
		if err != nil {
			return err
		}
		if _, err := coll.CreateBucket(bucketPoints); err != nil {
			return err
		}
		if _, err := coll.CreateBucket(bucketIndexes); err != nil {
			return err
		}
		data, err := json.Marshal(collectionConf{
			VectorSize: params.VectorSize,
			Distance:   params.Distance,
			CreatedAt:  time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		return coll.Put(keyCollectionConf, data)
	})
	return storeErr(err)
}

func (s *BoltVectorStore) DeleteCollection(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return storeErr(err)
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		err := tx.Bucket(bucketCollections).DeleteBucket([]byte(name))
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
	return storeErr(err)
}

func (s *BoltVectorStore) CollectionInfo(ctx context.Context, name string) (*domain.CollectionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr(err)
	}
	var info *domain.CollectionInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		coll, conf, err := openCollection(tx, name)
		if err != nil {
			return err
		}
		info = &domain.CollectionInfo{
			Name:        name,
			PointsCount: coll.Bucket(bucketPoints).Stats().KeyN,
			VectorSize:  conf.VectorSize,
			Distance:    conf.Distance,
			Status:      "green",
		}
		info.IndexedFields = indexedFields(coll.Bucket(bucketIndexes))
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return info, nil
}

// CreateFieldIndex adds a keyword index on field and backfills it from the
// points already stored. Creating an existing index is a no-op.
func (s *BoltVectorStore) CreateFieldIndex(ctx context.Context, collection, field string) error {
	if err := ctx.Err(); err != nil {
		return storeErr(err)
	}
	if field == "" {
		return fmt.Errorf("index field name is empty")
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		coll, _, err := openCollection(tx, collection)
		if err != nil {
			return err
		}
		indexes := coll.Bucket(bucketIndexes)
		if indexes.Bucket([]byte(field)) != nil {
			return nil
		}
		idx, err := indexes.CreateBucket([]byte(field))
		if err != nil {
			return err
		}
		return coll.Bucket(bucketPoints).ForEach(func(k, v []byte) error {
			var sp storedPoint
			if err := json.Unmarshal(v, &sp); err != nil {
				return fmt.Errorf("corrupt point %d: %w", binary.BigEndian.Uint64(k), err)
			}
			for _, value := range sp.Payload.Metadata.FieldValues(field) {
				if err := idx.Put(indexKey(value, k), nil); err != nil {
					return err
				}
			}
			return nil
		})
	})
	return storeErr(err)
}

// openCollection resolves a collection bucket and its parameters.
func openCollection(tx *bbolt.Tx, name string) (*bbolt.Bucket, collectionConf, error) {
	var conf collectionConf
	coll := tx.Bucket(bucketCollections).Bucket([]byte(name))
	if coll == nil {
		return nil, conf, fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, name)
	}
	if err := json.Unmarshal(coll.Get(keyCollectionConf), &conf); err != nil {
		return nil, conf, fmt.Errorf("corrupt collection config for %s: %w", name, err)
	}
	return coll, conf, nil
}

func pointKey(id uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, id)
	return k
}

// indexKey is value + 0x00 + big-endian id, so a prefix scan on value+0x00
// yields exactly the ids holding that value.
func indexKey(value string, id []byte) []byte {
	k := make([]byte, 0, len(value)+1+len(id))
	k = append(k, value...)
	k = append(k, 0)
	return append(k, id...)
}

// storeErr classifies failures as store unavailability unless they already
// carry a more specific domain error.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrCollectionNotFound) ||
		errors.Is(err, domain.ErrDimensionMismatch) ||
		errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}
